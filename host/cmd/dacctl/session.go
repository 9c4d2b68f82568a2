package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gopdac/host/config"
	"gopdac/host/mcu"
)

// session is a connected MCU plus the configured channels
type session struct {
	cfg        config.Config
	m          *mcu.MCU
	configured map[string]bool
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	return config.Load(cfgFile, cmd.Flags())
}

// connect opens the board and reads its dictionary
func connect(cmd *cobra.Command) (*session, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	m, err := mcu.Connect(cfg.Serial)
	if err != nil {
		return nil, err
	}
	m.Timeout = cfg.Timeout
	if err := m.RetrieveDictionary(); err != nil {
		m.Close()
		return nil, err
	}
	return &session{cfg: cfg, m: m, configured: make(map[string]bool)}, nil
}

func (s *session) Close() error {
	return s.m.Close()
}

// dac resolves a channel name. With configure set, the channel is bound
// with config_dac once per session; that stops whatever it was doing.
func (s *session) dac(name string, configure bool) (*mcu.DAC, error) {
	ch, err := s.cfg.Lookup(name)
	if err != nil {
		return nil, err
	}
	d := mcu.NewDAC(s.m, ch.OID)
	if configure && !s.configured[ch.Name] {
		if err := d.Configure(ch.Channel); err != nil {
			return nil, err
		}
		s.configured[ch.Name] = true
	}
	return d, nil
}

func parseValue(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("value must be 0-255: %w", err)
	}
	return uint8(v), nil
}

func parseFreq(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("bad frequency %q: %w", s, err)
	}
	return uint32(v), nil
}
