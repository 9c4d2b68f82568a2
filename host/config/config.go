// Package config loads dacctl settings: built-in defaults, then the YAML
// file, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"
	"github.com/spf13/pflag"
	yml "gopkg.in/yaml.v2"

	"gopdac/host/serial"
)

// FileName is the default configuration file
const FileName = "dacctl.yml"

// Channel names a firmware DAC object
type Channel struct {
	Name string `koanf:"name" yaml:"name"`

	// OID is the object id used on the wire
	OID uint8 `koanf:"oid" yaml:"oid"`

	// Channel is the DAC output, 1 or 2
	Channel int `koanf:"channel" yaml:"channel"`
}

// Config is the complete tool configuration
type Config struct {
	Serial serial.Config `koanf:"serial" yaml:"serial"`

	// Timeout bounds each wait for an ACK or a response
	Timeout time.Duration `koanf:"timeout" yaml:"timeout"`

	// Addr is the listen address of the HTTP server
	Addr string `koanf:"addr" yaml:"addr"`

	Channels []Channel `koanf:"channels" yaml:"channels"`
}

// Defaults is the configuration used when no file is present
func Defaults() Config {
	return Config{
		Serial:  serial.DefaultConfig("/dev/ttyACM0"),
		Timeout: 2 * time.Second,
		Addr:    ":8000",
		Channels: []Channel{
			{Name: "dac1", OID: 1, Channel: 1},
			{Name: "dac2", OID: 2, Channel: 2},
		},
	}
}

// flagKeys maps command-line flags onto configuration keys
var flagKeys = map[string]string{
	"device":       "serial.device",
	"baud":         "serial.baud",
	"read-timeout": "serial.read_timeout",
	"timeout":      "timeout",
	"addr":         "addr",
}

// Load merges the defaults, the YAML file at path (a missing file is not
// an error) and any flags in fs that the user set.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("error loading defaults: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("error loading config: %w", err)
		}
	}
	if fs != nil {
		p := posflag.ProviderWithValue(fs, ".", k, func(key, value string) (string, interface{}) {
			return flagKeys[key], value
		})
		if err := k.Load(p, nil); err != nil {
			return Config{}, fmt.Errorf("error loading flags: %w", err)
		}
	}

	c := Config{}
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// AddFlags registers the flags Load understands
func AddFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("device", d.Serial.Device, "serial device of the DAC board")
	fs.Int("baud", d.Serial.Baud, "UART baud rate (ignored over USB)")
	fs.Duration("read-timeout", d.Serial.ReadTimeout, "serial read timeout")
	fs.Duration("timeout", d.Timeout, "ACK and response timeout")
	fs.String("addr", d.Addr, "HTTP listen address")
}

// Lookup finds a channel by name or by oid
func (c Config) Lookup(name string) (Channel, error) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch, nil
		}
	}
	if oid, err := strconv.ParseUint(name, 10, 8); err == nil {
		for _, ch := range c.Channels {
			if ch.OID == uint8(oid) {
				return ch, nil
			}
		}
	}
	return Channel{}, fmt.Errorf("no channel named %q", name)
}

// Write encodes c as YAML
func Write(w io.Writer, c Config) error {
	return yml.NewEncoder(w).Encode(c)
}
