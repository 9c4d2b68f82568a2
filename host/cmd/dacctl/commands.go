package main

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gopdac/host/mcu"
	"gopdac/host/wave"
)

// playOptions selects what play streams
type playOptions struct {
	wave     wave.Params
	file     string
	freq     uint32
	signalHz float64
	mode     string
	wait     time.Duration
}

var (
	writeDelay time.Duration
	playOpts   = playOptions{wave: wave.Default(wave.Sine, 64), mode: mcu.ModeCircular}

	infoCmd = &cobra.Command{
		Use:   "info",
		Short: "Print the firmware dictionary and clock",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.info(os.Stdout)
		},
	}

	writeCmd = &cobra.Command{
		Use:   "write <channel> <value>",
		Short: "Set a channel's output to an 8-bit value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.write(args[0], args[1], writeDelay)
		},
	}

	noiseCmd = &cobra.Command{
		Use:   "noise <channel> <freq>",
		Short: "Start the noise generator at freq updates per second",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerator(cmd, (*mcu.DAC).Noise, args)
		},
	}

	triangleCmd = &cobra.Command{
		Use:   "triangle <channel> <freq>",
		Short: "Start the triangle generator at freq updates per second",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerator(cmd, (*mcu.DAC).Triangle, args)
		},
	}

	playCmd = &cobra.Command{
		Use:   "play <channel>",
		Short: "Stream a generated waveform or a raw 8-bit sample file",
		Long: `play loads samples into the channel's buffer and streams them with DMA.
Without --file one period of --shape is generated. The sample rate is --freq,
or --signal-hz times the number of samples.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.play(os.Stdout, args[0], playOpts)
		},
	}

	queryCmd = &cobra.Command{
		Use:   "query <channel>",
		Short: "Print a channel's mode and trigger rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := connect(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.query(os.Stdout, args[0])
		},
	}
)

func init() {
	writeCmd.Flags().DurationVar(&writeDelay, "delay", 0, "schedule the write this far ahead on the MCU clock")

	f := playCmd.Flags()
	f.StringVar(&playOpts.wave.Shape, "shape", playOpts.wave.Shape, "sine, sawtooth, square or triangle")
	f.IntVar(&playOpts.wave.Samples, "samples", playOpts.wave.Samples, "samples per period")
	f.Float64Var(&playOpts.wave.Amplitude, "amplitude", playOpts.wave.Amplitude, "peak to peak, fraction of full scale")
	f.Float64Var(&playOpts.wave.Offset, "offset", playOpts.wave.Offset, "centre, fraction of full scale")
	f.StringVar(&playOpts.file, "file", "", "raw 8-bit samples to play instead of a waveform")
	f.Uint32Var(&playOpts.freq, "freq", 0, "sample rate in samples per second")
	f.Float64Var(&playOpts.signalHz, "signal-hz", 100, "signal frequency, used when --freq is not set")
	f.StringVar(&playOpts.mode, "mode", playOpts.mode, "oneshot or circular")
	f.DurationVar(&playOpts.wait, "wait", 0, "for oneshot, wait this long for the transfer to finish")
}

func runGenerator(cmd *cobra.Command, start func(*mcu.DAC, uint32) error, args []string) error {
	s, err := connect(cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.generator(start, args[0], args[1])
}

func (s *session) info(out io.Writer) error {
	s.m.Dictionary().Print(out)
	clock, err := s.m.Clock()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nMCU clock: %d\n", clock)
	return nil
}

func (s *session) write(name, value string, delay time.Duration) error {
	v, err := parseValue(value)
	if err != nil {
		return err
	}
	d, err := s.dac(name, true)
	if err != nil {
		return err
	}
	if delay > 0 {
		return d.WriteAfter(delay, v)
	}
	return d.Write(v)
}

func (s *session) generator(start func(*mcu.DAC, uint32) error, name, freq string) error {
	f, err := parseFreq(freq)
	if err != nil {
		return err
	}
	d, err := s.dac(name, true)
	if err != nil {
		return err
	}
	return start(d, f)
}

func (s *session) play(out io.Writer, name string, o playOptions) error {
	var samples []byte
	var err error
	if o.file != "" {
		samples, err = ioutil.ReadFile(o.file)
	} else {
		samples, err = wave.Table(o.wave)
	}
	if err != nil {
		return err
	}
	freq := o.freq
	if freq == 0 {
		if freq, err = wave.SampleRate(o.signalHz, len(samples)); err != nil {
			return err
		}
	}

	d, err := s.dac(name, true)
	if err != nil {
		return err
	}
	xfer, err := d.Play(samples, freq, o.mode)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "streaming %d samples at %d/s (%s)\n", len(samples), freq, o.mode)
	if o.mode != mcu.ModeOneShot || o.wait <= 0 {
		xfer.Release()
		return nil
	}
	status, err := xfer.Wait(o.wait)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "transfer %s\n", status)
	return nil
}

func (s *session) query(out io.Writer, name string) error {
	d, err := s.dac(name, false)
	if err != nil {
		return err
	}
	st, err := d.Query()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "oid %d: mode=%s freq=%d active=%v\n", st.OID, st.Mode, st.Freq, st.Active)
	return nil
}
