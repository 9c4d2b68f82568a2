package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"gopdac/host/mcu"
	"gopdac/host/wave"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Interactive prompt",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		s.m.Subscribe("dac_transfer_done", func(r *mcu.Response) {
			fmt.Printf("\n[oid %d] transfer %s\n", r.Uint("oid"),
				s.m.Dictionary().EnumName("dac_transfer_status", int(r.Uint("status"))))
		})

		fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
		return s.repl(os.Stdin, os.Stdout)
	},
}

func (s *session) repl(in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		parts, err := shlex.Split(scanner.Text())
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}
		if parts[0] == "quit" || parts[0] == "exit" || parts[0] == "q" {
			return nil
		}
		if err := s.exec(out, parts[0], parts[1:]); err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
	return scanner.Err()
}

// exec runs one prompt command
func (s *session) exec(out io.Writer, cmd string, args []string) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("%s needs %d arguments (type 'help')", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "help", "?":
		printHelp(out)
	case "dict":
		s.m.Dictionary().Print(out)
	case "clock":
		clock, err := s.m.Clock()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d\n", clock)
	case "write":
		if err := need(2); err != nil {
			return err
		}
		return s.write(args[0], args[1], 0)
	case "noise", "triangle":
		if err := need(2); err != nil {
			return err
		}
		start := (*mcu.DAC).Noise
		if cmd == "triangle" {
			start = (*mcu.DAC).Triangle
		}
		return s.generator(start, args[0], args[1])
	case "play":
		if err := need(4); err != nil {
			return err
		}
		o := playOptions{mode: mcu.ModeCircular}
		samples, err := strconv.Atoi(args[2])
		if err != nil {
			return err
		}
		o.wave = wave.Default(args[1], samples)
		if o.signalHz, err = strconv.ParseFloat(args[3], 64); err != nil {
			return err
		}
		if len(args) > 4 {
			o.mode = args[4]
		}
		return s.play(out, args[0], o)
	case "query":
		if err := need(1); err != nil {
			return err
		}
		return s.query(out, args[0])
	case "send":
		// raw command by dictionary name, integer arguments only
		if err := need(1); err != nil {
			return err
		}
		vals := make([]interface{}, len(args)-1)
		for i, a := range args[1:] {
			v, err := strconv.ParseInt(a, 0, 64)
			if err != nil {
				return err
			}
			vals[i] = v
		}
		return s.m.Send(args[0], vals...)
	default:
		return fmt.Errorf("unknown command: %s (type 'help' for available commands)", cmd)
	}
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, strings.TrimSpace(`
Available commands:
  help                                   Show this help message
  dict                                   Print dictionary summary
  clock                                  Read the MCU clock
  write <ch> <value>                     Set the output (0-255)
  noise <ch> <freq>                      Start the noise generator
  triangle <ch> <freq>                   Start the triangle generator
  play <ch> <shape> <samples> <hz> [mode]
                                         Stream one period of a waveform
  query <ch>                             Show mode and trigger rate
  send <command> [args...]               Send a raw command
  quit/exit/q                            Exit the program`))
}
