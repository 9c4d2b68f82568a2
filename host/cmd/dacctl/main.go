// Command dacctl drives the DAC firmware from a host: one-shot commands,
// an interactive prompt and an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gopdac/host/config"
	"gopdac/protocol"
)

// Version is the tool version. Typically injected via ldflags
var Version = "0.1.0"

var (
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   "dacctl",
		Short: "Control the DAC firmware over a serial link",
		Long: `dacctl talks to a board running the DAC firmware. Channels are named in
the configuration file (see "dacctl conf") and may also be given by oid.`,
		SilenceUsage: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the tool and protocol versions",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dacctl version %s (protocol %s)\n", Version, protocol.Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.FileName, "configuration file")
	config.AddFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(versionCmd, infoCmd, writeCmd, noiseCmd, triangleCmd, playCmd, queryCmd,
		replCmd, serveCmd, confCmd, mkconfCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
