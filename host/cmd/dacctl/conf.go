package main

import (
	"os"

	"github.com/spf13/cobra"

	"gopdac/host/config"
)

var (
	confCmd = &cobra.Command{
		Use:   "conf",
		Short: "Print the merged configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return config.Write(os.Stdout, c)
		},
	}

	mkconfCmd = &cobra.Command{
		Use:   "mkconf",
		Short: "Write the merged configuration to the configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			f, err := os.Create(cfgFile)
			if err != nil {
				return err
			}
			defer f.Close()
			return config.Write(f, c)
		},
	}
)
