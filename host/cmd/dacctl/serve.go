package main

import (
	"log"
	"net/http"

	"github.com/spf13/cobra"

	"gopdac/host/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the configured channels over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := connect(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		dacs := make(map[string]httpapi.DAC, len(s.cfg.Channels))
		for _, ch := range s.cfg.Channels {
			d, err := s.dac(ch.Name, true)
			if err != nil {
				return err
			}
			dacs[ch.Name] = httpapi.MCUDAC{DAC: d}
		}

		log.Println("now listening for requests at ", s.cfg.Addr)
		return http.ListenAndServe(s.cfg.Addr, httpapi.NewRouter(dacs))
	},
}
