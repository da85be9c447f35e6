package main

import (
	"github.com/makhaen-survey/makhaen-go/internal/application/startup"
	"github.com/makhaen-survey/makhaen-go/pkg/config"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port != "" {
				config.Port = port
			}
			return startup.Initialize()
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "Listen port (overrides PORT)")
	return cmd
}
