package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:           "makhaen",
		Short:         "Field survey photo service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log store activity to stdout")

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand(&verbose))
	rootCmd.AddCommand(newAccountsCommand(&verbose))
	rootCmd.AddCommand(newSurveysCommand(&verbose))

	return rootCmd
}
