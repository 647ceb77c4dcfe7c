// Package cmd implements rbld's cobra command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

var configPath string

// BuildVersion is stamped at link time.
var BuildVersion = "dev"

// Root returns the rbld root command.
func Root() *cobra.Command {
	root := &cobra.Command{
		Use:   "rbld",
		Short: "rbld serves single-RBL, aggregate, and custom-RBL DNS block-list queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "rbld.toml", "location of the config file, generated if missing")

	root.AddCommand(serveCmd(), versionCmd(), configCheckCmd())

	return root
}
