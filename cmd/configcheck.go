package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blockdns/rbld/config"
	"github.com/blockdns/rbld/zone"
)

func configCheckCmd() *cobra.Command {
	cc := &cobra.Command{
		Use:   "config",
		Short: "config subcommands",
	}

	cc.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "load the config and zone files and report any errors, without starting the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigCheck()
		},
	})

	return cc
}

func runConfigCheck() error {
	cfg, err := config.Load(configPath, BuildVersion)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	rbls, err := zone.LoadRBLs(cfg.RBLServersFile)
	if err != nil {
		return fmt.Errorf("rbl servers file: %w", err)
	}

	if _, err := zone.LoadAggregates(cfg.AggregateZonesFile, rbls); err != nil {
		return fmt.Errorf("aggregate zones file: %w", err)
	}

	fmt.Printf("config OK: %d RBLs, bind %s, upstream %s\n", len(rbls), cfg.Bind(), cfg.UpstreamResolver)

	return nil
}
