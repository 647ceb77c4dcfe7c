package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the rbld version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(BuildVersion)
			return nil
		},
	}
}
