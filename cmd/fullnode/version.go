package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is stamped at release time; left as a dev placeholder otherwise.
const Version = "v0.0.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fullnode version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), Version)
			return err
		},
	}
}
