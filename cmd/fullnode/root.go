package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fullnode",
		Short: "A full, pruned Bitcoin-protocol node",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newVersionCmd())
	return root
}
