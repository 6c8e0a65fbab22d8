package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/coreward/fullnode/internal/node"
	"github.com/coreward/fullnode/logging"
	"github.com/coreward/fullnode/params"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func networkParams(name string) (params.Params, error) {
	switch name {
	case "mainnet":
		return params.MainNetParams(), nil
	case "testnet":
		return params.TestNetParams(), nil
	case "regtest":
		return params.RegTestParams(), nil
	default:
		return params.Params{}, fmt.Errorf("unknown network %q (want mainnet, testnet, or regtest)", name)
	}
}

func newRunCmd() *cobra.Command {
	var (
		network        string
		listenAddr     string
		seeds          []string
		maxConnections int
		minConnections int
		dev            bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a node and connect it to the network",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := networkParams(network)
			if err != nil {
				return err
			}
			log, err := logging.New(dev)
			if err != nil {
				return fmt.Errorf("build logger: %w", err)
			}
			defer log.Sync() //nolint:errcheck

			n, err := node.New(node.Config{
				Params:         p,
				ListenAddr:     listenAddr,
				SeedAddrs:      seeds,
				MaxConnections: maxConnections,
				MinConnections: minConnections,
				UserAgent:      "/fullnode:" + Version + "/",
			}, log)
			if err != nil {
				return fmt.Errorf("construct node: %w", err)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			log.Info("fullnode: starting", zap.String("network", p.Name))
			return n.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&network, "network", "mainnet", "network to join: mainnet, testnet, or regtest")
	cmd.Flags().StringVar(&listenAddr, "listen", "", "address to accept inbound connections on; empty disables listening")
	cmd.Flags().StringSliceVar(&seeds, "seed", nil, "seed peer addresses to bootstrap discovery from")
	cmd.Flags().IntVar(&maxConnections, "max-connections", 32, "maximum number of simultaneous peer connections")
	cmd.Flags().IntVar(&minConnections, "min-connections", 8, "minimum connections before discovery pauses")
	cmd.Flags().BoolVar(&dev, "dev", false, "use a development logger with human-readable output")

	return cmd
}
