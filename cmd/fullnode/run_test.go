package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNetworkParamsRejectsUnknownNetwork(t *testing.T) {
	_, err := networkParams("bogus")
	require.Error(t, err)
}

func TestNetworkParamsKnownNetworks(t *testing.T) {
	for _, name := range []string{"mainnet", "testnet", "regtest"} {
		p, err := networkParams(name)
		require.NoError(t, err)
		require.Equal(t, name, p.Name)
	}
}
