package params_test

import (
	"testing"

	"github.com/coreward/fullnode/params"
	"github.com/stretchr/testify/require"
)

func TestSubsidyHalves(t *testing.T) {
	p := params.MainNetParams()
	require.EqualValues(t, 50*1e8, p.Subsidy(0))
	require.EqualValues(t, 50*1e8, p.Subsidy(p.SubsidyHalvingInterval-1))
	require.EqualValues(t, 25*1e8, p.Subsidy(p.SubsidyHalvingInterval))
	require.EqualValues(t, 0, p.Subsidy(p.SubsidyHalvingInterval*65))
}

func TestNetworksHaveDistinctMagic(t *testing.T) {
	require.NotEqual(t, params.MainNetParams().Magic, params.TestNetParams().Magic)
	require.NotEqual(t, params.MainNetParams().Magic, params.RegTestParams().Magic)
}
