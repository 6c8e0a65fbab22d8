package chainhash_test

import (
	"math/big"
	"testing"

	"github.com/coreward/fullnode/chainhash"
	"github.com/stretchr/testify/require"
)

func TestHashStringRoundTrip(t *testing.T) {
	h := chainhash.DoubleHashH([]byte("hello world"))
	parsed, err := chainhash.NewFromStr(h.String())
	require.NoError(t, err)
	require.Equal(t, h, parsed)
}

func TestZeroIsZero(t *testing.T) {
	require.True(t, chainhash.Zero.IsZero())
	require.False(t, chainhash.DoubleHashH([]byte("x")).IsZero())
}

func TestLessOrEqual(t *testing.T) {
	h := chainhash.Hash{}
	h[31] = 0x01
	require.True(t, h.LessOrEqual(h.Big()))
	require.False(t, h.LessOrEqual(big.NewInt(0)))
}

func TestNewFromBytesRejectsWrongLength(t *testing.T) {
	_, err := chainhash.NewFromBytes([]byte{1, 2, 3})
	require.Error(t, err)
}
