package chainmodel_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/wire"
	"github.com/stretchr/testify/require"
)

func coinbaseTx() *wire.MsgTx {
	return wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Index: 0xFFFFFFFF}, SignatureScript: []byte{0x01}, Sequence: 0xFFFFFFFF},
	}, []wire.TxOut{
		{Value: 5000000000, PkScript: []byte{0x76, 0xa9}},
	}, 0)
}

func TestIsCoinbase(t *testing.T) {
	ok, err := chainmodel.IsCoinbase(coinbaseTx())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMerkleRootSingleTx(t *testing.T) {
	tx := coinbaseTx()
	h, err := chainmodel.TxHash(tx)
	require.NoError(t, err)
	root := chainmodel.MerkleRoot([]chainhash.Hash{h})
	require.Equal(t, h, root)
}

func TestMerkleRootDuplicatesLastAtOddLevel(t *testing.T) {
	a := chainhash.DoubleHashH([]byte("a"))
	b := chainhash.DoubleHashH([]byte("b"))
	c := chainhash.DoubleHashH([]byte("c"))
	root3 := chainmodel.MerkleRoot([]chainhash.Hash{a, b, c})
	root4 := chainmodel.MerkleRoot([]chainhash.Hash{a, b, c, c})
	require.Equal(t, root4, root3)
}

func TestCompactRoundTrip(t *testing.T) {
	target := new(big.Int)
	target.SetString("00000000FFFF0000000000000000000000000000000000000000000000000000", 16)
	bits := chainmodel.BigToCompact(target)
	back := chainmodel.CompactToBig(bits)
	require.Equal(t, 0, target.Cmp(back))
}

func TestVerifyBlockBadPoW(t *testing.T) {
	tx := coinbaseTx()
	block := wire.NewMsgBlock(wire.BlockHeader{Version: 1, Bits: 0x1d00ffff}, []*wire.MsgTx{tx})
	hashes, err := chainmodel.TxHashes(block)
	require.NoError(t, err)
	block.Header.MerkleRoot = chainmodel.MerkleRoot(hashes)
	// An all-zero target is impossible to beat.
	err = chainmodel.Verify(block, big.NewInt(0), time.Now())
	require.Error(t, err)
	var verr *chainmodel.BlockVerificationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "BadPoW", verr.Kind)
}

func TestVerifyBlockGoodPoWAndMerkle(t *testing.T) {
	tx := coinbaseTx()
	block := wire.NewMsgBlock(wire.BlockHeader{Version: 1}, []*wire.MsgTx{tx})
	hashes, err := chainmodel.TxHashes(block)
	require.NoError(t, err)
	block.Header.MerkleRoot = chainmodel.MerkleRoot(hashes)
	maxTarget := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	require.NoError(t, chainmodel.Verify(block, maxTarget, time.Now()))
}

func TestHashForSignatureDeterministic(t *testing.T) {
	tx := wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Hash: chainhash.DoubleHashH([]byte("prev"))}, Sequence: 0xFFFFFFFF},
	}, []wire.TxOut{
		{Value: 100, PkScript: []byte{0x76, 0xa9}},
	}, 0)
	subscript := []byte{0x76, 0xa9, 0xab, 0x88, 0xac} // includes an OP_CODESEPARATOR
	h1, err := chainmodel.HashForSignature(tx, 0, subscript, chainmodel.SigHashAll)
	require.NoError(t, err)
	h2, err := chainmodel.HashForSignature(tx, 0, subscript, chainmodel.SigHashAll)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	hNone, err := chainmodel.HashForSignature(tx, 0, subscript, chainmodel.SigHashNone)
	require.NoError(t, err)
	require.NotEqual(t, h1, hNone)
}

func TestHashForSignatureAnyoneCanPayDropsOtherInputs(t *testing.T) {
	tx := wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Index: 0}, Sequence: 1},
		{PreviousOutPoint: wire.OutPoint{Index: 1}, Sequence: 2},
	}, []wire.TxOut{
		{Value: 1, PkScript: []byte{0x01}},
	}, 0)
	h1, err := chainmodel.HashForSignature(tx, 0, nil, chainmodel.SigHashAll|chainmodel.SigHashAnyOneCanPay)
	require.NoError(t, err)

	// A tx differing only in the OTHER input's outpoint should hash the
	// same under ANYONECANPAY, since that input is dropped entirely.
	tx2 := wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Index: 0}, Sequence: 1},
		{PreviousOutPoint: wire.OutPoint{Index: 99}, Sequence: 2},
	}, []wire.TxOut{
		{Value: 1, PkScript: []byte{0x01}},
	}, 0)
	h2, err := chainmodel.HashForSignature(tx2, 0, nil, chainmodel.SigHashAll|chainmodel.SigHashAnyOneCanPay)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}
