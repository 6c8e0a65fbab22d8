package chain_test

import (
	"testing"

	"github.com/coreward/fullnode/chain"
	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/params"
	"github.com/coreward/fullnode/scriptoracle"
	"github.com/coreward/fullnode/store"
	"github.com/coreward/fullnode/wire"
	"github.com/stretchr/testify/require"
)

func newTestChain(t *testing.T) (*chain.Chain, store.FullPrunedBlockStore, params.Params) {
	t.Helper()
	return newTestChainWithParams(t, params.RegTestParams())
}

func newTestChainWithParams(t *testing.T, p params.Params) (*chain.Chain, store.FullPrunedBlockStore, params.Params) {
	t.Helper()
	st := store.NewMemStore()
	c, err := chain.New(st, p, scriptoracle.AcceptAll{}, nil)
	require.NoError(t, err)
	return c, st, p
}

// coinbaseBlock builds a single-coinbase-tx block extending parent, with
// a subsidy-sized output and the given timestamp. The coinbase script
// carries the height and the timestamp's low byte, so sibling blocks at
// the same height get distinct coinbase transactions.
func coinbaseBlock(p params.Params, parent store.StoredBlock, height uint32, timestamp uint32) *wire.MsgBlock {
	coinbase := wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Index: 0xFFFFFFFF}, SignatureScript: []byte{byte(height), byte(timestamp)}, Sequence: 0xFFFFFFFF},
	}, []wire.TxOut{
		{Value: p.Subsidy(height), PkScript: []byte{0x51}},
	}, 0)
	header := wire.BlockHeader{
		Version:   1,
		PrevBlock: [32]byte(parent.Hash()),
		Timestamp: timestamp,
		Bits:      parent.Header.Bits,
	}
	block := wire.NewMsgBlock(header, []*wire.MsgTx{coinbase})
	hashes, _ := chainmodel.TxHashes(block)
	block.Header.MerkleRoot = [32]byte(chainmodel.MerkleRoot(hashes))
	return block
}

func chainHead(t *testing.T, st store.FullPrunedBlockStore) store.StoredBlock {
	t.Helper()
	head, err := st.ChainHead()
	require.NoError(t, err)
	return head
}

func TestGenesisSeeded(t *testing.T) {
	_, st, _ := newTestChain(t)
	head := chainHead(t, st)
	require.EqualValues(t, 0, head.Height)
}

func TestExtendChainLinearly(t *testing.T) {
	c, st, p := newTestChain(t)
	genesis := chainHead(t, st)

	b1 := coinbaseBlock(p, genesis, 1, genesis.Header.Timestamp+1)
	accepted, err := c.Add(b1)
	require.NoError(t, err)
	require.True(t, accepted)

	head := chainHead(t, st)
	require.EqualValues(t, 1, head.Height)
	require.Equal(t, chainmodel.BlockHash(b1.Header), head.Hash())

	b2 := coinbaseBlock(p, head, 2, head.Header.Timestamp+1)
	accepted, err = c.Add(b2)
	require.NoError(t, err)
	require.True(t, accepted)
	require.EqualValues(t, 2, chainHead(t, st).Height)
}

func TestDuplicateBlockRejected(t *testing.T) {
	c, st, p := newTestChain(t)
	genesis := chainHead(t, st)
	b1 := coinbaseBlock(p, genesis, 1, genesis.Header.Timestamp+1)
	_, err := c.Add(b1)
	require.NoError(t, err)

	_, err = c.Add(b1)
	require.ErrorIs(t, err, chain.ErrDuplicate)
}

func TestOrphanBufferedThenConnected(t *testing.T) {
	c, st, p := newTestChain(t)
	genesis := chainHead(t, st)

	b1 := coinbaseBlock(p, genesis, 1, genesis.Header.Timestamp+1)
	b2 := coinbaseBlock(p, store.StoredBlock{Header: b1.Header, Height: 1, ChainWork: genesis.ChainWork}, 2, b1.Header.Timestamp+1)

	_, err := c.Add(b2)
	require.ErrorIs(t, err, chain.ErrOrphan)
	require.EqualValues(t, 0, chainHead(t, st).Height)

	_, err = c.Add(b1)
	require.NoError(t, err)
	require.EqualValues(t, 2, chainHead(t, st).Height)
}

func TestUTXOCreatedBySpentBlock(t *testing.T) {
	c, st, p := newTestChain(t)
	genesis := chainHead(t, st)
	b1 := coinbaseBlock(p, genesis, 1, genesis.Header.Timestamp+1)
	_, err := c.Add(b1)
	require.NoError(t, err)

	txs, err := b1.Txs()
	require.NoError(t, err)
	coinbaseHash, err := chainmodel.TxHash(txs[0])
	require.NoError(t, err)

	out, ok, err := st.GetTransactionOutput(coinbaseHash, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, p.Subsidy(1), out.Value)
}

func TestSideBranchReorganizesWhenHeavier(t *testing.T) {
	c, st, p := newTestChain(t)
	genesis := chainHead(t, st)

	// Main branch: genesis -> a1
	a1 := coinbaseBlock(p, genesis, 1, genesis.Header.Timestamp+1)
	_, err := c.Add(a1)
	require.NoError(t, err)
	require.Equal(t, chainmodel.BlockHash(a1.Header), chainHead(t, st).Hash())

	// Side branch: genesis -> b1 -> b2, same work per block so b2 overtakes a1.
	b1 := coinbaseBlock(p, genesis, 1, genesis.Header.Timestamp+2)
	connected, err := c.Add(b1)
	require.NoError(t, err)
	require.False(t, connected) // side branch, does not overtake (equal height/work)
	require.Equal(t, chainmodel.BlockHash(a1.Header), chainHead(t, st).Hash())

	b1Stored := store.StoredBlock{Header: b1.Header, Height: 1, ChainWork: genesis.ChainWork}
	b2 := coinbaseBlock(p, b1Stored, 2, b1.Header.Timestamp+1)
	connected, err = c.Add(b2)
	require.NoError(t, err)
	require.True(t, connected) // reorganizes onto the heavier branch

	head := chainHead(t, st)
	require.EqualValues(t, 2, head.Height)
	require.Equal(t, chainmodel.BlockHash(b2.Header), head.Hash())

	// a1's coinbase output should have been reversed out of the UTXO set.
	a1Txs, err := a1.Txs()
	require.NoError(t, err)
	a1CoinbaseHash, err := chainmodel.TxHash(a1Txs[0])
	require.NoError(t, err)
	_, ok, err := st.GetTransactionOutput(a1CoinbaseHash, 0)
	require.NoError(t, err)
	require.False(t, ok)

	// b1 and b2's coinbase outputs should be present.
	b2Txs, err := b2.Txs()
	require.NoError(t, err)
	b2CoinbaseHash, err := chainmodel.TxHash(b2Txs[0])
	require.NoError(t, err)
	_, ok, err = st.GetTransactionOutput(b2CoinbaseHash, 0)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCoinbaseOverspendRejected(t *testing.T) {
	c, st, p := newTestChain(t)
	genesis := chainHead(t, st)
	coinbase := wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Index: 0xFFFFFFFF}, Sequence: 0xFFFFFFFF},
	}, []wire.TxOut{
		{Value: p.Subsidy(1) + 1, PkScript: []byte{0x51}},
	}, 0)
	header := wire.BlockHeader{
		Version:   1,
		PrevBlock: [32]byte(genesis.Hash()),
		Timestamp: genesis.Header.Timestamp + 1,
		Bits:      genesis.Header.Bits,
	}
	block := wire.NewMsgBlock(header, []*wire.MsgTx{coinbase})
	hashes, _ := chainmodel.TxHashes(block)
	block.Header.MerkleRoot = [32]byte(chainmodel.MerkleRoot(hashes))

	_, err := c.Add(block)
	require.Error(t, err)
	require.EqualValues(t, 0, chainHead(t, st).Height)

	var verr *chain.VerificationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, chain.ErrKindCoinbase, verr.Kind)
}

func TestStaleTimestampRejectedWithVerificationError(t *testing.T) {
	c, st, p := newTestChain(t)
	genesis := chainHead(t, st)
	block := coinbaseBlock(p, genesis, 1, genesis.Header.Timestamp)

	_, err := c.Add(block)
	require.Error(t, err)

	var verr *chain.VerificationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, chain.ErrKindTimestamp, verr.Kind)
}

func TestFinalizePrunesOldUndoBlocks(t *testing.T) {
	p := params.RegTestParams()
	// Keep the retarget boundary far away and the reorg window short so
	// this test can mine a handful of blocks with a fixed difficulty and
	// still exercise finalization.
	p.RetargetInterval = 1_000_000
	p.MaxReorgDepth = 3
	c, st, p := newTestChainWithParams(t, p)
	head := chainHead(t, st)
	for h := uint32(1); h <= p.MaxReorgDepth+2; h++ {
		b := coinbaseBlock(p, head, h, head.Header.Timestamp+1)
		_, err := c.Add(b)
		require.NoError(t, err)
		head = chainHead(t, st)
	}
	require.True(t, st.LiveUndoBlocks() <= int(p.MaxReorgDepth)+1)
}
