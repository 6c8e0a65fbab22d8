package store_test

import (
	"math/big"
	"testing"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/store"
	"github.com/coreward/fullnode/wire"
	"github.com/stretchr/testify/require"
)

func sampleBlock(nonce uint32) store.StoredBlock {
	return store.StoredBlock{
		Header:    wire.BlockHeader{Nonce: nonce},
		ChainWork: big.NewInt(int64(nonce) + 1),
		Height:    nonce,
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	s := store.NewMemStore()
	b := sampleBlock(1)
	undo := store.StoredUndoableBlock{
		Hash:         b.Hash(),
		Transactions: []*wire.MsgTx{wire.NewMsgTx(1, nil, nil, 0)},
		TxOutChanges: &store.TransactionOutputChanges{},
	}
	require.NoError(t, s.Put(b, undo))

	got, ok, err := s.Get(b.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b.Height, got.Height)

	gotUndo, ok, err := s.GetUndo(b.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, gotUndo.IsFinalized())
}

func TestChainHeadRequiresSet(t *testing.T) {
	s := store.NewMemStore()
	_, err := s.ChainHead()
	require.Error(t, err)

	b := sampleBlock(5)
	require.NoError(t, s.SetChainHead(b))
	head, err := s.ChainHead()
	require.NoError(t, err)
	require.Equal(t, b.Height, head.Height)
}

func TestUTXOAddRemove(t *testing.T) {
	s := store.NewMemStore()
	out := store.StoredTxOut{Hash: chainhash.DoubleHashH([]byte("tx")), Index: 0, Value: 100}
	require.NoError(t, s.AddUnspentTransactionOutput(out))

	got, ok, err := s.GetTransactionOutput(out.Hash, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(100), got.Value)

	require.NoError(t, s.RemoveUnspentTransactionOutput(out.Hash, 0))
	_, ok, err = s.GetTransactionOutput(out.Hash, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchWriteAbortRollsBack(t *testing.T) {
	s := store.NewMemStore()
	b := sampleBlock(2)
	require.NoError(t, s.SetChainHead(sampleBlock(1)))

	require.NoError(t, s.BeginDatabaseBatchWrite())
	require.NoError(t, s.SetChainHead(b))
	out := store.StoredTxOut{Hash: chainhash.DoubleHashH([]byte("x")), Index: 0, Value: 5}
	require.NoError(t, s.AddUnspentTransactionOutput(out))
	require.NoError(t, s.AbortDatabaseBatchWrite())

	head, err := s.ChainHead()
	require.NoError(t, err)
	require.Equal(t, uint32(1), head.Height)

	_, ok, err := s.GetTransactionOutput(out.Hash, 0)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestBatchWriteCommitKeepsChanges(t *testing.T) {
	s := store.NewMemStore()
	require.NoError(t, s.BeginDatabaseBatchWrite())
	require.NoError(t, s.SetChainHead(sampleBlock(3)))
	require.NoError(t, s.CommitDatabaseBatchWrite())

	head, err := s.ChainHead()
	require.NoError(t, err)
	require.Equal(t, uint32(3), head.Height)
}

func TestFinalizeDropsFullTransactionsButKeepsChanges(t *testing.T) {
	s := store.NewMemStore()
	b := sampleBlock(9)
	changes := &store.TransactionOutputChanges{
		Created: []store.StoredTxOut{{Hash: chainhash.DoubleHashH([]byte("c")), Index: 0, Value: 1}},
	}
	undo := store.StoredUndoableBlock{
		Hash:         b.Hash(),
		Transactions: []*wire.MsgTx{wire.NewMsgTx(1, nil, nil, 0)},
		TxOutChanges: changes,
	}
	require.NoError(t, s.Put(b, undo))
	require.Equal(t, 1, s.LiveUndoBlocks())

	require.NoError(t, s.Finalize(b.Hash()))
	require.Equal(t, 0, s.LiveUndoBlocks())

	got, ok, err := s.GetUndo(b.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.IsFinalized())
	require.Len(t, got.TxOutChanges.Created, 1)
}
