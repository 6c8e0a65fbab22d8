// Package store defines the FullPrunedBlockStore contract (spec.md §4.3):
// persisted headers, the UTXO set, and reorg-window undo data, with
// batched-write atomicity. Only the in-memory reference implementation is
// provided here; disk-backed stores remain pluggable behind this
// interface, matching spec.md §1's explicit scoping.
package store

import (
	"math/big"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/wire"
)

// StoredBlock is a block header plus the chain metadata that makes it
// useful for chain-selection: cumulative chain work and height
// (spec.md §3).
type StoredBlock struct {
	Header    wire.BlockHeader
	ChainWork *big.Int
	Height    uint32
}

// Hash returns the block's identity hash.
func (b StoredBlock) Hash() chainhash.Hash {
	return chainmodel.BlockHash(b.Header)
}

// StoredTxOut is one entry of the UTXO set, keyed by (Hash, Index)
// (spec.md §3).
type StoredTxOut struct {
	Hash       chainhash.Hash
	Index      uint32
	Value      int64
	PkScript   []byte
	Height     uint32
	IsCoinbase bool
}

// UTXOKey identifies a StoredTxOut.
type UTXOKey struct {
	Hash  chainhash.Hash
	Index uint32
}

// TransactionOutputChanges is the undo record for one block: every output
// it spent (so disconnect can restore them) and every output it created
// (so disconnect can remove them) (spec.md §3).
type TransactionOutputChanges struct {
	Spent   []StoredTxOut
	Created []StoredTxOut
}

// StoredUndoableBlock carries a block's full transaction list (recent
// blocks, within the reorg window) alongside the TransactionOutputChanges
// needed to reverse its effect on the UTXO set. A block stored before it
// is connected carries only Transactions; connecting it stores both;
// Finalize drops Transactions once the block falls outside the reorg
// window, leaving only TxOutChanges (spec.md §3, §8 invariant 5).
type StoredUndoableBlock struct {
	Hash         chainhash.Hash
	Transactions []*wire.MsgTx
	TxOutChanges *TransactionOutputChanges
}

// IsFinalized reports whether this undo block has already been pruned
// down to its TransactionOutputChanges (spec.md §8 invariant 5).
func (u StoredUndoableBlock) IsFinalized() bool {
	return u.Transactions == nil && u.TxOutChanges != nil
}

// FullPrunedBlockStore is the storage contract spec.md §4.3 describes.
// Implementations MUST make BeginDatabaseBatchWrite/
// CommitDatabaseBatchWrite/AbortDatabaseBatchWrite atomic: either every
// mutation issued between Begin and Commit lands, or none does.
type FullPrunedBlockStore interface {
	Put(block StoredBlock, undo StoredUndoableBlock) error
	Get(hash chainhash.Hash) (StoredBlock, bool, error)
	GetUndo(hash chainhash.Hash) (StoredUndoableBlock, bool, error)

	ChainHead() (StoredBlock, error)
	SetChainHead(StoredBlock) error
	VerifiedChainHead() (StoredBlock, error)
	SetVerifiedChainHead(StoredBlock) error

	AddUnspentTransactionOutput(StoredTxOut) error
	RemoveUnspentTransactionOutput(hash chainhash.Hash, index uint32) error
	GetTransactionOutput(hash chainhash.Hash, index uint32) (StoredTxOut, bool, error)

	BeginDatabaseBatchWrite() error
	CommitDatabaseBatchWrite() error
	AbortDatabaseBatchWrite() error

	// Finalize discards a block's full transaction list, retaining only
	// its TransactionOutputChanges, per spec.md §4.3 ("after put of a
	// block whose height is head - maxReorgDepth, finalize it").
	Finalize(hash chainhash.Hash) error

	// LiveUndoBlocks reports how many stored undo blocks still carry a
	// full transaction list, the explicit memory-accounting assertion
	// spec.md §9 substitutes for the source's GC-sensitive weak-reference
	// tests.
	LiveUndoBlocks() int
}

// ErrNotFound is returned by lookups with no matching record, where the
// interface additionally signals absence via a bool so callers aren't
// forced to use errors.Is for the common "don't have it yet" path.
type ErrNotFound struct {
	What string
}

func (e *ErrNotFound) Error() string {
	return "store: not found: " + e.What
}
