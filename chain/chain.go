// Package chain implements the full, pruned block chain engine from
// spec.md §4.4: consensus validation, UTXO-set maintenance, and
// reorganizations, layered on top of a store.FullPrunedBlockStore. It is
// grounded on the teacher's internal/chain package — the same
// accept-then-decide-connect-or-reorganize shape as Chain.handleCandidateHead,
// with State.Advance/State.Rewind generalized into connectBlock/
// disconnectBlock against the UTXO set instead of a balance index.
package chain

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/params"
	"github.com/coreward/fullnode/scriptoracle"
	"github.com/coreward/fullnode/store"
	"github.com/coreward/fullnode/wire"
	"go.uber.org/zap"
)

// ErrOrphan is returned by Add when a block's parent is not yet known.
// The block is buffered in case the parent arrives later; once
// params.MaxOrphanBlocks orphans are buffered, further orphans are dropped.
var ErrOrphan = errors.New("chain: parent block not known")

// ErrDuplicate is returned by Add when the block is already stored.
var ErrDuplicate = errors.New("chain: block already known")

// medianTimeSpan is the number of preceding blocks whose timestamps feed
// the median-time-past check (spec.md §3).
const medianTimeSpan = 11

// ConnectListener is notified whenever the active chain tip changes,
// whether by a simple extend or the final step of a reorganization.
type ConnectListener func(head store.StoredBlock)

// Chain is the consensus engine: it decides whether a candidate block
// extends, forks from, or reorganizes the locally stored best chain, and
// maintains the UTXO set accordingly.
type Chain struct {
	mu     sync.Mutex
	params params.Params
	store  store.FullPrunedBlockStore
	oracle scriptoracle.Oracle
	log    *zap.Logger

	orphans         map[chainhash.Hash]*wire.MsgBlock
	orphansByParent map[chainhash.Hash][]chainhash.Hash
	orphanOrder     []chainhash.Hash

	onConnect []ConnectListener
}

// New constructs a Chain over st, seeding the genesis block if the store
// is empty.
func New(st store.FullPrunedBlockStore, p params.Params, oracle scriptoracle.Oracle, log *zap.Logger) (*Chain, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Chain{
		params:          p,
		store:           st,
		oracle:          oracle,
		log:             log,
		orphans:         make(map[chainhash.Hash]*wire.MsgBlock),
		orphansByParent: make(map[chainhash.Hash][]chainhash.Hash),
	}
	if err := c.seedGenesis(); err != nil {
		return nil, err
	}
	return c, nil
}

// AddConnectListener registers a callback invoked after the active tip
// changes. Listeners are called synchronously from within Add.
func (c *Chain) AddConnectListener(l ConnectListener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnect = append(c.onConnect, l)
}

func (c *Chain) seedGenesis() error {
	g := c.params.Genesis
	header := wire.BlockHeader{
		Version:    g.Version,
		PrevBlock:  [32]byte(chainhash.Zero),
		MerkleRoot: [32]byte(g.MerkleRoot),
		Timestamp:  g.Time,
		Bits:       g.Bits,
		Nonce:      g.Nonce,
	}
	hash := chainmodel.BlockHash(header)
	if existing, ok, err := c.store.Get(hash); err != nil {
		return err
	} else if ok {
		_ = existing
		return nil // already seeded
	}
	if !g.Hash.IsZero() && hash != g.Hash {
		return fmt.Errorf("chain: computed genesis hash %s != params genesis %s", hash, g.Hash)
	}
	work := blockWork(chainmodel.CompactToBig(header.Bits))
	stored := store.StoredBlock{Header: header, ChainWork: work, Height: 0}
	genesisTx := wire.NewMsgTx(1, []wire.TxIn{{PreviousOutPoint: wire.OutPoint{Index: 0xFFFFFFFF}}}, nil, 0)
	undo := store.StoredUndoableBlock{
		Hash:         hash,
		Transactions: []*wire.MsgTx{genesisTx},
		TxOutChanges: &store.TransactionOutputChanges{},
	}
	if err := c.store.Put(stored, undo); err != nil {
		return err
	}
	if err := c.store.SetChainHead(stored); err != nil {
		return err
	}
	return c.store.SetVerifiedChainHead(stored)
}

// blockWork returns the proof-of-work "work" value of a target: the
// expected number of hashes needed to find a block at that difficulty,
// 2^256 / (target+1).
func blockWork(target *big.Int) *big.Int {
	if target.Sign() <= 0 {
		return big.NewInt(1)
	}
	numerator := new(big.Int).Lsh(big.NewInt(1), 256)
	denom := new(big.Int).Add(target, big.NewInt(1))
	return numerator.Div(numerator, denom)
}

// Add validates and stores a block, updating the active chain if
// warranted. It returns true when the block became the tip of the best
// chain (by extending it or by a reorganization) and false when it was
// stored as a side branch; it returns ErrDuplicate for already-known
// blocks and ErrOrphan for blocks whose parent is not yet known (in which
// case the block is buffered, unless the orphan buffer is full).
func (c *Chain) Add(block *wire.MsgBlock) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := chainmodel.BlockHash(block.Header)
	if _, ok, err := c.store.Get(hash); err != nil {
		return false, err
	} else if ok {
		return false, ErrDuplicate
	}

	target := chainmodel.CompactToBig(block.Header.Bits)
	if err := chainmodel.Verify(block, target, time.Now()); err != nil {
		kind := ErrKindUnknown
		var cmErr *chainmodel.BlockVerificationError
		if errors.As(err, &cmErr) {
			kind = kindFromChainModel(cmErr.Kind)
		}
		return false, verifyErrWrap(kind, err, "structural verification failed")
	}

	parent, ok, err := c.store.Get(chainhash.Hash(block.Header.PrevBlock))
	if err != nil {
		return false, err
	}
	if !ok {
		c.bufferOrphan(hash, block)
		return false, ErrOrphan
	}

	candidate, err := c.contextValidate(parent, block, target)
	if err != nil {
		return false, err
	}

	// Persist as known regardless of which branch it lands on; an
	// unconnected side-branch block records only its tx list until (if
	// ever) it is connected, at which point connectBlock backfills
	// TxOutChanges.
	if err := c.store.Put(candidate, storedUndoableFromBlock(hash, block)); err != nil {
		return false, err
	}

	head, err := c.store.ChainHead()
	if err != nil {
		return false, err
	}

	var connected bool
	switch {
	case chainhash.Hash(block.Header.PrevBlock) == head.Hash():
		if err := c.extend(candidate, block); err != nil {
			return false, err
		}
		connected = true
	case candidate.ChainWork.Cmp(head.ChainWork) > 0:
		if err := c.reorganize(candidate, block); err != nil {
			return false, err
		}
		connected = true
	default:
		// Valid side branch, not (yet) the best chain.
	}

	c.processOrphans(hash)
	return connected, nil
}

func mustTxs(block *wire.MsgBlock) []*wire.MsgTx {
	txs, _ := block.Txs()
	return txs
}

func storedUndoableFromBlock(hash chainhash.Hash, block *wire.MsgBlock) store.StoredUndoableBlock {
	return store.StoredUndoableBlock{Hash: hash, Transactions: mustTxs(block)}
}

func (c *Chain) notifyConnect(head store.StoredBlock) {
	for _, l := range c.onConnect {
		l(head)
	}
}
