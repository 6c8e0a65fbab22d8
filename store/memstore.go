package store

import (
	"errors"
	"sync"

	"github.com/coreward/fullnode/chainhash"
)

// MemStore is the in-memory FullPrunedBlockStore reference implementation.
// It is grounded on the teacher's internal/inv package: a single mutex
// guarding a handful of maps, the same "one lock, several maps" shape
// internal/inv.go uses for its block/utxo inventory, generalized here to
// also cover batched-write atomicity via an undo journal of closures.
type MemStore struct {
	mu sync.Mutex

	blocks map[chainhash.Hash]StoredBlock
	undo   map[chainhash.Hash]*StoredUndoableBlock
	utxos  map[UTXOKey]StoredTxOut

	chainHead        StoredBlock
	haveChainHead    bool
	verifiedHead     StoredBlock
	haveVerifiedHead bool

	batchActive bool
	journal     []func()
}

// NewMemStore returns an empty store.
func NewMemStore() *MemStore {
	return &MemStore{
		blocks: make(map[chainhash.Hash]StoredBlock),
		undo:   make(map[chainhash.Hash]*StoredUndoableBlock),
		utxos:  make(map[UTXOKey]StoredTxOut),
	}
}

func (s *MemStore) record(undo func()) {
	if s.batchActive {
		s.journal = append(s.journal, undo)
	}
}

func (s *MemStore) Put(block StoredBlock, undoBlock StoredUndoableBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := block.Hash()
	_, hadBlock := s.blocks[hash]
	var prevBlock StoredBlock
	if hadBlock {
		prevBlock = s.blocks[hash]
	}
	_, hadUndo := s.undo[hash]
	var prevUndo *StoredUndoableBlock
	if hadUndo {
		prevUndo = s.undo[hash]
	}

	s.blocks[hash] = block
	stored := undoBlock
	s.undo[hash] = &stored

	s.record(func() {
		if hadBlock {
			s.blocks[hash] = prevBlock
		} else {
			delete(s.blocks, hash)
		}
		if hadUndo {
			s.undo[hash] = prevUndo
		} else {
			delete(s.undo, hash)
		}
	})
	return nil
}

func (s *MemStore) Get(hash chainhash.Hash) (StoredBlock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[hash]
	return b, ok, nil
}

func (s *MemStore) GetUndo(hash chainhash.Hash) (StoredUndoableBlock, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.undo[hash]
	if !ok {
		return StoredUndoableBlock{}, false, nil
	}
	return *u, true, nil
}

func (s *MemStore) ChainHead() (StoredBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveChainHead {
		return StoredBlock{}, &ErrNotFound{What: "chain head"}
	}
	return s.chainHead, nil
}

func (s *MemStore) SetChainHead(b StoredBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.chainHead, s.haveChainHead
	s.chainHead = b
	s.haveChainHead = true
	s.record(func() {
		s.chainHead = prev
		s.haveChainHead = had
	})
	return nil
}

func (s *MemStore) VerifiedChainHead() (StoredBlock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.haveVerifiedHead {
		return StoredBlock{}, &ErrNotFound{What: "verified chain head"}
	}
	return s.verifiedHead, nil
}

func (s *MemStore) SetVerifiedChainHead(b StoredBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, had := s.verifiedHead, s.haveVerifiedHead
	s.verifiedHead = b
	s.haveVerifiedHead = true
	s.record(func() {
		s.verifiedHead = prev
		s.haveVerifiedHead = had
	})
	return nil
}

func (s *MemStore) AddUnspentTransactionOutput(out StoredTxOut) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := UTXOKey{Hash: out.Hash, Index: out.Index}
	prev, had := s.utxos[key]
	s.utxos[key] = out
	s.record(func() {
		if had {
			s.utxos[key] = prev
		} else {
			delete(s.utxos, key)
		}
	})
	return nil
}

func (s *MemStore) RemoveUnspentTransactionOutput(hash chainhash.Hash, index uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := UTXOKey{Hash: hash, Index: index}
	prev, had := s.utxos[key]
	delete(s.utxos, key)
	s.record(func() {
		if had {
			s.utxos[key] = prev
		}
	})
	return nil
}

func (s *MemStore) GetTransactionOutput(hash chainhash.Hash, index uint32) (StoredTxOut, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, ok := s.utxos[UTXOKey{Hash: hash, Index: index}]
	return out, ok, nil
}

func (s *MemStore) BeginDatabaseBatchWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batchActive {
		return errors.New("store: batch already active")
	}
	s.batchActive = true
	s.journal = s.journal[:0]
	return nil
}

func (s *MemStore) CommitDatabaseBatchWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchActive = false
	s.journal = nil
	return nil
}

func (s *MemStore) AbortDatabaseBatchWrite() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.journal) - 1; i >= 0; i-- {
		s.journal[i]()
	}
	s.batchActive = false
	s.journal = nil
	return nil
}

func (s *MemStore) Finalize(hash chainhash.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.undo[hash]
	if !ok {
		return &ErrNotFound{What: "undo block"}
	}
	if u.IsFinalized() {
		return nil
	}
	if u.TxOutChanges == nil {
		return errors.New("store: finalize called before TxOutChanges was recorded")
	}
	finalized := *u
	finalized.Transactions = nil
	s.undo[hash] = &finalized
	return nil
}

func (s *MemStore) LiveUndoBlocks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, u := range s.undo {
		if !u.IsFinalized() {
			n++
		}
	}
	return n
}
