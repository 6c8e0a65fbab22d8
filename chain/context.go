package chain

import (
	"fmt"
	"math/big"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/store"
	"github.com/coreward/fullnode/wire"
)

// contextValidate runs the checks that depend on chain state rather than
// the block alone: median-time-past, checkpoint enforcement, and
// difficulty retarget verification (spec.md §4.4, §3). On success it
// returns the candidate StoredBlock (height, chain work) for block.
func (c *Chain) contextValidate(parent store.StoredBlock, block *wire.MsgBlock, target *big.Int) (store.StoredBlock, error) {
	height := parent.Height + 1
	hash := chainmodel.BlockHash(block.Header)

	if expHash, ok := c.params.CheckpointHash(height); ok && expHash != hash {
		return store.StoredBlock{}, verifyErrf(ErrKindCheckpoint, "block at checkpoint height %d does not match checkpoint %s", height, expHash)
	}

	times, err := c.ancestorTimestamps(parent, medianTimeSpan)
	if err != nil {
		return store.StoredBlock{}, err
	}
	median := chainmodel.MedianTime(times)
	if block.Header.Timestamp <= median {
		return store.StoredBlock{}, verifyErrf(ErrKindTimestamp, "block time %d not after median time past %d", block.Header.Timestamp, median)
	}

	wantBits, err := c.expectedBits(parent)
	if err != nil {
		return store.StoredBlock{}, err
	}
	if block.Header.Bits != wantBits {
		return store.StoredBlock{}, verifyErrf(ErrKindDifficulty, "block bits %x != expected %x", block.Header.Bits, wantBits)
	}

	work := blockWork(target)
	chainWork := new(big.Int).Add(parent.ChainWork, work)
	return store.StoredBlock{Header: block.Header, ChainWork: chainWork, Height: height}, nil
}

// ancestor walks back `distance` blocks from start via PrevBlock
// pointers. distance 0 returns start itself.
func (c *Chain) ancestor(start store.StoredBlock, distance uint32) (store.StoredBlock, error) {
	cur := start
	for i := uint32(0); i < distance; i++ {
		if cur.Height == 0 {
			return cur, nil
		}
		prev, ok, err := c.store.Get(chainhash.Hash(cur.Header.PrevBlock))
		if err != nil {
			return store.StoredBlock{}, err
		}
		if !ok {
			return store.StoredBlock{}, fmt.Errorf("chain: missing ancestor of %s at distance %d", start.Hash(), i)
		}
		cur = prev
	}
	return cur, nil
}

// ancestorTimestamps returns up to `span` timestamps of parent and its
// predecessors, most-recent first order not guaranteed (MedianTime sorts).
func (c *Chain) ancestorTimestamps(parent store.StoredBlock, span int) ([]uint32, error) {
	times := make([]uint32, 0, span)
	cur := parent
	for i := 0; i < span; i++ {
		times = append(times, cur.Header.Timestamp)
		if cur.Height == 0 {
			break
		}
		prev, ok, err := c.store.Get(chainhash.Hash(cur.Header.PrevBlock))
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		cur = prev
	}
	return times, nil
}

// expectedBits computes the required `bits` field for the block that
// would follow parent: unchanged within a retarget period, recomputed
// (clamped to [/4, *4] of the previous timespan, and to MaxTarget) at
// each retarget boundary (spec.md §3).
func (c *Chain) expectedBits(parent store.StoredBlock) (uint32, error) {
	nextHeight := parent.Height + 1
	if nextHeight%c.params.RetargetInterval != 0 {
		return parent.Header.Bits, nil
	}
	if parent.Height+1 < c.params.RetargetInterval {
		return parent.Header.Bits, nil
	}
	first, err := c.ancestor(parent, c.params.RetargetInterval-1)
	if err != nil {
		return 0, err
	}
	actualTimespan := int64(parent.Header.Timestamp) - int64(first.Header.Timestamp)
	minSpan := int64(c.params.TargetTimespan.Seconds()) / 4
	maxSpan := int64(c.params.TargetTimespan.Seconds()) * 4
	if actualTimespan < minSpan {
		actualTimespan = minSpan
	}
	if actualTimespan > maxSpan {
		actualTimespan = maxSpan
	}

	oldTarget := chainmodel.CompactToBig(parent.Header.Bits)
	newTarget := new(big.Int).Mul(oldTarget, big.NewInt(actualTimespan))
	newTarget.Div(newTarget, big.NewInt(int64(c.params.TargetTimespan.Seconds())))
	if newTarget.Cmp(c.params.MaxTarget) > 0 {
		newTarget = c.params.MaxTarget
	}
	return chainmodel.BigToCompact(newTarget), nil
}
