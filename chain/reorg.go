package chain

import (
	"fmt"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/store"
	"github.com/coreward/fullnode/wire"
)

// findFork returns the highest block common to both a's and b's ancestry,
// walking PrevBlock pointers back from whichever side is taller until
// heights match, then walking both together until hashes agree (spec.md
// §4.4.2).
func (c *Chain) findFork(a, b store.StoredBlock) (store.StoredBlock, error) {
	var err error
	for a.Height > b.Height {
		a, err = c.parentOf(a)
		if err != nil {
			return store.StoredBlock{}, err
		}
	}
	for b.Height > a.Height {
		b, err = c.parentOf(b)
		if err != nil {
			return store.StoredBlock{}, err
		}
	}
	for a.Hash() != b.Hash() {
		if a.Height == 0 {
			return store.StoredBlock{}, fmt.Errorf("chain: no common ancestor found")
		}
		a, err = c.parentOf(a)
		if err != nil {
			return store.StoredBlock{}, err
		}
		b, err = c.parentOf(b)
		if err != nil {
			return store.StoredBlock{}, err
		}
	}
	return a, nil
}

func (c *Chain) parentOf(b store.StoredBlock) (store.StoredBlock, error) {
	parent, ok, err := c.store.Get(chainhash.Hash(b.Header.PrevBlock))
	if err != nil {
		return store.StoredBlock{}, err
	}
	if !ok {
		return store.StoredBlock{}, fmt.Errorf("chain: missing parent of %s", b.Hash())
	}
	return parent, nil
}

// collectDescending returns from and every ancestor down to, but
// excluding, stopAt, ordered from highest to lowest (from first).
func (c *Chain) collectDescending(from, stopAt store.StoredBlock) ([]store.StoredBlock, error) {
	var chain []store.StoredBlock
	cur := from
	for cur.Hash() != stopAt.Hash() {
		chain = append(chain, cur)
		var err error
		cur, err = c.parentOf(cur)
		if err != nil {
			return nil, err
		}
	}
	return chain, nil
}

// blockFromStored reconstructs a *wire.MsgBlock from a stored block's
// header and its still-available undo transaction list. It fails if the
// block has already been finalized (its full tx list discarded), which
// should not occur inside the reorg window this is used within.
func (c *Chain) blockFromStored(sb store.StoredBlock) (*wire.MsgBlock, error) {
	undo, ok, err := c.store.GetUndo(sb.Hash())
	if err != nil {
		return nil, err
	}
	if !ok || undo.Transactions == nil {
		return nil, fmt.Errorf("chain: full transactions for %s no longer available (finalized)", sb.Hash())
	}
	return wire.NewMsgBlock(sb.Header, undo.Transactions), nil
}

// reorganize switches the active chain from its current head to
// candidate, which has strictly greater chain work: disconnect the
// current chain down to the fork point, then connect the new branch's
// blocks in ascending order. Any failure while connecting the new branch
// rolls back to the original head, leaving the UTXO set exactly as it
// was (spec.md §4.4.2, §4.4.3).
func (c *Chain) reorganize(candidate store.StoredBlock, newTip *wire.MsgBlock) error {
	head, err := c.store.ChainHead()
	if err != nil {
		return err
	}
	fork, err := c.findFork(head, candidate)
	if err != nil {
		return err
	}

	oldChain, err := c.collectDescending(head, fork)
	if err != nil {
		return err
	}
	newChainDesc, err := c.collectDescending(candidate, fork)
	if err != nil {
		return err
	}
	newChain := make([]store.StoredBlock, len(newChainDesc))
	for i, b := range newChainDesc {
		newChain[len(newChainDesc)-1-i] = b
	}

	var disconnected []store.StoredBlock
	for _, b := range oldChain {
		if err := c.disconnectBlock(b); err != nil {
			c.restoreAfterFailedReorg(nil, disconnected, head)
			return fmt.Errorf("chain: reorg disconnect failed: %w", err)
		}
		disconnected = append(disconnected, b)
	}

	var connected []store.StoredBlock
	for i, nb := range newChain {
		var block *wire.MsgBlock
		if i == len(newChain)-1 && nb.Hash() == candidate.Hash() {
			block = newTip
		} else {
			block, err = c.blockFromStored(nb)
			if err != nil {
				c.restoreAfterFailedReorg(connected, disconnected, head)
				return fmt.Errorf("chain: reorg connect failed: %w", err)
			}
		}
		if err := c.connectBlock(nb, block); err != nil {
			c.restoreAfterFailedReorg(connected, disconnected, head)
			return fmt.Errorf("chain: reorg connect failed: %w", err)
		}
		connected = append(connected, nb)
	}

	c.notifyConnect(candidate)
	return nil
}

// restoreAfterFailedReorg undoes a partially-applied reorganization:
// disconnect whatever new-branch blocks were connected so far (reverse
// order), reconnect the blocks that were disconnected from the original
// chain (forward order, since disconnected is head-first), and pin the
// chain head back to originalHead.
func (c *Chain) restoreAfterFailedReorg(connected, disconnected []store.StoredBlock, originalHead store.StoredBlock) {
	for i := len(connected) - 1; i >= 0; i-- {
		if err := c.disconnectBlock(connected[i]); err != nil {
			c.log.Error("chain: failed to unwind partial reorg, store may be inconsistent")
			return
		}
	}
	for i := len(disconnected) - 1; i >= 0; i-- {
		b := disconnected[i]
		block, err := c.blockFromStored(b)
		if err != nil {
			c.log.Error("chain: failed to restore original chain after failed reorg")
			return
		}
		if err := c.connectBlock(b, block); err != nil {
			c.log.Error("chain: failed to restore original chain after failed reorg")
			return
		}
	}
}
