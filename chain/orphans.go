package chain

import (
	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/wire"
)

// bufferOrphan stores a block whose parent isn't known yet. Once
// params.MaxOrphanBlocks orphans are buffered, the incoming (newest)
// orphan is dropped and the buffered ones are kept.
func (c *Chain) bufferOrphan(hash chainhash.Hash, block *wire.MsgBlock) {
	if _, exists := c.orphans[hash]; exists {
		return
	}
	if len(c.orphans) >= c.params.MaxOrphanBlocks {
		return
	}
	parentHash := chainhash.Hash(block.Header.PrevBlock)
	c.orphans[hash] = block
	c.orphansByParent[parentHash] = append(c.orphansByParent[parentHash], hash)
	c.orphanOrder = append(c.orphanOrder, hash)
}

func (c *Chain) evictOrphan(hash chainhash.Hash) {
	block, ok := c.orphans[hash]
	if !ok {
		return
	}
	parentHash := chainhash.Hash(block.Header.PrevBlock)
	siblings := c.orphansByParent[parentHash]
	for i, h := range siblings {
		if h == hash {
			c.orphansByParent[parentHash] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	delete(c.orphans, hash)
}

// processOrphans attempts to connect any buffered orphans whose parent is
// now the given hash, recursively following the chain of orphans that
// become connectable.
func (c *Chain) processOrphans(parentHash chainhash.Hash) {
	children := c.orphansByParent[parentHash]
	if len(children) == 0 {
		return
	}
	delete(c.orphansByParent, parentHash)
	for _, hash := range children {
		block, ok := c.orphans[hash]
		if !ok {
			continue
		}
		delete(c.orphans, hash)
		for i, h := range c.orphanOrder {
			if h == hash {
				c.orphanOrder = append(c.orphanOrder[:i], c.orphanOrder[i+1:]...)
				break
			}
		}

		target := chainmodel.CompactToBig(block.Header.Bits)
		parent, ok, err := c.store.Get(chainhash.Hash(block.Header.PrevBlock))
		if err != nil || !ok {
			continue
		}
		candidate, err := c.contextValidate(parent, block, target)
		if err != nil {
			c.log.Debug("chain: buffered orphan failed context validation on replay")
			continue
		}
		hash2 := chainmodel.BlockHash(block.Header)
		if err := c.store.Put(candidate, storedUndoableFromBlock(hash2, block)); err != nil {
			continue
		}
		head, err := c.store.ChainHead()
		if err != nil {
			continue
		}
		switch {
		case chainhash.Hash(block.Header.PrevBlock) == head.Hash():
			_ = c.extend(candidate, block)
		case candidate.ChainWork.Cmp(head.ChainWork) > 0:
			_ = c.reorganize(candidate, block)
		}
		c.processOrphans(hash2)
	}
}
