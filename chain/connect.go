package chain

import (
	"fmt"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/store"
	"github.com/coreward/fullnode/wire"
	"go.uber.org/zap"
)

// connectBlock validates block's transactions against the current UTXO
// set, applies the resulting spends/creations, and advances the chain
// head to candidate. All store mutations happen inside one batch write
// so a validation failure midway leaves the UTXO set untouched (spec.md
// §4.4.1, §4.4.3).
func (c *Chain) connectBlock(candidate store.StoredBlock, block *wire.MsgBlock) error {
	if err := c.store.BeginDatabaseBatchWrite(); err != nil {
		return err
	}
	changes, err := c.applyBlock(candidate, block)
	if err != nil {
		_ = c.store.AbortDatabaseBatchWrite()
		return err
	}
	if err := c.store.Put(candidate, store.StoredUndoableBlock{
		Hash:         candidate.Hash(),
		Transactions: mustTxs(block),
		TxOutChanges: changes,
	}); err != nil {
		_ = c.store.AbortDatabaseBatchWrite()
		return err
	}
	if err := c.store.SetChainHead(candidate); err != nil {
		_ = c.store.AbortDatabaseBatchWrite()
		return err
	}
	if err := c.store.CommitDatabaseBatchWrite(); err != nil {
		return err
	}
	if err := c.store.SetVerifiedChainHead(candidate); err != nil {
		return err
	}
	c.maybeFinalize(candidate)
	return nil
}

// applyBlock runs the per-transaction UTXO and consensus-value checks
// (spec.md §4.4.1): input availability, coinbase maturity, script
// verification via the oracle, value conservation, and the sigops
// budget. It records every spent and created output so the caller can
// persist them as this block's undo data.
func (c *Chain) applyBlock(candidate store.StoredBlock, block *wire.MsgBlock) (*store.TransactionOutputChanges, error) {
	txs, err := block.Txs()
	if err != nil {
		return nil, err
	}
	changes := &store.TransactionOutputChanges{}
	var totalFees int64
	sigOps := 0

	for txIdx, tx := range txs {
		isCoinbase, err := chainmodel.IsCoinbase(tx)
		if err != nil {
			return nil, err
		}
		ins, err := tx.Inputs()
		if err != nil {
			return nil, err
		}
		outs, err := tx.Outputs()
		if err != nil {
			return nil, err
		}
		txHash, err := chainmodel.TxHash(tx)
		if err != nil {
			return nil, err
		}

		var inputValue int64
		if !isCoinbase {
			for i, in := range ins {
				spent, ok, err := c.store.GetTransactionOutput(chainhash.Hash(in.PreviousOutPoint.Hash), in.PreviousOutPoint.Index)
				if err != nil {
					return nil, err
				}
				if !ok {
					return nil, verifyErrf(ErrKindDoubleSpend, "tx %s input %d spends unknown output", txHash, i)
				}
				if spent.IsCoinbase && candidate.Height-spent.Height < c.params.SpendableCoinbaseDepth {
					return nil, verifyErrf(ErrKindImmatureCoinbase, "tx %s input %d spends immature coinbase output", txHash, i)
				}
				if err := c.oracle.Verify(tx, i, spent.PkScript); err != nil {
					return nil, verifyErrWrap(ErrKindScript, err, "tx %s input %d script verification failed", txHash, i)
				}
				if err := c.store.RemoveUnspentTransactionOutput(spent.Hash, spent.Index); err != nil {
					return nil, err
				}
				changes.Spent = append(changes.Spent, spent)
				inputValue += spent.Value
				sigOps++
			}
		}

		var outputValue int64
		for i, out := range outs {
			outputValue += out.Value
			stored := store.StoredTxOut{
				Hash:       txHash,
				Index:      uint32(i),
				Value:      out.Value,
				PkScript:   out.PkScript,
				Height:     candidate.Height,
				IsCoinbase: isCoinbase,
			}
			if err := c.store.AddUnspentTransactionOutput(stored); err != nil {
				return nil, err
			}
			changes.Created = append(changes.Created, stored)
			sigOps++
		}

		if isCoinbase {
			if txIdx != 0 {
				return nil, verifyErrf(ErrKindCoinbase, "coinbase transaction not first in block")
			}
		} else {
			if inputValue < outputValue {
				return nil, verifyErrf(ErrKindValueOverflow, "tx %s outputs exceed inputs", txHash)
			}
			totalFees += inputValue - outputValue
		}

		if sigOps > c.params.MaxSigOpsPerBlock {
			return nil, verifyErrf(ErrKindSigOps, "block exceeds max sigops per block")
		}
	}

	coinbase := txs[0]
	coinbaseOuts, err := coinbase.Outputs()
	if err != nil {
		return nil, err
	}
	var coinbaseValue int64
	for _, out := range coinbaseOuts {
		coinbaseValue += out.Value
	}
	subsidy := c.params.Subsidy(candidate.Height)
	if coinbaseValue > subsidy+totalFees {
		return nil, verifyErrf(ErrKindCoinbase, "coinbase claims %d, max allowed %d", coinbaseValue, subsidy+totalFees)
	}

	return changes, nil
}

// disconnectBlock reverses a previously-connected block's effect on the
// UTXO set using its recorded TransactionOutputChanges, and moves the
// chain head back to its parent (spec.md §4.4.2).
func (c *Chain) disconnectBlock(stored store.StoredBlock) error {
	hash := stored.Hash()
	undo, ok, err := c.store.GetUndo(hash)
	if err != nil {
		return err
	}
	if !ok || undo.TxOutChanges == nil {
		return fmt.Errorf("chain: no undo data for connected block %s", hash)
	}

	if err := c.store.BeginDatabaseBatchWrite(); err != nil {
		return err
	}
	for _, out := range undo.TxOutChanges.Created {
		if err := c.store.RemoveUnspentTransactionOutput(out.Hash, out.Index); err != nil {
			_ = c.store.AbortDatabaseBatchWrite()
			return err
		}
	}
	for _, out := range undo.TxOutChanges.Spent {
		if err := c.store.AddUnspentTransactionOutput(out); err != nil {
			_ = c.store.AbortDatabaseBatchWrite()
			return err
		}
	}
	parent, ok, err := c.store.Get(chainhash.Hash(stored.Header.PrevBlock))
	if err != nil {
		_ = c.store.AbortDatabaseBatchWrite()
		return err
	}
	if !ok {
		_ = c.store.AbortDatabaseBatchWrite()
		return fmt.Errorf("chain: missing parent %x while disconnecting", stored.Header.PrevBlock)
	}
	if err := c.store.SetChainHead(parent); err != nil {
		_ = c.store.AbortDatabaseBatchWrite()
		return err
	}
	return c.store.CommitDatabaseBatchWrite()
}

// maybeFinalize prunes the full transaction list of the block that just
// fell outside the reorg window, retaining only its
// TransactionOutputChanges (spec.md §4.3, §8 invariant 5).
func (c *Chain) maybeFinalize(head store.StoredBlock) {
	if head.Height < c.params.MaxReorgDepth {
		return
	}
	ancestor, err := c.ancestor(head, c.params.MaxReorgDepth)
	if err != nil {
		c.log.Warn("chain: could not locate finalize target", zap.Error(err))
		return
	}
	if err := c.store.Finalize(ancestor.Hash()); err != nil {
		c.log.Warn("chain: finalize failed", zap.Error(err))
	}
}

// extend connects a block directly onto the current chain head, the
// common-case single-block advance.
func (c *Chain) extend(candidate store.StoredBlock, block *wire.MsgBlock) error {
	if err := c.connectBlock(candidate, block); err != nil {
		return err
	}
	c.notifyConnect(candidate)
	return nil
}
