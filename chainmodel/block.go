package chainmodel

import (
	"fmt"
	"math/big"
	"time"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/wire"
)

// BlockHash returns the block's identity: double-SHA256 of its 80-byte
// header, interpreted little-endian (spec.md §3).
func BlockHash(header wire.BlockHeader) chainhash.Hash {
	return chainhash.DoubleHashH(header.Bytes())
}

// TxHashes returns the double-SHA256 identity of every transaction in the
// block, in order.
func TxHashes(block *wire.MsgBlock) ([]chainhash.Hash, error) {
	txs, err := block.Txs()
	if err != nil {
		return nil, err
	}
	hashes := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		h, err := TxHash(tx)
		if err != nil {
			return nil, err
		}
		hashes[i] = h
	}
	return hashes, nil
}

// CompactToBig decodes Bitcoin's "compact" difficulty target encoding
// (the `bits` header field) into a big.Int target.
func CompactToBig(bits uint32) *big.Int {
	exponent := bits >> 24
	mantissa := bits & 0x007fffff
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		return big.NewInt(int64(mantissa))
	}
	result := big.NewInt(int64(mantissa))
	result.Lsh(result, uint(8*(exponent-3)))
	return result
}

// BigToCompact encodes a big.Int target into Bitcoin's compact form, the
// inverse of CompactToBig.
func BigToCompact(target *big.Int) uint32 {
	if target.Sign() == 0 {
		return 0
	}
	bytesVal := target.Bytes()
	exponent := uint32(len(bytesVal))
	var mantissa uint32
	if exponent <= 3 {
		mantissa = uint32(new(big.Int).Lsh(target, uint(8*(3-exponent))).Uint64())
	} else {
		shifted := new(big.Int).Rsh(target, uint(8*(exponent-3)))
		mantissa = uint32(shifted.Uint64())
	}
	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}
	return mantissa | (exponent << 24)
}

// BlockVerificationError carries the specific subkind of consensus
// failure, per spec.md §7.
type BlockVerificationError struct {
	Kind    string
	Message string
}

func (e *BlockVerificationError) Error() string {
	return fmt.Sprintf("chainmodel: %s: %s", e.Kind, e.Message)
}

func blockErr(kind, format string, args ...any) error {
	return &BlockVerificationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Verify runs the standalone (context-free) checks from spec.md §4.2:
// proof-of-work against target, Merkle root correctness, and per-
// transaction structural validity. Context-dependent checks (timestamp
// vs. median, difficulty retarget, checkpoints) live in package chain
// since they require chain state this function does not have.
func Verify(block *wire.MsgBlock, target *big.Int, now time.Time) error {
	hash := BlockHash(block.Header)
	if !hash.LessOrEqual(target) {
		return blockErr("BadPoW", "block hash %s exceeds target", hash)
	}
	if block.Header.Timestamp > uint32(now.Add(2*time.Hour).Unix()) {
		return blockErr("BadTimestamp", "block time %d too far in the future", block.Header.Timestamp)
	}

	txs, err := block.Txs()
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		return blockErr("BadMerkle", "block has no transactions")
	}
	hashes, err := TxHashes(block)
	if err != nil {
		return err
	}
	root := MerkleRoot(hashes)
	if root != chainhash.Hash(block.Header.MerkleRoot) {
		return blockErr("BadMerkle", "computed merkle root %s != header %x", root, block.Header.MerkleRoot)
	}

	seenTxIDs := make(map[chainhash.Hash]struct{}, len(txs))
	for i, tx := range txs {
		isCoinbase, err := IsCoinbase(tx)
		if err != nil {
			return err
		}
		if i == 0 && !isCoinbase {
			return blockErr("DuplicateTransaction", "first transaction is not coinbase")
		}
		if i != 0 && isCoinbase {
			return blockErr("DuplicateTransaction", "only the first transaction may be coinbase")
		}
		if err := VerifyIsolated(tx); err != nil {
			return blockErr("ValueOverflow", "%s", err)
		}
		if _, dup := seenTxIDs[hashes[i]]; dup {
			return blockErr("DuplicateTransaction", "duplicate transaction %s", hashes[i])
		}
		seenTxIDs[hashes[i]] = struct{}{}
	}
	return nil
}

// MedianTime computes the median of the given block times, per spec.md
// §3's "time > median of previous 11 block times" rule. times need not be
// sorted; MedianTime sorts a copy.
func MedianTime(times []uint32) uint32 {
	if len(times) == 0 {
		return 0
	}
	sorted := append([]uint32(nil), times...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted[len(sorted)/2]
}
