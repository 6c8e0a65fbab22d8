package chainmodel

import (
	"github.com/coreward/fullnode/chainhash"
)

// MerkleRoot computes the root of a Merkle tree over txHashes, duplicating
// the last element at each odd-width level (spec.md §4.2). An empty input
// returns the zero hash, which should never occur for a valid block since
// every block has at least a coinbase.
func MerkleRoot(txHashes []chainhash.Hash) chainhash.Hash {
	if len(txHashes) == 0 {
		return chainhash.Hash{}
	}
	level := make([]chainhash.Hash, len(txHashes))
	copy(level, txHashes)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			next[i] = hashPair(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func hashPair(a, b chainhash.Hash) chainhash.Hash {
	buf := make([]byte, 64)
	copy(buf[:32], a[:])
	copy(buf[32:], b[:])
	return chainhash.DoubleHashH(buf)
}
