// Package chainhash provides the 32-byte double-SHA256 hash identity used
// throughout the wire codec, block/transaction model, and block store.
package chainhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Size is the number of bytes in a Hash.
const Size = 32

// Hash is a 32-byte hash, stored internally exactly as it appears on the
// wire. String() and big.Int conversions treat it as little-endian, per the
// Bitcoin convention of displaying hashes byte-reversed.
type Hash [Size]byte

// Zero is the all-zero hash, used as the coinbase prevOut hash and the
// "no parent" sentinel for the genesis block.
var Zero = Hash{}

// NewFromBytes builds a Hash from a 32-byte slice, erroring if the length
// is wrong.
func NewFromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, fmt.Errorf("chainhash: invalid length %d, expected %d", len(b), Size)
	}
	copy(h[:], b)
	return h, nil
}

// NewFromStr parses the reversed hex display form (as printed by block
// explorers and RPCs) into a Hash.
func NewFromStr(s string) (Hash, error) {
	var h Hash
	if len(s) != Size*2 {
		return h, fmt.Errorf("chainhash: invalid hex length %d", len(s))
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	for i := 0; i < Size/2; i++ {
		decoded[i], decoded[Size-1-i] = decoded[Size-1-i], decoded[i]
	}
	copy(h[:], decoded)
	return h, nil
}

// String returns the reversed hex display form.
func (h Hash) String() string {
	rev := make([]byte, Size)
	for i := 0; i < Size; i++ {
		rev[i] = h[Size-1-i]
	}
	return hex.EncodeToString(rev)
}

// IsZero reports whether this is the all-zero hash.
func (h Hash) IsZero() bool {
	return h == Zero
}

// Big interprets the hash as a little-endian unsigned integer, the way
// proof-of-work target comparisons require.
func (h Hash) Big() *big.Int {
	buf := make([]byte, Size)
	for i := 0; i < Size; i++ {
		buf[i] = h[Size-1-i]
	}
	return new(big.Int).SetBytes(buf)
}

// LessOrEqual reports whether this hash, interpreted as a little-endian
// integer, is <= other. Used for proof-of-work checks.
func (h Hash) LessOrEqual(other *big.Int) bool {
	return h.Big().Cmp(other) <= 0
}

// DoubleHashB returns the double-SHA256 digest of b.
func DoubleHashB(b []byte) []byte {
	first := sha256.Sum256(b)
	second := sha256.Sum256(first[:])
	return second[:]
}

// DoubleHashH returns the double-SHA256 digest of b as a Hash.
func DoubleHashH(b []byte) Hash {
	var h Hash
	copy(h[:], DoubleHashB(b))
	return h
}
