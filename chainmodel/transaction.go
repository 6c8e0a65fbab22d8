// Package chainmodel implements the Block & Transaction component from
// spec.md §4.2: hash identity, structural verification, the Merkle tree,
// and the legacy signature hash. It builds on the wire-level structures
// rather than duplicating them, since a transaction's identity and
// signature hash are functions of its exact wire encoding.
package chainmodel

import (
	"bytes"
	"fmt"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/wire"
)

// MaxMoney is the maximum possible number of satoshis (21M BTC), used to
// bound individual and summed output values (spec.md §4.2).
const MaxMoney = 21_000_000 * 1e8

// SigHash type flags (spec.md §4.2).
const (
	SigHashAll          uint32 = 0x1
	SigHashNone         uint32 = 0x2
	SigHashSingle       uint32 = 0x3
	SigHashAnyOneCanPay uint32 = 0x80
)

// TxHash returns the transaction's identity: double-SHA256 of its
// canonical serialized body (spec.md §3).
func TxHash(tx *wire.MsgTx) (chainhash.Hash, error) {
	var buf bytes.Buffer
	if err := tx.Encode(&buf, wire.ProtocolVersion); err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(buf.Bytes()), nil
}

// IsCoinbase reports whether tx is a coinbase transaction: exactly one
// input whose previous outpoint is the zero hash / 0xFFFFFFFF index
// (spec.md §3).
func IsCoinbase(tx *wire.MsgTx) (bool, error) {
	ins, err := tx.Inputs()
	if err != nil {
		return false, err
	}
	if len(ins) != 1 {
		return false, nil
	}
	op := ins[0].PreviousOutPoint
	return op.Hash == chainhash.Zero && op.Index == 0xFFFFFFFF, nil
}

// VerifyIsolated checks the structural invariants spec.md §4.2 requires
// independent of any UTXO context: non-empty inputs/outputs, no duplicate
// inputs, and output values within [0, MaxMoney].
func VerifyIsolated(tx *wire.MsgTx) error {
	ins, err := tx.Inputs()
	if err != nil {
		return err
	}
	outs, err := tx.Outputs()
	if err != nil {
		return err
	}
	if len(ins) == 0 {
		return fmt.Errorf("chainmodel: transaction has no inputs")
	}
	if len(outs) == 0 {
		return fmt.Errorf("chainmodel: transaction has no outputs")
	}
	seen := make(map[wire.OutPoint]struct{}, len(ins))
	for _, in := range ins {
		if _, dup := seen[in.PreviousOutPoint]; dup {
			return fmt.Errorf("chainmodel: duplicate input %x:%d",
				in.PreviousOutPoint.Hash, in.PreviousOutPoint.Index)
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}
	isCoinbase, err := IsCoinbase(tx)
	if err != nil {
		return err
	}
	if isCoinbase && len(ins[0].SignatureScript) > 100 {
		return fmt.Errorf("chainmodel: coinbase scriptSig exceeds 100 bytes")
	}
	var total int64
	for _, out := range outs {
		if out.Value < 0 {
			return fmt.Errorf("chainmodel: negative output value %d", out.Value)
		}
		if out.Value > MaxMoney {
			return fmt.Errorf("chainmodel: output value %d exceeds max money", out.Value)
		}
		total += out.Value
		if total > MaxMoney {
			return fmt.Errorf("chainmodel: total output value exceeds max money")
		}
	}
	return nil
}
