package wire

import "io"

const maxScriptSize = 10000

// OutPoint identifies a previous transaction output being spent.
type OutPoint struct {
	Hash  [32]byte
	Index uint32
}

// TxIn is one transaction input (spec.md §3).
type TxIn struct {
	PreviousOutPoint OutPoint
	SignatureScript  []byte
	Sequence         uint32
}

// TxOut is one transaction output (spec.md §3).
type TxOut struct {
	Value    int64
	PkScript []byte
}

func decodeTxIn(r io.Reader) (TxIn, error) {
	var in TxIn
	h, err := ReadHash(r)
	if err != nil {
		return in, err
	}
	in.PreviousOutPoint.Hash = h
	idx, err := ReadUint32LE(r)
	if err != nil {
		return in, err
	}
	in.PreviousOutPoint.Index = idx
	script, err := ReadVarBytes(r, maxScriptSize)
	if err != nil {
		return in, err
	}
	in.SignatureScript = script
	seq, err := ReadUint32LE(r)
	if err != nil {
		return in, err
	}
	in.Sequence = seq
	return in, nil
}

func encodeTxIn(w io.Writer, in TxIn) error {
	if err := WriteHash(w, in.PreviousOutPoint.Hash); err != nil {
		return err
	}
	if err := WriteUint32LE(w, in.PreviousOutPoint.Index); err != nil {
		return err
	}
	if err := WriteVarBytes(w, in.SignatureScript); err != nil {
		return err
	}
	return WriteUint32LE(w, in.Sequence)
}

func decodeTxOut(r io.Reader) (TxOut, error) {
	var out TxOut
	v, err := ReadInt64LE(r)
	if err != nil {
		return out, err
	}
	out.Value = v
	script, err := ReadVarBytes(r, maxScriptSize)
	if err != nil {
		return out, err
	}
	out.PkScript = script
	return out, nil
}

func encodeTxOut(w io.Writer, out TxOut) error {
	if err := WriteInt64LE(w, out.Value); err != nil {
		return err
	}
	return WriteVarBytes(w, out.PkScript)
}

// MsgTx is a transaction: version, inputs, outputs, and lock time
// (spec.md §3). Inputs and outputs are held in lazyList containers but
// Decode parses them eagerly; an unmutated tx still re-serializes to its
// original bytes because every field has a single canonical encoding
// (spec.md §8 invariant 4), which matters because signatures commit to the
// exact serialization.
type MsgTx struct {
	Version  int32
	TxIn     *lazyList[TxIn]
	TxOut    *lazyList[TxOut]
	LockTime uint32
}

// NewMsgTx constructs a tx from structured fields.
func NewMsgTx(version int32, ins []TxIn, outs []TxOut, lockTime uint32) *MsgTx {
	return &MsgTx{
		Version:  version,
		TxIn:     newLazyListFromItems(ins, decodeTxIn, encodeTxIn),
		TxOut:    newLazyListFromItems(outs, decodeTxOut, encodeTxOut),
		LockTime: lockTime,
	}
}

func (m *MsgTx) Command() Command { return CmdTx }

// Inputs returns the decoded input list.
func (m *MsgTx) Inputs() ([]TxIn, error) { return m.TxIn.Items() }

// Outputs returns the decoded output list.
func (m *MsgTx) Outputs() ([]TxOut, error) { return m.TxOut.Items() }

// SetInput replaces an input and marks the tx dirty, per the mutation
// contract in spec.md §9 (used by the sighash pre-image builder).
func (m *MsgTx) SetInput(i int, in TxIn) error { return m.TxIn.Set(i, in) }

func (m *MsgTx) Encode(w io.Writer, pver uint32) error {
	if err := writeI32(w, m.Version); err != nil {
		return err
	}
	if err := m.TxIn.Encode(w); err != nil {
		return err
	}
	if err := m.TxOut.Encode(w); err != nil {
		return err
	}
	return WriteUint32LE(w, m.LockTime)
}

func (m *MsgTx) Decode(r io.Reader, pver uint32) error {
	version, err := readI32(r)
	if err != nil {
		return err
	}
	m.Version = version

	inCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	inItems := make([]TxIn, inCount)
	for i := range inItems {
		in, err := decodeTxIn(r)
		if err != nil {
			return err
		}
		inItems[i] = in
	}
	m.TxIn = newLazyListFromItems(inItems, decodeTxIn, encodeTxIn)

	outCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	outItems := make([]TxOut, outCount)
	for i := range outItems {
		out, err := decodeTxOut(r)
		if err != nil {
			return err
		}
		outItems[i] = out
	}
	m.TxOut = newLazyListFromItems(outItems, decodeTxOut, encodeTxOut)
	// Both lists were fully parsed above (tx inputs/outputs are small and
	// commonly re-signed), so dirty is left false only when nothing is
	// mutated afterward; Bytes() still re-encodes identically either way
	// since canonical scriptSig/amount encodings are unique.
	m.TxIn.dirty = false
	m.TxOut.dirty = false

	lockTime, err := ReadUint32LE(r)
	if err != nil {
		return err
	}
	m.LockTime = lockTime
	return nil
}

// Clone deep-copies the transaction, used by the sighash pre-image
// builder (chainmodel) which must not mutate the original.
func (m *MsgTx) Clone() (*MsgTx, error) {
	ins, err := m.Inputs()
	if err != nil {
		return nil, err
	}
	outs, err := m.Outputs()
	if err != nil {
		return nil, err
	}
	insCopy := make([]TxIn, len(ins))
	for i, in := range ins {
		scriptCopy := append([]byte(nil), in.SignatureScript...)
		insCopy[i] = TxIn{
			PreviousOutPoint: in.PreviousOutPoint,
			SignatureScript:  scriptCopy,
			Sequence:         in.Sequence,
		}
	}
	outsCopy := make([]TxOut, len(outs))
	for i, out := range outs {
		scriptCopy := append([]byte(nil), out.PkScript...)
		outsCopy[i] = TxOut{Value: out.Value, PkScript: scriptCopy}
	}
	return NewMsgTx(m.Version, insCopy, outsCopy, m.LockTime), nil
}
