package wire

import (
	"bytes"
	"io"
)

// BlockHeaderSize is the fixed 80-byte header size (spec.md §3).
const BlockHeaderSize = 80

// BlockHeader is the 80-byte Bitcoin block header.
type BlockHeader struct {
	Version    int32
	PrevBlock  [32]byte
	MerkleRoot [32]byte
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Encode writes the header in its canonical 80-byte form.
func (h BlockHeader) Encode(w io.Writer) error {
	if err := writeI32(w, h.Version); err != nil {
		return err
	}
	if err := WriteHash(w, h.PrevBlock); err != nil {
		return err
	}
	if err := WriteHash(w, h.MerkleRoot); err != nil {
		return err
	}
	if err := WriteUint32LE(w, h.Timestamp); err != nil {
		return err
	}
	if err := WriteUint32LE(w, h.Bits); err != nil {
		return err
	}
	return WriteUint32LE(w, h.Nonce)
}

// Bytes returns the 80-byte canonical encoding.
func (h BlockHeader) Bytes() []byte {
	var buf bytes.Buffer
	_ = h.Encode(&buf)
	return buf.Bytes()
}

// DecodeBlockHeader reads the fixed 80-byte header.
func DecodeBlockHeader(r io.Reader) (BlockHeader, error) {
	var h BlockHeader
	v, err := readI32(r)
	if err != nil {
		return h, err
	}
	h.Version = v
	prev, err := ReadHash(r)
	if err != nil {
		return h, err
	}
	h.PrevBlock = prev
	merkle, err := ReadHash(r)
	if err != nil {
		return h, err
	}
	h.MerkleRoot = merkle
	ts, err := ReadUint32LE(r)
	if err != nil {
		return h, err
	}
	h.Timestamp = ts
	bits, err := ReadUint32LE(r)
	if err != nil {
		return h, err
	}
	h.Bits = bits
	nonce, err := ReadUint32LE(r)
	if err != nil {
		return h, err
	}
	h.Nonce = nonce
	return h, nil
}

// MsgBlock is a full block: header plus an ordered transaction list. The
// transaction list is lazily parsed (spec.md §4.1): a block received and
// re-broadcast unchanged re-serializes to its original bytes without ever
// decoding a single transaction.
type MsgBlock struct {
	Header       BlockHeader
	Transactions *lazyList[*MsgTx]
}

func decodeTxPtr(r io.Reader) (*MsgTx, error) {
	tx := &MsgTx{}
	if err := tx.Decode(r, ProtocolVersion); err != nil {
		return nil, err
	}
	return tx, nil
}

func encodeTxPtr(w io.Writer, tx *MsgTx) error {
	return tx.Encode(w, ProtocolVersion)
}

// NewMsgBlock constructs a block from a header and transaction list.
func NewMsgBlock(header BlockHeader, txs []*MsgTx) *MsgBlock {
	return &MsgBlock{
		Header:       header,
		Transactions: newLazyListFromItems(txs, decodeTxPtr, encodeTxPtr),
	}
}

func (m *MsgBlock) Command() Command { return CmdBlock }

// Txs returns the decoded transaction list, parsing lazily.
func (m *MsgBlock) Txs() ([]*MsgTx, error) { return m.Transactions.Items() }

// SetTx replaces a transaction and marks the block dirty so a later
// Encode re-serializes from structured state instead of the cached bytes
// — the parent-dirty propagation spec.md §9 calls for, with the block as
// the non-owning "parent index" over its transaction list.
func (m *MsgBlock) SetTx(i int, tx *MsgTx) error { return m.Transactions.Set(i, tx) }

func (m *MsgBlock) Encode(w io.Writer, pver uint32) error {
	if err := m.Header.Encode(w); err != nil {
		return err
	}
	return m.Transactions.Encode(w)
}

func (m *MsgBlock) Decode(r io.Reader, pver uint32) error {
	header, err := DecodeBlockHeader(r)
	if err != nil {
		return err
	}
	m.Header = header
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	// The transaction list runs to the end of the payload, so its bytes are
	// kept as they arrived and each tx is decoded on first access through
	// Txs; a malformed tx is therefore reported by Txs, not by Decode.
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.Transactions = newLazyList[*MsgTx](raw, count, decodeTxPtr, encodeTxPtr)
	return nil
}

// MsgHeaders carries a list of block headers, each followed by a
// transaction count that is always zero on the wire (spec.md §4.1).
type MsgHeaders struct {
	Headers []BlockHeader
}

func (m *MsgHeaders) Command() Command { return CmdHeaders }

func (m *MsgHeaders) Encode(w io.Writer, pver uint32) error {
	if err := WriteVarInt(w, uint64(len(m.Headers))); err != nil {
		return err
	}
	for _, h := range m.Headers {
		if err := h.Encode(w); err != nil {
			return err
		}
		if err := WriteVarInt(w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *MsgHeaders) Decode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if count > 2000 {
		return protoErr(0, "headers count %d exceeds maximum 2000", count)
	}
	headers := make([]BlockHeader, count)
	for i := range headers {
		h, err := DecodeBlockHeader(r)
		if err != nil {
			return err
		}
		headers[i] = h
		txCount, err := ReadVarInt(r)
		if err != nil {
			return err
		}
		if txCount != 0 {
			return protoErr(0, "header entry claims %d transactions, want 0", txCount)
		}
	}
	m.Headers = headers
	return nil
}
