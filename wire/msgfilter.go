package wire

import "io"

const maxFilterSize = 36000
const maxFilterAddSize = 520

// MsgFilterLoad installs a bloom filter (BIP37 wire shape). No
// filter-matching engine consumes this in the current scope
// (SPEC_FULL.md §7); the codec is bit-exact regardless.
type MsgFilterLoad struct {
	Filter    []byte
	HashFuncs uint32
	Tweak     uint32
	Flags     uint8
}

func (m *MsgFilterLoad) Command() Command { return CmdFilterLoad }

func (m *MsgFilterLoad) Encode(w io.Writer, pver uint32) error {
	if err := WriteVarBytes(w, m.Filter); err != nil {
		return err
	}
	if err := WriteUint32LE(w, m.HashFuncs); err != nil {
		return err
	}
	if err := WriteUint32LE(w, m.Tweak); err != nil {
		return err
	}
	return WriteUint8(w, m.Flags)
}

func (m *MsgFilterLoad) Decode(r io.Reader, pver uint32) error {
	filter, err := ReadVarBytes(r, maxFilterSize)
	if err != nil {
		return err
	}
	m.Filter = filter
	hf, err := ReadUint32LE(r)
	if err != nil {
		return err
	}
	m.HashFuncs = hf
	tweak, err := ReadUint32LE(r)
	if err != nil {
		return err
	}
	m.Tweak = tweak
	flags, err := ReadUint8(r)
	if err != nil {
		return err
	}
	m.Flags = flags
	return nil
}

// MsgFilterAdd appends one element to the loaded bloom filter.
type MsgFilterAdd struct {
	Data []byte
}

func (m *MsgFilterAdd) Command() Command { return CmdFilterAdd }

func (m *MsgFilterAdd) Encode(w io.Writer, pver uint32) error {
	return WriteVarBytes(w, m.Data)
}

func (m *MsgFilterAdd) Decode(r io.Reader, pver uint32) error {
	data, err := ReadVarBytes(r, maxFilterAddSize)
	if err != nil {
		return err
	}
	m.Data = data
	return nil
}

// MsgMerkleBlock carries a block header plus a partial merkle tree proving
// a subset of its transactions are included, per BIP37.
type MsgMerkleBlock struct {
	Header       BlockHeader
	Transactions uint32
	Hashes       [][32]byte
	Flags        []byte
}

func (m *MsgMerkleBlock) Command() Command { return CmdMerkleBlock }

func (m *MsgMerkleBlock) Encode(w io.Writer, pver uint32) error {
	if err := m.Header.Encode(w); err != nil {
		return err
	}
	if err := WriteUint32LE(w, m.Transactions); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(m.Hashes))); err != nil {
		return err
	}
	for _, h := range m.Hashes {
		if err := WriteHash(w, h); err != nil {
			return err
		}
	}
	return WriteVarBytes(w, m.Flags)
}

func (m *MsgMerkleBlock) Decode(r io.Reader, pver uint32) error {
	header, err := DecodeBlockHeader(r)
	if err != nil {
		return err
	}
	m.Header = header
	txCount, err := ReadUint32LE(r)
	if err != nil {
		return err
	}
	m.Transactions = txCount
	hashCount, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	hashes := make([][32]byte, hashCount)
	for i := range hashes {
		h, err := ReadHash(r)
		if err != nil {
			return err
		}
		hashes[i] = h
	}
	m.Hashes = hashes
	flags, err := ReadVarBytes(r, 4096)
	if err != nil {
		return err
	}
	m.Flags = flags
	return nil
}

// MsgAlert is the long-retired network alert message. Parsed/serialized
// for wire completeness (spec.md §4.1 lists it); nothing in this module
// acts on an alert's content.
type MsgAlert struct {
	Payload   []byte
	Signature []byte
}

func (m *MsgAlert) Command() Command { return CmdAlert }

func (m *MsgAlert) Encode(w io.Writer, pver uint32) error {
	if err := WriteVarBytes(w, m.Payload); err != nil {
		return err
	}
	return WriteVarBytes(w, m.Signature)
}

func (m *MsgAlert) Decode(r io.Reader, pver uint32) error {
	payload, err := ReadVarBytes(r, 8192)
	if err != nil {
		return err
	}
	m.Payload = payload
	sig, err := ReadVarBytes(r, 256)
	if err != nil {
		return err
	}
	m.Signature = sig
	return nil
}

// RejectCode enumerates the reason a peer rejected a message.
type RejectCode uint8

const (
	RejectMalformed  RejectCode = 0x01
	RejectInvalid    RejectCode = 0x10
	RejectObsolete   RejectCode = 0x11
	RejectDuplicate  RejectCode = 0x12
	RejectNonstandard RejectCode = 0x40
	RejectCheckpoint RejectCode = 0x43
)

// MsgReject tells a peer why one of its messages was rejected.
type MsgReject struct {
	Message string
	Code    RejectCode
	Reason  string
	Data    [32]byte
	HasData bool
}

func (m *MsgReject) Command() Command { return CmdReject }

func (m *MsgReject) Encode(w io.Writer, pver uint32) error {
	if err := WriteVarString(w, m.Message); err != nil {
		return err
	}
	if err := WriteUint8(w, uint8(m.Code)); err != nil {
		return err
	}
	if err := WriteVarString(w, m.Reason); err != nil {
		return err
	}
	if m.HasData {
		return WriteHash(w, m.Data)
	}
	return nil
}

func (m *MsgReject) Decode(r io.Reader, pver uint32) error {
	msg, err := ReadVarString(r, 12)
	if err != nil {
		return err
	}
	m.Message = msg
	code, err := ReadUint8(r)
	if err != nil {
		return err
	}
	m.Code = RejectCode(code)
	reason, err := ReadVarString(r, 256)
	if err != nil {
		return err
	}
	m.Reason = reason
	if m.Message == string(CmdTx) || m.Message == string(CmdBlock) {
		data, err := ReadHash(r)
		if err == nil {
			m.Data = data
			m.HasData = true
		} else if err != io.EOF {
			return err
		}
	}
	return nil
}
