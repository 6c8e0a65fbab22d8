package wire

import (
	"io"
)

// MsgVersion is the first message exchanged in the handshake (spec.md
// §4.5). FeeFilter/relay tracking (SPEC_FULL.md §7) lives in the
// DisableRelay field, parsed for protocol versions that carry it.
type MsgVersion struct {
	ProtocolVersion int32
	Services        uint64
	Timestamp       int64
	AddrRecv        NetAddress
	AddrFrom        NetAddress
	Nonce           uint64
	UserAgent       string
	StartHeight     int32
	DisableRelay    bool // BIP37 fRelay, present when len(payload) allows
}

func (m *MsgVersion) Command() Command { return CmdVersion }

func (m *MsgVersion) Encode(w io.Writer, pver uint32) error {
	if err := writeI32(w, m.ProtocolVersion); err != nil {
		return err
	}
	if err := WriteUint64LE(w, m.Services); err != nil {
		return err
	}
	if err := writeI64(w, m.Timestamp); err != nil {
		return err
	}
	if err := m.AddrRecv.encode(w, false, pver); err != nil {
		return err
	}
	if err := m.AddrFrom.encode(w, false, pver); err != nil {
		return err
	}
	if err := WriteUint64LE(w, m.Nonce); err != nil {
		return err
	}
	if err := WriteVarString(w, m.UserAgent); err != nil {
		return err
	}
	if err := writeI32(w, m.StartHeight); err != nil {
		return err
	}
	return WriteBool(w, !m.DisableRelay)
}

func (m *MsgVersion) Decode(r io.Reader, pver uint32) error {
	pv, err := readI32(r)
	if err != nil {
		return err
	}
	m.ProtocolVersion = pv
	services, err := ReadUint64LE(r)
	if err != nil {
		return err
	}
	m.Services = services
	ts, err := readI64(r)
	if err != nil {
		return err
	}
	m.Timestamp = ts
	addrRecv, err := decodeNetAddress(r, false)
	if err != nil {
		return err
	}
	m.AddrRecv = addrRecv
	addrFrom, err := decodeNetAddress(r, false)
	if err != nil {
		return err
	}
	m.AddrFrom = addrFrom
	nonce, err := ReadUint64LE(r)
	if err != nil {
		return err
	}
	m.Nonce = nonce
	ua, err := ReadVarString(r, 256)
	if err != nil {
		return err
	}
	m.UserAgent = ua
	sh, err := readI32(r)
	if err != nil {
		return err
	}
	m.StartHeight = sh
	// fRelay is optional (older peers omit it); absence is not an error.
	relay, err := ReadBool(r)
	if err == nil {
		m.DisableRelay = !relay
	} else if err != io.EOF {
		return err
	}
	return nil
}

func writeI32(w io.Writer, v int32) error { return WriteUint32LE(w, uint32(v)) }
func readI32(r io.Reader) (int32, error) {
	v, err := ReadUint32LE(r)
	return int32(v), err
}
func writeI64(w io.Writer, v int64) error { return WriteUint64LE(w, uint64(v)) }
func readI64(r io.Reader) (int64, error) {
	v, err := ReadUint64LE(r)
	return int64(v), err
}

// ReadBool reads a single boolean byte.
func ReadBool(r io.Reader) (bool, error) {
	b, err := ReadUint8(r)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// WriteBool writes a single boolean byte.
func WriteBool(w io.Writer, v bool) error {
	if v {
		return WriteUint8(w, 1)
	}
	return WriteUint8(w, 0)
}
