// Package wire implements the Bitcoin P2P wire protocol: canonical,
// bit-exact serialization and deserialization of every message defined in
// spec.md §4.1, including lazy parsing of the large composite messages
// (block, addr, inv-lists) so that re-serializing an unmutated message
// returns the exact bytes it was parsed from.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// ProtocolVersion is the wire protocol version this codec speaks.
const ProtocolVersion = 70001

// ReadUint8 reads a single byte.
func ReadUint8(r io.Reader) (uint8, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

// WriteUint8 writes a single byte.
func WriteUint8(w io.Writer, v uint8) error {
	_, err := w.Write([]byte{v})
	return err
}

// ReadUint16LE reads a little-endian uint16.
func ReadUint16LE(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

// WriteUint16LE writes a little-endian uint16.
func WriteUint16LE(w io.Writer, v uint16) error {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint16BE reads a big-endian uint16 (used for PeerAddress.Port).
func ReadUint16BE(r io.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}

// WriteUint16BE writes a big-endian uint16.
func WriteUint16BE(w io.Writer, v uint16) error {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint32LE reads a little-endian uint32.
func ReadUint32LE(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// WriteUint32LE writes a little-endian uint32.
func WriteUint32LE(w io.Writer, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadUint64LE reads a little-endian uint64.
func ReadUint64LE(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// WriteUint64LE writes a little-endian uint64.
func WriteUint64LE(w io.Writer, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

// ReadInt64LE reads a little-endian int64 (used for tx output values).
func ReadInt64LE(r io.Reader) (int64, error) {
	v, err := ReadUint64LE(r)
	return int64(v), err
}

// WriteInt64LE writes a little-endian int64.
func WriteInt64LE(w io.Writer, v int64) error {
	return WriteUint64LE(w, uint64(v))
}

// ReadVarInt reads a variable-length integer. Non-canonical (non-shortest)
// encodings are rejected, per spec.md §4.1.
func ReadVarInt(r io.Reader) (uint64, error) {
	prefix, err := ReadUint8(r)
	if err != nil {
		return 0, err
	}
	switch prefix {
	case 0xFF:
		v, err := ReadUint64LE(r)
		if err != nil {
			return 0, err
		}
		if v <= 0xFFFFFFFF {
			return 0, fmt.Errorf("wire: non-canonical varint (8-byte form for value %d)", v)
		}
		return v, nil
	case 0xFE:
		v, err := ReadUint32LE(r)
		if err != nil {
			return 0, err
		}
		if uint64(v) <= 0xFFFF {
			return 0, fmt.Errorf("wire: non-canonical varint (4-byte form for value %d)", v)
		}
		return uint64(v), nil
	case 0xFD:
		v, err := ReadUint16LE(r)
		if err != nil {
			return 0, err
		}
		if uint64(v) < 0xFD {
			return 0, fmt.Errorf("wire: non-canonical varint (2-byte form for value %d)", v)
		}
		return uint64(v), nil
	default:
		return uint64(prefix), nil
	}
}

// WriteVarInt writes v in the shortest canonical varint form.
func WriteVarInt(w io.Writer, v uint64) error {
	switch {
	case v < 0xFD:
		return WriteUint8(w, uint8(v))
	case v <= 0xFFFF:
		if err := WriteUint8(w, 0xFD); err != nil {
			return err
		}
		return WriteUint16LE(w, uint16(v))
	case v <= 0xFFFFFFFF:
		if err := WriteUint8(w, 0xFE); err != nil {
			return err
		}
		return WriteUint32LE(w, uint32(v))
	default:
		if err := WriteUint8(w, 0xFF); err != nil {
			return err
		}
		return WriteUint64LE(w, v)
	}
}

// VarIntSize returns the number of bytes WriteVarInt would emit for v.
func VarIntSize(v uint64) int {
	switch {
	case v < 0xFD:
		return 1
	case v <= 0xFFFF:
		return 3
	case v <= 0xFFFFFFFF:
		return 5
	default:
		return 9
	}
}

// ReadVarBytes reads a varInt-prefixed byte string.
func ReadVarBytes(r io.Reader, maxSize uint64) ([]byte, error) {
	n, err := ReadVarInt(r)
	if err != nil {
		return nil, err
	}
	if n > maxSize {
		return nil, fmt.Errorf("wire: varbytes length %d exceeds max %d", n, maxSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteVarBytes writes a varInt-prefixed byte string.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadVarString reads a varInt-length-prefixed UTF-8 string.
func ReadVarString(r io.Reader, maxSize uint64) (string, error) {
	b, err := ReadVarBytes(r, maxSize)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteVarString writes a varInt-length-prefixed UTF-8 string.
func WriteVarString(w io.Writer, s string) error {
	return WriteVarBytes(w, []byte(s))
}

// ReadHash reads a raw 32-byte hash.
func ReadHash(r io.Reader) (h [32]byte, err error) {
	_, err = io.ReadFull(r, h[:])
	return h, err
}

// WriteHash writes a raw 32-byte hash.
func WriteHash(w io.Writer, h [32]byte) error {
	_, err := w.Write(h[:])
	return err
}

// MaxMessagePayload bounds any single message's payload, guarding against
// memory exhaustion from a malicious or corrupt peer.
const MaxMessagePayload = 32 * 1024 * 1024
