package wire

import "io"

// MsgVerAck acknowledges a version message; it carries no payload.
type MsgVerAck struct{}

func (m *MsgVerAck) Command() Command                     { return CmdVerAck }
func (m *MsgVerAck) Encode(w io.Writer, pver uint32) error { return nil }
func (m *MsgVerAck) Decode(r io.Reader, pver uint32) error { return nil }

// MsgGetAddr requests a sample of the peer's known addresses.
type MsgGetAddr struct{}

func (m *MsgGetAddr) Command() Command                     { return CmdGetAddr }
func (m *MsgGetAddr) Encode(w io.Writer, pver uint32) error { return nil }
func (m *MsgGetAddr) Decode(r io.Reader, pver uint32) error { return nil }

// MsgMemPool requests the peer's pending-transaction set.
type MsgMemPool struct{}

func (m *MsgMemPool) Command() Command                     { return CmdMemPool }
func (m *MsgMemPool) Encode(w io.Writer, pver uint32) error { return nil }
func (m *MsgMemPool) Decode(r io.Reader, pver uint32) error { return nil }

// MsgFilterClear clears a previously loaded bloom filter. Codec-complete
// per spec.md §4.1's message list; no filter-matching engine consumes it
// (SPEC_FULL.md §7).
type MsgFilterClear struct{}

func (m *MsgFilterClear) Command() Command                     { return CmdFilterClear }
func (m *MsgFilterClear) Encode(w io.Writer, pver uint32) error { return nil }
func (m *MsgFilterClear) Decode(r io.Reader, pver uint32) error { return nil }

// MsgPing carries a random nonce for RTT measurement (spec.md §4.5).
type MsgPing struct {
	Nonce uint64
}

func (m *MsgPing) Command() Command { return CmdPing }
func (m *MsgPing) Encode(w io.Writer, pver uint32) error {
	return WriteUint64LE(w, m.Nonce)
}
func (m *MsgPing) Decode(r io.Reader, pver uint32) error {
	n, err := ReadUint64LE(r)
	m.Nonce = n
	return err
}

// MsgPong echoes a ping's nonce.
type MsgPong struct {
	Nonce uint64
}

func (m *MsgPong) Command() Command { return CmdPong }
func (m *MsgPong) Encode(w io.Writer, pver uint32) error {
	return WriteUint64LE(w, m.Nonce)
}
func (m *MsgPong) Decode(r io.Reader, pver uint32) error {
	n, err := ReadUint64LE(r)
	m.Nonce = n
	return err
}

// MsgGetBlocks requests inv messages for blocks following a set of
// locator hashes, stopping at hashStop (or the peer's best tip if zero).
type MsgGetBlocks struct {
	ProtocolVersion    uint32
	BlockLocatorHashes [][32]byte
	HashStop           [32]byte
}

func (m *MsgGetBlocks) Command() Command { return CmdGetBlocks }

func (m *MsgGetBlocks) Encode(w io.Writer, pver uint32) error {
	return encodeLocatorMsg(w, m.ProtocolVersion, m.BlockLocatorHashes, m.HashStop)
}

func (m *MsgGetBlocks) Decode(r io.Reader, pver uint32) error {
	v, hashes, stop, err := decodeLocatorMsg(r)
	if err != nil {
		return err
	}
	m.ProtocolVersion, m.BlockLocatorHashes, m.HashStop = v, hashes, stop
	return nil
}

// MsgGetHeaders is identical in wire shape to getblocks but asks for
// headers only (spec.md §4.1).
type MsgGetHeaders struct {
	ProtocolVersion    uint32
	BlockLocatorHashes [][32]byte
	HashStop           [32]byte
}

func (m *MsgGetHeaders) Command() Command { return CmdGetHeaders }

func (m *MsgGetHeaders) Encode(w io.Writer, pver uint32) error {
	return encodeLocatorMsg(w, m.ProtocolVersion, m.BlockLocatorHashes, m.HashStop)
}

func (m *MsgGetHeaders) Decode(r io.Reader, pver uint32) error {
	v, hashes, stop, err := decodeLocatorMsg(r)
	if err != nil {
		return err
	}
	m.ProtocolVersion, m.BlockLocatorHashes, m.HashStop = v, hashes, stop
	return nil
}

func encodeLocatorMsg(w io.Writer, pver uint32, hashes [][32]byte, stop [32]byte) error {
	if err := WriteUint32LE(w, pver); err != nil {
		return err
	}
	if err := WriteVarInt(w, uint64(len(hashes))); err != nil {
		return err
	}
	for _, h := range hashes {
		if err := WriteHash(w, h); err != nil {
			return err
		}
	}
	return WriteHash(w, stop)
}

func decodeLocatorMsg(r io.Reader) (uint32, [][32]byte, [32]byte, error) {
	var stop [32]byte
	pver, err := ReadUint32LE(r)
	if err != nil {
		return 0, nil, stop, err
	}
	count, err := ReadVarInt(r)
	if err != nil {
		return 0, nil, stop, err
	}
	if count > 2000 {
		return 0, nil, stop, protoErr(0, "locator hash count %d exceeds maximum 2000", count)
	}
	hashes := make([][32]byte, count)
	for i := range hashes {
		h, err := ReadHash(r)
		if err != nil {
			return 0, nil, stop, err
		}
		hashes[i] = h
	}
	stop, err = ReadHash(r)
	if err != nil {
		return 0, nil, stop, err
	}
	return pver, hashes, stop, nil
}
