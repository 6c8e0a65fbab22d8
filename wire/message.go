package wire

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

// Command identifies a message's kind. Polymorphic operations (parse,
// serialize) dispatch on this tag rather than on a type hierarchy — per
// spec.md §9's replacement for the source's deep Message inheritance.
type Command string

const (
	CmdVersion     Command = "version"
	CmdVerAck      Command = "verack"
	CmdAddr        Command = "addr"
	CmdInv         Command = "inv"
	CmdGetData     Command = "getdata"
	CmdGetBlocks   Command = "getblocks"
	CmdGetHeaders  Command = "getheaders"
	CmdTx          Command = "tx"
	CmdBlock       Command = "block"
	CmdHeaders     Command = "headers"
	CmdGetAddr     Command = "getaddr"
	CmdMemPool     Command = "mempool"
	CmdPing        Command = "ping"
	CmdPong        Command = "pong"
	CmdNotFound    Command = "notfound"
	CmdFilterLoad  Command = "filterload"
	CmdFilterAdd   Command = "filteradd"
	CmdFilterClear Command = "filterclear"
	CmdMerkleBlock Command = "merkleblock"
	CmdAlert       Command = "alert"
	CmdReject      Command = "reject"
)

// Message is implemented by every concrete message type. Encode/Decode
// operate on the payload only; framing (magic/command/length/checksum) is
// handled by WriteMessage/ReadMessage.
type Message interface {
	Command() Command
	Encode(w io.Writer, pver uint32) error
	Decode(r io.Reader, pver uint32) error
}

// header is the 24-byte frame preceding every message payload.
type header struct {
	Magic    uint32
	Command  [12]byte
	Length   uint32
	Checksum [4]byte
}

const headerSize = 24

// ProtocolError carries the byte offset and cause of a malformed message,
// per spec.md §4.1's failure-mode requirement. It is recovered within the
// peer (disconnect) rather than being fatal to the node (spec.md §7).
type ProtocolError struct {
	Offset int64
	Cause  error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("wire: protocol error at offset %d: %s", e.Offset, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

func protoErr(offset int64, format string, args ...any) error {
	return &ProtocolError{Offset: offset, Cause: fmt.Errorf(format, args...)}
}

func encodeCommand(cmd Command) [12]byte {
	var out [12]byte
	copy(out[:], cmd)
	return out
}

func decodeCommand(raw [12]byte) (Command, error) {
	end := bytes.IndexByte(raw[:], 0)
	if end == -1 {
		end = len(raw)
	}
	for _, b := range raw[end:] {
		if b != 0 {
			return "", fmt.Errorf("wire: command has non-null bytes after terminator")
		}
	}
	return Command(raw[:end]), nil
}

func checksum(payload []byte) [4]byte {
	sum := sha256.Sum256(payload)
	sum2 := sha256.Sum256(sum[:])
	var out [4]byte
	copy(out[:], sum2[:4])
	return out
}

// WriteMessage frames and writes msg to w.
func WriteMessage(w io.Writer, msg Message, magic uint32, pver uint32) error {
	var payload bytes.Buffer
	if err := msg.Encode(&payload, pver); err != nil {
		return err
	}
	if payload.Len() > MaxMessagePayload {
		return fmt.Errorf("wire: payload too large: %d bytes", payload.Len())
	}
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, magic)
	cmdBytes := encodeCommand(msg.Command())
	buf.Write(cmdBytes[:])
	binary.Write(&buf, binary.LittleEndian, uint32(payload.Len()))
	sum := checksum(payload.Bytes())
	buf.Write(sum[:])
	buf.Write(payload.Bytes())
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadMessage reads one framed message from r, dispatching on the command
// tag to the right concrete type. Unknown commands are reported via
// *UnknownCommandError so the caller can skip-and-log per spec.md §4.1,
// rather than disconnecting the peer.
func ReadMessage(r io.Reader, magic uint32, pver uint32) (Message, error) {
	var rawHdr [headerSize]byte
	if _, err := io.ReadFull(r, rawHdr[:]); err != nil {
		return nil, err
	}
	gotMagic := binary.LittleEndian.Uint32(rawHdr[0:4])
	if gotMagic != magic {
		return nil, protoErr(0, "unexpected magic %x, want %x", gotMagic, magic)
	}
	var cmdRaw [12]byte
	copy(cmdRaw[:], rawHdr[4:16])
	cmd, err := decodeCommand(cmdRaw)
	if err != nil {
		return nil, protoErr(4, "%s", err)
	}
	length := binary.LittleEndian.Uint32(rawHdr[16:20])
	if length > MaxMessagePayload {
		return nil, protoErr(16, "payload length %d exceeds maximum", length)
	}
	var wantSum [4]byte
	copy(wantSum[:], rawHdr[20:24])

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	gotSum := checksum(payload)
	if gotSum != wantSum {
		return nil, protoErr(headerSize, "checksum mismatch for %s", cmd)
	}

	msg, ok := newMessageForCommand(cmd)
	if !ok {
		return nil, &UnknownCommandError{Command: cmd, Payload: payload}
	}
	if err := msg.Decode(bytes.NewReader(payload), pver); err != nil {
		return nil, protoErr(headerSize, "decoding %s: %s", cmd, err)
	}
	return msg, nil
}

// UnknownCommandError signals that a frame carried a command this codec
// does not recognize. Per spec.md §4.1, the caller should log a warning
// and keep the connection open rather than treat this as fatal.
type UnknownCommandError struct {
	Command Command
	Payload []byte
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("wire: unknown command %q (%d byte payload)", e.Command, len(e.Payload))
}

func newMessageForCommand(cmd Command) (Message, bool) {
	switch cmd {
	case CmdVersion:
		return &MsgVersion{}, true
	case CmdVerAck:
		return &MsgVerAck{}, true
	case CmdAddr:
		return &MsgAddr{}, true
	case CmdInv:
		return newMsgInvLike(CmdInv), true
	case CmdGetData:
		return newMsgInvLike(CmdGetData), true
	case CmdNotFound:
		return newMsgInvLike(CmdNotFound), true
	case CmdGetBlocks:
		return &MsgGetBlocks{}, true
	case CmdGetHeaders:
		return &MsgGetHeaders{}, true
	case CmdTx:
		return &MsgTx{}, true
	case CmdBlock:
		return &MsgBlock{}, true
	case CmdHeaders:
		return &MsgHeaders{}, true
	case CmdGetAddr:
		return &MsgGetAddr{}, true
	case CmdMemPool:
		return &MsgMemPool{}, true
	case CmdPing:
		return &MsgPing{}, true
	case CmdPong:
		return &MsgPong{}, true
	case CmdFilterLoad:
		return &MsgFilterLoad{}, true
	case CmdFilterAdd:
		return &MsgFilterAdd{}, true
	case CmdFilterClear:
		return &MsgFilterClear{}, true
	case CmdMerkleBlock:
		return &MsgMerkleBlock{}, true
	case CmdAlert:
		return &MsgAlert{}, true
	case CmdReject:
		return &MsgReject{}, true
	default:
		return nil, false
	}
}
