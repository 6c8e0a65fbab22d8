package wire

import "io"

// InvType identifies what an inventory vector refers to.
type InvType uint32

const (
	InvTypeError InvType = 0
	InvTypeTx    InvType = 1
	InvTypeBlock InvType = 2
)

// InvVect is a single inventory vector: a type tag plus the hash of the
// referenced tx or block.
type InvVect struct {
	Type InvType
	Hash [32]byte
}

func encodeInvVect(w io.Writer, v InvVect) error {
	if err := WriteUint32LE(w, uint32(v.Type)); err != nil {
		return err
	}
	return WriteHash(w, v.Hash)
}

func decodeInvVect(r io.Reader) (InvVect, error) {
	var v InvVect
	t, err := ReadUint32LE(r)
	if err != nil {
		return v, err
	}
	v.Type = InvType(t)
	h, err := ReadHash(r)
	if err != nil {
		return v, err
	}
	v.Hash = h
	return v, nil
}

// msgInvLike backs inv, getdata, and notfound: three messages with an
// identical wire shape (spec.md §4.1), differing only in their command
// tag and semantics at the peer layer. One lazy-parsed implementation
// serves all three, dispatched on cmd.
type msgInvLike struct {
	cmd  Command
	list *lazyList[InvVect]
}

func newMsgInvLike(cmd Command) *msgInvLike {
	return &msgInvLike{cmd: cmd, list: newLazyListFromItems[InvVect](nil, decodeInvVect, encodeInvVect)}
}

// NewMsgInv constructs an empty inv message.
func NewMsgInv() *msgInvLike { return newMsgInvLike(CmdInv) }

// NewMsgGetData constructs an empty getdata message.
func NewMsgGetData() *msgInvLike { return newMsgInvLike(CmdGetData) }

// NewMsgNotFound constructs an empty notfound message.
func NewMsgNotFound() *msgInvLike { return newMsgInvLike(CmdNotFound) }

func (m *msgInvLike) Command() Command { return m.cmd }

func (m *msgInvLike) Items() ([]InvVect, error) { return m.list.Items() }

func (m *msgInvLike) AddInvVect(v InvVect) error { return m.list.Append(v) }

func maxEntriesFor(cmd Command) int {
	if cmd == CmdAddr {
		return 1024
	}
	return 50000
}

func (m *msgInvLike) Encode(w io.Writer, pver uint32) error {
	return m.list.Encode(w)
}

func (m *msgInvLike) Decode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if int(count) > maxEntriesFor(m.cmd) {
		return protoErr(0, "%s entry count %d exceeds maximum %d", m.cmd, count, maxEntriesFor(m.cmd))
	}
	raw, err := readExactly(r, int(count)*36)
	if err != nil {
		return err
	}
	m.list = newLazyList[InvVect](raw, count, decodeInvVect, encodeInvVect)
	return nil
}

func readExactly(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
