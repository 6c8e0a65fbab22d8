package wire

import "io"

const netAddrWithTimeSize = 4 + 8 + 16 + 2

// MsgAddr carries a peer address book sample. Capped at 1024 entries per
// spec.md §4.1.
type MsgAddr struct {
	list *lazyList[NetAddress]
}

func newAddrList(items []NetAddress) *lazyList[NetAddress] {
	return newLazyListFromItems[NetAddress](items, decodeAddrWithTime, encodeAddrWithTime)
}

func decodeAddrWithTime(r io.Reader) (NetAddress, error) {
	return decodeNetAddress(r, true)
}

func encodeAddrWithTime(w io.Writer, a NetAddress) error {
	return a.encode(w, true, ProtocolVersion)
}

// NewMsgAddr constructs an addr message from a list of addresses.
func NewMsgAddr(addrs []NetAddress) *MsgAddr {
	return &MsgAddr{list: newAddrList(addrs)}
}

func (m *MsgAddr) Command() Command { return CmdAddr }

// AddrList returns the decoded address list, parsing lazily on first call.
func (m *MsgAddr) AddrList() ([]NetAddress, error) { return m.list.Items() }

func (m *MsgAddr) Encode(w io.Writer, pver uint32) error {
	if m.list == nil {
		m.list = newAddrList(nil)
	}
	return m.list.Encode(w)
}

func (m *MsgAddr) Decode(r io.Reader, pver uint32) error {
	count, err := ReadVarInt(r)
	if err != nil {
		return err
	}
	if int(count) > 1024 {
		return protoErr(0, "addr entry count %d exceeds maximum 1024", count)
	}
	raw, err := readExactly(r, int(count)*netAddrWithTimeSize)
	if err != nil {
		return err
	}
	m.list = newLazyList[NetAddress](raw, count, decodeAddrWithTime, encodeAddrWithTime)
	return nil
}
