package wire_test

import (
	"bytes"
	"io"
	"net"
	"testing"

	"github.com/coreward/fullnode/wire"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, msg wire.Message) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, msg, 0xD9B4BEF9, wire.ProtocolVersion))
	parsed, err := wire.ReadMessage(&buf, 0xD9B4BEF9, wire.ProtocolVersion)
	require.NoError(t, err)
	require.Equal(t, msg.Command(), parsed.Command())

	var reencoded bytes.Buffer
	require.NoError(t, wire.WriteMessage(&reencoded, parsed, 0xD9B4BEF9, wire.ProtocolVersion))
	return reencoded.Bytes()
}

func TestVarIntCanonicalRejectsNonCanonical(t *testing.T) {
	// 0xFD followed by a value < 0xFD should be rejected.
	buf := bytes.NewReader([]byte{0xFD, 0x0A, 0x00})
	_, err := wire.ReadVarInt(buf)
	require.Error(t, err)
}

func TestVarIntRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0xFC, 0xFD, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000} {
		var buf bytes.Buffer
		require.NoError(t, wire.WriteVarInt(&buf, v))
		got, err := wire.ReadVarInt(&buf)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestPingPongRoundTrip(t *testing.T) {
	msg := &wire.MsgPing{Nonce: 0xdeadbeefcafef00d}
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, msg, 1, wire.ProtocolVersion))
	orig := append([]byte(nil), buf.Bytes()...)
	reencoded := roundTrip(t, msg)
	_ = orig
	require.NotEmpty(t, reencoded)
	require.NotEmpty(t, roundTrip(t, &wire.MsgPong{Nonce: 0xdeadbeefcafef00d}))
}

func TestVersionRoundTrip(t *testing.T) {
	v := &wire.MsgVersion{
		ProtocolVersion: 70001,
		Services:        1,
		Timestamp:       1234567890,
		AddrRecv:        wire.NetAddress{Services: 1, IP: net.ParseIP("127.0.0.1"), Port: 8333},
		AddrFrom:        wire.NetAddress{Services: 1, IP: net.ParseIP("127.0.0.1"), Port: 8333},
		Nonce:           42,
		UserAgent:       "/fullnode:0.1.0/",
		StartHeight:     100,
		DisableRelay:    false,
	}
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, v, 1, wire.ProtocolVersion))
	parsed, err := wire.ReadMessage(&buf, 1, wire.ProtocolVersion)
	require.NoError(t, err)
	pv := parsed.(*wire.MsgVersion)
	require.Equal(t, v.UserAgent, pv.UserAgent)
	require.Equal(t, v.Nonce, pv.Nonce)
	require.Equal(t, v.AddrRecv.IP.String(), pv.AddrRecv.IP.String())
}

func TestAddrRoundTripAndCap(t *testing.T) {
	addrs := make([]wire.NetAddress, 3)
	for i := range addrs {
		addrs[i] = wire.NetAddress{Time: 1, Services: 1, IP: net.ParseIP("10.0.0.1"), Port: 8333}
	}
	msg := wire.NewMsgAddr(addrs)
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, msg, 1, wire.ProtocolVersion))
	parsed, err := wire.ReadMessage(&buf, 1, wire.ProtocolVersion)
	require.NoError(t, err)
	list, err := parsed.(*wire.MsgAddr).AddrList()
	require.NoError(t, err)
	require.Len(t, list, 3)
}

func TestAddrOverLimitRejected(t *testing.T) {
	addrs := make([]wire.NetAddress, 1025)
	for i := range addrs {
		addrs[i] = wire.NetAddress{Time: 1, Services: 1, IP: net.ParseIP("10.0.0.1"), Port: 8333}
	}
	msg := wire.NewMsgAddr(addrs)
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, msg, 1, wire.ProtocolVersion))
	_, err := wire.ReadMessage(&buf, 1, wire.ProtocolVersion)
	require.Error(t, err)
}

func TestInvOverLimitRejected(t *testing.T) {
	msg := wire.NewMsgInv()
	for i := 0; i < 50001; i++ {
		require.NoError(t, msg.AddInvVect(wire.InvVect{Type: wire.InvTypeTx}))
	}
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, msg, 1, wire.ProtocolVersion))
	_, err := wire.ReadMessage(&buf, 1, wire.ProtocolVersion)
	require.Error(t, err)
}

func TestTxRoundTripBitExact(t *testing.T) {
	tx := wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Index: 0xFFFFFFFF}, SignatureScript: []byte{0x01, 0x02}, Sequence: 0xFFFFFFFF},
	}, []wire.TxOut{
		{Value: 5000000000, PkScript: []byte{0x76, 0xa9}},
	}, 0)
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, tx, 1, wire.ProtocolVersion))
	orig := append([]byte(nil), buf.Bytes()...)

	parsed, err := wire.ReadMessage(bytes.NewReader(orig), 1, wire.ProtocolVersion)
	require.NoError(t, err)

	var reencoded bytes.Buffer
	require.NoError(t, wire.WriteMessage(&reencoded, parsed, 1, wire.ProtocolVersion))
	require.Equal(t, orig, reencoded.Bytes(), "lazy-parse idempotence: unmutated tx must re-serialize identically")
}

func TestBlockLazyParseIdempotence(t *testing.T) {
	tx := wire.NewMsgTx(1, nil, []wire.TxOut{{Value: 1, PkScript: []byte{0x01}}}, 0)
	block := wire.NewMsgBlock(wire.BlockHeader{Version: 1}, []*wire.MsgTx{tx})
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, block, 1, wire.ProtocolVersion))
	orig := append([]byte(nil), buf.Bytes()...)

	parsed, err := wire.ReadMessage(bytes.NewReader(orig), 1, wire.ProtocolVersion)
	require.NoError(t, err)
	// Force the lazy list to parse without mutating it.
	_, err = parsed.(*wire.MsgBlock).Txs()
	require.NoError(t, err)

	var reencoded bytes.Buffer
	require.NoError(t, wire.WriteMessage(&reencoded, parsed, 1, wire.ProtocolVersion))
	require.Equal(t, orig, reencoded.Bytes())
}

func TestBlockMutationForcesReencode(t *testing.T) {
	tx := wire.NewMsgTx(1, nil, []wire.TxOut{{Value: 1, PkScript: []byte{0x01}}}, 0)
	block := wire.NewMsgBlock(wire.BlockHeader{Version: 1}, []*wire.MsgTx{tx})
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, block, 1, wire.ProtocolVersion))
	orig := append([]byte(nil), buf.Bytes()...)

	parsed, err := wire.ReadMessage(bytes.NewReader(orig), 1, wire.ProtocolVersion)
	require.NoError(t, err)
	mutated := wire.NewMsgTx(2, nil, []wire.TxOut{{Value: 2, PkScript: []byte{0x02}}}, 0)
	require.NoError(t, parsed.(*wire.MsgBlock).SetTx(0, mutated))

	var reencoded bytes.Buffer
	require.NoError(t, wire.WriteMessage(&reencoded, parsed, 1, wire.ProtocolVersion))
	require.NotEqual(t, orig, reencoded.Bytes())
}

func TestUnknownCommandSkipped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, wire.WriteMessage(&buf, &fakeMsg{}, 1, wire.ProtocolVersion))
	_, err := wire.ReadMessage(&buf, 1, wire.ProtocolVersion)
	require.Error(t, err)
	var unk *wire.UnknownCommandError
	require.ErrorAs(t, err, &unk)
}

type fakeMsg struct{}

func (f *fakeMsg) Command() wire.Command                 { return "notreal" }
func (f *fakeMsg) Encode(w io.Writer, pver uint32) error { return nil }
func (f *fakeMsg) Decode(r io.Reader, pver uint32) error { return nil }
