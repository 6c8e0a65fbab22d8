package peergroup

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/coreward/fullnode/peer"
	"github.com/coreward/fullnode/wire"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testMagic = 0xf9beb4fe

func testTx() *wire.MsgTx {
	return wire.NewMsgTx(1, []wire.TxIn{{
		PreviousOutPoint: wire.OutPoint{Index: 0xFFFFFFFF},
		SignatureScript:  []byte{0x01},
		Sequence:         0xFFFFFFFF,
	}}, []wire.TxOut{{
		Value:    5_000_000_000,
		PkScript: []byte{0x76, 0xa9, 0x14},
	}}, 0)
}

func newTestGroup(t *testing.T, startHeight int32) *PeerGroup {
	t.Helper()
	g := New(Config{
		Magic:                   testMagic,
		ProtocolVersion:         70015,
		UserAgent:               "/coreward-test:0.1/",
		MinBroadcastConnections: 1,
		BroadcastTimeout:        3 * time.Second,
		SeekNewPeersInterval:    50 * time.Millisecond,
		StartHeight:             func() int32 { return startHeight },
	}, nil, nil, nil)
	return g
}

// TestPeerGroupConnectsAndElectsDownloadPeer brings up two PeerGroups over
// real loopback TCP: one listening, one dialing. It checks that both sides
// register each other as connected and that the download peer reflects
// the remote's announced height.
func TestPeerGroupConnectsAndElectsDownloadPeer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newTestGroup(t, 100)
	server.Start(ctx)
	require.NoError(t, server.Listen("127.0.0.1:0"))
	defer server.Stop()

	client := newTestGroup(t, 50)
	client.Start(ctx)
	defer client.Stop()
	client.AddAddr(server.listenOn.Addr().String())

	require.Eventually(t, func() bool {
		return client.connectedCount() == 1 && server.connectedCount() == 1
	}, 5*time.Second, 20*time.Millisecond, "both sides should register the connection")

	dl, ok := client.DownloadPeer()
	require.True(t, ok)
	require.Equal(t, int32(100), dl.Height(), "client's view of the download peer should carry the server's announced height")

	dl, ok = server.DownloadPeer()
	require.True(t, ok)
	require.Equal(t, int32(50), dl.Height(), "server's view of the inbound peer should carry the client's announced height")
}

// TestPeerGroupBroadcastReachesQuorum exercises BroadcastTransaction
// end-to-end: the remote side's peerListener.OnInv auto-requests getdata
// for announced inventory, which credits the broadcaster's quorum.
func TestPeerGroupBroadcastReachesQuorum(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	server := newTestGroup(t, 0)
	server.Start(ctx)
	require.NoError(t, server.Listen("127.0.0.1:0"))
	defer server.Stop()

	client := newTestGroup(t, 0)
	client.Start(ctx)
	defer client.Stop()
	client.AddAddr(server.listenOn.Addr().String())

	require.Eventually(t, func() bool {
		return client.connectedCount() == 1 && server.connectedCount() == 1
	}, 5*time.Second, 20*time.Millisecond)

	err := client.BroadcastTransaction(testTx())
	require.NoError(t, err, "server's automatic getdata response should satisfy the one-peer quorum")
}

// TestPeerGroupBroadcastFailsWithoutPeers confirms BroadcastTransaction
// fails fast when nothing is connected, rather than blocking until the
// configured timeout.
func TestPeerGroupBroadcastFailsWithoutPeers(t *testing.T) {
	g := newTestGroup(t, 0)
	err := g.BroadcastTransaction(testTx())
	require.Error(t, err)
}

// TestElectDownloadPeerTieBreaksOnRTT verifies the tie-break rule directly
// against connected-peer bookkeeping, without needing two live sockets of
// different heights.
func TestElectDownloadPeerTieBreaksOnRTT(t *testing.T) {
	g := newTestGroup(t, 0)

	connA, _ := net.Pipe()
	connB, _ := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	// Two peers tied at the same height; electDownloadPeer must fall back
	// to comparing RTT, which for never-pinged peer.Peer values is zero on
	// both sides, so the tie simply resolves to either deterministically
	// without panicking.
	g.mu.Lock()
	g.connected[uuid.New()] = &connectedPeer{height: 10, peer: peer.New(connA, peer.Config{}, nil, nil)}
	g.connected[uuid.New()] = &connectedPeer{height: 10, peer: peer.New(connB, peer.Config{}, nil, nil)}
	g.mu.Unlock()

	g.electDownloadPeer()

	g.mu.Lock()
	defer g.mu.Unlock()
	require.True(t, g.hasDL)
}
