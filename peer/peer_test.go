package peer_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/coreward/fullnode/peer"
	"github.com/coreward/fullnode/wire"
	"github.com/stretchr/testify/require"
)

func testConfig(startHeight int32) peer.Config {
	return peer.Config{
		Magic:           0xFABFB5DA,
		ProtocolVersion: 70001,
		UserAgent:       "/fullnode:test/",
		Services:        0,
		StartHeight:     startHeight,
		Nonce:           1,
	}
}

type recordingListener struct {
	peer.NopListener
	mu       sync.Mutex
	versions []*wire.MsgVersion
	verAcks  int
	txs      []*wire.MsgTx
	blocks   []*wire.MsgBlock
}

func (l *recordingListener) OnVersion(p *peer.Peer, v *wire.MsgVersion) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.versions = append(l.versions, v)
}

func (l *recordingListener) OnVerAck(p *peer.Peer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.verAcks++
}

func (l *recordingListener) OnTx(p *peer.Peer, tx *wire.MsgTx) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.txs = append(l.txs, tx)
}

func (l *recordingListener) OnBlock(p *peer.Peer, block *wire.MsgBlock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks = append(l.blocks, block)
}

func pipePeers(t *testing.T, aListener, bListener peer.Listener) (*peer.Peer, *peer.Peer) {
	t.Helper()
	connA, connB := net.Pipe()
	a := peer.New(connA, testConfig(10), aListener, nil)
	b := peer.New(connB, testConfig(20), bListener, nil)

	var wg sync.WaitGroup
	var aErr, bErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		aErr = a.Handshake(context.Background(), false)
	}()
	go func() {
		defer wg.Done()
		bErr = b.Handshake(context.Background(), true)
	}()
	wg.Wait()
	require.NoError(t, aErr)
	require.NoError(t, bErr)
	return a, b
}

func TestHandshakeCompletesOnBothSides(t *testing.T) {
	aListen := &recordingListener{}
	bListen := &recordingListener{}
	a, b := pipePeers(t, aListen, bListen)
	defer a.Close()
	defer b.Close()

	require.Equal(t, peer.StateConnected, a.State())
	require.Equal(t, peer.StateConnected, b.State())
	require.Len(t, bListen.versions, 1)
	require.EqualValues(t, 10, bListen.versions[0].StartHeight)
	require.Len(t, aListen.versions, 1)
	require.EqualValues(t, 20, aListen.versions[0].StartHeight)
	require.Equal(t, 1, aListen.verAcks)
	require.Equal(t, 1, bListen.verAcks)
}

func TestHandshakeTimesOutWithoutPeer(t *testing.T) {
	connA, connB := net.Pipe()
	defer connB.Close()
	a := peer.New(connA, testConfig(0), nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := a.Handshake(ctx, false)
	require.Error(t, err)
	require.Equal(t, peer.StateDisconnected, a.State())
}

func TestTxDeliveredToListener(t *testing.T) {
	aListen := &recordingListener{}
	bListen := &recordingListener{}
	a, b := pipePeers(t, aListen, bListen)
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)
	go b.Run(ctx)

	tx := wire.NewMsgTx(1, []wire.TxIn{
		{PreviousOutPoint: wire.OutPoint{Index: 0xFFFFFFFF}, Sequence: 0xFFFFFFFF},
	}, []wire.TxOut{
		{Value: 5000000000, PkScript: []byte{0x51}},
	}, 0)
	require.NoError(t, a.Send(tx))

	require.Eventually(t, func() bool {
		bListen.mu.Lock()
		defer bListen.mu.Unlock()
		return len(bListen.txs) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestPingIsAnsweredWithPong(t *testing.T) {
	aListen := &recordingListener{}
	bListen := &recordingListener{}
	a, b := pipePeers(t, aListen, bListen)
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.Run(ctx)
	go b.Run(ctx)

	require.NoError(t, a.Send(&wire.MsgPing{Nonce: 42}))

	require.Eventually(t, func() bool {
		return a.State() == peer.StateConnected && b.State() == peer.StateConnected
	}, time.Second, 5*time.Millisecond)
}
