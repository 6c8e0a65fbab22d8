// Package peergroup maintains a target number of outbound connections to
// remote nodes (spec.md §4.6): discovery, a backoff-aware connection loop,
// download-peer election, transaction broadcast with quorum, and listener
// fan-out for connect/disconnect/block/tx events. It is grounded on the
// teacher's internal/peerfactory package — the same
// candidate-pool-plus-connection-loop shape, generalized from the
// teacher's line-protocol Conn to peer.Peer, and with its supervision
// moved onto an errgroup.Group (the teacher's bare `go pf.listen()` calls
// are unsupervised) so PeerGroup.Stop can wait for every goroutine it
// started to actually exit.
package peergroup

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"github.com/coreward/fullnode/chainmodel"
	"github.com/coreward/fullnode/peer"
	"github.com/coreward/fullnode/wire"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Listener receives PeerGroup-level events. Implementations must not
// block (spec.md §5); hand off to an internal queue if needed.
type Listener interface {
	OnPeerConnected(id uuid.UUID, p *peer.Peer)
	OnPeerDisconnected(id uuid.UUID, p *peer.Peer)
	OnTx(p *peer.Peer, tx *wire.MsgTx)
	// OnBlock is called only for blocks delivered by the current download
	// peer; blocks announced by other peers are not forwarded here.
	OnBlock(p *peer.Peer, block *wire.MsgBlock)
}

// Config bundles the options exposed by PeerGroup (spec.md §6).
type Config struct {
	Magic                   uint32
	ProtocolVersion         int32
	UserAgent               string
	Services                uint64
	MaxConnections          int
	MinConnections          int
	ConnectTimeout          time.Duration
	SeekNewPeersInterval    time.Duration
	MinBroadcastConnections int
	BroadcastTimeout        time.Duration
	// StartHeight is consulted for every outbound version message; it
	// lets PeerGroup stay decoupled from a concrete chain implementation.
	StartHeight func() int32
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 10 * time.Second
	}
	if c.SeekNewPeersInterval == 0 {
		c.SeekNewPeersInterval = 15 * time.Second
	}
	if c.MaxConnections == 0 {
		c.MaxConnections = 32
	}
	if c.MinConnections == 0 {
		c.MinConnections = 8
	}
	if c.MinBroadcastConnections == 0 {
		c.MinBroadcastConnections = 1
	}
	if c.BroadcastTimeout == 0 {
		c.BroadcastTimeout = 30 * time.Second
	}
	if c.StartHeight == nil {
		c.StartHeight = func() int32 { return 0 }
	}
	return c
}

// Dialer opens an outbound connection to addr. Tests substitute an
// in-memory implementation; production wiring uses dialNet (net.Dialer).
type Dialer func(ctx context.Context, addr string) (net.Conn, error)

func dialNet(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", addr)
}

type connectedPeer struct {
	id     uuid.UUID
	addr   string
	peer   *peer.Peer
	height int32
}

// PeerGroup owns the set of connections to remote nodes and the policy
// decisions layered on top of individual peers: which peer downloads
// blocks, how broadcasts reach quorum, and how discovered addresses are
// scheduled for connection attempts.
type PeerGroup struct {
	cfg    Config
	dial   Dialer
	log    *zap.Logger
	pool   *pool
	discos []Discoverer

	mu        sync.Mutex
	connected map[uuid.UUID]*connectedPeer
	hasDL     bool
	dlPeerID  uuid.UUID
	listeners []Listener

	broadcastMu sync.Mutex
	broadcasts  map[[32]byte]chan uuid.UUID

	eg       *errgroup.Group
	egCtx    context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	listenOn net.Listener
}

// New constructs a PeerGroup. dial is optional; nil selects the real
// network dialer.
func New(cfg Config, dial Dialer, discos []Discoverer, log *zap.Logger) *PeerGroup {
	if dial == nil {
		dial = dialNet
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PeerGroup{
		cfg:        cfg.withDefaults(),
		dial:       dial,
		log:        log,
		pool:       newPool(),
		discos:     discos,
		connected:  make(map[uuid.UUID]*connectedPeer),
		broadcasts: make(map[[32]byte]chan uuid.UUID),
	}
}

// AddListener registers l to receive future PeerGroup events.
func (g *PeerGroup) AddListener(l Listener) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listeners = append(g.listeners, l)
}

// AddAddr injects an address into the candidate pool directly, e.g. one
// learned from a peer's addr message.
func (g *PeerGroup) AddAddr(addr string) {
	g.pool.add(addr)
}

// Start launches the discovery loop, connection-attempt scheduler, and
// seek-new-peers ticker. It returns immediately; call Stop to tear down.
func (g *PeerGroup) Start(ctx context.Context) {
	egCtx, cancel := context.WithCancel(ctx)
	eg, egCtx := errgroup.WithContext(egCtx)
	g.eg = eg
	g.egCtx = egCtx
	g.cancel = cancel

	eg.Go(func() error { return g.discoveryLoop(egCtx) })
	eg.Go(func() error { return g.connectionLoop(egCtx) })
}

// Listen accepts inbound connections on addr and adopts each as a peer,
// subject to MaxConnections. It registers its accept loop on the same
// errgroup as Start, so Start must be called first.
func (g *PeerGroup) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	g.listenOn = ln
	g.eg.Go(func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return nil
			}
			if g.connectedCount() >= g.cfg.MaxConnections {
				conn.Close()
				continue
			}
			g.eg.Go(func() error {
				g.adopt(g.egCtx, conn.RemoteAddr().String(), conn, true)
				return nil
			})
		}
	})
	return nil
}

// Stop cancels all peer sockets and pending connection attempts and
// blocks until every goroutine Start launched has exited (spec.md §5).
func (g *PeerGroup) Stop() error {
	if g.cancel == nil {
		return nil
	}
	if g.listenOn != nil {
		_ = g.listenOn.Close()
	}
	g.cancel()
	g.mu.Lock()
	peers := make([]*peer.Peer, 0, len(g.connected))
	for _, cp := range g.connected {
		peers = append(peers, cp.peer)
	}
	g.mu.Unlock()
	for _, p := range peers {
		_ = p.Close()
	}
	err := g.eg.Wait()
	g.wg.Wait()
	return err
}

func (g *PeerGroup) discoveryLoop(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.SeekNewPeersInterval)
	defer ticker.Stop()
	g.runDiscovery(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if g.connectedCount() < g.cfg.MinConnections {
				g.runDiscovery(ctx)
			}
		}
	}
}

func (g *PeerGroup) runDiscovery(ctx context.Context) {
	for _, d := range g.discos {
		addrs, err := d.Discover(ctx)
		if err != nil {
			g.log.Warn("peergroup: discovery source failed", zap.Error(err))
			continue
		}
		for _, a := range addrs {
			g.pool.add(a)
		}
	}
}

func (g *PeerGroup) connectedCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.connected)
}

// connectionLoop pops candidates and dials them while under
// MaxConnections, per spec.md §4.6.
func (g *PeerGroup) connectionLoop(ctx context.Context) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for g.connectedCount() < g.cfg.MaxConnections {
				addr, ok := g.pool.next(time.Now())
				if !ok {
					break
				}
				g.eg.Go(func() error {
					g.attemptConnect(ctx, addr)
					return nil
				})
			}
		}
	}
}

func (g *PeerGroup) attemptConnect(ctx context.Context, addr string) {
	dialCtx, cancel := context.WithTimeout(ctx, g.cfg.ConnectTimeout)
	defer cancel()
	conn, err := g.dial(dialCtx, addr)
	if err != nil {
		if ctx.Err() != nil {
			// The group is shutting down; this isn't evidence addr is
			// unreachable, so don't penalize it with backoff.
			g.pool.release(addr)
			g.log.Debug("peergroup: dial abandoned", zap.String("addr", addr), zap.Error(ctx.Err()))
			return
		}
		g.pool.failed(addr, time.Now())
		g.log.Debug("peergroup: dial failed", zap.String("addr", addr), zap.Error(err))
		return
	}
	g.adopt(ctx, addr, conn, false)
}

// adopt wraps conn in a peer.Peer, drives its handshake, and if
// successful registers it as connected. inbound distinguishes a
// listener-accepted connection from an outbound dial.
func (g *PeerGroup) adopt(ctx context.Context, addr string, conn net.Conn, inbound bool) {
	id := uuid.New()
	nonceSrc := uuid.New()
	cfg := peer.Config{
		Magic:           g.cfg.Magic,
		ProtocolVersion: g.cfg.ProtocolVersion,
		UserAgent:       g.cfg.UserAgent,
		Services:        g.cfg.Services,
		StartHeight:     g.cfg.StartHeight(),
		Nonce:           binary.LittleEndian.Uint64(nonceSrc[:8]),
	}
	listener := &peerListener{group: g, id: id}
	p := peer.New(conn, cfg, listener, g.log)

	if err := p.Handshake(ctx, inbound); err != nil {
		g.pool.failed(addr, time.Now())
		_ = p.Close()
		return
	}
	g.pool.succeeded(addr)

	g.mu.Lock()
	if len(g.connected) >= g.cfg.MaxConnections {
		g.mu.Unlock()
		_ = p.Close()
		return
	}
	g.connected[id] = &connectedPeer{id: id, addr: addr, peer: p, height: p.Height()}
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	for _, l := range listeners {
		l.OnPeerConnected(id, p)
	}
	g.electDownloadPeer()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		_ = p.Run(ctx)
		g.handleDisconnect(id)
	}()
}

func (g *PeerGroup) handleDisconnect(id uuid.UUID) {
	g.mu.Lock()
	cp, ok := g.connected[id]
	if !ok {
		g.mu.Unlock()
		return
	}
	delete(g.connected, id)
	wasDownload := g.hasDL && g.dlPeerID == id
	if wasDownload {
		g.hasDL = false
	}
	listeners := append([]Listener(nil), g.listeners...)
	g.mu.Unlock()

	for _, l := range listeners {
		l.OnPeerDisconnected(id, cp.peer)
	}
	if wasDownload {
		g.electDownloadPeer()
	}
}

// handleGetData credits any in-progress broadcast whose tx hash appears
// in a getdata request from peer id.
func (g *PeerGroup) handleGetData(id uuid.UUID, items []wire.InvVect) {
	for _, it := range items {
		if it.Type != wire.InvTypeTx {
			continue
		}
		g.broadcastMu.Lock()
		ch, ok := g.broadcasts[it.Hash]
		g.broadcastMu.Unlock()
		if !ok {
			continue
		}
		select {
		case ch <- id:
		default:
		}
	}
}

// announce updates a connected peer's last-known height and, if it now
// exceeds the current download peer's height, re-elects (spec.md §4.6).
func (g *PeerGroup) announce(id uuid.UUID, height int32) {
	g.mu.Lock()
	cp, ok := g.connected[id]
	if !ok {
		g.mu.Unlock()
		return
	}
	cp.height = height
	shouldReelect := !g.hasDL || height > g.connected[g.dlPeerID].height
	g.mu.Unlock()
	if shouldReelect {
		g.electDownloadPeer()
	}
}

// electDownloadPeer picks the connected peer with the greatest announced
// height, breaking ties by lowest last-sample RTT (spec.md §4.6).
func (g *PeerGroup) electDownloadPeer() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.connected) == 0 {
		g.hasDL = false
		return
	}
	ids := make([]uuid.UUID, 0, len(g.connected))
	for id := range g.connected {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.connected[ids[i]], g.connected[ids[j]]
		if a.height != b.height {
			return a.height > b.height
		}
		aRTT, _ := a.peer.RTT()
		bRTT, _ := b.peer.RTT()
		return aRTT < bRTT
	})
	g.dlPeerID = ids[0]
	g.hasDL = true
}

// DownloadPeer returns the currently elected download peer, if any.
func (g *PeerGroup) DownloadPeer() (*peer.Peer, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.hasDL {
		return nil, false
	}
	return g.connected[g.dlPeerID].peer, true
}

// Connections returns a snapshot of currently connected peers.
func (g *PeerGroup) Connections() []*peer.Peer {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*peer.Peer, 0, len(g.connected))
	for _, cp := range g.connected {
		out = append(out, cp.peer)
	}
	return out
}

// BroadcastTransaction announces tx's inventory to every connected peer
// and waits until at least MinBroadcastConnections have requested it via
// getdata, or BroadcastTimeout elapses (spec.md §4.6).
func (g *PeerGroup) BroadcastTransaction(tx *wire.MsgTx) error {
	hash, err := chainmodel.TxHash(tx)
	if err != nil {
		return err
	}
	peers := g.Connections()
	if len(peers) == 0 {
		return fmt.Errorf("peergroup: no connected peers to broadcast to")
	}

	key := [32]byte(hash)
	requested := make(chan uuid.UUID, len(peers))
	g.broadcastMu.Lock()
	g.broadcasts[key] = requested
	g.broadcastMu.Unlock()
	defer func() {
		g.broadcastMu.Lock()
		delete(g.broadcasts, key)
		g.broadcastMu.Unlock()
	}()

	inv := wire.NewMsgInv()
	item := wire.InvVect{Type: wire.InvTypeTx, Hash: [32]byte(hash)}
	if err := inv.AddInvVect(item); err != nil {
		return err
	}
	for _, p := range peers {
		_ = p.Send(inv)
	}

	quorum := g.cfg.MinBroadcastConnections
	seen := make(map[uuid.UUID]bool)
	deadline := time.After(g.cfg.BroadcastTimeout)
	for len(seen) < quorum {
		select {
		case id := <-requested:
			seen[id] = true
		case <-deadline:
			return fmt.Errorf("peergroup: broadcast timed out with %d/%d requests", len(seen), quorum)
		}
	}
	return nil
}
