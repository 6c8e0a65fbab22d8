// Package node wires the chain and peergroup packages into one running
// full node, the way the teacher's internal/peerfactory wires
// internal/chain and internal/peer together. Here the wiring is a direct
// peergroup.Listener implementation instead of a pubsub bus: Node.OnBlock
// hands each download-peer block straight to chain.Add.
package node

import (
	"context"
	"fmt"

	"github.com/coreward/fullnode/chain"
	"github.com/coreward/fullnode/params"
	"github.com/coreward/fullnode/peer"
	"github.com/coreward/fullnode/peergroup"
	"github.com/coreward/fullnode/scriptoracle"
	"github.com/coreward/fullnode/store"
	"github.com/coreward/fullnode/wire"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config bundles what's needed to stand up a node against a given
// network's params.
type Config struct {
	Params         params.Params
	ListenAddr     string // empty disables inbound connections
	SeedAddrs      []string
	MaxConnections int
	MinConnections int
	UserAgent      string
}

// Node owns one Chain and one PeerGroup and bridges inventory between
// them: blocks arriving from the download peer are handed to the chain
// (transactions are only logged), and the chain's own tip height is what
// the group announces in its version messages.
type Node struct {
	cfg   Config
	log   *zap.Logger
	store store.FullPrunedBlockStore
	chain *chain.Chain
	group *peergroup.PeerGroup
}

// New constructs a Node over an in-memory store. Disk-backed stores are
// pluggable behind store.FullPrunedBlockStore; callers needing one build
// it themselves and call chain.New directly instead of going through New.
func New(cfg Config, log *zap.Logger) (*Node, error) {
	if log == nil {
		log = zap.NewNop()
	}
	st := store.NewMemStore()
	c, err := chain.New(st, cfg.Params, scriptoracle.AcceptAll{}, log)
	if err != nil {
		return nil, fmt.Errorf("node: seed chain: %w", err)
	}

	n := &Node{cfg: cfg, log: log, store: st, chain: c}

	discos := []peergroup.Discoverer{peergroup.StaticDiscoverer(cfg.SeedAddrs)}
	n.group = peergroup.New(peergroup.Config{
		Magic:           cfg.Params.Magic,
		ProtocolVersion: int32(cfg.Params.ProtocolVersion),
		UserAgent:       cfg.UserAgent,
		MaxConnections:  cfg.MaxConnections,
		MinConnections:  cfg.MinConnections,
		StartHeight:     n.startHeight,
	}, nil, discos, log)
	n.group.AddListener(n)
	return n, nil
}

func (n *Node) startHeight() int32 {
	head, err := n.store.ChainHead()
	if err != nil {
		return 0
	}
	return int32(head.Height)
}

// Run starts discovery/connection loops and, if ListenAddr is set,
// accepts inbound connections. It blocks until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	n.group.Start(ctx)
	if n.cfg.ListenAddr != "" {
		if err := n.group.Listen(n.cfg.ListenAddr); err != nil {
			return fmt.Errorf("node: listen on %s: %w", n.cfg.ListenAddr, err)
		}
		n.log.Info("node: listening", zap.String("addr", n.cfg.ListenAddr))
	}
	<-ctx.Done()
	return n.group.Stop()
}

// OnPeerConnected implements peergroup.Listener.
func (n *Node) OnPeerConnected(id uuid.UUID, p *peer.Peer) {
	n.log.Info("node: peer connected", zap.String("addr", p.Addr().String()))
}

// OnPeerDisconnected implements peergroup.Listener.
func (n *Node) OnPeerDisconnected(id uuid.UUID, p *peer.Peer) {
	n.log.Info("node: peer disconnected", zap.String("addr", p.Addr().String()))
}

// OnTx implements peergroup.Listener. No component here owns a mempool,
// so accepted transactions are only logged until one exists.
func (n *Node) OnTx(p *peer.Peer, tx *wire.MsgTx) {
	n.log.Debug("node: received tx", zap.String("peer", p.Addr().String()))
}

// OnBlock implements peergroup.Listener: every block from the elected
// download peer is handed to the chain engine.
func (n *Node) OnBlock(p *peer.Peer, block *wire.MsgBlock) {
	connected, err := n.chain.Add(block)
	if err != nil {
		n.log.Warn("node: block rejected", zap.String("peer", p.Addr().String()), zap.Error(err))
		return
	}
	if connected {
		head, err := n.store.ChainHead()
		if err == nil {
			n.log.Info("node: chain extended", zap.Uint32("height", head.Height))
		}
	}
}

// Chain returns the node's chain engine, e.g. for a wallet or RPC surface
// to query.
func (n *Node) Chain() *chain.Chain { return n.chain }

// PeerGroup returns the node's peer group.
func (n *Node) PeerGroup() *peergroup.PeerGroup { return n.group }
