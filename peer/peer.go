package peer

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/coreward/fullnode/chainhash"
	"github.com/coreward/fullnode/wire"
	"go.uber.org/zap"
)

// handshakeTimeout bounds how long the version/verack exchange may take
// before the connection is abandoned (spec.md §4.5).
const handshakeTimeout = 60 * time.Second

// pingInterval is how often an idle peer is pinged to keep the
// connection alive and refresh RTT.
const pingInterval = 2 * time.Minute

// pingTimeout is how long a pong may take before the peer is considered
// unresponsive.
const pingTimeout = 20 * time.Second

// Listener receives events for messages a Peer has decoded. Every method
// is called from the peer's single read goroutine, so implementations
// that fan out to other goroutines must do their own synchronization.
type Listener interface {
	OnVersion(p *Peer, v *wire.MsgVersion)
	OnVerAck(p *Peer)
	OnAddr(p *Peer, addrs []wire.NetAddress)
	OnGetAddr(p *Peer)
	OnInv(p *Peer, items []wire.InvVect)
	OnGetData(p *Peer, items []wire.InvVect)
	OnNotFound(p *Peer, items []wire.InvVect)
	OnTx(p *Peer, tx *wire.MsgTx)
	OnBlock(p *Peer, block *wire.MsgBlock)
	OnHeaders(p *Peer, headers []wire.BlockHeader)
	OnGetBlocks(p *Peer, locator [][32]byte, stop [32]byte)
	OnGetHeaders(p *Peer, locator [][32]byte, stop [32]byte)
	OnReject(p *Peer, reject *wire.MsgReject)
}

// NopListener implements Listener with no-ops, embeddable by callers
// that only care about a handful of events.
type NopListener struct{}

func (NopListener) OnVersion(*Peer, *wire.MsgVersion)        {}
func (NopListener) OnVerAck(*Peer)                           {}
func (NopListener) OnAddr(*Peer, []wire.NetAddress)          {}
func (NopListener) OnGetAddr(*Peer)                          {}
func (NopListener) OnInv(*Peer, []wire.InvVect)              {}
func (NopListener) OnGetData(*Peer, []wire.InvVect)          {}
func (NopListener) OnNotFound(*Peer, []wire.InvVect)         {}
func (NopListener) OnTx(*Peer, *wire.MsgTx)                  {}
func (NopListener) OnBlock(*Peer, *wire.MsgBlock)            {}
func (NopListener) OnHeaders(*Peer, []wire.BlockHeader)      {}
func (NopListener) OnGetBlocks(*Peer, [][32]byte, [32]byte)  {}
func (NopListener) OnGetHeaders(*Peer, [][32]byte, [32]byte) {}
func (NopListener) OnReject(*Peer, *wire.MsgReject)          {}

// Config bundles the identity fields a Peer announces during its
// handshake.
type Config struct {
	Magic           uint32
	ProtocolVersion int32
	UserAgent       string
	Services        uint64
	StartHeight     int32
	Nonce           uint64
}

// Peer manages one connection to a remote node.
type Peer struct {
	conn   net.Conn
	cfg    Config
	listen Listener
	log    *zap.Logger

	mu            sync.Mutex
	state         State
	remoteVersion *wire.MsgVersion
	height        int32

	pingMu      sync.Mutex
	lastPingAt  time.Time
	rttEWMA     time.Duration
	lastRTT     time.Duration
	outstanding map[uint64]time.Time

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// New wraps conn as a not-yet-handshaken Peer.
func New(conn net.Conn, cfg Config, listener Listener, log *zap.Logger) *Peer {
	if log == nil {
		log = zap.NewNop()
	}
	if listener == nil {
		listener = NopListener{}
	}
	return &Peer{
		conn:        conn,
		cfg:         cfg,
		listen:      listener,
		log:         log,
		state:       StateNew,
		outstanding: make(map[uint64]time.Time),
		done:        make(chan struct{}),
	}
}

// State returns the peer's current lifecycle state.
func (p *Peer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Peer) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// Addr returns the remote address of the underlying connection.
func (p *Peer) Addr() net.Addr { return p.conn.RemoteAddr() }

// Height returns the chain height the peer last announced, via its
// version message or a subsequent inv/headers exchange.
func (p *Peer) Height() int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.height
}

// SetHeight updates the peer's last-known announced height, called by
// callers observing inv/headers traffic.
func (p *Peer) SetHeight(h int32) {
	p.mu.Lock()
	p.height = h
	p.mu.Unlock()
}

// RTT returns the most recent ping/pong round-trip time and its EWMA.
func (p *Peer) RTT() (last, ewma time.Duration) {
	p.pingMu.Lock()
	defer p.pingMu.Unlock()
	return p.lastRTT, p.rttEWMA
}

// Handshake performs the version/verack exchange (spec.md §4.5). inbound
// selects whether this side waits for the remote version first (true) or
// sends first (false, the connecting side).
func (p *Peer) Handshake(ctx context.Context, inbound bool) error {
	p.setState(StateHandshaking)
	ctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ourVersion := &wire.MsgVersion{
		ProtocolVersion: p.cfg.ProtocolVersion,
		Services:        p.cfg.Services,
		Timestamp:       time.Now().Unix(),
		Nonce:           p.cfg.Nonce,
		UserAgent:       p.cfg.UserAgent,
		StartHeight:     p.cfg.StartHeight,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- p.handshakeExchange(inbound, ourVersion) }()

	select {
	case err := <-errCh:
		if err != nil {
			p.setState(StateDisconnected)
			return err
		}
		p.setState(StateConnected)
		return nil
	case <-ctx.Done():
		p.setState(StateDisconnected)
		return fmt.Errorf("peer: handshake timed out: %w", ctx.Err())
	}
}

func (p *Peer) handshakeExchange(inbound bool, ourVersion *wire.MsgVersion) error {
	send := func() error { return p.writeMessage(ourVersion) }
	recvVersion := func() error {
		msg, err := p.readMessage()
		if err != nil {
			return err
		}
		v, ok := msg.(*wire.MsgVersion)
		if !ok {
			return fmt.Errorf("peer: expected version, got %s", msg.Command())
		}
		p.mu.Lock()
		p.remoteVersion = v
		p.height = v.StartHeight
		p.mu.Unlock()
		p.listen.OnVersion(p, v)
		return nil
	}
	sendVerAck := func() error { return p.writeMessage(&wire.MsgVerAck{}) }
	recvVerAck := func() error {
		msg, err := p.readMessage()
		if err != nil {
			return err
		}
		if _, ok := msg.(*wire.MsgVerAck); !ok {
			return fmt.Errorf("peer: expected verack, got %s", msg.Command())
		}
		p.listen.OnVerAck(p)
		return nil
	}

	// The connecting side sends version; the accepting side replies with
	// version then verack; the connecting side then sends its verack.
	if inbound {
		if err := recvVersion(); err != nil {
			return err
		}
		if err := send(); err != nil {
			return err
		}
		if err := sendVerAck(); err != nil {
			return err
		}
		return recvVerAck()
	}
	if err := send(); err != nil {
		return err
	}
	if err := recvVersion(); err != nil {
		return err
	}
	if err := recvVerAck(); err != nil {
		return err
	}
	return sendVerAck()
}

// Run starts the peer's read loop and ping loop, blocking until the
// connection closes or ctx is cancelled. Handshake must have completed
// successfully before calling Run.
func (p *Peer) Run(ctx context.Context) error {
	if p.State() != StateConnected {
		return errors.New("peer: Run called before successful handshake")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	readErr := make(chan error, 1)
	go func() { readErr <- p.readLoop() }()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Close()
			return ctx.Err()
		case err := <-readErr:
			p.Close()
			return err
		case <-ticker.C:
			if err := p.checkPingTimeout(); err != nil {
				p.Close()
				return err
			}
			if err := p.sendPing(); err != nil {
				p.Close()
				return err
			}
		}
	}
}

func (p *Peer) readLoop() error {
	for {
		msg, err := p.readMessage()
		if err != nil {
			var unknown *wire.UnknownCommandError
			if errors.As(err, &unknown) {
				p.log.Warn("peer: skipping unknown command",
					zap.String("addr", p.Addr().String()),
					zap.String("command", string(unknown.Command)))
				continue
			}
			return err
		}
		p.dispatch(msg)
	}
}

func (p *Peer) dispatch(msg wire.Message) {
	switch m := msg.(type) {
	case *wire.MsgAddr:
		addrs, err := m.AddrList()
		if err == nil {
			p.listen.OnAddr(p, addrs)
		}
	case *wire.MsgGetAddr:
		p.listen.OnGetAddr(p)
	case *wire.MsgPing:
		_ = p.writeMessage(&wire.MsgPong{Nonce: m.Nonce})
	case *wire.MsgPong:
		p.handlePong(m.Nonce)
	case *wire.MsgTx:
		p.listen.OnTx(p, m)
	case *wire.MsgBlock:
		p.listen.OnBlock(p, m)
	case *wire.MsgHeaders:
		p.listen.OnHeaders(p, m.Headers)
	case *wire.MsgGetBlocks:
		p.listen.OnGetBlocks(p, m.BlockLocatorHashes, m.HashStop)
	case *wire.MsgGetHeaders:
		p.listen.OnGetHeaders(p, m.BlockLocatorHashes, m.HashStop)
	case *wire.MsgReject:
		p.listen.OnReject(p, m)
	default:
		p.dispatchInvLike(msg)
	}
}

func (p *Peer) dispatchInvLike(msg wire.Message) {
	type itemsGetter interface{ Items() ([]wire.InvVect, error) }
	ig, ok := msg.(itemsGetter)
	if !ok {
		return
	}
	items, err := ig.Items()
	if err != nil {
		return
	}
	switch msg.Command() {
	case wire.CmdInv:
		p.listen.OnInv(p, items)
	case wire.CmdGetData:
		p.listen.OnGetData(p, items)
	case wire.CmdNotFound:
		p.listen.OnNotFound(p, items)
	}
}

// checkPingTimeout fails the connection if any previously sent ping has
// gone unanswered for longer than pingTimeout.
func (p *Peer) checkPingTimeout() error {
	p.pingMu.Lock()
	defer p.pingMu.Unlock()
	now := time.Now()
	for _, sentAt := range p.outstanding {
		if now.Sub(sentAt) > pingTimeout {
			return fmt.Errorf("peer: ping timed out after %s", pingTimeout)
		}
	}
	return nil
}

func (p *Peer) sendPing() error {
	nonce := rand.Uint64()
	p.pingMu.Lock()
	p.lastPingAt = time.Now()
	p.outstanding[nonce] = p.lastPingAt
	p.pingMu.Unlock()
	return p.writeMessage(&wire.MsgPing{Nonce: nonce})
}

func (p *Peer) handlePong(nonce uint64) {
	p.pingMu.Lock()
	sentAt, ok := p.outstanding[nonce]
	if ok {
		delete(p.outstanding, nonce)
	}
	p.pingMu.Unlock()
	if !ok {
		return
	}
	rtt := time.Since(sentAt)
	p.pingMu.Lock()
	p.lastRTT = rtt
	if p.rttEWMA == 0 {
		p.rttEWMA = rtt
	} else {
		// alpha = 0.2, the teacher's codebase has no EWMA of its own;
		// this is the conventional smoothing factor for RTT estimators.
		p.rttEWMA = time.Duration(0.8*float64(p.rttEWMA) + 0.2*float64(rtt))
	}
	p.pingMu.Unlock()
}

// Send writes a message to the peer. Safe for concurrent use.
func (p *Peer) Send(msg wire.Message) error {
	return p.writeMessage(msg)
}

// SendGetData requests the given inventory items.
func (p *Peer) SendGetData(items []wire.InvVect) error {
	gd := wire.NewMsgGetData()
	for _, it := range items {
		if err := gd.AddInvVect(it); err != nil {
			return err
		}
	}
	return p.writeMessage(gd)
}

// SendGetBlocks requests headers-of-blocks starting after locator.
func (p *Peer) SendGetBlocks(locator []chainhash.Hash, stop chainhash.Hash) error {
	raw := make([][32]byte, len(locator))
	for i, h := range locator {
		raw[i] = [32]byte(h)
	}
	return p.writeMessage(&wire.MsgGetBlocks{ProtocolVersion: uint32(p.cfg.ProtocolVersion), BlockLocatorHashes: raw, HashStop: [32]byte(stop)})
}

func (p *Peer) writeMessage(msg wire.Message) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return wire.WriteMessage(p.conn, msg, p.cfg.Magic, uint32(p.cfg.ProtocolVersion))
}

func (p *Peer) readMessage() (wire.Message, error) {
	return wire.ReadMessage(p.conn, p.cfg.Magic, uint32(p.cfg.ProtocolVersion))
}

// Close shuts down the connection; safe to call multiple times.
func (p *Peer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.setState(StateDisconnected)
		close(p.done)
		err = p.conn.Close()
	})
	return err
}

// Done returns a channel closed when the peer has disconnected.
func (p *Peer) Done() <-chan struct{} { return p.done }
