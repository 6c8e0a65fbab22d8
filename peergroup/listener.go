package peergroup

import (
	"math/rand"
	"net"
	"strconv"

	"github.com/coreward/fullnode/peer"
	"github.com/coreward/fullnode/wire"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxAddrSample bounds how many addresses PeerGroup offers in response to
// a getaddr request (SPEC_FULL.md §7, grounded on bitcoinj's bounded
// address-book sampling).
const maxAddrSample = 256

// peerListener adapts peer.Listener events for one connection into
// PeerGroup-level policy: download-peer tracking, address-pool feeding,
// and getdata/broadcast bookkeeping. It embeds peer.NopListener so new
// peer.Listener methods default to no-ops here rather than breaking the
// build.
type peerListener struct {
	peer.NopListener
	group *PeerGroup
	id    uuid.UUID
}

func (l *peerListener) OnVersion(p *peer.Peer, v *wire.MsgVersion) {
	l.group.announce(l.id, v.StartHeight)
}

func (l *peerListener) OnAddr(p *peer.Peer, addrs []wire.NetAddress) {
	for _, a := range addrs {
		l.group.AddAddr(a.String())
	}
}

func (l *peerListener) OnGetAddr(p *peer.Peer) {
	sample := l.group.sampleAddrs(maxAddrSample)
	if len(sample) == 0 {
		return
	}
	netAddrs := make([]wire.NetAddress, 0, len(sample))
	for _, addr := range sample {
		na, ok := parseNetAddress(addr)
		if !ok {
			continue
		}
		netAddrs = append(netAddrs, na)
	}
	if len(netAddrs) == 0 {
		return
	}
	_ = p.Send(wire.NewMsgAddr(netAddrs))
}

// parseNetAddress turns a "host:port" string from the candidate pool back
// into a wire.NetAddress for re-advertisement.
func parseNetAddress(addr string) (wire.NetAddress, bool) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return wire.NetAddress{}, false
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return wire.NetAddress{}, false
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return wire.NetAddress{}, false
	}
	return wire.NetAddress{IP: ip, Port: uint16(port)}, true
}

func (l *peerListener) OnInv(p *peer.Peer, items []wire.InvVect) {
	if len(items) == 0 {
		return
	}
	// Filtering already-known items is the chain/mempool's job; the
	// simplification here is to request everything announced and let
	// downstream processing (chain.Add's ErrDuplicate, mempool dedup)
	// discard what's already held.
	_ = p.SendGetData(items)
}

func (l *peerListener) OnGetData(p *peer.Peer, items []wire.InvVect) {
	l.group.handleGetData(l.id, items)
}

func (l *peerListener) OnTx(p *peer.Peer, tx *wire.MsgTx) {
	for _, ln := range l.group.snapshotListeners() {
		ln.OnTx(p, tx)
	}
}

func (l *peerListener) OnBlock(p *peer.Peer, block *wire.MsgBlock) {
	dl, ok := l.group.DownloadPeer()
	if !ok || dl != p {
		return
	}
	for _, ln := range l.group.snapshotListeners() {
		ln.OnBlock(p, block)
	}
}

func (l *peerListener) OnReject(p *peer.Peer, reject *wire.MsgReject) {
	l.group.log.Warn("peergroup: peer rejected message",
		zap.String("message", reject.Message), zap.String("reason", reject.Reason))
}

func (g *PeerGroup) snapshotListeners() []Listener {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Listener(nil), g.listeners...)
}

// sampleAddrs returns up to n addresses drawn from the candidate pool.
func (g *PeerGroup) sampleAddrs(n int) []string {
	addrs := g.pool.addrs()
	if len(addrs) <= n {
		return addrs
	}
	rand.Shuffle(len(addrs), func(i, j int) { addrs[i], addrs[j] = addrs[j], addrs[i] })
	return addrs[:n]
}
