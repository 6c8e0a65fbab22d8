package peergroup

import "context"

// Discoverer is a pluggable source of candidate peer addresses (spec.md
// §4.6): a DNS seed lookup, a hardcoded bootstrap list, or addresses
// learned from other peers' addr messages.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// StaticDiscoverer returns a fixed, pre-known address list — the
// bootstrap/seed-peer source (grounded on the teacher's PeerFactory.SetSeeds).
type StaticDiscoverer []string

func (s StaticDiscoverer) Discover(ctx context.Context) ([]string, error) {
	return []string(s), nil
}
