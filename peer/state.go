// Package peer implements a single connection to a remote node: the
// version/verack handshake, ping/pong keep-alive with round-trip-time
// tracking, and message dispatch to a caller-supplied Listener. It is
// grounded on the teacher's internal/peer package — the same
// one-goroutine-per-connection Loop driven by a read-with-timeout plus a
// select over local events, generalized from the teacher's line-protocol
// commands to the wire package's Bitcoin message framing.
package peer

// State is a peer connection's position in its lifecycle (spec.md §4.5).
type State int

const (
	// StateNew is a connection that has not yet started its handshake.
	StateNew State = iota
	// StateHandshaking is mid version/verack exchange.
	StateHandshaking
	// StateConnected has completed the handshake and exchanges
	// application messages.
	StateConnected
	// StateDisconnected is closed; the Peer object cannot be reused.
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}
