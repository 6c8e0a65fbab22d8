package peergroup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolPrefersUnseenOverFailed(t *testing.T) {
	p := newPool()
	p.add("a:1")
	p.add("b:1")

	now := time.Now()
	p.failed("a:1", now.Add(-time.Hour)) // long enough ago to be available again

	addr, ok := p.next(now)
	require.True(t, ok)
	require.Equal(t, "b:1", addr, "unseen candidate should rank above a once-failed one")
}

func TestPoolAppliesBackoffAfterFailure(t *testing.T) {
	p := newPool()
	p.add("a:1")
	now := time.Now()

	addr, ok := p.next(now)
	require.True(t, ok)
	require.Equal(t, "a:1", addr)
	p.failed(addr, now)

	_, ok = p.next(now.Add(time.Second))
	require.False(t, ok, "address should be backed off immediately after failing")

	addr, ok = p.next(now.Add(time.Hour))
	require.True(t, ok, "address should become available again once backoff elapses")
	require.Equal(t, "a:1", addr)
}

func TestPoolSucceededClearsBackoff(t *testing.T) {
	p := newPool()
	p.add("a:1")
	now := time.Now()

	addr, _ := p.next(now)
	p.failed(addr, now)
	p.release(addr) // simulate a later retry outside the in-flight window
	p.succeeded(addr)

	addr, ok := p.next(now.Add(time.Second))
	require.True(t, ok)
	require.Equal(t, "a:1", addr)
}

func TestPoolDoesNotOfferInFlightCandidateTwice(t *testing.T) {
	p := newPool()
	p.add("a:1")
	now := time.Now()

	_, ok := p.next(now)
	require.True(t, ok)

	_, ok = p.next(now)
	require.False(t, ok, "an in-flight candidate must not be handed out again")
}
