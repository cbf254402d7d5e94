package server

import (
	"sync/atomic"
	"time"
)

// Stats mirrors shockwave/pkg/shockwave/server.Stats's atomic counter
// set, extended with FBM-specific counters for the metrics spec.md §7
// calls for around stray and cancelled FBM responses.
type Stats struct {
	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64
	TotalRequests     atomic.Uint64
	ConnectionErrors  atomic.Uint64
	RequestErrors     atomic.Uint64
	StartTime         time.Time

	// FBMActiveRequests is a live count of FBM requests currently
	// being handled across every upgraded connection.
	FBMActiveRequests atomic.Int64
	// FBMCancelledResponses counts outbound FBM Calls (via
	// dispatch.Session.Call) that were cancelled or timed out before a
	// response arrived.
	FBMCancelledResponses atomic.Int64
	// FBMStrayResponses counts inbound frames that looked like a
	// response to an outbound Call but matched no pending request —
	// arrived after cancellation, or carried an id this server never sent.
	FBMStrayResponses atomic.Int64
}

func newStats() *Stats {
	s := &Stats{StartTime: time.Now()}
	return s
}

func (s *Stats) Duration() time.Duration { return time.Since(s.StartTime) }

func (s *Stats) RequestsPerSecond() float64 {
	d := s.Duration().Seconds()
	if d == 0 {
		return 0
	}
	return float64(s.TotalRequests.Load()) / d
}
