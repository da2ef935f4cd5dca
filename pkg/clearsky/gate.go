package clearsky

import (
	"sync"
	"time"
)

// GateState is the state of a NotificationGate at a given instant.
type GateState int

const (
	GateArmed GateState = iota
	GateCooling
)

func (s GateState) String() string {
	switch s {
	case GateArmed:
		return "armed"
	case GateCooling:
		return "cooling"
	default:
		return "unknown"
	}
}

// NotificationGate grants at most one alert per notify interval. It owns
// the only mutable state shared between detection runs and is safe for
// concurrent use.
type NotificationGate struct {
	mu       sync.Mutex
	delta    time.Duration
	lastFire time.Time
}

// NewNotificationGate returns an armed gate. The zero last-fire time makes
// the first TryFire succeed.
func NewNotificationGate(delta time.Duration) *NotificationGate {
	return &NotificationGate{delta: delta}
}

// TryFire grants permission when more than the notify interval has elapsed
// since the last granted call, recording now as the new last-fire time.
func (g *NotificationGate) TryFire(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Sub(g.lastFire) > g.delta {
		g.lastFire = now
		return true
	}
	return false
}

// State reports whether a TryFire at now would be granted.
func (g *NotificationGate) State(now time.Time) GateState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if now.Sub(g.lastFire) > g.delta {
		return GateArmed
	}
	return GateCooling
}

// LastFire returns the time of the last granted call, zero if none.
func (g *NotificationGate) LastFire() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastFire
}

// Interval returns the configured minimum interval between alerts.
func (g *NotificationGate) Interval() time.Duration { return g.delta }
