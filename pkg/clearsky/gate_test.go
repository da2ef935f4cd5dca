package clearsky

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)

func TestNotificationGate_Sequence(t *testing.T) {
	g := NewNotificationGate(10 * time.Second)

	assert.True(t, g.TryFire(t0), "first call is always granted")
	assert.False(t, g.TryFire(t0.Add(1*time.Second)))
	assert.False(t, g.TryFire(t0.Add(9*time.Second)))
	assert.True(t, g.TryFire(t0.Add(11*time.Second)))
	assert.Equal(t, t0.Add(11*time.Second), g.LastFire())
}

func TestNotificationGate_IntervalIsExclusive(t *testing.T) {
	g := NewNotificationGate(10 * time.Second)
	assert.True(t, g.TryFire(t0))
	assert.False(t, g.TryFire(t0.Add(10*time.Second)))
	assert.True(t, g.TryFire(t0.Add(10*time.Second+time.Nanosecond)))
}

func TestNotificationGate_DeniedCallsDoNotMoveWindow(t *testing.T) {
	g := NewNotificationGate(10 * time.Second)
	assert.True(t, g.TryFire(t0))
	assert.False(t, g.TryFire(t0.Add(8*time.Second)))
	assert.Equal(t, t0, g.LastFire())
	assert.True(t, g.TryFire(t0.Add(10*time.Second+time.Millisecond)))
}

func TestNotificationGate_State(t *testing.T) {
	g := NewNotificationGate(time.Minute)
	assert.Equal(t, GateArmed, g.State(t0))
	g.TryFire(t0)
	assert.Equal(t, GateCooling, g.State(t0.Add(30*time.Second)))
	assert.Equal(t, GateArmed, g.State(t0.Add(61*time.Second)))
	assert.Equal(t, "cooling", GateCooling.String())
	assert.Equal(t, "armed", GateArmed.String())
}

func TestNotificationGate_ZeroInterval(t *testing.T) {
	g := NewNotificationGate(0)
	assert.True(t, g.TryFire(t0))
	assert.False(t, g.TryFire(t0), "same instant is not after the last fire")
	assert.True(t, g.TryFire(t0.Add(time.Nanosecond)))
}

func TestNotificationGate_ConcurrentCallersGetOneGrant(t *testing.T) {
	g := NewNotificationGate(10 * time.Second)

	const callers = 64
	var granted atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if g.TryFire(t0) {
				granted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), granted.Load())
}
