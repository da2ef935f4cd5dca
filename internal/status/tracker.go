// Package status exposes the alarm's recent activity over HTTP.
package status

import (
	"errors"
	"sync"
	"time"

	"clearskyalarm/pkg/clearsky"
)

// LastRun summarises the most recent detection run.
type LastRun struct {
	RunID     string    `json:"runId"`
	File      string    `json:"file"`
	At        time.Time `json:"at"`
	StarCount int       `json:"starCount,omitempty"`
	PeakScore float32   `json:"peakScore,omitempty"`
	Alerted   bool      `json:"alerted"`
	ElapsedMS int64     `json:"elapsedMs,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Totals counts runs and alerts since startup.
type Totals struct {
	Runs       int `json:"runs"`
	Failed     int `json:"failed"`
	Alerts     int `json:"alerts"`
	Suppressed int `json:"suppressed"`
}

// Snapshot is the body of GET /status.
type Snapshot struct {
	StartedAt     time.Time  `json:"startedAt"`
	Gate          string     `json:"gate"`
	LastAlert     *time.Time `json:"lastAlert,omitempty"`
	NotifyDeltaS  float64    `json:"notifyDeltaSeconds"`
	Totals        Totals     `json:"totals"`
	Last          *LastRun   `json:"last,omitempty"`
	StarThreshold int        `json:"starCountThreshold"`
}

// Tracker records detection outcomes. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	gate      *clearsky.NotificationGate
	threshold int
	now       func() time.Time
	started   time.Time
	totals    Totals
	last      *LastRun
}

// NewTracker returns a Tracker reporting gate state from gate.
func NewTracker(gate *clearsky.NotificationGate, starCountThreshold int) *Tracker {
	t := &Tracker{gate: gate, threshold: starCountThreshold, now: time.Now}
	t.started = t.now()
	return t
}

// Record stores the result of one run. err is the run error, if any.
func (t *Tracker) Record(name string, out *clearsky.Outcome, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totals.Runs++
	run := &LastRun{File: name, At: t.now()}
	if err != nil {
		t.totals.Failed++
		run.Error = err.Error()
		t.last = run
		return
	}

	run.RunID = out.RunID
	run.StarCount = out.StarCount
	run.PeakScore = out.PeakScore
	run.Alerted = out.Alerted
	run.ElapsedMS = out.Duration.Milliseconds()
	if errs := errors.Join(out.AlertErr, out.SinkErr); errs != nil {
		run.Error = errs.Error()
	}
	if out.Alerted {
		t.totals.Alerts++
	}
	if out.StarCount > t.threshold && !out.Permitted {
		t.totals.Suppressed++
	}
	t.last = run
}

// Snapshot returns the current status.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		StartedAt:     t.started,
		Gate:          t.gate.State(t.now()).String(),
		NotifyDeltaS:  t.gate.Interval().Seconds(),
		Totals:        t.totals,
		StarThreshold: t.threshold,
	}
	if last := t.gate.LastFire(); !last.IsZero() {
		s.LastAlert = &last
	}
	if t.last != nil {
		run := *t.last
		s.Last = &run
	}
	return s
}
