package status

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clearskyalarm/pkg/clearsky"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var t0 = time.Date(2024, 3, 14, 22, 0, 0, 0, time.UTC)

func newTestTracker() (*Tracker, *clearsky.NotificationGate, *time.Time) {
	gate := clearsky.NewNotificationGate(time.Hour)
	now := t0
	tr := NewTracker(gate, 10)
	tr.now = func() time.Time { return now }
	tr.started = t0
	return tr, gate, &now
}

func TestTracker_Record(t *testing.T) {
	tr, gate, now := newTestTracker()

	snap := tr.Snapshot()
	assert.Equal(t, "armed", snap.Gate)
	assert.Nil(t, snap.Last)
	assert.Nil(t, snap.LastAlert)
	assert.Equal(t, 3600.0, snap.NotifyDeltaS)

	require.True(t, gate.TryFire(t0))
	tr.Record("/captures/a.jpg", &clearsky.Outcome{
		RunID: "run-1", StarCount: 42, PeakScore: 0.97, Permitted: true, Alerted: true, Duration: 250 * time.Millisecond,
	}, nil)

	*now = t0.Add(time.Minute)
	tr.Record("/captures/b.jpg", &clearsky.Outcome{RunID: "run-2", StarCount: 40}, nil)
	tr.Record("/captures/c.jpg", &clearsky.Outcome{RunID: "run-3", StarCount: 3}, nil)
	tr.Record("/captures/d.jpg", nil, fmt.Errorf("detection failed: %w", clearsky.ErrDecode))

	snap = tr.Snapshot()
	assert.Equal(t, Totals{Runs: 4, Failed: 1, Alerts: 1, Suppressed: 1}, snap.Totals)
	assert.Equal(t, "cooling", snap.Gate)
	require.NotNil(t, snap.LastAlert)
	assert.Equal(t, t0, *snap.LastAlert)
	require.NotNil(t, snap.Last)
	assert.Equal(t, "/captures/d.jpg", snap.Last.File)
	assert.Contains(t, snap.Last.Error, "image could not be decoded")
}

func TestTracker_RecordsNonFatalErrors(t *testing.T) {
	tr, _, _ := newTestTracker()
	tr.Record("a.jpg", &clearsky.Outcome{
		RunID: "run-1", StarCount: 12, Permitted: true,
		AlertErr: fmt.Errorf("%w: timeout", clearsky.ErrTransport),
	}, nil)

	snap := tr.Snapshot()
	assert.Equal(t, 0, snap.Totals.Failed)
	assert.Equal(t, 0, snap.Totals.Alerts)
	assert.Contains(t, snap.Last.Error, "alert transport failed")
}

func TestRouter_Healthz(t *testing.T) {
	tr, _, _ := newTestTracker()
	r := NewRouter(tr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"clearskyalarm"}`, w.Body.String())
}

func TestRouter_Status(t *testing.T) {
	tr, _, _ := newTestTracker()
	tr.Record("a.jpg", &clearsky.Outcome{RunID: "run-1", StarCount: 7, Duration: time.Second}, nil)
	r := NewRouter(tr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Totals.Runs)
	assert.Equal(t, "armed", snap.Gate)
	require.NotNil(t, snap.Last)
	assert.Equal(t, 7, snap.Last.StarCount)
	assert.Equal(t, int64(1000), snap.Last.ElapsedMS)
	assert.Equal(t, 10, snap.StarThreshold)
}

func TestRouter_Metrics(t *testing.T) {
	tr, _, _ := newTestTracker()
	r := NewRouter(tr)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestServer_RunAndShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	tr, _, _ := newTestTracker()
	srv := NewServer(zap.NewNop(), addr, tr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	tr, _, _ := newTestTracker()
	err = NewServer(zap.NewNop(), l.Addr().String(), tr).Run(context.Background())
	assert.Error(t, err)
}
