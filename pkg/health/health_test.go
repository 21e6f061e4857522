package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysOK(_ context.Context) error { return nil }

func alwaysFail(_ context.Context) error { return errors.New("boom") }

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func decodeStatus(t *testing.T, w *httptest.ResponseRecorder) statusBody {
	t.Helper()
	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestProbe_FailureThreshold(t *testing.T) {
	p := newProbe("db", time.Second, alwaysFail, nil)
	ctx := context.Background()

	// Default threshold is 3 consecutive failures.
	p.run(ctx)
	p.run(ctx)
	assert.True(t, p.isHealthy())

	p.run(ctx)
	assert.False(t, p.isHealthy())
	assert.EqualError(t, p.lastError(), "boom")
}

func TestProbe_SuccessThreshold(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	check := func(_ context.Context) error {
		if fail.Load() {
			return errors.New("down")
		}
		return nil
	}

	p := newProbe("db", time.Second, check, []Option{
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
	})
	ctx := context.Background()

	p.run(ctx)
	require.False(t, p.isHealthy())

	// A single success is not enough to recover.
	fail.Store(false)
	p.run(ctx)
	assert.False(t, p.isHealthy())

	p.run(ctx)
	assert.True(t, p.isHealthy())
}

func TestProbe_TimeoutAppliesToCheck(t *testing.T) {
	p := newProbe("slow", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
			return nil
		}
	}, []Option{WithFailureThreshold(1)})

	p.run(context.Background())
	assert.False(t, p.isHealthy())
	assert.ErrorIs(t, p.lastError(), context.DeadlineExceeded)
}

func TestHealth_ReadyRequiresManualFlag(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysOK)

	assert.False(t, h.IsReady(), "not ready before SetReady")

	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestHealth_ReadyEndpointReportsFailures(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, alwaysFail, WithFailureThreshold(1))
	h.SetReady(true)

	// Drive the probe directly instead of waiting on Start's ticker.
	h.readiness[0].run(context.Background())

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeStatus(t, w)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "boom", body.Checks["postgres"])
}

func TestHealth_ReadyEndpointNotReady(t *testing.T) {
	h := New()

	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	body := decodeStatus(t, w)
	assert.Equal(t, "service is not ready", body.Checks["_readiness"])
}

func TestHealth_LiveEndpointOK(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))

	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeStatus(t, w).Status)
}

func TestHealth_StartRunsProbes(t *testing.T) {
	var calls atomic.Int32
	h := New()
	h.AddReadinessCheck("counter", time.Second, func(_ context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.Start(ctx, 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		return calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)
}

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestPingCheck(t *testing.T) {
	require.NoError(t, PingCheck(stubPinger{})(context.Background()))

	err := PingCheck(stubPinger{err: errors.New("connection refused")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}
