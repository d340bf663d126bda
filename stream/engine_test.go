package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icsattest/icsattest/attest"
	"github.com/icsattest/icsattest/metrics"
)

// newVerifyingServer answers every scheme endpoint with a verdict. The
// handler echoes the posted value back as recovered_value shifted by skew
// so accuracy computation is observable.
func newVerifyingServer(t *testing.T, skew float64, delay time.Duration, status int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		resp := map[string]any{
			"verified":           true,
			"processing_time_ms": 0.5,
			"algorithm":          "hmac",
		}
		if v, ok := body["value"].(float64); ok {
			resp["recovered_value"] = v + skew
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newTestEngine(t *testing.T, baseURL string, timeout time.Duration) *Engine {
	t.Helper()
	a, err := attest.NewHMACAttestor(nil)
	require.NoError(t, err)
	return NewEngine(NewClient(baseURL, timeout, 10), a, 10)
}

func TestRunTargetCount(t *testing.T) {
	srv, hits := newVerifyingServer(t, 0, 0, http.StatusOK)
	e := newTestEngine(t, srv.URL, 2*time.Second)

	res, err := e.Run(context.Background(), SensorStream{
		SensorIDs:   []string{"s1", "s2"},
		FrequencyHz: 50,
		TargetCount: 10,
	}, NewSyntheticSource(25, 5))
	require.NoError(t, err)
	require.Equal(t, 10, res.Total)
	require.Equal(t, 10, res.Successful)
	require.Equal(t, 0, res.Failed)
	require.EqualValues(t, 10, hits.Load())
	require.Greater(t, res.ThroughputOpsPerSec, 0.0)
	require.Greater(t, res.AvgResponseMS, 0.0)

	// Responses carry unique correlation ids.
	seen := map[string]bool{}
	for _, r := range res.Responses {
		require.False(t, seen[r.RequestID], "duplicate request id %s", r.RequestID)
		seen[r.RequestID] = true
	}
}

func TestRunAccuracyError(t *testing.T) {
	srv, _ := newVerifyingServer(t, 0.5, 0, http.StatusOK)
	e := newTestEngine(t, srv.URL, 2*time.Second)

	res, err := e.Run(context.Background(), SensorStream{
		SensorIDs:   []string{"s1"},
		FrequencyHz: 50,
		TargetCount: 3,
	}, FuncSource(func(string, int) float64 { return 100.0 }))
	require.NoError(t, err)
	require.Equal(t, 3, res.Successful)
	require.NotNil(t, res.AvgAccuracyError)
	// |100.5 − 100| / 100 · 100 = 0.5%.
	require.InDelta(t, 0.5, *res.AvgAccuracyError, 1e-9)
}

func TestRunRequestTimeout(t *testing.T) {
	srv, _ := newVerifyingServer(t, 0, 500*time.Millisecond, http.StatusOK)
	e := newTestEngine(t, srv.URL, 50*time.Millisecond)

	res, err := e.Run(context.Background(), SensorStream{
		SensorIDs:   []string{"s1"},
		FrequencyHz: 50,
		TargetCount: 2,
	}, NewSyntheticSource(25, 5))
	require.NoError(t, err)
	require.Equal(t, 2, res.Failed)
	for _, r := range res.Responses {
		require.False(t, r.Success)
		require.Equal(t, "Request timeout", r.ErrorMessage)
		require.Zero(t, r.EncryptionTimeMS)
	}
}

func TestRunHTTPError(t *testing.T) {
	srv, _ := newVerifyingServer(t, 0, 0, http.StatusInternalServerError)
	e := newTestEngine(t, srv.URL, 2*time.Second)

	res, err := e.Run(context.Background(), SensorStream{
		SensorIDs:   []string{"s1"},
		FrequencyHz: 50,
		TargetCount: 1,
	}, NewSyntheticSource(25, 5))
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
	require.Contains(t, res.Responses[0].ErrorMessage, "HTTP 500")
}

// TestRunAbsoluteSchedule checks rate fidelity: with capacity to spare,
// per-request dispatch deviations stay small and do not accumulate over
// the run the way naive interval sleeping would.
func TestRunAbsoluteSchedule(t *testing.T) {
	srv, _ := newVerifyingServer(t, 0, 0, http.StatusOK)
	e := newTestEngine(t, srv.URL, 2*time.Second)

	res, err := e.Run(context.Background(), SensorStream{
		SensorIDs:   []string{"s1"},
		FrequencyHz: 20,
		Duration:    time.Second,
	}, NewSyntheticSource(25, 5))
	require.NoError(t, err)
	require.Equal(t, 20, res.Total)

	late := 0
	for _, r := range res.Responses {
		if r.ScheduleDeviationMS > 25 {
			late++
		}
	}
	// Generous bound for loaded CI hosts; on an unloaded machine the
	// deviations sit well under a millisecond.
	require.LessOrEqual(t, late, 2, "too many samples missed their window")
	// The run must take roughly the configured duration, not drift past
	// it by whole intervals.
	require.InDelta(t, 1.0, res.ActualDuration.Seconds(), 0.5)
}

func TestRunCancellation(t *testing.T) {
	srv, _ := newVerifyingServer(t, 0, 0, http.StatusOK)
	e := newTestEngine(t, srv.URL, 2*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(300 * time.Millisecond)
		cancel()
	}()
	res, err := e.Run(ctx, SensorStream{
		SensorIDs:   []string{"s1"},
		FrequencyHz: 10,
		Duration:    10 * time.Second,
	}, NewSyntheticSource(25, 5))
	require.NoError(t, err)
	// Undispatched samples are dropped, not counted as failures.
	require.Less(t, res.Total, 100)
	require.Equal(t, 0, res.Failed)
}

func TestRunValidation(t *testing.T) {
	srv, _ := newVerifyingServer(t, 0, 0, http.StatusOK)
	e := newTestEngine(t, srv.URL, time.Second)

	_, err := e.Run(context.Background(), SensorStream{FrequencyHz: 1, Duration: time.Second}, NewSyntheticSource(25, 5))
	require.Error(t, err)
	_, err = e.Run(context.Background(), SensorStream{SensorIDs: []string{"s"}, Duration: time.Second}, NewSyntheticSource(25, 5))
	require.Error(t, err)
	_, err = e.Run(context.Background(), SensorStream{SensorIDs: []string{"s"}, FrequencyHz: 1}, NewSyntheticSource(25, 5))
	require.Error(t, err)
}

func TestRunRecordsMetrics(t *testing.T) {
	srv, _ := newVerifyingServer(t, 0, 0, http.StatusOK)
	e := newTestEngine(t, srv.URL, 2*time.Second)
	c := metrics.NewCollector(0)
	e.SetMetrics(c)

	_, err := e.Run(context.Background(), SensorStream{
		SensorIDs:   []string{"s1"},
		FrequencyHz: 50,
		TargetCount: 5,
	}, NewSyntheticSource(25, 5))
	require.NoError(t, err)

	require.EqualValues(t, 5, c.Counter("stream.successful"))
	sum, ok := c.Summarize("stream.response_ms")
	require.True(t, ok)
	require.Equal(t, 5, sum.Count)
}
