package stream

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/icsattest/icsattest/attest"
	"github.com/icsattest/icsattest/log"
	"github.com/icsattest/icsattest/metrics"
)

// accuracyEpsilon floors the denominator of the relative accuracy error so
// near-zero readings do not explode the percentage.
const accuracyEpsilon = 1e-9

// DefaultMaxConcurrent caps in-flight requests when the caller does not
// configure a limit.
const DefaultMaxConcurrent = 50

// Engine drives one or more sensor streams through an attestor and the
// collector client at a fixed per-stream rate.
//
// Scheduling is absolute: iteration i targets t_i = t₀ + i·interval, so
// sleep jitter never accumulates into rate drift. When dispatch falls
// behind (semaphore saturated, slow attestor) the engine continues at best
// effort against the unchanged absolute schedule and records the lag;
// missed windows are not retried.
type Engine struct {
	client        *Client
	attestor      attest.Attestor
	maxConcurrent int64
	collector     *metrics.Collector
	logger        *log.Logger
}

// NewEngine builds an engine around a client and an attestor.
// maxConcurrent <= 0 selects DefaultMaxConcurrent.
func NewEngine(client *Client, attestor attest.Attestor, maxConcurrent int) *Engine {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Engine{
		client:        client,
		attestor:      attestor,
		maxConcurrent: int64(maxConcurrent),
		logger:        log.Default().Module("stream").With("algorithm", attestor.Algorithm()),
	}
}

// SetMetrics attaches a collector that receives per-request latency
// histograms and run counters.
func (e *Engine) SetMetrics(c *metrics.Collector) { e.collector = c }

// Run executes one stream to completion and returns its aggregate. A
// cancelled context stops enqueueing immediately; samples already in
// flight resolve naturally (or time out) and are counted, samples never
// enqueued are dropped without being counted as failures.
func (e *Engine) Run(ctx context.Context, s SensorStream, src ValueSource) (*Result, error) {
	if len(s.SensorIDs) == 0 {
		return nil, errors.New("stream: no sensors")
	}
	if s.FrequencyHz <= 0 {
		return nil, fmt.Errorf("stream: invalid frequency %d", s.FrequencyHz)
	}
	if s.Duration <= 0 && s.TargetCount <= 0 {
		return nil, errors.New("stream: need a duration or a target count")
	}

	interval := time.Second / time.Duration(s.FrequencyHz)
	iterations := math.MaxInt
	if s.Duration > 0 {
		iterations = int(s.Duration.Seconds() * float64(s.FrequencyHz))
	}
	if s.TargetCount > 0 {
		byTarget := (s.TargetCount + len(s.SensorIDs) - 1) / len(s.SensorIDs)
		if byTarget < iterations {
			iterations = byTarget
		}
	}

	e.logger.Info("stream starting",
		"sensors", len(s.SensorIDs), "frequency_hz", s.FrequencyHz,
		"iterations", iterations, "max_concurrent", e.maxConcurrent)

	sem := semaphore.NewWeighted(e.maxConcurrent)
	results := make(chan Response, e.maxConcurrent)
	var responses []Response
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for r := range results {
			responses = append(responses, r)
			e.record(r)
		}
	}()

	var wg sync.WaitGroup
	var lagMS float64
	t0 := time.Now()
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}

dispatch:
	for i := 0; i < iterations; i++ {
		target := t0.Add(time.Duration(i) * interval)
		if wait := time.Until(target); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				break dispatch
			case <-timer.C:
			}
		}
		deviation := float64(time.Since(target).Microseconds()) / 1000.0
		if deviation > 0 {
			lagMS += deviation
		}

		for _, sensorID := range s.SensorIDs {
			value := src.Next(sensorID, i)
			if err := sem.Acquire(ctx, 1); err != nil {
				break dispatch
			}
			req := Request{
				SensorID:  sensorID,
				Value:     value,
				Timestamp: float64(time.Now().UnixNano()) / 1e9,
				RequestID: uuid.NewString(),
			}
			wg.Add(1)
			go func(req Request, deviation float64) {
				defer wg.Done()
				defer sem.Release(1)
				results <- e.dispatch(ctx, req, deviation)
			}(req, deviation)
		}
	}

	wg.Wait()
	close(results)
	<-collectDone

	res := aggregate(responses, time.Since(t0), lagMS)
	e.logger.Info("stream finished",
		"total", res.Total, "successful", res.Successful, "failed", res.Failed,
		"throughput_ops", res.ThroughputOpsPerSec, "schedule_lag_ms", res.ScheduleLagMS)
	return res, nil
}

// dispatch resolves one sample: attest, post, decode, classify. Every
// failure is recovered into a Response; nothing here can abort the run.
func (e *Engine) dispatch(ctx context.Context, req Request, deviationMS float64) Response {
	resp := Response{
		RequestID:           req.RequestID,
		SensorID:            req.SensorID,
		OriginalValue:       req.Value,
		ScheduleDeviationMS: deviationMS,
	}

	encStart := time.Now()
	payload, err := e.attestor.Attest(req.SensorID, req.Value, encStart)
	resp.EncryptionTimeMS = float64(time.Since(encStart).Microseconds()) / 1000.0
	if err != nil {
		resp.ErrorMessage = err.Error()
		return resp
	}

	// Cancellation stops new dispatches only; a sample already in flight
	// resolves naturally under the per-request timeout.
	netStart := time.Now()
	vr, _, err := e.client.Post(context.WithoutCancel(ctx), payload)
	resp.ResponseTimeMS = float64(time.Since(netStart).Microseconds()) / 1000.0
	if err != nil {
		if isTimeout(err) {
			resp.ErrorMessage = "Request timeout"
			resp.EncryptionTimeMS = 0
		} else {
			resp.ErrorMessage = err.Error()
		}
		return resp
	}

	resp.Success = vr.OK()
	resp.ServerProcessingTimeMS = vr.ProcessingTimeMS
	if !resp.Success && vr.ErrorMessage != "" {
		resp.ErrorMessage = vr.ErrorMessage
	}
	if rec := vr.Recovered(); rec != nil {
		resp.RecoveredValue = rec
		acc := math.Abs(*rec-req.Value) / math.Max(math.Abs(req.Value), accuracyEpsilon) * 100
		resp.AccuracyError = &acc
	}
	return resp
}

// record feeds per-request observations into the attached metrics
// collector, if any.
func (e *Engine) record(r Response) {
	if e.collector == nil {
		return
	}
	tags := map[string]string{"algorithm": e.attestor.Algorithm()}
	e.collector.RecordHistogram("stream.encryption_ms", r.EncryptionTimeMS)
	e.collector.RecordHistogram("stream.response_ms", r.ResponseTimeMS)
	e.collector.RecordHistogram("stream.schedule_deviation_ms", r.ScheduleDeviationMS)
	if r.Success {
		e.collector.Increment("stream.successful", tags)
	} else {
		e.collector.Increment("stream.failed", tags)
	}
}

// isTimeout classifies transport errors that should surface as the fixed
// "Request timeout" message.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
