// Package experiment crosses sensor counts, sample rates and attestation
// schemes into a run matrix, executes each condition through the streaming
// engine, and folds the outcomes into a serializable summary. Plotting and
// dataset management live outside this module; the summary goes to a Sink.
package experiment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/icsattest/icsattest/attest"
	"github.com/icsattest/icsattest/log"
	"github.com/icsattest/icsattest/metrics"
	"github.com/icsattest/icsattest/stream"
)

// Matrix describes the crossed conditions of one experiment.
type Matrix struct {
	SensorCounts []int    `json:"sensor_counts"`
	Frequencies  []int    `json:"frequencies_hz"`
	Algorithms   []string `json:"algorithms"`
	DurationS    int      `json:"duration_s"`
	// WarmupSamples are sent and discarded before each measured
	// condition so connection setup and key caches never pollute the
	// first measurements.
	WarmupSamples int `json:"warmup_samples"`
}

// Condition is one cell of the matrix.
type Condition struct {
	SensorCount int    `json:"sensor_count"`
	FrequencyHz int    `json:"frequency_hz"`
	Algorithm   string `json:"algorithm"`
}

// ConditionResult pairs a condition with its streaming aggregate and the
// latency digest captured while it ran.
type ConditionResult struct {
	Condition
	Result       *stream.Result            `json:"result"`
	EncryptionMS *metrics.HistogramSummary `json:"encryption_ms,omitempty"`
	ResponseMS   *metrics.HistogramSummary `json:"response_ms,omitempty"`
	Error        string                    `json:"error,omitempty"`
}

// RunSummary is the whole experiment outcome.
type RunSummary struct {
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Conditions []ConditionResult `json:"conditions"`
}

// Sink consumes a finished summary.
type Sink interface {
	WriteSummary(*RunSummary) error
}

// JSONSink writes the summary as indented JSON.
type JSONSink struct {
	W io.Writer
}

// WriteSummary implements Sink.
func (s JSONSink) WriteSummary(sum *RunSummary) error {
	enc := json.NewEncoder(s.W)
	enc.SetIndent("", "  ")
	return enc.Encode(sum)
}

// AttestorFactory builds the attestor for a named scheme. The factory runs
// once per scheme per experiment; CKKS context fetching belongs in here.
type AttestorFactory func(ctx context.Context, algorithm string) (attest.Attestor, error)

// Runner executes matrices.
type Runner struct {
	client        *stream.Client
	factory       AttestorFactory
	collector     *metrics.Collector
	maxConcurrent int
	logger        *log.Logger
}

// NewRunner builds a runner. collector may be nil to skip histograms.
func NewRunner(client *stream.Client, factory AttestorFactory, collector *metrics.Collector, maxConcurrent int) *Runner {
	return &Runner{
		client:        client,
		factory:       factory,
		collector:     collector,
		maxConcurrent: maxConcurrent,
		logger:        log.Default().Module("experiment"),
	}
}

// Run executes every cell of the matrix in order. A failing condition is
// recorded and the matrix continues; only attestor construction failure
// (for example an unreachable CKKS context) aborts, since every later cell
// of that scheme would fail identically.
func (r *Runner) Run(ctx context.Context, m Matrix, src stream.ValueSource) (*RunSummary, error) {
	if len(m.SensorCounts) == 0 || len(m.Frequencies) == 0 || len(m.Algorithms) == 0 {
		return nil, fmt.Errorf("experiment: empty matrix")
	}
	if m.DurationS <= 0 {
		return nil, fmt.Errorf("experiment: duration must be positive")
	}
	summary := &RunSummary{StartedAt: time.Now()}

	for _, algorithm := range m.Algorithms {
		attestor, err := r.factory(ctx, algorithm)
		if err != nil {
			return nil, fmt.Errorf("experiment: build %s attestor: %w", algorithm, err)
		}
		engine := stream.NewEngine(r.client, attestor, r.maxConcurrent)
		if r.collector != nil {
			engine.SetMetrics(r.collector)
		}

		for _, sensors := range m.SensorCounts {
			for _, freq := range m.Frequencies {
				cond := Condition{SensorCount: sensors, FrequencyHz: freq, Algorithm: algorithm}
				r.logger.Info("condition starting",
					"algorithm", algorithm, "sensors", sensors, "frequency_hz", freq)

				if m.WarmupSamples > 0 {
					warm := stream.SensorStream{
						SensorIDs:   sensorIDs(sensors),
						FrequencyHz: freq,
						TargetCount: m.WarmupSamples,
						Duration:    time.Duration(m.DurationS) * time.Second,
					}
					if _, err := engine.Run(ctx, warm, src); err != nil {
						r.logger.Warn("warmup failed", "error", err)
					}
					if r.collector != nil {
						r.collector.Reset()
					}
				}

				s := stream.SensorStream{
					SensorIDs:   sensorIDs(sensors),
					FrequencyHz: freq,
					Duration:    time.Duration(m.DurationS) * time.Second,
				}
				res, err := engine.Run(ctx, s, src)
				cr := ConditionResult{Condition: cond, Result: res}
				if err != nil {
					cr.Error = err.Error()
				} else if r.collector != nil {
					if h, ok := r.collector.Summarize("stream.encryption_ms"); ok {
						cr.EncryptionMS = &h
					}
					if h, ok := r.collector.Summarize("stream.response_ms"); ok {
						cr.ResponseMS = &h
					}
					r.collector.Reset()
				}
				summary.Conditions = append(summary.Conditions, cr)

				if ctx.Err() != nil {
					summary.FinishedAt = time.Now()
					return summary, ctx.Err()
				}
			}
		}
	}
	summary.FinishedAt = time.Now()
	return summary, nil
}

// sensorIDs produces the stable synthetic sensor names of a condition.
func sensorIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("sensor_%03d", i+1)
	}
	return ids
}
