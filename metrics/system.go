package metrics

import (
	"context"
	"time"
)

// SystemSample is one observation of host resource usage. How the numbers
// are obtained is outside this module; the sampler is opaque.
type SystemSample struct {
	CPUPercent    float64
	MemoryMB      float64
	GPUPercent    float64
	GPUMemoryMB   float64
	GoroutineNum  int
	TimestampUnix int64
}

// SystemSampler returns the current host resource numbers.
type SystemSampler interface {
	Sample() SystemSample
}

// RunMonitor periodically samples host metrics during a run and records
// them into a Collector so latency series and resource series share one
// timeline.
type RunMonitor struct {
	sampler   SystemSampler
	collector *Collector
	interval  time.Duration
}

// NewRunMonitor builds a monitor sampling at the given interval.
func NewRunMonitor(s SystemSampler, c *Collector, interval time.Duration) *RunMonitor {
	if interval <= 0 {
		interval = time.Second
	}
	return &RunMonitor{sampler: s, collector: c, interval: interval}
}

// Run samples until the context is cancelled. It is meant to be launched
// alongside a streaming run and stopped with it.
func (m *RunMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s := m.sampler.Sample()
			m.collector.Record("system.cpu_percent", s.CPUPercent, nil)
			m.collector.Record("system.memory_mb", s.MemoryMB, nil)
			if s.GPUPercent > 0 {
				m.collector.Record("system.gpu_percent", s.GPUPercent, nil)
			}
			m.collector.RecordHistogram("system.cpu_percent_series", s.CPUPercent)
		}
	}
}
