package stream

import (
	"hash/fnv"
	"math"
)

// ValueSource supplies the reading for iteration i of a sensor. Dataset
// replay lives outside this module; the engine only ever sees this
// interface.
type ValueSource interface {
	Next(sensorID string, i int) float64
}

// SyntheticSource produces deterministic, sensor-specific waveforms for
// tests and offline runs: a slow sine per sensor with a phase and offset
// derived from the sensor id, so distinct sensors emit distinct but
// reproducible series.
type SyntheticSource struct {
	// Base and Amplitude shape the emitted range: readings stay within
	// [Base-Amplitude, Base+Amplitude].
	Base      float64
	Amplitude float64
}

// NewSyntheticSource returns a source emitting around base ± amplitude.
func NewSyntheticSource(base, amplitude float64) *SyntheticSource {
	return &SyntheticSource{Base: base, Amplitude: amplitude}
}

// Next implements ValueSource.
func (s *SyntheticSource) Next(sensorID string, i int) float64 {
	h := fnv.New32a()
	h.Write([]byte(sensorID))
	phase := float64(h.Sum32()%360) * math.Pi / 180
	return s.Base + s.Amplitude*math.Sin(phase+float64(i)/10)
}

// FuncSource adapts a plain function to ValueSource.
type FuncSource func(sensorID string, i int) float64

// Next implements ValueSource.
func (f FuncSource) Next(sensorID string, i int) float64 { return f(sensorID, i) }
