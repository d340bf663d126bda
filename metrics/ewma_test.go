package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEWMAFirstTickIsInstantRate(t *testing.T) {
	e := NewEWMA(60, 5)
	e.Update(100)
	e.Tick()
	require.InDelta(t, 20.0, e.Rate(), 1e-9)
}

func TestEWMADecaysTowardNewRate(t *testing.T) {
	e := NewEWMA(60, 5)
	e.Update(100)
	e.Tick()
	first := e.Rate()

	// No further events: the rate must decay, not hold.
	e.Tick()
	require.Less(t, e.Rate(), first)
	require.Greater(t, e.Rate(), 0.0)
}

func TestRequestRateDefaults(t *testing.T) {
	e := NewRequestRate()
	e.Update(50)
	e.Tick()
	require.InDelta(t, 10.0, e.Rate(), 1e-9)
}
