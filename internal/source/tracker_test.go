package source

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriceWindowTrimsOldPoints(t *testing.T) {
	w := newPriceWindow(10 * time.Minute)
	base := time.Now()

	w.observe("BTC-USD", 100, base.Add(-15*time.Minute))
	w.observe("BTC-USD", 101, base.Add(-5*time.Minute))
	w.observe("BTC-USD", 102, base)

	assert.Equal(t, 2, w.count("BTC-USD"), "the 15-minute-old point fell out")
}

func TestPriceWindowChange(t *testing.T) {
	w := newPriceWindow(10 * time.Minute)
	base := time.Now()

	assert.Zero(t, w.change("BTC-USD"), "empty window has no move")

	w.observe("BTC-USD", 100, base.Add(-2*time.Minute))
	assert.Zero(t, w.change("BTC-USD"), "one point has no move")

	w.observe("BTC-USD", 102, base)
	assert.InDelta(t, 0.02, w.change("BTC-USD"), 1e-9)

	w.observe("ETH-USD", 200, base.Add(-time.Minute))
	w.observe("ETH-USD", 190, base)
	assert.InDelta(t, -0.05, w.change("ETH-USD"), 1e-9, "declines are negative")
}

func TestPriceWindowVolatility(t *testing.T) {
	w := newPriceWindow(10 * time.Minute)
	base := time.Now()

	w.observe("FLAT-USD", 100, base.Add(-2*time.Minute))
	w.observe("FLAT-USD", 100, base.Add(-time.Minute))
	w.observe("FLAT-USD", 100, base)
	assert.Zero(t, w.volatility("FLAT-USD"))

	// 90 and 110 around a mean of 100: stddev 10, relative 0.1.
	w.observe("CHOP-USD", 90, base.Add(-time.Minute))
	w.observe("CHOP-USD", 110, base)
	assert.InDelta(t, 0.1, w.volatility("CHOP-USD"), 1e-9)
}

func TestPriceWindowInstrumentsAreIndependent(t *testing.T) {
	w := newPriceWindow(10 * time.Minute)
	base := time.Now()

	w.observe("BTC-USD", 100, base)
	assert.Equal(t, 1, w.count("BTC-USD"))
	assert.Zero(t, w.count("ETH-USD"))
}
