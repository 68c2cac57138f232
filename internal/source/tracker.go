package source

import (
	"math"
	"sync"
	"time"
)

// pricePoint records a single price observation at a point in time.
type pricePoint struct {
	price float64
	time  time.Time
}

// priceWindow maintains a sliding window of recent prices per instrument and
// exposes the statistics the momentum scanner relies on.
type priceWindow struct {
	mu      sync.RWMutex
	history map[string][]pricePoint
	span    time.Duration
}

func newPriceWindow(span time.Duration) *priceWindow {
	return &priceWindow{
		history: make(map[string][]pricePoint),
		span:    span,
	}
}

// observe records a price and trims points that fell outside the window.
func (w *priceWindow) observe(instrument string, price float64, ts time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	pts := append(w.history[instrument], pricePoint{price: price, time: ts})
	cutoff := ts.Add(-w.span)
	for len(pts) > 0 && pts[0].time.Before(cutoff) {
		pts = pts[1:]
	}
	w.history[instrument] = pts
}

// count returns the number of points currently in the window.
func (w *priceWindow) count(instrument string) int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.history[instrument])
}

// change returns the fractional price move from the oldest to the newest
// point, e.g. 0.02 for +2%.
func (w *priceWindow) change(instrument string) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	pts := w.history[instrument]
	if len(pts) < 2 || pts[0].price == 0 {
		return 0
	}
	return (pts[len(pts)-1].price - pts[0].price) / pts[0].price
}

// volatility returns the population standard deviation of the window's
// prices relative to their mean, so instruments of different magnitudes are
// comparable.
func (w *priceWindow) volatility(instrument string) float64 {
	w.mu.RLock()
	defer w.mu.RUnlock()

	pts := w.history[instrument]
	if len(pts) < 2 {
		return 0
	}

	var sum float64
	for _, p := range pts {
		sum += p.price
	}
	mean := sum / float64(len(pts))
	if mean == 0 {
		return 0
	}

	var variance float64
	for _, p := range pts {
		d := p.price - mean
		variance += d * d
	}
	variance /= float64(len(pts))
	return math.Sqrt(variance) / mean
}
