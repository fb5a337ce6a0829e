package stream

import "time"

// Ticker is a cancellable periodic tick handle. The indirection exists so
// tests can drive the scheduler deterministically instead of sleeping
// against wall-clock timers.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory builds the scheduler ticker for a given interval.
type TickerFactory func(interval time.Duration) Ticker

type wallTicker struct {
	t *time.Ticker
}

// NewWallTicker returns a Ticker backed by a wall-clock time.Ticker.
func NewWallTicker(interval time.Duration) Ticker {
	return &wallTicker{t: time.NewTicker(interval)}
}

func (w *wallTicker) C() <-chan time.Time {
	return w.t.C
}

func (w *wallTicker) Stop() {
	w.t.Stop()
}
