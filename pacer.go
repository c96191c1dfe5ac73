package twitter

import (
	"context"
	"math/rand/v2"
	"time"
)

// Window is a closed range of delays.
type Window struct {
	Min time.Duration `yaml:"min"`
	Max time.Duration `yaml:"max"`
}

// Fixed returns a window that always yields d.
func Fixed(d time.Duration) Window {
	return Window{Min: d, Max: d}
}

func (w Window) valid() bool {
	return w.Min >= 0 && w.Min <= w.Max
}

// pick draws a delay uniformly from the window.
func (w Window) pick() time.Duration {
	if w.Max <= w.Min {
		return w.Min
	}
	return w.Min + time.Duration(rand.Int64N(int64(w.Max-w.Min)+1))
}

// Pacer inserts the pauses between collection steps. Tests use NoPacer.
type Pacer interface {
	Pause(ctx context.Context, w Window) error
}

// RandomPacer sleeps for a random duration inside the window.
type RandomPacer struct{}

// Pause sleeps for a duration drawn from w, or until ctx is done.
func (RandomPacer) Pause(ctx context.Context, w Window) error {
	d := w.pick()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// NoPacer never waits.
type NoPacer struct{}

// Pause returns ctx.Err() without waiting.
func (NoPacer) Pause(ctx context.Context, _ Window) error {
	return ctx.Err()
}

// Limits is the termination policy shared by the collectors.
type Limits struct {
	// MaxItems caps the collection size. Zero means unbounded.
	MaxItems int
	// MaxSteps caps scroll steps or fetched batches. Zero means unbounded.
	MaxSteps int
	// MaxRetries is the number of consecutive per-iteration failures
	// tolerated before the loop gives up with a partial result.
	MaxRetries int
}

func (l Limits) full(n int) bool {
	return l.MaxItems > 0 && n >= l.MaxItems
}

func (l Limits) exhausted(steps int) bool {
	return l.MaxSteps > 0 && steps >= l.MaxSteps
}
