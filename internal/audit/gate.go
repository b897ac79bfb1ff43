package audit

import (
	"context"
	"errors"

	"golang.org/x/sync/semaphore"

	"github.com/jonathan/site-auditor/internal/telemetry"
)

// DefaultMaxConcurrent bounds how many audit pipelines run at once.
const DefaultMaxConcurrent = 3

// ErrServerBusy is returned by reject-mode admission when every audit slot
// is taken.
var ErrServerBusy = errors.New("audit capacity reached, try again later")

// Gate is the admission control for audit pipelines. Reject-mode callers
// use TryAcquire and surface ErrServerBusy; queue-mode callers block on
// Acquire, which hands out slots in FIFO order.
type Gate struct {
	sem *semaphore.Weighted
	max int64
}

func NewGate(maxConcurrent int64) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Gate{sem: semaphore.NewWeighted(maxConcurrent), max: maxConcurrent}
}

// TryAcquire claims a slot without waiting.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		return false
	}
	telemetry.AuditsInFlight.Inc()
	return true
}

// Acquire waits for a slot.
func (g *Gate) Acquire(ctx context.Context) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	telemetry.AuditsInFlight.Inc()
	return nil
}

// Release returns a slot claimed by TryAcquire or Acquire.
func (g *Gate) Release() {
	telemetry.AuditsInFlight.Dec()
	g.sem.Release(1)
}

// Capacity reports the configured slot count.
func (g *Gate) Capacity() int64 {
	return g.max
}
