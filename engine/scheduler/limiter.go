package scheduler

import "context"

// Limiter is a cooperative concurrency bound: N in-flight probes max,
// grounded on engine/internal/resources.Manager's buffered-channel slot
// accounting. The manager's default N is 32 (manager.Config.WithDefaults),
// to stay well under a typical per-process socket ceiling.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter constructs a Limiter with the given max in-flight count. A
// non-positive max disables the bound (every Acquire succeeds immediately).
func NewLimiter(max int) *Limiter {
	if max <= 0 {
		return &Limiter{}
	}
	return &Limiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is available or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l.slots == nil {
		return nil
	}
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a slot acquired by Acquire.
func (l *Limiter) Release() {
	if l.slots == nil {
		return
	}
	select {
	case <-l.slots:
	default:
	}
}

// InFlight reports the current number of held slots, for metrics (P4).
func (l *Limiter) InFlight() int {
	if l.slots == nil {
		return 0
	}
	return len(l.slots)
}
