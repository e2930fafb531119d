package scheduler

import (
	"sync"
	"time"
)

// Tracker holds the per-node "last checked" bookkeeping and computes
// whether a node is due, applying the accelerated-retry rule of spec.md
// §4.1: effective interval is interval/3 while the node is PENDING.
type Tracker struct {
	mu   sync.Mutex
	last map[string]time.Time
	clk  Clock
}

// NewTracker constructs a Tracker using the given Clock.
func NewTracker(clk Clock) *Tracker {
	if clk == nil {
		clk = RealClock{}
	}
	return &Tracker{last: make(map[string]time.Time), clk: clk}
}

// EffectiveInterval applies the accelerated-retry rule.
func EffectiveInterval(interval time.Duration, pending bool) time.Duration {
	if pending {
		return interval / 3
	}
	return interval
}

// Due reports whether nodeID is due for its next probe given interval and
// pending state, without recording a check.
func (t *Tracker) Due(nodeID string, interval time.Duration, pending bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[nodeID]
	if !ok {
		return true
	}
	return t.clk.Now().Sub(last) >= EffectiveInterval(interval, pending)
}

// MarkChecked records nodeID as checked at the current time.
func (t *Tracker) MarkChecked(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[nodeID] = t.clk.Now()
}

// TriggerImmediate resets nodeID's last-checked time so the next tick
// schedules it regardless of interval (spec.md §4.7 trigger_immediate).
func (t *Tracker) TriggerImmediate(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[nodeID] = time.Time{}
}

// Remove evicts a node's bookkeeping entirely (spec.md §4.7 remove).
func (t *Tracker) Remove(nodeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.last, nodeID)
}

// Count returns the number of tracked nodes.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.last)
}
