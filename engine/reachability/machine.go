// Package reachability implements the per-node reachability state machine
// of spec.md §4.6: UP/PENDING/DOWN/PAUSED with max_retries-bounded
// transitions, grounded on
// other_examples/0348868b_PilotFiber-icmp-mon's state_machine.go shape and
// original_source/backend/monitor_manager.py's transition semantics.
package reachability

import (
	"sync"
	"time"

	"netwatch/engine/models"
)

// Machine holds the per-node ReachabilityState and applies probe outcomes
// to it under a single mutex; one Machine serves the whole inventory.
type Machine struct {
	mu     sync.Mutex
	states map[string]models.ReachabilityState
}

// New constructs an empty Machine.
func New() *Machine {
	return &Machine{states: make(map[string]models.ReachabilityState)}
}

// State returns the current state for nodeID, defaulting to UP for a node
// never yet recorded.
func (m *Machine) State(nodeID string) models.ReachabilityState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[nodeID]
	if !ok {
		return models.NewReachabilityState()
	}
	return st
}

// Remove evicts a node's state entirely (spec.md §4.7 remove).
func (m *Machine) Remove(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, nodeID)
}

// Pause forces nodeID into PAUSED, preserving no failure bookkeeping: a
// resumed node restarts from UP (spec.md §4.7 mark_paused).
func (m *Machine) Pause(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[nodeID] = models.ReachabilityState{Status: models.StatusPaused}
}

// Resume clears PAUSED back to UP, letting the next probe re-establish
// reachability from a clean slate.
func (m *Machine) Resume(nodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[nodeID] = models.NewReachabilityState()
}

// IsPaused reports whether nodeID is currently paused. Record leaves a
// paused node's state unchanged; the manager resumes a paused node once it
// is enabled again.
func (m *Machine) IsPaused(nodeID string) bool {
	return m.State(nodeID).Status == models.StatusPaused
}

// Record applies one probe outcome to nodeID's state and returns the
// resulting state plus whether this call changed the Status (a
// "transition" for alerting/metrics purposes). maxRetries is the effective
// per-node/group retry budget (B1): failure_count exceeding maxRetries while
// PENDING moves the node to DOWN.
func (m *Machine) Record(nodeID string, success bool, maxRetries int, now time.Time) (models.ReachabilityState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.states[nodeID]
	if !ok {
		cur = models.NewReachabilityState()
	}
	if cur.Status == models.StatusPaused {
		return cur, false
	}

	prevStatus := cur.Status
	next := cur

	if success {
		next = models.ReachabilityState{Status: models.StatusUP}
	} else {
		switch cur.Status {
		case models.StatusUP:
			next = models.ReachabilityState{Status: models.StatusPending, FailureCount: 1, FirstFailureAt: now}
		case models.StatusPending:
			next.FailureCount++
			if next.FailureCount > maxRetries {
				next.Status = models.StatusDown
			}
		case models.StatusDown:
			next.FailureCount++
		}
	}

	m.states[nodeID] = next
	return next, next.Status != prevStatus
}

// CombinedStatus folds a node's aggregated metric-alert status (already
// expressed as UP/PENDING/DOWN by processor.NodeAlertStatus) into its
// reachability status: the Metric Processor is consulted only while
// reachability is UP, so a DOWN/PENDING/PAUSED node's externally visible
// status is never masked by a stale metric alert.
func CombinedStatus(reach models.Status, alertStatus models.Status) models.Status {
	if reach != models.StatusUP {
		return reach
	}
	return alertStatus
}
