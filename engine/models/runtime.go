package models

import "time"

// Status is the externally observable combination of reachability and
// metric-alert status (spec.md §4.6).
type Status string

const (
	StatusUP      Status = "UP"
	StatusPending Status = "PENDING"
	StatusDown    Status = "DOWN"
	StatusPaused  Status = "PAUSED"
)

// ReachabilityState is the per-node state machine record of spec.md §3/§4.6.
type ReachabilityState struct {
	Status         Status
	FailureCount   int
	FirstFailureAt time.Time
}

// NewReachabilityState returns the initial state: UP, no failures.
func NewReachabilityState() ReachabilityState {
	return ReachabilityState{Status: StatusUP}
}

// ProbeResult is the uniform contract every probe driver returns (spec.md §4.2).
type ProbeResult struct {
	Success   bool
	LatencyMS *float64
	Protocol  Protocol
	Extra     map[string]any
	Error     string
}

// LastResult is the most recent aggregated status snapshot for a node,
// exposed verbatim through the live-status interface (spec.md §6).
type LastResult struct {
	NodeID      string    `json:"node_id"`
	NodeName    string    `json:"node_name"`
	IP          string    `json:"ip"`
	GroupName   string    `json:"group_name"`
	Status      Status    `json:"status"`
	Latency     *float64  `json:"latency"`
	PacketLoss  float64   `json:"packet_loss"`
	Timestamp   time.Time `json:"timestamp"`
	MonitorPing bool      `json:"monitor_ping"`
	MonitorSNMP bool      `json:"monitor_snmp"`
}

// AlertLevel is the persisted severity of a NodeMetric's active alert.
type AlertLevel string

const (
	AlertNone     AlertLevel = ""
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// PreviousSample is the last raw numeric value seen for a counter NodeMetric,
// used for rate derivation (spec.md §4.5 step 2).
type PreviousSample struct {
	Value     float64
	Timestamp time.Time
}

// ProcessedSample is what Process() returns for a successfully evaluated
// metric binding.
type ProcessedSample struct {
	Raw            float64
	Rate           *float64
	ProcessedValue float64
	Unit           string
	Timestamp      time.Time
}
