// Package models defines the inventory entities the engine reads and the
// runtime entities it owns. Inventory entities are plain value types looked
// up by identifier from flat tables — never owning pointers between Group
// and Node — so a snapshot can be handed to the engine once per tick without
// aliasing concerns.
package models

// Protocol is a monitored reachability protocol.
type Protocol string

const (
	ProtocolICMP Protocol = "icmp"
	ProtocolSNMP Protocol = "snmp"
)

// MetricKind classifies how a MetricDefinition's raw value should be
// interpreted by the processor.
type MetricKind string

const (
	KindCounter MetricKind = "counter"
	KindGauge   MetricKind = "gauge"
	KindString  MetricKind = "string"
)

// MetricSource names which probe protocol produces a metric's raw samples.
type MetricSource string

const (
	SourceSNMP MetricSource = "snmp"
	SourceICMP MetricSource = "icmp"
)

// Comparator selects the direction a threshold is breached in.
type Comparator string

const (
	ComparatorGT Comparator = "gt"
	ComparatorLT Comparator = "lt"
)

// Group holds scheduling and protocol defaults shared by its Nodes.
type Group struct {
	ID               string   `json:"id" yaml:"id"`
	Name             string   `json:"name" yaml:"name"`
	IntervalSeconds  float64  `json:"interval_seconds" yaml:"interval_seconds"`
	PacketCount      int      `json:"packet_count" yaml:"packet_count"`
	MaxRetries       int      `json:"max_retries" yaml:"max_retries"`
	MonitorPing      bool     `json:"monitor_ping" yaml:"monitor_ping"`
	MonitorSNMP      bool     `json:"monitor_snmp" yaml:"monitor_snmp"`
	SNMPCommunity    string   `json:"snmp_community" yaml:"snmp_community"`
	SNMPPort         int      `json:"snmp_port" yaml:"snmp_port"`
	Enabled          bool     `json:"enabled" yaml:"enabled"`
}

// Node is a single monitored IPv4 endpoint, optionally overriding every
// Group default. A nil override field means "inherit from group".
type Node struct {
	ID                    string   `json:"id" yaml:"id"`
	Name                  string   `json:"name" yaml:"name"`
	IP                    string   `json:"ip" yaml:"ip"`
	GroupID               string   `json:"group_id" yaml:"group_id"`
	IntervalSeconds       *float64 `json:"interval_seconds,omitempty" yaml:"interval_seconds,omitempty"`
	PacketCount           *int     `json:"packet_count,omitempty" yaml:"packet_count,omitempty"`
	MaxRetries            *int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	MonitorPing           *bool    `json:"monitor_ping,omitempty" yaml:"monitor_ping,omitempty"`
	MonitorSNMP           *bool    `json:"monitor_snmp,omitempty" yaml:"monitor_snmp,omitempty"`
	SNMPCommunity         *string  `json:"snmp_community,omitempty" yaml:"snmp_community,omitempty"`
	SNMPPort              *int     `json:"snmp_port,omitempty" yaml:"snmp_port,omitempty"`
	NotificationPriority  *int     `json:"notification_priority,omitempty" yaml:"notification_priority,omitempty"`
	Enabled               bool     `json:"enabled" yaml:"enabled"`
}

// MetricDefinition is a reusable metric template. OIDTemplate may contain a
// "{index}" placeholder filled in from a NodeMetric binding's interface index.
type MetricDefinition struct {
	ID             string       `json:"id" yaml:"id"`
	Name           string       `json:"name" yaml:"name"`
	OIDTemplate    string       `json:"oid_template" yaml:"oid_template"`
	Kind           MetricKind   `json:"kind" yaml:"kind"`
	Unit           string       `json:"unit" yaml:"unit"`
	Source         MetricSource `json:"source" yaml:"source"`
	RequiresIndex  bool         `json:"requires_index" yaml:"requires_index"`
	Category       string       `json:"category" yaml:"category"`
	DeviceType     string       `json:"device_type" yaml:"device_type"`
}

// NodeMetric binds a MetricDefinition to a specific Node (and optionally a
// specific interface on that node).
type NodeMetric struct {
	ID                 string     `json:"id" yaml:"id"`
	NodeID             string     `json:"node_id" yaml:"node_id"`
	MetricDefinitionID string     `json:"metric_definition_id" yaml:"metric_definition_id"`
	InterfaceIndex     *int       `json:"interface_index,omitempty" yaml:"interface_index,omitempty"`
	InterfaceName      string     `json:"interface_name,omitempty" yaml:"interface_name,omitempty"`
	IntervalSeconds    float64    `json:"interval_seconds" yaml:"interval_seconds"`
	Enabled            bool       `json:"enabled" yaml:"enabled"`
	WarningThreshold   *float64   `json:"warning_threshold,omitempty" yaml:"warning_threshold,omitempty"`
	CriticalThreshold  *float64   `json:"critical_threshold,omitempty" yaml:"critical_threshold,omitempty"`
	Comparator         Comparator `json:"comparator" yaml:"comparator"`
}

// NodeInterface describes a single SNMP ifTable row on a Node. Carried over
// from the original implementation's discovery engine so interface-scoped
// NodeMetric bindings have descriptor data to tag their samples with.
type NodeInterface struct {
	ID             string `json:"id" yaml:"id"`
	NodeID         string `json:"node_id" yaml:"node_id"`
	IfIndex        int    `json:"if_index" yaml:"if_index"`
	Name           string `json:"name" yaml:"name"`
	Alias          string `json:"alias" yaml:"alias"`
	Type           string `json:"type" yaml:"type"`
	MAC            string `json:"mac" yaml:"mac"`
	AdminStatus    string `json:"admin_status" yaml:"admin_status"`
	OperStatus     string `json:"oper_status" yaml:"oper_status"`
	MonitorEnabled bool   `json:"monitor_enabled" yaml:"monitor_enabled"`
}

// Inventory is the read-only snapshot the engine pulls once per tick.
type Inventory struct {
	Groups            []Group            `json:"groups" yaml:"groups"`
	Nodes             []Node             `json:"nodes" yaml:"nodes"`
	MetricDefinitions []MetricDefinition `json:"metric_definitions" yaml:"metric_definitions"`
	NodeMetrics       []NodeMetric       `json:"node_metrics" yaml:"node_metrics"`
	NodeInterfaces    []NodeInterface    `json:"node_interfaces" yaml:"node_interfaces"`
}

// Index builds identifier -> entity lookup tables for one tick's snapshot.
type Index struct {
	inv         Inventory
	groupsByID  map[string]Group
	defsByID    map[string]MetricDefinition
	metricsByNode map[string][]NodeMetric
}

// NewIndex builds lookup tables from a raw Inventory snapshot.
func NewIndex(inv Inventory) *Index {
	idx := &Index{
		inv:           inv,
		groupsByID:    make(map[string]Group, len(inv.Groups)),
		defsByID:      make(map[string]MetricDefinition, len(inv.MetricDefinitions)),
		metricsByNode: make(map[string][]NodeMetric),
	}
	for _, g := range inv.Groups {
		idx.groupsByID[g.ID] = g
	}
	for _, d := range inv.MetricDefinitions {
		idx.defsByID[d.ID] = d
	}
	for _, nm := range inv.NodeMetrics {
		idx.metricsByNode[nm.NodeID] = append(idx.metricsByNode[nm.NodeID], nm)
	}
	return idx
}

// Nodes returns the snapshot's node list.
func (x *Index) Nodes() []Node { return x.inv.Nodes }

// Group looks up a Node's Group; ok is false for an orphaned node.
func (x *Index) Group(node Node) (Group, bool) {
	g, ok := x.groupsByID[node.GroupID]
	return g, ok
}

// Definition looks up a MetricDefinition by ID.
func (x *Index) Definition(id string) (MetricDefinition, bool) {
	d, ok := x.defsByID[id]
	return d, ok
}

// NodeMetrics returns the metric bindings for a node.
func (x *Index) NodeMetrics(nodeID string) []NodeMetric {
	return x.metricsByNode[nodeID]
}

// EffectiveSettings resolves per-node overrides against group defaults.
type EffectiveSettings struct {
	IntervalSeconds      float64
	PacketCount          int
	MaxRetries           int
	MonitorPing          bool
	MonitorSNMP          bool
	SNMPCommunity        string
	SNMPPort             int
	NotificationPriority int
}

// Resolve computes the effective settings for a node against its group,
// applying per-node overrides where present (spec.md §3 "optional per-node
// overrides of every Group default").
func Resolve(node Node, group Group) EffectiveSettings {
	s := EffectiveSettings{
		IntervalSeconds: group.IntervalSeconds,
		PacketCount:     group.PacketCount,
		MaxRetries:      group.MaxRetries,
		MonitorPing:     group.MonitorPing,
		MonitorSNMP:     group.MonitorSNMP,
		SNMPCommunity:   group.SNMPCommunity,
		SNMPPort:        group.SNMPPort,
	}
	if node.IntervalSeconds != nil {
		s.IntervalSeconds = *node.IntervalSeconds
	}
	if node.PacketCount != nil {
		s.PacketCount = *node.PacketCount
	}
	if node.MaxRetries != nil {
		s.MaxRetries = *node.MaxRetries
	}
	if node.MonitorPing != nil {
		s.MonitorPing = *node.MonitorPing
	}
	if node.MonitorSNMP != nil {
		s.MonitorSNMP = *node.MonitorSNMP
	}
	if node.SNMPCommunity != nil {
		s.SNMPCommunity = *node.SNMPCommunity
	}
	if node.SNMPPort != nil {
		s.SNMPPort = *node.SNMPPort
	}
	if node.NotificationPriority != nil {
		s.NotificationPriority = *node.NotificationPriority
	}
	return s
}
