// Package storage implements the persistence façade of spec.md §4.3: a
// time-series sink and a file-log fallback, composed so every write reaches
// both, grounded on the teacher's CompositeSink fan-out-with-first-error
// semantics (engine/output/composite_sink.go).
package storage

import "context"

// MonitoringRecord is one reachability probe result, written once per
// probe per node per tick (spec.md invariant 6).
type MonitoringRecord struct {
	Node          string
	IP            string
	Group         string
	Protocol      string
	LatencyMS     *float64
	PacketLoss    float64
	Status        string
	Success       bool
	PingResponses []any
}

// MetricRecord is one SNMP/ICMP-derived metric sample.
type MetricRecord struct {
	Node      string
	IP        string
	Group     string
	Metric    string
	Unit      string
	Interface string
	Kind      string
	Value     float64
}

// Sink is the persistence façade's contract. Implementations must be safe
// for concurrent use; ReloadConfig must rebuild only this sink's backing
// client without disturbing any other sink or the caller's scheduling state.
type Sink interface {
	WriteMonitoring(ctx context.Context, rec MonitoringRecord) error
	WriteMetric(ctx context.Context, rec MetricRecord) error
	ReloadConfig(cfg Config) error
	Close() error
}

// Config is the hot-reloadable subset of the persistence façade's settings
// (spec.md §6 configuration surface: influxdb.*, logging.*).
type Config struct {
	InfluxEnabled bool
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string

	FileEnabled     bool
	FilePath        string
	RetentionLines  int
}
