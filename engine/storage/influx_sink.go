package storage

import (
	"context"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxSink writes monitoring and SNMP-metric points to InfluxDB, grounded
// on original_source/backend/storage.py's Point/write_api usage translated
// to the official influxdb-client-go/v2 client. ReloadConfig tears down and
// rebuilds the client under mu, the façade's "internal critical
// section" of spec.md §5.
type InfluxSink struct {
	mu       sync.RWMutex
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	bucket   string
	org      string
	enabled  bool
}

// NewInfluxSink builds an InfluxSink from the given Config; Config.InfluxEnabled
// may be false, in which case writes are no-ops until ReloadConfig enables it.
func NewInfluxSink(cfg Config) *InfluxSink {
	s := &InfluxSink{}
	_ = s.ReloadConfig(cfg)
	return s
}

func (s *InfluxSink) WriteMonitoring(ctx context.Context, rec MonitoringRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return nil
	}
	latency := 0.0
	if rec.LatencyMS != nil {
		latency = *rec.LatencyMS
	}
	statusCode := 0
	if rec.Status == "UP" {
		statusCode = 1
	}
	successVal := 0
	if rec.Success {
		successVal = 1
	}
	point := influxdb2.NewPoint("monitoring",
		map[string]string{
			"node": rec.Node, "ip": rec.IP, "group": rec.Group,
			"status": rec.Status, "protocol": rec.Protocol,
		},
		map[string]any{
			"latency": latency, "packet_loss": rec.PacketLoss,
			"status_code": statusCode, "success": successVal,
			"responses": len(rec.PingResponses),
		},
		time.Now(),
	)
	return s.writeAPI.WritePoint(ctx, point)
}

func (s *InfluxSink) WriteMetric(ctx context.Context, rec MetricRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.enabled {
		return nil
	}
	point := influxdb2.NewPoint("snmp_metrics",
		map[string]string{
			"node": rec.Node, "ip": rec.IP, "group": rec.Group,
			"metric": rec.Metric, "unit": rec.Unit,
			"interface": rec.Interface, "type": rec.Kind,
		},
		map[string]any{"value": rec.Value},
		time.Now(),
	)
	return s.writeAPI.WritePoint(ctx, point)
}

// ReloadConfig tears down the existing client (if any) and, when enabled,
// builds a fresh one against the new URL/token/org/bucket.
func (s *InfluxSink) ReloadConfig(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
		s.writeAPI = nil
	}
	s.enabled = false
	if !cfg.InfluxEnabled || cfg.InfluxURL == "" || cfg.InfluxToken == "" {
		return nil
	}
	s.client = influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	s.writeAPI = s.client.WriteAPIBlocking(cfg.InfluxOrg, cfg.InfluxBucket)
	s.bucket = cfg.InfluxBucket
	s.org = cfg.InfluxOrg
	s.enabled = true
	return nil
}

func (s *InfluxSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
	}
	return nil
}
