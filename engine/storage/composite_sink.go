package storage

import (
	"context"
	"fmt"
)

// CompositeSink fans a write out to every configured sink, grounded on the
// teacher's CompositeSink (engine/output/composite_sink.go): every sink is
// attempted, and the first error any of them reports is returned (even if
// another sink accepted the write) and logged by the caller (spec.md §7: a persistence failure is logged, never drops
// the underlying reachability transition).
type CompositeSink struct {
	sinks []Sink
}

// NewCompositeSink composes the given sinks, in write order.
func NewCompositeSink(sinks ...Sink) *CompositeSink {
	return &CompositeSink{sinks: sinks}
}

func (c *CompositeSink) WriteMonitoring(ctx context.Context, rec MonitoringRecord) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.WriteMonitoring(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *CompositeSink) WriteMetric(ctx context.Context, rec MetricRecord) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.WriteMetric(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ReloadConfig rebuilds every sink's config. Unlike Write, all sinks are
// attempted even after an error, since each sink owns distinct backing
// state (spec.md §4.3: "rebuilds the time-series client and re-reads the
// log path/retention").
func (c *CompositeSink) ReloadConfig(cfg Config) error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.ReloadConfig(cfg); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("reload sink config: %w", err)
		}
	}
	return firstErr
}

func (c *CompositeSink) Close() error {
	var firstErr error
	for _, s := range c.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
