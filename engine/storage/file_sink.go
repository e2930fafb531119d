package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// fileTimeFormat matches spec.md §4.3's local-time microsecond timestamp.
const fileTimeFormat = "2006-01-02T15:04:05.000000"

// fileRecord is the newline-delimited JSON shape of spec.md §6's file-log
// format.
type fileRecord struct {
	Timestamp     string  `json:"timestamp"`
	Node          string  `json:"node"`
	IP            string  `json:"ip"`
	Group         string  `json:"group"`
	Protocol      string  `json:"protocol"`
	Latency       *float64 `json:"latency"`
	PacketLoss    float64 `json:"packet_loss"`
	Status        string  `json:"status"`
	Success       bool    `json:"success"`
	PingResponses []any   `json:"ping_responses,omitempty"`
}

// FileSink is the always-available append-only fallback, rotating by
// truncate-to-last-N-lines, grounded on original_source's storage.py
// _rotate_log. File writes and rotation are serialized by mu, matching
// spec.md §5's "engine-wide lock" requirement.
type FileSink struct {
	mu             sync.Mutex
	path           string
	retentionLines int
	enabled        bool
}

// NewFileSink constructs a FileSink for the given path and retention.
func NewFileSink(path string, retentionLines int) *FileSink {
	if retentionLines <= 0 {
		retentionLines = 200
	}
	return &FileSink{path: path, retentionLines: retentionLines, enabled: true}
}

func (f *FileSink) WriteMonitoring(ctx context.Context, rec MonitoringRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.enabled || f.path == "" {
		return nil
	}
	entry := fileRecord{
		Timestamp:     time.Now().Format(fileTimeFormat),
		Node:          rec.Node,
		IP:            rec.IP,
		Group:         rec.Group,
		Protocol:      rec.Protocol,
		Latency:       rec.LatencyMS,
		PacketLoss:    rec.PacketLoss,
		Status:        rec.Status,
		Success:       rec.Success,
		PingResponses: rec.PingResponses,
	}
	if err := f.appendLocked(entry); err != nil {
		return fmt.Errorf("write monitoring record: %w", err)
	}
	return f.rotateLocked()
}

// WriteMetric is a no-op for the file sink: spec.md §4.3 scopes the
// file-log format (§6) to monitoring records only. SNMP metrics are
// persisted through the time-series sink; when it is disabled the metric
// is simply not durably stored, matching the original implementation
// (storage.py only ever wrote ping results to the file fallback).
func (f *FileSink) WriteMetric(ctx context.Context, rec MetricRecord) error { return nil }

func (f *FileSink) appendLocked(entry fileRecord) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	w := bufio.NewWriter(file)
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n"); err != nil {
		return err
	}
	return w.Flush()
}

func (f *FileSink) rotateLocked() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil // nothing written yet; rotation is best-effort
	}
	lines := splitLines(data)
	if len(lines) <= f.retentionLines {
		return nil
	}
	keep := lines[len(lines)-f.retentionLines:]
	return os.WriteFile(f.path, joinLines(keep), 0o644)
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

func joinLines(lines [][]byte) []byte {
	var out []byte
	for _, l := range lines {
		out = append(out, l...)
		out = append(out, '\n')
	}
	return out
}

// ReloadConfig re-reads the log path/retention without dropping in-flight
// writes: the mutex already serializes every append against a concurrent
// reload.
func (f *FileSink) ReloadConfig(cfg Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = cfg.FileEnabled
	if cfg.FilePath != "" {
		f.path = cfg.FilePath
	}
	if cfg.RetentionLines > 0 {
		f.retentionLines = cfg.RetentionLines
	}
	return nil
}

func (f *FileSink) Close() error { return nil }
