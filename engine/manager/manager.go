// Package manager implements the Monitor Manager of spec.md §4.7: the
// per-tick control loop, storm throttling, maintenance mode, and the
// independent SNMP metric collector sub-loop, grounded on the teacher's
// Engine lifecycle (engine/engine.go Start/Stop/Snapshot) and
// resources.Manager's bounded-concurrency fan-out
// (engine/internal/resources/manager.go), re-purposed from page-crawl
// concurrency to per-node probe concurrency.
package manager

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"netwatch/engine/models"
	"netwatch/engine/notify"
	"netwatch/engine/probes"
	"netwatch/engine/processor"
	"netwatch/engine/reachability"
	"netwatch/engine/scheduler"
	"netwatch/engine/storage"
	"netwatch/engine/telemetry/logging"
	"netwatch/engine/telemetry/metrics"
)

// appName prefixes down/storm notification titles.
const appName = "netwatch"

// Config is the Manager's tunable surface, mapping to spec.md §6's
// pushover.* / engine-level keys.
type Config struct {
	TickInterval          time.Duration // loop cadence; each tick only probes nodes the Tracker reports due
	MaxInFlight           int           // default 32
	SNMPCollectorInterval time.Duration // default 10s
	ProbeTimeout          time.Duration // default 1s

	ThrottlingEnabled bool
	AlertThreshold    int           // default 5
	AlertWindow       time.Duration // default 60s
	MaintenanceMode   bool

	DownMessageTemplate string // default "Node {name} ({ip}) is DOWN"
}

// WithDefaults fills zero-valued fields with spec.md's stated defaults.
func (c Config) WithDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = 32
	}
	if c.SNMPCollectorInterval <= 0 {
		c.SNMPCollectorInterval = 10 * time.Second
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = time.Second
	}
	if c.AlertThreshold <= 0 {
		c.AlertThreshold = 5
	}
	if c.AlertWindow <= 0 {
		c.AlertWindow = 60 * time.Second
	}
	if c.DownMessageTemplate == "" {
		c.DownMessageTemplate = "Node {name} ({ip}) is DOWN"
	}
	return c
}

// Inventory is the subset of the consumed inventory boundary the Manager
// needs (spec.md §6); satisfied by inventory.Provider.
type Inventory interface {
	Snapshot(ctx context.Context) (models.Inventory, error)
}

// Status is the shape Manager.Status() returns (spec.md §4.7 status()).
type Status struct {
	Running        bool               `json:"running"`
	MonitoredCount int                `json:"monitored_count"`
	LatestResults  []models.LastResult `json:"latest_results"`
}

// Manager runs the tick loop and the SNMP collector sub-loop against one
// inventory snapshot per tick.
type Manager struct {
	cfg  Config
	inv  Inventory
	icmp probes.Driver
	snmp *probes.SNMPDriver
	sink storage.Sink
	notifier notify.Sink
	proc *processor.Processor
	reach *reachability.Machine
	tracker *scheduler.Tracker
	limiter *scheduler.Limiter
	clock scheduler.Clock
	log  logging.Logger
	coll *metrics.Collector

	running atomic.Bool
	stopCh  chan struct{}
	stopOne sync.Once
	wg      sync.WaitGroup

	resultsMu sync.RWMutex
	results   map[string]models.LastResult

	stormMu        sync.Mutex
	downHistory    []time.Time
	lastStormAlert time.Time

	cfgMu sync.RWMutex
}

// New constructs a Manager. icmp/snmp may be the same probes.Driver set
// Probe uses for reachability checks; snmp is additionally used directly by
// the metric collector sub-loop for arbitrary-OID GETs.
func New(cfg Config, inv Inventory, icmp probes.Driver, snmp *probes.SNMPDriver, sink storage.Sink, notifier notify.Sink, proc *processor.Processor, log logging.Logger, coll *metrics.Collector) *Manager {
	return &Manager{
		cfg:      cfg.WithDefaults(),
		inv:      inv,
		icmp:     icmp,
		snmp:     snmp,
		sink:     sink,
		notifier: notifier,
		proc:     proc,
		reach:    reachability.New(),
		tracker:  scheduler.NewTracker(scheduler.RealClock{}),
		limiter:  scheduler.NewLimiter(cfg.WithDefaults().MaxInFlight),
		clock:    scheduler.RealClock{},
		log:      log,
		coll:     coll,
		stopCh:   make(chan struct{}),
		results:  make(map[string]models.LastResult),
	}
}

// UpdateConfig hot-swaps the throttling/maintenance-mode surface without
// disturbing the Tracker or reachability bookkeeping (spec.md §9).
func (m *Manager) UpdateConfig(cfg Config) {
	m.cfgMu.Lock()
	defer m.cfgMu.Unlock()
	m.cfg = cfg.WithDefaults()
}

func (m *Manager) config() Config {
	m.cfgMu.RLock()
	defer m.cfgMu.RUnlock()
	return m.cfg
}

// Run starts the tick loop and the SNMP collector sub-loop; it blocks until
// ctx is cancelled or Stop is called, then drains in-flight probes before
// returning (spec.md §4.7 run()/stop(), §5 graceful cancellation).
func (m *Manager) Run(ctx context.Context) error {
	m.running.Store(true)
	defer m.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runSNMPCollector(ctx)
	}()

	ticker := time.NewTicker(m.config().TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.wg.Wait()
			return ctx.Err()
		case <-m.stopCh:
			cancel()
			m.wg.Wait()
			return nil
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// Stop requests cooperative shutdown; Run drains in-flight probes before
// returning.
func (m *Manager) Stop() {
	m.stopOne.Do(func() { close(m.stopCh) })
}

// Status returns a snapshot of {running, monitored_count, latest_results}.
func (m *Manager) Status() Status {
	m.resultsMu.RLock()
	defer m.resultsMu.RUnlock()
	results := make([]models.LastResult, 0, len(m.results))
	for _, r := range m.results {
		results = append(results, r)
	}
	return Status{
		Running:        m.running.Load(),
		MonitoredCount: m.tracker.Count(),
		LatestResults:  results,
	}
}

// Remove evicts all per-node runtime state (spec.md §4.7 remove()).
func (m *Manager) Remove(nodeID string) {
	m.reach.Remove(nodeID)
	m.tracker.Remove(nodeID)
	m.resultsMu.Lock()
	delete(m.results, nodeID)
	m.resultsMu.Unlock()
}

// MarkPaused immediately sets LastResult to PAUSED and clears counters
// (spec.md §4.7 mark_paused()). A node with no LastResult yet gets none.
func (m *Manager) MarkPaused(nodeID string) {
	m.reach.Pause(nodeID)
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()
	if r, ok := m.results[nodeID]; ok {
		r.Status = models.StatusPaused
		r.Timestamp = m.clock.Now()
		m.results[nodeID] = r
	}
}

// TriggerImmediate resets the node's last-checked time so the next tick
// schedules it (spec.md §4.7 trigger_immediate()).
func (m *Manager) TriggerImmediate(nodeID string) {
	m.tracker.TriggerImmediate(nodeID)
}

// tick runs one pass of the control loop: snapshot inventory, fan out per
// node bounded by the limiter, wait for the fan-out to finish (spec.md
// §4.7 step 1-2).
func (m *Manager) tick(ctx context.Context) {
	inv, err := m.inv.Snapshot(ctx)
	if err != nil {
		if m.log != nil {
			m.log.Error("inventory snapshot failed", "err", err)
		}
		return
	}
	idx := models.NewIndex(inv)

	var wg sync.WaitGroup
	for _, node := range idx.Nodes() {
		node := node
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.limiter.Acquire(ctx); err != nil {
				return
			}
			defer m.limiter.Release()
			if m.coll != nil {
				m.coll.LimiterInFlight.Set(float64(m.limiter.InFlight()))
			}
			m.processNode(ctx, idx, node)
		}()
	}
	wg.Wait()
}

// processNode runs one node's tick (spec.md §4.7 step 2's per-node body).
func (m *Manager) processNode(ctx context.Context, idx *models.Index, node models.Node) {
	group, ok := idx.Group(node)
	if !ok {
		return // orphaned: no group, skip
	}

	settings := models.Resolve(node, group)

	if !node.Enabled || !group.Enabled {
		m.reach.Pause(node.ID)
		m.recordResult(node, group, models.StatusPaused, nil, 0, settings)
		if m.sink != nil {
			_ = m.sink.WriteMonitoring(ctx, storage.MonitoringRecord{
				Node: node.Name, IP: node.IP, Group: group.Name, Protocol: "", Status: string(models.StatusPaused),
			})
		}
		return
	}

	if m.reach.IsPaused(node.ID) {
		// Re-enabled after a pause: restart from UP and probe on this tick.
		m.reach.Resume(node.ID)
		m.tracker.TriggerImmediate(node.ID)
	}

	interval := time.Duration(settings.IntervalSeconds * float64(time.Second))
	pending := m.reach.State(node.ID).Status == models.StatusPending
	if !m.tracker.Due(node.ID, interval, pending) {
		return
	}
	m.tracker.MarkChecked(node.ID)

	opts := probes.Options{
		Count: settings.PacketCount, Timeout: m.config().ProbeTimeout,
		SNMPCommunity: settings.SNMPCommunity, SNMPPort: settings.SNMPPort,
	}

	var enabled []models.ProbeResult
	if settings.MonitorPing && m.icmp != nil {
		enabled = append(enabled, m.runProbe(ctx, m.icmp, node.IP, opts))
	}
	if settings.MonitorSNMP && m.snmp != nil {
		enabled = append(enabled, m.runProbe(ctx, m.snmp, node.IP, opts))
	}
	if len(enabled) == 0 {
		return // no probes enabled: no-op tick, status retained
	}

	success := true
	for _, r := range enabled {
		success = success && r.Success
	}

	state, transitioned := m.reach.Record(node.ID, success, settings.MaxRetries, m.clock.Now())
	if transitioned && m.coll != nil {
		m.coll.ReachabilityTransitions.WithLabelValues(string(state.Status)).Inc()
	}

	var latency *float64
	var packetLoss float64
	for _, r := range enabled {
		if r.Protocol == models.ProtocolICMP {
			latency = r.LatencyMS
			if pl, ok := r.Extra["packet_loss"].(float64); ok {
				packetLoss = pl
			}
		}
	}

	status := state.Status
	if m.proc != nil && status == models.StatusUP {
		if alertStatus, err := m.proc.NodeAlertStatus(node.ID, idx.NodeMetrics(node.ID)); err == nil {
			status = reachability.CombinedStatus(status, alertStatus)
		}
	}
	m.recordResult(node, group, status, latency, packetLoss, settings)

	for _, r := range enabled {
		recStatus := string(state.Status)
		if state.Status != models.StatusPending {
			if r.Success {
				recStatus = string(models.StatusUP)
			} else {
				recStatus = string(models.StatusDown)
			}
		}
		if m.sink != nil {
			_ = m.sink.WriteMonitoring(ctx, storage.MonitoringRecord{
				Node: node.Name, IP: node.IP, Group: group.Name, Protocol: string(r.Protocol),
				LatencyMS: r.LatencyMS, PacketLoss: packetLoss, Status: recStatus, Success: r.Success,
			})
		}
	}

	if transitioned && state.Status == models.StatusDown {
		m.dispatchDownNotification(ctx, node, settings)
	}

	if m.sink == nil && m.proc == nil {
		return
	}
	// ICMP-sourced metrics (ICMP Latency / ICMP Packet Loss) feed the
	// processor regardless of reachability status transitions, per
	// spec.md §4.7 step 2's final bullet.
	for _, nm := range idx.NodeMetrics(node.ID) {
		def, ok := idx.Definition(nm.MetricDefinitionID)
		if !ok || def.Source != models.SourceICMP || !nm.Enabled {
			continue
		}
		var raw float64
		switch def.Name {
		case "ICMP Latency":
			if latency == nil {
				continue
			}
			raw = *latency
		case "ICMP Packet Loss":
			raw = packetLoss
		default:
			continue
		}
		m.runProcessor(ctx, node, group, def, nm, raw, nil, settings)
	}
}

func (m *Manager) runProbe(ctx context.Context, d probes.Driver, ip string, opts probes.Options) models.ProbeResult {
	start := time.Now()
	result := d.Probe(ctx, ip, opts)
	if m.coll != nil {
		success := "false"
		if result.Success {
			success = "true"
		}
		m.coll.ProbesTotal.WithLabelValues(string(d.Protocol()), success).Inc()
		m.coll.ProbeLatencySeconds.WithLabelValues(string(d.Protocol())).Observe(time.Since(start).Seconds())
	}
	return result
}

func (m *Manager) runProcessor(ctx context.Context, node models.Node, group models.Group, def models.MetricDefinition, nm models.NodeMetric, raw float64, iface *models.NodeInterface, settings models.EffectiveSettings) {
	if m.proc == nil {
		return
	}
	_, err := m.proc.Process(ctx, processor.Input{
		Node: node, Group: group, Definition: def, Binding: nm, Raw: raw,
		Interface: iface, Priority: settings.NotificationPriority,
	})
	if err != nil && m.log != nil {
		m.log.Error("metric processing failed", "node", node.ID, "metric", def.ID, "err", err)
	}
}

func (m *Manager) recordResult(node models.Node, group models.Group, status models.Status, latency *float64, packetLoss float64, settings models.EffectiveSettings) {
	m.resultsMu.Lock()
	defer m.resultsMu.Unlock()
	m.results[node.ID] = models.LastResult{
		NodeID: node.ID, NodeName: node.Name, IP: node.IP, GroupName: group.Name,
		Status: status, Latency: latency, PacketLoss: packetLoss, Timestamp: m.clock.Now(),
		MonitorPing: settings.MonitorPing, MonitorSNMP: settings.MonitorSNMP,
	}
}

// dispatchDownNotification implements the storm-throttling stage of
// spec.md §4.7.1/§4.7.2.
func (m *Manager) dispatchDownNotification(ctx context.Context, node models.Node, settings models.EffectiveSettings) {
	cfg := m.config()
	if m.notifier == nil {
		return
	}

	now := m.clock.Now()
	if cfg.MaintenanceMode {
		// Suppress the send but keep the storm history current, so leaving
		// maintenance mode doesn't immediately look like a fresh storm
		// (spec.md §4.7.2).
		if cfg.ThrottlingEnabled {
			m.stormMu.Lock()
			m.downHistory = pruneHistory(m.downHistory, now, cfg.AlertWindow)
			m.downHistory = append(m.downHistory, now)
			m.stormMu.Unlock()
		}
		return
	}

	m.stormMu.Lock()
	if cfg.ThrottlingEnabled {
		m.downHistory = pruneHistory(m.downHistory, now, cfg.AlertWindow)
		if len(m.downHistory) >= cfg.AlertThreshold {
			if m.coll != nil {
				m.coll.StormSuppressed.Inc()
			}
			sendStorm := now.Sub(m.lastStormAlert) >= cfg.AlertWindow
			if sendStorm {
				m.lastStormAlert = now
			}
			count := len(m.downHistory)
			m.stormMu.Unlock()
			if sendStorm {
				title := fmt.Sprintf("%s Alert: High failure rate detected", appName)
				body := fmt.Sprintf("Alert storm: %d nodes down within %s. Suppressing individual alerts.", count, cfg.AlertWindow)
				m.sendNotification(ctx, title, body, 1)
			}
			return
		}
		m.downHistory = append(m.downHistory, now)
	}
	m.stormMu.Unlock()

	title := fmt.Sprintf("%s Alert: %s", appName, node.Name)
	body := renderDownMessage(cfg.DownMessageTemplate, node)
	m.sendNotification(ctx, title, body, settings.NotificationPriority)
}

func (m *Manager) sendNotification(ctx context.Context, title, body string, priority int) {
	ok, err := m.notifier.Send(ctx, title, body, priority)
	prioLabel := strconv.Itoa(priority)
	if m.coll != nil {
		if err != nil || !ok {
			m.coll.NotificationsFailed.WithLabelValues(prioLabel).Inc()
		} else {
			m.coll.NotificationsSent.WithLabelValues(prioLabel).Inc()
		}
	}
	if err != nil && m.log != nil {
		m.log.Error("down notification dispatch failed", "err", err)
	}
}

func pruneHistory(history []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := history[:0]
	for _, t := range history {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func renderDownMessage(template string, node models.Node) string {
	r := strings.NewReplacer("{name}", node.Name, "{ip}", node.IP)
	return r.Replace(template)
}

// runSNMPCollector is the independent cooperative sub-loop of spec.md §4.7:
// a single global cadence iterating enabled+SNMP nodes, issuing one GET per
// configured NodeMetric and feeding results to the Metric Processor.
func (m *Manager) runSNMPCollector(ctx context.Context) {
	ticker := time.NewTicker(m.config().SNMPCollectorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.collectSNMP(ctx)
		}
	}
}

func (m *Manager) collectSNMP(ctx context.Context) {
	inv, err := m.inv.Snapshot(ctx)
	if err != nil {
		if m.log != nil {
			m.log.Error("inventory snapshot failed (snmp collector)", "err", err)
		}
		return
	}
	idx := models.NewIndex(inv)

	var wg sync.WaitGroup
	for _, node := range idx.Nodes() {
		node := node
		group, ok := idx.Group(node)
		if !ok || !node.Enabled || !group.Enabled {
			continue
		}
		settings := models.Resolve(node, group)
		if !settings.MonitorSNMP {
			continue
		}
		for _, nm := range idx.NodeMetrics(node.ID) {
			def, ok := idx.Definition(nm.MetricDefinitionID)
			if !ok || def.Source != models.SourceSNMP || !nm.Enabled {
				continue
			}
			nm, def := nm, def
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := m.limiter.Acquire(ctx); err != nil {
					return
				}
				defer m.limiter.Release()
				m.collectOne(ctx, node, group, def, nm, settings)
			}()
		}
	}
	wg.Wait()
}

func (m *Manager) collectOne(ctx context.Context, node models.Node, group models.Group, def models.MetricDefinition, nm models.NodeMetric, settings models.EffectiveSettings) {
	oid := def.OIDTemplate
	if def.RequiresIndex {
		if nm.InterfaceIndex == nil {
			return
		}
		oid = strings.Replace(oid, "{index}", strconv.Itoa(*nm.InterfaceIndex), 1)
	}

	opts := probes.Options{
		Timeout: m.config().ProbeTimeout, SNMPCommunity: settings.SNMPCommunity,
		SNMPPort: settings.SNMPPort, OID: oid,
	}
	start := time.Now()
	result := m.snmp.Get(ctx, node.IP, oid, opts)
	if m.coll != nil {
		success := "false"
		if result.Success {
			success = "true"
		}
		m.coll.ProbesTotal.WithLabelValues(string(models.ProtocolSNMP), success).Inc()
		m.coll.ProbeLatencySeconds.WithLabelValues(string(models.ProtocolSNMP)).Observe(time.Since(start).Seconds())
	}
	if !result.Success {
		return
	}
	val, ok := result.Extra["value"].(int64)
	if !ok {
		return
	}

	var iface *models.NodeInterface
	if nm.InterfaceIndex != nil {
		iface = &models.NodeInterface{ID: nm.ID, NodeID: node.ID, IfIndex: *nm.InterfaceIndex, Name: nm.InterfaceName}
	}
	m.runProcessor(ctx, node, group, def, nm, float64(val), iface, settings)
}
