// Package processor implements the metric processor of spec.md §4.5: raw
// SNMP/ICMP samples become rate-derived, threshold-evaluated,
// cooldown-gated notifications and persisted metric records, grounded on
// original_source/backend/metrics_processor.py's process_metric pipeline.
package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"netwatch/engine/errs"
	"netwatch/engine/models"
	"netwatch/engine/notify"
	"netwatch/engine/scheduler"
	"netwatch/engine/storage"
	"netwatch/engine/telemetry/logging"
	"netwatch/engine/telemetry/metrics"
)

// hysteresisFactor is the 5% buffer spec.md §4.5 applies so a metric
// hovering at a threshold doesn't flap between levels every tick.
const hysteresisFactor = 0.05

// defaultCooldown is the minimum gap between two notifications for the same
// binding, matching original_source's COOLDOWN_SECONDS.
const defaultCooldown = 60 * time.Second

// Processor runs the five-step pipeline of spec.md §4.5 for one metric
// binding per call: coerce, derive rate, evaluate thresholds, dispatch
// notifications under cooldown, persist.
type Processor struct {
	store    *AlertStore
	sink     storage.Sink
	notifier notify.Sink
	clock    scheduler.Clock
	log      logging.Logger
	coll     *metrics.Collector
	cooldown time.Duration

	mu           sync.Mutex
	prevSamples  map[string]models.PreviousSample
	lastNotified map[string]time.Time
}

// New constructs a Processor. coll may be nil to disable instrumentation.
func New(store *AlertStore, sink storage.Sink, notifier notify.Sink, clock scheduler.Clock, log logging.Logger, coll *metrics.Collector) *Processor {
	if clock == nil {
		clock = scheduler.RealClock{}
	}
	return &Processor{
		store:        store,
		sink:         sink,
		notifier:     notifier,
		clock:        clock,
		log:          log,
		coll:         coll,
		cooldown:     defaultCooldown,
		prevSamples:  make(map[string]models.PreviousSample),
		lastNotified: make(map[string]time.Time),
	}
}

// Input bundles the context a single Process call needs to evaluate and
// notify for one NodeMetric binding.
type Input struct {
	Node       models.Node
	Group      models.Group
	Definition models.MetricDefinition
	Binding    models.NodeMetric
	Raw        float64
	Interface  *models.NodeInterface
	Priority   int // effective notification priority (models.Resolve.NotificationPriority)
}

// Process runs the five-step pipeline and returns the sample it derived.
// A persistence failure is logged and returned wrapped in
// errs.PersistenceWriteFailure; a notification failure is logged (wrapped in
// errs.NotificationDispatchError) and not returned. Neither prevents the
// alert state from advancing (spec.md §7: a sink failure must not corrupt
// the next tick's decision). A counter sample without a derived rate is
// returned as is, with no threshold evaluation and no persistence.
func (p *Processor) Process(ctx context.Context, in Input) (*models.ProcessedSample, error) {
	now := p.clock.Now()
	sample := p.derive(in, now)
	if in.Definition.Kind == models.KindCounter && sample.Rate == nil {
		return sample, nil
	}

	level, prevLevel, err := p.evaluate(in, sample)
	if err != nil {
		return sample, err
	}

	if level != prevLevel {
		if p.coll != nil {
			p.coll.AlertTransitions.WithLabelValues(string(level)).Inc()
		}
		p.maybeNotify(ctx, in, level, prevLevel, sample, now)
	}

	if p.sink != nil {
		rec := storage.MetricRecord{
			Node: in.Node.Name, IP: in.Node.IP, Group: in.Group.Name,
			Metric: in.Definition.Name, Unit: sample.Unit,
			Interface: interfaceLabel(in.Interface), Kind: string(in.Definition.Kind),
			Value: sample.ProcessedValue,
		}
		if werr := p.sink.WriteMetric(ctx, rec); werr != nil {
			wrapped := fmt.Errorf("%w: %v", errs.PersistenceWriteFailure, werr)
			if p.log != nil {
				p.log.Error("metric persistence failed", "node", in.Node.ID, "metric", in.Definition.ID, "err", wrapped)
			}
			return sample, wrapped
		}
	}

	return sample, nil
}

func interfaceLabel(iface *models.NodeInterface) string {
	if iface == nil {
		return ""
	}
	return iface.Name
}

// derive performs coercion and, for counters, rate derivation (spec.md §4.5
// step 2): delta over elapsed time. When there is no previous sample, the
// delta is negative (counter reset/wrap) or elapsed time is non-positive,
// Rate stays nil and Process emits no sample for it.
func (p *Processor) derive(in Input, now time.Time) *models.ProcessedSample {
	sample := &models.ProcessedSample{Raw: in.Raw, Unit: in.Definition.Unit, Timestamp: now}

	if in.Definition.Kind != models.KindCounter {
		sample.ProcessedValue = in.Raw
		return sample
	}

	key := in.Binding.ID
	p.mu.Lock()
	prev, ok := p.prevSamples[key]
	p.prevSamples[key] = models.PreviousSample{Value: in.Raw, Timestamp: now}
	p.mu.Unlock()

	if !ok {
		sample.ProcessedValue = 0
		return sample
	}

	delta := in.Raw - prev.Value
	elapsed := now.Sub(prev.Timestamp).Seconds()
	if delta < 0 || elapsed <= 0 {
		sample.ProcessedValue = 0
		return sample
	}

	rate := delta / elapsed
	if in.Definition.Unit == "bytes" {
		rate *= 8
		sample.Unit = "bps"
	}
	sample.Rate = &rate
	sample.ProcessedValue = rate
	return sample
}

// evaluate applies the threshold/hysteresis rules of spec.md §4.5 step 3
// and returns the new level alongside the level that was previously
// persisted for this binding.
func (p *Processor) evaluate(in Input, sample *models.ProcessedSample) (level, prevLevel models.AlertLevel, err error) {
	if p.store == nil {
		return models.AlertNone, models.AlertNone, nil
	}
	key := in.Binding.ID
	werr := p.store.WithLock(func(m map[string]models.AlertLevel) bool {
		prevLevel = m[key]
		level = classify(sample.ProcessedValue, in.Binding, prevLevel)
		if level == prevLevel {
			return false
		}
		if level == models.AlertNone {
			delete(m, key)
		} else {
			m[key] = level
		}
		return true
	})
	if werr != nil {
		return models.AlertNone, models.AlertNone, fmt.Errorf("%w: %v", errs.PersistenceWriteFailure, werr)
	}
	return level, prevLevel, nil
}

// classify decides the alert level for a value against a binding's
// warning/critical thresholds, applying the hysteresis buffer only while
// that level is already active so a metric oscillating around the raw
// threshold doesn't re-fire every tick.
func classify(value float64, b models.NodeMetric, current models.AlertLevel) models.AlertLevel {
	if b.CriticalThreshold != nil && breached(value, *b.CriticalThreshold, b.Comparator, current == models.AlertCritical) {
		return models.AlertCritical
	}
	// Hysteresis for WARNING only holds while WARNING is itself the active
	// level: dropping straight from CRITICAL past the warning threshold in
	// one sample resolves to NONE directly rather than landing on a
	// momentary WARNING (spec.md §8 S3).
	if b.WarningThreshold != nil && breached(value, *b.WarningThreshold, b.Comparator, current == models.AlertWarning) {
		return models.AlertWarning
	}
	return models.AlertNone
}

// breached reports whether value crosses threshold for comparator cmp. A
// value exactly at the threshold breaches (spec.md §8 B3: inclusive on both
// gt and lt). While the level is already active, the hysteresis buffer
// shrinks the effective threshold by 5% so recovery requires actually
// clearing it, not just touching it again (spec.md §8 B4).
func breached(value, threshold float64, cmp models.Comparator, active bool) bool {
	buffer := threshold * hysteresisFactor
	switch cmp {
	case models.ComparatorLT:
		if active {
			return value <= threshold+buffer
		}
		return value <= threshold
	default: // gt
		if active {
			return value >= threshold-buffer
		}
		return value >= threshold
	}
}

// appName prefixes every notification title, matching spec.md §4.5's
// "{app} {LEVEL}: {node} - {metric}" format.
const appName = "netwatch"

// maybeNotify dispatches a level-transition notification subject to the
// per-binding cooldown window (spec.md §4.5 step 4, enforced for both the
// alert and the resolve direction).
func (p *Processor) maybeNotify(ctx context.Context, in Input, level, prevLevel models.AlertLevel, sample *models.ProcessedSample, now time.Time) {
	if p.notifier == nil {
		return
	}
	key := in.Binding.ID
	p.mu.Lock()
	last, seen := p.lastNotified[key]
	if seen && now.Sub(last) < p.cooldown {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	priority := notifyPriority(level, in.Priority)
	title := fmt.Sprintf("%s %s: %s - %s", appName, levelWord(level), in.Node.Name, in.Definition.Name)
	body := notifyBody(in, level, sample)

	ok, err := p.notifier.Send(ctx, title, body, priority)
	if p.coll != nil {
		prioLabel := fmt.Sprintf("%d", priority)
		if err != nil || !ok {
			p.coll.NotificationsFailed.WithLabelValues(prioLabel).Inc()
		} else {
			p.coll.NotificationsSent.WithLabelValues(prioLabel).Inc()
		}
	}
	if err != nil {
		// Cooldown is not updated on hard failure, so the next transition
		// gets a fresh retry instead of waiting out the window.
		if p.log != nil {
			p.log.Error("notification dispatch failed", "node", in.Node.ID, "metric", in.Definition.ID,
				"err", fmt.Errorf("%w: %v", errs.NotificationDispatchError, err))
		}
		return
	}
	p.mu.Lock()
	p.lastNotified[key] = now
	p.mu.Unlock()
}

// notifyPriority maps an alert level to Pushover priority per spec.md §4.5:
// CRITICAL forces at least priority 1, WARNING defers to the node's
// configured default, and a resolve is always priority 0.
func notifyPriority(level models.AlertLevel, nodeDefault int) int {
	switch level {
	case models.AlertCritical:
		if nodeDefault > 1 {
			return nodeDefault
		}
		return 1
	case models.AlertWarning:
		return nodeDefault
	default:
		return 0
	}
}

// notifyBody renders the value/unit/threshold line of spec.md §4.5, or the
// resolution line when level is AlertNone.
func notifyBody(in Input, level models.AlertLevel, sample *models.ProcessedSample) string {
	if level == models.AlertNone {
		return fmt.Sprintf("%s returned to normal (%.2f %s)", in.Definition.Name, sample.ProcessedValue, sample.Unit)
	}
	threshold, symbol := thresholdFor(in.Binding, level)
	return fmt.Sprintf("%s is %.2f %s (%s %.2f)", in.Definition.Name, sample.ProcessedValue, sample.Unit, symbol, threshold)
}

// thresholdFor picks the threshold that fired for level and the comparator
// symbol spec.md §4.5 specifies (≥ for gt, ≤ for lt).
func thresholdFor(b models.NodeMetric, level models.AlertLevel) (float64, string) {
	symbol := "≥"
	if b.Comparator == models.ComparatorLT {
		symbol = "≤"
	}
	if level == models.AlertCritical && b.CriticalThreshold != nil {
		return *b.CriticalThreshold, symbol
	}
	if b.WarningThreshold != nil {
		return *b.WarningThreshold, symbol
	}
	return 0, symbol
}

func levelWord(l models.AlertLevel) string {
	if l == models.AlertNone {
		return "RESOLVED"
	}
	return string(l)
}

// NodeAlertStatus is the read-only aggregation helper of spec.md §4.5:
// scanning a node's bindings, DOWN if any is CRITICAL, PENDING if any is
// WARNING, else UP — already expressed in reachability.Status terms so
// reachability.CombinedStatus can fold it in directly.
func (p *Processor) NodeAlertStatus(nodeID string, bindings []models.NodeMetric) (models.Status, error) {
	snap, err := p.store.Snapshot()
	if err != nil {
		return models.StatusUP, err
	}
	worst := models.AlertNone
	for _, b := range bindings {
		if b.NodeID != nodeID {
			continue
		}
		if lvl, ok := snap[b.ID]; ok && severity(lvl) > severity(worst) {
			worst = lvl
		}
	}
	switch worst {
	case models.AlertCritical:
		return models.StatusDown, nil
	case models.AlertWarning:
		return models.StatusPending, nil
	default:
		return models.StatusUP, nil
	}
}

func severity(l models.AlertLevel) int {
	switch l {
	case models.AlertCritical:
		return 2
	case models.AlertWarning:
		return 1
	default:
		return 0
	}
}
