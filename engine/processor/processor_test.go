package processor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/engine/models"
	"netwatch/engine/storage"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

type fakeNotifier struct {
	mu    sync.Mutex
	sends []sentNotification
}

type sentNotification struct {
	title, body string
	priority    int
}

func (f *fakeNotifier) Send(_ context.Context, title, body string, priority int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, sentNotification{title, body, priority})
	return true, nil
}
func (f *fakeNotifier) Configure(_, _ string) {}
func (f *fakeNotifier) Close() error          { return nil }

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type fakeSink struct {
	mu      sync.Mutex
	metrics []storage.MetricRecord
}

func (f *fakeSink) WriteMonitoring(context.Context, storage.MonitoringRecord) error { return nil }
func (f *fakeSink) WriteMetric(_ context.Context, rec storage.MetricRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metrics = append(f.metrics, rec)
	return nil
}
func (f *fakeSink) ReloadConfig(storage.Config) error { return nil }
func (f *fakeSink) Close() error                      { return nil }

func newTestProcessor(t *testing.T, notifier *fakeNotifier, sink *fakeSink, clk *fakeClock) *Processor {
	t.Helper()
	store := NewAlertStore(filepath.Join(t.TempDir(), "alert_state.json"))
	return New(store, sink, notifier, clk, nil, nil)
}

func gaugeInput(raw float64, warn, crit *float64) Input {
	return Input{
		Node:       models.Node{ID: "n1", Name: "router1"},
		Group:      models.Group{Name: "core"},
		Definition: models.MetricDefinition{ID: "cpu", Name: "cpu_load", Kind: models.KindGauge, Unit: "%"},
		Binding: models.NodeMetric{
			ID: "n1:cpu", NodeID: "n1", WarningThreshold: warn, CriticalThreshold: crit,
			Comparator: models.ComparatorGT,
		},
		Raw: raw,
	}
}

func f64(v float64) *float64 { return &v }

// B3: a value exactly at the threshold breaches (inclusive comparison).
func TestInclusiveThresholdBoundary(t *testing.T) {
	warn, crit := f64(80), f64(90)
	assert.Equal(t, models.AlertWarning, classify(80, models.NodeMetric{WarningThreshold: warn, CriticalThreshold: crit, Comparator: models.ComparatorGT}, models.AlertNone))
	assert.Equal(t, models.AlertCritical, classify(90, models.NodeMetric{WarningThreshold: warn, CriticalThreshold: crit, Comparator: models.ComparatorGT}, models.AlertNone))
}

// B4: once WARNING is active, recovery requires dropping below
// threshold*(1-hysteresis), not just below the raw threshold.
func TestHysteresisRecoveryBoundary(t *testing.T) {
	warn := f64(80)
	b := models.NodeMetric{WarningThreshold: warn, Comparator: models.ComparatorGT}

	// Still within the 5% buffer below 80 (80 - 4 = 76): stays WARNING.
	assert.Equal(t, models.AlertWarning, classify(77, b, models.AlertWarning))
	// Below the buffered floor: resolves.
	assert.Equal(t, models.AlertNone, classify(75, b, models.AlertWarning))
}

// S3: the exact 5-sample scenario from spec.md §8 — warn=80, crit=90, gt.
// Samples 50,85,95,86,78 -> NONE,WARNING,CRITICAL,CRITICAL(held),NONE, with
// exactly 3 notifications (transitions at samples 2, 3, and 5).
func TestScenarioWarningCriticalHysteresisSequence(t *testing.T) {
	warn, crit := f64(80), f64(90)
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := newTestProcessor(t, notifier, sink, clk)
	p.cooldown = 0

	samples := []float64{50, 85, 95, 86, 78}
	expected := []models.AlertLevel{models.AlertNone, models.AlertWarning, models.AlertCritical, models.AlertCritical, models.AlertNone}

	for i, raw := range samples {
		clk.now = clk.now.Add(time.Minute)
		in := gaugeInput(raw, warn, crit)
		out, err := p.Process(context.Background(), in)
		require.NoError(t, err)
		require.NotNil(t, out)

		snap, err := p.store.Snapshot()
		require.NoError(t, err)
		got := snap["n1:cpu"]
		if got == "" {
			got = models.AlertNone
		}
		assert.Equal(t, expected[i], got, "sample %d (value=%v)", i, raw)
	}

	assert.Equal(t, 3, notifier.count())
}

// P3: at most one notification fires within the cooldown window for the
// same binding, even across repeated transitions.
func TestCooldownSuppressesRepeatNotifications(t *testing.T) {
	warn := f64(80)
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := newTestProcessor(t, notifier, sink, clk)

	in := gaugeInput(85, warn, nil)
	_, err := p.Process(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.count())

	// Resolve and re-breach within the cooldown window: second notification
	// suppressed.
	clk.now = clk.now.Add(time.Second)
	_, err = p.Process(context.Background(), gaugeInput(50, warn, nil))
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Second)
	_, err = p.Process(context.Background(), gaugeInput(85, warn, nil))
	require.NoError(t, err)
	assert.Equal(t, 1, notifier.count())

	// After the cooldown elapses, a transition notifies again.
	clk.now = clk.now.Add(defaultCooldown)
	_, err = p.Process(context.Background(), gaugeInput(50, warn, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, notifier.count())
}

func counterInput(raw float64, unit string) Input {
	return Input{
		Node:       models.Node{ID: "n1", Name: "sw1"},
		Group:      models.Group{Name: "core"},
		Definition: models.MetricDefinition{ID: "ifin", Name: "if_in_octets", Kind: models.KindCounter, Unit: unit},
		Binding:    models.NodeMetric{ID: "n1:ifin", NodeID: "n1", Comparator: models.ComparatorGT},
		Raw:        raw,
	}
}

// B2: a counter wraparound (negative delta) emits no rate, but still
// advances PreviousSample so the next call measures from the new value.
func TestCounterWraparoundYieldsNoSample(t *testing.T) {
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := newTestProcessor(t, notifier, sink, clk)

	_, err := p.Process(context.Background(), counterInput(1000, "bytes"))
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Second)
	out, err := p.Process(context.Background(), counterInput(100, "bytes")) // wrapped
	require.NoError(t, err)
	assert.Nil(t, out.Rate)
	assert.Equal(t, float64(0), out.ProcessedValue)

	prev, ok := p.prevSamples["n1:ifin"]
	require.True(t, ok)
	assert.Equal(t, float64(100), prev.Value)
}

// S2 / L3: bytes-counter rate scenario — (1000 @ t0), (2000 @ t0+1s) ->
// 8000 bps with unit rewritten to "bps".
func TestBytesCounterRateScaledToBps(t *testing.T) {
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := newTestProcessor(t, notifier, sink, clk)

	_, err := p.Process(context.Background(), counterInput(1000, "bytes"))
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Second)
	out, err := p.Process(context.Background(), counterInput(2000, "bytes"))
	require.NoError(t, err)
	require.NotNil(t, out.Rate)
	assert.Equal(t, float64(8000), out.ProcessedValue)
	assert.Equal(t, "bps", out.Unit)
}

// P2: a derived counter rate is never negative.
func TestCounterRateNeverNegative(t *testing.T) {
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := newTestProcessor(t, notifier, sink, clk)

	_, err := p.Process(context.Background(), counterInput(500, "bytes"))
	require.NoError(t, err)
	clk.now = clk.now.Add(time.Second)
	out, err := p.Process(context.Background(), counterInput(1500, "bytes"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, out.ProcessedValue, float64(0))
}

func TestNodeAlertStatusAggregatesWorstBinding(t *testing.T) {
	notifier := &fakeNotifier{}
	sink := &fakeSink{}
	clk := &fakeClock{now: time.Unix(0, 0)}
	p := newTestProcessor(t, notifier, sink, clk)

	warn, crit := f64(80), f64(90)
	bindings := []models.NodeMetric{
		{ID: "n1:cpu", NodeID: "n1", WarningThreshold: warn, CriticalThreshold: crit, Comparator: models.ComparatorGT},
		{ID: "n1:mem", NodeID: "n1", WarningThreshold: warn, Comparator: models.ComparatorGT},
	}

	_, err := p.Process(context.Background(), Input{
		Node: models.Node{ID: "n1"}, Definition: models.MetricDefinition{ID: "cpu", Kind: models.KindGauge},
		Binding: bindings[0], Raw: 95,
	})
	require.NoError(t, err)

	status, err := p.NodeAlertStatus("n1", bindings)
	require.NoError(t, err)
	assert.Equal(t, models.StatusDown, status)
}
