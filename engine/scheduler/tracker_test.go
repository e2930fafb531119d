package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func TestTrackerDueBeforeFirstCheck(t *testing.T) {
	tr := NewTracker(&fakeClock{now: time.Unix(0, 0)})
	require.True(t, tr.Due("n1", time.Minute, false))
}

func TestTrackerDueRespectsInterval(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	tr := NewTracker(clk)
	tr.MarkChecked("n1")

	clk.now = clk.now.Add(30 * time.Second)
	assert.False(t, tr.Due("n1", time.Minute, false))

	clk.now = clk.now.Add(31 * time.Second)
	assert.True(t, tr.Due("n1", time.Minute, false))
}

func TestTrackerAcceleratedRetryWhilePending(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	tr := NewTracker(clk)
	tr.MarkChecked("n1")

	clk.now = clk.now.Add(21 * time.Second)
	assert.True(t, tr.Due("n1", time.Minute, true), "interval/3 == 20s, so 21s elapsed should be due while pending")
	assert.False(t, tr.Due("n1", time.Minute, false), "the same elapsed time is not due under the full interval")
}

func TestTrackerTriggerImmediate(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	tr := NewTracker(clk)
	tr.MarkChecked("n1")
	assert.False(t, tr.Due("n1", time.Minute, false))

	tr.TriggerImmediate("n1")
	assert.True(t, tr.Due("n1", time.Minute, false))
}

func TestTrackerRemove(t *testing.T) {
	tr := NewTracker(nil)
	tr.MarkChecked("n1")
	require.Equal(t, 1, tr.Count())
	tr.Remove("n1")
	assert.Equal(t, 0, tr.Count())
}

func TestLimiterBoundsInFlight(t *testing.T) {
	l := NewLimiter(2)
	ctx := context.Background()
	require.NoError(t, l.Acquire(ctx))
	require.NoError(t, l.Acquire(ctx))
	assert.Equal(t, 2, l.InFlight())

	l.Release()
	assert.Equal(t, 1, l.InFlight())
}

func TestLimiterUnbounded(t *testing.T) {
	l := NewLimiter(0)
	assert.Equal(t, 0, l.InFlight())
	require.NoError(t, l.Acquire(context.Background()))
	assert.Equal(t, 0, l.InFlight())
}
