package reachability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netwatch/engine/models"
)

func TestRecordUPToPendingOnFailure(t *testing.T) {
	m := New()
	now := time.Unix(0, 0)
	st, transitioned := m.Record("n1", false, 3, now)
	require.True(t, transitioned)
	assert.Equal(t, models.StatusPending, st.Status)
	assert.Equal(t, 1, st.FailureCount)
}

// B1: with max_retries = 0, UP -> failure -> PENDING (first failure) ->
// next failure -> DOWN.
func TestBoundaryMaxRetriesZero(t *testing.T) {
	m := New()
	now := time.Unix(0, 0)

	st, transitioned := m.Record("n1", false, 0, now)
	require.True(t, transitioned)
	require.Equal(t, models.StatusPending, st.Status)

	st, transitioned = m.Record("n1", false, 0, now.Add(time.Second))
	require.True(t, transitioned)
	assert.Equal(t, models.StatusDown, st.Status)
}

// P1: status == DOWN implies the preceding state was PENDING with
// failure_count > max_retries.
func TestDownOnlyReachedThroughPendingOverMaxRetries(t *testing.T) {
	m := New()
	now := time.Unix(0, 0)
	maxRetries := 2

	m.Record("n1", false, maxRetries, now) // -> PENDING, count=1
	st, transitioned := m.Record("n1", false, maxRetries, now.Add(time.Second)) // -> PENDING, count=2
	require.False(t, transitioned)
	require.Equal(t, models.StatusPending, st.Status)
	require.Equal(t, 2, st.FailureCount)

	st, transitioned = m.Record("n1", false, maxRetries, now.Add(2*time.Second)) // count=3 > 2 -> DOWN
	require.True(t, transitioned)
	assert.Equal(t, models.StatusDown, st.Status)
	assert.Greater(t, st.FailureCount, maxRetries)
}

func TestRecordSuccessFromPendingOrDownResetsToUP(t *testing.T) {
	m := New()
	now := time.Unix(0, 0)
	m.Record("n1", false, 1, now)
	m.Record("n1", false, 1, now.Add(time.Second)) // DOWN

	st, transitioned := m.Record("n1", true, 1, now.Add(2*time.Second))
	require.True(t, transitioned)
	assert.Equal(t, models.StatusUP, st.Status)
	assert.Equal(t, 0, st.FailureCount)
}

// L1: mark_paused then trigger_immediate after re-enabling leaves the node
// eligible with failure_count == 0.
func TestPauseResumeRoundTrip(t *testing.T) {
	m := New()
	now := time.Unix(0, 0)
	m.Record("n1", false, 3, now)
	require.Equal(t, models.StatusPending, m.State("n1").Status)

	m.Pause("n1")
	assert.True(t, m.IsPaused("n1"))

	m.Resume("n1")
	st := m.State("n1")
	assert.Equal(t, models.StatusUP, st.Status)
	assert.Equal(t, 0, st.FailureCount)
}

func TestRecordOnPausedNodeIsNoop(t *testing.T) {
	m := New()
	m.Pause("n1")
	st, transitioned := m.Record("n1", false, 3, time.Unix(0, 0))
	assert.False(t, transitioned)
	assert.Equal(t, models.StatusPaused, st.Status)
}

func TestCombinedStatusOnlyConsultsAlertWhenUP(t *testing.T) {
	assert.Equal(t, models.StatusDown, CombinedStatus(models.StatusDown, models.StatusUP))
	assert.Equal(t, models.StatusPaused, CombinedStatus(models.StatusPaused, models.StatusDown))
	assert.Equal(t, models.StatusPending, CombinedStatus(models.StatusUP, models.StatusPending))
	assert.Equal(t, models.StatusUP, CombinedStatus(models.StatusUP, models.StatusUP))
}
