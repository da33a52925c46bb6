package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCountsAllOutcomes(t *testing.T) {
	store := NewStore()
	a := store.Create("a", "src")
	b := store.Create("b", "src")

	require.NoError(t, store.AppendTurn(a.ID, answeredTurn("q1", 10)))
	require.NoError(t, store.AppendTurn(a.ID, answeredTurn("q2", 20)))
	require.NoError(t, store.AppendTurn(a.ID,
		NewFailedTurn("q3", "SELECT x", "", "plain_select", nil, "syntax_error", "no such column")))
	require.NoError(t, store.AppendTurn(b.ID,
		NewRejectedTurn("q4", "DELETE FROM t", "not_read_only", "write keyword DELETE")))
	require.NoError(t, store.AppendTurn(b.ID, answeredTurn("q5", 60)))

	got := store.Stats()
	assert.Equal(t, 5, got.TotalQueries)
	assert.Equal(t, 3, got.SuccessfulQueries)
	assert.Equal(t, 1, got.FailedQueries)
	assert.Equal(t, 1, got.RejectedQueries)
	assert.InDelta(t, 30.0, got.AvgLatencyMs, 1e-9)
	assert.InDelta(t, 20.0, got.MedianLatencyMs, 1e-9)

	assert.Equal(t, SessionStats{Queries: 3, Successful: 2, Failed: 1}, got.PerSession[a.ID])
	assert.Equal(t, SessionStats{Queries: 2, Successful: 1, Rejected: 1}, got.PerSession[b.ID])
}

func TestStatsEmptyStore(t *testing.T) {
	store := NewStore()

	got := store.Stats()
	assert.Zero(t, got.TotalQueries)
	assert.Zero(t, got.AvgLatencyMs)
	assert.Zero(t, got.MedianLatencyMs)
	assert.Empty(t, got.PerSession)
}

func TestIncrementalMatchesRecompute(t *testing.T) {
	store := NewStore()
	a := store.Create("a", "src")
	b := store.Create("b", "src")

	turns := []struct {
		session string
		turn    Turn
	}{
		{a.ID, answeredTurn("q1", 5)},
		{b.ID, NewRejectedTurn("q2", "DROP TABLE t", "not_read_only", "write keyword DROP")},
		{a.ID, NewFailedTurn("q3", "SELECT x", "", "plain_select", nil, "timed_out", "deadline exceeded")},
		{b.ID, answeredTurn("q4", 45)},
		{a.ID, answeredTurn("q5", 100)},
	}

	// the running counters and a full recount must agree after every append
	for _, tc := range turns {
		require.NoError(t, store.AppendTurn(tc.session, tc.turn))
		assert.Equal(t, store.RecomputeStats(), store.Stats())
	}
}

func TestStatsRebuildAfterDelete(t *testing.T) {
	store := NewStore()
	a := store.Create("a", "src")
	b := store.Create("b", "src")

	require.NoError(t, store.AppendTurn(a.ID, answeredTurn("q1", 10)))
	require.NoError(t, store.AppendTurn(b.ID, answeredTurn("q2", 90)))
	require.NoError(t, store.Delete(b.ID))

	got := store.Stats()
	assert.Equal(t, 1, got.TotalQueries)
	assert.Equal(t, 1, got.SuccessfulQueries)
	assert.InDelta(t, 10.0, got.AvgLatencyMs, 1e-9)
	assert.NotContains(t, got.PerSession, b.ID)

	// counters keep incrementing correctly after the rebuild
	require.NoError(t, store.AppendTurn(a.ID, answeredTurn("q3", 30)))
	assert.Equal(t, store.RecomputeStats(), store.Stats())
}
