package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func answeredTurn(question string, elapsedMs int64) Turn {
	return NewAnsweredTurn(question, "SELECT 1", "counts rows", "plain_select", nil, &ResultRecord{
		Columns:   []string{"n"},
		Rows:      [][]interface{}{{int64(1)}},
		RowCount:  1,
		ElapsedMs: elapsedMs,
	})
}

func TestCreateAndList(t *testing.T) {
	store := NewStore()

	first := store.Create("sales", "src-1")
	second := store.Create("hr", "src-2")

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)

	list := store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "sales", list[0].Name)
	assert.Equal(t, "hr", list[1].Name)
	assert.False(t, list[0].Active)
	assert.False(t, list[1].Active)

	// creation never changes the active pointer
	assert.Empty(t, store.ActiveID())
}

func TestSwitchAndDelete(t *testing.T) {
	store := NewStore()
	a := store.Create("a", "src")
	b := store.Create("b", "src")

	require.NoError(t, store.Switch(a.ID))
	assert.Equal(t, a.ID, store.ActiveID())

	require.NoError(t, store.Switch(b.ID))
	assert.Equal(t, b.ID, store.ActiveID())

	// deleting the active session clears the pointer, it does not fall
	// back to another session
	require.NoError(t, store.Delete(b.ID))
	assert.Empty(t, store.ActiveID())

	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)
}

func TestDeleteInactiveKeepsActive(t *testing.T) {
	store := NewStore()
	a := store.Create("a", "src")
	b := store.Create("b", "src")

	require.NoError(t, store.Switch(a.ID))
	require.NoError(t, store.Delete(b.ID))
	assert.Equal(t, a.ID, store.ActiveID())
}

func TestUnknownSessionErrors(t *testing.T) {
	store := NewStore()

	assert.ErrorIs(t, store.Switch("nope"), ErrSessionNotFound)
	assert.ErrorIs(t, store.Rename("nope", "x"), ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete("nope"), ErrSessionNotFound)
	assert.ErrorIs(t, store.AppendTurn("nope", answeredTurn("q", 5)), ErrSessionNotFound)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestAppendTurnOutcomes(t *testing.T) {
	store := NewStore()
	sess := store.Create("test", "src")

	require.NoError(t, store.AppendTurn(sess.ID, answeredTurn("how many users?", 12)))
	require.NoError(t, store.AppendTurn(sess.ID,
		NewFailedTurn("bad one", "SELECT nope", "", "plain_select", nil, "syntax_error", "no such column: nope")))
	require.NoError(t, store.AppendTurn(sess.ID,
		NewRejectedTurn("drop it", "DROP TABLE users", "not_read_only", "write keyword DROP")))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Turns, 3)
	assert.True(t, got.Turns[0].Succeeded())
	assert.NotNil(t, got.Turns[1].ExecError)
	assert.NotNil(t, got.Turns[2].Rejection)

	// history is chronological and append-only
	assert.Equal(t, "how many users?", got.Turns[0].Question)
	assert.Equal(t, "drop it", got.Turns[2].Question)
}

func TestAppendTurnRejectsMalformedOutcome(t *testing.T) {
	store := NewStore()
	sess := store.Create("test", "src")

	none := Turn{Question: "q", RawQuery: "SELECT 1"}
	assert.ErrorIs(t, store.AppendTurn(sess.ID, none), ErrInvalidTurn)

	both := answeredTurn("q", 3)
	both.Rejection = &RejectionRecord{Reason: "not_read_only"}
	assert.ErrorIs(t, store.AppendTurn(sess.ID, both), ErrInvalidTurn)

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Turns)
}

func TestAutoTitleFromFirstQuestion(t *testing.T) {
	store := NewStore()
	sess := store.Create("", "src")

	require.NoError(t, store.AppendTurn(sess.ID, answeredTurn("show me the top customers by revenue", 8)))
	require.NoError(t, store.AppendTurn(sess.ID, answeredTurn("and by region?", 9)))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "show me the top customers by revenue", got.Name)

	named := store.Create("already named", "src")
	require.NoError(t, store.AppendTurn(named.ID, answeredTurn("whatever", 2)))
	got, err = store.Get(named.ID)
	require.NoError(t, err)
	assert.Equal(t, "already named", got.Name)
}

func TestAutoTitleTruncatesLongQuestions(t *testing.T) {
	store := NewStore()
	sess := store.Create("", "src")

	long := "please list every order together with the customer that placed it"
	require.NoError(t, store.AppendTurn(sess.ID, answeredTurn(long, 4)))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, long[:50]+"...", got.Name)
}

func TestGetReturnsCopy(t *testing.T) {
	store := NewStore()
	sess := store.Create("test", "src")
	require.NoError(t, store.AppendTurn(sess.ID, answeredTurn("q", 1)))

	got, err := store.Get(sess.ID)
	require.NoError(t, err)
	got.Turns[0].Question = "mutated"
	got.Name = "mutated"

	again, err := store.Get(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "q", again.Turns[0].Question)
	assert.Equal(t, "test", again.Name)
}
