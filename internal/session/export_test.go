package session

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	store := NewStore()
	sess := store.Create("quarterly numbers", "src-1")

	require.NoError(t, store.AppendTurn(sess.ID, NewAnsweredTurn(
		"total revenue per region", "SELECT region, SUM(amount) FROM orders GROUP BY region",
		"sums order amounts grouped by region", "plain_select", []string{"orders"},
		&ResultRecord{
			Columns:  []string{"region", "total"},
			Rows:     [][]interface{}{{"north", int64(1200)}, {"south", 93.5}, {nil, nil}},
			RowCount: 3,
		})))
	require.NoError(t, store.AppendTurn(sess.ID,
		NewRejectedTurn("wipe it", "DELETE FROM orders", "not_read_only", "write keyword DELETE")))

	var first bytes.Buffer
	require.NoError(t, store.ExportSession(&first, sess.ID))

	lines := strings.Split(strings.TrimRight(first.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"kind":"session"`)

	// import into a fresh store and export again: byte-identical
	other := NewStore()
	imported, err := other.ImportSession(bytes.NewReader(first.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, sess.ID, imported.ID)
	assert.Equal(t, "quarterly numbers", imported.Name)
	require.Len(t, imported.Turns, 2)

	var second bytes.Buffer
	require.NoError(t, other.ExportSession(&second, sess.ID))
	assert.Equal(t, first.String(), second.String())
}

func TestImportRejectsDuplicateID(t *testing.T) {
	store := NewStore()
	sess := store.Create("dup", "src")
	require.NoError(t, store.AppendTurn(sess.ID, answeredTurn("q", 1)))

	var buf bytes.Buffer
	require.NoError(t, store.ExportSession(&buf, sess.ID))

	_, err := store.ImportSession(&buf)
	assert.ErrorIs(t, err, ErrSessionExists)
}

func TestImportRejectsMalformedInput(t *testing.T) {
	store := NewStore()

	_, err := store.ImportSession(strings.NewReader("not json"))
	assert.Error(t, err)

	_, err = store.ImportSession(strings.NewReader(`{"kind":"turn"}`))
	assert.ErrorContains(t, err, "not a session export")

	// a turn line without an outcome is corrupt
	corrupt := `{"kind":"session","id":"s1","name":"x","source_id":"src","created_at":"2026-01-02T03:04:05Z"}
{"id":"t1","question":"q","raw_query":"SELECT 1","created_at":"2026-01-02T03:04:06Z"}
`
	_, err = store.ImportSession(strings.NewReader(corrupt))
	assert.ErrorIs(t, err, ErrInvalidTurn)
}

func TestImportedSessionCountsInStats(t *testing.T) {
	store := NewStore()
	sess := store.Create("src session", "src")
	require.NoError(t, store.AppendTurn(sess.ID, answeredTurn("q", 40)))

	var buf bytes.Buffer
	require.NoError(t, store.ExportSession(&buf, sess.ID))

	other := NewStore()
	imported, err := other.ImportSession(&buf)
	require.NoError(t, err)

	got := other.Stats()
	assert.Equal(t, 1, got.TotalQueries)
	assert.Equal(t, 1, got.SuccessfulQueries)
	assert.Contains(t, got.PerSession, imported.ID)
	assert.Equal(t, other.RecomputeStats(), got)
}

func TestWriteResultCSV(t *testing.T) {
	result := &ResultRecord{
		Columns: []string{"name", "age", "active", "note"},
		Rows: [][]interface{}{
			{"alice", int64(30), true, "said \"hi\""},
			{"bob", 41.5, false, nil},
		},
		RowCount: 2,
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResultCSV(&buf, result))

	want := "name,age,active,note\n" +
		"alice,30,true,\"said \"\"hi\"\"\"\n" +
		"bob,41.5,false,\n"
	assert.Equal(t, want, buf.String())
}
