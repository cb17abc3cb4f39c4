package ledger

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "ledger.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestMarkProcessed_Idempotent(t *testing.T) {
	l := newTestLedger(t)

	known, err := l.IsKnownPost("p1")
	require.NoError(t, err)
	assert.False(t, known)

	require.NoError(t, l.MarkProcessed("p1"))
	require.NoError(t, l.MarkProcessed("p1"))

	known, err = l.IsKnownPost("p1")
	require.NoError(t, err)
	assert.True(t, known)
}

func TestAuthorCommentedRecently(t *testing.T) {
	l := newTestLedger(t)

	recent, err := l.AuthorCommentedRecently("a1", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, recent)

	require.NoError(t, l.RecordAuthorComment("a1", time.Now()))

	recent, err = l.AuthorCommentedRecently("a1", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, recent)
}

func TestAuthorCommentedRecently_OutsideWindow(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.RecordAuthorComment("a1", time.Now().Add(-25*time.Hour)))

	recent, err := l.AuthorCommentedRecently("a1", 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, recent)
}

func TestRecordAuthorComment_Overwrites(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.RecordAuthorComment("a1", time.Now().Add(-48*time.Hour)))
	require.NoError(t, l.RecordAuthorComment("a1", time.Now()))

	recent, err := l.AuthorCommentedRecently("a1", 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, recent)
}

func TestFailureCount(t *testing.T) {
	l := newTestLedger(t)

	count, err := l.FailureCount("p1")
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, l.RecordFailure("p1"))
	require.NoError(t, l.RecordFailure("p1"))
	require.NoError(t, l.RecordFailure("p1"))

	count, err = l.FailureCount("p1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLedger_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	l, err := Open(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, l.MarkProcessed("p1"))
	require.NoError(t, l.Close())

	l, err = Open(path, zap.NewNop())
	require.NoError(t, err)
	defer l.Close()

	known, err := l.IsKnownPost("p1")
	require.NoError(t, err)
	assert.True(t, known)
}
