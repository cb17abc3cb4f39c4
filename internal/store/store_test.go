package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"replypilot/internal/models"
)

// fakePublisher counts calls and returns a scripted result.
type fakePublisher struct {
	calls  int
	result models.PublishResult
	err    error
}

func (f *fakePublisher) Publish(ctx context.Context, comment models.Comment) (models.PublishResult, error) {
	f.calls++
	return f.result, f.err
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return st
}

func pendingComment(id string) models.Comment {
	now := time.Now().UTC()
	return models.Comment{
		ID:           id,
		PostID:       "post-" + id,
		AuthorID:     "author-1",
		AuthorHandle: "someone",
		Text:         "draft text",
		Status:       models.StatusPending,
		SessionToken: "token",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSavePending_OverwritesSameID(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SavePending(pendingComment("c1")))

	updated := pendingComment("c1")
	updated.Text = "second draft"
	require.NoError(t, st.SavePending(updated))

	comments, err := st.List(models.StatusPending)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "second draft", comments[0].Text)
}

func TestSavePending_DiscardedAfterDecision(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SavePending(pendingComment("c1")))
	require.NoError(t, st.Approve("c1"))

	// A late regeneration of the same comment must not fork the record
	// back into pending.
	regenerated := pendingComment("c1")
	regenerated.Text = "regenerated draft"
	require.NoError(t, st.SavePending(regenerated))

	pending, err := st.List(models.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	comment, status, err := st.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)
	assert.Equal(t, "draft text", comment.Text)
}

func TestSavePending_DiscardedAfterPublish(t *testing.T) {
	st := newTestStore(t)

	require.NoError(t, st.SavePending(pendingComment("c1")))
	pub := &fakePublisher{result: models.PublishResult{Success: true, RemoteID: "remote-1"}}
	require.NoError(t, st.Publish(context.Background(), "c1", pub))

	require.NoError(t, st.SavePending(pendingComment("c1")))

	pending, err := st.List(models.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, status, err := st.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, status)
}

func TestApprove(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))

	require.NoError(t, st.Approve("c1"))

	_, status, err := st.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)

	pending, err := st.List(models.StatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApprove_RepeatIsNoOp(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))

	require.NoError(t, st.Approve("c1"))
	require.NoError(t, st.Approve("c1"))

	approved, err := st.List(models.StatusApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestReject_ThenNothingLeaves(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))
	require.NoError(t, st.Reject("c1"))

	var terminal *TerminalStateError
	err := st.Approve("c1")
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, models.StatusRejected, terminal.Status)

	pub := &fakePublisher{result: models.PublishResult{Success: true}}
	err = st.Publish(context.Background(), "c1", pub)
	require.ErrorAs(t, err, &terminal)
	assert.Zero(t, pub.calls)
}

func TestReject_FromApprovedIsInvalid(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))
	require.NoError(t, st.Approve("c1"))

	var invalid *InvalidTransitionError
	require.ErrorAs(t, st.Reject("c1"), &invalid)
}

func TestPublish_DirectFastPath(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))

	pub := &fakePublisher{result: models.PublishResult{Success: true, RemoteID: "remote-9"}}
	require.NoError(t, st.Publish(context.Background(), "c1", pub))

	comment, status, err := st.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPublished, status)
	assert.Equal(t, "remote-9", comment.RemoteID)
	require.NotNil(t, comment.PublishedAt)
}

func TestPublish_ReplayIsNoOp(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))

	pub := &fakePublisher{result: models.PublishResult{Success: true, RemoteID: "remote-9"}}
	require.NoError(t, st.Publish(context.Background(), "c1", pub))
	require.NoError(t, st.Publish(context.Background(), "c1", pub))

	// The external publish ran exactly once.
	assert.Equal(t, 1, pub.calls)
}

func TestPublish_FailureKeepsStatusWithNote(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))
	require.NoError(t, st.Approve("c1"))

	pub := &fakePublisher{result: models.PublishResult{Success: false, Error: "rate limited"}}
	err := st.Publish(context.Background(), "c1", pub)

	var pubErr *PublishError
	require.ErrorAs(t, err, &pubErr)
	assert.Equal(t, "rate limited", pubErr.Reason)

	comment, status, err := st.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)
	assert.Equal(t, "rate limited", comment.LastError)

	published, err := st.List(models.StatusPublished)
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestUpdateText_PreservesStatus(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))
	require.NoError(t, st.Approve("c1"))

	before, _, err := st.Get("c1")
	require.NoError(t, err)

	require.NoError(t, st.UpdateText("c1", "refined text", "token-2"))

	after, status, err := st.Get("c1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, status)
	assert.Equal(t, "refined text", after.Text)
	assert.Equal(t, "token-2", after.SessionToken)
	assert.Equal(t, before.PostID, after.PostID)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}

func TestUpdateText_TerminalStatusRefused(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))
	require.NoError(t, st.Reject("c1"))

	var terminal *TerminalStateError
	require.ErrorAs(t, st.UpdateText("c1", "x", ""), &terminal)
}

func TestTransition_UnknownComment(t *testing.T) {
	st := newTestStore(t)
	assert.True(t, errors.Is(st.Approve("missing"), ErrNotFound))
}

func TestScan_CorruptRecordReportedNotDeleted(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SavePending(pendingComment("c1")))

	corruptPath := filepath.Join(st.root, string(models.StatusPending), "bad.json")
	require.NoError(t, os.WriteFile(corruptPath, []byte("{not json"), 0o644))

	comments, corrupt, err := st.Scan(models.StatusPending)
	require.NoError(t, err)
	assert.Len(t, comments, 1)
	require.Len(t, corrupt, 1)

	// Never auto-deleted.
	_, err = os.Stat(corrupt[0])
	assert.NoError(t, err)
}

func TestList_OrderedByCreation(t *testing.T) {
	st := newTestStore(t)

	older := pendingComment("old")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := pendingComment("new")

	require.NoError(t, st.SavePending(newer))
	require.NoError(t, st.SavePending(older))

	comments, err := st.List(models.StatusPending)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "old", comments[0].ID)
	assert.Equal(t, "new", comments[1].ID)
}
