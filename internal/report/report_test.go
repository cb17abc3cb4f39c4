package report

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"replypilot/internal/models"
	"replypilot/internal/store"
)

type okPublisher struct{}

func (okPublisher) Publish(ctx context.Context, c models.Comment) (models.PublishResult, error) {
	return models.PublishResult{Success: true, RemoteID: "r-" + c.ID}, nil
}

func seedComment(t *testing.T, st *store.Store, id, handle string) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, st.SavePending(models.Comment{
		ID:           id,
		PostID:       "post-" + id,
		AuthorID:     "author-" + handle,
		AuthorHandle: handle,
		Text:         "draft",
		Status:       models.StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}))
}

func TestSummarize(t *testing.T) {
	root := t.TempDir()
	st, err := store.Open(root, zap.NewNop())
	require.NoError(t, err)

	seedComment(t, st, "c1", "alice")
	seedComment(t, st, "c2", "alice")
	seedComment(t, st, "c3", "bob")
	seedComment(t, st, "c4", "bob")

	require.NoError(t, st.Approve("c2"))
	require.NoError(t, st.Reject("c3"))
	require.NoError(t, st.Publish(context.Background(), "c4", okPublisher{}))

	summary, err := Summarize(st, 24*time.Hour, time.Now().UTC(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.ByStatus[models.StatusPending])
	assert.Equal(t, 1, summary.ByStatus[models.StatusApproved])
	assert.Equal(t, 1, summary.ByStatus[models.StatusRejected])
	assert.Equal(t, 1, summary.ByStatus[models.StatusPublished])

	assert.Equal(t, 2, summary.ByInfluencer["alice"])
	assert.Equal(t, 2, summary.ByInfluencer["bob"])

	assert.Equal(t, 1, summary.RecentPublishes)
	assert.Zero(t, summary.CorruptRecords)
}

func TestSummarize_CorruptRecordsCountedSeparately(t *testing.T) {
	root := t.TempDir()
	st, err := store.Open(root, zap.NewNop())
	require.NoError(t, err)

	seedComment(t, st, "c1", "alice")
	bad := filepath.Join(root, string(models.StatusPending), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))

	summary, err := Summarize(st, 24*time.Hour, time.Now().UTC(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Total)
	assert.Equal(t, 1, summary.CorruptRecords)
	assert.Equal(t, 1, summary.ByStatus[models.StatusPending])
}

func TestSummarize_OldPublishOutsideWindow(t *testing.T) {
	root := t.TempDir()
	st, err := store.Open(root, zap.NewNop())
	require.NoError(t, err)

	seedComment(t, st, "c1", "alice")
	require.NoError(t, st.Publish(context.Background(), "c1", okPublisher{}))

	// Summarize as if called two days from now.
	future := time.Now().UTC().Add(48 * time.Hour)
	summary, err := Summarize(st, 24*time.Hour, future, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.ByStatus[models.StatusPublished])
	assert.Zero(t, summary.RecentPublishes)
}
