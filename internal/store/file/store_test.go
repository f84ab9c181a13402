package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielolaszy/issuebot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleActive() *models.ActiveRequest {
	requested := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return &models.ActiveRequest{
		RepoOwner:   "acme",
		RepoName:    "widgets",
		IssueNumber: 42,
		IssueURL:    "https://github.com/acme/widgets/issues/42",
		RequestedAt: requested,
		ExpiresAt:   requested.Add(24 * time.Hour),
	}
}

func TestStoreEmptyDirectoryLoadsEmptyState(t *testing.T) {
	t.Parallel()

	store, err := NewStore(filepath.Join(t.TempDir(), "nested", "state"))
	require.NoError(t, err)

	active, err := store.LoadActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)

	processed, err := store.LoadProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, processed.Len())
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	want := sampleActive()
	require.NoError(t, store.SaveActive(context.Background(), want))
	require.NoError(t, store.SaveProcessed(context.Background(), models.NewProcessedSet(3, 1, 2)))

	got, err := store.LoadActive(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, *want, *got)

	processed, err := store.LoadProcessed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, processed.Sorted())
}

func TestStoreSaveActiveNilClears(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.SaveActive(context.Background(), sampleActive()))
	require.NoError(t, store.SaveActive(context.Background(), nil))
	require.NoError(t, store.SaveActive(context.Background(), nil))

	_, err = os.Stat(filepath.Join(dir, ActiveFileName))
	assert.True(t, os.IsNotExist(err))

	active, err := store.LoadActive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)
}

func TestStoreCommitWritesBothDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Commit(context.Background(), sampleActive(), models.NewProcessedSet(4200)))

	raw, err := os.ReadFile(filepath.Join(dir, ProcessedFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `[4200]`, string(raw))

	raw, err = os.ReadFile(filepath.Join(dir, ActiveFileName))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"repo_owner": "acme",
		"repo_name": "widgets",
		"issue_number": 42,
		"issue_url": "https://github.com/acme/widgets/issues/42",
		"requested_at": "2025-06-01T09:00:00Z",
		"timeout": "2025-06-02T09:00:00Z"
	}`, string(raw))

	info, err := os.Stat(filepath.Join(dir, ActiveFileName))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(stateFileMode), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestStoreReadsExistingDocuments(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProcessedFileName), []byte("[7, 9]"), 0o600))

	store, err := NewStore(dir)
	require.NoError(t, err)

	processed, err := store.LoadProcessed(context.Background())
	require.NoError(t, err)
	assert.True(t, processed.Contains(7))
	assert.True(t, processed.Contains(9))
}

func TestStoreCorruptDocumentIsAnError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ActiveFileName), []byte("{not json"), 0o600))

	store, err := NewStore(dir)
	require.NoError(t, err)

	_, err = store.LoadActive(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode")
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	t.Parallel()

	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Commit(ctx, sampleActive(), models.NewProcessedSet(1)), context.Canceled)
}
