package cleanup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/models"
	"github.com/dmitrijs2005/filekeeper/internal/tasks"
)

// --- fakes ---

type fakeLedger struct {
	records  []*models.UploadedFile
	countErr error
	findErr  error
}

func (f *fakeLedger) Create(ctx context.Context, file *models.UploadedFile) error { return nil }

func (f *fakeLedger) GetByKey(ctx context.Context, key string) (*models.UploadedFile, error) {
	return nil, common.ErrNotFound
}

func (f *fakeLedger) DeleteByKey(ctx context.Context, key string) (bool, error) {
	for i, r := range f.records {
		if r.FileKey == key {
			f.records = append(f.records[:i], f.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedger) eligible(purpose string, olderThan time.Time) []*models.UploadedFile {
	var out []*models.UploadedFile
	for _, r := range f.records {
		if r.Purpose == purpose && r.CreatedAt.Before(olderThan) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FileKey < out[j].FileKey })
	return out
}

func (f *fakeLedger) FindForCleanup(ctx context.Context, purpose string, olderThan time.Time, skip, limit int) ([]*models.UploadedFile, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	matched := f.eligible(purpose, olderThan)
	if skip >= len(matched) {
		return nil, nil
	}
	matched = matched[skip:]
	if limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeLedger) CountForCleanup(ctx context.Context, purpose string, olderThan time.Time) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.eligible(purpose, olderThan))), nil
}

type enqueued struct {
	name          string
	payload       any
	correlationID string
}

type fakeDispatcher struct {
	calls []enqueued
	err   error
}

func (f *fakeDispatcher) Enqueue(ctx context.Context, name string, payload any, correlationID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.calls = append(f.calls, enqueued{name: name, payload: payload, correlationID: correlationID})
	return "task-id", nil
}

type fakeUsers struct {
	avatarKeys map[string]string // file key -> user id
	err        error
}

func (f *fakeUsers) FindByAvatarKey(ctx context.Context, fileKey string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	if userID, ok := f.avatarKeys[fileKey]; ok {
		return &models.User{ID: userID, AvatarFileKey: fileKey}, nil
	}
	return nil, common.ErrNotFound
}

func (f *fakeUsers) SetAvatarKey(ctx context.Context, userID, fileKey string) error { return nil }
func (f *fakeUsers) ClearAvatarKey(ctx context.Context, userID string) error        { return nil }

type fakeRemover struct {
	deleted []string
	failOn  map[string]error
	goneOn  map[string]bool // keys the backend reports as already absent
}

func (f *fakeRemover) Delete(ctx context.Context, key string) (bool, error) {
	if err, ok := f.failOn[key]; ok {
		return false, err
	}
	if f.goneOn[key] {
		return false, nil
	}
	f.deleted = append(f.deleted, key)
	return true, nil
}

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func staleFile(key, purpose string, age time.Duration) *models.UploadedFile {
	return &models.UploadedFile{
		FileKey:   key,
		Purpose:   purpose,
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

// --- chunk partitioning ---

func TestBuildChunks(t *testing.T) {
	cutoff := time.Now().UTC()

	tests := []struct {
		name      string
		total     int64
		chunkSize int
		wantSkips []int
	}{
		{name: "even split", total: 4, chunkSize: 2, wantSkips: []int{0, 2}},
		{name: "short tail", total: 5, chunkSize: 2, wantSkips: []int{0, 2, 4}},
		{name: "single chunk", total: 1, chunkSize: 1000, wantSkips: []int{0}},
		{name: "nothing eligible", total: 0, chunkSize: 2, wantSkips: nil},
		{name: "invalid chunk size", total: 5, chunkSize: 0, wantSkips: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := BuildChunks("avatar", tt.total, tt.chunkSize, cutoff)
			require.Len(t, chunks, len(tt.wantSkips))
			for i, chunk := range chunks {
				assert.Equal(t, tt.wantSkips[i], chunk.Skip)
				assert.Equal(t, tt.chunkSize, chunk.Limit)
				assert.Equal(t, "avatar", chunk.Category)
				assert.Equal(t, cutoff, chunk.OlderThan)
			}
		})
	}
}

// --- usage policy ---

func TestUsagePolicy_Avatar(t *testing.T) {
	policy := NewUsagePolicy(&fakeUsers{avatarKeys: map[string]string{"k1/a.png": "u1"}})
	checker := policy.ForCategory(models.PurposeAvatar)
	ctx := context.Background()

	inUse, err := checker.InUse(ctx, &models.UploadedFile{FileKey: "k1/a.png"})
	require.NoError(t, err)
	assert.True(t, inUse)

	inUse, err = checker.InUse(ctx, &models.UploadedFile{FileKey: "k2/b.png"})
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestUsagePolicy_AvatarLookupError(t *testing.T) {
	policy := NewUsagePolicy(&fakeUsers{err: errors.New("db down")})
	_, err := policy.ForCategory(models.PurposeAvatar).InUse(context.Background(), &models.UploadedFile{FileKey: "k/a.png"})
	require.Error(t, err)
}

func TestUsagePolicy_DefaultsToUnused(t *testing.T) {
	policy := NewUsagePolicy(&fakeUsers{})
	ctx := context.Background()

	for _, category := range []string{models.PurposeDocument, "", "unknown"} {
		inUse, err := policy.ForCategory(category).InUse(ctx, &models.UploadedFile{FileKey: "k/x"})
		require.NoError(t, err)
		assert.False(t, inUse, "category %q", category)
	}
}

// --- coordinator ---

func TestCoordinator_Run(t *testing.T) {
	ledger := &fakeLedger{records: []*models.UploadedFile{
		staleFile("a1/x", models.PurposeAvatar, 48*time.Hour),
		staleFile("a2/x", models.PurposeAvatar, 48*time.Hour),
		staleFile("a3/x", models.PurposeAvatar, 48*time.Hour),
		staleFile("fresh/x", models.PurposeAvatar, time.Minute),
		staleFile("d1/x", models.PurposeDocument, 48*time.Hour),
		staleFile("u1/x", "", 48*time.Hour),
	}}
	dispatcher := &fakeDispatcher{}
	coord := NewCoordinator(ledger, dispatcher, 2, 6*time.Hour, discardLogger())

	result, err := coord.Run(context.Background())
	require.NoError(t, err)

	// avatars: 3 stale -> chunks skip 0 and 2; document and untyped: 1 each
	assert.Equal(t, int64(5), result.Eligible)
	assert.Equal(t, 4, result.ChunksCreated)
	assert.Equal(t, 4, result.TasksQueued)
	assert.Equal(t, 0, result.Failed)
	require.Len(t, dispatcher.calls, 4)

	correlationID := dispatcher.calls[0].correlationID
	assert.NotEmpty(t, correlationID)
	for _, call := range dispatcher.calls {
		assert.Equal(t, TaskCleanupFiles, call.name)
		assert.Equal(t, correlationID, call.correlationID, "one sweep shares one correlation id")
	}

	first, ok := dispatcher.calls[0].payload.(ChunkDescriptor)
	require.True(t, ok)
	assert.Equal(t, models.PurposeAvatar, first.Category)
	assert.Equal(t, 0, first.Skip)
	assert.Equal(t, 2, first.Limit)

	second := dispatcher.calls[1].payload.(ChunkDescriptor)
	assert.Equal(t, 2, second.Skip)
	assert.Equal(t, first.OlderThan, second.OlderThan, "all chunks share the sweep cutoff")
}

func TestCoordinator_Run_CountFailureSkipsCategory(t *testing.T) {
	ledger := &fakeLedger{countErr: errors.New("db down")}
	dispatcher := &fakeDispatcher{}
	coord := NewCoordinator(ledger, dispatcher, 2, 6*time.Hour, discardLogger())

	result, err := coord.Run(context.Background())
	require.NoError(t, err, "a failing category must not fail the sweep")
	assert.Equal(t, len(Categories), result.Failed)
	assert.Equal(t, 0, result.ChunksCreated)
	assert.Empty(t, dispatcher.calls)
}

func TestCoordinator_Run_EnqueueFailureCounted(t *testing.T) {
	ledger := &fakeLedger{records: []*models.UploadedFile{
		staleFile("a1/x", models.PurposeAvatar, 48*time.Hour),
	}}
	dispatcher := &fakeDispatcher{err: errors.New("broker down")}
	coord := NewCoordinator(ledger, dispatcher, 2, 6*time.Hour, discardLogger())

	result, err := coord.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated, "the descriptor was built even though publishing failed")
	assert.Equal(t, 0, result.TasksQueued)
	assert.Equal(t, 1, result.Failed)
}

// --- worker ---

func TestWorker_Process(t *testing.T) {
	ledger := &fakeLedger{records: []*models.UploadedFile{
		staleFile("a1/x.png", models.PurposeAvatar, 48*time.Hour),
		staleFile("a2/x.png", models.PurposeAvatar, 48*time.Hour),
		staleFile("a3/x.png", models.PurposeAvatar, 48*time.Hour),
	}}
	// a2 is still someone's avatar and must survive
	usage := NewUsagePolicy(&fakeUsers{avatarKeys: map[string]string{"a2/x.png": "u1"}})
	remover := &fakeRemover{}
	worker := NewWorker(ledger, remover, usage, discardLogger())

	stats, err := worker.Process(context.Background(), ChunkDescriptor{
		Category:  models.PurposeAvatar,
		Skip:      0,
		Limit:     10,
		OlderThan: time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Deleted)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Failed)
	assert.ElementsMatch(t, []string{"a1/x.png", "a3/x.png"}, remover.deleted)
}

func TestWorker_Process_FailureIsolation(t *testing.T) {
	ledger := &fakeLedger{records: []*models.UploadedFile{
		staleFile("d1/x", models.PurposeDocument, 48*time.Hour),
		staleFile("d2/x", models.PurposeDocument, 48*time.Hour),
	}}
	usage := NewUsagePolicy(&fakeUsers{})
	remover := &fakeRemover{failOn: map[string]error{"d1/x": errors.New("backend down")}}
	worker := NewWorker(ledger, remover, usage, discardLogger())

	stats, err := worker.Process(context.Background(), ChunkDescriptor{
		Category:  models.PurposeDocument,
		Limit:     10,
		OlderThan: time.Now().UTC(),
	})
	require.NoError(t, err, "a failing file must not abort the chunk")

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Deleted)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, []string{"d2/x"}, remover.deleted)
}

func TestWorker_Process_NoopDeleteCountsAsFailed(t *testing.T) {
	ledger := &fakeLedger{records: []*models.UploadedFile{
		staleFile("d1/x", models.PurposeDocument, 48*time.Hour),
	}}
	usage := NewUsagePolicy(&fakeUsers{})
	// backend reports the object as already gone
	remover := &fakeRemover{goneOn: map[string]bool{"d1/x": true}}
	worker := NewWorker(ledger, remover, usage, discardLogger())

	stats, err := worker.Process(context.Background(), ChunkDescriptor{
		Category:  models.PurposeDocument,
		Limit:     10,
		OlderThan: time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Deleted)
	assert.Equal(t, 1, stats.Failed)
	assert.Empty(t, remover.deleted)
}

func TestWorker_Process_QueryFailure(t *testing.T) {
	ledger := &fakeLedger{findErr: errors.New("db down")}
	worker := NewWorker(ledger, &fakeRemover{}, NewUsagePolicy(&fakeUsers{}), discardLogger())

	_, err := worker.Process(context.Background(), ChunkDescriptor{Limit: 10, OlderThan: time.Now()})
	require.Error(t, err)
}

func TestWorker_HandleTask(t *testing.T) {
	ledger := &fakeLedger{records: []*models.UploadedFile{
		staleFile("u1/x", "", 48*time.Hour),
	}}
	remover := &fakeRemover{}
	worker := NewWorker(ledger, remover, NewUsagePolicy(&fakeUsers{}), discardLogger())

	task, err := tasks.NewTask(TaskCleanupFiles, ChunkDescriptor{
		Category:  "",
		Limit:     10,
		OlderThan: time.Now().UTC(),
	}, "corr-1")
	require.NoError(t, err)

	require.NoError(t, worker.HandleTask(context.Background(), task))
	assert.Equal(t, []string{"u1/x"}, remover.deleted)
}

func TestWorker_HandleTask_BadPayload(t *testing.T) {
	worker := NewWorker(&fakeLedger{}, &fakeRemover{}, NewUsagePolicy(&fakeUsers{}), discardLogger())

	task, err := tasks.NewTask(TaskCleanupFiles, nil, "")
	require.NoError(t, err)
	require.Error(t, worker.HandleTask(context.Background(), task))
}
