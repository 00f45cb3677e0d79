package cleanup

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/tasks"
)

// remover deletes a stored file, bytes first and ledger record after.
type remover interface {
	Delete(ctx context.Context, key string) (bool, error)
}

// Worker executes one cleanup chunk at a time. It re-queries the chunk's
// filter at execution time, so files referenced or re-uploaded since the
// sweep was planned are seen in their current state.
type Worker struct {
	ledger files.Repository
	filesv remover
	usage  *UsagePolicy
	logger logging.Logger
}

// Stats summarizes one processed chunk.
type Stats struct {
	Processed int
	Deleted   int
	Skipped   int
	Failed    int
}

func NewWorker(ledger files.Repository, filesv remover, usage *UsagePolicy, logger logging.Logger) *Worker {
	return &Worker{ledger: ledger, filesv: filesv, usage: usage, logger: logger}
}

// Process deletes the unreferenced files of one chunk. A failure on one
// file is logged and counted, the rest of the chunk still runs.
func (w *Worker) Process(ctx context.Context, chunk ChunkDescriptor) (*Stats, error) {
	candidates, err := w.ledger.FindForCleanup(ctx, chunk.Category, chunk.OlderThan, chunk.Skip, chunk.Limit)
	if err != nil {
		return nil, fmt.Errorf("load cleanup chunk (category %q, skip %d): %w", chunk.Category, chunk.Skip, err)
	}

	checker := w.usage.ForCategory(chunk.Category)
	stats := &Stats{}

	for _, file := range candidates {
		stats.Processed++

		inUse, err := checker.InUse(ctx, file)
		if err != nil {
			stats.Failed++
			w.logger.Error(ctx, "usage check failed", "key", file.FileKey, "error", err)
			continue
		}
		if inUse {
			stats.Skipped++
			continue
		}

		deleted, err := w.filesv.Delete(ctx, file.FileKey)
		if err != nil {
			stats.Failed++
			w.logger.Error(ctx, "cleanup delete failed", "key", file.FileKey, "error", err)
			continue
		}
		if !deleted {
			stats.Failed++
			w.logger.Warn(ctx, "cleanup delete removed nothing", "key", file.FileKey)
			continue
		}
		stats.Deleted++
	}

	return stats, nil
}

// HandleTask adapts Process to the task consumer.
func (w *Worker) HandleTask(ctx context.Context, task *tasks.Task) error {
	var chunk ChunkDescriptor
	if err := task.DecodePayload(&chunk); err != nil {
		return err
	}

	stats, err := w.Process(ctx, chunk)
	if err != nil {
		return err
	}

	w.logger.Info(ctx, "cleanup chunk processed",
		"correlation_id", task.CorrelationID, "category", chunk.Category,
		"skip", chunk.Skip, "processed", stats.Processed, "deleted", stats.Deleted,
		"skipped", stats.Skipped, "failed", stats.Failed)
	return nil
}
