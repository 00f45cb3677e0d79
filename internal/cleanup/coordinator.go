package cleanup

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/tasks"
)

// Coordinator plans one cleanup sweep: it counts eligible files per
// category and enqueues a task per chunk. It never deletes anything itself.
type Coordinator struct {
	ledger     files.Repository
	dispatcher tasks.Dispatcher
	chunkSize  int
	maxAge     time.Duration
	logger     logging.Logger
}

// Result summarizes one sweep. TasksQueued can trail ChunksCreated when
// enqueueing fails for some descriptors.
type Result struct {
	Eligible      int64
	ChunksCreated int
	TasksQueued   int
	Failed        int
}

func NewCoordinator(ledger files.Repository, dispatcher tasks.Dispatcher, chunkSize int, maxAge time.Duration, logger logging.Logger) *Coordinator {
	return &Coordinator{
		ledger:     ledger,
		dispatcher: dispatcher,
		chunkSize:  chunkSize,
		maxAge:     maxAge,
		logger:     logger,
	}
}

// Run performs one sweep over every category. A failing category is logged
// and skipped so the remaining categories are still swept. All tasks of one
// sweep share a correlation id.
func (c *Coordinator) Run(ctx context.Context) (*Result, error) {
	correlationID := uuid.NewString()
	cutoff := time.Now().UTC().Add(-c.maxAge)
	result := &Result{}

	c.logger.Info(ctx, "cleanup sweep started",
		"correlation_id", correlationID, "cutoff", cutoff, "chunk_size", c.chunkSize)

	for _, category := range Categories {
		total, err := c.ledger.CountForCleanup(ctx, category, cutoff)
		if err != nil {
			result.Failed++
			c.logger.Error(ctx, "counting eligible files failed",
				"correlation_id", correlationID, "category", category, "error", err)
			continue
		}
		result.Eligible += total

		chunks := BuildChunks(category, total, c.chunkSize, cutoff)
		result.ChunksCreated += len(chunks)

		for _, chunk := range chunks {
			if _, err := c.dispatcher.Enqueue(ctx, TaskCleanupFiles, chunk, correlationID); err != nil {
				result.Failed++
				c.logger.Error(ctx, "enqueueing cleanup chunk failed",
					"correlation_id", correlationID, "category", category,
					"skip", chunk.Skip, "error", err)
				continue
			}
			result.TasksQueued++
		}
	}

	c.logger.Info(ctx, "cleanup sweep planned",
		"correlation_id", correlationID, "eligible", result.Eligible,
		"chunks_created", result.ChunksCreated, "tasks_queued", result.TasksQueued,
		"failed", result.Failed)
	return result, nil
}

// RunEvery repeats Run on a fixed interval until ctx is cancelled. The first
// sweep happens after one full interval.
func (c *Coordinator) RunEvery(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Run(ctx); err != nil {
				c.logger.Error(ctx, "cleanup sweep failed", "error", err)
			}
		}
	}
}
