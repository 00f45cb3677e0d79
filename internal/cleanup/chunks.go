// Package cleanup removes stale uploaded files. A coordinator counts the
// eligible files per category, splits them into fixed-size chunks and
// enqueues one task per chunk; workers re-query each chunk and delete the
// files no longer in use.
package cleanup

import (
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/models"
)

// TaskCleanupFiles is the task name chunk descriptors are enqueued under.
const TaskCleanupFiles = "cleanup_files"

// Categories lists every file category the pipeline sweeps. The empty
// category covers files stored without a purpose.
var Categories = []string{models.PurposeAvatar, models.PurposeDocument, ""}

// ChunkDescriptor identifies one slice of the eligible files of a category.
// OlderThan is fixed at coordination time so the worker applies the same
// cutoff the chunk was counted with.
type ChunkDescriptor struct {
	Category  string    `json:"category"`
	Skip      int       `json:"skip"`
	Limit     int       `json:"limit"`
	OlderThan time.Time `json:"older_than"`
}

// BuildChunks partitions total eligible files into descriptors of at most
// chunkSize files each. The final chunk may be short.
func BuildChunks(category string, total int64, chunkSize int, olderThan time.Time) []ChunkDescriptor {
	if total <= 0 || chunkSize <= 0 {
		return nil
	}
	chunks := make([]ChunkDescriptor, 0, (total+int64(chunkSize)-1)/int64(chunkSize))
	for skip := int64(0); skip < total; skip += int64(chunkSize) {
		chunks = append(chunks, ChunkDescriptor{
			Category:  category,
			Skip:      int(skip),
			Limit:     chunkSize,
			OlderThan: olderThan,
		})
	}
	return chunks
}
