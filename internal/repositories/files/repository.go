// Package files persists the uploaded-file ledger: one record per object
// durably committed to the storage backend.
package files

import (
	"context"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/models"
)

// Repository is the metadata ledger consumed by the ingestor and the cleanup
// pipeline. Records are immutable after creation except for deletion.
//
// The purpose argument of the cleanup queries selects a category: a concrete
// value ("avatar", "document") matches records with that purpose, the empty
// string matches untyped records (purpose absent).
type Repository interface {
	Create(ctx context.Context, file *models.UploadedFile) error
	GetByKey(ctx context.Context, fileKey string) (*models.UploadedFile, error)
	DeleteByKey(ctx context.Context, fileKey string) (bool, error)
	FindForCleanup(ctx context.Context, purpose string, olderThan time.Time, skip, limit int) ([]*models.UploadedFile, error)
	CountForCleanup(ctx context.Context, purpose string, olderThan time.Time) (int64, error)
}
