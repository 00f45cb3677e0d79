package files

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/dbx"
	"github.com/dmitrijs2005/filekeeper/internal/models"
)

// PostgresRepository implements the ledger over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a ledger record. created_at is assigned by the database and
// written back into file. Empty content type / purpose are stored as NULL.
func (r *PostgresRepository) Create(ctx context.Context, file *models.UploadedFile) error {
	query := `
		INSERT INTO uploaded_files (file_key, owner_id, original_filename, content_type, size_bytes, purpose)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''))
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		file.FileKey, file.OwnerID, file.OriginalFilename, file.ContentType, file.SizeBytes, file.Purpose).
		Scan(&file.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByKey(ctx context.Context, fileKey string) (*models.UploadedFile, error) {
	query := `
		SELECT file_key, owner_id, original_filename, COALESCE(content_type, ''), size_bytes, COALESCE(purpose, ''), created_at
		FROM uploaded_files
		WHERE file_key = $1
	`
	file := &models.UploadedFile{}
	err := r.db.QueryRowContext(ctx, query, fileKey).Scan(
		&file.FileKey, &file.OwnerID, &file.OriginalFilename, &file.ContentType,
		&file.SizeBytes, &file.Purpose, &file.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return file, nil
}

// DeleteByKey removes the record and reports whether a row existed.
func (r *PostgresRepository) DeleteByKey(ctx context.Context, fileKey string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM uploaded_files WHERE file_key = $1`, fileKey)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}

// cleanupPredicate returns the WHERE clause selecting cleanup candidates of
// one category. Both the coordinator (count) and the workers (find) go
// through it so they always agree on the filter.
func cleanupPredicate(purpose string) (string, bool) {
	if purpose == "" {
		return "purpose IS NULL AND created_at < $1", false
	}
	return "purpose = $1 AND created_at < $2", true
}

func (r *PostgresRepository) FindForCleanup(ctx context.Context, purpose string, olderThan time.Time, skip, limit int) ([]*models.UploadedFile, error) {
	predicate, withPurpose := cleanupPredicate(purpose)

	args := []any{olderThan}
	next := 2
	if withPurpose {
		args = []any{purpose, olderThan}
		next = 3
	}

	query := fmt.Sprintf(`
		SELECT file_key, owner_id, original_filename, COALESCE(content_type, ''), size_bytes, COALESCE(purpose, ''), created_at
		FROM uploaded_files
		WHERE %s
		ORDER BY created_at, file_key
		OFFSET $%d LIMIT $%d
	`, predicate, next, next+1)
	args = append(args, skip, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.UploadedFile
	for rows.Next() {
		file := &models.UploadedFile{}
		if err := rows.Scan(
			&file.FileKey, &file.OwnerID, &file.OriginalFilename, &file.ContentType,
			&file.SizeBytes, &file.Purpose, &file.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, file)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PostgresRepository) CountForCleanup(ctx context.Context, purpose string, olderThan time.Time) (int64, error) {
	predicate, withPurpose := cleanupPredicate(purpose)

	args := []any{olderThan}
	if withPurpose {
		args = []any{purpose, olderThan}
	}

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM uploaded_files WHERE %s`, predicate)
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return count, nil
}
