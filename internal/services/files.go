// Package services contains the file lifecycle engine's orchestration layer.
// FileService is the streaming ingestor: it assigns keys, streams payloads
// into the storage backend under a size ceiling, records ledger entries and
// compensates on partial failure so callers never observe a half-committed
// object.
package services

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/filekeys"
	"github.com/dmitrijs2005/filekeeper/internal/logging"
	"github.com/dmitrijs2005/filekeeper/internal/models"
	"github.com/dmitrijs2005/filekeeper/internal/repositories/files"
	"github.com/dmitrijs2005/filekeeper/internal/storage"
)

// readChunkSize is the fixed increment the ingestor consumes streams in.
// The size ceiling is checked on every increment, so at most one increment
// of extra bytes is persisted before rollback.
const readChunkSize = 8 * 1024

// StoreOptions carries the per-upload parameters of the ingestor.
type StoreOptions struct {
	ContentType      string
	OriginalFilename string
	// CustomKey, when set, is validated and used instead of a generated key.
	CustomKey string
	// OwnerID, when set, makes the ingestor create a ledger record; ledger
	// failure then rolls the stored bytes back.
	OwnerID string
	// Purpose is advisory category metadata ("avatar", "document" or empty).
	Purpose string
	// MaxSizeBytes caps the stream; zero means no ceiling.
	MaxSizeBytes int64
}

// UploadURLInfo is the presigned-upload contract handed to clients.
type UploadURLInfo struct {
	Key              string `json:"file_key"`
	UploadURL        string `json:"upload_url"`
	Method           string `json:"method"`
	ExpiresInSeconds int    `json:"expires_in,omitempty"`
}

type FileService struct {
	storage storage.FileStorage
	ledger  files.Repository
	logger  logging.Logger
}

// NewFileService builds the ingestor. ledger may be nil for callers that
// only need raw byte storage without ownership tracking.
func NewFileService(st storage.FileStorage, ledger files.Repository, logger logging.Logger) *FileService {
	return &FileService{storage: st, ledger: ledger, logger: logger}
}

// resolveKey validates the custom key if one was supplied, else generates a
// fresh one. It also returns the filename recorded in the ledger.
func (s *FileService) resolveKey(opts StoreOptions) (string, string, error) {
	if opts.CustomKey != "" {
		key, err := filekeys.Validate(opts.CustomKey)
		if err != nil {
			return "", "", err
		}
		return key, filekeys.ExtractFilename(key), nil
	}

	key := filekeys.Generate(opts.OriginalFilename)
	name := opts.OriginalFilename
	if name == "" {
		name = filekeys.ExtractFilename(key)
	} else {
		name = filekeys.Basename(name)
	}
	return key, name, nil
}

// meteredReader feeds the backend in fixed-size increments, accumulating the
// byte count and failing with SizeExceededError as soon as the running total
// passes the ceiling.
type meteredReader struct {
	r     io.Reader
	limit int64
	total int64
}

func (m *meteredReader) Read(p []byte) (int, error) {
	if len(p) > readChunkSize {
		p = p[:readChunkSize]
	}
	n, err := m.r.Read(p)
	m.total += int64(n)
	if m.limit > 0 && m.total > m.limit {
		return n, &common.SizeExceededError{Limit: m.limit}
	}
	return n, err
}

// StoreStream ingests a payload from r and returns the storage key and the
// total size. On any failure after bytes were written, the partial object is
// deleted before the error is surfaced: the caller may assume the key does
// not exist afterwards.
func (s *FileService) StoreStream(ctx context.Context, r io.Reader, opts StoreOptions) (string, int64, error) {
	key, originalName, err := s.resolveKey(opts)
	if err != nil {
		return "", 0, err
	}

	metered := &meteredReader{r: r, limit: opts.MaxSizeBytes}

	storedKey, err := s.storage.StoreStream(ctx, key, metered, opts.ContentType)
	if err != nil {
		s.rollback(ctx, key)
		if common.IsSizeExceeded(err) {
			s.logger.Warn(ctx, "upload aborted, size ceiling exceeded",
				"key", key, "limit", opts.MaxSizeBytes)
			return "", 0, err
		}
		return "", 0, fmt.Errorf("store stream %s: %w", key, err)
	}

	if opts.OwnerID != "" && s.ledger != nil {
		record := &models.UploadedFile{
			FileKey:          storedKey,
			OwnerID:          opts.OwnerID,
			OriginalFilename: originalName,
			ContentType:      opts.ContentType,
			SizeBytes:        metered.total,
			Purpose:          opts.Purpose,
		}
		if err := s.ledger.Create(ctx, record); err != nil {
			// Never leave orphaned bytes without a ledger trace when the
			// caller expected ownership tracking.
			s.rollback(ctx, storedKey)
			return "", 0, fmt.Errorf("%w: %w", common.ErrRecordPersistence, err)
		}
	}

	s.logger.Info(ctx, "file stored from stream",
		"key", storedKey, "size", metered.total, "content_type", opts.ContentType)
	return storedKey, metered.total, nil
}

// Store ingests an in-memory payload with the same key, ledger and rollback
// semantics as StoreStream.
func (s *FileService) Store(ctx context.Context, data []byte, opts StoreOptions) (string, error) {
	if len(data) == 0 {
		return "", common.ErrEmptyPayload
	}
	if opts.MaxSizeBytes > 0 && int64(len(data)) > opts.MaxSizeBytes {
		return "", &common.SizeExceededError{Limit: opts.MaxSizeBytes}
	}

	key, originalName, err := s.resolveKey(opts)
	if err != nil {
		return "", err
	}

	storedKey, err := s.storage.Store(ctx, key, data, opts.ContentType)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}

	if opts.OwnerID != "" && s.ledger != nil {
		record := &models.UploadedFile{
			FileKey:          storedKey,
			OwnerID:          opts.OwnerID,
			OriginalFilename: originalName,
			ContentType:      opts.ContentType,
			SizeBytes:        int64(len(data)),
			Purpose:          opts.Purpose,
		}
		if err := s.ledger.Create(ctx, record); err != nil {
			s.rollback(ctx, storedKey)
			return "", fmt.Errorf("%w: %w", common.ErrRecordPersistence, err)
		}
	}

	s.logger.Info(ctx, "file stored", "key", storedKey, "size", len(data))
	return storedKey, nil
}

// rollback erases whatever the failed ingestion left behind. Backends clean
// up their own partial writes too, so a missing object here is fine.
func (s *FileService) rollback(ctx context.Context, key string) {
	if _, err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Error(ctx, "rollback delete failed", "key", key, "error", err)
	}
}

// Retrieve returns the object bytes, or common.ErrNotFound.
func (s *FileService) Retrieve(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is empty", common.ErrInvalidKey)
	}
	return s.storage.Retrieve(ctx, key)
}

// Delete removes the object from the backend and then the ledger record.
// Deleting the record is best-effort: with the bytes already gone the
// primary goal, reclaiming space, has succeeded, so a ledger failure is
// logged rather than surfaced.
func (s *FileService) Delete(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key is empty", common.ErrInvalidKey)
	}

	deleted, err := s.storage.Delete(ctx, key)
	if err != nil {
		return false, err
	}

	if deleted && s.ledger != nil {
		if _, err := s.ledger.DeleteByKey(ctx, key); err != nil {
			s.logger.Warn(ctx, "failed to delete ledger record", "key", key, "error", err)
		}
	}

	if deleted {
		s.logger.Info(ctx, "file deleted", "key", key)
	}
	return deleted, nil
}

func (s *FileService) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: key is empty", common.ErrInvalidKey)
	}
	return s.storage.Exists(ctx, key)
}

func (s *FileService) FileURL(key string) string {
	return s.storage.URL(key)
}

// GetByKey returns the ledger record for a key, or common.ErrNotFound.
func (s *FileService) GetByKey(ctx context.Context, key string) (*models.UploadedFile, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: key is empty", common.ErrInvalidKey)
	}
	if s.ledger == nil {
		return nil, common.ErrNotFound
	}
	return s.ledger.GetByKey(ctx, key)
}

// GenerateUploadURL reserves a key for filename and returns where and how
// the client should upload directly: a provider-signed PUT URL for object
// stores, a same-origin POST endpoint for local storage.
func (s *FileService) GenerateUploadURL(ctx context.Context, filename, contentType string, expiresIn time.Duration) (*UploadURLInfo, error) {
	if filename == "" {
		return nil, common.ErrFilenameRequired
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := filekeys.Generate(filename)
	uploadURL, method, err := s.storage.PresignedUploadURL(ctx, key, contentType, expiresIn)
	if err != nil {
		return nil, err
	}

	info := &UploadURLInfo{Key: key, UploadURL: uploadURL, Method: method}
	if method == storage.MethodPut {
		info.ExpiresInSeconds = int(expiresIn.Seconds())
	}
	return info, nil
}
