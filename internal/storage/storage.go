// Package storage defines the capability interface for byte-level object
// backends and its two implementations: a sandboxed local filesystem store
// and an S3-compatible object store.
package storage

import (
	"context"
	"io"
	"time"
)

// Upload methods returned by PresignedUploadURL. Object-store backends hand
// out provider-signed PUT URLs; the local backend has no notion of presigning
// and instead points at a same-origin POST upload endpoint.
const (
	MethodPut  = "PUT"
	MethodPost = "POST"
)

// FileStorage stores and retrieves binary objects by their two-segment key.
//
// Implementations must not trust an already-validated key blindly: keys are
// re-sanitized when resolved to backend paths.
type FileStorage interface {
	// Store writes data under key and returns the key.
	Store(ctx context.Context, key string, data []byte, contentType string) (string, error)

	// StoreStream consumes r to completion, writing under key, and returns
	// the key. It must not buffer the whole payload in memory.
	StoreStream(ctx context.Context, key string, r io.Reader, contentType string) (string, error)

	// Retrieve returns the object bytes, or common.ErrNotFound if absent.
	Retrieve(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object. It reports false (and no error) when the
	// key is absent, so re-deleting an already-gone object is harmless.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// URL returns a URL or path under which the object can be read.
	URL(key string) string

	// PresignedUploadURL returns a URL a client can upload to directly,
	// along with the HTTP method to use (MethodPut or MethodPost).
	PresignedUploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, string, error)
}
