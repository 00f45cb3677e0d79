// Package models defines server-side data models persisted in the database.
package models

import "time"

// Purpose values a file may be uploaded for. Files without a purpose are
// "untyped": uploaded but never meant to be bound to an entity.
const (
	PurposeAvatar   = "avatar"
	PurposeDocument = "document"
)

// UploadedFile is the ledger record for a successfully stored object.
// A record exists if and only if the bytes were durably committed to the
// storage backend and the ledger write itself succeeded.
//
// Records are immutable after creation except for deletion.
type UploadedFile struct {
	// FileKey is the two-segment storage key ("<uuid>/<basename>").
	// Globally unique; uniqueness comes from the random id component,
	// never from content, so identical payloads get distinct keys.
	FileKey string
	// OwnerID is the user who uploaded the file.
	OwnerID string
	// OriginalFilename is the client-supplied name, directory parts stripped.
	OriginalFilename string
	// ContentType is the MIME type, if the client declared one.
	ContentType string
	// SizeBytes is known only after the full stream has been consumed.
	SizeBytes int64
	// Purpose is advisory metadata set at upload time ("avatar", "document"
	// or empty). The cleanup subsystem reads it but never changes it.
	Purpose string
	// CreatedAt is set by the ledger on insert.
	CreatedAt time.Time
}
