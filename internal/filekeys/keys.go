// Package filekeys generates and validates storage keys.
//
// Keys are deliberately flat: exactly two '/'-delimited segments,
// "<uuid>/<basename>". The random id component guarantees uniqueness, so two
// uploads of identical bytes always get distinct keys.
package filekeys

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

// Generate produces a fresh storage key. With a filename the result is
// "<uuid>/<basename>"; directory components of the caller-supplied name are
// stripped. Without a filename a bare uuid is returned.
func Generate(originalFilename string) string {
	id := uuid.NewString()

	name := Basename(originalFilename)
	if name == "" {
		return id
	}
	return id + "/" + name
}

// Basename returns the final path segment of a caller-supplied filename,
// treating both '/' and '\' as separators.
func Basename(filename string) string {
	if i := strings.LastIndexAny(filename, `/\`); i >= 0 {
		filename = filename[i+1:]
	}
	return filename
}

// Validate accepts only keys with exactly two '/'-delimited segments and
// returns the sanitized key. Each segment has "..", "/" and "\" sequences
// removed; a segment that becomes empty, "." or ".." is rejected. Nested
// prefixes and path traversal are rejected by construction.
func Validate(candidate string) (string, error) {
	if candidate == "" {
		return "", fmt.Errorf("%w: key is empty", common.ErrInvalidKey)
	}

	parts := strings.Split(candidate, "/")
	if len(parts) != 2 {
		return "", fmt.Errorf("%w: expected 2 segments, got %d", common.ErrInvalidKey, len(parts))
	}

	safe := make([]string, 0, len(parts))
	for _, part := range parts {
		sanitized := SanitizeSegment(part)
		if sanitized == "" || sanitized == "." || sanitized == ".." {
			return "", fmt.Errorf("%w: invalid segment %q", common.ErrInvalidKey, part)
		}
		safe = append(safe, sanitized)
	}

	return strings.Join(safe, "/"), nil
}

// SanitizeSegment strips path traversal sequences and separators from a
// single key segment. Storage backends apply it again when resolving keys
// to paths, so a backend never trusts an already-validated key blindly.
func SanitizeSegment(part string) string {
	part = strings.ReplaceAll(part, "..", "")
	part = strings.ReplaceAll(part, "/", "")
	part = strings.ReplaceAll(part, `\`, "")
	return part
}

// ExtractFilename returns the last segment of a key with two or more
// segments, or the whole key otherwise.
func ExtractFilename(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) >= 2 {
		return parts[len(parts)-1]
	}
	return key
}
