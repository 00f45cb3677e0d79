package filekeys

import (
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filekeeper/internal/common"
)

func TestGenerate_WithFilename(t *testing.T) {
	key := Generate("avatar.png")

	re := regexp.MustCompile(`^[^/]+/avatar\.png$`)
	require.Regexp(t, re, key)

	id := strings.SplitN(key, "/", 2)[0]
	_, err := uuid.Parse(id)
	require.NoError(t, err, "id segment must be a uuid")
}

func TestGenerate_StripsDirectoryComponents(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"dir/sub/name.txt", "name.txt"},
		{`c:\temp\name.txt`, "name.txt"},
		{"../../etc/passwd", "passwd"},
	}
	for _, tc := range tests {
		key := Generate(tc.filename)
		assert.Equal(t, tc.want, ExtractFilename(key), "filename %q", tc.filename)
	}
}

func TestGenerate_WithoutFilename(t *testing.T) {
	key := Generate("")
	require.NotContains(t, key, "/")
	_, err := uuid.Parse(key)
	require.NoError(t, err)
}

func TestGenerate_UniquePerCall(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		key := Generate("same.png")
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key generated: %s", key)
		}
		seen[key] = struct{}{}
	}
}

func TestValidate_AcceptsTwoSegmentKeys(t *testing.T) {
	key, err := Validate("abc-123/report.pdf")
	require.NoError(t, err)
	assert.Equal(t, "abc-123/report.pdf", key)
}

func TestValidate_SanitizesTraversalSequences(t *testing.T) {
	key, err := Validate("ab..cd/na..me.txt")
	require.NoError(t, err)
	assert.Equal(t, "abcd/name.txt", key)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []string{
		"",
		"onesegment",
		"a/b/c",
		"a/b/c/d",
		"../x",
		"./x",
		"a/..",
		"a/.",
		"a/",
		"/b",
		"..../x", // sanitizes to empty
	}
	for _, candidate := range tests {
		_, err := Validate(candidate)
		if !errors.Is(err, common.ErrInvalidKey) {
			t.Fatalf("Validate(%q): want ErrInvalidKey, got %v", candidate, err)
		}
	}
}

func TestExtractFilename(t *testing.T) {
	assert.Equal(t, "name.txt", ExtractFilename("uuid/name.txt"))
	assert.Equal(t, "bare-key", ExtractFilename("bare-key"))
	assert.Equal(t, "c", ExtractFilename("a/b/c"))
}
