package cleanup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/filekeeper/internal/common"
	"github.com/dmitrijs2005/filekeeper/internal/models"
	"github.com/dmitrijs2005/filekeeper/internal/repositories/users"
)

// UsageChecker reports whether a file is still referenced and must be kept.
type UsageChecker interface {
	InUse(ctx context.Context, file *models.UploadedFile) (bool, error)
}

// UsageCheckerFunc adapts a function to the UsageChecker interface.
type UsageCheckerFunc func(ctx context.Context, file *models.UploadedFile) (bool, error)

func (f UsageCheckerFunc) InUse(ctx context.Context, file *models.UploadedFile) (bool, error) {
	return f(ctx, file)
}

// neverUsed treats every file as unreferenced.
var neverUsed = UsageCheckerFunc(func(context.Context, *models.UploadedFile) (bool, error) {
	return false, nil
})

// avatarChecker keeps a file while some user record points at it.
type avatarChecker struct {
	users users.Repository
}

func (c *avatarChecker) InUse(ctx context.Context, file *models.UploadedFile) (bool, error) {
	_, err := c.users.FindByAvatarKey(ctx, file.FileKey)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("check avatar usage of %s: %w", file.FileKey, err)
	}
	return true, nil
}

// UsagePolicy maps each category to its checker. Unknown categories fall
// back to treating files as unreferenced, so they age out.
type UsagePolicy struct {
	checkers map[string]UsageChecker
}

// NewUsagePolicy builds the default policy. Documents have no reference
// table yet, so they expire purely by age, same as untyped files.
func NewUsagePolicy(userRepo users.Repository) *UsagePolicy {
	return &UsagePolicy{
		checkers: map[string]UsageChecker{
			models.PurposeAvatar:   &avatarChecker{users: userRepo},
			models.PurposeDocument: neverUsed,
			"":                     neverUsed,
		},
	}
}

// ForCategory returns the checker for a category.
func (p *UsagePolicy) ForCategory(category string) UsageChecker {
	if c, ok := p.checkers[category]; ok {
		return c
	}
	return neverUsed
}
