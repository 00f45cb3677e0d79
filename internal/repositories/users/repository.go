// Package users gives the file lifecycle engine its narrow view of the user
// domain: binding, unbinding and looking up avatar file keys.
package users

import (
	"context"

	"github.com/dmitrijs2005/filekeeper/internal/models"
)

type Repository interface {
	// FindByAvatarKey returns the user whose current avatar is fileKey,
	// or common.ErrNotFound if no user references it.
	FindByAvatarKey(ctx context.Context, fileKey string) (*models.User, error)

	// SetAvatarKey binds fileKey as userID's current avatar.
	SetAvatarKey(ctx context.Context, userID, fileKey string) error

	// ClearAvatarKey unbinds userID's avatar, if any.
	ClearAvatarKey(ctx context.Context, userID string) error
}
