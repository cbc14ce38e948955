package port

import (
	"context"

	identity "shorewatch/internal/pkg/identity/domain"
)

// Directory is the read-only view of the user base needed by messaging:
// resolving recipients and searching for people to talk to.
type Directory interface {
	GetByID(ctx context.Context, userID int64) (*identity.User, error)

	// Exists is a cheap membership probe used before opening conversations.
	Exists(ctx context.Context, userID int64) (bool, error)

	// Search matches the query against usernames and full names,
	// case-insensitively, excluding the caller from the results.
	Search(ctx context.Context, query string, excludeUserID int64, limit int) ([]identity.User, error)
}
