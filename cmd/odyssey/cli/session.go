package cli

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/users"
)

// SessionIssuer creates API sessions for a user.
type SessionIssuer interface {
	Issue(ctx context.Context, userID int64) (string, error)
}

// UserLookup loads the user a token is requested for.
type UserLookup interface {
	GetUser(ctx context.Context, id int64) (users.User, error)
}

// ErrInactiveUser is returned when tokens are requested for a disabled or
// unknown user.
var ErrInactiveUser = errors.New("session cli: user is missing or inactive")

// IssueToken mints a bearer token for service accounts and local testing.
// Interactive login lives outside this service.
func IssueToken(ctx context.Context, lookup UserLookup, sessions SessionIssuer, userID int64) (string, error) {
	if userID <= 0 {
		return "", errors.New("session cli: --user must be positive")
	}
	u, err := lookup.GetUser(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) || (err == nil && !u.IsActive) {
		return "", ErrInactiveUser
	}
	if err != nil {
		return "", err
	}
	return sessions.Issue(ctx, userID)
}
