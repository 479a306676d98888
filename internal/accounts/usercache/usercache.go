// Package usercache keeps sanitized user documents close to the service so
// profile reads do not hit the document store on every request.
package usercache

import (
	"context"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

// DefaultTTL bounds how stale a cached user may get when an invalidation is
// missed.
const DefaultTTL = 5 * time.Minute

// Loader reads a user from the source of truth on a cache miss.
type Loader func(ctx context.Context, tenantID, userID string) (domain.User, error)

func key(tenantID, userID string) string {
	return "accounts:user:" + tenantID + ":" + userID
}
