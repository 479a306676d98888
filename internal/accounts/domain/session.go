package domain

import "time"

type Session struct {
	ID                  string
	UserID              string
	TenantID            string
	AccountPortalAccess bool
	PlatformAccess      bool
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// Caller identifies who is making a request. It is resolved once by the
// HTTP layer and passed explicitly to every operation.
type Caller struct {
	UserID              string
	TenantID            string
	SessionID           string
	AccountPortalAccess bool
	PlatformAccess      bool
}
