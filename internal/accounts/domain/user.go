package domain

import "time"

// UserDocVersion is the current shape of stored user documents.
const UserDocVersion = 2

// DefaultTenantID is used for every user when multi-tenancy is off.
const DefaultTenantID = "default"

const (
	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// Capability is a builder or admin grant. Global grants apply to every app
// in the tenant.
type Capability struct {
	Global bool     `json:"global"`
	Apps   []string `json:"apps,omitempty"`
}

// User is a global user document. Password holds the argon2id hash and is
// cleared by Sanitized before the user leaves the service.
type User struct {
	ID        string            `json:"id"`
	Rev       string            `json:"rev,omitempty"`
	TenantID  string            `json:"tenant_id"`
	Email     string            `json:"email"`
	Password  string            `json:"password,omitempty"`
	FirstName string            `json:"first_name,omitempty"`
	LastName  string            `json:"last_name,omitempty"`
	Roles     map[string]string `json:"roles"`
	Builder   *Capability       `json:"builder,omitempty"`
	Admin     *Capability       `json:"admin,omitempty"`
	Status    string            `json:"status,omitempty"`
	SSOID     string            `json:"sso_id,omitempty"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

func (u User) IsGlobalAdmin() bool   { return u.Admin != nil && u.Admin.Global }
func (u User) IsGlobalBuilder() bool { return u.Builder != nil && u.Builder.Global }

// Sanitized returns a copy safe to hand to callers.
func (u User) Sanitized() User {
	u.Password = ""
	if u.Roles == nil {
		u.Roles = map[string]string{}
	}
	return u
}

// SanitizeUsers strips passwords from every user.
func SanitizeUsers(users []User) []User {
	out := make([]User, len(users))
	for i, u := range users {
		out[i] = u.Sanitized()
	}
	return out
}

// Self is the caller's own profile with the session-only access flags.
type Self struct {
	User
	AccountPortalAccess bool `json:"account_portal_access"`
	PlatformAccess      bool `json:"platform_access"`
}

// PlatformUser is the cross-tenant lookup row used for email uniqueness and
// tenant resolution.
type PlatformUser struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	TenantID string `json:"tenant_id"`
}

type Tenant struct {
	ID        string
	CreatedAt time.Time
}
