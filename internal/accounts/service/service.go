// Package service holds the account lifecycle operations. Every operation
// takes an explicit domain.Caller and talks to side-effecting collaborators
// through the interfaces below.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
)

// UserCache is a read-through cache of sanitized users.
type UserCache interface {
	Get(ctx context.Context, tenantID, userID string) (domain.User, error)
	Invalidate(ctx context.Context, tenantID, userID string) error
}

// SessionManager revokes login sessions.
type SessionManager interface {
	InvalidateAll(ctx context.Context, userID string) error
	LogoutAllExcept(ctx context.Context, userID, keepSessionID string) error
}

// Mailer dispatches templated emails.
type Mailer interface {
	SendInvite(ctx context.Context, email domain.InviteEmail) error
}

// AccountPortal looks up billing account holders on hosted deployments.
type AccountPortal interface {
	AccountHolder(ctx context.Context, email string) (domain.AccountHolder, bool, error)
}

// AppSync tells application servers to refresh their view of a user.
type AppSync interface {
	UserChanged(ctx context.Context, tenantID, userID string) error
}

// Deployment describes how this installation is run.
type Deployment struct {
	// SelfHosted installations have no usage quotas and no account portal.
	SelfHosted bool

	// MultiTenancy lets InitAdmin create tenants other than the default.
	MultiTenancy bool
}

// ErrInvalidRequest wraps request bodies that fail basic checks outside of
// struct validation.
var ErrInvalidRequest = errors.New("invalid request")

// notifyAppSync is an ignorable side effect, a failure is logged and the
// operation carries on.
func notifyAppSync(ctx context.Context, sync AppSync, tenantID, userID string) {
	if sync == nil {
		return
	}
	if err := sync.UserChanged(ctx, tenantID, userID); err != nil {
		slogx.FromContext(ctx).Warn("app sync notify failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}

// resolvePassword turns a client supplied password into the stored form.
// Values that are already argon2id hashes are kept as they are.
func resolvePassword(pw string) (string, error) {
	if pw == "" || cryptox.IsPasswordHash(pw) {
		return pw, nil
	}
	return cryptox.HashPassword(pw)
}
