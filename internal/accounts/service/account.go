package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/otelx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/aussiebroadwan/accounts/pkg/validx"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// Errors returned by AccountService. The HTTP layer maps each to a status,
// most of them to 400.
var (
	ErrTenantExists        = errors.New("tenant exists")
	ErrAlreadyInitialized  = errors.New("already initialized")
	ErrUseAccountPortal    = errors.New("use account portal")
	ErrCannotDeleteHolder  = errors.New("cannot delete holder")
	ErrTenantUserNotFound  = errors.New("not found")
	ErrPasswordRequired    = errors.New("password required")
	ErrInvalidPasswordHash = errors.New("hashed password is not a supported hash")
)

// Limits written into a fresh usage quota.
const (
	DefaultUserLimit = 5
	DefaultAppLimit  = 10
)

// invalidationConcurrency bounds the cache invalidations run at once by
// RemoveAppRole.
const invalidationConcurrency = 8

// AccountService owns the global user documents of a tenant: admin setup,
// create and update by admins, deletion, app role removal and self-service.
// Every write that changes a user invalidates its cache entry before
// returning.
type AccountService struct {
	Store      store.Store
	Cache      UserCache
	Sessions   SessionManager
	Portal     AccountPortal // nil when the account portal is disabled
	Sync       AppSync
	Deployment Deployment
}

// SaveUserRequest is the body of a create or update. A request without ID
// creates a user.
type SaveUserRequest struct {
	ID        string             `json:"id"`
	Rev       string             `json:"rev"`
	Email     string             `json:"email" validate:"required,email,max=254"`
	Password  string             `json:"password" validate:"omitempty,max=512"`
	FirstName string             `json:"first_name" validate:"max=255"`
	LastName  string             `json:"last_name" validate:"max=255"`
	Roles     map[string]string  `json:"roles" validate:"omitempty,dive,keys,required,endkeys,required"`
	Builder   *domain.Capability `json:"builder"`
	Admin     *domain.Capability `json:"admin"`
	Status    string             `json:"status" validate:"omitempty,oneof=active inactive"`
	SSOID     string             `json:"sso_id"`
}

// SaveUserResponse identifies the revision that was written.
type SaveUserResponse struct {
	ID    string `json:"id"`
	Rev   string `json:"rev"`
	Email string `json:"email"`
}

// SaveUser creates or updates a user in the caller's tenant.
func (s *AccountService) SaveUser(ctx context.Context, caller domain.Caller, req SaveUserRequest) (SaveUserResponse, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate the body.
	req.Email = normalizeEmail(req.Email)
	if err := validx.Check(req); err != nil {
		return SaveUserResponse{}, err
	}

	password, err := resolvePassword(req.Password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return SaveUserResponse{}, err
	}

	// 2. Persist the document and its platform row together.
	var saved domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		var u domain.User
		if req.ID == "" {
			u = domain.User{
				ID:       idx.NewPrefixed(idx.PrefixUser).String(),
				TenantID: caller.TenantID,
				Status:   domain.UserStatusActive,
			}
		} else {
			existing, err := tx.Users().Get(ctx, caller.TenantID, req.ID)
			if err != nil {
				return err
			}
			if req.Rev != "" && req.Rev != existing.Rev {
				return store.ErrConflict
			}
			u = existing
		}

		u.Email = req.Email
		u.FirstName = req.FirstName
		u.LastName = req.LastName
		u.Roles = req.Roles
		u.Builder = req.Builder
		u.Admin = req.Admin
		u.SSOID = req.SSOID
		if req.Status != "" {
			u.Status = req.Status
		}
		if password != "" {
			u.Password = password
		}

		if u.Rev == "" {
			saved, err = tx.Users().Create(ctx, u)
		} else {
			saved, err = tx.Users().Update(ctx, u)
		}
		if err != nil {
			return err
		}

		return tx.Platform().Upsert(ctx, domain.PlatformUser{
			UserID:   saved.ID,
			Email:    saved.Email,
			TenantID: saved.TenantID,
		})
	})
	if err != nil {
		log.Warn("failed to save user",
			slog.String("user_id", req.ID),
			slog.Any("error", err),
		)
		return SaveUserResponse{}, err
	}

	// 3. Drop the stale cache entry.
	if err := s.Cache.Invalidate(ctx, saved.TenantID, saved.ID); err != nil {
		log.Error("failed to invalidate user cache", slog.String("user_id", saved.ID), slog.Any("error", err))
		return SaveUserResponse{}, fmt.Errorf("invalidate user cache: %w", err)
	}

	// 4. Tell the app servers.
	notifyAppSync(ctx, s.Sync, saved.TenantID, saved.ID)

	log.Info("user saved", slog.String("user_id", saved.ID))
	return SaveUserResponse{ID: saved.ID, Rev: saved.Rev, Email: saved.Email}, nil
}

// InitAdminRequest describes the first admin of a tenant. Password is taken
// as an existing hash when HashedPassword is set. PasswordNotRequired allows
// an SSO-only admin with no password.
type InitAdminRequest struct {
	Email               string `json:"email" validate:"required,email,max=254"`
	Password            string `json:"password" validate:"max=512"`
	TenantID            string `json:"tenant_id" validate:"omitempty,max=64"`
	HashedPassword      bool   `json:"hashed_password"`
	PasswordNotRequired bool   `json:"password_not_required"`
	SSOID               string `json:"sso_id"`
}

// InitAdmin creates the first global admin of a tenant.
func (s *AccountService) InitAdmin(ctx context.Context, req InitAdminRequest) (domain.User, error) {
	log := slogx.FromContext(ctx)
	ctx, span := otelx.AddSpan(ctx, "accounts.init_admin")
	defer span.End()

	// 1. Validate the request.
	req.Email = normalizeEmail(req.Email)
	if err := validx.Check(req); err != nil {
		return domain.User{}, err
	}

	tenantID := domain.DefaultTenantID
	if s.Deployment.MultiTenancy && req.TenantID != "" {
		tenantID = req.TenantID
	}
	span.SetAttributes(attribute.String("tenant_id", tenantID))

	password := req.Password
	switch {
	case req.HashedPassword:
		if !cryptox.IsPasswordHash(password) {
			return domain.User{}, ErrInvalidPasswordHash
		}
	case password == "" && req.PasswordNotRequired:
	case password == "":
		return domain.User{}, ErrPasswordRequired
	default:
		hashed, err := cryptox.HashPassword(password)
		if err != nil {
			log.Error("failed to hash admin password", slog.Any("error", err))
			return domain.User{}, err
		}
		password = hashed
	}

	// 2. Check the tenant is not taken before anything is written.
	exists, err := s.Store.Tenants().Exists(ctx, tenantID)
	if err != nil {
		return domain.User{}, err
	}
	if exists && s.Deployment.MultiTenancy {
		log.Warn("init admin for existing tenant", slog.String("tenant_id", tenantID))
		return domain.User{}, ErrTenantExists
	}

	// 3. Only one admin may be initialized.
	hasAdmin, err := s.Store.Users().HasGlobalAdmin(ctx, tenantID)
	if err != nil {
		return domain.User{}, err
	}
	if hasAdmin {
		log.Warn("init admin for initialized tenant", slog.String("tenant_id", tenantID))
		return domain.User{}, ErrAlreadyInitialized
	}

	admin := domain.User{
		ID:       idx.NewPrefixed(idx.PrefixUser).String(),
		TenantID: tenantID,
		Email:    req.Email,
		Password: password,
		Roles:    map[string]string{},
		Admin:    &domain.Capability{Global: true},
		Builder:  &domain.Capability{Global: true},
		Status:   domain.UserStatusActive,
		SSOID:    req.SSOID,
	}

	// 4. Write tenant, quota, user and platform row atomically.
	var created domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if !exists {
			if err := tx.Tenants().Create(ctx, domain.Tenant{ID: tenantID, CreatedAt: time.Now().UTC()}); err != nil {
				return err
			}
		}

		if !s.Deployment.SelfHosted {
			if err := resetQuota(ctx, tx, tenantID); err != nil {
				return err
			}
		}

		var err error
		created, err = tx.Users().Create(ctx, admin)
		if err != nil {
			return err
		}

		return tx.Platform().Upsert(ctx, domain.PlatformUser{
			UserID:   created.ID,
			Email:    created.Email,
			TenantID: created.TenantID,
		})
	})
	if err != nil {
		log.Error("failed to create admin", slog.String("tenant_id", tenantID), slog.Any("error", err))
		return domain.User{}, otelx.RecordError(span, err)
	}

	notifyAppSync(ctx, s.Sync, created.TenantID, created.ID)

	log.Info("tenant admin initialized",
		slog.String("tenant_id", tenantID),
		slog.String("user_id", created.ID),
	)
	return created.Sanitized(), nil
}

// resetQuota recreates the tenant's usage quota singleton.
func resetQuota(ctx context.Context, tx store.Tx, tenantID string) error {
	if err := tx.Quotas().Delete(ctx, tenantID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	_, err := tx.Quotas().Create(ctx, domain.UsageQuota{
		ID:       idx.NewPrefixed(idx.PrefixQuota).String(),
		TenantID: tenantID,
		Usage:    domain.QuotaCounts{Users: 1},
		Limits:   domain.QuotaCounts{Users: DefaultUserLimit, Apps: DefaultAppLimit},
	})
	return err
}

// DeleteUser removes a user from the caller's tenant and revokes everything
// that still points at them.
func (s *AccountService) DeleteUser(ctx context.Context, caller domain.Caller, userID string) (string, error) {
	log := slogx.FromContext(ctx)
	ctx, span := otelx.AddSpan(ctx, "accounts.delete_user", attribute.String("user_id", userID))
	defer span.End()

	// 1. Load the user.
	u, err := s.Store.Users().Get(ctx, caller.TenantID, userID)
	if err != nil {
		return "", err
	}

	// 2. The account holder is managed from the account portal.
	if !s.Deployment.SelfHosted && s.Portal != nil {
		_, isHolder, err := s.Portal.AccountHolder(ctx, u.Email)
		if err != nil {
			log.Error("account portal lookup failed", slog.Any("error", err))
			return "", otelx.RecordError(span, err)
		}
		if isHolder {
			log.Warn("refused to delete account holder",
				slog.String("user_id", userID),
				slog.String("caller_id", caller.UserID),
			)
			if caller.UserID == userID {
				return "", ErrUseAccountPortal
			}
			return "", ErrCannotDeleteHolder
		}
	}

	// 3. Remove the platform row and the document.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Platform().Delete(ctx, u.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		return tx.Users().Delete(ctx, u.TenantID, u.ID, u.Rev)
	})
	if err != nil {
		log.Error("failed to delete user", slog.String("user_id", userID), slog.Any("error", err))
		return "", otelx.RecordError(span, err)
	}

	// 4. Revoke cache and sessions.
	if err := s.Cache.Invalidate(ctx, u.TenantID, u.ID); err != nil {
		log.Error("failed to invalidate user cache", slog.String("user_id", u.ID), slog.Any("error", err))
		return "", fmt.Errorf("invalidate user cache: %w", err)
	}
	if err := s.Sessions.InvalidateAll(ctx, u.ID); err != nil {
		log.Error("failed to invalidate sessions", slog.String("user_id", u.ID), slog.Any("error", err))
		return "", fmt.Errorf("invalidate sessions: %w", err)
	}

	notifyAppSync(ctx, s.Sync, u.TenantID, u.ID)

	log.Info("user deleted", slog.String("user_id", u.ID))
	return fmt.Sprintf("User %s deleted.", u.ID), nil
}

// RemoveAppRole strips the role for appID from every user of the tenant.
// All changed users are written in one transaction. Returns how many users
// changed.
func (s *AccountService) RemoveAppRole(ctx context.Context, caller domain.Caller, appID string) (int, error) {
	log := slogx.FromContext(ctx)
	ctx, span := otelx.AddSpan(ctx, "accounts.remove_app_role", attribute.String("app_id", appID))
	defer span.End()

	appID = strings.TrimSpace(appID)
	if appID == "" {
		return 0, ErrInvalidRequest
	}

	// 1. Collect the users that hold the role.
	var changed []domain.User
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		users, err := tx.Users().List(ctx, caller.TenantID)
		if err != nil {
			return err
		}

		changed = changed[:0]
		for _, u := range users {
			if _, ok := u.Roles[appID]; !ok {
				continue
			}
			delete(u.Roles, appID)

			// 2. Write the change, any failure rolls the batch back.
			updated, err := tx.Users().Update(ctx, u)
			if err != nil {
				return fmt.Errorf("update user %s: %w", u.ID, err)
			}
			changed = append(changed, updated)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to remove app role", slog.String("app_id", appID), slog.Any("error", err))
		return 0, otelx.RecordError(span, err)
	}

	// 3. Invalidate every affected user and wait for all of them.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(invalidationConcurrency)
	for _, u := range changed {
		g.Go(func() error {
			return s.Cache.Invalidate(gctx, u.TenantID, u.ID)
		})
	}
	if err := g.Wait(); err != nil {
		log.Error("failed to invalidate user cache", slog.Any("error", err))
		return 0, fmt.Errorf("invalidate user cache: %w", err)
	}

	log.Info("app role removed",
		slog.String("app_id", appID),
		slog.Int("users", len(changed)),
	)
	return len(changed), nil
}

// Find returns the sanitized user, ok is false when it does not exist.
func (s *AccountService) Find(ctx context.Context, tenantID, userID string) (domain.User, bool, error) {
	u, err := s.Cache.Get(ctx, tenantID, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return u.Sanitized(), true, nil
}

// Fetch lists every user of the tenant without passwords.
func (s *AccountService) Fetch(ctx context.Context, tenantID string) ([]domain.User, error) {
	users, err := s.Store.Users().List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return domain.SanitizeUsers(users), nil
}

// GetSelf returns the caller with the access flags of their session.
func (s *AccountService) GetSelf(ctx context.Context, caller domain.Caller) (domain.Self, error) {
	u, ok, err := s.Find(ctx, caller.TenantID, caller.UserID)
	if err != nil {
		return domain.Self{}, err
	}
	if !ok {
		return domain.Self{}, store.ErrNotFound
	}
	return domain.Self{
		User:                u,
		AccountPortalAccess: caller.AccountPortalAccess,
		PlatformAccess:      caller.PlatformAccess,
	}, nil
}

// UpdateSelfRequest holds the only fields a user may change about themselves.
type UpdateSelfRequest struct {
	FirstName *string `json:"first_name" validate:"omitempty,max=255"`
	LastName  *string `json:"last_name" validate:"omitempty,max=255"`
	Password  *string `json:"password" validate:"omitempty,min=8,max=512"`
}

type UpdateSelfResponse struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// UpdateSelf applies first_name, last_name and password from body to the
// caller's stored document. Any other key in body is ignored. A new password
// logs out every other session of the caller.
func (s *AccountService) UpdateSelf(ctx context.Context, caller domain.Caller, body json.RawMessage) (UpdateSelfResponse, error) {
	log := slogx.FromContext(ctx)

	// 1. Validate the body.
	var req UpdateSelfRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return UpdateSelfResponse{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if err := validx.Check(req); err != nil {
		return UpdateSelfResponse{}, err
	}

	passwordChanged := req.Password != nil && *req.Password != ""
	var hashed string
	if passwordChanged {
		var err error
		hashed, err = cryptox.HashPassword(*req.Password)
		if err != nil {
			log.Error("failed to hash password", slog.Any("error", err))
			return UpdateSelfResponse{}, err
		}
	}

	// 2. Apply the self-editable fields to the stored document.
	existing, err := s.Store.Users().Get(ctx, caller.TenantID, caller.UserID)
	if err != nil {
		return UpdateSelfResponse{}, err
	}

	merged := applySelfUpdate(existing, req, hashed)

	// 3. Persist against the revision we read.
	saved, err := s.Store.Users().Update(ctx, merged)
	if err != nil {
		log.Warn("failed to update self", slog.Any("error", err))
		return UpdateSelfResponse{}, err
	}

	// 4. Invalidate and revoke.
	if err := s.Cache.Invalidate(ctx, saved.TenantID, saved.ID); err != nil {
		log.Error("failed to invalidate user cache", slog.String("user_id", saved.ID), slog.Any("error", err))
		return UpdateSelfResponse{}, fmt.Errorf("invalidate user cache: %w", err)
	}
	if passwordChanged {
		if err := s.Sessions.LogoutAllExcept(ctx, saved.ID, caller.SessionID); err != nil {
			log.Error("failed to log out other sessions", slog.String("user_id", saved.ID), slog.Any("error", err))
			return UpdateSelfResponse{}, fmt.Errorf("logout other sessions: %w", err)
		}
	}

	return UpdateSelfResponse{ID: saved.ID, Rev: saved.Rev}, nil
}

// applySelfUpdate copies the fields a user may edit about themselves onto u.
// Everything else, identity and permissions included, stays as stored.
func applySelfUpdate(u domain.User, req UpdateSelfRequest, hashedPassword string) domain.User {
	if req.FirstName != nil {
		u.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		u.LastName = *req.LastName
	}
	if hashedPassword != "" {
		u.Password = hashedPassword
	}
	return u
}

// TenantUser resolves a user id or email to its tenant.
func (s *AccountService) TenantUser(ctx context.Context, idOrEmail string) (domain.PlatformUser, error) {
	var (
		p   domain.PlatformUser
		err error
	)
	if strings.Contains(idOrEmail, "@") {
		p, err = s.Store.Platform().GetByEmail(ctx, normalizeEmail(idOrEmail))
	} else {
		p, err = s.Store.Platform().GetByUserID(ctx, idOrEmail)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.PlatformUser{}, ErrTenantUserNotFound
		}
		return domain.PlatformUser{}, err
	}
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
