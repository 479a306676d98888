package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/aussiebroadwan/accounts/pkg/validx"
)

// Login failures. Unknown email and wrong password share ErrInvalidCredentials.
var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrUserInactive       = errors.New("user_inactive")
)

// SessionService opens and revokes login sessions. A token is only honoured
// while its session row exists, so deleting rows is how sessions are
// invalidated.
type SessionService struct {
	Store    store.Store
	Signer   jwtx.Signer
	Issuer   string
	Audience []string
	TTL      time.Duration

	// Now is overridable in tests.
	Now func() time.Time
}

func (s *SessionService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=512"`
	TenantID string `json:"tenant_id" validate:"omitempty,max=64"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	SessionID   string `json:"session_id"`
}

// Login checks the password and opens a session.
func (s *SessionService) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	log := slogx.FromContext(ctx)

	req.Email = normalizeEmail(req.Email)
	if err := validx.Check(req); err != nil {
		return LoginResponse{}, err
	}
	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = domain.DefaultTenantID
	}

	// 1. Authenticate.
	u, err := s.Store.Users().GetByEmail(ctx, tenantID, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info("login for unknown user", slog.String("tenant_id", tenantID))
			return LoginResponse{}, ErrInvalidCredentials
		}
		return LoginResponse{}, err
	}
	if u.Password == "" || cryptox.VerifyPassword(req.Password, u.Password) != nil {
		log.Info("login with bad password", slog.String("user_id", u.ID))
		return LoginResponse{}, ErrInvalidCredentials
	}
	if u.Status == domain.UserStatusInactive {
		return LoginResponse{}, ErrUserInactive
	}

	// 2. Open the session.
	now := s.now()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}
	sess := domain.Session{
		ID:                  idx.NewPrefixed(idx.PrefixSession).String(),
		UserID:              u.ID,
		TenantID:            u.TenantID,
		AccountPortalAccess: u.IsGlobalAdmin(),
		PlatformAccess:      u.IsGlobalAdmin() || u.IsGlobalBuilder(),
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
	if err := s.Store.Sessions().Create(ctx, sess); err != nil {
		log.Error("failed to create session", slog.Any("error", err))
		return LoginResponse{}, err
	}

	// 3. Sign the token.
	claims := jwtx.NewSessionClaims(jwtx.SessionParams{
		Subject:             u.ID,
		SessionID:           sess.ID,
		TenantID:            u.TenantID,
		AccountPortalAccess: sess.AccountPortalAccess,
		PlatformAccess:      sess.PlatformAccess,
		Issuer:              s.Issuer,
		Audience:            s.Audience,
		TTL:                 ttl,
	}, now)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		log.Error("failed to sign session token", slog.Any("error", err))
		return LoginResponse{}, err
	}

	log.Info("session opened", slog.String("user_id", u.ID), slog.String("session_id", sess.ID))
	return LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		SessionID:   sess.ID,
	}, nil
}

// Logout closes the caller's session.
func (s *SessionService) Logout(ctx context.Context, caller domain.Caller) error {
	err := s.Store.Sessions().Delete(ctx, caller.SessionID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// SessionActive reports whether sessionID exists and has not expired.
func (s *SessionService) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.Store.Sessions().Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.now().Before(sess.ExpiresAt), nil
}

func (s *SessionService) InvalidateAll(ctx context.Context, userID string) error {
	n, err := s.Store.Sessions().DeleteByUser(ctx, userID)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("sessions invalidated", slog.String("user_id", userID), slog.Int64("count", n))
	return nil
}

func (s *SessionService) LogoutAllExcept(ctx context.Context, userID, keepSessionID string) error {
	n, err := s.Store.Sessions().DeleteByUserExcept(ctx, userID, keepSessionID)
	if err != nil {
		return err
	}
	slogx.FromContext(ctx).Info("other sessions logged out", slog.String("user_id", userID), slog.Int64("count", n))
	return nil
}
