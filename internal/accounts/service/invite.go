package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/idx"
	"github.com/aussiebroadwan/accounts/pkg/otelx"
	"github.com/aussiebroadwan/accounts/pkg/slogx"
	"github.com/aussiebroadwan/accounts/pkg/validx"
)

// DefaultInviteTTL is how long an invitation code stays redeemable.
const DefaultInviteTTL = 7 * 24 * time.Hour

// ErrInvalidInvitation covers unknown, expired and used codes alike.
var (
	ErrEmailInUse        = errors.New("already in use")
	ErrInvalidInvitation = errors.New("invalid invitation")
)

// InviteService issues single-use invitation codes and redeems them into
// new users.
type InviteService struct {
	Store  store.Store
	Mailer Mailer
	Sync   AppSync
	TTL    time.Duration

	// AcceptURL is the builder page that redeems a code, the code is added
	// as the "code" query parameter.
	AcceptURL string
}

type InviteRequest struct {
	Email string            `json:"email" validate:"required,email,max=254"`
	Info  domain.InviteInfo `json:"info"`
}

// Invite stores an invitation for req.Email in the caller's tenant and
// emails the code to the invitee.
func (s *InviteService) Invite(ctx context.Context, caller domain.Caller, req InviteRequest) error {
	log := slogx.FromContext(ctx)

	// 1. Validate the request.
	req.Email = normalizeEmail(req.Email)
	if err := validx.Check(req); err != nil {
		return err
	}

	// 2. The email must not belong to anyone on the platform.
	if _, err := s.Store.Platform().GetByEmail(ctx, req.Email); err == nil {
		log.Warn("invite for registered email", slog.String("tenant_id", caller.TenantID))
		return ErrEmailInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if _, err := s.Store.Users().GetByEmail(ctx, caller.TenantID, req.Email); err == nil {
		return ErrEmailInUse
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	// 3. Generate the code, only its fingerprint is stored.
	code, fingerprint, err := cryptox.NewInviteCode()
	if err != nil {
		log.Error("failed to generate invite code", slog.Any("error", err))
		return err
	}

	now := time.Now().UTC()
	ttl := s.TTL
	if ttl <= 0 {
		ttl = DefaultInviteTTL
	}
	inv := domain.Invite{
		CodeHash:  fingerprint,
		Email:     req.Email,
		TenantID:  caller.TenantID,
		InvitedBy: caller.UserID,
		Info:      req.Info,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	if err := s.Store.Invites().Create(ctx, inv); err != nil {
		log.Error("failed to store invite", slog.Any("error", err))
		return err
	}

	// 4. Send the email.
	email := domain.InviteEmail{
		To:        inv.Email,
		TenantID:  inv.TenantID,
		InvitedBy: inv.InvitedBy,
		Code:      code,
		AcceptURL: acceptURL(s.AcceptURL, code),
		ExpiresAt: inv.ExpiresAt,
	}
	if err := s.Mailer.SendInvite(ctx, email); err != nil {
		log.Error("failed to send invite email", slog.Any("error", err))
		return err
	}

	log.Info("invite sent", slog.String("tenant_id", inv.TenantID), slog.Time("expires_at", inv.ExpiresAt))
	return nil
}

func acceptURL(base, code string) string {
	if base == "" {
		return ""
	}
	u, err := url.Parse(base)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Set("code", code)
	u.RawQuery = q.Encode()
	return u.String()
}

type AcceptInviteRequest struct {
	InviteCode string `json:"invite_code" validate:"required,max=128"`
	Password   string `json:"password" validate:"required,min=8,max=512"`
	FirstName  string `json:"first_name" validate:"max=255"`
	LastName   string `json:"last_name" validate:"max=255"`
}

// AcceptInvite redeems an invitation code and creates the invited user in
// the tenant that issued it. Unknown, expired and used codes all fail with
// ErrInvalidInvitation.
func (s *InviteService) AcceptInvite(ctx context.Context, req AcceptInviteRequest) (domain.User, error) {
	log := slogx.FromContext(ctx)
	ctx, span := otelx.AddSpan(ctx, "accounts.accept_invite")
	defer span.End()

	// 1. Validate the request.
	if err := validx.Check(req); err != nil {
		return domain.User{}, err
	}

	hashed, err := cryptox.HashPassword(req.Password)
	if err != nil {
		log.Error("failed to hash password", slog.Any("error", err))
		return domain.User{}, err
	}

	// 2. Consume the code and create the user atomically, a failed create
	// leaves the code redeemable.
	var created domain.User
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		inv, err := tx.Invites().Consume(ctx, cryptox.FingerprintToken(req.InviteCode), time.Now().UTC())
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				log.Error("failed to resolve invite", slog.Any("error", err))
			}
			return ErrInvalidInvitation
		}

		u := domain.User{
			ID:        idx.NewPrefixed(idx.PrefixUser).String(),
			TenantID:  inv.TenantID,
			Email:     inv.Email,
			Password:  hashed,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			Roles:     inv.Info.Roles,
			Admin:     inv.Info.Admin,
			Builder:   inv.Info.Builder,
			Status:    domain.UserStatusActive,
		}

		created, err = tx.Users().Create(ctx, u)
		if err != nil {
			return fmt.Errorf("create invited user: %w", err)
		}

		return tx.Platform().Upsert(ctx, domain.PlatformUser{
			UserID:   created.ID,
			Email:    created.Email,
			TenantID: created.TenantID,
		})
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInvitation) {
			log.Warn("invalid invitation code")
		} else {
			log.Error("failed to accept invite", slog.Any("error", err))
		}
		return domain.User{}, otelx.RecordError(span, err)
	}

	notifyAppSync(ctx, s.Sync, created.TenantID, created.ID)

	log.Info("invite accepted",
		slog.String("tenant_id", created.TenantID),
		slog.String("user_id", created.ID),
	)
	return created.Sanitized(), nil
}
