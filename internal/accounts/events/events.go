// Package events publishes account side effects (app-sync notifications and
// invitation emails) to the platform event bus.
package events

import (
	"context"
	"fmt"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	SubjectUserChanged = "accounts.users.changed"
	SubjectInviteEmail = "accounts.email.invite"
)

// Publisher delivers an encoded event to subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, event any) error
}

// UserChanged tells application servers to resync a user's app grants.
type UserChanged struct {
	TenantID  string    `msgpack:"tenant_id"`
	UserID    string    `msgpack:"user_id"`
	ChangedAt time.Time `msgpack:"changed_at"`
}

// Encode is the wire encoding for every event on the bus.
func Encode(event any) ([]byte, error) {
	b, err := msgpack.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return b, nil
}

// AppSync notifies application servers that a user changed.
type AppSync struct {
	Pub Publisher
	Now func() time.Time
}

func (a *AppSync) UserChanged(ctx context.Context, tenantID, userID string) error {
	now := time.Now
	if a.Now != nil {
		now = a.Now
	}
	return a.Pub.Publish(ctx, SubjectUserChanged, UserChanged{
		TenantID:  tenantID,
		UserID:    userID,
		ChangedAt: now().UTC(),
	})
}

// Mailer hands invitation emails to the email service through the bus. The
// email service owns templating and delivery.
type Mailer struct {
	Pub Publisher
}

func (m *Mailer) SendInvite(ctx context.Context, email domain.InviteEmail) error {
	if err := m.Pub.Publish(ctx, SubjectInviteEmail, email); err != nil {
		return fmt.Errorf("dispatch invite email: %w", err)
	}
	return nil
}
