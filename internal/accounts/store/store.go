package store

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/accounts/internal/accounts/domain"
)

// Error is a repository failure that carries the HTTP status it should
// surface as.
type Error struct {
	msg  string
	code int
}

func (e *Error) Error() string   { return e.msg }
func (e *Error) StatusCode() int { return e.code }

var (
	ErrNotFound      = &Error{msg: "store: not found", code: http.StatusNotFound}
	ErrAlreadyExists = &Error{msg: "store: already exists", code: http.StatusConflict}
	// ErrConflict means the write carried a stale revision.
	ErrConflict = &Error{msg: "store: document update conflict", code: http.StatusConflict}
)

// Repos is the set of sub-repositories shared by the Store and a Tx.
type Repos interface {
	Users() Users
	Platform() Platform
	Tenants() Tenants
	Invites() Invites
	Quotas() Quotas
	Sessions() Sessions
	Datasources() Datasources
}

// Store is the root data access interface. Concrete drivers implement it.
type Store interface {
	Repos

	ApplyMigrations() error

	// WithTx runs fn in a transaction, committing when fn returns nil.
	// Only the repos on tx may be used inside fn.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is the transaction-scoped view handed to WithTx callbacks. It has no
// WithTx of its own, nested transactions are not supported.
type Tx interface {
	Repos
}

type Users interface {
	// Get returns the user with id inside tenantID.
	Get(ctx context.Context, tenantID, id string) (domain.User, error)

	GetByEmail(ctx context.Context, tenantID, email string) (domain.User, error)

	// List returns every user of the tenant ordered by creation.
	List(ctx context.Context, tenantID string) ([]domain.User, error)

	// HasGlobalAdmin reports whether any user of the tenant holds admin.global.
	HasGlobalAdmin(ctx context.Context, tenantID string) (bool, error)

	// Create inserts u and returns it with its first revision.
	Create(ctx context.Context, u domain.User) (domain.User, error)

	// Update writes u if u.Rev is still current and returns the new revision.
	// A stale revision fails with ErrConflict.
	Update(ctx context.Context, u domain.User) (domain.User, error)

	// Delete removes the user at rev.
	Delete(ctx context.Context, tenantID, id, rev string) error
}

type Platform interface {
	// Upsert inserts or replaces the row for p.UserID. Emails are unique
	// across the platform, a clash fails with ErrAlreadyExists.
	Upsert(ctx context.Context, p domain.PlatformUser) error

	GetByUserID(ctx context.Context, userID string) (domain.PlatformUser, error)
	GetByEmail(ctx context.Context, email string) (domain.PlatformUser, error)

	Delete(ctx context.Context, userID string) error
}

type Tenants interface {
	Exists(ctx context.Context, id string) (bool, error)
	Create(ctx context.Context, t domain.Tenant) error
}

type Invites interface {
	Create(ctx context.Context, inv domain.Invite) error

	// Consume deletes and returns the live invite with codeHash. Unknown,
	// expired and already-consumed codes all fail with ErrNotFound.
	Consume(ctx context.Context, codeHash string, now time.Time) (domain.Invite, error)

	Delete(ctx context.Context, codeHash string) error

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Quotas interface {
	Get(ctx context.Context, tenantID string) (domain.UsageQuota, error)

	// Delete removes the tenant's quota, ErrNotFound when there is none.
	Delete(ctx context.Context, tenantID string) error

	Create(ctx context.Context, q domain.UsageQuota) (domain.UsageQuota, error)
}

type Sessions interface {
	Create(ctx context.Context, s domain.Session) error
	Get(ctx context.Context, id string) (domain.Session, error)
	Delete(ctx context.Context, id string) error

	// DeleteByUser removes every session of the user and returns the count.
	DeleteByUser(ctx context.Context, userID string) (int64, error)

	// DeleteByUserExcept removes every session of the user but keepID.
	DeleteByUserExcept(ctx context.Context, userID, keepID string) (int64, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type Datasources interface {
	Create(ctx context.Context, ds domain.Datasource) (domain.Datasource, error)
	Get(ctx context.Context, tenantID, id string) (domain.Datasource, error)
	List(ctx context.Context, tenantID string) ([]domain.Datasource, error)
	Update(ctx context.Context, ds domain.Datasource) (domain.Datasource, error)

	// Delete removes the datasource with its tables and queries.
	Delete(ctx context.Context, tenantID, id string) error

	CreateTable(ctx context.Context, t domain.Table) error
	GetTable(ctx context.Context, tenantID, id string) (domain.Table, error)
	ListTables(ctx context.Context, tenantID, datasourceID string) ([]domain.Table, error)

	CreateQuery(ctx context.Context, q domain.Query) error
	GetQuery(ctx context.Context, tenantID, id string) (domain.Query, error)
	ListQueries(ctx context.Context, tenantID, datasourceID string) ([]domain.Query, error)
}
