package sqldb

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/accounts/internal/accounts/store"
	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib" // "pgx"
	_ "github.com/lib/pq"              // "postgres"
	_ "modernc.org/sqlite"             // "sqlite"
)

const (
	DriverSQLite   = "sqlite"
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// Store is the SQL implementation of store.Store. Documents are kept as JSON
// bodies next to the columns we need to filter on.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database. driver is one of DriverSQLite, DriverPgx or
// DriverPostgres.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPgx, DriverPostgres:
	default:
		return nil, fmt.Errorf("sqldb: unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == DriverSQLite {
		// sqlite allows a single writer, so a single connection. Callers
		// must not touch the root Store while inside WithTx.
		db.SetMaxOpenConns(1)

		if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON;`); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqldb: ping: %w", err)
	}

	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback() // no-op after commit
	}()

	if err := fn(repos{db: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users             { return repos{db: s.db}.Users() }
func (s *Store) Platform() store.Platform       { return repos{db: s.db}.Platform() }
func (s *Store) Tenants() store.Tenants         { return repos{db: s.db}.Tenants() }
func (s *Store) Invites() store.Invites         { return repos{db: s.db}.Invites() }
func (s *Store) Quotas() store.Quotas           { return repos{db: s.db}.Quotas() }
func (s *Store) Sessions() store.Sessions       { return repos{db: s.db}.Sessions() }
func (s *Store) Datasources() store.Datasources { return repos{db: s.db}.Datasources() }

// repos binds every repository to either the pool or an open transaction.
type repos struct {
	db sqlx.ExtContext
}

func (r repos) Users() store.Users             { return &usersRepo{db: r.db} }
func (r repos) Platform() store.Platform       { return &platformRepo{db: r.db} }
func (r repos) Tenants() store.Tenants         { return &tenantsRepo{db: r.db} }
func (r repos) Invites() store.Invites         { return &invitesRepo{db: r.db} }
func (r repos) Quotas() store.Quotas           { return &quotasRepo{db: r.db} }
func (r repos) Sessions() store.Sessions       { return &sessionsRepo{db: r.db} }
func (r repos) Datasources() store.Datasources { return &datasourcesRepo{db: r.db} }

// SQLiteDSN builds a modernc DSN for a database file with the pragmas the
// store expects.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
}
