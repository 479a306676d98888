package migrations

import "embed"

// SQLite holds the sqlite schema, Postgres the postgres one. The two are
// kept in step by version number.
var (
	//go:embed sqlite/*.sql
	SQLite embed.FS

	//go:embed postgres/*.sql
	Postgres embed.FS
)
