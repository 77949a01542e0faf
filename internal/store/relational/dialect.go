package relational

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4/database"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	sqlite3 "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/halcyonlab/usergate/internal/store"
)

// dialect isolates the engine-specific pieces: driver registration, DSN
// construction, placeholder style, unique-violation detection, and the
// migration driver.
type dialect interface {
	name() string
	driverName() string
	dsn(opts store.Options) string
	// rebind rewrites $n placeholders into the engine's native style.
	rebind(query string) string
	// uniqueField returns the colliding column for a unique-constraint
	// violation, or ok=false when err is something else.
	uniqueField(err error) (string, bool)
	migrateDriver(db *sql.DB) (database.Driver, error)
}

func dialectFor(engine string) (dialect, error) {
	switch strings.ToLower(engine) {
	case "", "postgres", "postgresql":
		return postgresDialect{}, nil
	case "sqlite", "sqlite3":
		return sqliteDialect{}, nil
	}
	return nil, fmt.Errorf("relational: unsupported engine %q", engine)
}

type postgresDialect struct{}

func (postgresDialect) name() string       { return "postgres" }
func (postgresDialect) driverName() string { return "pgx" }

func (postgresDialect) dsn(opts store.Options) string {
	host := opts.Host
	if host == "" {
		host = "localhost"
	}
	port := opts.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		opts.User, opts.Pass, host, port, opts.DBName)
}

func (postgresDialect) rebind(query string) string { return query }

func (postgresDialect) uniqueField(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
		return "", false
	}
	return fieldFromConstraint(pgErr.ConstraintName), true
}

func (postgresDialect) migrateDriver(db *sql.DB) (database.Driver, error) {
	return migratepg.WithInstance(db, &migratepg.Config{})
}

type sqliteDialect struct{}

func (sqliteDialect) name() string       { return "sqlite" }
func (sqliteDialect) driverName() string { return "sqlite" }

func (sqliteDialect) dsn(opts store.Options) string {
	if opts.StoragePath == "" {
		return "file::memory:?cache=shared"
	}
	return opts.StoragePath
}

func (sqliteDialect) rebind(query string) string {
	var b strings.Builder
	for i := 0; i < len(query); i++ {
		if query[i] != '$' {
			b.WriteByte(query[i])
			continue
		}
		j := i + 1
		for j < len(query) && query[j] >= '0' && query[j] <= '9' {
			j++
		}
		if j == i+1 {
			b.WriteByte(query[i])
			continue
		}
		b.WriteByte('?')
		i = j - 1
	}
	return b.String()
}

func (sqliteDialect) uniqueField(err error) (string, bool) {
	var serr *sqlite3.Error
	if !errors.As(err, &serr) {
		return "", false
	}
	code := serr.Code()
	if code != sqlitelib.SQLITE_CONSTRAINT_UNIQUE && code != sqlitelib.SQLITE_CONSTRAINT_PRIMARYKEY {
		return "", false
	}
	return fieldFromConstraint(serr.Error()), true
}

func (sqliteDialect) migrateDriver(db *sql.DB) (database.Driver, error) {
	return migratesqlite.WithInstance(db, &migratesqlite.Config{})
}

// fieldFromConstraint maps a constraint name or error message onto the user
// field it guards. Both engines name the unique indexes users_email_key and
// users_username_key.
func fieldFromConstraint(s string) string {
	s = strings.ToLower(s)
	switch {
	case strings.Contains(s, "username"):
		return "username"
	case strings.Contains(s, "email"):
		return "email"
	}
	return ""
}
