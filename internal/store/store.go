package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/datallboy/bossfetch/internal/infra/logger"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// DialectOf picks the backend from a DSN: postgres:// and postgresql:// URLs
// use PostgreSQL, anything else is a sqlite file path.
func DialectOf(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

// PersistentStore keeps the job history.
type PersistentStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewPersistentStore(ctx context.Context, dsn string, log *logger.Logger) (*PersistentStore, error) {
	dialect := DialectOf(dsn)

	var db *sql.DB
	var err error
	switch dialect {
	case DialectPostgres:
		db, err = openPostgres(ctx, dsn, log)
	default:
		db, err = openSQLite(dsn)
	}
	if err != nil {
		return nil, err
	}

	store := &PersistentStore{db: db, dialect: dialect}

	if err := store.RunMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return store, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	// Ensure the database directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// Ping makes sure the file is actually accessible and the DSN is valid
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}

	return db, nil
}

// openPostgres retries the first ping so the CLI can start alongside a
// database container that is still booting.
func openPostgres(ctx context.Context, dsn string, log *logger.Logger) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 30 * time.Second

	err = backoff.RetryNotify(
		func() error { return db.PingContext(ctx) },
		backoff.WithContext(policy, ctx),
		func(err error, wait time.Duration) {
			log.Warn("failed to connect to postgres, retrying in %s: %v", wait.Truncate(time.Millisecond), err)
		},
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return db, nil
}

func (s *PersistentStore) Dialect() Dialect { return s.dialect }

// rebind rewrites ? placeholders as $1, $2, ... for PostgreSQL.
func (s *PersistentStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *PersistentStore) Close() error {
	return s.db.Close()
}
