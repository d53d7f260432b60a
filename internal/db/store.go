// Package db is Watchpost's store: transactional persistence for monitors,
// heartbeats, incidents, notifications, maintenance, dependencies,
// locations, alert rules, webhook deliveries, status pages and settings.
// It is dual-dialect — SQLite for single-node deployments, Postgres for
// everything else — rebinding `?` placeholders to `$n` only when needed.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"

	"github.com/watchpost/watchpost/internal/secrets"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

//go:embed migrations/sqlite/*.sql
var sqliteMigrationFS embed.FS

//go:embed migrations/postgres/*.sql
var postgresMigrationFS embed.FS

// Config selects the backing engine. For SQLite set Path; for PostgreSQL
// set URL. The engine choice is not normative — only the schema is.
type Config struct {
	Type string
	Path string
	URL  string
}

type Store struct {
	db      *sql.DB
	dialect string
	log     zerolog.Logger
}

// Open connects, migrates, and seeds the store. It also mints and prints
// the one-time admin key on first start.
func Open(cfg Config, log zerolog.Logger) (*Store, error) {
	var sqlDB *sql.DB
	var err error
	dialect := DialectSQLite

	switch cfg.Type {
	case DialectPostgres, "postgresql":
		dialect = DialectPostgres
		sqlDB, err = sql.Open("postgres", cfg.URL)
	default:
		sqlDB, err = sql.Open("sqlite3", cfg.Path+"?_foreign_keys=on")
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// SQLite allows exactly one writer; a single pooled connection
		// avoids SQLITE_BUSY from Go's connection pool fanning writes out
		// across multiple connections, and keeps in-memory DBs coherent.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{db: sqlDB, dialect: dialect, log: log}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	adminKey, err := s.ensureAdminKey()
	if err != nil {
		return nil, err
	}
	if adminKey != "" {
		log.Info().Str("admin_key", adminKey).Msg("minted initial admin key — store it now, it will not be shown again")
	}

	return s, nil
}

func (s *Store) Dialect() string       { return s.dialect }
func (s *Store) IsSQLite() bool        { return s.dialect == DialectSQLite }
func (s *Store) IsPostgres() bool      { return s.dialect == DialectPostgres }
func (s *Store) Close() error          { return s.db.Close() }
func (s *Store) PingContext(ctx context.Context) error { return s.db.PingContext(ctx) }

// rebind converts `?` placeholders to `$1, $2, ...` for PostgreSQL; SQLite
// queries pass through unchanged.
func (s *Store) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	result := make([]byte, 0, len(query)+8)
	placeholder := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = fmt.Appendf(result, "%d", placeholder)
			placeholder++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

func (s *Store) migrate() error {
	var embedFS embed.FS
	var path string
	var dialect goose.Dialect

	switch s.dialect {
	case DialectPostgres:
		embedFS, path, dialect = postgresMigrationFS, "migrations/postgres", goose.DialectPostgres
	default:
		embedFS, path, dialect = sqliteMigrationFS, "migrations/sqlite", goose.DialectSQLite3
	}

	sub, err := fs.Sub(embedFS, path)
	if err != nil {
		return err
	}

	provider, err := goose.NewProvider(dialect, s.db, sub)
	if err != nil {
		return err
	}

	s.log.Info().Msg("running database migrations")
	if _, err := provider.Up(context.Background()); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// ensureAdminKey mints the singleton admin key the first time the store is
// opened against an empty settings table, returning the plaintext key so
// the caller can log it once. On subsequent starts it returns "".
func (s *Store) ensureAdminKey() (string, error) {
	var exists int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM settings WHERE id = 1").Scan(&exists); err != nil {
		return "", err
	}
	if exists > 0 {
		return "", nil
	}

	rawKey, err := secrets.Generate("wak_")
	if err != nil {
		return "", err
	}
	hash, err := secrets.Hash(rawKey)
	if err != nil {
		return "", err
	}

	_, err = s.db.Exec(s.rebind("INSERT INTO settings (id, brand_name, admin_key_hash) VALUES (1, ?, ?)"), "Watchpost", hash)
	if err != nil {
		return "", err
	}
	return rawKey, nil
}

// VerifyAdminKey reports whether key matches the stored admin key hash.
func (s *Store) VerifyAdminKey(key string) (bool, error) {
	var hash sql.NullString
	err := s.db.QueryRow("SELECT admin_key_hash FROM settings WHERE id = 1").Scan(&hash)
	if err != nil {
		return false, err
	}
	if !hash.Valid || hash.String == "" {
		return false, nil
	}
	if err := secrets.Verify(key, hash.String); err != nil {
		if errors.Is(err, secrets.ErrMismatch) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WithTx runs fn inside a transaction, retrying a bounded number of times
// on transient serialization failures.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	const maxAttempts = 3
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if !isRetryable(err) || attempt == maxAttempts {
				return err
			}
			lastErr = err
			time.Sleep(retryBackoff(attempt))
			continue
		}

		if err := tx.Commit(); err != nil {
			if !isRetryable(err) || attempt == maxAttempts {
				return err
			}
			lastErr = err
			time.Sleep(retryBackoff(attempt))
			continue
		}
		return nil
	}
	return lastErr
}

func retryBackoff(attempt int) time.Duration {
	base := time.Duration(attempt) * 10 * time.Millisecond
	jitter := time.Duration(rand.Intn(10)) * time.Millisecond
	return base + jitter
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	// SQLite busy/locked and Postgres serialization failures (40001) are
	// the transient conditions worth a short retry.
	return containsAny(msg, "database is locked", "SQLITE_BUSY", "could not serialize access", "40001")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if len(sub) > 0 && indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 || m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
