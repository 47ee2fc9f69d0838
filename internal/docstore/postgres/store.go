// Package postgres backs the document store with a single jsonb table.
// Transactions run at SERIALIZABLE isolation; serialization failures are
// retried a bounded number of times before surfacing as docstore.ErrConflict,
// mirroring the in-memory store's optimistic retry behavior.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/likha-market/marketplace/internal/docstore"
	"github.com/likha-market/marketplace/internal/observability"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const maxAttempts = 5

// Postgres serialization failure and deadlock SQLSTATE codes.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

type Store struct {
	db  *sqlx.DB
	log observability.Logger
}

// Open connects, applies the embedded migrations, and returns the store.
func Open(dsn string, logger observability.Logger) (*Store, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("docstore/postgres: connect: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("docstore_connected", observability.F("backend", "postgres"))
	return &Store{db: db, log: logger}, nil
}

func applyMigrations(db *sqlx.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("docstore/postgres: load migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("docstore/postgres: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("docstore/postgres: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("docstore/postgres: migrate up: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key docstore.Key, out any) error {
	var raw []byte
	err := s.db.GetContext(ctx, &raw,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		key.Collection, key.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("docstore/postgres: get: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (s *Store) List(ctx context.Context, collection string, each func(raw []byte) error) error {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 ORDER BY id`,
		collection)
	if err != nil {
		return fmt.Errorf("docstore/postgres: list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return fmt.Errorf("docstore/postgres: list scan: %w", err)
		}
		if err := each(raw); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) RunTransaction(ctx context.Context, fn func(tx docstore.Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		if attempt >= maxAttempts {
			return docstore.ErrConflict
		}
		s.log.Debug("tx_serialization_retry",
			observability.F("attempt", attempt),
		)
	}
}

func (s *Store) runOnce(ctx context.Context, fn func(tx docstore.Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("docstore/postgres: begin: %w", err)
	}

	tx := &pgTx{ctx: ctx, tx: sqlTx}
	if err := fn(tx); err != nil {
		sqlTx.Rollback()
		return err
	}
	if tx.err != nil {
		sqlTx.Rollback()
		return tx.err
	}
	if err := sqlTx.Commit(); err != nil {
		if isRetryable(err) {
			return err
		}
		return fmt.Errorf("docstore/postgres: commit: %w", err)
	}
	return nil
}

// pgTx executes writes eagerly inside the SQL transaction. The database's
// rollback gives the same all-or-nothing behavior the buffered in-memory
// transaction provides.
type pgTx struct {
	ctx   context.Context
	tx    *sqlx.Tx
	wrote bool
	err   error
}

func (t *pgTx) Get(key docstore.Key, out any) error {
	if t.wrote {
		return docstore.ErrReadAfterWrite
	}
	var raw []byte
	err := t.tx.GetContext(t.ctx, &raw,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		key.Collection, key.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("docstore/postgres: tx get: %w", err)
	}
	return json.Unmarshal(raw, out)
}

func (t *pgTx) Set(key docstore.Key, doc any) {
	t.wrote = true
	if t.err != nil {
		return
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.err = fmt.Errorf("docstore/postgres: marshal %s/%s: %w", key.Collection, key.ID, err)
		return
	}
	_, err = t.tx.ExecContext(t.ctx,
		`INSERT INTO documents (collection, id, data)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, id)
		 DO UPDATE SET data = EXCLUDED.data,
		               version = documents.version + 1,
		               updated_at = now()`,
		key.Collection, key.ID, raw)
	if err != nil {
		t.err = fmt.Errorf("docstore/postgres: tx set: %w", err)
	}
}

func (t *pgTx) Delete(key docstore.Key) {
	t.wrote = true
	if t.err != nil {
		return
	}
	_, err := t.tx.ExecContext(t.ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		key.Collection, key.ID)
	if err != nil {
		t.err = fmt.Errorf("docstore/postgres: tx delete: %w", err)
	}
}

func isRetryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	code := string(pqErr.Code)
	return code == codeSerializationFailure || code == codeDeadlockDetected
}
