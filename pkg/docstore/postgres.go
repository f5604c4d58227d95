package docstore

import (
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql
)

// PostgresStore persists documents as JSONB rows. Documents live in a single
// two-column-keyed table; append-only collections go to a serial log table so
// appends never contend with document writes.
type PostgresStore struct {
	db *stdsql.DB
}

// Config holds PostgreSQL connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DSN builds the pgx-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// NewPostgresStore opens a pooled connection, pings it, and runs migrations.
func NewPostgresStore(ctx context.Context, cfg Config) (*PostgresStore, error) {
	db, err := stdsql.Open("pgx", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an existing connection (useful for tests).
// Migrations are still applied.
func NewPostgresStoreFromDB(db *stdsql.DB) (*PostgresStore, error) {
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// Ping checks connectivity for health endpoints.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) Get(ctx context.Context, collection, id string, out any) error {
	var data []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data)
	if errors.Is(err, stdsql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return json.Unmarshal(data, out)
}

func (p *PostgresStore) Save(ctx context.Context, collection, id string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (collection, id) DO UPDATE SET data = $3, updated_at = now()`,
		collection, id, data)
	if err != nil {
		return fmt.Errorf("save %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	_, err := p.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (p *PostgresStore) List(ctx context.Context, collection string) ([]Raw, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Raw
	for rows.Next() {
		var r Raw
		if err := rows.Scan(&r.ID, &r.Data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Update locks the row for the duration of the mutate call so concurrent
// reserve/commit/refund cycles on the same document serialize.
func (p *PostgresStore) Update(ctx context.Context, collection, id string, mutate MutateFunc) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update %s/%s: %w", collection, id, err)
	}
	defer func() { _ = tx.Rollback() }()

	var current []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`,
		collection, id).Scan(&current)
	if err != nil && !errors.Is(err, stdsql.ErrNoRows) {
		return fmt.Errorf("lock %s/%s: %w", collection, id, err)
	}

	next, err := mutate(current)
	if err != nil {
		if errors.Is(err, ErrAborted) {
			return nil
		}
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO documents (collection, id, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (collection, id) DO UPDATE SET data = $3, updated_at = now()`,
		collection, id, next)
	if err != nil {
		return fmt.Errorf("write %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (p *PostgresStore) Append(ctx context.Context, collection string, doc any) (string, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode append to %s: %w", collection, err)
	}
	id := uuid.NewString()
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO append_log (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, data)
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", collection, err)
	}
	return id, nil
}

func (p *PostgresStore) AppendedEntries(ctx context.Context, collection string, limit int) ([]Raw, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, data FROM (
		   SELECT id, data, seq FROM append_log WHERE collection = $1 ORDER BY seq DESC LIMIT $2
		 ) recent ORDER BY seq ASC`,
		collection, limit)
	if err != nil {
		return nil, fmt.Errorf("list append %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Raw
	for rows.Next() {
		var r Raw
		if err := rows.Scan(&r.ID, &r.Data); err != nil {
			return nil, fmt.Errorf("scan append %s: %w", collection, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
