package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fleetline/internal/domain"
)

// PostgresStore keeps every document in one jsonb table keyed by
// (collection, id). Equality and membership queries run as jsonb
// operators server-side.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	collection text NOT NULL,
	id         text NOT NULL,
	doc        jsonb NOT NULL,
	PRIMARY KEY (collection, id)
)`

func NewPostgresStore(ctx context.Context, databaseURL string, logger *slog.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres connection failed: %w", err)
	}

	if _, err := pool.Exec(ctx, documentsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure documents table: %w", err)
	}

	return &PostgresStore{
		pool:   pool,
		logger: logger.With("component", "postgres_store"),
	}, nil
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc json.RawMessage
	err := s.pool.QueryRow(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, doc any, mode SetMode) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", collection, id, err)
	}

	var query string
	if mode == Merge {
		query = `INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET doc = documents.doc || EXCLUDED.doc`
	} else {
		query = `INSERT INTO documents (collection, id, doc) VALUES ($1, $2, $3)
			ON CONFLICT (collection, id) DO UPDATE SET doc = EXCLUDED.doc`
	}

	start := time.Now()
	if _, err := s.pool.Exec(ctx, query, collection, id, data); err != nil {
		s.logger.Error("set failed", "collection", collection, "id", id, "error", err)
		return fmt.Errorf("postgres set %s/%s: %w", collection, id, err)
	}
	s.logger.Debug("set", "collection", collection, "id", id, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	); err != nil {
		return fmt.Errorf("postgres delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]json.RawMessage, error) {
	return s.query(ctx,
		`SELECT doc FROM documents WHERE collection = $1 ORDER BY id`,
		collection)
}

func (s *PostgresStore) QueryEquals(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	return s.query(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND doc->>$2 = $3 ORDER BY id`,
		collection, field, value)
}

func (s *PostgresStore) QueryContains(ctx context.Context, collection, field, value string) ([]json.RawMessage, error) {
	return s.query(ctx,
		`SELECT doc FROM documents WHERE collection = $1 AND doc->$2 ? $3 ORDER BY id`,
		collection, field, value)
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]json.RawMessage, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	var result []json.RawMessage
	for rows.Next() {
		var doc json.RawMessage
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("postgres scan: %w", err)
		}
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	return result, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
