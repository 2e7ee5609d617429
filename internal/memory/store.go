// Package memory persists the companion's conversation in PostgreSQL: an
// append-only turn log per session plus a pgvector index over embedded
// turns for semantic recall ("what did we talk about last week?").
//
// The pgvector extension must be available in the target database; Migrate
// installs it via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := memory.NewStore(ctx, dsn, embedder)
//	_ = store.AppendTurn(ctx, sessionID, memory.RoleUser, "I adopted a cat!")
//	hits, _ := store.Recall(ctx, sessionID, "pets", 5)
package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/bella-ai/bella/pkg/provider/embeddings"
)

// Turn roles.
const (
	RoleUser      = "user"
	RoleCompanion = "companion"
)

// Turn is one logged side of an exchange.
type Turn struct {
	ID        int64
	SessionID string
	Role      string
	Text      string
	Timestamp time.Time
}

// Recalled is a Turn returned by semantic search together with its cosine
// distance to the query (smaller is more similar).
type Recalled struct {
	Turn
	Distance float64
}

// Store is the PostgreSQL-backed conversation memory. All methods are safe
// for concurrent use.
type Store struct {
	pool     *pgxpool.Pool
	embedder embeddings.Embedder
}

// NewStore connects to the database at dsn, registers pgvector types on
// every connection, and runs Migrate. The embedder supplies vectors for
// AppendTurn and Recall; its dimension is baked into the schema on first
// migration, so changing the embedding model later needs a manual schema
// update.
func NewStore(ctx context.Context, dsn string, embedder embeddings.Embedder) (*Store, error) {
	if embedder == nil {
		return nil, fmt.Errorf("memory: embedder must not be nil")
	}
	dims := embedder.Dimensions()
	if dims <= 0 {
		return nil, fmt.Errorf("memory: embedder reports dimension %d", dims)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("memory: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("memory: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory: ping: %w", err)
	}
	if err := Migrate(ctx, pool, dims); err != nil {
		pool.Close()
		return nil, fmt.Errorf("memory: migrate: %w", err)
	}

	return &Store{pool: pool, embedder: embedder}, nil
}

// Close releases all connections held by the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Ping checks database connectivity. Suitable as a readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("memory: ping: %w", err)
	}
	return nil
}

// AppendTurn logs one side of an exchange and indexes its embedding. An
// embedding failure does not lose the turn: the row is stored without a
// vector and simply stays invisible to Recall.
func (s *Store) AppendTurn(ctx context.Context, sessionID, role, text string) error {
	if role != RoleUser && role != RoleCompanion {
		return fmt.Errorf("memory: unknown role %q", role)
	}

	var vec *pgvector.Vector
	if emb, err := s.embedder.Embed(ctx, text); err == nil {
		v := pgvector.NewVector(emb)
		vec = &v
	}

	const q = `
		INSERT INTO turns (session_id, role, text, embedding)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, q, sessionID, role, text, vec); err != nil {
		return fmt.Errorf("memory: append turn: %w", err)
	}
	return nil
}

// Recent returns the last limit turns of a session in chronological order.
func (s *Store) Recent(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	const q = `
		SELECT id, session_id, role, text, timestamp
		FROM  (SELECT id, session_id, role, text, timestamp
		       FROM   turns
		       WHERE  session_id = $1
		       ORDER  BY timestamp DESC, id DESC
		       LIMIT  $2) newest
		ORDER BY timestamp, id`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("memory: recent: %w", err)
	}
	turns, err := pgx.CollectRows(rows, scanTurn)
	if err != nil {
		return nil, fmt.Errorf("memory: scan rows: %w", err)
	}
	if turns == nil {
		turns = []Turn{}
	}
	return turns, nil
}

// Recall embeds the query and returns the topK most similar turns of the
// session by cosine distance, most similar first.
func (s *Store) Recall(ctx context.Context, sessionID, query string, topK int) ([]Recalled, error) {
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}

	const q = `
		SELECT id, session_id, role, text, timestamp,
		       embedding <=> $2 AS distance
		FROM   turns
		WHERE  session_id = $1
		  AND  embedding IS NOT NULL
		ORDER  BY distance
		LIMIT  $3`

	rows, err := s.pool.Query(ctx, q, sessionID, pgvector.NewVector(emb), topK)
	if err != nil {
		return nil, fmt.Errorf("memory: recall: %w", err)
	}
	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Recalled, error) {
		var r Recalled
		err := row.Scan(&r.ID, &r.SessionID, &r.Role, &r.Text, &r.Timestamp, &r.Distance)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("memory: scan rows: %w", err)
	}
	if results == nil {
		results = []Recalled{}
	}
	return results, nil
}

// ClearSession deletes every turn of a session.
func (s *Store) ClearSession(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("memory: clear session: %w", err)
	}
	return nil
}

func scanTurn(row pgx.CollectableRow) (Turn, error) {
	var t Turn
	err := row.Scan(&t.ID, &t.SessionID, &t.Role, &t.Text, &t.Timestamp)
	return t, err
}
