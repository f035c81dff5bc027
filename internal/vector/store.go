// Package vector persists text chunks in named collections backed by
// Postgres with the pgvector extension and answers nearest-neighbour
// queries against them.
package vector

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// Embedder turns text into an embedding vector. Implemented by the Ollama
// client; tests substitute a fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Match struct {
	ID       string            `json:"id"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
	Distance float64           `json:"distance"`
}

type Store struct {
	pool     *pgxpool.Pool
	embedder Embedder
}

func NewStore(ctx context.Context, connString string, embedder Embedder) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	config.MaxConns = 10
	config.MaxConnLifetime = time.Hour

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{pool: pool, embedder: embedder}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	schema := `
    CREATE EXTENSION IF NOT EXISTS vector;

    CREATE TABLE IF NOT EXISTS collections (
        name TEXT PRIMARY KEY,
        created_at TIMESTAMPTZ DEFAULT NOW()
    );

    CREATE TABLE IF NOT EXISTS chunks (
        id TEXT NOT NULL,
        collection TEXT NOT NULL REFERENCES collections (name),
        content TEXT NOT NULL,
        metadata JSONB,
        embedding vector,
        PRIMARY KEY (collection, id)
    );
    `
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// EnsureCollection registers a collection, idempotently.
func (s *Store) EnsureCollection(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("failed to ensure collection %q: %w", name, err)
	}
	return nil
}

func (s *Store) collectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM collections WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check collection %q: %w", name, err)
	}
	return exists, nil
}

// Add embeds the documents and upserts them into the collection, creating
// the collection first if it does not exist yet. documents, metadatas and
// ids must be parallel slices.
func (s *Store) Add(ctx context.Context, collection string, documents []string, metadatas []map[string]string, ids []string) error {
	if len(documents) != len(ids) || (metadatas != nil && len(metadatas) != len(documents)) {
		return fmt.Errorf("documents, metadatas and ids must have equal length")
	}

	if err := s.EnsureCollection(ctx, collection); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, doc := range documents {
		embedding, err := s.embedder.Embed(ctx, doc)
		if err != nil {
			return fmt.Errorf("failed to embed document %s: %w", ids[i], err)
		}
		var metadata map[string]string
		if metadatas != nil {
			metadata = metadatas[i]
		}
		batch.Queue(
			`INSERT INTO chunks (id, collection, content, metadata, embedding)
             VALUES ($1, $2, $3, $4, $5)
             ON CONFLICT (collection, id) DO UPDATE
             SET content = EXCLUDED.content, metadata = EXCLUDED.metadata, embedding = EXCLUDED.embedding`,
			ids[i], collection, doc, metadata, pgvector.NewVector(embedding),
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := 0; i < len(documents); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert chunk %s: %w", ids[i], err)
		}
	}

	log.Printf("Added %d documents to collection %q", len(documents), collection)
	return nil
}

// Query returns the topN closest chunks to the query text. A query against
// an unknown collection is answered with an empty result rather than an
// error so a caller with nothing ingested yet still gets a response.
func (s *Store) Query(ctx context.Context, collection, text string, topN int) ([]Match, error) {
	if topN <= 0 {
		topN = 5
	}

	exists, err := s.collectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		log.Printf("Query against unknown collection %q, returning no matches", collection)
		return nil, nil
	}

	queryEmbedding, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, content, COALESCE(metadata, '{}'::jsonb), embedding <=> $1
         FROM chunks
         WHERE collection = $2
         ORDER BY embedding <=> $1
         LIMIT $3`,
		pgvector.NewVector(queryEmbedding), collection, topN,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %q: %w", collection, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Content, &m.Metadata, &m.Distance); err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
