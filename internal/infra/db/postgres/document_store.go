package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"analytics-ai-core/internal/domain"
	"analytics-ai-core/internal/domain/ports/repository"
)

var _ repository.DocumentStore = (*documentStore)(nil)

// documentStore is a JSONB-backed implementation of the named-collection
// get/put/delete contract.
//
// Schema:
//
//	CREATE TABLE documents (
//	  collection  text NOT NULL,
//	  id          text NOT NULL,
//	  body        jsonb NOT NULL,
//	  updated_at  timestamptz NOT NULL,
//	  PRIMARY KEY (collection, id)
//	);
type documentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) *documentStore {
	return &documentStore{pool: pool}
}

func (s *documentStore) Put(ctx context.Context, collection, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO documents (collection, id, body, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (collection, id) DO UPDATE SET
  body = EXCLUDED.body,
  updated_at = EXCLUDED.updated_at;`
	_, err = s.pool.Exec(ctx, q, collection, id, body, time.Now())
	return err
}

func (s *documentStore) Get(ctx context.Context, collection, id string, out any) error {
	const q = `SELECT body FROM documents WHERE collection = $1 AND id = $2;`
	var body []byte
	if err := s.pool.QueryRow(ctx, q, collection, id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(body, out)
}

func (s *documentStore) Delete(ctx context.Context, collection, id string) error {
	const q = `DELETE FROM documents WHERE collection = $1 AND id = $2;`
	tag, err := s.pool.Exec(ctx, q, collection, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
