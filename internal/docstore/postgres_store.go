package docstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
  collection TEXT NOT NULL,
  id TEXT NOT NULL,
  fields JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_documents_user_id ON documents (collection, (fields->>'userId'));`

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (store *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := store.pool.Exec(ctx, postgresSchemaSQL); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (store *PostgresStore) Ping(ctx context.Context) error {
	if err := store.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

func (store *PostgresStore) Query(ctx context.Context, collection string, filter Filter) ([]Document, error) {
	if err := validateQuery(collection, filter); err != nil {
		return nil, err
	}

	rows, err := store.pool.Query(ctx,
		`SELECT id, fields FROM documents WHERE collection = $1 AND fields->>$2 = $3`,
		collection, filter.Field, filter.Value,
	)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	documents := make([]Document, 0)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan %s row: %w", collection, err)
		}
		fields, err := DecodeFields(raw)
		if err != nil {
			return nil, fmt.Errorf("document %s/%s: %w", collection, id, err)
		}
		documents = append(documents, Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s rows: %w", collection, err)
	}
	return documents, nil
}

func (store *PostgresStore) Put(ctx context.Context, collection string, document Document) error {
	if err := validatePut(collection, document); err != nil {
		return err
	}

	encoded, err := EncodeFields(document.Fields)
	if err != nil {
		return err
	}
	if _, err := store.pool.Exec(ctx, `
INSERT INTO documents (collection, id, fields) VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET fields = EXCLUDED.fields`,
		collection, document.ID, string(encoded),
	); err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, document.ID, err)
	}
	return nil
}

func (store *PostgresStore) Close() error {
	store.pool.Close()
	return nil
}
