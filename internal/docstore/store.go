// Package docstore is a small document store: collections of JSON
// documents queried by an equality filter on a top-level field.
package docstore

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidFilter   = errors.New("docstore: filter field is required")
	ErrInvalidDocument = errors.New("docstore: document id is required")
	ErrInvalidName     = errors.New("docstore: collection name is required")
)

type Document struct {
	ID     string
	Fields map[string]any
}

// Filter matches documents whose top-level Field equals Value.
type Filter struct {
	Field string
	Value string
}

// Store is implemented by every backend.
type Store interface {
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
	Query(ctx context.Context, collection string, filter Filter) ([]Document, error)
	Put(ctx context.Context, collection string, document Document) error
	Close() error
}

func validateQuery(collection string, filter Filter) error {
	if strings.TrimSpace(collection) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(filter.Field) == "" {
		return ErrInvalidFilter
	}
	return nil
}

func validatePut(collection string, document Document) error {
	if strings.TrimSpace(collection) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(document.ID) == "" {
		return ErrInvalidDocument
	}
	return nil
}
