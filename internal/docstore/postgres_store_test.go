//go:build integration

package docstore

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	url := os.Getenv("POSTGRES_TEST_URL")
	if url == "" {
		t.Skip("POSTGRES_TEST_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, Config{
		Driver:          DriverPostgres,
		PostgresURL:     url,
		ConnectAttempts: 3,
		Logger:          zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	defer store.Close()

	collection := "steps_" + uuid.NewString()
	instant := time.Date(2024, time.May, 5, 7, 0, 0, 0, time.UTC)
	require.NoError(t, store.Put(ctx, collection, Document{ID: "a", Fields: map[string]any{"userId": "u-1", "steps": 42, "timestamp": instant}}))
	require.NoError(t, store.Put(ctx, collection, Document{ID: "b", Fields: map[string]any{"userId": "u-2", "steps": 1}}))

	documents, err := store.Query(ctx, collection, Filter{Field: "userId", Value: "u-1"})
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, json.Number("42"), documents[0].Fields["steps"])
	assert.IsType(t, Timestamp{}, documents[0].Fields["timestamp"])
}
