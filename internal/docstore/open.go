package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

var ErrUnknownDriver = errors.New("docstore: unknown driver")

type Config struct {
	Driver          string
	SQLite          *gorm.DB
	PostgresURL     string
	ConnectAttempts int
	Logger          *zap.Logger
}

// Open builds the configured backend and waits until it answers a ping.
// Connection attempts back off exponentially up to ConnectAttempts.
func Open(ctx context.Context, cfg Config) (Store, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.ConnectAttempts
	if attempts < 1 {
		attempts = 1
	}

	retry := &backoff.Backoff{
		Min:    200 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		store, err := connect(ctx, cfg)
		if err == nil {
			if attempt > 1 {
				logger.Info("step store connected", zap.String("driver", cfg.Driver), zap.Int("attempt", attempt))
			}
			return store, nil
		}
		if errors.Is(err, ErrUnknownDriver) {
			return nil, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		wait := retry.Duration()
		logger.Warn("step store unavailable, retrying",
			zap.String("driver", cfg.Driver),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect %s store after %d attempts: %w", cfg.Driver, attempts, lastErr)
}

func connect(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", DriverSQLite:
		if cfg.SQLite == nil {
			return nil, errors.New("sqlite store requires a database handle")
		}
		store := NewSQLiteStore(cfg.SQLite)
		if err := store.Ping(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case DriverPostgres:
		if strings.TrimSpace(cfg.PostgresURL) == "" {
			return nil, errors.New("postgres store requires POSTGRES_URL")
		}
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres pool: %w", err)
		}
		store := NewPostgresStore(pool)
		if err := store.Ping(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
