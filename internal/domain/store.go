package domain

import (
	"context"
	"time"
)

// ResultStore persists batch results and review rules. Results are
// immutable once saved; Save must be atomic so a reader never observes
// a partially written batch.
type ResultStore interface {
	// SaveResult stores a complete result under its identifier.
	SaveResult(ctx context.Context, result *Result) error

	// GetResult retrieves a result by identifier.
	// Returns ErrNotFound when the identifier is unknown.
	GetResult(ctx context.Context, id string) (*Result, error)

	// ListResults returns saved results ordered by creation time,
	// most recent first, without per-record payloads.
	ListResults(ctx context.Context) ([]*ResultSummary, error)

	// PurgeResult deletes a result and its predictions.
	// Returns ErrNotFound when the identifier is unknown.
	PurgeResult(ctx context.Context, id string) error

	// Review rule configuration.
	SaveReviewRule(ctx context.Context, rule *ReviewRule) error
	ListReviewRules(ctx context.Context) ([]*ReviewRule, error)
	DeleteReviewRule(ctx context.Context, id string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// StoreConfig holds configuration for result store initialization.
type StoreConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
