package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence: canonical
// transactions plus per-run snapshots of the derived tables. Derived tables
// are written whole once per run and never partially updated.
type Repository interface {
	// Transaction operations
	SaveTransactions(ctx context.Context, txs []*Transaction) error
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context) ([]*Transaction, error)
	ListTransactionsByCustomer(ctx context.Context, customerID string, since time.Time) ([]*Transaction, error)
	CountTransactions(ctx context.Context) (int64, error)

	// Run snapshot operations
	SaveRunResult(ctx context.Context, result *RunResult) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context) ([]*Run, error)
	GetRunResult(ctx context.Context, runID string) (*RunResult, error)
	DeleteRun(ctx context.Context, runID string) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
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
