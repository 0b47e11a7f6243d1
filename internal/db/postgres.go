package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresSource reads records from an existing PostgreSQL deployment that
// uses the same table layout as the SQLite store. It never writes.
type PostgresSource struct {
	datasetLoader
}

// NewPostgresSource connects to url and verifies the connection.
func NewPostgresSource(ctx context.Context, url string) (*PostgresSource, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresSource{datasetLoader: datasetLoader{
		db:      db,
		timeArg: func(t time.Time) any { return t.UTC() },
	}}, nil
}

// Close releases the connection pool.
func (p *PostgresSource) Close() error { return p.db.Close() }

// Ping verifies the connection is alive.
func (p *PostgresSource) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }
