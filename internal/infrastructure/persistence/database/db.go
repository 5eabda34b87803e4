// Package database provides the query execution layer shared by every
// repository: timeouts, slow-query detection, and schema management.
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/popforge/popforge-go/internal/infrastructure/observability/logging"
	"github.com/popforge/popforge-go/pkg/config"
)

// DB wraps a shop's sql.DB with query timeouts and slow-query logging.
type DB struct {
	conn       *sql.DB
	shopDomain string
	logger     *logging.ChanneledLogger
}

func New(conn *sql.DB, shopDomain string, logger *logging.ChanneledLogger) *DB {
	return &DB{conn: conn, shopDomain: shopDomain, logger: logger}
}

// Conn exposes the underlying connection for transactions.
func (db *DB) Conn() *sql.DB { return db.conn }

// ShopDomain returns the owning shop's domain.
func (db *DB) ShopDomain() string { return db.shopDomain }

func (db *DB) observe(query string, start time.Time) {
	elapsed := time.Since(start)
	if elapsed > config.SlowQueryThreshold && db.logger != nil {
		db.logger.LogSlowQuery(query, elapsed, db.shopDomain)
	}
}

// QueryTimeout bounds one repository read. Repositories wrap the whole
// operation, query and scan together, so the deadline outlives the returned
// rows.
func QueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, config.DBQueryTimeout)
}

// QueryContext runs a query. The deadline belongs to the caller; cancelling
// here would tear down rows the caller has yet to scan. See QueryTimeout.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	db.observe(query, start)
	return rows, err
}

// QueryRowContext runs a single-row query. As with QueryContext, the caller
// owns the deadline because the row is scanned after this returns.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	start := time.Now()
	row := db.conn.QueryRowContext(ctx, query, args...)
	db.observe(query, start)
	return row
}

// ExecContext runs a statement with the configured timeout.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DBQueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := db.conn.ExecContext(ctx, query, args...)
	db.observe(query, start)
	return result, err
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, config.DBQueryTimeout)
	defer cancel()
	return db.conn.PingContext(ctx)
}
