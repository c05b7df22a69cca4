package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseClient is a durable counter sink for /metrics. The in-process
// exposition writer (internal/metrics) holds the authoritative counters in
// memory and periodically flushes deltas here so restarts don't lose
// cumulative totals.
type ClickHouseClient struct {
	conn driver.Conn
}

// NewClickHouseClient creates a new ClickHouse client from the given DSN.
// The DSN format follows the clickhouse-go v2 convention, e.g.
// "clickhouse://localhost:9000/oracle".
func NewClickHouseClient(ctx context.Context, dsn string) (*ClickHouseClient, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: parse dsn: %w", err)
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: open: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse: ping: %w", err)
	}

	return &ClickHouseClient{conn: conn}, nil
}

// Close releases the underlying connection pool.
func (c *ClickHouseClient) Close() error {
	return c.conn.Close()
}

// Ping verifies connectivity to ClickHouse.
func (c *ClickHouseClient) Ping(ctx context.Context) error {
	return c.conn.Ping(ctx)
}

// IncrCounter records a counter delta observed since the last flush. Rows
// are append-only; ReadCounters sums them per name so a crash between
// flushes never double-counts or loses a delta.
func (c *ClickHouseClient) IncrCounter(ctx context.Context, name string, delta int64) error {
	batch, err := c.conn.PrepareBatch(ctx, `
		INSERT INTO metric_deltas (name, delta, recorded_at)
	`)
	if err != nil {
		return fmt.Errorf("clickhouse: prepare metric batch: %w", err)
	}
	if err := batch.Append(name, delta, time.Now().UTC()); err != nil {
		return fmt.Errorf("clickhouse: append metric delta: %w", err)
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("clickhouse: send metric delta: %w", err)
	}
	return nil
}

// ReadCounters returns the current cumulative value of every counter,
// summed across all recorded deltas.
func (c *ClickHouseClient) ReadCounters(ctx context.Context) (map[string]int64, error) {
	rows, err := c.conn.Query(ctx, `
		SELECT name, sum(delta) AS total
		FROM metric_deltas
		GROUP BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: read counters: %w", err)
	}
	defer rows.Close()

	counters := make(map[string]int64)
	for rows.Next() {
		var name string
		var total int64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("clickhouse: scan counter: %w", err)
		}
		counters[name] = total
	}
	return counters, rows.Err()
}

var _ MetricsSink = (*ClickHouseClient)(nil)
