package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// ---------------------------------------------------------------------------
// ClickHouseClient satisfies MetricsSink
// ---------------------------------------------------------------------------

func TestClickHouseClientImplementsMetricsSink(t *testing.T) {
	var _ MetricsSink = (*ClickHouseClient)(nil)
}

// ---------------------------------------------------------------------------
// NewClickHouseClient: a malformed DSN must fail at parse time, before any
// network dial is attempted.
// ---------------------------------------------------------------------------

func TestNewClickHouseClient_InvalidDSN(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
	}{
		{"empty dsn", ""},
		{"not a url", "::not-a-dsn::"},
		{"wrong scheme", "postgres://localhost:5432/oracle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClickHouseClient(t.Context(), tt.dsn)
			assert.Error(t, err)
		})
	}
}
