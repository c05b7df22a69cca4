//go:build integration

package streaming

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func natsURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = "nats://localhost:4222"
	}
	return url
}

func setupClient(t *testing.T) *NATSClient {
	t.Helper()
	client, err := NewNATSClient(natsURL(t))
	require.NoError(t, err, "failed to connect to NATS")
	t.Cleanup(func() { client.Close() })
	return client
}

func TestNewNATSClient(t *testing.T) {
	client := setupClient(t)
	assert.NotNil(t, client.conn)
	assert.NotNil(t, client.js)
}

func TestPing(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	require.NoError(t, client.EnsureStreams(ctx))
	assert.NoError(t, client.Ping(ctx))
}

func TestEnsureStreams(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()

	err := client.EnsureStreams(ctx)
	require.NoError(t, err)

	// Calling again should be idempotent.
	err = client.EnsureStreams(ctx)
	require.NoError(t, err)
}

func TestEnqueueAndReadGroup(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	require.NoError(t, client.EnsureStreams(ctx))

	jobID := uuid.New().String()
	msg := JobMessage{
		JobID:  jobID,
		Precog: "schema",
		Task:   "extract facts",
		Context: map[string]interface{}{
			"domain_name": "example.com",
		},
	}

	seq, err := client.Enqueue(ctx, msg)
	require.NoError(t, err)
	assert.NotEmpty(t, seq)

	consumer := fmt.Sprintf("worker-%d", os.Getpid())
	deliveries, err := client.ReadGroup(ctx, consumer, 10, 3000)
	require.NoError(t, err)
	require.NotEmpty(t, deliveries)

	var found *Delivery
	for i := range deliveries {
		if deliveries[i].Message.JobID == jobID {
			found = &deliveries[i]
			break
		}
	}
	require.NotNil(t, found, "enqueued job should be present in the fetched batch")
	assert.Equal(t, "schema", found.Message.Precog)

	require.NoError(t, client.Ack(ctx, *found))
}

func TestReadGroupTimesOutWithNoMessages(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	require.NoError(t, client.EnsureStreams(ctx))

	consumer := fmt.Sprintf("worker-idle-%d", os.Getpid())
	start := time.Now()
	deliveries, err := client.ReadGroup(ctx, consumer, 5, 500)
	require.NoError(t, err)
	assert.Empty(t, deliveries)
	assert.WithinDuration(t, start.Add(500*time.Millisecond), time.Now(), 500*time.Millisecond)
}

func TestWriteDLQ(t *testing.T) {
	client := setupClient(t)
	ctx := context.Background()
	require.NoError(t, client.EnsureStreams(ctx))

	rec := DLQRecord{
		JobMessage: JobMessage{
			JobID:  uuid.New().String(),
			Precog: "schema",
			Task:   "extract facts",
		},
		Error:   "upstream fetch failed after 3 attempts",
		Retries: 3,
	}

	err := client.WriteDLQ(ctx, rec)
	require.NoError(t, err)
}

func TestConnectionFailure(t *testing.T) {
	_, err := NewNATSClient("nats://invalid-host:4222")
	assert.Error(t, err, "connecting to invalid host should fail")
}
