package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	jobsStreamName    = "JOBS"
	jobsDLQStreamName = "JOBS_DLQ"
	jobsSubject       = "jobs.submit"
	jobsDLQSubject    = "jobs.dlq"
	jobsConsumerGroup = "workers"
)

// NATSClient is a StreamBus backed by NATS JetStream. The jobs stream uses
// WorkQueuePolicy so each message is claimed by exactly one consumer within
// the "workers" durable consumer group until acked.
type NATSClient struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	cons   jetstream.Consumer
	logger *slog.Logger
}

// NewNATSClient connects to a NATS server and enables JetStream.
func NewNATSClient(url string) (*NATSClient, error) {
	logger := slog.Default().With("component", "streambus")

	opts := []nats.Option{
		nats.Name("oracle"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	return &NATSClient{conn: nc, js: js, logger: logger}, nil
}

// Close drains the connection (flushes pending messages) and disconnects.
func (c *NATSClient) Close() {
	if c.conn != nil {
		_ = c.conn.Drain()
	}
}

// EnsureStreams creates the jobs work queue and the dead-letter log if they
// do not already exist, and registers the shared pull consumer group.
func (c *NATSClient) EnsureStreams(ctx context.Context) error {
	jobsCfg := jetstream.StreamConfig{
		Name:        jobsStreamName,
		Description: "primary work queue for job handoff",
		Subjects:    []string{jobsSubject},
		Retention:   jetstream.WorkQueuePolicy,
		MaxAge:      24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxBytes:    1 * 1024 * 1024 * 1024,
	}

	dlqCfg := jetstream.StreamConfig{
		Name:        jobsDLQStreamName,
		Description: "dead letters for jobs that exhausted their retry budget",
		Subjects:    []string{jobsDLQSubject},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Discard:     jetstream.DiscardOld,
		MaxBytes:    512 * 1024 * 1024,
	}

	for _, cfg := range []jetstream.StreamConfig{jobsCfg, dlqCfg} {
		if _, err := c.js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
		c.logger.Info("JetStream stream ready", "stream", cfg.Name)
	}

	cons, err := c.js.CreateOrUpdateConsumer(ctx, jobsStreamName, jetstream.ConsumerConfig{
		Durable:       jobsConsumerGroup,
		FilterSubject: jobsSubject,
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
		MaxDeliver:    5,
		AckWait:       30 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("ensure consumer group %s: %w", jobsConsumerGroup, err)
	}
	c.cons = cons

	return nil
}

// Enqueue appends a job message to the jobs stream and returns its sequence id.
func (c *NATSClient) Enqueue(ctx context.Context, msg JobMessage) (string, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("marshal job message: %w", err)
	}
	ack, err := c.js.Publish(ctx, jobsSubject, data)
	if err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", msg.JobID, err)
	}
	return fmt.Sprintf("%d", ack.Sequence), nil
}

// ReadGroup blocks up to blockMs for at most count new messages from the
// shared "workers" durable consumer. The consumer argument is not used.
func (c *NATSClient) ReadGroup(ctx context.Context, consumer string, count int, blockMs int) ([]Delivery, error) {
	if c.cons == nil {
		return nil, errors.New("streambus: consumer group not initialized, call EnsureStreams first")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, time.Duration(blockMs)*time.Millisecond)
	defer cancel()

	batch, err := c.cons.Fetch(count, jetstream.FetchMaxWait(time.Duration(blockMs)*time.Millisecond))
	if err != nil {
		return nil, fmt.Errorf("fetch batch: %w", err)
	}

	var deliveries []Delivery
	for msg := range batch.Messages() {
		if fetchCtx.Err() != nil {
			break
		}
		var jm JobMessage
		if err := json.Unmarshal(msg.Data(), &jm); err != nil {
			c.logger.Error("unmarshal job message, terminating", "error", err)
			_ = msg.TermWithReason("unmarshal error")
			continue
		}
		meta, _ := msg.Metadata()
		seq := uint64(0)
		delivered := 1
		if meta != nil {
			seq = meta.Sequence.Stream
			delivered = int(meta.NumDelivered)
		}
		deliveries = append(deliveries, Delivery{
			ID:        fmt.Sprintf("%d", seq),
			Message:   jm,
			Delivered: delivered,
			ack:       msg.Ack,
			nak:       func() error { return msg.Nak() },
		})
	}
	if err := batch.Error(); err != nil {
		return deliveries, fmt.Errorf("fetch batch error: %w", err)
	}
	return deliveries, nil
}

// Ack removes the pending marker for the given delivery.
func (c *NATSClient) Ack(ctx context.Context, d Delivery) error {
	if d.ack == nil {
		return nil
	}
	return d.ack()
}

// Nak signals immediate redelivery, putting the message back for any
// worker to claim.
func (c *NATSClient) Nak(ctx context.Context, d Delivery) error {
	if d.nak == nil {
		return nil
	}
	return d.nak()
}

// WriteDLQ publishes a dead-letter record carrying the original payload and
// the error that exhausted its retry budget.
func (c *NATSClient) WriteDLQ(ctx context.Context, rec DLQRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dlq record: %w", err)
	}
	if _, err := c.js.Publish(ctx, jobsDLQSubject, data); err != nil {
		return fmt.Errorf("publish dlq record for job %s: %w", rec.JobID, err)
	}
	return nil
}

// Ping verifies the NATS connection is alive and JetStream is available.
func (c *NATSClient) Ping(ctx context.Context) error {
	if !c.conn.IsConnected() {
		return fmt.Errorf("nats: not connected")
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := c.js.AccountInfo(pingCtx); err != nil {
		return fmt.Errorf("nats jetstream ping: %w", err)
	}
	return nil
}

var _ StreamBus = (*NATSClient)(nil)
