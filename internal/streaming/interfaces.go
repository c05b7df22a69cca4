package streaming

import "context"

// JobMessage is the payload handed off from the Dispatcher to the Worker
// Runtime over the Stream Bus.
type JobMessage struct {
	JobID   string                 `json:"job_id"`
	Precog  string                 `json:"precog"`
	Task    string                 `json:"task"`
	Context map[string]interface{} `json:"context"`
}

// DLQRecord is the payload written to the dead-letter log once a job
// exhausts its retry budget.
type DLQRecord struct {
	JobMessage
	Error   string `json:"error"`
	Retries int    `json:"retries"`
}

// StreamBus is the replicated log abstraction used for job handoff. The
// jobs log has a single named consumer group. ReadGroup takes a consumer
// name, but the NATS implementation does not use it: every worker pulls
// through the same durable "workers" consumer.
type StreamBus interface {
	EnsureStreams(ctx context.Context) error
	Enqueue(ctx context.Context, msg JobMessage) (string, error)
	ReadGroup(ctx context.Context, consumer string, count int, blockMs int) ([]Delivery, error)
	Ack(ctx context.Context, d Delivery) error
	Nak(ctx context.Context, d Delivery) error
	WriteDLQ(ctx context.Context, rec DLQRecord) error
	Ping(ctx context.Context) error
	Close()
}

// Delivery is one message claimed off the jobs stream by a consumer.
type Delivery struct {
	ID        string
	Message   JobMessage
	Delivered int // redelivery count, 1 on first delivery
	ack       func() error
	nak       func() error
}
