// Package worker implements the Worker Runtime: a durable pull-consumer
// loop over the Stream Bus that dispatches each claimed job to a precog
// processor, retries transient failures with exponential backoff, and
// drains in-flight work on shutdown.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/registry"
	"github.com/malwarescan/oracle/internal/streaming"
	"github.com/malwarescan/oracle/internal/worker/precog"
)

const (
	batchSize     = 10
	blockMs       = 10_000
	maxRetries    = 3
	backoffBase   = time.Second
	shutdownDrain = 30 * time.Second
)

// Runtime owns one consumer's claim/dispatch/ack loop.
type Runtime struct {
	bus        streaming.StreamBus
	registry   *registry.Registry
	precogs    *precog.Registry
	consumer   string
	logger     *slog.Logger
	wg         sync.WaitGroup
	inFlightMu sync.Mutex
	inFlight   int
}

func NewRuntime(bus streaming.StreamBus, reg *registry.Registry, precogs *precog.Registry, consumer string) *Runtime {
	return &Runtime{
		bus:      bus,
		registry: reg,
		precogs:  precogs,
		consumer: consumer,
		logger:   slog.Default().With("component", "worker", "consumer", consumer),
	}
}

// Run blocks, pulling batches and dispatching each delivery to its own
// goroutine, until ctx is cancelled. It then waits up to shutdownDrain for
// in-flight jobs to finish before returning.
func (rt *Runtime) Run(ctx context.Context) error {
	if err := rt.bus.EnsureStreams(ctx); err != nil {
		return fmt.Errorf("worker: ensure streams: %w", err)
	}
	rt.logger.Info("worker runtime starting")

	for {
		select {
		case <-ctx.Done():
			return rt.drain()
		default:
		}

		deliveries, err := rt.bus.ReadGroup(ctx, rt.consumer, batchSize, blockMs)
		if err != nil {
			if ctx.Err() != nil {
				return rt.drain()
			}
			rt.logger.Error("read batch failed", "error", err)
			continue
		}

		for _, d := range deliveries {
			rt.wg.Add(1)
			rt.incInFlight()
			go func(d streaming.Delivery) {
				defer rt.wg.Done()
				defer rt.decInFlight()
				rt.handle(ctx, d)
			}(d)
		}
	}
}

func (rt *Runtime) incInFlight() {
	rt.inFlightMu.Lock()
	rt.inFlight++
	rt.inFlightMu.Unlock()
}

func (rt *Runtime) decInFlight() {
	rt.inFlightMu.Lock()
	rt.inFlight--
	rt.inFlightMu.Unlock()
}

func (rt *Runtime) drain() error {
	rt.logger.Info("worker runtime draining")
	done := make(chan struct{})
	go func() {
		rt.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		rt.logger.Info("worker runtime drained cleanly")
		return nil
	case <-time.After(shutdownDrain):
		rt.logger.Warn("worker runtime drain timed out", "shutdown_drain", shutdownDrain)
		return fmt.Errorf("worker: shutdown drain exceeded %s", shutdownDrain)
	}
}

// handle dispatches one delivery, retrying up to maxRetries with exponential
// backoff via Nak before writing the job to the dead-letter log.
func (rt *Runtime) handle(ctx context.Context, d streaming.Delivery) {
	msg := d.Message
	logger := rt.logger.With("job_id", msg.JobID, "precog", msg.Precog)

	jobID, err := uuid.Parse(msg.JobID)
	if err != nil {
		logger.Error("invalid job id in delivery, acking to drop", "error", err)
		_ = rt.bus.Ack(ctx, d)
		return
	}

	if err := rt.registry.MarkRunning(ctx, jobID); err != nil {
		logger.Error("mark running failed", "error", err)
	}

	processor, err := rt.precogs.Resolve(msg.Precog)
	if err != nil {
		rt.fail(ctx, d, msg, jobID, err, 0)
		return
	}

	emit := func(ctx context.Context, eventType string, data interface{}) error {
		_, err := rt.registry.Emit(ctx, jobID, eventType, data)
		return err
	}

	runErr := processor.Run(ctx, msg.Task, msg.Context, emit)
	if runErr != nil {
		rt.retry(ctx, d, msg, jobID, runErr)
		return
	}

	if err := rt.registry.MarkDone(ctx, jobID); err != nil {
		logger.Error("mark done failed", "error", err)
	}
	if err := rt.bus.Ack(ctx, d); err != nil {
		logger.Error("ack failed", "error", err)
	}
}

// retry backs off and Naks the delivery for redelivery, up to maxRetries,
// after which the job is written to the dead-letter log and marked errored.
// d.Delivered is 1 on first delivery, so attempt count is Delivered-1.
func (rt *Runtime) retry(ctx context.Context, d streaming.Delivery, msg streaming.JobMessage, jobID uuid.UUID, cause error) {
	logger := rt.logger.With("job_id", msg.JobID)

	attempt := d.Delivered - 1
	if attempt < 0 {
		attempt = 0
	}
	if attempt >= maxRetries {
		rt.fail(ctx, d, msg, jobID, cause, attempt)
		return
	}

	backoff := backoffBase * time.Duration(1<<attempt)
	logger.Warn("job failed, retrying", "attempt", attempt+1, "backoff", backoff, "error", cause)

	select {
	case <-time.After(backoff):
	case <-ctx.Done():
	}

	if err := rt.bus.Nak(ctx, d); err != nil {
		logger.Error("nak failed", "error", err)
	}
}

func (rt *Runtime) fail(ctx context.Context, d streaming.Delivery, msg streaming.JobMessage, jobID uuid.UUID, cause error, retries int) {
	logger := rt.logger.With("job_id", msg.JobID)
	logger.Error("job exhausted retries, writing to dead-letter log", "error", cause, "retries", retries)

	if err := rt.registry.MarkError(ctx, jobID, cause.Error()); err != nil {
		logger.Error("mark error failed", "error", err)
	}
	if _, err := rt.registry.Emit(ctx, jobID, domain.EventError, map[string]string{"message": cause.Error()}); err != nil {
		logger.Error("emit error event failed", "error", err)
	}

	dlqErr := rt.bus.WriteDLQ(ctx, streaming.DLQRecord{
		JobMessage: msg,
		Error:      cause.Error(),
		Retries:    retries,
	})
	if dlqErr != nil {
		logger.Error("write dlq failed", "error", dlqErr)
	}
	if err := rt.bus.Ack(ctx, d); err != nil {
		logger.Error("ack after dlq failed", "error", err)
	}
}
