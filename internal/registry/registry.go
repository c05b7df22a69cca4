// Package registry is the thin durable-state gateway shared by the API and
// the worker runtime: job lifecycle, monotone event append, and read-back
// for the fan-out tail loop.
package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/storage"
	"github.com/malwarescan/oracle/internal/streaming"
)

// Registry owns Job and Event lifecycle against the durable store.
type Registry struct {
	store storage.PostgresStore
}

func New(store storage.PostgresStore) *Registry {
	return &Registry{store: store}
}

// Submit inserts a new pending job. task defaults to a precog-specific
// default when empty; callers resolve that default before calling Submit
// since only the precog registry knows it.
func (r *Registry) Submit(ctx context.Context, precog, task string, jobCtx map[string]interface{}) (*domain.Job, error) {
	if precog == "" {
		return nil, fmt.Errorf("registry: missing precog")
	}
	job := &domain.Job{
		Precog:  precog,
		Task:    task,
		Context: jobCtx,
		Status:  domain.JobStatusPending,
	}
	if err := r.store.InsertJob(ctx, job); err != nil {
		return nil, fmt.Errorf("registry: submit job: %w", err)
	}
	return job, nil
}

func (r *Registry) GetJob(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return r.store.GetJob(ctx, jobID)
}

func (r *Registry) ListJobs(ctx context.Context, statusFilter string, limit int) ([]domain.Job, error) {
	return r.store.ListJobs(ctx, statusFilter, limit)
}

func (r *Registry) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	return r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusRunning, nil)
}

func (r *Registry) MarkDone(ctx context.Context, jobID uuid.UUID) error {
	return r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusDone, nil)
}

func (r *Registry) MarkError(ctx context.Context, jobID uuid.UUID, errMsg string) error {
	return r.store.UpdateJobStatus(ctx, jobID, domain.JobStatusError, &errMsg)
}

// Emit appends an event to a job's append-only log. The Registry assigns the
// monotone id; callers never set it themselves, so two subscribers tailing
// the same job always observe the same prefix-closed order.
func (r *Registry) Emit(ctx context.Context, jobID uuid.UUID, eventType string, data interface{}) (*domain.Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("registry: marshal event data: %w", err)
	}
	event, err := r.store.InsertEvent(ctx, jobID, eventType, raw)
	if err != nil {
		return nil, fmt.Errorf("registry: emit %s event: %w", eventType, err)
	}
	return event, nil
}

// EventsSince returns events with id > lastID, capped at max, for the
// fan-out poll loop.
func (r *Registry) EventsSince(ctx context.Context, jobID uuid.UUID, lastID int64, max int) ([]domain.Event, error) {
	return r.store.GetEventsSince(ctx, jobID, lastID, max)
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// WSBridgeSource adapts Registry to streaming.JobEventSource, whose caller
// (the WebSocket hub) only ever has a job id in string form off the wire.
type WSBridgeSource struct {
	Registry *Registry
}

func (s WSBridgeSource) EventsSince(ctx context.Context, jobID string, lastID int64, max int) ([]streaming.JobEvent, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, fmt.Errorf("registry: invalid job id %q: %w", jobID, err)
	}
	events, err := s.Registry.EventsSince(ctx, id, lastID, max)
	if err != nil {
		return nil, err
	}
	out := make([]streaming.JobEvent, len(events))
	for i, ev := range events {
		out[i] = streaming.JobEvent{ID: ev.ID, Type: ev.Type, Data: ev.Data}
	}
	return out, nil
}
