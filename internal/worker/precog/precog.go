// Package precog holds the pluggable per-task processors the Worker Runtime
// dispatches a claimed job to. Each processor owns the shape of its own
// context payload and emits event types from the shared vocabulary in
// internal/domain.
package precog

import (
	"context"
	"fmt"
)

// Emitter appends one event to a job's event log. The Worker Runtime passes
// a closure bound to the job id so processors never see job bookkeeping.
type Emitter func(ctx context.Context, eventType string, data interface{}) error

// Processor runs one precog task to completion, emitting events as it goes.
// Run must emit EventAnswerComplete (or EventError) as its final event. The
// Worker Runtime does not check this: it retries only when Run returns an
// error, and marks the job done whenever Run returns nil.
type Processor interface {
	Run(ctx context.Context, task string, jobCtx map[string]interface{}, emit Emitter) error
}

// Registry resolves a precog tag to the Processor that handles it.
type Registry struct {
	processors map[string]Processor
	fallback   Processor
}

func NewRegistry(fallback Processor) *Registry {
	return &Registry{
		processors: make(map[string]Processor),
		fallback:   fallback,
	}
}

func (r *Registry) Register(precog string, p Processor) {
	r.processors[precog] = p
}

// Resolve returns the processor for precog, falling back to the registry's
// default general-purpose processor when no specific one is registered.
func (r *Registry) Resolve(precog string) (Processor, error) {
	if p, ok := r.processors[precog]; ok {
		return p, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("precog: no processor registered for %q and no fallback configured", precog)
}
