package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/registry"
	"github.com/malwarescan/oracle/internal/streaming"
	"github.com/malwarescan/oracle/internal/testutil"
	"github.com/malwarescan/oracle/internal/worker/precog"
)

// stubProcessor runs a canned sequence of emits and returns a canned error.
type stubProcessor struct {
	events []struct {
		typ  string
		data interface{}
	}
	err error
}

func (p *stubProcessor) Run(ctx context.Context, task string, jobCtx map[string]interface{}, emit precog.Emitter) error {
	for _, e := range p.events {
		if err := emit(ctx, e.typ, e.data); err != nil {
			return err
		}
	}
	return p.err
}

func newTestRuntime(t *testing.T, bus *testutil.MockStreamBus, store *testutil.MockPostgresStore, reg *precog.Registry) *Runtime {
	t.Helper()
	return NewRuntime(bus, registry.New(store), reg, "test-consumer-1")
}

func TestRuntime_Handle_SuccessPath(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	bus := new(testutil.MockStreamBus)

	jobID := uuid.New()
	delivery := streaming.Delivery{
		ID:        "1",
		Message:   streaming.JobMessage{JobID: jobID.String(), Precog: "general", Task: "say hi"},
		Delivered: 1,
	}

	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusRunning, (*string)(nil)).Return(nil)
	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusDone, (*string)(nil)).Return(nil)
	store.On("InsertEvent", mock.Anything, jobID, "answer.complete", mock.Anything).
		Return(&domain.Event{ID: 1, JobID: jobID, Type: "answer.complete"}, nil)
	bus.On("Ack", mock.Anything, delivery).Return(nil)

	reg := precog.NewRegistry(nil)
	reg.Register("general", &stubProcessor{
		events: []struct {
			typ  string
			data interface{}
		}{{typ: "answer.complete", data: map[string]string{"text": "hi"}}},
	})

	rt := newTestRuntime(t, bus, store, reg)
	rt.handle(context.Background(), delivery)

	store.AssertExpectations(t)
	bus.AssertExpectations(t)
}

func TestRuntime_Handle_InvalidJobID_Drops(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	bus := new(testutil.MockStreamBus)

	delivery := streaming.Delivery{
		ID:      "1",
		Message: streaming.JobMessage{JobID: "not-a-uuid", Precog: "general"},
	}
	bus.On("Ack", mock.Anything, delivery).Return(nil)

	reg := precog.NewRegistry(nil)
	rt := newTestRuntime(t, bus, store, reg)
	rt.handle(context.Background(), delivery)

	bus.AssertExpectations(t)
	store.AssertNotCalled(t, "UpdateJobStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRuntime_Handle_NoProcessor_WritesDLQImmediately(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	bus := new(testutil.MockStreamBus)

	jobID := uuid.New()
	delivery := streaming.Delivery{
		ID:        "1",
		Message:   streaming.JobMessage{JobID: jobID.String(), Precog: "unknown"},
		Delivered: 1,
	}

	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusRunning, (*string)(nil)).Return(nil)
	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusError, mock.AnythingOfType("*string")).Return(nil)
	store.On("InsertEvent", mock.Anything, jobID, domain.EventError, mock.Anything).
		Return(&domain.Event{ID: 1, JobID: jobID, Type: domain.EventError}, nil)
	bus.On("WriteDLQ", mock.Anything, mock.AnythingOfType("streaming.DLQRecord")).Return(nil)
	bus.On("Ack", mock.Anything, delivery).Return(nil)

	reg := precog.NewRegistry(nil) // no fallback registered
	rt := newTestRuntime(t, bus, store, reg)
	rt.handle(context.Background(), delivery)

	bus.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestRuntime_Handle_ProcessorError_RetriesWithinBudget(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	bus := new(testutil.MockStreamBus)

	jobID := uuid.New()
	delivery := streaming.Delivery{
		ID:        "1",
		Message:   streaming.JobMessage{JobID: jobID.String(), Precog: "general"},
		Delivered: 1, // first attempt
	}

	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusRunning, (*string)(nil)).Return(nil)
	bus.On("Nak", mock.Anything, delivery).Return(nil)

	reg := precog.NewRegistry(nil)
	reg.Register("general", &stubProcessor{err: errors.New("transient upstream failure")})

	rt := newTestRuntime(t, bus, store, reg)

	start := time.Now()
	rt.handle(context.Background(), delivery)
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, backoffBase)
	bus.AssertExpectations(t)
	bus.AssertNotCalled(t, "WriteDLQ", mock.Anything, mock.Anything)
}

func TestRuntime_Handle_ProcessorError_ExhaustsRetries(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	bus := new(testutil.MockStreamBus)

	jobID := uuid.New()
	delivery := streaming.Delivery{
		ID:        "1",
		Message:   streaming.JobMessage{JobID: jobID.String(), Precog: "general"},
		Delivered: maxRetries + 1,
	}

	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusRunning, (*string)(nil)).Return(nil)
	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusError, mock.AnythingOfType("*string")).Return(nil)
	store.On("InsertEvent", mock.Anything, jobID, domain.EventError, mock.Anything).
		Return(&domain.Event{ID: 2, JobID: jobID, Type: domain.EventError}, nil)
	bus.On("WriteDLQ", mock.Anything, mock.MatchedBy(func(rec streaming.DLQRecord) bool {
		return rec.JobID == jobID.String() && rec.Retries == maxRetries
	})).Return(nil)
	bus.On("Ack", mock.Anything, delivery).Return(nil)

	reg := precog.NewRegistry(nil)
	reg.Register("general", &stubProcessor{err: errors.New("still broken")})

	rt := newTestRuntime(t, bus, store, reg)
	rt.handle(context.Background(), delivery)

	bus.AssertExpectations(t)
	store.AssertExpectations(t)
	bus.AssertNotCalled(t, "Nak", mock.Anything, mock.Anything)
}

func TestRuntime_Run_DrainsOnContextCancel(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	bus := new(testutil.MockStreamBus)

	bus.On("EnsureStreams", mock.Anything).Return(nil)
	bus.On("ReadGroup", mock.Anything, "test-consumer-1", batchSize, blockMs).
		Return([]streaming.Delivery{}, nil).Maybe()

	reg := precog.NewRegistry(nil)
	rt := newTestRuntime(t, bus, store, reg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestPrecogRegistry_ResolveFallback(t *testing.T) {
	fallback := &stubProcessor{}
	reg := precog.NewRegistry(fallback)

	p, err := reg.Resolve("anything")
	require.NoError(t, err)
	assert.Same(t, precog.Processor(fallback), p)
}

func TestPrecogRegistry_ResolveNoFallback(t *testing.T) {
	reg := precog.NewRegistry(nil)

	_, err := reg.Resolve("anything")
	assert.Error(t, err)
}

func TestPrecogRegistry_ResolveSpecific(t *testing.T) {
	specific := &stubProcessor{}
	reg := precog.NewRegistry(nil)
	reg.Register("schema", specific)

	p, err := reg.Resolve("schema")
	require.NoError(t, err)
	assert.Same(t, precog.Processor(specific), p)
}
