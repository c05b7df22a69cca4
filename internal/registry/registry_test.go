package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/testutil"
)

func TestRegistry_Submit(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("InsertJob", mock.Anything, mock.AnythingOfType("*domain.Job")).Return(nil)

	reg := New(store)
	job, err := reg.Submit(context.Background(), "general", "answer a question", map[string]interface{}{"prompt": "hi"})

	require.NoError(t, err)
	assert.Equal(t, "general", job.Precog)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	store.AssertExpectations(t)
}

func TestRegistry_Submit_MissingPrecog(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	reg := New(store)

	_, err := reg.Submit(context.Background(), "", "task", nil)
	assert.Error(t, err)
	store.AssertNotCalled(t, "InsertJob", mock.Anything, mock.Anything)
}

func TestRegistry_GetJob(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	jobID := uuid.New()
	want := &domain.Job{ID: jobID, Precog: "general"}
	store.On("GetJob", mock.Anything, jobID).Return(want, nil)

	reg := New(store)
	got, err := reg.GetJob(context.Background(), jobID)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRegistry_MarkRunning(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	jobID := uuid.New()
	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusRunning, (*string)(nil)).Return(nil)

	reg := New(store)
	require.NoError(t, reg.MarkRunning(context.Background(), jobID))
	store.AssertExpectations(t)
}

func TestRegistry_MarkDone(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	jobID := uuid.New()
	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusDone, (*string)(nil)).Return(nil)

	reg := New(store)
	require.NoError(t, reg.MarkDone(context.Background(), jobID))
}

func TestRegistry_MarkError(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	jobID := uuid.New()
	store.On("UpdateJobStatus", mock.Anything, jobID, domain.JobStatusError, mock.AnythingOfType("*string")).Return(nil)

	reg := New(store)
	require.NoError(t, reg.MarkError(context.Background(), jobID, "boom"))
}

func TestRegistry_Emit(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	jobID := uuid.New()
	want := &domain.Event{ID: 1, JobID: jobID, Type: "thinking"}
	store.On("InsertEvent", mock.Anything, jobID, "thinking", mock.Anything).Return(want, nil)

	reg := New(store)
	ev, err := reg.Emit(context.Background(), jobID, "thinking", map[string]string{"status": "working"})

	require.NoError(t, err)
	assert.Equal(t, want, ev)
}

func TestRegistry_Emit_MarshalAndStoreErrors(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	jobID := uuid.New()
	store.On("InsertEvent", mock.Anything, jobID, "thinking", mock.Anything).Return(nil, errors.New("db down"))

	reg := New(store)
	_, err := reg.Emit(context.Background(), jobID, "thinking", map[string]string{"x": "y"})
	assert.Error(t, err)
}

func TestRegistry_EventsSince(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	jobID := uuid.New()
	want := []domain.Event{{ID: 2, JobID: jobID, Type: "answer.delta"}}
	store.On("GetEventsSince", mock.Anything, jobID, int64(1), 1000).Return(want, nil)

	reg := New(store)
	got, err := reg.EventsSince(context.Background(), jobID, 1, 1000)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRegistry_ListJobs(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	want := []domain.Job{{Precog: "general"}}
	store.On("ListJobs", mock.Anything, "pending", 50).Return(want, nil)

	reg := New(store)
	got, err := reg.ListJobs(context.Background(), "pending", 50)

	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRegistry_Ping(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("Ping", mock.Anything).Return(nil)

	reg := New(store)
	require.NoError(t, reg.Ping(context.Background()))
}
