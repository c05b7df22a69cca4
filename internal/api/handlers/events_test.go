package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/registry"
	"github.com/malwarescan/oracle/internal/testutil"
)

func TestEventsHandler_StreamsUntilTerminal(t *testing.T) {
	store := new(testutil.MockPostgresStore)
	store.On("GetEventsSince", mock.Anything, mock.Anything, int64(0), mock.Anything).
		Return([]domain.Event{{ID: 1, Type: domain.EventComplete, Data: []byte(`{"ok":true}`)}}, nil)
	store.On("GetJob", mock.Anything, mock.Anything).
		Return(&domain.Job{Status: domain.JobStatusDone}, nil)

	h := NewEventsHandler(registry.New(store))

	jobID := uuid.New()
	req := testutil.NewRequestWithVars("GET", "/v1/jobs/"+jobID.String()+"/events", "", map[string]string{"id": jobID.String()})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	require.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	require.Contains(t, w.Body.String(), "event: "+domain.EventComplete)
}

func TestEventsHandler_InvalidJobID(t *testing.T) {
	h := NewEventsHandler(registry.New(new(testutil.MockPostgresStore)))

	req := testutil.NewRequestWithVars("GET", "/v1/jobs/not-a-uuid/events", "", map[string]string{"id": "not-a-uuid"})
	w := httptest.NewRecorder()

	h.ServeHTTP(w, req)
	require.Equal(t, 400, w.Code)
}
