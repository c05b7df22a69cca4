package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/registry"
	"github.com/malwarescan/oracle/internal/streaming"
)

// InvokeRequest is the body of POST /v1/invoke.
type InvokeRequest struct {
	Precog  string                 `json:"precog"`
	Prompt  string                 `json:"prompt,omitempty"`
	Context map[string]interface{} `json:"context,omitempty"`
	Stream  bool                   `json:"stream,omitempty"`
}

// InvokeResponse is the body of a successful POST /v1/invoke.
type InvokeResponse struct {
	OK    bool   `json:"ok"`
	JobID string `json:"job_id"`
}

// InvokeHandler implements POST /v1/invoke: it submits a job to the
// Registry and hands it off to the Stream Bus for the Worker Runtime to
// claim. It never blocks on job completion; callers follow up with
// GET /v1/jobs/:id/events or /v1/run.ndjson to observe the result.
type InvokeHandler struct {
	registry *registry.Registry
	bus      streaming.StreamBus
}

func NewInvokeHandler(reg *registry.Registry, bus streaming.StreamBus) *InvokeHandler {
	return &InvokeHandler{registry: reg, bus: bus}
}

func (h *InvokeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Precog == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "precog is required")
		return
	}

	jobCtx := req.Context
	if jobCtx == nil {
		jobCtx = map[string]interface{}{}
	}
	if req.Prompt != "" {
		jobCtx["prompt"] = req.Prompt
	}

	job, err := h.registry.Submit(r.Context(), req.Precog, "", jobCtx)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to submit job")
		return
	}

	if _, err := h.bus.Enqueue(r.Context(), streaming.JobMessage{
		JobID:   job.ID.String(),
		Precog:  job.Precog,
		Task:    job.Task,
		Context: job.Context,
	}); err != nil {
		// A Dispatcher enqueue failure is logged, not fatal -- the job row
		// stays in the registry as pending and its id is still returned;
		// nothing re-enqueues it afterwards.
		slog.Error("invoke: stream bus enqueue failed", "job_id", job.ID, "error", err)
	}

	api.JSON(w, http.StatusOK, InvokeResponse{OK: true, JobID: job.ID.String()})
}
