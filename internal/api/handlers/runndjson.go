package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/fanout"
	"github.com/malwarescan/oracle/internal/registry"
	"github.com/malwarescan/oracle/internal/streaming"
)

// RunNDJSONRequest is the body of POST /v1/run.ndjson.
type RunNDJSONRequest struct {
	Precog        string                 `json:"precog"`
	KB            string                 `json:"kb,omitempty"`
	ContentSource string                 `json:"content_source"`
	Content       string                 `json:"content,omitempty"`
	URL           string                 `json:"url,omitempty"`
	Type          string                 `json:"type,omitempty"`
	Task          string                 `json:"task,omitempty"`
	Region        string                 `json:"region,omitempty"`
	Domain        string                 `json:"domain,omitempty"`
	Vertical      string                 `json:"vertical,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
}

// RunNDJSONHandler implements both GET and POST /v1/run.ndjson: create a
// job (from query params on GET, from a JSON body on POST) and tail its
// event log in the same request, writing one JSON object per line.
type RunNDJSONHandler struct {
	registry *registry.Registry
	bus      streaming.StreamBus
}

func NewRunNDJSONHandler(reg *registry.Registry, bus streaming.StreamBus) *RunNDJSONHandler {
	return &RunNDJSONHandler{registry: reg, bus: bus}
}

func (h *RunNDJSONHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req RunNDJSONRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "invalid JSON body")
			return
		}
	} else {
		q := r.URL.Query()
		req = RunNDJSONRequest{
			Precog: q.Get("precog"),
			URL:    q.Get("url"),
			Type:   q.Get("type"),
			Task:   q.Get("task"),
			KB:     q.Get("kb"),
		}
		if req.URL != "" {
			req.ContentSource = "url"
		} else {
			req.ContentSource = "inline"
		}
	}

	if req.Precog == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "precog is required")
		return
	}
	if req.ContentSource == "url" && req.URL == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "url is required for content_source=url")
		return
	}
	if req.ContentSource == "inline" && req.Content == "" && r.Method == http.MethodPost {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "content is required for content_source=inline")
		return
	}

	jobCtx := req.Context
	if jobCtx == nil {
		jobCtx = map[string]interface{}{}
	}
	for k, v := range map[string]string{
		"kb": req.KB, "content_source": req.ContentSource, "content": req.Content,
		"url": req.URL, "type": req.Type, "region": req.Region, "domain": req.Domain, "vertical": req.Vertical,
	} {
		if v != "" {
			jobCtx[k] = v
		}
	}

	job, err := h.registry.Submit(r.Context(), req.Precog, req.Task, jobCtx)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to submit job")
		return
	}

	if _, err := h.bus.Enqueue(r.Context(), streaming.JobMessage{
		JobID: job.ID.String(), Precog: job.Precog, Task: job.Task, Context: job.Context,
	}); err != nil {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to enqueue job")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}

	if err := json.NewEncoder(w).Encode(map[string]interface{}{"type": "ack", "job_id": job.ID.String()}); err != nil {
		return
	}
	flush()

	write := fanout.WriteNDJSON(w, flush)
	_, _ = fanout.Tail(r.Context(), h.registry, job.ID, write)
}
