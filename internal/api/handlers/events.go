package handlers

import (
	"net/http"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/fanout"
	"github.com/malwarescan/oracle/internal/registry"
)

// EventsHandler implements GET /v1/jobs/:id/events over Server-Sent Events.
type EventsHandler struct {
	registry *registry.Registry
}

func NewEventsHandler(reg *registry.Registry) *EventsHandler {
	return &EventsHandler{registry: reg}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	// Disables response buffering on nginx-style proxies so events reach the
	// client as they are written rather than on flush-buffer-full.
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	write := fanout.WriteSSE(w, flusher.Flush)
	_, _ = fanout.Tail(r.Context(), h.registry, jobID, write)
}
