package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/publish"
)

// GraphHandler implements GET /v1/graph/:domain.jsonld.
type GraphHandler struct {
	publisher *publish.Publisher
}

func NewGraphHandler(p *publish.Publisher) *GraphHandler {
	return &GraphHandler{publisher: p}
}

func (h *GraphHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	domainName := mux.Vars(r)["domain"]

	graph, err := h.publisher.Graph(r.Context(), domainName)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to build graph")
		return
	}

	w.Header().Set("Content-Type", "application/ld+json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(graph); err != nil {
		slog.Error("graph: failed to encode response", "error", err)
	}
}
