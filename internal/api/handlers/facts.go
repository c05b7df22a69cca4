package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/publish"
)

// FactsHandler implements GET /v1/facts/:domain.ndjson.
type FactsHandler struct {
	publisher *publish.Publisher
}

func NewFactsHandler(p *publish.Publisher) *FactsHandler {
	return &FactsHandler{publisher: p}
}

func (h *FactsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	domainName := mux.Vars(r)["domain"]
	evidenceType := r.URL.Query().Get("evidence_type")
	sourceURL := r.URL.Query().Get("source_url")

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	if err := h.publisher.WriteFactsNDJSON(r.Context(), w, domainName, evidenceType, sourceURL); err != nil {
		// Headers are already committed; nothing more to do but stop writing.
		return
	}
}
