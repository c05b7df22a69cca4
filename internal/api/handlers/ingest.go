package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/apierr"
	"github.com/malwarescan/oracle/internal/ingest"
	"github.com/malwarescan/oracle/internal/kb"
	"github.com/malwarescan/oracle/internal/storage"
)

// IngestRequest is the body of POST /v1/ingest.
type IngestRequest struct {
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// IngestHandler implements POST /v1/ingest: runs the citation-grade
// ingestion pipeline synchronously and returns its outcome.
type IngestHandler struct {
	ingestor *ingest.Ingestor
	store    storage.PostgresStore
	cache    *kb.Cache
}

func NewIngestHandler(ingestor *ingest.Ingestor, store storage.PostgresStore, cache *kb.Cache) *IngestHandler {
	return &IngestHandler{ingestor: ingestor, store: store, cache: cache}
}

func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Domain == "" || req.URL == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "domain and url are required")
		return
	}

	verified := false
	if d, err := h.store.GetVerifiedDomain(r.Context(), req.Domain); err == nil {
		verified = d.Verified()
	} else if !storage.IsNotFound(err) {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to check domain verification")
		return
	}

	result, err := h.ingestor.Ingest(r.Context(), req.Domain, req.URL, verified)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			api.WriteAPIError(w, apiErr)
			return
		}
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "ingest failed")
		return
	}

	if h.cache != nil {
		_ = h.cache.Invalidate(r.Context(), req.Domain)
	}

	if !result.OK {
		api.JSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"ok":              false,
			"errors":          result.Errors,
			"fix_suggestions": result.FixSuggestions,
		})
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"ok":   true,
		"data": result,
	})
}
