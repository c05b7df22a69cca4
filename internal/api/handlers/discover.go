package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/apierr"
	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/ingest"
	"github.com/malwarescan/oracle/internal/storage"
)

// DiscoverRequest is the body of POST /v1/discover.
type DiscoverRequest struct {
	Domain    string `json:"domain"`
	Page      string `json:"page"`
	Alternate string `json:"alternate,omitempty"`
}

// DiscoverHandler implements POST /v1/discover: records a page surfaced by
// link-following and ingests it, but only for domains that have proven
// ownership.
type DiscoverHandler struct {
	ingestor *ingest.Ingestor
	store    storage.PostgresStore
}

func NewDiscoverHandler(ingestor *ingest.Ingestor, store storage.PostgresStore) *DiscoverHandler {
	return &DiscoverHandler{ingestor: ingestor, store: store}
}

func (h *DiscoverHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req DiscoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Domain == "" || req.Page == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "domain and page are required")
		return
	}

	verifiedDomain, err := h.store.GetVerifiedDomain(r.Context(), req.Domain)
	if err != nil {
		if storage.IsNotFound(err) {
			api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "domain is not verified")
			return
		}
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to check domain verification")
		return
	}
	if !verifiedDomain.Verified() {
		api.Error(w, http.StatusForbidden, api.ErrCodeForbidden, "domain is not verified")
		return
	}

	method := domain.DiscoveryHTMLLink
	var alternate *string
	if req.Alternate != "" {
		alternate = &req.Alternate
		method = domain.DiscoveryBoth
	}

	result, err := h.ingestor.Ingest(r.Context(), req.Domain, req.Page, true)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			api.WriteAPIError(w, apiErr)
			return
		}
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "discover failed")
		return
	}

	page := &domain.DiscoveredPage{
		Domain:          req.Domain,
		PageURL:         req.Page,
		AlternateHref:   alternate,
		DiscoveryMethod: method,
	}
	if result.OK {
		mirrorPath := ingest.DerivedPath(req.Page)
		page.DiscoveredMirrorURL = &mirrorPath
	}
	if err := h.store.UpsertDiscoveredPage(r.Context(), page); err != nil {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to record discovered page")
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{
		"ok":              result.OK,
		"ingestion":       result,
		"discovery_proof": page,
	})
}
