package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/apierr"
	"github.com/malwarescan/oracle/internal/publish"
)

// ExtractHandler implements GET /v1/extract/:domain?url=.
type ExtractHandler struct {
	publisher *publish.Publisher
}

func NewExtractHandler(p *publish.Publisher) *ExtractHandler {
	return &ExtractHandler{publisher: p}
}

func (h *ExtractHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	domainName := mux.Vars(r)["domain"]
	sourceURL := r.URL.Query().Get("url")
	if sourceURL == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "url query parameter is required")
		return
	}

	report, err := h.publisher.Extract(r.Context(), domainName, sourceURL)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			api.WriteAPIError(w, apiErr)
			return
		}
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "extract validation failed")
		return
	}

	api.JSON(w, http.StatusOK, map[string]interface{}{"validation": report})
}
