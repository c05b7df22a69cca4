package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/apierr"
	"github.com/malwarescan/oracle/internal/publish"
)

// MirrorHandler implements GET /v1/mirror/:domain/{path} -- the
// authoritative Markdown representation of one ingested page.
type MirrorHandler struct {
	publisher *publish.Publisher
}

func NewMirrorHandler(p *publish.Publisher) *MirrorHandler {
	return &MirrorHandler{publisher: p}
}

func (h *MirrorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	domainName := vars["domain"]
	path := vars["path"]

	mv, err := h.publisher.Mirror(r.Context(), domainName, path)
	if err != nil {
		var apiErr *apierr.Error
		if errors.As(err, &apiErr) {
			api.WriteAPIError(w, apiErr)
			return
		}
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to load mirror")
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("ETag", fmt.Sprintf("%q", mv.ContentHash))
	w.Header().Set("Link", fmt.Sprintf("<%s>; rel=\"authoritative-truth\"", r.URL.Path))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(mv.Content))
}
