package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/publish"
)

// StatusHandler implements GET /v1/status/:domain.
type StatusHandler struct {
	publisher *publish.Publisher
}

func NewStatusHandler(p *publish.Publisher) *StatusHandler {
	return &StatusHandler{publisher: p}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	domainName := mux.Vars(r)["domain"]

	status, err := h.publisher.Status(r.Context(), domainName)
	if err != nil {
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to compute status")
		return
	}

	api.JSON(w, http.StatusOK, status)
}
