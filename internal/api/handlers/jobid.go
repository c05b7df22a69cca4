package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/malwarescan/oracle/internal/api"
)

// parseJobID extracts and validates the {id} path variable shared by the
// events and (legacy) job-status routes, writing a 400 on failure.
func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := mux.Vars(r)["id"]
	jobID, err := uuid.Parse(raw)
	if err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "invalid job id")
		return uuid.UUID{}, false
	}
	return jobID, true
}
