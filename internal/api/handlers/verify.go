package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/malwarescan/oracle/internal/api"
	"github.com/malwarescan/oracle/internal/domain"
	"github.com/malwarescan/oracle/internal/storage"
	"github.com/malwarescan/oracle/internal/verify"
)

// VerifyInitiateRequest names the domain a caller wants to claim.
type VerifyInitiateRequest struct {
	Domain string `json:"domain"`
}

// VerifyInitiateResponse hands back the token the caller must publish,
// either as a DNS TXT record or a well-known file, before calling check.
type VerifyInitiateResponse struct {
	Domain            string `json:"domain"`
	VerificationToken string `json:"verification_token"`
	TXTRecord         string `json:"txt_record"`
	WellKnownURL      string `json:"well_known_url"`
}

// VerifyInitiateHandler implements POST /v1/verify/initiate: it mints a
// verification token and persists an unverified VerifiedDomain row so a
// later check has something to confirm against.
type VerifyInitiateHandler struct {
	store storage.PostgresStore
}

func NewVerifyInitiateHandler(store storage.PostgresStore) *VerifyInitiateHandler {
	return &VerifyInitiateHandler{store: store}
}

func (h *VerifyInitiateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyInitiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Domain == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "domain is required")
		return
	}

	token := uuid.New().String()
	record := &domain.VerifiedDomain{
		Domain:            req.Domain,
		VerificationToken: token,
		ProtocolVersion:   "1.1",
	}
	if err := h.store.UpsertVerifiedDomain(r.Context(), record); err != nil {
		slog.Error("verify/initiate: failed to persist token", "domain", req.Domain, "error", err)
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to initiate verification")
		return
	}

	api.JSON(w, http.StatusOK, VerifyInitiateResponse{
		Domain:            req.Domain,
		VerificationToken: token,
		TXTRecord:         "croutons-verification=" + token,
		WellKnownURL:      "https://" + req.Domain + "/.well-known/croutons-verification.txt",
	})
}

// VerifyCheckRequest re-states the domain under verification.
type VerifyCheckRequest struct {
	Domain string `json:"domain"`
}

// VerifyCheckResponse reports whether ownership was confirmed this call.
type VerifyCheckResponse struct {
	Domain   string `json:"domain"`
	Verified bool   `json:"verified"`
}

// VerifyCheckHandler implements POST /v1/verify/check: it re-reads the
// pending token, runs the DNS/well-known primitives, and marks the domain
// verified on first success.
type VerifyCheckHandler struct {
	store   storage.PostgresStore
	checker *verify.Checker
}

func NewVerifyCheckHandler(store storage.PostgresStore, checker *verify.Checker) *VerifyCheckHandler {
	return &VerifyCheckHandler{store: store, checker: checker}
}

func (h *VerifyCheckHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if req.Domain == "" {
		api.Error(w, http.StatusBadRequest, api.ErrCodeInvalidRequest, "domain is required")
		return
	}

	record, err := h.store.GetVerifiedDomain(r.Context(), req.Domain)
	if err != nil {
		if storage.IsNotFound(err) {
			api.Error(w, http.StatusNotFound, api.ErrCodeNotFound, "call verify/initiate first")
			return
		}
		slog.Error("verify/check: failed to load pending verification", "domain", req.Domain, "error", err)
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to check verification")
		return
	}

	if record.Verified() {
		api.JSON(w, http.StatusOK, VerifyCheckResponse{Domain: req.Domain, Verified: true})
		return
	}

	ok, err := h.checker.Check(r.Context(), req.Domain, record.VerificationToken)
	if err != nil {
		slog.Error("verify/check: probe failed", "domain", req.Domain, "error", err)
	}
	if !ok {
		api.JSON(w, http.StatusOK, VerifyCheckResponse{Domain: req.Domain, Verified: false})
		return
	}

	now := time.Now()
	record.VerifiedAt = &now
	if err := h.store.UpsertVerifiedDomain(r.Context(), record); err != nil {
		slog.Error("verify/check: failed to persist verification", "domain", req.Domain, "error", err)
		api.Error(w, http.StatusInternalServerError, api.ErrCodeInternalError, "failed to persist verification")
		return
	}

	api.JSON(w, http.StatusOK, VerifyCheckResponse{Domain: req.Domain, Verified: true})
}
