package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/malwarescan/oracle/internal/api/middleware"
	"github.com/malwarescan/oracle/internal/ratelimit"
)

// RouterConfig holds all dependencies required to build the API router.
// Handler fields that are nil will receive a default "not implemented"
// handler, allowing the router to be constructed incrementally as features
// are built out.
type RouterConfig struct {
	// AllowedOrigins for CORS. Use ["*"] during development.
	AllowedOrigins []string

	// SharedToken gates every /v1 route behind a single bearer credential.
	// Empty disables auth entirely.
	SharedToken string

	// Limiter throttles job-submission endpoints by client IP. Nil
	// disables rate limiting.
	Limiter *ratelimit.Limiter

	// Handlers -----------------------------------------------------------------

	HealthHandler      http.Handler // GET /health
	RedisHealthHandler http.Handler // GET /health/redis
	MetricsHandler     http.Handler // GET /metrics

	InvokeHandler   http.Handler // POST /v1/invoke
	EventsHandler   http.Handler // GET  /v1/jobs/{id}/events
	RunNDJSONHandler http.Handler // GET+POST /v1/run.ndjson

	IngestHandler  http.Handler // POST /v1/ingest
	DiscoverHandler http.Handler // POST /v1/discover
	FactsHandler    http.Handler // GET /v1/facts/{domain}.ndjson
	GraphHandler    http.Handler // GET /v1/graph/{domain}.jsonld
	ExtractHandler  http.Handler // GET /v1/extract/{domain}
	StatusHandler   http.Handler // GET /v1/status/{domain}
	MirrorHandler   http.Handler // GET /v1/mirror/{domain}/{path}

	VerifyInitiateHandler http.Handler // POST /v1/verify/initiate
	VerifyCheckHandler    http.Handler // POST /v1/verify/check

	// WSHandler serves the optional push-based debug tail at /v1/ws.
	WSHandler http.Handler
}

// NewRouter builds a fully-configured *mux.Router with all routes and the
// middleware chain applied.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	// ---- Global middleware (applied to every route) -----------------------
	// Order matters: outermost runs first.
	r.Use(middleware.RecoveryMiddleware)
	r.Use(middleware.LoggingMiddleware)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.BodyLimitMiddleware)

	// ---- Unauthenticated routes --------------------------------------------
	r.Handle("/health", handlerOrStub(cfg.HealthHandler)).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/health/redis", handlerOrStub(cfg.RedisHealthHandler)).Methods(http.MethodGet, http.MethodOptions)
	r.Handle("/metrics", handlerOrStub(cfg.MetricsHandler)).Methods(http.MethodGet, http.MethodOptions)

	// ---- v1 routes, gated behind the shared bearer token -------------------
	v1 := r.PathPrefix("/v1").Subrouter()
	authMW := middleware.NewAuthMiddleware(cfg.SharedToken)
	v1.Use(authMW.Authenticate)

	invokeHandler := handlerOrStub(cfg.InvokeHandler)
	runNDJSONHandler := handlerOrStub(cfg.RunNDJSONHandler)
	if cfg.Limiter != nil {
		rateLimit := middleware.RateLimitMiddleware(cfg.Limiter)
		invokeHandler = rateLimit(invokeHandler)
		runNDJSONHandler = rateLimit(runNDJSONHandler)
	}

	v1.Handle("/invoke", invokeHandler).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/jobs/{id}/events", handlerOrStub(cfg.EventsHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/run.ndjson", runNDJSONHandler).Methods(http.MethodGet, http.MethodPost, http.MethodOptions)

	v1.Handle("/ingest", handlerOrStub(cfg.IngestHandler)).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/discover", handlerOrStub(cfg.DiscoverHandler)).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/facts/{domain}.ndjson", handlerOrStub(cfg.FactsHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/graph/{domain}.jsonld", handlerOrStub(cfg.GraphHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/extract/{domain}", handlerOrStub(cfg.ExtractHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/status/{domain}", handlerOrStub(cfg.StatusHandler)).Methods(http.MethodGet, http.MethodOptions)
	v1.Handle("/mirror/{domain}/{path:.*}", handlerOrStub(cfg.MirrorHandler)).Methods(http.MethodGet, http.MethodOptions)

	v1.Handle("/verify/initiate", handlerOrStub(cfg.VerifyInitiateHandler)).Methods(http.MethodPost, http.MethodOptions)
	v1.Handle("/verify/check", handlerOrStub(cfg.VerifyCheckHandler)).Methods(http.MethodPost, http.MethodOptions)

	v1.Handle("/ws", handlerOrStub(cfg.WSHandler)).Methods(http.MethodGet)

	return r
}

// handlerOrStub returns the provided handler if non-nil, otherwise a stub
// that responds with 501 Not Implemented.
func handlerOrStub(h http.Handler) http.Handler {
	if h != nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Error(w, http.StatusNotImplemented, "not_implemented", "this endpoint is not yet implemented")
	})
}
