package httpapi

import (
	"net/http"

	"trust_gateway/internal/engine"
	"trust_gateway/internal/export"
	"trust_gateway/internal/ledger"
	"trust_gateway/internal/middleware"
	"trust_gateway/internal/ratelimit"
	"trust_gateway/internal/stats"
	"trust_gateway/internal/utils"
)

// Dependencies aggregates all services the HTTP layer needs.
type Dependencies struct {
	Engine    *engine.Engine
	Ledger    ledger.Ledger
	Stats     stats.Service
	RateLimit ratelimit.Limiter

	// Exporter is optional; nil disables the DLQ admin endpoints.
	Exporter *export.Worker

	JWTSecret    []byte
	AdminKeyHash string
	Logger       *utils.Logger
}

// NewRouter creates an HTTP router with all routes wired up.
func NewRouter(deps *Dependencies) *http.ServeMux {
	if deps.RateLimit == nil {
		deps.RateLimit = ratelimit.NewNoopLimiter()
	}
	if deps.Stats == nil {
		deps.Stats = stats.NewNoopService()
	}
	if deps.Logger == nil {
		deps.Logger = utils.NewLogger("httpapi")
	}

	identity := middleware.OptionalIdentity(deps.JWTSecret)
	admin := middleware.RequireAdminKey(deps.AdminKeyHash)

	mux := http.NewServeMux()

	// Chat endpoint: a JWT is optional and only adds user attribution.
	mux.Handle("POST /v1/chat", identity(http.HandlerFunc(deps.handleChat)))

	// Operator endpoints, guarded by the admin key.
	mux.Handle("GET /v1/audit/{id}", admin(http.HandlerFunc(deps.handleAuditLookup)))
	mux.Handle("GET /v1/stats/savings", admin(http.HandlerFunc(deps.handleSavings)))
	mux.Handle("GET /v1/admin/export/dlq", admin(http.HandlerFunc(deps.handleDeadLetterList)))
	mux.Handle("POST /v1/admin/export/dlq/{id}/retry", admin(http.HandlerFunc(deps.handleDeadLetterRetry)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
