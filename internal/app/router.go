package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgergate/ledgergate/internal/audit"
	"github.com/ledgergate/ledgergate/internal/authz"
	"github.com/ledgergate/ledgergate/internal/budget"
	"github.com/ledgergate/ledgergate/internal/identity"
	"github.com/ledgergate/ledgergate/internal/observability"
	"github.com/ledgergate/ledgergate/internal/platform/httpx"
	"github.com/ledgergate/ledgergate/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger        *slog.Logger
	Config        *Config
	Validator     *identity.Validator
	Registry      *authz.Registry
	AuditSink     authz.DecisionSink
	BudgetHandler *budget.Handler
	AuditHandler  *audit.Handler
	JobHandler    *jobs.Handler
	Metrics       *observability.Metrics
}

// NewRouter constructs the chi.Router. Health and metrics stay outside the
// authenticated group; everything else requires a valid bearer token and the
// matching resource.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	guard := authz.Middleware{Registry: params.Registry, Audit: params.AuditSink, Logger: params.Logger}

	r.Group(func(r chi.Router) {
		r.Use(Authenticator(params.Validator, params.Logger))

		r.Get("/resources", func(w http.ResponseWriter, r *http.Request) {
			p, ok := identity.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			httpx.JSON(w, http.StatusOK, map[string]any{"resources": params.Registry.Accessible(p)})
		})

		r.Route("/budgets", func(r chi.Router) {
			r.Use(guard.RequireResource("budgets"))
			params.BudgetHandler.MountRoutes(r)
		})

		r.Route("/audit", func(r chi.Router) {
			r.Use(guard.RequireResource("audit"))
			params.AuditHandler.MountRoutes(r)
		})

		if params.JobHandler != nil {
			r.Route("/jobs", func(r chi.Router) {
				r.Use(guard.RequireResource("audit"))
				params.JobHandler.MountRoutes(r)
			})
		}
	})

	return r
}
