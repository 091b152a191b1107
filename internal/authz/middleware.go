package authz

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ledgergate/ledgergate/internal/platform/httpx"
	"github.com/ledgergate/ledgergate/internal/shared"

	"github.com/ledgergate/ledgergate/internal/identity"
)

// DecisionSink receives the outcome of routing-layer authorization checks.
type DecisionSink interface {
	Decision(ctx context.Context, actor, action, target, outcome string, meta map[string]any)
}

// Middleware gates HTTP routes on the resource policy registry.
type Middleware struct {
	Registry *Registry
	Audit    DecisionSink
	Logger   *slog.Logger
}

// RequireResource ensures the current principal may reach the named
// downstream resource. Requests without a principal are rejected before any
// policy check; denials are audited.
func (m Middleware) RequireResource(resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := identity.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, shared.ErrAuthentication)
				return
			}
			if m.Registry == nil || !m.Registry.CanAccess(p, resource) {
				if m.Logger != nil {
					m.Logger.Warn("resource access denied",
						slog.String("actor", p.ID),
						slog.String("resource", resource))
				}
				if m.Audit != nil {
					m.Audit.Decision(r.Context(), p.ID, "RESOURCE_ACCESS", resource, "DENY", map[string]any{
						"roles": p.Roles.Values(),
						"token": p.TokenPrint,
					})
				}
				httpx.RespondError(w, shared.ErrAuthorization)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
