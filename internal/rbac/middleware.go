package rbac

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type principalContextKey struct{}

// ContextWithPrincipal stores the resolved principal.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal resolved for the request.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Principals PrincipalSource
	Logger     *slog.Logger
}

// Resolve attaches the principal of the session user to the request context.
func (m Middleware) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := Anonymous
		if userID, ok := shared.SessionFromContext(r.Context()).UserID(); ok && m.Principals != nil {
			p, err := m.Principals.LoadPrincipal(r.Context(), userID)
			if err != nil {
				m.logError("rbac resolve principal", err)
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			principal = p
		}
		ctx := ContextWithPrincipal(r.Context(), principal)
		ctx = shared.ContextWithActor(ctx, principal.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require guards list, detail, create, update and delete routes of resource.
func (m Middleware) Require(resource string) func(http.Handler) http.Handler {
	return m.require(resource, false)
}

// RequireAction guards POST action sub-resources of resource.
func (m Middleware) RequireAction(resource string) func(http.Handler) http.Handler {
	return m.require(resource, true)
}

func (m Middleware) require(resource string, action bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				principal = Anonymous
			}
			if !Authorize(principal, Request{Resource: resource, Method: r.Method, Action: action}) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) logError(msg string, err error) {
	if m.Logger != nil {
		m.Logger.Error(msg, slog.Any("error", err))
	}
}
