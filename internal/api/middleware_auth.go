// ABOUTME: requireTenant middleware for the non-huma websocket route.
// ABOUTME: Huma routes authenticate per-operation via jobqueue.Service.Authenticate instead.
package api

import (
	"context"
	"net/http"
	"strings"
)

// requireTenant validates the Authorization: Bearer <credential> header
// against the jobqueue service and injects the resolved tenant id into
// the request context. The websocket upgrade handler is the only route
// that needs this — huma operations call jobqueue.Service directly and
// authenticate as part of the operation itself.
func (srv *Server) requireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		credential := strings.TrimPrefix(authHeader, "Bearer ")

		tenant, err := srv.jobs.Authenticate(r.Context(), credential)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), ctxTenantID, tenant.TenantID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
