/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suparena/eserp/executor"
)

// Headers set by the trusted gateway in front of the service.
const (
	HeaderTenant = "X-Tenant-ID"
	HeaderActor  = "X-Actor"
	HeaderRole   = "X-Role"

	RoleAdmin = "admin"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller.
type Identity struct {
	TenantID string
	Actor    string
	Admin    bool
}

func identityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// requireIdentity reads the gateway headers. Requests without a tenant are
// rejected before any handler runs.
func requireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenant := strings.TrimSpace(r.Header.Get(HeaderTenant))
		if tenant == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + HeaderTenant, Code: CodeUnauthenticated})
			return
		}
		id := Identity{
			TenantID: tenant,
			Actor:    strings.TrimSpace(r.Header.Get(HeaderActor)),
			Admin:    strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderRole)), RoleAdmin),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, id)))
	})
}

// scopeFor combines the caller identity with the tenant named in the path.
func scopeFor(r *http.Request) executor.Scope {
	id, _ := identityFromContext(r.Context())
	return executor.Scope{
		TenantID:       chi.URLParam(r, "tenant"),
		CallerTenantID: id.TenantID,
		Actor:          id.Actor,
		Admin:          id.Admin,
	}
}

// requestLogger logs one line per request.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		h.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
