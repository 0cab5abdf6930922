/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Package api exposes the entity catalog over HTTP. Caller identity comes from
// headers set by a trusted gateway.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/suparena/eserp/errors"
	"github.com/suparena/eserp/executor"
	"github.com/suparena/eserp/storagemodels"
	"github.com/suparena/eserp/uquery"
)

// TypeService is the part of the entity type registry the API serves.
type TypeService interface {
	Describe(ctx context.Context, tenant, id string) (*storagemodels.TypeView, error)
	List(ctx context.Context, tenant string) ([]storagemodels.EntityType, error)
	Upsert(ctx context.Context, scope string, t storagemodels.EntityType) (bool, error)
}

// Handler serves the HTTP API.
type Handler struct {
	exec      *executor.Executor
	types     TypeService
	logger    *slog.Logger
	metrics   *Metrics
	codecOpts []uquery.ParseOption
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics replaces the metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithQueryOptions sets the options used to parse universal queries.
func WithQueryOptions(opts ...uquery.ParseOption) Option {
	return func(h *Handler) {
		h.codecOpts = append(h.codecOpts, opts...)
	}
}

// NewRouter builds the HTTP handler.
func NewRouter(exec *executor.Executor, types TypeService, opts ...Option) http.Handler {
	h := &Handler{
		exec:    exec,
		types:   types,
		logger:  slog.New(slog.DiscardHandler),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(h)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(h.metrics.Middleware)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/v1/tenants/{tenant}", func(api chi.Router) {
		api.Use(requireIdentity)

		api.Get("/entities", h.handleListEntities)
		api.Post("/entities", h.handleCreateEntity)
		api.Get("/entities/{id}", h.handleGetEntity)
		api.Patch("/entities/{id}", h.handleUpdateEntity)
		api.Delete("/entities/{id}", h.handleHideEntity)
		api.Post("/entities/{id}/restore", h.handleRestoreEntity)

		api.Get("/entity-types", h.handleListTypes)
		api.Get("/entity-types/{id}", h.handleGetType)
		api.Put("/entity-types/{id}", h.handlePutType)
	})

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleListEntities(w http.ResponseWriter, r *http.Request) {
	q, err := uquery.Parse(r.URL.RawQuery, h.codecOpts...)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.exec.ListEntities(r.Context(), scopeFor(r), q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	ent, err := h.exec.GetEntity(r.Context(), scopeFor(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ent)
}

type entityResponse struct {
	Entity *storagemodels.Entity `json:"entity"`
	Issues []executor.Issue      `json:"issues"`
}

func (h *Handler) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var req executor.EntityInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	ent, issues, err := h.exec.CreateEntity(r.Context(), scopeFor(r), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entityResponse{Entity: ent, Issues: nonNil(issues)})
}

type updateRequest struct {
	Attributes map[string]storagemodels.Value `json:"attributes"`
}

func (h *Handler) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	ent, issues, err := h.exec.UpdateAttributes(r.Context(), scopeFor(r), chi.URLParam(r, "id"), req.Attributes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entityResponse{Entity: ent, Issues: nonNil(issues)})
}

func (h *Handler) handleHideEntity(w http.ResponseWriter, r *http.Request) {
	if err := h.exec.SetHidden(r.Context(), scopeFor(r), chi.URLParam(r, "id"), true); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRestoreEntity(w http.ResponseWriter, r *http.Request) {
	if err := h.exec.SetHidden(r.Context(), scopeFor(r), chi.URLParam(r, "id"), false); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type typeResponse struct {
	ID              string                          `json:"id"`
	Name            string                          `json:"name"`
	Description     string                          `json:"description"`
	Icon            string                          `json:"icon"`
	ParentID        string                          `json:"parentId,omitempty"`
	Fields          []storagemodels.FieldDefinition `json:"fields"`
	AllowedChildren []string                        `json:"allowed_children"`
	Depth           int                             `json:"depth"`
	Lineage         []string                        `json:"lineage"`
	Scope           string                          `json:"scope"`
}

func newTypeResponse(v *storagemodels.TypeView) typeResponse {
	return typeResponse{
		ID:              v.Type.ID,
		Name:            v.Type.Name,
		Description:     v.Type.Description,
		Icon:            v.Type.Icon,
		ParentID:        v.Type.ParentID,
		Fields:          nonNil(v.Fields),
		AllowedChildren: nonNil(v.Type.AllowedChildTypes),
		Depth:           v.Depth,
		Lineage:         nonNil(v.Lineage),
		Scope:           v.Type.Scope,
	}
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	scope := scopeFor(r)
	if err := scope.Authorize(); err != nil {
		h.writeError(w, r, err)
		return
	}
	types, err := h.types.List(r.Context(), scope.TenantID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(types))
}

func (h *Handler) handleGetType(w http.ResponseWriter, r *http.Request) {
	scope := scopeFor(r)
	if err := scope.Authorize(); err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.types.Describe(r.Context(), scope.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newTypeResponse(view))
}

type putTypeResponse struct {
	Changed bool         `json:"changed"`
	Type    typeResponse `json:"type"`
}

// handlePutType stores a tenant override of an entity type.
func (h *Handler) handlePutType(w http.ResponseWriter, r *http.Request) {
	scope := scopeFor(r)
	if err := scope.Authorize(); err != nil {
		h.writeError(w, r, err)
		return
	}
	if !scope.Admin {
		h.writeError(w, r, errors.NewAuthorizationError(errors.ReasonMissingRole, "changing entity types requires the admin role"))
		return
	}

	var t storagemodels.EntityType
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	id := chi.URLParam(r, "id")
	if t.ID != "" && t.ID != id {
		badRequest(w, "body id does not match path")
		return
	}
	t.ID = id

	changed, err := h.types.Upsert(r.Context(), scope.TenantID, t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.types.Describe(r.Context(), scope.TenantID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("entity type override stored", "tenant", scope.TenantID, "id", id, "changed", changed, "actor", scope.Actor)
	writeJSON(w, http.StatusOK, putTypeResponse{Changed: changed, Type: newTypeResponse(view)})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
