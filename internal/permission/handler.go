package permission

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/opsdesk/storeops/internal"
	"github.com/opsdesk/storeops/internal/audit"
	"github.com/opsdesk/storeops/internal/transport"
)

type ServiceAPI interface {
	Grant(ctx context.Context, actor internal.Actor, role, code string, reqCtx audit.RequestContext) (*GrantResult, error)
	Revoke(ctx context.Context, actor internal.Actor, role, code string, reqCtx audit.RequestContext) (*RevokeResult, error)
	ListForRole(ctx context.Context, role string) ([]string, error)
}

type EvaluatorAPI interface {
	PermissionsFor(ctx context.Context, role string) ([]string, error)
}

type Handler struct {
	*transport.BaseHandler
	Service   ServiceAPI
	Evaluator EvaluatorAPI
	Registry  *Registry
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, evaluator EvaluatorAPI, registry *Registry) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		Evaluator:   evaluator,
		Registry:    registry,
	}
}

// GetMyPermissions returns the request actor's effective permission set.
// The presentation layer renders from this payload; it carries no policy of
// its own.
func (h *Handler) GetMyPermissions(w http.ResponseWriter, r *http.Request) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteAppError(w, internal.ErrActorMissing)
		return
	}

	permissions, err := h.Evaluator.PermissionsFor(r.Context(), actor.Role)
	if err != nil {
		h.Logger.Error("GetMyPermissions: evaluation failed", "error", err, "role", actor.Role)
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MyPermissionsResponse{
		Role:        actor.Role,
		Permissions: permissions,
	})
}

// GetCatalog returns every registered permission definition.
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	h.WriteJSON(w, http.StatusOK, CatalogResponse{Permissions: h.Registry.ListAll()})
}

// GetRoleGrants returns a role's explicit grants, without the default
// template fallback.
func (h *Handler) GetRoleGrants(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	if role == "" {
		h.WriteError(w, http.StatusBadRequest, "role is required")
		return
	}

	grants, err := h.Service.ListForRole(r.Context(), role)
	if err != nil {
		h.Logger.Error("GetRoleGrants: lookup failed", "error", err, "role", role)
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, RoleGrantsResponse{Role: role, Grants: grants})
}

func (h *Handler) Grant(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.decodeGrantRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Grant(r.Context(), *actor, req.Role, req.Code, audit.ContextFromRequest(r))
	if err != nil {
		h.Logger.Error("Grant: failed", "error", err, "role", req.Role, "code", req.Code)
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	actor, req, ok := h.decodeGrantRequest(w, r)
	if !ok {
		return
	}

	result, err := h.Service.Revoke(r.Context(), *actor, req.Role, req.Code, audit.ContextFromRequest(r))
	if err != nil {
		h.Logger.Error("Revoke: failed", "error", err, "role", req.Role, "code", req.Code)
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) decodeGrantRequest(w http.ResponseWriter, r *http.Request) (*internal.Actor, *GrantRequest, bool) {
	actor, ok := internal.ActorFromContext(r.Context())
	if !ok || actor == nil {
		h.WriteAppError(w, internal.ErrActorMissing)
		return nil, nil, false
	}

	var req GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return nil, nil, false
	}
	if req.Role == "" || req.Code == "" {
		h.WriteError(w, http.StatusBadRequest, "role and code are required")
		return nil, nil, false
	}
	return actor, &req, true
}
