package controllers

import (
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/http/dto"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	"github.com/go-chi/chi/v5"
)

// Los endpoints admin exigen superadmin; el chequeo vive en auth.Service.

// ListApps handles GET /v1/admin/apps.
func (c *Controllers) ListApps(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	apps, err := c.svc.ListApps(r.Context(), actor)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	out := make([]dto.AppResponse, 0, len(apps))
	for i := range apps {
		out = append(out, dto.NewAppResponse(&apps[i], ""))
	}
	httperrors.WriteJSON(w, http.StatusOK, out)
}

// CreateApp handles POST /v1/admin/apps.
func (c *Controllers) CreateApp(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req dto.CreateAppRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	typ := repository.AppType(req.Type)
	if typ == "" {
		typ = repository.AppPublic
	}
	app, secret, err := c.svc.RegisterApp(r.Context(), actor, req.Name, typ, req.RedirectURIs)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, http.StatusCreated, dto.NewAppResponse(app, secret))
}

// PromoteApp handles POST /v1/admin/apps/{appID}/promote.
func (c *Controllers) PromoteApp(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	appID := chi.URLParam(r, "appID")
	secret, err := c.svc.PromoteApp(r.Context(), actor, appID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httperrors.WriteJSON(w, http.StatusOK, dto.PromoteResponse{AppID: appID, ClientSecret: secret})
}

// AssignRole handles POST /v1/admin/apps/{appID}/users/{userID}/roles.
func (c *Controllers) AssignRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req dto.AssignRoleRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	a, err := c.svc.AssignRole(r.Context(), actor, chi.URLParam(r, "userID"), chi.URLParam(r, "appID"), req.Role)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, dto.RoleAssignmentResponse{
		ID:         a.ID,
		UserID:     a.UserID,
		RoleID:     a.RoleID,
		AssignedBy: a.AssignedBy,
		AssignedAt: a.AssignedAt,
	})
}

// RemoveRole handles DELETE /v1/admin/apps/{appID}/users/{userID}/roles/{role}.
func (c *Controllers) RemoveRole(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	err := c.svc.RemoveRole(r.Context(), actor, chi.URLParam(r, "userID"), chi.URLParam(r, "appID"), chi.URLParam(r, "role"))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// InviteUser handles POST /v1/admin/users/invite.
func (c *Controllers) InviteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	var req dto.InviteRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	inv, err := c.svc.InviteUser(r.Context(), actor, auth.InviteInput{Email: req.Email, AppID: req.AppID})
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, dto.InviteResponse{UserID: inv.User.ID, Email: inv.User.Email})
}

// DeleteUser handles DELETE /v1/admin/users/{userID}.
func (c *Controllers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorID(w, r)
	if !ok {
		return
	}
	if err := c.svc.DeleteUser(r.Context(), actor, chi.URLParam(r, "userID")); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
