package controllers

import (
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/http/dto"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	mw "github.com/dropDatabas3/rugi-auth/internal/http/middlewares"
	"github.com/go-chi/chi/v5"
)

// Me handles GET /v1/me: la vista del access token presentado.
func (c *Controllers) Me(w http.ResponseWriter, r *http.Request) {
	cl := mw.GetClaims(r.Context())
	if cl == nil {
		httperrors.WriteError(w, r, autherr.ErrTokenInvalid)
		return
	}
	roles := cl.Roles
	if roles == nil {
		roles = []string{}
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.MeResponse{
		UserID:    cl.Subject,
		AppID:     cl.TenantID,
		ClientID:  cl.Audience,
		Roles:     roles,
		IssuedAt:  cl.IssuedAt,
		ExpiresAt: cl.ExpiresAt,
	})
}

// OptIn handles POST /v1/me/apps/{appID}: el usuario autenticado se suma a
// otra app.
func (c *Controllers) OptIn(w http.ResponseWriter, r *http.Request) {
	uid, ok := actorID(w, r)
	if !ok {
		return
	}
	if err := c.svc.OptIn(r.Context(), uid, chi.URLParam(r, "appID")); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
