package controllers

import (
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/http/dto"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	"github.com/dropDatabas3/rugi-auth/internal/security/token"
	"github.com/go-chi/chi/v5"
)

// stateBytes es la entropía del state generado cuando el cliente no manda uno.
const stateBytes = 16

// Providers handles GET /v1/auth/oauth/providers.
func (c *Controllers) Providers(w http.ResponseWriter, r *http.Request) {
	httperrors.WriteJSON(w, http.StatusOK, dto.ProvidersResponse{Providers: c.svc.OAuth().Kinds()})
}

// OAuthAuthorize handles GET /v1/auth/oauth/{provider}/authorize?state=...
// Devuelve la URL del proveedor; el cliente es dueño del state y debe
// verificarlo en el callback.
func (c *Controllers) OAuthAuthorize(w http.ResponseWriter, r *http.Request) {
	p, err := c.svc.OAuth().Get(chi.URLParam(r, "provider"))
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	state := r.URL.Query().Get("state")
	if state == "" {
		if state, err = token.GenerateOpaque(stateBytes); err != nil {
			httperrors.WriteError(w, r, err)
			return
		}
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.OAuthAuthorizeResponse{
		AuthorizationURL: p.AuthCodeURL(state),
		State:            state,
	})
}

// OAuthLogin handles POST /v1/auth/oauth/{provider}/login.
func (c *Controllers) OAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.OAuthLoginRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	tok, err := c.svc.OAuthLogin(r.Context(), auth.OAuthLoginInput{
		Provider:   chi.URLParam(r, "provider"),
		Code:       req.Code,
		Client:     client(req.ClientCredentials),
		DeviceInfo: deviceInfo(r),
	})
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, tok)
}
