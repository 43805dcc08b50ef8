package controllers

import (
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/http/dto"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
)

// Login handles POST /v1/auth/login.
func (c *Controllers) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	tok, err := c.svc.Login(r.Context(), auth.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		Client:     client(req.ClientCredentials),
		DeviceInfo: deviceInfo(r),
	})
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, tok)
}

// Register handles POST /v1/auth/register.
func (c *Controllers) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	tok, err := c.svc.Register(r.Context(), auth.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Client:     client(req.ClientCredentials),
		DeviceInfo: deviceInfo(r),
	})
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusCreated, tok)
}

// Refresh handles POST /v1/auth/refresh.
func (c *Controllers) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	tok, err := c.svc.Refresh(r.Context(), req.RefreshToken, req.ClientID)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, tok)
}

// Logout handles POST /v1/auth/logout. Siempre responde {"revoked": true}.
func (c *Controllers) Logout(w http.ResponseWriter, r *http.Request) {
	var req dto.LogoutRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	res, err := c.svc.Logout(r.Context(), req.RefreshToken)
	if err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, res)
}
