package controllers

import (
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/http/dto"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
)

// RequestOTP handles POST /v1/auth/otp/request. La respuesta es la misma
// exista o no el email.
func (c *Controllers) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if err := c.svc.RequestOTP(r.Context(), req.Email); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusAccepted, accepted)
}

// LoginWithOTP handles POST /v1/auth/otp/login.
func (c *Controllers) LoginWithOTP(w http.ResponseWriter, r *http.Request) {
	var req dto.OTPLoginRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	tok, err := c.svc.LoginWithOTP(r.Context(), auth.OTPLoginInput{
		Email:      req.Email,
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

// ForgotPassword handles POST /v1/auth/password/forgot.
func (c *Controllers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if err := c.svc.RequestPasswordReset(r.Context(), req.Email); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusAccepted, accepted)
}

// ResetPassword handles POST /v1/auth/password/reset.
func (c *Controllers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.PasswordResetRequest
	if !httperrors.ReadJSON(w, r, &req) {
		return
	}
	if err := c.svc.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		httperrors.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
