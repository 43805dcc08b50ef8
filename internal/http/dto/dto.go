// Package dto contiene los cuerpos JSON de la API HTTP.
package dto

import (
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
)

// ClientCredentials va embebido en todo request que autentica una app.
type ClientCredentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ClientCredentials
}

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ClientCredentials
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	ClientID     string `json:"client_id"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type EmailRequest struct {
	Email string `json:"email"`
}

type OTPLoginRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
	ClientCredentials
}

type PasswordResetRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type OAuthLoginRequest struct {
	Code string `json:"code"`
	ClientCredentials
}

type OAuthAuthorizeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	State            string `json:"state"`
}

type ProvidersResponse struct {
	Providers []string `json:"providers"`
}

// AcceptedResponse es la respuesta uniforme de los flows que no deben
// revelar si el email existe.
type AcceptedResponse struct {
	Status string `json:"status"`
}

type MeResponse struct {
	UserID    string    `json:"user_id"`
	AppID     string    `json:"app_id"`
	ClientID  string    `json:"client_id"`
	Roles     []string  `json:"roles"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type CreateAppRequest struct {
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	RedirectURIs []string `json:"redirect_uris"`
}

type AppResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ClientID     string    `json:"client_id"`
	Type         string    `json:"type"`
	RedirectURIs []string  `json:"redirect_uris"`
	CreatedAt    time.Time `json:"created_at"`
	// ClientSecret solo aparece al crear o promover una app confidencial.
	ClientSecret string `json:"client_secret,omitempty"`
}

func NewAppResponse(a *repository.App, secret string) AppResponse {
	uris := a.RedirectURIs
	if uris == nil {
		uris = []string{}
	}
	return AppResponse{
		ID:           a.ID,
		Name:         a.Name,
		ClientID:     a.ClientID,
		Type:         string(a.Type),
		RedirectURIs: uris,
		CreatedAt:    a.CreatedAt,
		ClientSecret: secret,
	}
}

type PromoteResponse struct {
	AppID        string `json:"app_id"`
	ClientSecret string `json:"client_secret"`
}

type AssignRoleRequest struct {
	Role string `json:"role"`
}

type RoleAssignmentResponse struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	RoleID     string    `json:"role_id"`
	AssignedBy *string   `json:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at"`
}

type InviteRequest struct {
	Email string `json:"email"`
	AppID string `json:"app_id"`
}

// InviteResponse no incluye la contraseña temporal: viaja solo por mail.
type InviteResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
