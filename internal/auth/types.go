package auth

import (
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
)

const TokenTypeBearer = "Bearer"

// Client identifica la app que llama. ClientSecret solo para CONFIDENTIAL.
type Client struct {
	ClientID     string
	ClientSecret string
}

type LoginInput struct {
	Email      string
	Password   string
	Client     Client
	DeviceInfo map[string]string
}

type RegisterInput struct {
	Email      string
	Password   string
	Client     Client
	DeviceInfo map[string]string
}

type OTPLoginInput struct {
	Email      string
	Code       string
	Client     Client
	DeviceInfo map[string]string
}

type OAuthLoginInput struct {
	Provider   string
	Code       string
	Client     Client
	DeviceInfo map[string]string
}

type InviteInput struct {
	Email string
	AppID string
}

// Tokens es la respuesta de todo flow que autentica.
type Tokens struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
	UserID           string    `json:"user_id"`
	AppID            string    `json:"app_id"`
	Roles            []string  `json:"roles"`
}

// Invited es el resultado de InviteUser.
type Invited struct {
	User *repository.User
	// TemporaryPassword solo se devuelve para que el caller decida; también
	// se manda por mail.
	TemporaryPassword string
}
