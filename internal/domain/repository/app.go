package repository

import (
	"context"
	"time"
)

// AppType distingue clientes públicos de confidenciales.
type AppType string

const (
	AppPublic       AppType = "PUBLIC"
	AppConfidential AppType = "CONFIDENTIAL"
)

// Valid indica si el tipo es conocido.
func (t AppType) Valid() bool {
	return t == AppPublic || t == AppConfidential
}

// App representa una aplicación cliente (tenant) registrada.
type App struct {
	ID               string
	Name             string
	ClientID         string // único e inmutable
	Type             AppType
	ClientSecretHash *string // solo CONFIDENTIAL
	RedirectURIs     []string
	CreatedAt        time.Time
}

// CreateAppInput contiene los datos para registrar una app.
type CreateAppInput struct {
	Name             string
	ClientID         string
	Type             AppType
	ClientSecretHash *string
	RedirectURIs     []string
}

// AppRepository define operaciones sobre apps.
type AppRepository interface {
	// Create registra una app.
	// Retorna ErrConflict si el client_id ya existe.
	Create(ctx context.Context, input CreateAppInput) (*App, error)

	// GetByID busca una app por ID.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, appID string) (*App, error)

	// GetByClientID busca una app por client_id.
	// Retorna ErrNotFound si no existe.
	GetByClientID(ctx context.Context, clientID string) (*App, error)

	// List lista todas las apps.
	List(ctx context.Context) ([]App, error)

	// PromoteToConfidential pasa la app de PUBLIC a CONFIDENTIAL guardando el
	// hash del secreto. Es condicional sobre el tipo actual.
	// Retorna ErrNotFound si no existe y ErrConflict si ya era CONFIDENTIAL.
	PromoteToConfidential(ctx context.Context, appID, secretHash string) (*App, error)
}
