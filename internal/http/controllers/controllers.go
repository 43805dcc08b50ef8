// Package controllers implementa los handlers HTTP. Son una capa fina:
// decodifican el request, llaman a auth.Service y traducen el resultado.
package controllers

import (
	"context"
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/auth"
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/http/dto"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	mw "github.com/dropDatabas3/rugi-auth/internal/http/middlewares"
)

// HealthCheck reporta si las dependencias (DB) responden.
type HealthCheck func(ctx context.Context) error

type Controllers struct {
	svc    *auth.Service
	health HealthCheck
}

func New(svc *auth.Service, health HealthCheck) *Controllers {
	return &Controllers{svc: svc, health: health}
}

// deviceInfo es lo que se guarda junto al refresh token.
func deviceInfo(r *http.Request) map[string]string {
	d := map[string]string{}
	if ua := r.UserAgent(); ua != "" {
		if len(ua) > 256 {
			ua = ua[:256]
		}
		d["user_agent"] = ua
	}
	if ip := mw.GetClientIP(r.Context()); ip != "" {
		d["ip"] = ip
	}
	return d
}

func client(c dto.ClientCredentials) auth.Client {
	return auth.Client{ClientID: c.ClientID, ClientSecret: c.ClientSecret}
}

// actorID es el usuario del access token; RequireAuth garantiza claims.
func actorID(w http.ResponseWriter, r *http.Request) (string, bool) {
	c := mw.GetClaims(r.Context())
	if c == nil {
		httperrors.WriteError(w, r, autherr.ErrTokenInvalid)
		return "", false
	}
	return c.Subject, true
}

var accepted = dto.AcceptedResponse{Status: "accepted"}
