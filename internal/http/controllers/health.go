package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/http/dto"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
)

const healthTimeout = 2 * time.Second

// Healthz handles GET /healthz.
func (c *Controllers) Healthz(w http.ResponseWriter, r *http.Request) {
	if c.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := c.health(ctx); err != nil {
			logger.From(r.Context()).Warn("health check failed", logger.Err(err))
			httperrors.WriteJSON(w, http.StatusServiceUnavailable, dto.HealthResponse{Status: "unavailable", Error: "storage"})
			return
		}
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.HealthResponse{Status: "ok"})
}

// JWKS handles GET /.well-known/jwks.json.
func (c *Controllers) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(c.svc.Issuer().Keys().JWKSJSON())
}
