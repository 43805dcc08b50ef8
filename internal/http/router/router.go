// Package router arma el árbol de rutas chi del servicio.
package router

import (
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/http/controllers"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	mw "github.com/dropDatabas3/rugi-auth/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/rate"
	"github.com/go-chi/chi/v5"
)

type Deps struct {
	Controllers *controllers.Controllers
	Issuer      *jwtx.Issuer
	// Rate puede ser nil (sin rate limiting).
	Rate       *rate.Controller
	General    rate.Policy
	Sensitive  rate.Policy
	Metrics    *metrics.Metrics
	TrustProxy bool
	CORS       []string
}

// New devuelve el handler raíz.
//
//	GET  /healthz, /metrics, /.well-known/jwks.json
//	/v1/auth/*   flows públicos (general + sensitive en login/otp/reset)
//	/v1/me/*     requiere access token
//	/v1/admin/*  requiere access token de un superadmin
func New(d Deps) http.Handler {
	c := d.Controllers
	if d.General.Name == "" {
		d.General = rate.General
	}
	if d.Sensitive.Name == "" {
		d.Sensitive = rate.Sensitive
	}
	sensitive := mw.WithRateLimit(d.Rate, d.Sensitive)
	requireAuth := mw.RequireAuth(d.Issuer)

	r := chi.NewRouter()
	r.Use(
		mw.WithRecover(),
		mw.WithRequestID(),
		mw.WithClientIP(d.TrustProxy),
		mw.WithLogging(d.Metrics),
		mw.WithSecurityHeaders(),
		mw.WithCORS(d.CORS),
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteError(w, r, autherr.ErrNotFound.WithMessage("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httperrors.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{
			"code": "METHOD_NOT_ALLOWED", "message": "method not allowed",
		})
	})

	r.Get("/healthz", c.Healthz)
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	r.Get("/.well-known/jwks.json", c.JWKS)

	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.WithRateLimit(d.Rate, d.General), mw.WithNoStore())

		r.Route("/auth", func(r chi.Router) {
			r.With(sensitive).Post("/login", c.Login)
			r.Post("/register", c.Register)
			r.Post("/refresh", c.Refresh)
			r.Post("/logout", c.Logout)

			r.With(sensitive).Post("/otp/request", c.RequestOTP)
			r.With(sensitive).Post("/otp/login", c.LoginWithOTP)
			r.With(sensitive).Post("/password/forgot", c.ForgotPassword)
			r.With(sensitive).Post("/password/reset", c.ResetPassword)

			r.Get("/oauth/providers", c.Providers)
			r.Get("/oauth/{provider}/authorize", c.OAuthAuthorize)
			r.With(sensitive).Post("/oauth/{provider}/login", c.OAuthLogin)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", c.Me)
			r.Post("/me/apps/{appID}", c.OptIn)

			r.Route("/admin", func(r chi.Router) {
				r.Get("/apps", c.ListApps)
				r.Post("/apps", c.CreateApp)
				r.Post("/apps/{appID}/promote", c.PromoteApp)
				r.Post("/apps/{appID}/users/{userID}/roles", c.AssignRole)
				r.Delete("/apps/{appID}/users/{userID}/roles/{role}", c.RemoveRole)
				r.Post("/users/invite", c.InviteUser)
				r.Delete("/users/{userID}", c.DeleteUser)
			})
		})
	})
	return r
}
