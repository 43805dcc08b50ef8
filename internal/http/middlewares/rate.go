package middlewares

import (
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	"github.com/dropDatabas3/rugi-auth/internal/rate"
)

// WithRateLimit aplica la política p por IP del caller (ver WithClientIP).
// Con ctrl nil es un no-op.
func WithRateLimit(ctrl *rate.Controller, p rate.Policy) Middleware {
	if ctrl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetClientIP(r.Context())
			if identity == "" {
				identity = clientIP(r, false)
			}

			res, err := ctrl.Check(r.Context(), p, identity)
			if res.Limit > 0 {
				w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
				w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			}
			if err != nil {
				httperrors.WriteError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
