package middlewares

import (
	"net/http"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	jwtx "github.com/dropDatabas3/rugi-auth/internal/jwt"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
)

// RequireAuth exige un access token Bearer válido y deja las claims en el
// contexto (GetClaims). Token ausente o inválido → 401 TOKEN_INVALID;
// vencido → 401 TOKEN_EXPIRED.
func RequireAuth(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httperrors.WriteError(w, r, autherr.ErrTokenInvalid.WithMessage("missing bearer token"))
				return
			}
			claims, err := issuer.VerifyAccessToken(raw)
			if err != nil {
				httperrors.WriteError(w, r, err)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			ctx = logger.ToContext(ctx, logger.From(ctx).With(logger.UserID(claims.Subject), logger.AppID(claims.TenantID)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}
