package middlewares

import (
	"fmt"
	"net/http"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	httperrors "github.com/dropDatabas3/rugi-auth/internal/http/errors"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"go.uber.org/zap"
)

// WithRecover captura panics y responde 500.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.From(r.Context()).Error("panic recovered",
						logger.Op("recover"), zap.Any("panic", rec), zap.Stack("stack"))
					httperrors.WriteError(w, r, autherr.Internal(fmt.Errorf("panic: %v", rec)))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
