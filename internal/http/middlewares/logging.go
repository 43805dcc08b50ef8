package middlewares

import (
	"net/http"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/metrics"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// statusRecorder captura status y bytes escritos.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.wroteHeader {
		return
	}
	s.status = code
	s.wroteHeader = true
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if !s.wroteHeader {
		s.WriteHeader(http.StatusOK)
	}
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// WithLogging inyecta un logger scoped (request_id, method, path, ip) en el
// contexto, mide el request en prometheus y loguea al terminar.
// Debe ir después de WithRequestID y WithClientIP.
func WithLogging(m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqLog := logger.L().With(
				logger.RequestID(GetRequestID(r.Context())),
				logger.Method(r.Method),
				logger.Path(r.URL.Path),
				logger.ClientIP(GetClientIP(r.Context())),
			)
			ctx := logger.ToContext(r.Context(), reqLog)

			done := m.HTTPStart(r.Method, routePattern(r))
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			done(rec.status)

			lvl := reqLog.Info
			if rec.status >= http.StatusInternalServerError {
				lvl = reqLog.Warn
			}
			lvl("request completed",
				logger.Status(rec.status),
				zap.Int("bytes", rec.bytes),
				logger.Duration(time.Since(start)),
				logger.UserAgent(r.UserAgent()),
			)
		})
	}
}

// routePattern usa el patrón de chi como label para acotar la cardinalidad
// (los ids en el path no generan series nuevas).
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return r.URL.Path
	}
	if p := rctx.Routes.Find(chi.NewRouteContext(), r.Method, r.URL.Path); p != "" {
		return p
	}
	return "unmatched"
}
