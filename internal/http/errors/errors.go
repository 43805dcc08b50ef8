// Package errors traduce errores del core a respuestas JSON {code, message}.
package errors

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/observability/logger"
)

// maxBody limita el body de los requests JSON.
const maxBody = 1 << 20

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// WriteError escribe err como {code, message}. Errores que no son
// *autherr.Error salen como INTERNAL sin exponer la causa.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := autherr.As(err)
	if !ok {
		e = autherr.Internal(err)
	}
	status := autherr.HTTPStatus(e.Kind)

	log := logger.From(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.Kind(string(e.Kind)), logger.Err(err))
	} else {
		log.Debug("request rejected", logger.Kind(string(e.Kind)), logger.Err(err))
	}

	if e.Kind == autherr.KindRateLimited && e.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds(e.RetryAfter.Seconds())))
	}
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	}

	msg := e.Message
	if e.Kind == autherr.KindInternal {
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{
		Code:      string(e.Kind),
		Message:   msg,
		RequestID: w.Header().Get("X-Request-ID"),
	})
}

// RetryAfterSeconds redondea hacia arriba; nunca menos de 1.
func RetryAfterSeconds(s float64) int {
	n := int(math.Ceil(s))
	if n < 1 {
		return 1
	}
	return n
}

// WriteJSON escribe v con status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodifica el body en v. Tolera campos desconocidos. Un body
// vacío deja v en cero. Devuelve false si ya escribió la respuesta de error.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	if r.ContentLength != 0 && !strings.Contains(ct, "application/json") {
		WriteError(w, r, autherr.ErrInvalidInput.WithMessage("content-type must be application/json"))
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, r, autherr.ErrInvalidInput.WithMessage("invalid json").WithCause(err))
		return false
	}
	return true
}
