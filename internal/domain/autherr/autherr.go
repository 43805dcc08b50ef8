// Package autherr define los tipos de error del core de autenticación.
//
// Todas las operaciones del core devuelven *Error con un Kind estable. La capa
// HTTP traduce el Kind a status + código JSON; los servicios nunca deciden
// status HTTP.
package autherr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind identifica la categoría del error. Es parte del contrato externo.
type Kind string

const (
	KindInvalidCredentials   Kind = "INVALID_CREDENTIALS"
	KindClientSecretRequired Kind = "CLIENT_SECRET_REQUIRED"
	KindInvalidClient        Kind = "INVALID_CLIENT"
	KindClientMismatch       Kind = "CLIENT_MISMATCH"
	KindTokenExpired         Kind = "TOKEN_EXPIRED"
	KindTokenInvalid         Kind = "TOKEN_INVALID"
	KindTokenRevoked         Kind = "TOKEN_REVOKED"
	KindInvalidOrExpired     Kind = "INVALID_OR_EXPIRED"
	KindInvalidInput         Kind = "INVALID_INPUT"
	KindNotFound             Kind = "NOT_FOUND"
	KindConflict             Kind = "CONFLICT"
	KindForbidden            Kind = "FORBIDDEN"
	KindRateLimited          Kind = "RATE_LIMITED"
	KindInternal             Kind = "INTERNAL"
)

// Error es el error tipado del core.
type Error struct {
	Kind    Kind
	Message string
	// RetryAfter solo aplica a KindRateLimited.
	RetryAfter time.Duration
	// Err es la causa original; nunca se expone al cliente.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, autherr.TokenRevoked) comparando solo por Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// WithCause devuelve una COPIA con la causa seteada.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage devuelve una COPIA con otro mensaje.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

// New crea un error del kind dado.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap crea un error del kind dado envolviendo la causa.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// RateLimited construye un error RATE_LIMITED con retry-after.
func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Kind: KindRateLimited, Message: "too many requests", RetryAfter: retryAfter}
}

// Internal envuelve un error de infraestructura.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Err: err}
}

// KindOf devuelve el Kind de err, o KindInternal si err no es *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// As extrae el *Error de la cadena.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// HTTPStatus mapea un Kind a su status HTTP. Todos los errores de token
// resuelven a 401.
func HTTPStatus(k Kind) int {
	switch k {
	case KindInvalidCredentials, KindInvalidClient, KindClientSecretRequired,
		KindClientMismatch, KindTokenExpired, KindTokenInvalid, KindTokenRevoked:
		return http.StatusUnauthorized
	case KindInvalidOrExpired, KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Errores base. Usar WithCause/WithMessage para no mutar las variables.
var (
	ErrInvalidCredentials   = New(KindInvalidCredentials, "invalid credentials")
	ErrClientSecretRequired = New(KindClientSecretRequired, "client secret required")
	ErrInvalidClient        = New(KindInvalidClient, "invalid client")
	ErrClientMismatch       = New(KindClientMismatch, "client mismatch")
	ErrTokenExpired         = New(KindTokenExpired, "token expired")
	ErrTokenInvalid         = New(KindTokenInvalid, "token invalid")
	ErrTokenRevoked         = New(KindTokenRevoked, "token revoked")
	ErrInvalidOrExpired     = New(KindInvalidOrExpired, "invalid or expired")
	ErrInvalidInput         = New(KindInvalidInput, "invalid input")
	ErrNotFound             = New(KindNotFound, "not found")
	ErrConflict             = New(KindConflict, "conflict")
	ErrForbidden            = New(KindForbidden, "forbidden")
)
