package logger

import (
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/util"
	"go.uber.org/zap"
)

// ─── HTTP ───

func RequestID(v string) zap.Field       { return zap.String("request_id", v) }
func Method(v string) zap.Field          { return zap.String("method", v) }
func Path(v string) zap.Field            { return zap.String("path", v) }
func Status(v int) zap.Field             { return zap.Int("status", v) }
func Duration(v time.Duration) zap.Field { return zap.Duration("duration", v) }
func ClientIP(v string) zap.Field        { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field       { return zap.String("user_agent", v) }

// ─── Dominio ───

func UserID(v string) zap.Field   { return zap.String("user_id", v) }
func AppID(v string) zap.Field    { return zap.String("app_id", v) }
func ClientID(v string) zap.Field { return zap.String("client_id", v) }
func Role(v string) zap.Field     { return zap.String("role", v) }
func Action(v string) zap.Field   { return zap.String("action", v) }
func ActorID(v string) zap.Field  { return zap.String("actor_id", v) }

// Email loguea la dirección enmascarada, nunca completa.
func Email(v string) zap.Field { return zap.String("email", util.MaskEmail(v)) }

// Kind es el kind de autherr o de secreto.
func Kind(v string) zap.Field { return zap.String("kind", v) }

// Provider es el proveedor OAuth externo.
func Provider(v string) zap.Field { return zap.String("provider", v) }

// Policy es la política de rate limit.
func Policy(v string) zap.Field { return zap.String("policy", v) }

func RetryAfter(v time.Duration) zap.Field { return zap.Duration("retry_after", v) }

// ─── Sistema ───

// Layer: handler, service, repository.
func Layer(v string) zap.Field     { return zap.String("layer", v) }
func Component(v string) zap.Field { return zap.String("component", v) }
func Op(v string) zap.Field        { return zap.String("op", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
func Count(v int) zap.Field        { return zap.Int("count", v) }
