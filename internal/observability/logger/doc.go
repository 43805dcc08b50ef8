// Package logger es el logger zap del servicio: un singleton configurado en
// el arranque más un logger por request que viaja en el context.
//
// Arranque (cmd/service, cmd/rugi):
//
//	logger.Init(logger.Config{Env: cfg.Env, Level: cfg.Log.Level, ServiceName: "rugi-auth"})
//	defer logger.Sync()
//
// En servicios:
//
//	log := logger.From(ctx).With(logger.Layer("service"), logger.Component("refresh"), logger.Op("Rotate"))
//	log.Warn("rotation lost race", logger.AppID(appID))
//
// El middleware HTTP inyecta con ToContext un logger que ya trae request_id,
// así que From(ctx) en cualquier capa hereda esos campos.
package logger
