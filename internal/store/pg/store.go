// Package pg implementa domain/repository sobre Postgres con pgx.
//
// Las operaciones de consumo único (rotación de refresh, MarkUsed,
// promoción de apps) son UPDATE condicionales con RETURNING: la fila solo
// cambia si sigue en el estado esperado, así que de N llamadas concurrentes
// gana exactamente una.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE que el store traduce a errores de repositorio.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidTextRep      = "22P02" // ej: id que no es uuid
)

type Options struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type Store struct{ pool *pgxpool.Pool }

var _ repository.Repository = (*Store)(nil)

// New abre el pool y verifica conectividad.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		pcfg.MaxConnLifetime = opts.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (métricas, tests).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Users() repository.UserRepository                 { return (*userRepo)(s) }
func (s *Store) Apps() repository.AppRepository                   { return (*appRepo)(s) }
func (s *Store) Roles() repository.RoleRepository                 { return (*roleRepo)(s) }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return (*refreshRepo)(s) }
func (s *Store) Secrets() repository.SecretRepository             { return (*secretRepo)(s) }
func (s *Store) Audit() repository.AuditRepository                { return (*auditRepo)(s) }

// mapErr traduce errores de pgx a los sentinelas del repositorio.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", repository.ErrConflict, pgErr.ConstraintName)
		case codeForeignKeyViolation, codeInvalidTextRep:
			return fmt.Errorf("%w: %s", repository.ErrNotFound, pgErr.Message)
		}
	}
	return err
}

// rollback es para usar con defer; tras Commit es no-op.
func rollback(ctx context.Context, tx pgx.Tx) { _ = tx.Rollback(ctx) }
