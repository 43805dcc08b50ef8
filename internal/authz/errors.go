package authz

import (
	"github.com/dropDatabas3/rugi-auth/internal/domain/autherr"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
)

// mapRepoErr traduce sentinels del repositorio a kinds del core.
func mapRepoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case repository.IsNotFound(err):
		return autherr.ErrNotFound.WithMessage(what + " not found").WithCause(err)
	case repository.IsConflict(err):
		return autherr.ErrConflict.WithMessage(what + " already exists").WithCause(err)
	default:
		return autherr.Internal(err)
	}
}
