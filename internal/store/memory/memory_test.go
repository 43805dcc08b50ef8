package memory

import (
	"testing"

	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/dropDatabas3/rugi-auth/internal/store/storetest"
)

func TestMemoryRepositoryContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) repository.Repository { return New(nil) })
}
