// Package atomicwrite escribe archivos vía tmp + rename: un lector nunca ve
// un archivo a medio escribir.
package atomicwrite

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrExists lo devuelve WriteFile con NoClobber si el destino ya existe.
var ErrExists = errors.New("atomicwrite: destination exists")

type options struct {
	noClobber bool
}

type Option func(*options)

// NoClobber hace fallar la escritura si path ya existe (ej: no pisar una
// clave privada en uso).
func NoClobber() Option { return func(o *options) { o.noClobber = true } }

// WriteFile crea los directorios que falten, escribe en un temporal del mismo
// directorio, hace fsync y renombra sobre path.
func WriteFile(path string, data []byte, perm fs.FileMode, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.noClobber {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("atomicwrite: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("atomicwrite: create temp: %w", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("atomicwrite: chmod: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("atomicwrite: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("atomicwrite: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("atomicwrite: close: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("atomicwrite: rename: %w", err)
	}
	committed = true
	return nil
}
