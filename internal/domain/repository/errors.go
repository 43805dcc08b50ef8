package repository

import "errors"

var (
	// ErrNotFound indica que el recurso solicitado no existe.
	ErrNotFound = errors.New("not found")

	// ErrConflict indica un conflicto (ej: duplicado, constraint violation,
	// transición de estado ya aplicada).
	ErrConflict = errors.New("conflict")

	// ErrAlreadyConsumed indica que el compare-and-set perdió: el token ya fue
	// revocado o el secreto ya fue usado por otra request.
	ErrAlreadyConsumed = errors.New("already consumed")
)

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict verifica si el error es ErrConflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsAlreadyConsumed verifica si el error es ErrAlreadyConsumed.
func IsAlreadyConsumed(err error) bool {
	return errors.Is(err, ErrAlreadyConsumed)
}
