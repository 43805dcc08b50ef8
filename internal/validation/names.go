// Package validation tiene las reglas de formato de identificadores que
// llegan desde la API.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Un nombre de rol empieza y termina en alfanumérico; en el medio acepta
// ":", "_", "." y "-". Máximo 64. Sin espacios: viaja en la URL de
// DELETE .../roles/{role} y dentro del access token.
var roleNameRe = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9:_.\-]{0,62}[A-Za-z0-9])?$`)

// MaxAppNameLen acota el nombre visible de una app.
const MaxAppNameLen = 128

func ValidRoleName(name string) bool {
	return roleNameRe.MatchString(name)
}

// ValidAppName: no vacío, sin caracteres de control, hasta MaxAppNameLen runas.
func ValidAppName(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxAppNameLen {
		return false
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}
