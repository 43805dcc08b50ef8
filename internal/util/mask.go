// Package util junta helpers chicos sin dependencias del dominio.
package util

import "strings"

// MaskEmail deja la primera letra del usuario y del dominio:
// "ana.lopez@example.com" => "a***@e***.com". Para logs.
func MaskEmail(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	at := strings.LastIndexByte(s, '@')
	if at <= 0 {
		return maskPart(s)
	}
	local, domain := s[:at], s[at+1:]
	labels := strings.Split(domain, ".")
	if len(labels) > 1 {
		labels[0] = maskPart(labels[0])
	}
	return maskPart(local) + "@" + strings.Join(labels, ".")
}

func maskPart(p string) string {
	switch r := []rune(p); {
	case len(r) == 0:
		return ""
	case len(r) <= 2:
		return "***"
	default:
		return string(r[0]) + "***"
	}
}
