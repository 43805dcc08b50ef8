package authz

import "strings"

// superAdminRoles son los nombres de rol que, asignados en cualquier app,
// convierten al usuario en superadmin de todas.
var superAdminRoles = []string{"owner", "admin"}

// IsSuperAdminRole indica si el nombre de rol confiere superadmin. Los
// nombres de rol son case-sensitive, igual que en HasAnyRoleNamed: "Admin"
// es un rol común.
func IsSuperAdminRole(name string) bool {
	n := strings.TrimSpace(name)
	for _, r := range superAdminRoles {
		if n == r {
			return true
		}
	}
	return false
}

// SuperAdminRoles devuelve una copia de la lista.
func SuperAdminRoles() []string {
	out := make([]string, len(superAdminRoles))
	copy(out, superAdminRoles)
	return out
}
