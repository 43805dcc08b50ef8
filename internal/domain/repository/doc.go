// Package repository define las interfaces de repositorio de dominio.
//
// Estas interfaces representan contratos de negocio, independientes del
// almacenamiento subyacente (PostgreSQL o memoria).
//
// Las implementaciones concretas viven en internal/store/.
//
// Arquitectura:
//
//	┌─────────────────────────────────────────────────────┐
//	│      auth / refresh / ots / authz (servicios)       │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	                        ▼
//	┌─────────────────────────────────────────────────────┐
//	│        domain/repository (interfaces)               │
//	│  Users, Apps, Roles, RefreshTokens, Secrets, Audit  │
//	└─────────────────────────────────────────────────────┘
//	                        │
//	              ┌─────────┴─────────┐
//	              ▼                   ▼
//	      ┌─────────────┐     ┌─────────────┐
//	      │  store/pg   │     │ store/memory│
//	      └─────────────┘     └─────────────┘
//
// Convenciones:
//   - Context siempre es el primer parámetro
//   - Las operaciones que dependen de expiración reciben `now` explícito
//   - Las transiciones de estado (revoked, used, type) son compare-and-set
//   - Errores de dominio están en errors.go
package repository

// Repository agrupa todos los repositorios que usa el core.
type Repository interface {
	Users() UserRepository
	Apps() AppRepository
	Roles() RoleRepository
	RefreshTokens() RefreshTokenRepository
	Secrets() SecretRepository
	Audit() AuditRepository
}
