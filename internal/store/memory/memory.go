// Package memory implementa domain/repository en memoria. Un único mutex
// protege todo el estado, así cada operación (incluidos los compare-and-set
// de rotación y consumo) es atómica respecto de las demás.
//
// Se usa en tests y en modo dev sin base de datos.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/rugi-auth/internal/clock"
	"github.com/dropDatabas3/rugi-auth/internal/domain/repository"
	"github.com/google/uuid"
)

// Store es el repositorio en memoria.
type Store struct {
	mu    sync.Mutex
	clock clock.Clock

	users   map[string]*repository.User
	apps    map[string]*repository.App
	roles   map[string]*repository.Role
	assigns map[string]*repository.UserAppRole
	refresh map[string]*repository.RefreshToken // por hash
	secrets map[string]*repository.OneTimeSecret
	audit   []repository.AuditEvent
}

var _ repository.Repository = (*Store)(nil)

// New crea un store vacío. clk se usa para CreatedAt/AssignedAt.
func New(clk clock.Clock) *Store {
	return &Store{
		clock:   clock.OrSystem(clk),
		users:   map[string]*repository.User{},
		apps:    map[string]*repository.App{},
		roles:   map[string]*repository.Role{},
		assigns: map[string]*repository.UserAppRole{},
		refresh: map[string]*repository.RefreshToken{},
		secrets: map[string]*repository.OneTimeSecret{},
	}
}

func (s *Store) Users() repository.UserRepository                 { return (*userRepo)(s) }
func (s *Store) Apps() repository.AppRepository                   { return (*appRepo)(s) }
func (s *Store) Roles() repository.RoleRepository                 { return (*roleRepo)(s) }
func (s *Store) RefreshTokens() repository.RefreshTokenRepository { return (*refreshRepo)(s) }
func (s *Store) Secrets() repository.SecretRepository             { return (*secretRepo)(s) }
func (s *Store) Audit() repository.AuditRepository                { return (*auditRepo)(s) }

func (s *Store) now() time.Time { return s.clock.Now() }

func newID() string { return uuid.NewString() }

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneUser(u *repository.User) *repository.User {
	cp := *u
	cp.PasswordHash = cloneStringPtr(u.PasswordHash)
	cp.OAuthProvider = cloneStringPtr(u.OAuthProvider)
	cp.OAuthProviderID = cloneStringPtr(u.OAuthProviderID)
	cp.OptedInApps = cloneStrings(u.OptedInApps)
	return &cp
}

func cloneApp(a *repository.App) *repository.App {
	cp := *a
	cp.ClientSecretHash = cloneStringPtr(a.ClientSecretHash)
	cp.RedirectURIs = cloneStrings(a.RedirectURIs)
	return &cp
}

func cloneRefresh(t *repository.RefreshToken) *repository.RefreshToken {
	cp := *t
	if t.DeviceInfo != nil {
		cp.DeviceInfo = make(map[string]string, len(t.DeviceInfo))
		for k, v := range t.DeviceInfo {
			cp.DeviceInfo[k] = v
		}
	}
	return &cp
}

// ─── Users ───

type userRepo Store

func (r *userRepo) Create(_ context.Context, in repository.CreateUserInput) (*repository.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == in.Email {
			return nil, repository.ErrConflict
		}
		if in.OAuthProvider != nil && in.OAuthProviderID != nil &&
			u.OAuthProvider != nil && u.OAuthProviderID != nil &&
			*u.OAuthProvider == *in.OAuthProvider && *u.OAuthProviderID == *in.OAuthProviderID {
			return nil, repository.ErrConflict
		}
	}
	if in.OptInAppID != "" {
		if _, ok := s.apps[in.OptInAppID]; !ok {
			return nil, repository.ErrNotFound
		}
	}

	now := s.now()
	u := &repository.User{
		ID:                 newID(),
		Email:              in.Email,
		PasswordHash:       cloneStringPtr(in.PasswordHash),
		EmailVerified:      in.EmailVerified,
		RegistrationMethod: in.RegistrationMethod,
		OAuthProvider:      cloneStringPtr(in.OAuthProvider),
		OAuthProviderID:    cloneStringPtr(in.OAuthProviderID),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if in.OptInAppID != "" {
		u.OptedInApps = []string{in.OptInAppID}
	}
	s.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *userRepo) GetByID(_ context.Context, userID string) (*repository.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*repository.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByOAuth(_ context.Context, provider, providerID string) (*repository.User, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.OAuthProvider != nil && u.OAuthProviderID != nil &&
			*u.OAuthProvider == provider && *u.OAuthProviderID == providerID {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) LinkOAuth(_ context.Context, userID, provider, providerID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	for _, other := range s.users {
		if other.ID != userID && other.OAuthProvider != nil && other.OAuthProviderID != nil &&
			*other.OAuthProvider == provider && *other.OAuthProviderID == providerID {
			return repository.ErrConflict
		}
	}
	u.OAuthProvider = &provider
	u.OAuthProviderID = &providerID
	u.UpdatedAt = s.now()
	return nil
}

func (r *userRepo) UpdatePassword(_ context.Context, userID, passwordHash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = &passwordHash
	u.UpdatedAt = s.now()
	return nil
}

func (r *userRepo) SetEmailVerified(_ context.Context, userID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.EmailVerified = true
	u.UpdatedAt = s.now()
	return nil
}

func (r *userRepo) OptIn(_ context.Context, userID, appID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := s.apps[appID]; !ok {
		return repository.ErrNotFound
	}
	if u.HasOptedIn(appID) {
		return nil
	}
	u.OptedInApps = append(u.OptedInApps, appID)
	u.UpdatedAt = s.now()
	return nil
}

func (r *userRepo) Delete(_ context.Context, userID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.users, userID)
	for h, t := range s.refresh {
		if t.UserID == userID {
			delete(s.refresh, h)
		}
	}
	for id, a := range s.assigns {
		if a.UserID == userID {
			delete(s.assigns, id)
		}
	}
	for id, sec := range s.secrets {
		if sec.UserID == userID {
			delete(s.secrets, id)
		}
	}
	for i := range s.audit {
		if s.audit[i].UserID != nil && *s.audit[i].UserID == userID {
			s.audit[i].UserID = nil
		}
	}
	return nil
}

// ─── Apps ───

type appRepo Store

func (r *appRepo) Create(_ context.Context, in repository.CreateAppInput) (*repository.App, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.ClientID == in.ClientID {
			return nil, repository.ErrConflict
		}
	}
	a := &repository.App{
		ID:               newID(),
		Name:             in.Name,
		ClientID:         in.ClientID,
		Type:             in.Type,
		ClientSecretHash: cloneStringPtr(in.ClientSecretHash),
		RedirectURIs:     cloneStrings(in.RedirectURIs),
		CreatedAt:        s.now(),
	}
	s.apps[a.ID] = a
	return cloneApp(a), nil
}

func (r *appRepo) GetByID(_ context.Context, appID string) (*repository.App, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[appID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneApp(a), nil
}

func (r *appRepo) GetByClientID(_ context.Context, clientID string) (*repository.App, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.apps {
		if a.ClientID == clientID {
			return cloneApp(a), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *appRepo) List(_ context.Context) ([]repository.App, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.App, 0, len(s.apps))
	for _, a := range s.apps {
		out = append(out, *cloneApp(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *appRepo) PromoteToConfidential(_ context.Context, appID, secretHash string) (*repository.App, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[appID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if a.Type != repository.AppPublic {
		return nil, repository.ErrConflict
	}
	a.Type = repository.AppConfidential
	a.ClientSecretHash = &secretHash
	return cloneApp(a), nil
}

// ─── Roles ───

type roleRepo Store

func (r *roleRepo) FindOrCreate(_ context.Context, appID, name string) (*repository.Role, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[appID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, role := range s.roles {
		if role.AppID == appID && role.Name == name {
			cp := *role
			return &cp, nil
		}
	}
	role := &repository.Role{ID: newID(), AppID: appID, Name: name, CreatedAt: s.now()}
	s.roles[role.ID] = role
	cp := *role
	return &cp, nil
}

func (r *roleRepo) ListByApp(_ context.Context, appID string) ([]repository.Role, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Role
	for _, role := range s.roles {
		if role.AppID == appID {
			out = append(out, *role)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *roleRepo) Assign(_ context.Context, userID, roleID string, assignedBy *string) (*repository.UserAppRole, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[userID]; !ok {
		return nil, repository.ErrNotFound
	}
	if _, ok := s.roles[roleID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, a := range s.assigns {
		if a.UserID == userID && a.RoleID == roleID {
			return nil, repository.ErrConflict
		}
	}
	a := &repository.UserAppRole{
		ID:         newID(),
		UserID:     userID,
		RoleID:     roleID,
		AssignedBy: cloneStringPtr(assignedBy),
		AssignedAt: s.now(),
	}
	s.assigns[a.ID] = a
	cp := *a
	return &cp, nil
}

func (r *roleRepo) Unassign(_ context.Context, userID, roleID string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range s.assigns {
		if a.UserID == userID && a.RoleID == roleID {
			delete(s.assigns, id)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *roleRepo) RoleNamesForUser(_ context.Context, userID, appID string) ([]string, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	names := []string{}
	for _, a := range s.assigns {
		if a.UserID != userID {
			continue
		}
		if role, ok := s.roles[a.RoleID]; ok && role.AppID == appID {
			names = append(names, role.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *roleRepo) HasAnyRoleNamed(_ context.Context, userID string, names []string) (bool, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assigns {
		if a.UserID != userID {
			continue
		}
		role, ok := s.roles[a.RoleID]
		if !ok {
			continue
		}
		for _, n := range names {
			if role.Name == n {
				return true, nil
			}
		}
	}
	return false, nil
}

// ─── Refresh tokens ───

type refreshRepo Store

func (r *refreshRepo) insertLocked(in repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	s := (*Store)(r)
	if _, dup := s.refresh[in.TokenHash]; dup {
		return nil, repository.ErrConflict
	}
	t := &repository.RefreshToken{
		ID:         newID(),
		TokenHash:  in.TokenHash,
		UserID:     in.UserID,
		AppID:      in.AppID,
		ExpiresAt:  in.ExpiresAt,
		DeviceInfo: in.DeviceInfo,
		CreatedAt:  s.now(),
	}
	t = cloneRefresh(t)
	s.refresh[t.TokenHash] = t
	return cloneRefresh(t), nil
}

func (r *refreshRepo) Create(_ context.Context, in repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.insertLocked(in)
}

func (r *refreshRepo) GetByHash(_ context.Context, tokenHash string) (*repository.RefreshToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[tokenHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneRefresh(t), nil
}

func (r *refreshRepo) Rotate(_ context.Context, oldHash string, next repository.CreateRefreshTokenInput) (*repository.RefreshToken, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.refresh[oldHash]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if old.Revoked {
		return nil, repository.ErrAlreadyConsumed
	}
	nt, err := r.insertLocked(next)
	if err != nil {
		return nil, err
	}
	old.Revoked = true
	return nt, nil
}

func (r *refreshRepo) Revoke(_ context.Context, tokenHash string) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refresh[tokenHash]
	if !ok {
		return repository.ErrNotFound
	}
	t.Revoked = true
	return nil
}

func (r *refreshRepo) RevokeAllByUser(_ context.Context, userID string) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.refresh {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n, nil
}

func (r *refreshRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for h, t := range s.refresh {
		if !t.ExpiresAt.After(now) {
			delete(s.refresh, h)
			n++
		}
	}
	return n, nil
}

// ─── One-time secrets ───

type secretRepo Store

func (r *secretRepo) Issue(_ context.Context, in repository.IssueSecretInput) (*repository.OneTimeSecret, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[in.UserID]; !ok {
		return nil, repository.ErrNotFound
	}
	for _, sec := range s.secrets {
		if sec.UserID == in.UserID && sec.Kind == in.Kind && !sec.Used {
			sec.Used = true
		}
	}
	sec := &repository.OneTimeSecret{
		ID:         newID(),
		UserID:     in.UserID,
		Kind:       in.Kind,
		SecretHash: in.SecretHash,
		ExpiresAt:  in.ExpiresAt,
		CreatedAt:  s.now(),
	}
	s.secrets[sec.ID] = sec
	cp := *sec
	return &cp, nil
}

func (r *secretRepo) LatestUnused(_ context.Context, userID string, kind repository.SecretKind) (*repository.OneTimeSecret, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *repository.OneTimeSecret
	for _, sec := range s.secrets {
		if sec.UserID != userID || sec.Kind != kind || sec.Used {
			continue
		}
		if latest == nil || sec.CreatedAt.After(latest.CreatedAt) {
			latest = sec
		}
	}
	if latest == nil {
		return nil, repository.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *secretRepo) GetByHash(_ context.Context, kind repository.SecretKind, secretHash string) (*repository.OneTimeSecret, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sec := range s.secrets {
		if sec.Kind == kind && sec.SecretHash == secretHash {
			cp := *sec
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *secretRepo) MarkUsed(_ context.Context, secretID string, now time.Time) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	sec, ok := s.secrets[secretID]
	if !ok {
		return repository.ErrNotFound
	}
	if sec.Used || !sec.ExpiresAt.After(now) {
		return repository.ErrAlreadyConsumed
	}
	sec.Used = true
	return nil
}

func (r *secretRepo) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sec := range s.secrets {
		if sec.Used || !sec.ExpiresAt.After(now) {
			delete(s.secrets, id)
			n++
		}
	}
	return n, nil
}

// ─── Audit ───

type auditRepo Store

func (r *auditRepo) Append(_ context.Context, ev repository.AuditEvent) error {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ID == "" {
		ev.ID = newID()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = s.now()
	}
	ev.UserID = cloneStringPtr(ev.UserID)
	s.audit = append(s.audit, ev)
	return nil
}

func (r *auditRepo) ListByUser(_ context.Context, userID string, limit int) ([]repository.AuditEvent, error) {
	s := (*Store)(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.AuditEvent
	for i := len(s.audit) - 1; i >= 0; i-- {
		ev := s.audit[i]
		if ev.UserID != nil && *ev.UserID == userID {
			out = append(out, ev)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

// AuditEvents devuelve una copia de todos los eventos (tests).
func (s *Store) AuditEvents() []repository.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.AuditEvent, len(s.audit))
	copy(out, s.audit)
	return out
}
