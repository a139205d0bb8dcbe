// Package accounts holds durable account state: login identity, salted
// password hashes, roles, and owned characters. Accounts live in their own
// document collection, never referenced from world objects except by the
// reverse character link.
package accounts

import (
	"errors"
	"fmt"
	"strings"
	"time"

	descrypt "github.com/digitive/crypt"
	"golang.org/x/crypto/bcrypt"
)

// Roles an account may hold.
const (
	RolePlayer  = "player"
	RoleBuilder = "builder"
	RoleWizard  = "wizard"
	RoleAdmin   = "admin"
)

// ValidRole reports whether name is a known role.
func ValidRole(name string) bool {
	switch name {
	case RolePlayer, RoleBuilder, RoleWizard, RoleAdmin:
		return true
	}
	return false
}

var (
	ErrNotFound = errors.New("accounts: not found")
	ErrConflict = errors.New("accounts: revision conflict")
	ErrExists   = errors.New("accounts: login already taken")
	ErrBadLogin = errors.New("accounts: invalid credentials")
)

// Account is a durable account document.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email,omitempty"`
	LoginID      string    `json:"loginId"`
	PasswordHash string    `json:"passwordHash"`
	DisplayName  string    `json:"displayName,omitempty"`
	CharacterIDs []string  `json:"characterIds,omitempty"`
	Roles        []string  `json:"roles,omitempty"`
	Created      time.Time `json:"created"`
	LastLogin    time.Time `json:"lastLogin,omitempty"`

	// Rev is the store's opaque revision.
	Rev string `json:"-"`
}

// HasRole reports role membership.
func (a *Account) HasRole(role string) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the account holds the admin role.
func (a *Account) IsAdmin() bool { return a.HasRole(RoleAdmin) }

// AddRole inserts a role into the set.
func (a *Account) AddRole(role string) {
	if !a.HasRole(role) {
		a.Roles = append(a.Roles, role)
	}
}

// RemoveRole drops a role from the set.
func (a *Account) RemoveRole(role string) {
	for i, r := range a.Roles {
		if r == role {
			a.Roles = append(a.Roles[:i], a.Roles[i+1:]...)
			return
		}
	}
}

// HasCharacter reports whether the character belongs to this account.
func (a *Account) HasCharacter(id string) bool {
	for _, c := range a.CharacterIDs {
		if c == id {
			return true
		}
	}
	return false
}

// SetPassword stores a bcrypt hash of the password.
func (a *Account) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("accounts: hash password: %w", err)
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a password. Bcrypt hashes are the native format;
// hashes imported from legacy servers in DES crypt(3) form are also
// accepted.
func (a *Account) CheckPassword(password string) bool {
	if a.PasswordHash == "" {
		return false
	}
	if strings.HasPrefix(a.PasswordHash, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
	}
	return checkLegacyCrypt(password, a.PasswordHash)
}

// checkLegacyCrypt verifies a DES crypt(3) hash (salt = first two bytes).
func checkLegacyCrypt(password, stored string) bool {
	if len(stored) < 2 {
		return false
	}
	computed, err := descrypt.Crypt(password, stored[:2])
	return err == nil && computed == stored
}

// Store is the accounts document-store contract: keyed by account ID, with
// secondary indexes on login ID and on role.
type Store interface {
	Get(id string) (*Account, error)
	GetByLogin(loginID string) (*Account, error)
	Put(a *Account, priorRev string) (string, error)
	Delete(id, priorRev string) error
	ListByRole(role string) ([]string, error)
	Close() error
}

// Service wraps a Store with the login/admin operations. It is only touched
// by the login and admin handlers, never by game-loop paths.
type Service struct {
	store Store
}

// NewService creates a Service over the given store.
func NewService(store Store) *Service { return &Service{store: store} }

// Store exposes the underlying store.
func (s *Service) Store() Store { return s.store }

// Authenticate verifies credentials and records the login time.
func (s *Service) Authenticate(loginID, password string) (*Account, error) {
	a, err := s.store.GetByLogin(loginID)
	if err != nil {
		return nil, ErrBadLogin
	}
	if !a.CheckPassword(password) {
		return nil, ErrBadLogin
	}
	a.LastLogin = time.Now().UTC()
	if _, err := s.put(a); err != nil {
		// A lost last-login timestamp does not fail the login.
		return a, nil
	}
	return a, nil
}

// Create registers a new account with the player role.
func (s *Service) Create(loginID, password, email, displayName string) (*Account, error) {
	loginID = strings.TrimSpace(loginID)
	if loginID == "" {
		return nil, fmt.Errorf("accounts: empty login ID")
	}
	if _, err := s.store.GetByLogin(loginID); err == nil {
		return nil, ErrExists
	}
	a := &Account{
		ID:          "acct:" + strings.ToLower(loginID),
		LoginID:     loginID,
		Email:       email,
		DisplayName: displayName,
		Roles:       []string{RolePlayer},
		Created:     time.Now().UTC(),
	}
	if err := a.SetPassword(password); err != nil {
		return nil, err
	}
	if _, err := s.store.Put(a, ""); err != nil {
		return nil, err
	}
	return a, nil
}

// SetPassword replaces an account's password.
func (s *Service) SetPassword(loginID, password string) error {
	a, err := s.store.GetByLogin(loginID)
	if err != nil {
		return err
	}
	if err := a.SetPassword(password); err != nil {
		return err
	}
	_, err = s.put(a)
	return err
}

// SetRoles applies +role/-role changes.
func (s *Service) SetRoles(loginID string, add, remove []string) (*Account, error) {
	a, err := s.store.GetByLogin(loginID)
	if err != nil {
		return nil, err
	}
	for _, r := range add {
		if !ValidRole(r) {
			return nil, fmt.Errorf("accounts: unknown role %q", r)
		}
		a.AddRole(r)
	}
	for _, r := range remove {
		a.RemoveRole(r)
	}
	if _, err := s.put(a); err != nil {
		return nil, err
	}
	return a, nil
}

// AttachCharacter links a character object to the account.
func (s *Service) AttachCharacter(loginID, charID string) error {
	a, err := s.store.GetByLogin(loginID)
	if err != nil {
		return err
	}
	if a.HasCharacter(charID) {
		return nil
	}
	a.CharacterIDs = append(a.CharacterIDs, charID)
	_, err = s.put(a)
	return err
}

// put writes with optimistic-revision semantics: one refetch-and-retry on
// conflict, then the conflict surfaces.
func (s *Service) put(a *Account) (string, error) {
	rev, err := s.store.Put(a, a.Rev)
	if err == ErrConflict {
		fresh, ferr := s.store.Get(a.ID)
		if ferr != nil {
			return "", err
		}
		a.Rev = fresh.Rev
		rev, err = s.store.Put(a, a.Rev)
	}
	if err != nil {
		return "", err
	}
	a.Rev = rev
	return rev, nil
}
