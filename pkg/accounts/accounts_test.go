package accounts

import (
	"strconv"
	"testing"

	descrypt "github.com/digitive/crypt"
)

// memStore is an in-memory Store for service tests.
type memStore struct {
	byID  map[string]*Account
	revs  map[string]int
	login map[string]string
}

func newMemStore() *memStore {
	return &memStore{byID: map[string]*Account{}, revs: map[string]int{}, login: map[string]string{}}
}

func (s *memStore) Get(id string) (*Account, error) {
	a, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	cp.Rev = strconv.Itoa(s.revs[id])
	return &cp, nil
}

func (s *memStore) GetByLogin(loginID string) (*Account, error) {
	id, ok := s.login[loginID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Get(id)
}

func (s *memStore) Put(a *Account, priorRev string) (string, error) {
	if _, ok := s.byID[a.ID]; ok {
		if priorRev != strconv.Itoa(s.revs[a.ID]) {
			return "", ErrConflict
		}
	} else if priorRev != "" {
		return "", ErrConflict
	}
	cp := *a
	s.byID[a.ID] = &cp
	s.revs[a.ID]++
	s.login[a.LoginID] = a.ID
	return strconv.Itoa(s.revs[a.ID]), nil
}

func (s *memStore) Delete(id, priorRev string) error {
	delete(s.byID, id)
	return nil
}

func (s *memStore) ListByRole(role string) ([]string, error) {
	var out []string
	for id, a := range s.byID {
		if a.HasRole(role) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *memStore) Close() error { return nil }

func TestPasswordHashing(t *testing.T) {
	var a Account
	if err := a.SetPassword("hunter2"); err != nil {
		t.Fatal(err)
	}
	if a.PasswordHash == "hunter2" {
		t.Fatal("password stored in the clear")
	}
	if !a.CheckPassword("hunter2") {
		t.Error("correct password rejected")
	}
	if a.CheckPassword("hunter3") {
		t.Error("wrong password accepted")
	}
}

func TestLegacyCryptAccepted(t *testing.T) {
	hash, err := descrypt.Crypt("password", "XX")
	if err != nil {
		t.Fatal(err)
	}
	a := Account{PasswordHash: hash}
	if !a.CheckPassword("password") {
		t.Error("legacy DES crypt hash rejected")
	}
	if a.CheckPassword("nope") {
		t.Error("wrong password accepted against legacy hash")
	}
}

func TestServiceCreateAndAuthenticate(t *testing.T) {
	svc := NewService(newMemStore())

	a, err := svc.Create("Bob", "pw", "bob@example.com", "Bob")
	if err != nil {
		t.Fatal(err)
	}
	if !a.HasRole(RolePlayer) {
		t.Error("new account missing player role")
	}

	if _, err := svc.Create("Bob", "pw2", "", ""); err != ErrExists {
		t.Errorf("duplicate create = %v, want ErrExists", err)
	}

	got, err := svc.Authenticate("Bob", "pw")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastLogin.IsZero() {
		t.Error("last login not recorded")
	}
	if _, err := svc.Authenticate("Bob", "bad"); err != ErrBadLogin {
		t.Errorf("bad password = %v, want ErrBadLogin", err)
	}
	if _, err := svc.Authenticate("Nobody", "pw"); err != ErrBadLogin {
		t.Errorf("unknown login = %v, want ErrBadLogin", err)
	}
}

func TestServiceRoles(t *testing.T) {
	svc := NewService(newMemStore())
	if _, err := svc.Create("Wiz", "pw", "", ""); err != nil {
		t.Fatal(err)
	}

	a, err := svc.SetRoles("Wiz", []string{RoleWizard, RoleAdmin}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !a.HasRole(RoleWizard) || !a.IsAdmin() {
		t.Errorf("roles = %v", a.Roles)
	}

	a, err = svc.SetRoles("Wiz", nil, []string{RoleAdmin})
	if err != nil {
		t.Fatal(err)
	}
	if a.IsAdmin() {
		t.Error("admin role not removed")
	}

	if _, err := svc.SetRoles("Wiz", []string{"deity"}, nil); err == nil {
		t.Error("unknown role accepted")
	}
}

func TestServiceAttachCharacter(t *testing.T) {
	svc := NewService(newMemStore())
	if _, err := svc.Create("Ann", "pw", "", ""); err != nil {
		t.Fatal(err)
	}
	if err := svc.AttachCharacter("Ann", "#ann"); err != nil {
		t.Fatal(err)
	}
	// Idempotent.
	if err := svc.AttachCharacter("Ann", "#ann"); err != nil {
		t.Fatal(err)
	}
	a, _ := svc.Store().GetByLogin("Ann")
	if len(a.CharacterIDs) != 1 || a.CharacterIDs[0] != "#ann" {
		t.Errorf("characters = %v", a.CharacterIDs)
	}
}
