package boltstore

import (
	"path/filepath"
	"testing"

	"github.com/adamdray/gaia-mud/pkg/accounts"
	"github.com/adamdray/gaia-mud/pkg/g"
	"github.com/adamdray/gaia-mud/pkg/world"
)

func openTestWorld(t *testing.T) *WorldStore {
	t.Helper()
	s, err := OpenWorld(filepath.Join(t.TempDir(), "world.bolt"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorldStoreRoundTrip(t *testing.T) {
	s := openTestWorld(t)

	obj := &world.Object{
		ID:        "#lamp",
		Name:      "brass lamp",
		ParentIDs: []string{"#thing"},
		Attributes: map[string]g.Value{
			"shiny":  true,
			"count":  float64(3),
			"tag":    g.Ref("#owner"),
			"pieces": g.List{"a", float64(1), nil},
			"desc":   "A small brass lamp.",
		},
		LocationID: "#room",
		OwnerID:    "#alice",
	}

	rev, err := s.Store(obj, "")
	if err != nil {
		t.Fatal(err)
	}
	if rev == "" {
		t.Fatal("empty revision")
	}

	got, err := s.Fetch("#lamp")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "brass lamp" || got.LocationID != "#room" {
		t.Errorf("fetched %+v", got)
	}
	if got.Attributes["shiny"] != true || got.Attributes["count"] != float64(3) {
		t.Errorf("attributes %+v", got.Attributes)
	}
	if got.Attributes["tag"] != g.Ref("#owner") {
		t.Errorf("ref attribute decoded as %T", got.Attributes["tag"])
	}
	lst, ok := got.Attributes["pieces"].(g.List)
	if !ok || len(lst) != 3 || lst[2] != nil {
		t.Errorf("list attribute decoded as %#v", got.Attributes["pieces"])
	}
	if got.Rev != rev {
		t.Errorf("rev = %q, want %q", got.Rev, rev)
	}
}

func TestWorldStoreRevisionConflicts(t *testing.T) {
	s := openTestWorld(t)
	obj := &world.Object{ID: "#x", ParentIDs: []string{"#object"}}

	rev1, err := s.Store(obj, "")
	if err != nil {
		t.Fatal(err)
	}
	// Re-creating fails.
	if _, err := s.Store(obj, ""); err != world.ErrConflict {
		t.Errorf("create collision = %v, want ErrConflict", err)
	}
	// Stale revision fails.
	if _, err := s.Store(obj, "99"); err != world.ErrConflict {
		t.Errorf("stale write = %v, want ErrConflict", err)
	}
	// Correct revision succeeds.
	if _, err := s.Store(obj, rev1); err != nil {
		t.Errorf("fresh write: %v", err)
	}
	// Stale delete fails; fresh delete succeeds.
	if err := s.DeleteByID("#x", "1"); err != world.ErrConflict {
		t.Errorf("stale delete = %v, want ErrConflict", err)
	}
	if err := s.DeleteByID("#x", "2"); err != nil {
		t.Errorf("delete: %v", err)
	}
	if _, err := s.Fetch("#x"); err != world.ErrNotFound {
		t.Errorf("fetch after delete = %v, want ErrNotFound", err)
	}
}

func TestWorldStoreLocationIndex(t *testing.T) {
	s := openTestWorld(t)
	for _, id := range []string{"#a", "#b"} {
		if _, err := s.Store(&world.Object{ID: id, ParentIDs: []string{"#object"}, LocationID: "#room"}, ""); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := s.ListByIndex("location", "#room")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}

	// Moving #a updates the index.
	a, _ := s.Fetch("#a")
	a.LocationID = "#hall"
	if _, err := s.Store(a, a.Rev); err != nil {
		t.Fatal(err)
	}
	ids, _ = s.ListByIndex("location", "#room")
	if len(ids) != 1 || ids[0] != "#b" {
		t.Errorf("ids = %v, want [#b]", ids)
	}
	ids, _ = s.ListByIndex("location", "#hall")
	if len(ids) != 1 || ids[0] != "#a" {
		t.Errorf("ids = %v, want [#a]", ids)
	}
}

func TestAccountStoreRoundTripAndIndexes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.bolt")
	s, err := OpenAccounts(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	a := &accounts.Account{
		ID:      "acct:alice",
		LoginID: "Alice",
		Email:   "alice@example.com",
		Roles:   []string{accounts.RolePlayer, accounts.RoleAdmin},
	}
	if err := a.SetPassword("secret"); err != nil {
		t.Fatal(err)
	}
	rev, err := s.Put(a, "")
	if err != nil {
		t.Fatal(err)
	}

	// Login index is case-insensitive.
	got, err := s.GetByLogin("alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "alice@example.com" || !got.CheckPassword("secret") {
		t.Errorf("got %+v", got)
	}
	if got.CheckPassword("wrong") {
		t.Error("wrong password accepted")
	}

	admins, err := s.ListByRole(accounts.RoleAdmin)
	if err != nil {
		t.Fatal(err)
	}
	if len(admins) != 1 || admins[0] != "acct:alice" {
		t.Errorf("admins = %v", admins)
	}

	// Dropping the admin role clears the index entry.
	got.RemoveRole(accounts.RoleAdmin)
	if _, err := s.Put(got, rev); err != nil {
		t.Fatal(err)
	}
	admins, _ = s.ListByRole(accounts.RoleAdmin)
	if len(admins) != 0 {
		t.Errorf("admins = %v, want none", admins)
	}

	// Conflicting put fails.
	if _, err := s.Put(a, rev); err != accounts.ErrConflict {
		t.Errorf("stale put = %v, want ErrConflict", err)
	}
}
