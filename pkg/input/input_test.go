package input

import (
	"testing"
	"time"
)

func TestStackFor(t *testing.T) {
	a := NewAdminRecognizer("who")
	u := NewUserRecognizer("who")
	g := NewGameRecognizer(NewDictionary("look"), nil)

	tests := []struct {
		admin, embodied bool
		want            []string
	}{
		{false, false, []string{"user"}},
		{false, true, []string{"user", "game"}},
		{true, false, []string{"admin", "user"}},
		{true, true, []string{"admin", "user", "game"}},
	}
	for _, tt := range tests {
		stack := StackFor(tt.admin, tt.embodied, a, u, g)
		if len(stack) != len(tt.want) {
			t.Fatalf("admin=%v embodied=%v: stack %d, want %d", tt.admin, tt.embodied, len(stack), len(tt.want))
		}
		for i, r := range stack {
			if r.Name() != tt.want[i] {
				t.Errorf("admin=%v embodied=%v: stack[%d]=%s, want %s", tt.admin, tt.embodied, i, r.Name(), tt.want[i])
			}
		}
	}
}

func TestAdminRecognizer(t *testing.T) {
	r := NewAdminRecognizer("create", "delete", "shutdown")

	rec, err := r.Recognize("/CREATE #lamp #thing")
	if err != nil || rec == nil {
		t.Fatalf("got %v, %v", rec, err)
	}
	if rec.Mode != ModeAdmin || rec.Verb != "create" {
		t.Errorf("rec = %+v", rec)
	}
	if len(rec.Args) != 2 || rec.Args[0] != "#lamp" {
		t.Errorf("args = %v", rec.Args)
	}

	// No slash prefix: not recognized.
	if rec, _ := r.Recognize("create x"); rec != nil {
		t.Error("recognized line without slash")
	}
	// Unregistered command: not recognized.
	if rec, _ := r.Recognize("/dance"); rec != nil {
		t.Error("recognized unregistered command")
	}

	// Dynamic registration.
	r.Register("dance")
	if rec, _ := r.Recognize("/dance"); rec == nil {
		t.Error("newly registered command not recognized")
	}
}

func TestUserRecognizer(t *testing.T) {
	r := NewUserRecognizer("WHO", "QUIT", "CONNECT", "COMMANDS")

	rec, _ := r.Recognize("who")
	if rec == nil || rec.Verb != "who" || rec.Mode != ModeUser {
		t.Fatalf("rec = %+v", rec)
	}

	// Arguments preserved as typed.
	rec, _ = r.Recognize("connect character Zhora")
	if rec == nil || len(rec.Args) != 2 || rec.Args[1] != "Zhora" {
		t.Fatalf("rec = %+v", rec)
	}

	if rec, _ := r.Recognize("look"); rec != nil {
		t.Error("recognized unregistered keyword")
	}
}

type stubResolver struct{ objs []Candidate }

func (s *stubResolver) VisibleObjects() []Candidate { return s.objs }

func TestGameRecognizerVerbObject(t *testing.T) {
	dict := NewDictionary("look", "take", "put")
	res := &stubResolver{objs: []Candidate{
		{ID: "#lamp", Name: "lamp"},
		{ID: "#box", Name: "box"},
		{ID: "#me", Name: "Zhora", IsActor: true},
	}}
	r := NewGameRecognizer(dict, res)

	rec, err := r.Recognize("take the lamp")
	if err != nil || rec == nil {
		t.Fatalf("got %v, %v", rec, err)
	}
	if rec.Verb != "take" {
		t.Errorf("verb = %q", rec.Verb)
	}
	if rec.ResolvedObjects["direct"] != "#lamp" {
		t.Errorf("direct = %q", rec.ResolvedObjects["direct"])
	}

	rec, err = r.Recognize("put  the lamp  in the box")
	if err != nil || rec == nil {
		t.Fatalf("got %v, %v", rec, err)
	}
	if rec.ResolvedObjects["direct"] != "#lamp" || rec.ResolvedObjects["indirect"] != "#box" {
		t.Errorf("resolved = %v", rec.ResolvedObjects)
	}
	if len(rec.Args) != 3 || rec.Args[1] != "in" {
		t.Errorf("args = %v", rec.Args)
	}
}

func TestGameRecognizerBareVerb(t *testing.T) {
	r := NewGameRecognizer(NewDictionary("look"), &stubResolver{})
	rec, err := r.Recognize("look")
	if err != nil || rec == nil {
		t.Fatalf("got %v, %v", rec, err)
	}
	if rec.Verb != "look" || len(rec.Args) != 0 {
		t.Errorf("rec = %+v", rec)
	}
}

func TestGameTieBreakers(t *testing.T) {
	dict := NewDictionary("take")

	// (a) exact beats partial.
	r := NewGameRecognizer(dict, &stubResolver{objs: []Candidate{
		{ID: "#lamppost", Name: "lamp post"},
		{ID: "#lamp", Name: "lamp"},
	}})
	rec, _ := r.Recognize("take lamp")
	if rec.ResolvedObjects["direct"] != "#lamp" {
		t.Errorf("exact-over-partial: %v", rec.ResolvedObjects)
	}

	// (b) inventory beats room.
	r = NewGameRecognizer(dict, &stubResolver{objs: []Candidate{
		{ID: "#room-coin", Name: "coin"},
		{ID: "#bag-coin", Name: "coin", InInventory: true},
	}})
	rec, _ = r.Recognize("take coin")
	if rec.ResolvedObjects["direct"] != "#bag-coin" {
		t.Errorf("inventory-over-room: %v", rec.ResolvedObjects)
	}

	// (c) most recently interacted.
	now := time.Now()
	r = NewGameRecognizer(dict, &stubResolver{objs: []Candidate{
		{ID: "#old", Name: "rock", LastInteracted: now.Add(-time.Hour)},
		{ID: "#new", Name: "rock", LastInteracted: now},
	}})
	rec, _ = r.Recognize("take rock")
	if rec.ResolvedObjects["direct"] != "#new" {
		t.Errorf("recency: %v", rec.ResolvedObjects)
	}

	// Identical names with no distinguishing state disambiguate.
	r = NewGameRecognizer(dict, &stubResolver{objs: []Candidate{
		{ID: "#a", Name: "twin"},
		{ID: "#b", Name: "twin"},
	}})
	_, err := r.Recognize("take twin")
	d, ok := err.(*Disambiguation)
	if !ok {
		t.Fatalf("got %v, want *Disambiguation", err)
	}
	if len(d.Candidates) != 2 {
		t.Errorf("candidates = %v", d.Candidates)
	}
}

func TestGamePronounBindsToRecent(t *testing.T) {
	dict := NewDictionary("take")
	now := time.Now()
	r := NewGameRecognizer(dict, &stubResolver{objs: []Candidate{
		{ID: "#lamp", Name: "lamp", LastInteracted: now},
		{ID: "#box", Name: "box", LastInteracted: now.Add(-time.Minute)},
		{ID: "#me", Name: "Zhora", IsActor: true},
	}})
	rec, err := r.Recognize("take it")
	if err != nil || rec == nil {
		t.Fatal(err)
	}
	if rec.ResolvedObjects["direct"] != "#lamp" {
		t.Errorf("it = %v", rec.ResolvedObjects)
	}

	rec, _ = r.Recognize("take me")
	if rec.ResolvedObjects["direct"] != "#me" {
		t.Errorf("me = %v", rec.ResolvedObjects)
	}
}

func TestRunFirstSuccessWins(t *testing.T) {
	a := NewAdminRecognizer("who")
	u := NewUserRecognizer("who", "quit")
	g := NewGameRecognizer(NewDictionary("look"), &stubResolver{})

	// Admin-embodied stack: /who hits Admin, not Game.
	stack := StackFor(true, true, a, u, g)
	rec, err := Run(stack, "/who")
	if err != nil || rec == nil || rec.Mode != ModeAdmin {
		t.Fatalf("got %+v, %v", rec, err)
	}

	// look: Admin declines (no slash), User declines (not a keyword),
	// Game accepts.
	rec, err = Run(stack, "look")
	if err != nil || rec == nil || rec.Mode != ModeGame {
		t.Fatalf("got %+v, %v", rec, err)
	}

	// Unrecognized everywhere.
	rec, err = Run(StackFor(false, false, a, u, g), "look")
	if err != nil || rec != nil {
		t.Fatalf("got %+v, %v", rec, err)
	}
}
