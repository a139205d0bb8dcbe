package input

import (
	"sort"
	"strings"
	"time"
)

// Candidate is an object visible to the actor, supplied by the engine's
// resolver: location contents and inventory first, then the actor itself.
type Candidate struct {
	ID             string
	Name           string
	InInventory    bool
	IsActor        bool
	LastInteracted time.Time
}

// Resolver supplies the visible-object set at recognition time.
type Resolver interface {
	VisibleObjects() []Candidate
}

// GameRecognizer is the natural-language verb-object parser. Stage 1 is
// lexical cleanup, stage 2 tags tokens with the dictionary, stage 3
// extracts <verb> [direct-object-phrase] [prep indirect-object-phrase] and
// disambiguates noun phrases against the resolver's candidates.
type GameRecognizer struct {
	dict     *Dictionary
	resolver Resolver
}

// NewGameRecognizer creates a recognizer over a dictionary and resolver.
func NewGameRecognizer(dict *Dictionary, resolver Resolver) *GameRecognizer {
	return &GameRecognizer{dict: dict, resolver: resolver}
}

// Name implements Recognizer.
func (r *GameRecognizer) Name() string { return "game" }

// Recognize implements Recognizer.
func (r *GameRecognizer) Recognize(raw string) (*Recognition, error) {
	// Stage 1: trim and collapse whitespace, preserving case.
	line := strings.Join(strings.Fields(raw), " ")
	if line == "" {
		return nil, nil
	}

	tokens := strings.Split(line, " ")
	verb := tokens[0]
	if tag := r.dict.Tag(verb); tag != TagVerb && tag != TagUnknown {
		return nil, nil
	}

	// Stage 2/3: split the remainder at the first preposition into the
	// direct and indirect phrases, dropping articles.
	var directWords, indirectWords []string
	var prep string
	rest := tokens[1:]
	for i, tok := range rest {
		if prep == "" && r.dict.Tag(tok) == TagPreposition {
			prep = strings.ToLower(tok)
			for _, w := range rest[i+1:] {
				if r.dict.Tag(w) != TagArticle {
					indirectWords = append(indirectWords, w)
				}
			}
			break
		}
		if r.dict.Tag(tok) != TagArticle {
			directWords = append(directWords, tok)
		}
	}

	rec := &Recognition{
		Mode:            ModeGame,
		Verb:            strings.ToLower(verb),
		Raw:             raw,
		ResolvedObjects: map[string]string{},
	}
	directPhrase := strings.Join(directWords, " ")
	indirectPhrase := strings.Join(indirectWords, " ")
	rec.Args = nil
	if directPhrase != "" {
		rec.Args = append(rec.Args, directPhrase)
	}
	if prep != "" {
		rec.Args = append(rec.Args, prep, indirectPhrase)
	}

	var candidates []Candidate
	if r.resolver != nil && (directPhrase != "" || indirectPhrase != "") {
		candidates = r.resolver.VisibleObjects()
	}

	if directPhrase != "" {
		id, err := r.resolvePhrase(directPhrase, candidates)
		if err != nil {
			return nil, err
		}
		if id != "" {
			rec.ResolvedObjects["direct"] = id
		}
	}
	if indirectPhrase != "" {
		id, err := r.resolvePhrase(indirectPhrase, candidates)
		if err != nil {
			return nil, err
		}
		if id != "" {
			rec.ResolvedObjects["indirect"] = id
		}
	}
	return rec, nil
}

// resolvePhrase matches a noun phrase against the candidates. Ties are
// broken by exact-over-partial, inventory-over-room, most recent
// interaction, then first by object ID; survivors past all four produce a
// disambiguation request.
func (r *GameRecognizer) resolvePhrase(phrase string, candidates []Candidate) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	lower := strings.ToLower(phrase)

	// Pronouns bind to the most recently interacted candidate.
	if r.dict.Tag(phrase) == TagPronoun {
		if lower == "me" || lower == "self" {
			for _, c := range candidates {
				if c.IsActor {
					return c.ID, nil
				}
			}
			return "", nil
		}
		best := Candidate{}
		for _, c := range candidates {
			if c.IsActor {
				continue
			}
			if best.ID == "" || c.LastInteracted.After(best.LastInteracted) {
				best = c
			}
		}
		return best.ID, nil
	}

	var exact, partial []Candidate
	for _, c := range candidates {
		name := strings.ToLower(c.Name)
		switch {
		case name == lower:
			exact = append(exact, c)
		case strings.HasPrefix(name, lower):
			partial = append(partial, c)
		}
	}

	// (a) exact name match over partial.
	pool := exact
	if len(pool) == 0 {
		pool = partial
	}
	if len(pool) == 0 {
		return "", nil
	}
	if len(pool) == 1 {
		return pool[0].ID, nil
	}

	// (b) actor's inventory over the room.
	var inv []Candidate
	for _, c := range pool {
		if c.InInventory {
			inv = append(inv, c)
		}
	}
	if len(inv) > 0 {
		pool = inv
	}
	if len(pool) == 1 {
		return pool[0].ID, nil
	}

	// (c) most recently interacted with.
	var latest time.Time
	for _, c := range pool {
		if c.LastInteracted.After(latest) {
			latest = c.LastInteracted
		}
	}
	if !latest.IsZero() {
		var recent []Candidate
		for _, c := range pool {
			if c.LastInteracted.Equal(latest) {
				recent = append(recent, c)
			}
		}
		pool = recent
	}
	if len(pool) == 1 {
		return pool[0].ID, nil
	}

	// (d) first by object ID.
	sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
	ids := make([]string, len(pool))
	same := true
	for i, c := range pool {
		ids[i] = c.ID
		if c.ID != pool[0].ID {
			same = false
		}
	}
	if same {
		return pool[0].ID, nil
	}
	// Distinct survivors under (d) means ordering decides; ties that are
	// still genuinely ambiguous (identical names from different sources)
	// surface as a disambiguation request.
	if len(pool) > 1 && strings.EqualFold(pool[0].Name, pool[1].Name) {
		return "", &Disambiguation{Phrase: phrase, Candidates: ids}
	}
	return pool[0].ID, nil
}
