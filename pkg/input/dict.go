package input

import (
	"strings"
	"sync/atomic"
)

// WordTag is the part-of-speech class the Game recognizer assigns a token.
type WordTag int

const (
	TagUnknown WordTag = iota
	TagVerb
	TagNoun
	TagPreposition
	TagArticle
	TagPronoun
)

func (t WordTag) String() string {
	switch t {
	case TagVerb:
		return "verb"
	case TagNoun:
		return "noun"
	case TagPreposition:
		return "preposition"
	case TagArticle:
		return "article"
	case TagPronoun:
		return "pronoun"
	default:
		return "unknown"
	}
}

// Dictionary tags tokens for the Game recognizer. The built-in closed
// classes are fixed; verbs and nouns are registered dynamically (from G via
// the engine) into an immutable snapshot swapped atomically.
type Dictionary struct {
	dynamic atomic.Pointer[map[string]WordTag]
}

var closedClasses = map[string]WordTag{
	"a": TagArticle, "an": TagArticle, "the": TagArticle,
	"in": TagPreposition, "on": TagPreposition, "at": TagPreposition,
	"to": TagPreposition, "with": TagPreposition, "from": TagPreposition,
	"under": TagPreposition, "into": TagPreposition, "onto": TagPreposition,
	"it": TagPronoun, "them": TagPronoun, "him": TagPronoun,
	"her": TagPronoun, "me": TagPronoun, "self": TagPronoun,
}

// NewDictionary creates a dictionary with the given initial verbs.
func NewDictionary(verbs ...string) *Dictionary {
	d := &Dictionary{}
	empty := map[string]WordTag{}
	d.dynamic.Store(&empty)
	d.RegisterVerbs(verbs...)
	return d
}

// RegisterVerbs tags words as verbs.
func (d *Dictionary) RegisterVerbs(words ...string) { d.register(TagVerb, words) }

// RegisterNouns tags words as nouns.
func (d *Dictionary) RegisterNouns(words ...string) { d.register(TagNoun, words) }

// RegisterTag tags words with an arbitrary class (used by G registration).
func (d *Dictionary) RegisterTag(tag WordTag, words ...string) { d.register(tag, words) }

func (d *Dictionary) register(tag WordTag, words []string) {
	for {
		old := d.dynamic.Load()
		next := make(map[string]WordTag, len(*old)+len(words))
		for k, v := range *old {
			next[k] = v
		}
		for _, w := range words {
			next[strings.ToLower(w)] = tag
		}
		if d.dynamic.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Tag classifies a token. Closed classes win over dynamic registrations;
// unregistered words are unknown (treated as noun material by the parser).
func (d *Dictionary) Tag(word string) WordTag {
	lower := strings.ToLower(word)
	if t, ok := closedClasses[lower]; ok {
		return t
	}
	if t, ok := (*d.dynamic.Load())[lower]; ok {
		return t
	}
	return TagUnknown
}

// IsVerb reports whether the word is a registered verb.
func (d *Dictionary) IsVerb(word string) bool { return d.Tag(word) == TagVerb }
