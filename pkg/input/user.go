package input

import (
	"strings"
	"sync/atomic"
)

// UserRecognizer matches a dynamically registered keyword set (WHO, QUIT,
// CONNECT, COMMANDS, ...). The keyword is case-insensitive; arguments are
// preserved as typed.
type UserRecognizer struct {
	table atomic.Pointer[map[string]bool]
}

// NewUserRecognizer creates a recognizer with the given initial keywords.
func NewUserRecognizer(keywords ...string) *UserRecognizer {
	r := &UserRecognizer{}
	empty := map[string]bool{}
	r.table.Store(&empty)
	r.Register(keywords...)
	return r
}

// Name implements Recognizer.
func (r *UserRecognizer) Name() string { return "user" }

// Register adds keywords by swapping in a new snapshot.
func (r *UserRecognizer) Register(keywords ...string) {
	for {
		old := r.table.Load()
		next := make(map[string]bool, len(*old)+len(keywords))
		for k := range *old {
			next[k] = true
		}
		for _, k := range keywords {
			next[strings.ToLower(k)] = true
		}
		if r.table.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Recognize implements Recognizer.
func (r *UserRecognizer) Recognize(raw string) (*Recognition, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	keyword, rest, _ := strings.Cut(trimmed, " ")
	if !(*r.table.Load())[strings.ToLower(keyword)] {
		return nil, nil
	}
	var args []string
	if rest = strings.TrimSpace(rest); rest != "" {
		args = strings.Fields(rest)
	}
	return &Recognition{
		Mode: ModeUser,
		Verb: strings.ToLower(keyword),
		Args: args,
		Raw:  raw,
	}, nil
}
