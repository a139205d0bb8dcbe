// Package input implements the layered input pipeline: the User, Admin,
// and Game recognizers, the session-state-driven stack, and the dictionary
// the Game recognizer tags tokens with.
package input

import "fmt"

// Mode identifies which recognizer produced a recognition.
type Mode int

const (
	ModeUser Mode = iota
	ModeAdmin
	ModeGame
)

func (m Mode) String() string {
	switch m {
	case ModeUser:
		return "user"
	case ModeAdmin:
		return "admin"
	case ModeGame:
		return "game"
	default:
		return "unknown"
	}
}

// Recognition is a successfully recognized input line.
type Recognition struct {
	Mode Mode
	Verb string
	Args []string
	Raw  string

	// ResolvedObjects maps grammatical roles ("direct", "indirect") to
	// object IDs for Game-mode recognitions.
	ResolvedObjects map[string]string
}

// Disambiguation is returned when a noun phrase matches several objects
// after every tie-breaker; the session is asked to choose.
type Disambiguation struct {
	Phrase     string
	Candidates []string // object IDs, in tie-break order
}

func (d *Disambiguation) Error() string {
	return fmt.Sprintf("ambiguous reference %q (%d candidates)", d.Phrase, len(d.Candidates))
}

// Recognizer is pure on the raw line: (raw) → Recognized | NotRecognized.
// A nil Recognition with a nil error means NotRecognized; a non-nil error
// (e.g. *Disambiguation) stops the stack with a response of its own.
type Recognizer interface {
	Name() string
	Recognize(raw string) (*Recognition, error)
}

// StackFor returns the ordered recognizer stack for the session state.
//
//	admin? embodied?  stack
//	no     no         [User]
//	no     yes        [User, Game]
//	yes    no         [Admin, User]
//	yes    yes        [Admin, User, Game]
func StackFor(admin, embodied bool, a, u, g Recognizer) []Recognizer {
	switch {
	case admin && embodied:
		return []Recognizer{a, u, g}
	case admin:
		return []Recognizer{a, u}
	case embodied:
		return []Recognizer{u, g}
	default:
		return []Recognizer{u}
	}
}

// Run tries each recognizer in order; the first success wins.
func Run(stack []Recognizer, raw string) (*Recognition, error) {
	for _, r := range stack {
		rec, err := r.Recognize(raw)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}
