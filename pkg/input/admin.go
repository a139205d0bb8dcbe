package input

import (
	"strings"
	"sync/atomic"
)

// AdminRecognizer matches /-prefixed commands against a dynamically
// registered table. The table is an immutable snapshot swapped atomically,
// so recognitions never observe a half-updated registry.
type AdminRecognizer struct {
	table atomic.Pointer[map[string]bool]
}

// NewAdminRecognizer creates a recognizer with the given initial commands.
func NewAdminRecognizer(commands ...string) *AdminRecognizer {
	r := &AdminRecognizer{}
	empty := map[string]bool{}
	r.table.Store(&empty)
	r.Register(commands...)
	return r
}

// Name implements Recognizer.
func (r *AdminRecognizer) Name() string { return "admin" }

// Register adds commands by swapping in a new snapshot.
func (r *AdminRecognizer) Register(commands ...string) {
	for {
		old := r.table.Load()
		next := make(map[string]bool, len(*old)+len(commands))
		for k := range *old {
			next[k] = true
		}
		for _, c := range commands {
			next[strings.ToLower(c)] = true
		}
		if r.table.CompareAndSwap(old, &next) {
			return
		}
	}
}

// Recognize implements Recognizer: the line must begin with '/'; the first
// whitespace-separated token after it is the command (case-insensitive),
// the rest are arguments.
func (r *AdminRecognizer) Recognize(raw string) (*Recognition, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "/") {
		return nil, nil
	}
	fields := strings.Fields(trimmed[1:])
	if len(fields) == 0 {
		return nil, nil
	}
	cmd := strings.ToLower(fields[0])
	if !(*r.table.Load())[cmd] {
		return nil, nil
	}
	return &Recognition{
		Mode: ModeAdmin,
		Verb: cmd,
		Args: fields[1:],
		Raw:  raw,
	}, nil
}
