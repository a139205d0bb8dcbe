// Package eval implements the tree-walking G interpreter: execution
// contexts, evaluation rules, and the failure taxonomy. Built-in functions
// live in pkg/eval/functions.
package eval

import (
	"fmt"

	"github.com/adamdray/gaia-mud/pkg/g"
)

// FailureKind classifies interpreter and engine failures.
type FailureKind int

const (
	FailParse FailureKind = iota
	FailUnresolvedCallee
	FailTypeCoercion
	FailPermission
	FailNotFound
	FailStoreConflict
	FailTimeout
	FailDepthLimit
	FailTransport
	FailProtocol
)

func (k FailureKind) String() string {
	switch k {
	case FailParse:
		return "parse"
	case FailUnresolvedCallee:
		return "unresolved-callee"
	case FailTypeCoercion:
		return "type-coercion"
	case FailPermission:
		return "permission"
	case FailNotFound:
		return "not-found"
	case FailStoreConflict:
		return "store-conflict"
	case FailTimeout:
		return "timeout"
	case FailDepthLimit:
		return "depth-limit"
	case FailTransport:
		return "transport"
	case FailProtocol:
		return "protocol"
	default:
		return "unknown"
	}
}

// Failure is a G-level failure: a kind, a human-readable reason, and the
// source text of the failing expression.
type Failure struct {
	Kind   FailureKind
	Reason string
	Expr   string // source text of the failing expression, if known
	Span   g.Span
}

func (f *Failure) Error() string {
	if f.Expr != "" {
		return fmt.Sprintf("%s: %s in %s", f.Kind, f.Reason, f.Expr)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
}

// Failf builds a Failure with a formatted reason.
func Failf(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// FailAt attaches the failing expression to a failure, keeping an already
// recorded (innermost) expression if present.
func FailAt(err error, n g.Node) error {
	if f, ok := err.(*Failure); ok {
		if f.Expr == "" {
			f.Expr = n.String()
			f.Span = n.Span()
		}
		return f
	}
	return err
}

// Diagnostic renders the single-line form reported to the actor.
func (f *Failure) Diagnostic() string {
	if f.Expr != "" {
		return fmt.Sprintf("Error (%s): %s — in %s", f.Kind, f.Reason, f.Expr)
	}
	return fmt.Sprintf("Error (%s): %s", f.Kind, f.Reason)
}

// returnSignal unwinds the innermost attribute invocation for the return form.
type returnSignal struct {
	val g.Value
}

func (returnSignal) Error() string { return "return outside attribute invocation" }
