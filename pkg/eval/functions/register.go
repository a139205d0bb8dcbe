// Package functions provides the G standard library: built-ins bridging G
// code back into the world (attribute access, messaging, logging) plus
// arithmetic, string, and list operations.
package functions

import "github.com/adamdray/gaia-mud/pkg/eval"

// Register installs the full standard library into a registry.
func Register(reg *eval.Registry) {
	registerMath(reg)
	registerStrings(reg)
	registerLists(reg)
	registerObjects(reg)
	registerMisc(reg)
}

// NewStdlib returns a registry with the standard library installed.
func NewStdlib() *eval.Registry {
	reg := eval.NewRegistry()
	Register(reg)
	return reg
}
