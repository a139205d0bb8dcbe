package functions

import (
	"strings"

	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/g"
)

func registerMisc(reg *eval.Registry) {
	reg.Register("log", fnLog, 0, -1)
	reg.Register("equals", fnEquals, 2, 2)
	reg.Register("not", fnNot, 1, 1)
}

// log appends its arguments to the server log at info level; returns null.
func fnLog(ctx *eval.Context, args []g.Value) (g.Value, error) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = g.ToString(a)
	}
	ctx.World.Logf("g: [%s] %s", ctx.Executor, strings.Join(parts, " "))
	return nil, nil
}

// equals is value-wise for primitives and lists, identity for handles.
func fnEquals(_ *eval.Context, args []g.Value) (g.Value, error) {
	return g.Equal(args[0], args[1]), nil
}

func fnNot(_ *eval.Context, args []g.Value) (g.Value, error) {
	return !g.Truthy(args[0]), nil
}
