package functions

import (
	"math"

	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/g"
)

func registerMath(reg *eval.Registry) {
	reg.Register("+", fnAdd, 0, -1)
	reg.Register("-", fnSub, 1, -1)
	reg.Register("*", fnMul, 0, -1)
	reg.Register("/", fnDiv, 2, 2)
	reg.Register("mod", fnMod, 2, 2)
	reg.Register("<", fnLt, 2, 2)
	reg.Register(">", fnGt, 2, 2)
	reg.Register("<=", fnLe, 2, 2)
	reg.Register(">=", fnGe, 2, 2)
}

func fnAdd(_ *eval.Context, args []g.Value) (g.Value, error) {
	sum := 0.0
	for _, a := range args {
		sum += g.ToNumber(a)
	}
	return sum, nil
}

func fnSub(_ *eval.Context, args []g.Value) (g.Value, error) {
	if len(args) == 1 {
		return -g.ToNumber(args[0]), nil
	}
	result := g.ToNumber(args[0])
	for _, a := range args[1:] {
		result -= g.ToNumber(a)
	}
	return result, nil
}

func fnMul(_ *eval.Context, args []g.Value) (g.Value, error) {
	prod := 1.0
	for _, a := range args {
		prod *= g.ToNumber(a)
	}
	return prod, nil
}

func fnDiv(_ *eval.Context, args []g.Value) (g.Value, error) {
	divisor := g.ToNumber(args[1])
	if divisor == 0 {
		return nil, eval.Failf(eval.FailTypeCoercion, "division by zero")
	}
	return g.ToNumber(args[0]) / divisor, nil
}

func fnMod(_ *eval.Context, args []g.Value) (g.Value, error) {
	divisor := g.ToNumber(args[1])
	if divisor == 0 {
		return nil, eval.Failf(eval.FailTypeCoercion, "division by zero")
	}
	return math.Mod(g.ToNumber(args[0]), divisor), nil
}

func fnLt(_ *eval.Context, args []g.Value) (g.Value, error) {
	return g.ToNumber(args[0]) < g.ToNumber(args[1]), nil
}

func fnGt(_ *eval.Context, args []g.Value) (g.Value, error) {
	return g.ToNumber(args[0]) > g.ToNumber(args[1]), nil
}

func fnLe(_ *eval.Context, args []g.Value) (g.Value, error) {
	return g.ToNumber(args[0]) <= g.ToNumber(args[1]), nil
}

func fnGe(_ *eval.Context, args []g.Value) (g.Value, error) {
	return g.ToNumber(args[0]) >= g.ToNumber(args[1]), nil
}
