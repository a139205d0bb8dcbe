package functions

import (
	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/g"
)

func registerLists(reg *eval.Registry) {
	reg.Register("list", fnList, 0, -1)
	reg.Register("listlength", fnListLength, 1, 1)
	reg.Register("nth", fnNth, 2, 2)
	reg.Register("append", fnAppend, 2, 2)
}

func fnList(_ *eval.Context, args []g.Value) (g.Value, error) {
	out := make(g.List, len(args))
	copy(out, args)
	return out, nil
}

// listlength coerces its argument through the list-as-string rule: a string
// that looks like a list is parsed before counting.
func fnListLength(_ *eval.Context, args []g.Value) (g.Value, error) {
	lst, err := g.AsList(args[0])
	if err != nil {
		return nil, eval.Failf(eval.FailTypeCoercion, "cannot coerce %q to a list: %v", g.ToString(args[0]), err)
	}
	return float64(len(lst)), nil
}

// nth is 0-based; out-of-range yields null.
func fnNth(_ *eval.Context, args []g.Value) (g.Value, error) {
	lst, err := g.AsList(args[0])
	if err != nil {
		return nil, eval.Failf(eval.FailTypeCoercion, "cannot coerce %q to a list: %v", g.ToString(args[0]), err)
	}
	i := int(g.ToNumber(args[1]))
	if i < 0 || i >= len(lst) {
		return nil, nil
	}
	return lst[i], nil
}

func fnAppend(_ *eval.Context, args []g.Value) (g.Value, error) {
	lst, err := g.AsList(args[0])
	if err != nil {
		return nil, eval.Failf(eval.FailTypeCoercion, "cannot coerce %q to a list: %v", g.ToString(args[0]), err)
	}
	out := make(g.List, len(lst), len(lst)+1)
	copy(out, lst)
	return append(out, args[1]), nil
}
