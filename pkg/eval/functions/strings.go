package functions

import (
	"strings"

	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/g"
)

func registerStrings(reg *eval.Registry) {
	reg.Register("concat", fnConcat, 0, -1)
	reg.Register("strlen", fnStrlen, 1, 1)
	reg.Register("substr", fnSubstr, 2, 3)
}

func fnConcat(_ *eval.Context, args []g.Value) (g.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(g.ToString(a))
	}
	return sb.String(), nil
}

func fnStrlen(_ *eval.Context, args []g.Value) (g.Value, error) {
	return float64(len([]rune(g.ToString(args[0])))), nil
}

// substr s start [length]: 0-based rune offsets; out-of-range indexes clamp.
func fnSubstr(_ *eval.Context, args []g.Value) (g.Value, error) {
	runes := []rune(g.ToString(args[0]))
	start := int(g.ToNumber(args[1]))
	if start < 0 {
		start = 0
	}
	if start > len(runes) {
		start = len(runes)
	}
	end := len(runes)
	if len(args) == 3 {
		end = start + int(g.ToNumber(args[2]))
		if end > len(runes) {
			end = len(runes)
		}
		if end < start {
			end = start
		}
	}
	return string(runes[start:end]), nil
}
