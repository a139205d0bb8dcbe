// Package g implements the G softcode language: runtime values, the lexer,
// and the parser. Evaluation lives in pkg/eval.
package g

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is a G runtime value. The concrete types are:
//
//	nil      — G null
//	string   — string (and G source text; source is only distinguished by use)
//	float64  — number
//	bool     — boolean
//	List     — ordered sequence
//	Map      — string-keyed mapping
//	Ref      — object reference by ID
type Value any

// List is an ordered sequence of values.
type List []Value

// Map is a string-keyed mapping of values.
type Map map[string]Value

// Ref is an object reference, stored as the object ID including the leading '#'.
type Ref string

// ID returns the object ID the reference points at.
func (r Ref) ID() string { return string(r) }

// ToString coerces any value to its G string form. null becomes the empty
// string, lists become their bracketed space-joined form.
func ToString(v Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(t)
	case Ref:
		return string(t)
	case List:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = quoteIfString(e)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case Map:
		// Deterministic order is not guaranteed for maps; callers that need
		// stable output should iterate sorted keys themselves.
		var sb strings.Builder
		sb.WriteByte('{')
		first := true
		for k, e := range t {
			if !first {
				sb.WriteByte(' ')
			}
			first = false
			sb.WriteString(k)
			sb.WriteByte(':')
			sb.WriteString(quoteIfString(e))
		}
		sb.WriteByte('}')
		return sb.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// quoteIfString renders list elements: strings keep their quotes so that the
// rendered form re-parses to the same list.
func quoteIfString(v Value) string {
	if s, ok := v.(string); ok {
		return Quote(s)
	}
	return ToString(v)
}

// Quote renders a string as a G string literal, escaping only the four
// escapes G understands.
func Quote(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			sb.WriteByte(s[i])
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ToNumber coerces a value to a number. Unparseable strings coerce to 0,
// matching G's string-centric arithmetic.
func ToNumber(v Value) float64 {
	switch t := v.(type) {
	case nil:
		return 0
	case float64:
		return t
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Truthy reports the G truthiness of a value: false, 0, null, and the empty
// string are false; everything else is true.
func Truthy(v Value) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case List:
		return true
	case Map:
		return true
	case Ref:
		return true
	default:
		return true
	}
}

// Equal compares two values: value-wise for primitives and lists, identity
// (same ID) for object references.
func Equal(a, b Value) bool {
	switch at := a.(type) {
	case nil:
		return b == nil
	case string:
		bs, ok := b.(string)
		return ok && at == bs
	case float64:
		bf, ok := b.(float64)
		return ok && at == bf
	case bool:
		bb, ok := b.(bool)
		return ok && at == bb
	case Ref:
		br, ok := b.(Ref)
		return ok && at == br
	case List:
		bl, ok := b.(List)
		if !ok || len(at) != len(bl) {
			return false
		}
		for i := range at {
			if !Equal(at[i], bl[i]) {
				return false
			}
		}
		return true
	case Map:
		bm, ok := b.(Map)
		if !ok || len(at) != len(bm) {
			return false
		}
		for k, v := range at {
			bv, present := bm[k]
			if !present || !Equal(v, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// AsList coerces a value to a List. A string that looks like a list is parsed
// into one; any other scalar becomes a one-element list. This is the
// list-as-string rule: listlength "[1 2 3]" is 3, but a list containing that
// string has length 1.
func AsList(v Value) (List, error) {
	switch t := v.(type) {
	case List:
		return t, nil
	case nil:
		return List{}, nil
	case string:
		trimmed := strings.TrimSpace(t)
		if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
			node, err := Parse(trimmed)
			if err != nil {
				return nil, err
			}
			if ln, ok := node.(*ListNode); ok {
				out := make(List, 0, len(ln.Elems))
				for _, el := range ln.Elems {
					out = append(out, literalValue(el))
				}
				return out, nil
			}
		}
		return List{t}, nil
	default:
		return List{t}, nil
	}
}

// literalValue renders a parsed node to a plain value without evaluation:
// literals and refs keep their value, anything else keeps its source text.
func literalValue(n Node) Value {
	switch t := n.(type) {
	case *Lit:
		return t.Val
	case *RefNode:
		return t.Ref
	default:
		return n.String()
	}
}
