package g

import "strings"

// Node is a parsed G expression. String() renders the canonical source form;
// parsing that form again yields an equal tree.
type Node interface {
	Span() Span
	String() string
}

// Lit is a literal: string, number, boolean, or nil.
type Lit struct {
	Val  Value
	Pos  Span
	Text string // original source text for numbers; "" when synthesized
}

func (n *Lit) Span() Span { return n.Pos }
func (n *Lit) String() string {
	switch v := n.Val.(type) {
	case string:
		return Quote(v)
	case nil:
		return "null"
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return formatNumber(v)
	default:
		return ToString(n.Val)
	}
}

// RefNode is an object reference literal: #name or #ns:name.
type RefNode struct {
	Ref Ref
	Pos Span
}

func (n *RefNode) Span() Span     { return n.Pos }
func (n *RefNode) String() string { return string(n.Ref) }

// Sym is a bare symbol: a callee name or variable reference.
type Sym struct {
	Name string
	Pos  Span
}

func (n *Sym) Span() Span     { return n.Pos }
func (n *Sym) String() string { return n.Name }

// AttrNode is attribute access: <target>.<name>, left-associative.
type AttrNode struct {
	Target Node
	Name   string
	Pos    Span
}

func (n *AttrNode) Span() Span     { return n.Pos }
func (n *AttrNode) String() string { return n.Target.String() + "." + n.Name }

// ExecNode is an execution form: @obj, @obj.attr, or @var.
type ExecNode struct {
	Target Node // *RefNode, *Sym, or *AttrNode over either
	Pos    Span
}

func (n *ExecNode) Span() Span     { return n.Pos }
func (n *ExecNode) String() string { return "@" + n.Target.String() }

// SendNode is the message form: <target>"payload". Payload is either a
// string literal or an @-execution expression.
type SendNode struct {
	Target  Node
	Payload Node
	Pos     Span
}

func (n *SendNode) Span() Span { return n.Pos }
func (n *SendNode) String() string {
	if lit, ok := n.Payload.(*Lit); ok {
		return n.Target.String() + lit.String()
	}
	return n.Target.String() + `"` + n.Payload.String() + `"`
}

// ListNode is a bracketed list [head arg ...]. Whether the head is a callee
// or the list is implicit data is decided at evaluation time.
type ListNode struct {
	Elems []Node
	Pos   Span
}

func (n *ListNode) Span() Span { return n.Pos }
func (n *ListNode) String() string {
	parts := make([]string, len(n.Elems))
	for i, e := range n.Elems {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}
