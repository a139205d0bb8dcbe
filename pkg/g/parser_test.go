package g

import "testing"

func parse(t *testing.T, src string) Node {
	t.Helper()
	node, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return node
}

func TestParseLiterals(t *testing.T) {
	tests := []struct {
		src  string
		want Value
	}{
		{`"hi"`, "hi"},
		{"42", float64(42)},
		{"-3.5", -3.5},
		{"true", true},
		{"false", false},
		{"null", nil},
		{"nil", nil},
	}
	for _, tt := range tests {
		node := parse(t, tt.src)
		lit, ok := node.(*Lit)
		if !ok {
			t.Errorf("%q: got %T, want *Lit", tt.src, node)
			continue
		}
		if !Equal(lit.Val, tt.want) {
			t.Errorf("%q: value %v, want %v", tt.src, lit.Val, tt.want)
		}
	}
}

func TestParseListSeparators(t *testing.T) {
	// Commas are identical to spaces; runs do not introduce null elements.
	forms := []string{"[a b c]", "[a, b, c]", "[a,,b,,,c]", "[ a , b , c ]"}
	base := parse(t, forms[0]).String()
	for _, src := range forms[1:] {
		if got := parse(t, src).String(); got != base {
			t.Errorf("%q: canonical form %q, want %q", src, got, base)
		}
	}
}

func TestParseEmptyStringElement(t *testing.T) {
	node := parse(t, `[a,b,"",c]`)
	ln, ok := node.(*ListNode)
	if !ok {
		t.Fatalf("got %T, want *ListNode", node)
	}
	if len(ln.Elems) != 4 {
		t.Fatalf("length %d, want 4", len(ln.Elems))
	}
	lit, ok := ln.Elems[2].(*Lit)
	if !ok || lit.Val != "" {
		t.Errorf("third element = %v, want empty string literal", ln.Elems[2])
	}
}

func TestParseEmptyList(t *testing.T) {
	ln := parse(t, "[]").(*ListNode)
	if len(ln.Elems) != 0 {
		t.Errorf("length %d, want 0", len(ln.Elems))
	}
}

func TestParseAttributeAccess(t *testing.T) {
	node := parse(t, "#a.color")
	attr, ok := node.(*AttrNode)
	if !ok {
		t.Fatalf("got %T, want *AttrNode", node)
	}
	if attr.Name != "color" {
		t.Errorf("name = %q, want color", attr.Name)
	}
	if ref, ok := attr.Target.(*RefNode); !ok || ref.Ref != "#a" {
		t.Errorf("target = %v, want #a", attr.Target)
	}

	// Left associativity: #a.b.c is (#a.b).c
	node = parse(t, "#a.b.c")
	outer := node.(*AttrNode)
	if outer.Name != "c" {
		t.Fatalf("outer name = %q, want c", outer.Name)
	}
	inner, ok := outer.Target.(*AttrNode)
	if !ok || inner.Name != "b" {
		t.Errorf("inner = %v, want #a.b", outer.Target)
	}
}

func TestParseExecForms(t *testing.T) {
	tests := []struct {
		src string
	}{
		{"@#obj"},
		{"@#obj.greet"},
		{"@handler"},
	}
	for _, tt := range tests {
		node := parse(t, tt.src)
		if _, ok := node.(*ExecNode); !ok {
			t.Errorf("%q: got %T, want *ExecNode", tt.src, node)
		}
		if got := node.String(); got != tt.src {
			t.Errorf("%q: unparse %q", tt.src, got)
		}
	}
}

func TestParseSendForms(t *testing.T) {
	node := parse(t, `#p"hello"`)
	send, ok := node.(*SendNode)
	if !ok {
		t.Fatalf("got %T, want *SendNode", node)
	}
	if lit, ok := send.Payload.(*Lit); !ok || lit.Val != "hello" {
		t.Errorf("payload = %v, want string literal hello", send.Payload)
	}

	node = parse(t, `#p"@#room.describe"`)
	send = node.(*SendNode)
	if _, ok := send.Payload.(*ExecNode); !ok {
		t.Errorf("payload = %T, want *ExecNode", send.Payload)
	}
}

func TestParseCalleePositionForms(t *testing.T) {
	// Callee may be a symbol, @-expression, attribute access, or objref.
	for _, src := range []string{"[f a b]", "[@#obj.handler x]", "[#obj.fn 1]", "[#obj 1]"} {
		node := parse(t, src)
		if _, ok := node.(*ListNode); !ok {
			t.Errorf("%q: got %T, want *ListNode", src, node)
		}
	}
}

func TestParseIdempotence(t *testing.T) {
	// parse(unparse(parse(P))) == parse(P) for a spread of programs.
	programs := []string{
		`[if [equals 1 2] "yes" "no"]`,
		`[define greeting "hello, world"]`,
		`[send @actor [get_attr @executor "description"]]`,
		`#p"@#room.describe"`,
		`[list 1 2.5 true null "x"]`,
		`[concat "a" [nth [list x y] 0]]`,
		`@#commands.cmd_look`,
		`[a,,b,,,c]`,
	}
	for _, src := range programs {
		first := parse(t, src)
		second, err := Parse(first.String())
		if err != nil {
			t.Errorf("%q: reparse of %q failed: %v", src, first.String(), err)
			continue
		}
		if second.String() != first.String() {
			t.Errorf("%q: not idempotent: %q vs %q", src, first.String(), second.String())
		}
	}
}

func TestParseProgramMultipleForms(t *testing.T) {
	nodes, err := ParseProgram("[define x 1]\n[+ x 2]\n")
	if err != nil {
		t.Fatalf("parse program: %v", err)
	}
	if len(nodes) != 2 {
		t.Errorf("got %d forms, want 2", len(nodes))
	}
}

func TestParseErrors(t *testing.T) {
	tests := []string{
		"[a b",
		"#a.",
		"@",
		`#p"`,
	}
	for _, src := range tests {
		if _, err := Parse(src); err == nil {
			t.Errorf("%q: expected parse error", src)
		}
	}
}

func TestAsListStringCoercion(t *testing.T) {
	// "[1 2 3]" coerces to a 3-element list; a list holding that string has 1.
	lst, err := AsList("[1 2 3]")
	if err != nil {
		t.Fatalf("AsList: %v", err)
	}
	if len(lst) != 3 {
		t.Errorf("length %d, want 3", len(lst))
	}

	wrapped := List{"[1 2 3]"}
	got, err := AsList(wrapped)
	if err != nil {
		t.Fatalf("AsList: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("length %d, want 1", len(got))
	}
}
