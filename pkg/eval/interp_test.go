package eval

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/adamdray/gaia-mud/pkg/g"
)

// mockWorld implements World over plain maps with single-parent-free
// attribute storage; inheritance is exercised in pkg/world tests.
type mockWorld struct {
	attrs     map[string]map[string]g.Value
	logs      []string
	delivered []delivery
	created   []string
	files     map[string]string
}

type delivery struct {
	target  string
	payload g.Value
}

func newMockWorld() *mockWorld {
	return &mockWorld{
		attrs: make(map[string]map[string]g.Value),
		files: make(map[string]string),
	}
}

func (m *mockWorld) setAttr(id, name string, v g.Value) {
	if m.attrs[id] == nil {
		m.attrs[id] = make(map[string]g.Value)
	}
	m.attrs[id][name] = v
}

func (m *mockWorld) GetAttr(id, name string) (g.Value, bool, error) {
	v, ok := m.attrs[id][name]
	return v, ok, nil
}

func (m *mockWorld) SetAttr(id, name string, v g.Value) error {
	m.setAttr(id, name, v)
	return nil
}

func (m *mockWorld) Exists(id string) bool { return m.attrs[id] != nil }

func (m *mockWorld) CreateObject(name string, parents []string, owner string) (string, error) {
	id := "#" + name
	m.attrs[id] = make(map[string]g.Value)
	m.created = append(m.created, id)
	return id, nil
}

func (m *mockWorld) Deliver(target string, payload g.Value, inv *Invocation) error {
	m.delivered = append(m.delivered, delivery{target, payload})
	return nil
}

func (m *mockWorld) Logf(format string, args ...any) {
	m.logs = append(m.logs, fmt.Sprintf(format, args...))
}

func (m *mockWorld) ReadSourceFile(path string) (string, error) {
	src, ok := m.files[path]
	if !ok {
		return "", fmt.Errorf("no such file %s", path)
	}
	return src, nil
}

// testRegistry mirrors the stdlib subset the interpreter tests need without
// importing pkg/eval/functions (which would cycle).
func testRegistry() *Registry {
	reg := NewRegistry()
	reg.Register("+", func(_ *Context, args []g.Value) (g.Value, error) {
		sum := 0.0
		for _, a := range args {
			sum += g.ToNumber(a)
		}
		return sum, nil
	}, 0, -1)
	reg.Register("equals", func(_ *Context, args []g.Value) (g.Value, error) {
		return g.Equal(args[0], args[1]), nil
	}, 2, 2)
	reg.Register("not", func(_ *Context, args []g.Value) (g.Value, error) {
		return !g.Truthy(args[0]), nil
	}, 1, 1)
	reg.Register("get_attr", func(ctx *Context, args []g.Value) (g.Value, error) {
		id, _ := ctx.ResolveRef(args[0])
		v, ok, err := ctx.World.GetAttr(id, g.ToString(args[1]))
		if err != nil || !ok {
			return nil, err
		}
		return v, nil
	}, 2, 2)
	reg.Register("set_attr", func(ctx *Context, args []g.Value) (g.Value, error) {
		id, _ := ctx.ResolveRef(args[0])
		return args[2], ctx.World.SetAttr(id, g.ToString(args[1]), args[2])
	}, 3, 3)
	reg.Register("send", func(ctx *Context, args []g.Value) (g.Value, error) {
		id, _ := ctx.ResolveRef(args[0])
		return nil, ctx.World.Deliver(id, args[1], ctx.Inv)
	}, 2, 2)
	reg.Register("boom", func(_ *Context, args []g.Value) (g.Value, error) {
		return nil, Failf(FailTypeCoercion, "boom")
	}, 0, 0)
	return reg
}

func evalSrc(t *testing.T, w World, src string) (g.Value, error) {
	t.Helper()
	node, err := g.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	inv := NewInvocation(time.Second, 0)
	ctx := NewContext(w, testRegistry(), "#exec", "#actor", inv)
	return ctx.Eval(node)
}

func mustEval(t *testing.T, w World, src string) g.Value {
	t.Helper()
	v, err := evalSrc(t, w, src)
	if err != nil {
		t.Fatalf("eval %q: %v", src, err)
	}
	return v
}

func TestEvalLiteralsAndData(t *testing.T) {
	w := newMockWorld()
	tests := []struct {
		src  string
		want g.Value
	}{
		{`"hi"`, "hi"},
		{"7", float64(7)},
		{"true", true},
		{"null", nil},
		{"[+ 1 2 3]", float64(6)},
		{"[+ ]", float64(0)},
		{"[]", g.List{}},
		{"[1 2 3]", g.List{float64(1), float64(2), float64(3)}},
	}
	for _, tt := range tests {
		got := mustEval(t, w, tt.src)
		if !g.Equal(got, tt.want) {
			t.Errorf("%q = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestEvalLaws(t *testing.T) {
	w := newMockWorld()
	// equals a a is true; not not x equals truthiness of x; + commutes.
	if v := mustEval(t, w, `[equals "x" "x"]`); v != true {
		t.Errorf("[equals x x] = %v", v)
	}
	if v := mustEval(t, w, `[not [not "x"]]`); v != true {
		t.Errorf("[not [not x]] = %v", v)
	}
	if v := mustEval(t, w, `[not [not ""]]`); v != false {
		t.Errorf("[not [not \"\"]] = %v", v)
	}
	a := mustEval(t, w, "[+ 3 4]")
	b := mustEval(t, w, "[+ 4 3]")
	if !g.Equal(a, b) {
		t.Errorf("+ not commutative: %v vs %v", a, b)
	}
}

func TestIfEvaluatesOnlyTakenBranch(t *testing.T) {
	w := newMockWorld()
	// The untaken branch would fail if evaluated.
	if v := mustEval(t, w, `[if true "yes" [boom]]`); v != "yes" {
		t.Errorf("got %v, want yes", v)
	}
	if v := mustEval(t, w, `[if false [boom] "no"]`); v != "no" {
		t.Errorf("got %v, want no", v)
	}
	if v := mustEval(t, w, `[if false [boom]]`); v != nil {
		t.Errorf("if with no else = %v, want null", v)
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	w := newMockWorld()
	if v := mustEval(t, w, `[and false [boom]]`); g.Truthy(v) {
		t.Errorf("and did not short-circuit: %v", v)
	}
	if v := mustEval(t, w, `[or "x" [boom]]`); v != "x" {
		t.Errorf("or did not short-circuit: %v", v)
	}
}

func TestDefineBindsInFrame(t *testing.T) {
	w := newMockWorld()
	node, err := g.Parse(`[define x 41]`)
	if err != nil {
		t.Fatal(err)
	}
	inv := NewInvocation(time.Second, 0)
	ctx := NewContext(w, testRegistry(), "#exec", "#actor", inv)
	if _, err := ctx.Eval(node); err != nil {
		t.Fatal(err)
	}
	node, _ = g.Parse("[+ x 1]")
	v, err := ctx.Eval(node)
	if err != nil {
		t.Fatal(err)
	}
	if v != float64(42) {
		t.Errorf("x+1 = %v, want 42", v)
	}
}

func TestAttrReadAbsentIsNil(t *testing.T) {
	w := newMockWorld()
	w.attrs["#a"] = map[string]g.Value{"color": "red"}
	if v := mustEval(t, w, "#a.color"); v != "red" {
		t.Errorf("got %v, want red", v)
	}
	if v := mustEval(t, w, "#a.missing"); v != nil {
		t.Errorf("absent attribute = %v, want null", v)
	}
}

func TestInvokeAttrAndReturn(t *testing.T) {
	w := newMockWorld()
	w.setAttr("#obj", "greet", `[return "hello"] [boom]`)
	v := mustEval(t, w, "[@#obj.greet]")
	if v != "hello" {
		t.Errorf("got %v, want hello (return should unwind before boom)", v)
	}
}

func TestInvokeRunViaExec(t *testing.T) {
	w := newMockWorld()
	w.setAttr("#obj", "run", `"ran"`)
	if v := mustEval(t, w, "@#obj"); v != "ran" {
		t.Errorf("got %v, want ran", v)
	}
}

func TestInvokeArgsBinding(t *testing.T) {
	w := newMockWorld()
	w.setAttr("#obj", "sum2", "[+ arg0 arg1]")
	if v := mustEval(t, w, "[@#obj.sum2 20 22]"); v != float64(42) {
		t.Errorf("got %v, want 42", v)
	}
}

func TestExecutorSwitchesOnInvoke(t *testing.T) {
	w := newMockWorld()
	// Code on #obj reads an attribute via @executor: the executor must be
	// #obj during the invocation, not the outer executor.
	w.setAttr("#obj", "whoami", `[get_attr @executor "name"]`)
	w.setAttr("#obj", "name", "inner")
	w.setAttr("#exec", "name", "outer")
	if v := mustEval(t, w, "[@#obj.whoami]"); v != "inner" {
		t.Errorf("got %v, want inner", v)
	}
}

func TestVarHoldingCode(t *testing.T) {
	w := newMockWorld()
	node, _ := g.Parse(`[define f "[+ 1 2]"]`)
	inv := NewInvocation(time.Second, 0)
	ctx := NewContext(w, testRegistry(), "#exec", "#actor", inv)
	if _, err := ctx.Eval(node); err != nil {
		t.Fatal(err)
	}
	node, _ = g.Parse("@f")
	v, err := ctx.Eval(node)
	if err != nil {
		t.Fatal(err)
	}
	if v != float64(3) {
		t.Errorf("@f = %v, want 3", v)
	}
}

func TestSendStringPayload(t *testing.T) {
	w := newMockWorld()
	mustEval(t, w, `#p"hello there"`)
	if len(w.delivered) != 1 {
		t.Fatalf("deliveries = %d, want 1", len(w.delivered))
	}
	if w.delivered[0].target != "#p" || w.delivered[0].payload != "hello there" {
		t.Errorf("got %+v", w.delivered[0])
	}
}

func TestSendExecPayloadRunsUnderTargetThis(t *testing.T) {
	w := newMockWorld()
	// @this inside the payload resolves to the send target.
	w.setAttr("#room", "describe", `[get_attr @this "description"]`)
	w.setAttr("#room", "description", "A quiet room.")
	mustEval(t, w, `#room"@#room.describe"`)
	if len(w.delivered) != 1 || w.delivered[0].payload != "A quiet room." {
		t.Fatalf("got %+v", w.delivered)
	}
}

func TestUnresolvedCalleeDiagnostic(t *testing.T) {
	w := newMockWorld()
	_, err := evalSrc(t, w, "[+ 1 [unknown]]")
	if err == nil {
		t.Fatal("expected failure")
	}
	f, ok := err.(*Failure)
	if !ok {
		t.Fatalf("got %T, want *Failure", err)
	}
	if f.Kind != FailUnresolvedCallee {
		t.Errorf("kind = %v, want unresolved-callee", f.Kind)
	}
	if !strings.Contains(f.Reason, "unknown") {
		t.Errorf("reason %q does not name the callee", f.Reason)
	}
	if f.Expr != "[unknown]" {
		t.Errorf("expr = %q, want the innermost failing span [unknown]", f.Expr)
	}
}

func TestDepthLimit(t *testing.T) {
	w := newMockWorld()
	w.setAttr("#obj", "run", "@#obj")
	_, err := evalSrc(t, w, "@#obj")
	f, ok := err.(*Failure)
	if !ok || f.Kind != FailDepthLimit {
		t.Fatalf("got %v, want depth-limit failure", err)
	}
}

func TestTimeoutCancelsEvaluation(t *testing.T) {
	w := newMockWorld()
	node, _ := g.Parse(`[+ 1 1]`)
	inv := NewInvocation(time.Second, 0)
	inv.Deadline = time.Now().Add(-time.Millisecond)
	ctx := NewContext(w, testRegistry(), "#exec", "#actor", inv)
	_, err := ctx.Eval(node)
	f, ok := err.(*Failure)
	if !ok || f.Kind != FailTimeout {
		t.Fatalf("got %v, want timeout failure", err)
	}
	// The flag stays set for subsequent work in the same invocation.
	if inv.Check() == nil {
		t.Error("cancellation flag not sticky")
	}
}

func TestSetAttrThenGetAttrSameInvocation(t *testing.T) {
	w := newMockWorld()
	w.attrs["#x"] = map[string]g.Value{}
	node, _ := g.Parse(`[set_attr #x "n" 5]`)
	inv := NewInvocation(time.Second, 0)
	ctx := NewContext(w, testRegistry(), "#exec", "#actor", inv)
	if _, err := ctx.Eval(node); err != nil {
		t.Fatal(err)
	}
	node, _ = g.Parse(`[get_attr #x "n"]`)
	v, err := ctx.Eval(node)
	if err != nil {
		t.Fatal(err)
	}
	if v != float64(5) {
		t.Errorf("read-after-write = %v, want 5", v)
	}
}

func TestQuoteSuppressesEvaluation(t *testing.T) {
	w := newMockWorld()
	v := mustEval(t, w, "[quote [boom]]")
	if v != "[boom]" {
		t.Errorf("quote = %v, want source text [boom]", v)
	}
}
