package eval

import (
	"github.com/adamdray/gaia-mud/pkg/g"
)

// Reserved forms are dispatched before the registry and receive unevaluated
// argument nodes.
var reservedForms = map[string]bool{
	"if":     true,
	"define": true,
	"return": true,
	"and":    true,
	"or":     true,
	"quote":  true,
}

// Eval evaluates one expression node under the context.
func (ctx *Context) Eval(n g.Node) (g.Value, error) {
	if err := ctx.Inv.Check(); err != nil {
		return nil, FailAt(err, n)
	}

	switch node := n.(type) {
	case *g.Lit:
		return node.Val, nil

	case *g.RefNode:
		return node.Ref, nil

	case *g.Sym:
		// A bound symbol evaluates to its value; an unbound symbol in value
		// position evaluates to its own name, keeping data lists like
		// [list a b c] string-centric.
		if v, ok := ctx.Lookup(node.Name); ok {
			return v, nil
		}
		return node.Name, nil

	case *g.AttrNode:
		return ctx.evalAttrRead(node)

	case *g.ExecNode:
		return ctx.evalExec(node, nil)

	case *g.SendNode:
		return ctx.evalSend(node)

	case *g.ListNode:
		return ctx.evalList(node)

	default:
		return nil, FailAt(Failf(FailParse, "unknown node type"), n)
	}
}

// EvalProgram evaluates a sequence of forms; the last value is the result.
func (ctx *Context) EvalProgram(nodes []g.Node) (g.Value, error) {
	var result g.Value
	for _, n := range nodes {
		v, err := ctx.Eval(n)
		if err != nil {
			return nil, err
		}
		result = v
	}
	return result, nil
}

// evalAttrRead handles obj.attr: inheritance-resolved raw read; absence
// yields nil.
func (ctx *Context) evalAttrRead(node *g.AttrNode) (g.Value, error) {
	id, err := ctx.targetID(node.Target)
	if err != nil {
		return nil, FailAt(err, node)
	}
	v, ok, err := ctx.World.GetAttr(id, node.Name)
	if err != nil {
		return nil, FailAt(err, node)
	}
	if !ok {
		return nil, nil
	}
	return v, nil
}

// targetID resolves the target of an attribute access or execution form to
// an object ID.
func (ctx *Context) targetID(n g.Node) (string, error) {
	switch t := n.(type) {
	case *g.RefNode:
		return string(t.Ref), nil
	case *g.Sym:
		if id, ok := ctx.contextRef(t.Name); ok {
			return id, nil
		}
		if v, ok := ctx.Lookup(t.Name); ok {
			if id, ok := ctx.ResolveRef(v); ok {
				return id, nil
			}
		}
		return "", Failf(FailNotFound, "%q does not name an object", t.Name)
	default:
		v, err := ctx.Eval(n)
		if err != nil {
			return "", err
		}
		if id, ok := ctx.ResolveRef(v); ok {
			return id, nil
		}
		return "", Failf(FailNotFound, "value %q is not an object reference", g.ToString(v))
	}
}

// evalExec handles @obj, @obj.attr, and @var, with an optional evaluated
// argument list from call position.
func (ctx *Context) evalExec(node *g.ExecNode, args []g.Value) (g.Value, error) {
	switch target := node.Target.(type) {
	case *g.RefNode:
		return ctx.InvokeAttr(string(target.Ref), "run", args)

	case *g.AttrNode:
		id, err := ctx.targetID(target.Target)
		if err != nil {
			return nil, FailAt(err, node)
		}
		return ctx.InvokeAttr(id, target.Name, args)

	case *g.Sym:
		// @this/@actor/@executor are context references, not executions:
		// [send @actor ...] passes the actor's handle. With an argument
		// list they invoke the referenced object's run attribute.
		if id, ok := ctx.contextRef(target.Name); ok {
			if args == nil {
				return g.Ref(id), nil
			}
			return ctx.InvokeAttr(id, "run", args)
		}
		// @var: the variable holds G source; parse and evaluate in a fresh
		// child context.
		v, ok := ctx.Lookup(target.Name)
		if !ok {
			return nil, FailAt(Failf(FailUnresolvedCallee, "variable %q is not bound", target.Name), node)
		}
		if id, isRef := v.(g.Ref); isRef {
			return ctx.InvokeAttr(string(id), "run", args)
		}
		src, isStr := v.(string)
		if !isStr {
			return nil, FailAt(Failf(FailTypeCoercion, "variable %q does not hold code", target.Name), node)
		}
		return ctx.evalSource(src, args)

	default:
		return nil, FailAt(Failf(FailUnresolvedCallee, "cannot execute %s", node.Target.String()), node)
	}
}

// contextRef maps the this/actor/executor symbols to their object IDs.
func (ctx *Context) contextRef(name string) (string, bool) {
	switch name {
	case "this":
		return ctx.This, true
	case "actor":
		return ctx.Actor, true
	case "executor":
		return ctx.Executor, true
	default:
		return "", false
	}
}

// evalSource parses a source string and evaluates it in a fresh child frame.
func (ctx *Context) evalSource(src string, args []g.Value) (g.Value, error) {
	if ctx.Depth+1 >= ctx.Inv.DepthLimit {
		return nil, Failf(FailDepthLimit, "depth limit %d exceeded", ctx.Inv.DepthLimit)
	}
	nodes, err := ctx.Inv.parseSource(src)
	if err != nil {
		return nil, err
	}
	child := ctx.Child()
	bindArgs(child, args)
	return child.EvalProgram(nodes)
}

// InvokeAttr invokes the G source stored at an attribute on the given
// object: executor and this become that object, the actor is preserved, and
// return unwinds to this boundary.
func (ctx *Context) InvokeAttr(id, name string, args []g.Value) (g.Value, error) {
	if err := ctx.Inv.Check(); err != nil {
		return nil, err
	}
	if ctx.Depth+1 >= ctx.Inv.DepthLimit {
		return nil, Failf(FailDepthLimit, "depth limit %d exceeded", ctx.Inv.DepthLimit)
	}

	raw, ok, err := ctx.World.GetAttr(id, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Failf(FailNotFound, "%s has no attribute %q", id, name)
	}
	src, isStr := raw.(string)
	if !isStr {
		return nil, Failf(FailTypeCoercion, "attribute %q on %s is not code", name, id)
	}

	nodes, err := ctx.Inv.parseSource(src)
	if err != nil {
		return nil, err
	}

	child := ctx.Child()
	child.Executor = id
	child.This = id
	bindArgs(child, args)

	v, err := child.EvalProgram(nodes)
	if ret, isReturn := err.(returnSignal); isReturn {
		return ret.val, nil
	}
	return v, err
}

// bindArgs exposes the call's argument list to invoked code as the args
// variable plus positional arg0..argN bindings.
func bindArgs(ctx *Context, args []g.Value) {
	ctx.Define("args", g.List(args))
	for i, a := range args {
		ctx.Define("arg"+itoa(i), a)
	}
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var buf [8]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	return string(buf[pos:])
}

// evalSend handles target"payload": a string payload is delivered verbatim;
// an @-expression payload is evaluated under this=target first.
func (ctx *Context) evalSend(node *g.SendNode) (g.Value, error) {
	id, err := ctx.targetID(node.Target)
	if err != nil {
		return nil, FailAt(err, node)
	}

	var payload g.Value
	switch p := node.Payload.(type) {
	case *g.Lit:
		payload = p.Val
	case *g.ExecNode:
		sub := ctx.Child()
		sub.This = id
		payload, err = sub.evalExec(p, nil)
		if err != nil {
			return nil, FailAt(err, node)
		}
	default:
		return nil, FailAt(Failf(FailParse, "invalid message payload"), node)
	}

	if err := ctx.World.Deliver(id, payload, ctx.Inv); err != nil {
		return nil, FailAt(err, node)
	}
	return nil, nil
}

// evalList evaluates a bracketed list: either a call (symbol, @-expression,
// .-expression, or object reference in head position) or implicit data.
func (ctx *Context) evalList(node *g.ListNode) (g.Value, error) {
	if len(node.Elems) == 0 {
		return g.List{}, nil
	}

	head := node.Elems[0]
	argNodes := node.Elems[1:]

	if sym, ok := head.(*g.Sym); ok {
		if reservedForms[sym.Name] {
			return ctx.evalReserved(sym.Name, node)
		}
	}

	if !isCalleeNode(head) {
		// Implicit data: equivalent to a call to the list builtin.
		vals := make(g.List, 0, len(node.Elems))
		for _, el := range node.Elems {
			v, err := ctx.Eval(el)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil
	}

	// Applicative order: arguments evaluate left to right before dispatch.
	args := make([]g.Value, 0, len(argNodes))
	for _, an := range argNodes {
		v, err := ctx.Eval(an)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}

	switch callee := head.(type) {
	case *g.Sym:
		// Standard library first, then bound callables.
		if fn, ok := ctx.Funcs.Lookup(callee.Name); ok {
			if err := checkArity(fn, len(args)); err != nil {
				return nil, FailAt(err, node)
			}
			v, err := fn.Handler(ctx, args)
			if err != nil {
				return nil, FailAt(err, node)
			}
			return v, nil
		}
		if v, ok := ctx.Lookup(callee.Name); ok {
			return ctx.applyValue(v, args, node)
		}
		return nil, FailAt(Failf(FailUnresolvedCallee, "%q does not resolve", callee.Name), node)

	case *g.ExecNode:
		v, err := ctx.evalExec(callee, args)
		if err != nil {
			return nil, FailAt(err, node)
		}
		return v, nil

	case *g.AttrNode:
		id, err := ctx.targetID(callee.Target)
		if err != nil {
			return nil, FailAt(err, node)
		}
		v, err := ctx.InvokeAttr(id, callee.Name, args)
		if err != nil {
			return nil, FailAt(err, node)
		}
		return v, nil

	case *g.RefNode:
		v, err := ctx.InvokeAttr(string(callee.Ref), "run", args)
		if err != nil {
			return nil, FailAt(err, node)
		}
		return v, nil

	default:
		return nil, FailAt(Failf(FailUnresolvedCallee, "cannot call %s", head.String()), node)
	}
}

// applyValue treats a variable's value as a callable: a Ref invokes that
// object's run attribute, a string is parsed as G source.
func (ctx *Context) applyValue(v g.Value, args []g.Value, node g.Node) (g.Value, error) {
	switch t := v.(type) {
	case g.Ref:
		out, err := ctx.InvokeAttr(string(t), "run", args)
		if err != nil {
			return nil, FailAt(err, node)
		}
		return out, nil
	case string:
		out, err := ctx.evalSource(t, args)
		if err != nil {
			return nil, FailAt(err, node)
		}
		return out, nil
	default:
		return nil, FailAt(Failf(FailUnresolvedCallee, "value %q is not callable", g.ToString(v)), node)
	}
}

func isCalleeNode(n g.Node) bool {
	switch n.(type) {
	case *g.Sym, *g.ExecNode, *g.AttrNode, *g.RefNode:
		return true
	default:
		return false
	}
}

func checkArity(fn *Function, n int) error {
	if n < fn.MinArgs {
		return Failf(FailTypeCoercion, "%s wants at least %d arguments, got %d", fn.Name, fn.MinArgs, n)
	}
	if fn.MaxArgs >= 0 && n > fn.MaxArgs {
		return Failf(FailTypeCoercion, "%s wants at most %d arguments, got %d", fn.Name, fn.MaxArgs, n)
	}
	return nil
}

// evalReserved applies the special-form rules: if evaluates only the taken
// branch, and/or short-circuit, define binds in the current frame, return
// unwinds the innermost attribute invocation, quote suppresses evaluation.
func (ctx *Context) evalReserved(name string, node *g.ListNode) (g.Value, error) {
	args := node.Elems[1:]
	switch name {
	case "if":
		if len(args) < 2 || len(args) > 3 {
			return nil, FailAt(Failf(FailTypeCoercion, "if wants 2 or 3 arguments, got %d", len(args)), node)
		}
		cond, err := ctx.Eval(args[0])
		if err != nil {
			return nil, err
		}
		if g.Truthy(cond) {
			return ctx.Eval(args[1])
		}
		if len(args) == 3 {
			return ctx.Eval(args[2])
		}
		return nil, nil

	case "define":
		if len(args) != 2 {
			return nil, FailAt(Failf(FailTypeCoercion, "define wants 2 arguments, got %d", len(args)), node)
		}
		sym, ok := args[0].(*g.Sym)
		if !ok {
			return nil, FailAt(Failf(FailTypeCoercion, "define wants a symbol name"), node)
		}
		v, err := ctx.Eval(args[1])
		if err != nil {
			return nil, err
		}
		ctx.Define(sym.Name, v)
		return v, nil

	case "return":
		var v g.Value
		if len(args) > 0 {
			var err error
			v, err = ctx.Eval(args[0])
			if err != nil {
				return nil, err
			}
		}
		return nil, returnSignal{val: v}

	case "and":
		var last g.Value = true
		for _, an := range args {
			v, err := ctx.Eval(an)
			if err != nil {
				return nil, err
			}
			if !g.Truthy(v) {
				return v, nil
			}
			last = v
		}
		return last, nil

	case "or":
		for _, an := range args {
			v, err := ctx.Eval(an)
			if err != nil {
				return nil, err
			}
			if g.Truthy(v) {
				return v, nil
			}
		}
		return false, nil

	case "quote":
		if len(args) != 1 {
			return nil, FailAt(Failf(FailTypeCoercion, "quote wants 1 argument, got %d", len(args)), node)
		}
		// The quoted expression is carried as its source text, re-parseable
		// by @var execution; a literal argument is returned as its value.
		if lit, ok := args[0].(*g.Lit); ok {
			return lit.Val, nil
		}
		return args[0].String(), nil

	default:
		return nil, FailAt(Failf(FailUnresolvedCallee, "%q does not resolve", name), node)
	}
}
