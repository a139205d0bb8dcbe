package eval

import (
	"sync/atomic"
	"time"

	"github.com/adamdray/gaia-mud/pkg/g"
)

// Default interpreter bounds; overridable through #config.
const (
	DefaultDepthLimit = 128
	DefaultBudget     = 500 * time.Millisecond
)

// World is the bridge from the interpreter back into the game engine. It is
// implemented by server.Game; tests supply mocks.
type World interface {
	// GetAttr performs inheritance-resolved attribute lookup. The bool
	// reports presence: an absent attribute is distinct from a stored null.
	GetAttr(id, name string) (g.Value, bool, error)
	// SetAttr writes an attribute on the referenced object itself (never a
	// parent) and persists it through the cache.
	SetAttr(id, name string, v g.Value) error
	// Exists reports whether an object ID resolves.
	Exists(id string) bool
	// CreateObject mints a new object and returns its ID.
	CreateObject(name string, parents []string, owner string) (string, error)
	// Deliver routes a send payload to the target: its on_message handler
	// if one resolves, otherwise the session sink of an embodied character.
	Deliver(target string, payload g.Value, inv *Invocation) error
	// Logf appends to the server log at info level.
	Logf(format string, args ...any)
	// ReadSourceFile reads G source for the load builtin (admin only; the
	// permission check happens in the builtin).
	ReadSourceFile(path string) (string, error)
}

// Invocation carries the per-top-level-call bounds: wall-clock budget,
// cooperative cancellation, depth limit, and the parse cache for code held
// in variables.
type Invocation struct {
	Deadline   time.Time
	DepthLimit int

	cancelled  atomic.Bool
	parseCache map[string][]g.Node
}

// NewInvocation creates an invocation with the given bounds.
func NewInvocation(budget time.Duration, depthLimit int) *Invocation {
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	return &Invocation{
		Deadline:   time.Now().Add(budget),
		DepthLimit: depthLimit,
		parseCache: make(map[string][]g.Node),
	}
}

// Cancel sets the cooperative cancellation flag. Loop-like builtins and
// every call entry observe it.
func (inv *Invocation) Cancel() { inv.cancelled.Store(true) }

// Check returns a timeout failure once the budget is exhausted or the
// invocation has been cancelled.
func (inv *Invocation) Check() error {
	if inv.cancelled.Load() {
		return Failf(FailTimeout, "invocation cancelled")
	}
	if !inv.Deadline.IsZero() && time.Now().After(inv.Deadline) {
		inv.cancelled.Store(true)
		return Failf(FailTimeout, "time budget exceeded")
	}
	return nil
}

// parseSource parses G source, caching trees by source text within the
// invocation so tight loops re-parsing @var code pay once.
func (inv *Invocation) parseSource(src string) ([]g.Node, error) {
	if nodes, ok := inv.parseCache[src]; ok {
		return nodes, nil
	}
	nodes, err := g.ParseProgram(src)
	if err != nil {
		return nil, Failf(FailParse, "%v", err)
	}
	inv.parseCache[src] = nodes
	return nodes, nil
}

// Context is the execution context for one evaluation frame.
type Context struct {
	World World
	Funcs *Registry

	Executor string // object whose code is running
	Actor    string // originator of the chain
	This     string // object for attribute calls; defaults to Executor

	// ActorAdmin gates administrator-only builtins (load). G run on behalf
	// of an admin does not otherwise elevate set_attr.
	ActorAdmin bool

	Inv   *Invocation
	Depth int

	vars   map[string]g.Value
	parent *Context
}

// NewContext creates a root context for one top-level invocation.
func NewContext(w World, funcs *Registry, executor, actor string, inv *Invocation) *Context {
	return &Context{
		World:    w,
		Funcs:    funcs,
		Executor: executor,
		Actor:    actor,
		This:     executor,
		Inv:      inv,
		vars:     make(map[string]g.Value),
	}
}

// Child creates a lexically nested frame sharing the invocation bounds.
func (ctx *Context) Child() *Context {
	child := *ctx
	child.vars = make(map[string]g.Value)
	child.parent = ctx
	child.Depth = ctx.Depth + 1
	return &child
}

// Define binds a name in the current frame.
func (ctx *Context) Define(name string, v g.Value) { ctx.vars[name] = v }

// Lookup resolves a variable through the frame chain.
func (ctx *Context) Lookup(name string) (g.Value, bool) {
	for c := ctx; c != nil; c = c.parent {
		if v, ok := c.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// ResolveRef maps a value to an object ID: object references directly,
// non-empty strings as raw IDs.
func (ctx *Context) ResolveRef(v g.Value) (string, bool) {
	switch t := v.(type) {
	case g.Ref:
		return string(t), true
	case string:
		if t != "" {
			return t, true
		}
	}
	return "", false
}

// Handler is the signature of built-in function implementations. Arguments
// arrive already evaluated (special forms are handled by the interpreter,
// not the registry).
type Handler func(ctx *Context, args []g.Value) (g.Value, error)

// Function is a registered built-in.
type Function struct {
	Name    string
	Handler Handler
	MinArgs int
	MaxArgs int // -1 = variadic
}

// Registry is the built-in function table.
type Registry struct {
	funcs map[string]*Function
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*Function)}
}

// Register adds a built-in function.
func (r *Registry) Register(name string, h Handler, minArgs, maxArgs int) {
	r.funcs[name] = &Function{Name: name, Handler: h, MinArgs: minArgs, MaxArgs: maxArgs}
}

// Lookup finds a built-in by name.
func (r *Registry) Lookup(name string) (*Function, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}
