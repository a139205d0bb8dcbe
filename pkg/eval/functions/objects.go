package functions

import (
	"strings"

	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/g"
)

func registerObjects(reg *eval.Registry) {
	reg.Register("get_attr", fnGetAttr, 2, 2)
	reg.Register("set_attr", fnSetAttr, 3, 3)
	reg.Register("get_object", fnGetObject, 1, 1)
	reg.Register("send", fnSend, 2, 2)
	reg.Register("create", fnCreate, 1, -1)
	reg.Register("load", fnLoad, 2, 3)
}

func refArg(ctx *eval.Context, v g.Value) (string, error) {
	// Accept handles, "#id" strings, and the @this/@actor/@executor forms
	// spelled as strings (get_object's resolution set).
	switch t := v.(type) {
	case g.Ref:
		return string(t), nil
	case string:
		switch t {
		case "@this":
			return ctx.This, nil
		case "@actor":
			return ctx.Actor, nil
		case "@executor":
			return ctx.Executor, nil
		}
		if strings.HasPrefix(t, "#") {
			return t, nil
		}
	}
	return "", eval.Failf(eval.FailTypeCoercion, "%q is not an object reference", g.ToString(v))
}

// get_attr ref name: inheritance-resolved read; null if absent.
func fnGetAttr(ctx *eval.Context, args []g.Value) (g.Value, error) {
	id, err := refArg(ctx, args[0])
	if err != nil {
		return nil, err
	}
	v, ok, err := ctx.World.GetAttr(id, g.ToString(args[1]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return v, nil
}

// set_attr ref name value: writes on the referenced object (not a parent)
// and persists through the cache.
func fnSetAttr(ctx *eval.Context, args []g.Value) (g.Value, error) {
	id, err := refArg(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if err := ctx.World.SetAttr(id, g.ToString(args[1]), args[2]); err != nil {
		return nil, err
	}
	return args[2], nil
}

// get_object ref: resolves #id/@this/@actor/@executor to a handle; null when
// the object does not exist.
func fnGetObject(ctx *eval.Context, args []g.Value) (g.Value, error) {
	id, err := refArg(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if !ctx.World.Exists(id) {
		return nil, nil
	}
	return g.Ref(id), nil
}

// send ref payload: the send operator as a function.
func fnSend(ctx *eval.Context, args []g.Value) (g.Value, error) {
	id, err := refArg(ctx, args[0])
	if err != nil {
		return nil, err
	}
	if err := ctx.World.Deliver(id, args[1], ctx.Inv); err != nil {
		return nil, err
	}
	return nil, nil
}

// create name [parent...]: mints a new object owned by the actor.
func fnCreate(ctx *eval.Context, args []g.Value) (g.Value, error) {
	name := g.ToString(args[0])
	var parents []string
	for _, a := range args[1:] {
		id, err := refArg(ctx, a)
		if err != nil {
			return nil, err
		}
		parents = append(parents, id)
	}
	id, err := ctx.World.CreateObject(name, parents, ctx.Actor)
	if err != nil {
		return nil, err
	}
	return g.Ref(id), nil
}

// load path ref [attr]: administrator-only; reads G source from a file and
// assigns it to the attribute (run by default), replacing prior content.
// Not a hot reload; the caller arranges re-invocation.
func fnLoad(ctx *eval.Context, args []g.Value) (g.Value, error) {
	if !ctx.ActorAdmin {
		return nil, eval.Failf(eval.FailPermission, "load requires the admin role")
	}
	path := g.ToString(args[0])
	id, err := refArg(ctx, args[1])
	if err != nil {
		return nil, err
	}
	attr := "run"
	if len(args) == 3 {
		attr = g.ToString(args[2])
	}
	src, err := ctx.World.ReadSourceFile(path)
	if err != nil {
		return nil, eval.Failf(eval.FailNotFound, "cannot read %q: %v", path, err)
	}
	if err := ctx.World.SetAttr(id, attr, src); err != nil {
		return nil, err
	}
	return nil, nil
}
