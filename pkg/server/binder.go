package server

import (
	"log"
	"strings"

	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/g"
	"github.com/adamdray/gaia-mud/pkg/input"
)

const dontUnderstand = "I don't understand that."

// HandleLine routes one input line from an authenticated session through
// the recognizer stack and binds the winning recognition to a handler.
func (gm *Game) HandleLine(s *Session, raw string) {
	s.TouchCmd()
	if strings.TrimSpace(raw) == "" {
		return
	}
	if gm.Conf.LogLevel == "debug" {
		log.Printf("[%s] input=%q", s.ID, raw)
	}
	if gm.Metrics != nil {
		gm.Metrics.CommandProcessed()
	}

	embodied := s.State() == StateEmbodied
	gameRec := input.NewGameRecognizer(gm.Dict, &sessionResolver{gm: gm, actor: s.ActorID()})
	stack := input.StackFor(s.IsAdmin(), embodied, gm.AdminCmds, gm.UserCmds, gameRec)

	rec, err := input.Run(stack, raw)
	if err != nil {
		if d, ok := err.(*input.Disambiguation); ok {
			s.Send("Which do you mean: " + gm.describeCandidates(d.Candidates) + "?")
			return
		}
		s.Send(dontUnderstand)
		return
	}
	if rec == nil {
		s.Send(dontUnderstand)
		return
	}

	switch rec.Mode {
	case input.ModeAdmin:
		gm.dispatchAdmin(s, rec)
	case input.ModeUser:
		gm.dispatchUser(s, rec)
	case input.ModeGame:
		gm.dispatchGame(s, rec)
	}
}

func (gm *Game) describeCandidates(ids []string) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = id
		if obj, err := gm.Cache.Get(id); err == nil && obj.Name != "" {
			names[i] = obj.Name + " (" + id + ")"
		}
	}
	return strings.Join(names, ", ")
}

// dispatchGame binds a Game recognition to a cmd_<verb> attribute. Search
// order: the direct object, the actor's location, the actor, the transient
// user object, then #commands. First match wins.
func (gm *Game) dispatchGame(s *Session, rec *input.Recognition) {
	actor := s.ActorID()
	if actor == "" {
		s.Send(dontUnderstand)
		return
	}

	var order []string
	if direct := rec.ResolvedObjects["direct"]; direct != "" {
		order = append(order, direct)
	}
	if obj, err := gm.Cache.Get(actor); err == nil && obj.LocationID != "" {
		order = append(order, obj.LocationID)
	}
	order = append(order, actor)
	if userObj := s.UserObjectID(); userObj != "" && userObj != actor {
		order = append(order, userObj)
	}
	order = append(order, CommandsObjectID)

	attrNames := gm.verbAttrNames(rec.Verb)
	for _, holder := range order {
		for _, attr := range attrNames {
			v, ok, err := gm.Cache.GetAttribute(holder, attr)
			if err != nil || !ok {
				continue
			}
			if _, isStr := v.(string); !isStr {
				continue
			}
			gm.invokeCommand(s, holder, attr, rec)
			return
		}
	}
	s.Send(dontUnderstand)
}

// invokeCommand builds the interpreter context (executor = attribute
// holder, actor = character or transient user, this = executor) and runs
// the bound attribute. A non-null string return value is sent back to the
// actor as a fallback.
func (gm *Game) invokeCommand(s *Session, holder, attr string, rec *input.Recognition) {
	actor := s.ActorID()
	inv := gm.NewInvocation()
	untrack := gm.trackInvocation(actor, inv)
	defer untrack()

	ctx := eval.NewContext(gm, gm.Funcs, holder, actor, inv)
	ctx.ActorAdmin = s.IsAdmin()

	args := gm.recognitionArgs(rec)
	result, err := ctx.InvokeAttr(holder, attr, args)
	if err != nil {
		gm.reportFailure(s, err)
		return
	}

	for _, id := range rec.ResolvedObjects {
		gm.NoteInteraction(actor, id)
	}

	if str, ok := result.(string); ok && str != "" {
		s.Send(str)
	}
}

// recognitionArgs converts recognition arguments to G values, substituting
// resolved object handles for noun phrases.
func (gm *Game) recognitionArgs(rec *input.Recognition) []g.Value {
	direct := rec.ResolvedObjects["direct"]
	indirect := rec.ResolvedObjects["indirect"]
	args := make([]g.Value, 0, len(rec.Args))
	for i, a := range rec.Args {
		switch {
		case i == 0 && direct != "" && rec.Mode == input.ModeGame:
			args = append(args, g.Ref(direct))
		case i == len(rec.Args)-1 && i >= 2 && indirect != "" && rec.Mode == input.ModeGame:
			args = append(args, g.Ref(indirect))
		default:
			args = append(args, a)
		}
	}
	return args
}

// reportFailure delivers the single-line diagnostic for a G failure and
// counts it; other sessions are unaffected.
func (gm *Game) reportFailure(s *Session, err error) {
	if f, ok := err.(*eval.Failure); ok {
		s.Send(f.Diagnostic())
		if gm.Metrics != nil {
			gm.Metrics.EvalFailure(f.Kind.String())
		}
		log.Printf("[%s] eval failure: %v", s.ID, f)
		return
	}
	s.Send("Something went wrong.")
	log.Printf("[%s] error: %v", s.ID, err)
}

// EvalAsActor runs a G source string for a session (the /eval admin command
// and tests), returning the value and failure.
func (gm *Game) EvalAsActor(s *Session, src string) (g.Value, error) {
	actor := s.ActorID()
	if actor == "" {
		actor = CommandsObjectID
	}
	inv := gm.NewInvocation()
	untrack := gm.trackInvocation(actor, inv)
	defer untrack()

	nodes, err := g.ParseProgram(src)
	if err != nil {
		return nil, eval.Failf(eval.FailParse, "%v", err)
	}
	ctx := eval.NewContext(gm, gm.Funcs, actor, actor, inv)
	ctx.ActorAdmin = s.IsAdmin()
	return ctx.EvalProgram(nodes)
}
