package server

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/adamdray/gaia-mud/pkg/accounts"
	"github.com/adamdray/gaia-mud/pkg/eval"
	"github.com/adamdray/gaia-mud/pkg/eval/functions"
	"github.com/adamdray/gaia-mud/pkg/events"
	"github.com/adamdray/gaia-mud/pkg/g"
	"github.com/adamdray/gaia-mud/pkg/input"
	"github.com/adamdray/gaia-mud/pkg/world"
)

// Well-known object IDs.
const (
	ConfigObjectID   = "#config"
	CommandsObjectID = "#commands"
	UserParentID     = "#user"
	CharParentID     = "#character"
	RoomParentID     = "#room"
)

// Game ties the subsystems together: the world cache, accounts, sessions,
// the input pipeline, and the interpreter bridge. It implements eval.World.
type Game struct {
	Conf     *GameConf
	Cache    *world.Cache
	Accounts *accounts.Service
	Sessions *SessionManager
	Bus      *events.Bus
	Funcs    *eval.Registry

	Dict      *input.Dictionary
	AdminCmds *input.AdminRecognizer
	UserCmds  *input.UserRecognizer

	Metrics    *Metrics
	Texts      *TextFiles
	Scrollback *ScrollbackWriter

	// verb synonyms registered against Game-mode verbs: synonym → canonical.
	synMu    sync.RWMutex
	synonyms map[string]string

	// in-flight invocations by actor, for disconnect cancellation.
	invMu      sync.Mutex
	invByActor map[string][]*eval.Invocation

	// per-target delivery locks: on_message runs to completion before the
	// next send to the same target begins.
	delivMu    sync.Mutex
	delivLocks map[string]*targetLock

	// most recent interaction per (actor, object), for noun tie-breaking.
	interactMu   sync.Mutex
	interactions map[string]map[string]time.Time

	shutdownOnce sync.Once
	Shutdown     chan struct{}
}

// NewGame assembles a Game over its stores.
func NewGame(conf *GameConf, cache *world.Cache, acctSvc *accounts.Service) *Game {
	gm := &Game{
		Conf:         conf,
		Cache:        cache,
		Accounts:     acctSvc,
		Sessions:     NewSessionManager(),
		Bus:          events.NewBus(),
		Funcs:        functions.NewStdlib(),
		Dict:         input.NewDictionary("look", "go", "get", "take", "drop", "put", "say", "give", "open", "close", "use"),
		AdminCmds:    input.NewAdminRecognizer("create", "delete", "reload", "shutdown", "password", "roles", "eval", "who", "scrollback"),
		UserCmds:     input.NewUserRecognizer("WHO", "QUIT", "CONNECT", "COMMANDS"),
		synonyms:     make(map[string]string),
		invByActor:   make(map[string][]*eval.Invocation),
		delivLocks:   make(map[string]*targetLock),
		interactions: make(map[string]map[string]time.Time),
		Shutdown:     make(chan struct{}),
	}
	return gm
}

// EnsureCoreObjects creates the root object and the well-known engine
// objects on first boot.
func (gm *Game) EnsureCoreObjects() error {
	core := []*world.Object{
		{ID: world.RootObjectID, Name: "object"},
		{ID: ConfigObjectID, Name: "config", ParentIDs: []string{world.RootObjectID}},
		{ID: CommandsObjectID, Name: "commands", ParentIDs: []string{world.RootObjectID}},
		{ID: UserParentID, Name: "user", ParentIDs: []string{world.RootObjectID}},
		{ID: CharParentID, Name: "character", ParentIDs: []string{world.RootObjectID}},
		{ID: RoomParentID, Name: "room", ParentIDs: []string{world.RootObjectID}},
	}
	for _, obj := range core {
		if err := gm.Cache.Create(obj); err != nil && !errors.Is(err, world.ErrExists) {
			return err
		}
	}
	gm.syncConfigObject()
	return nil
}

// syncConfigObject mirrors config values onto #config for G to read.
func (gm *Game) syncConfigObject() {
	gm.Cache.Mutate(ConfigObjectID, func(o *world.Object) error {
		o.Attributes["world_name"] = gm.Conf.WorldName
		o.Attributes["depth_limit"] = float64(gm.Conf.DepthLimit)
		o.Attributes["budget_millis"] = float64(gm.Conf.BudgetMillis)
		o.Attributes["tick_millis"] = float64(gm.Conf.TickMillis)
		return nil
	})
}

// configNumber reads a numeric attribute off #config, falling back to def.
func (gm *Game) configNumber(name string, def float64) float64 {
	v, ok, err := gm.Cache.GetAttribute(ConfigObjectID, name)
	if err != nil || !ok {
		return def
	}
	if f := g.ToNumber(v); f > 0 {
		return f
	}
	return def
}

// NewInvocation builds an invocation with #config-tunable bounds.
func (gm *Game) NewInvocation() *eval.Invocation {
	budget := time.Duration(gm.configNumber("budget_millis", float64(gm.Conf.BudgetMillis))) * time.Millisecond
	depth := int(gm.configNumber("depth_limit", float64(gm.Conf.DepthLimit)))
	return eval.NewInvocation(budget, depth)
}

// trackInvocation registers an in-flight invocation for its actor so a
// disconnect can cancel it.
func (gm *Game) trackInvocation(actor string, inv *eval.Invocation) func() {
	gm.invMu.Lock()
	gm.invByActor[actor] = append(gm.invByActor[actor], inv)
	gm.invMu.Unlock()
	return func() {
		gm.invMu.Lock()
		defer gm.invMu.Unlock()
		list := gm.invByActor[actor]
		for i, t := range list {
			if t == inv {
				gm.invByActor[actor] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(gm.invByActor[actor]) == 0 {
			delete(gm.invByActor, actor)
		}
	}
}

// CancelActor cancels every in-flight invocation tied to an actor.
func (gm *Game) CancelActor(actor string) {
	gm.invMu.Lock()
	defer gm.invMu.Unlock()
	for _, inv := range gm.invByActor[actor] {
		inv.Cancel()
	}
}

// RegisterSynonym maps a Game-mode verb synonym to its canonical verb and
// tags it in the dictionary.
func (gm *Game) RegisterSynonym(synonym, canonical string) {
	gm.synMu.Lock()
	gm.synonyms[strings.ToLower(synonym)] = strings.ToLower(canonical)
	gm.synMu.Unlock()
	gm.Dict.RegisterVerbs(synonym)
}

// verbAttrNames returns the attribute names a verb binds to: cmd_<verb>
// plus the canonical form of a registered synonym.
func (gm *Game) verbAttrNames(verb string) []string {
	names := []string{"cmd_" + verb}
	gm.synMu.RLock()
	if canon, ok := gm.synonyms[verb]; ok && canon != verb {
		names = append(names, "cmd_"+canon)
	}
	gm.synMu.RUnlock()
	return names
}

// NoteInteraction records that the actor touched an object (noun-phrase
// tie-breaker input).
func (gm *Game) NoteInteraction(actor, obj string) {
	gm.interactMu.Lock()
	defer gm.interactMu.Unlock()
	m := gm.interactions[actor]
	if m == nil {
		m = make(map[string]time.Time)
		gm.interactions[actor] = m
	}
	m[obj] = time.Now()
}

func (gm *Game) lastInteraction(actor, obj string) time.Time {
	gm.interactMu.Lock()
	defer gm.interactMu.Unlock()
	return gm.interactions[actor][obj]
}

// RequestShutdown closes the shutdown channel once.
func (gm *Game) RequestShutdown() {
	gm.shutdownOnce.Do(func() { close(gm.Shutdown) })
}

// --- eval.World implementation ---

// GetAttr implements eval.World over the cache's BFS resolution.
func (gm *Game) GetAttr(id, name string) (g.Value, bool, error) {
	v, ok, err := gm.Cache.GetAttribute(id, name)
	if errors.Is(err, world.ErrNotFound) {
		return nil, false, eval.Failf(eval.FailNotFound, "no object %s", id)
	}
	if err != nil {
		return nil, false, eval.Failf(eval.FailStoreConflict, "%v", err)
	}
	return v, ok, nil
}

// SetAttr implements eval.World: writes on the object itself via the cache.
func (gm *Game) SetAttr(id, name string, v g.Value) error {
	err := gm.Cache.SetAttribute(id, name, v)
	if errors.Is(err, world.ErrNotFound) {
		return eval.Failf(eval.FailNotFound, "no object %s", id)
	}
	if err != nil {
		return eval.Failf(eval.FailStoreConflict, "%v", err)
	}
	return nil
}

// Exists implements eval.World.
func (gm *Game) Exists(id string) bool { return gm.Cache.Contains(id) }

// CreateObject implements eval.World: mints a unique ID from the name,
// falling back to a server-assigned string on collision.
func (gm *Game) CreateObject(name string, parents []string, owner string) (string, error) {
	if len(parents) == 0 {
		parents = []string{world.RootObjectID}
	}
	id := "#" + slugify(name)
	if id == "#" || gm.Cache.Contains(id) {
		id = "#o-" + uuid.NewString()[:8]
	}
	obj := &world.Object{
		ID:         id,
		Name:       name,
		ParentIDs:  parents,
		OwnerID:    owner,
		Attributes: map[string]g.Value{},
	}
	if err := gm.Cache.Create(obj); err != nil {
		return "", eval.Failf(eval.FailStoreConflict, "%v", err)
	}
	return id, nil
}

func slugify(name string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		case r == ' ':
			sb.WriteByte('-')
		}
	}
	return sb.String()
}

// Deliver implements eval.World. The payload goes to the target's
// on_message handler when one resolves (inherited handlers count); the
// handler runs to completion before the next send to the same target.
// Targets without a handler that are embodied (or session-bound transient
// users) receive the text on their session sink.
func (gm *Game) Deliver(target string, payload g.Value, inv *eval.Invocation) error {
	if err := inv.Check(); err != nil {
		return err
	}

	src, ok, err := gm.Cache.GetAttribute(target, "on_message")
	if errors.Is(err, world.ErrNotFound) {
		return eval.Failf(eval.FailNotFound, "no object %s", target)
	}
	if err != nil {
		return eval.Failf(eval.FailStoreConflict, "%v", err)
	}

	if ok {
		if _, isStr := src.(string); isStr {
			lock := gm.deliveryLock(target)
			// A handler sending to its own target within the same
			// invocation must not self-deadlock.
			if lock.holder.Load() != inv {
				lock.mu.Lock()
				lock.holder.Store(inv)
				defer func() {
					lock.holder.Store(nil)
					lock.mu.Unlock()
				}()
			}
			ctx := eval.NewContext(gm, gm.Funcs, target, target, inv)
			if _, err := ctx.InvokeAttr(target, "on_message", []g.Value{payload}); err != nil {
				return err
			}
			return nil
		}
	}

	// No handler: route to the session sink if anything subscribes.
	if gm.Bus.HasSubscribers(target) {
		gm.Bus.Emit(events.Event{Type: events.EvMessage, Target: target, Text: g.ToString(payload)})
		return nil
	}
	log.Printf("deliver: %s has no handler and no session; message dropped", target)
	return nil
}

// targetLock serializes deliveries to one target; holder records which
// invocation currently runs the handler so re-entrant sends don't block.
type targetLock struct {
	mu     sync.Mutex
	holder atomic.Pointer[eval.Invocation]
}

func (gm *Game) deliveryLock(target string) *targetLock {
	gm.delivMu.Lock()
	defer gm.delivMu.Unlock()
	lock := gm.delivLocks[target]
	if lock == nil {
		lock = &targetLock{}
		gm.delivLocks[target] = lock
	}
	return lock
}

// Logf implements eval.World.
func (gm *Game) Logf(format string, args ...any) {
	log.Printf(format, args...)
}

// ReadSourceFile implements eval.World: reads G source for the load
// builtin, confined to the world definition directory.
func (gm *Game) ReadSourceFile(path string) (string, error) {
	root := gm.Conf.WorldDir
	if root == "" {
		return "", fmt.Errorf("no world directory configured")
	}
	full := filepath.Join(root, filepath.Clean("/"+path))
	data, err := os.ReadFile(full)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// --- transient user objects ---

// CreateTransientUser mints the session-scoped user object: cache-only,
// parented on #user, evicted on disconnect.
func (gm *Game) CreateTransientUser(s *Session) (string, error) {
	id := "#user:" + s.ID[:8]
	obj := &world.Object{
		ID:        id,
		Name:      "user",
		ParentIDs: []string{UserParentID},
		Attributes: map[string]g.Value{
			"transient": true,
		},
	}
	if a := s.Account(); a != nil {
		obj.Name = a.DisplayName
		if obj.Name == "" {
			obj.Name = a.LoginID
		}
		obj.Attributes["account"] = a.ID
	}
	if err := gm.Cache.Create(obj); err != nil {
		return "", err
	}
	gm.Cache.MarkTransient(id)
	return id, nil
}

// DropSession tears down session state: cancels in-flight work, clears
// embodiment, evicts the transient user object.
func (gm *Game) DropSession(s *Session) {
	if actor := s.ActorID(); actor != "" {
		gm.CancelActor(actor)
	}
	if char := s.CharacterID(); char != "" {
		gm.Bus.Unsubscribe(char, s)
	}
	if userObj := s.UserObjectID(); userObj != "" {
		gm.Bus.Unsubscribe(userObj, s)
		gm.Cache.Evict(userObj)
	}
	gm.Sessions.Remove(s)
}

// --- Game-mode object resolution ---

// sessionResolver builds the visible-object set for the Game recognizer:
// the actor's location contents, the actor's inventory, then the actor.
type sessionResolver struct {
	gm    *Game
	actor string
}

// VisibleObjects implements input.Resolver.
func (r *sessionResolver) VisibleObjects() []input.Candidate {
	var out []input.Candidate
	actorObj, err := r.gm.Cache.Get(r.actor)
	if err != nil {
		return nil
	}

	appendObj := func(id string, inv, isActor bool) {
		obj, err := r.gm.Cache.Get(id)
		if err != nil {
			return
		}
		out = append(out, input.Candidate{
			ID:             id,
			Name:           obj.Name,
			InInventory:    inv,
			IsActor:        isActor,
			LastInteracted: r.gm.lastInteraction(r.actor, id),
		})
	}

	if actorObj.LocationID != "" {
		if room, err := r.gm.Cache.Get(actorObj.LocationID); err == nil {
			for _, id := range room.ContentIDs {
				if id != r.actor {
					appendObj(id, false, false)
				}
			}
		}
	}
	for _, id := range actorObj.ContentIDs {
		appendObj(id, true, false)
	}
	appendObj(r.actor, false, true)
	return out
}

// MoveObject relocates an object between containers, updating both content
// sets and the location link.
func (gm *Game) MoveObject(id, dest string) error {
	obj, err := gm.Cache.Get(id)
	if err != nil {
		return err
	}
	prev := obj.LocationID
	if prev == dest {
		return nil
	}
	if prev != "" {
		gm.Cache.Mutate(prev, func(o *world.Object) error {
			o.RemoveContent(id)
			return nil
		})
	}
	if dest != "" {
		if err := gm.Cache.Mutate(dest, func(o *world.Object) error {
			o.AddContent(id)
			return nil
		}); err != nil {
			return err
		}
	}
	return gm.Cache.Mutate(id, func(o *world.Object) error {
		o.LocationID = dest
		return nil
	})
}
