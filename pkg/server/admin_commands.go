package server

import (
	"fmt"
	"log"
	"strings"

	"github.com/adamdray/gaia-mud/pkg/g"
	"github.com/adamdray/gaia-mud/pkg/input"
	"github.com/adamdray/gaia-mud/pkg/validate"
	"github.com/adamdray/gaia-mud/pkg/world"
)

// dispatchAdmin routes an Admin-mode recognition to its in-engine handler.
func (gm *Game) dispatchAdmin(s *Session, rec *input.Recognition) {
	if !s.IsAdmin() {
		s.Send("Permission denied.")
		return
	}
	switch rec.Verb {
	case "create":
		gm.adminCreate(s, rec.Args)
	case "delete":
		gm.adminDelete(s, rec.Args)
	case "reload":
		gm.adminReload(s, rec.Args)
	case "shutdown":
		s.Send("Shutting down.")
		log.Printf("[%s] shutdown requested by %s", s.ID, s.Account().LoginID)
		gm.RequestShutdown()
	case "password":
		gm.adminPassword(s, rec.Args)
	case "roles":
		gm.adminRoles(s, rec.Args)
	case "eval":
		gm.adminEval(s, rec.Raw)
	case "who":
		gm.SendWho(s)
	case "scrollback":
		gm.adminScrollback(s, rec.Args)
	default:
		s.Send(dontUnderstand)
	}
}

// adminCreate: /create <#id|name> [parent...]
func (gm *Game) adminCreate(s *Session, args []string) {
	if len(args) == 0 {
		s.Send("Usage: /create <#id|name> [parent...]")
		return
	}
	parents := args[1:]
	if len(parents) == 0 {
		parents = []string{world.RootObjectID}
	}

	if strings.HasPrefix(args[0], "#") {
		obj := &world.Object{
			ID:         args[0],
			Name:       strings.TrimPrefix(args[0], "#"),
			ParentIDs:  parents,
			OwnerID:    s.ActorID(),
			Attributes: map[string]g.Value{},
		}
		if err := gm.Cache.Create(obj); err != nil {
			s.Send(fmt.Sprintf("Create failed: %v", err))
			return
		}
		s.Send("Created " + args[0] + ".")
		return
	}

	id, err := gm.CreateObject(args[0], parents, s.ActorID())
	if err != nil {
		s.Send(fmt.Sprintf("Create failed: %v", err))
		return
	}
	s.Send("Created " + id + ".")
}

// adminDelete: /delete <#id>
func (gm *Game) adminDelete(s *Session, args []string) {
	if len(args) != 1 {
		s.Send("Usage: /delete <#id>")
		return
	}
	id := args[0]
	switch id {
	case world.RootObjectID, ConfigObjectID, CommandsObjectID:
		s.Send("That object cannot be deleted.")
		return
	}
	if err := gm.Cache.Delete(id); err != nil {
		s.Send(fmt.Sprintf("Delete failed: %v", err))
		return
	}
	s.Send("Deleted " + id + ".")
}

// adminReload: /reload <path> <#ref> [attr] — loads G source from the world
// directory onto the named attribute (run by default) after a pre-flight
// check. The
// caller arranges re-invocation; this is not a hot reload.
func (gm *Game) adminReload(s *Session, args []string) {
	if len(args) < 2 {
		s.Send("Usage: /reload <path> <#ref> [attr]")
		return
	}
	path, ref := args[0], args[1]
	attr := "run"
	if len(args) > 2 {
		attr = args[2]
	}

	src, err := gm.ReadSourceFile(path)
	if err != nil {
		s.Send(fmt.Sprintf("Reload failed: %v", err))
		return
	}
	findings := validate.CheckSource(src)
	if validate.HasErrors(findings) {
		s.Send("Reload rejected: " + validate.Summary(findings))
		return
	}
	if err := gm.SetAttr(ref, attr, src); err != nil {
		s.Send(fmt.Sprintf("Reload failed: %v", err))
		return
	}
	s.Send(fmt.Sprintf("Loaded %s onto %s.%s.", path, ref, attr))
	log.Printf("[%s] reloaded %s onto %s.%s", s.ID, path, ref, attr)
}

// adminPassword: /password <user> <newpassword>
func (gm *Game) adminPassword(s *Session, args []string) {
	if len(args) != 2 {
		s.Send("Usage: /password <user> <newpassword>")
		return
	}
	if err := gm.Accounts.SetPassword(args[0], args[1]); err != nil {
		s.Send(fmt.Sprintf("Password change failed: %v", err))
		return
	}
	s.Send("Password changed for " + args[0] + ".")
}

// adminRoles: /roles <user> +role -role ...
func (gm *Game) adminRoles(s *Session, args []string) {
	if len(args) < 2 {
		s.Send("Usage: /roles <user> +role -role ...")
		return
	}
	var add, remove []string
	for _, spec := range args[1:] {
		switch {
		case strings.HasPrefix(spec, "+"):
			add = append(add, spec[1:])
		case strings.HasPrefix(spec, "-"):
			remove = append(remove, spec[1:])
		default:
			s.Send("Role changes must be +role or -role.")
			return
		}
	}
	a, err := gm.Accounts.SetRoles(args[0], add, remove)
	if err != nil {
		s.Send(fmt.Sprintf("Role change failed: %v", err))
		return
	}
	s.Send(fmt.Sprintf("Roles for %s: %s", a.LoginID, strings.Join(a.Roles, ", ")))
}

// adminEval: /eval <expression> — runs G with the admin as actor and
// reports the value or the single-line diagnostic.
func (gm *Game) adminEval(s *Session, raw string) {
	src := strings.TrimSpace(raw)
	src = strings.TrimPrefix(src, "/")
	src = strings.TrimSpace(strings.TrimPrefix(src, "eval"))
	if src == "" {
		s.Send("Usage: /eval <expression>")
		return
	}
	v, err := gm.EvalAsActor(s, src)
	if err != nil {
		gm.reportFailure(s, err)
		return
	}
	s.Send("=> " + g.ToString(v))
}

// adminScrollback: /scrollback [n] — recent outbound traffic from the
// SQLite audit log.
func (gm *Game) adminScrollback(s *Session, args []string) {
	if gm.Scrollback == nil {
		s.Send("Scrollback is not configured.")
		return
	}
	n := 20
	if len(args) > 0 {
		fmt.Sscanf(args[0], "%d", &n)
	}
	lines, err := gm.Scrollback.Recent(n)
	if err != nil {
		s.Send(fmt.Sprintf("Scrollback failed: %v", err))
		return
	}
	if len(lines) == 0 {
		s.Send("Scrollback is empty.")
		return
	}
	for _, l := range lines {
		s.Send(l)
	}
}

// SendWho reports live sessions.
func (gm *Game) SendWho(s *Session) {
	sessions := gm.Sessions.All()
	s.Send(fmt.Sprintf("%d connection(s):", len(sessions)))
	for _, sess := range sessions {
		who := "(connecting)"
		if a := sess.Account(); a != nil {
			who = a.LoginID
		}
		char := sess.CharacterID()
		if char == "" {
			char = "-"
		}
		s.Send(fmt.Sprintf("  %-16s %-20s %-10s idle %s",
			who, char, sess.Transport, sess.IdleFor().Truncate(1e9)))
	}
}
