package server

import (
	"fmt"
	"strings"

	"github.com/adamdray/gaia-mud/pkg/events"
	"github.com/adamdray/gaia-mud/pkg/g"
	"github.com/adamdray/gaia-mud/pkg/input"
	"github.com/adamdray/gaia-mud/pkg/world"
)

// dispatchUser routes a User-mode recognition to its in-engine handler.
func (gm *Game) dispatchUser(s *Session, rec *input.Recognition) {
	switch rec.Verb {
	case "who":
		gm.SendWho(s)
	case "quit":
		s.Send("Goodbye!")
		if gm.Texts != nil {
			if txt := gm.Texts.GetQuit(); txt != "" {
				s.Send(txt)
			}
		}
		s.Close()
	case "commands":
		gm.sendCommands(s)
	case "connect":
		gm.userConnect(s, rec.Args)
	default:
		s.Send(dontUnderstand)
	}
}

// sendCommands lists what the session can type.
func (gm *Game) sendCommands(s *Session) {
	s.Send("User commands: WHO, QUIT, CONNECT, COMMANDS")
	if s.IsAdmin() {
		s.Send("Admin commands: /create /delete /reload /shutdown /password /roles /eval /who /scrollback")
	}
	if s.State() == StateEmbodied {
		s.Send("In-world verbs depend on where you are. Try: look")
	}
}

// userConnect handles the post-authentication CONNECT forms:
//
//	connect character <name>  — embody a character
//	connect                   — list the account's characters
func (gm *Game) userConnect(s *Session, args []string) {
	a := s.Account()
	if a == nil {
		s.Send("You are not logged in.")
		return
	}

	if len(args) == 0 || (len(args) == 1 && strings.EqualFold(args[0], "character")) {
		if len(a.CharacterIDs) == 0 {
			s.Send("You have no characters. Use: connect character <name> to create one.")
			return
		}
		s.Send("Your characters:")
		for _, id := range a.CharacterIDs {
			name := id
			if obj, err := gm.Cache.Get(id); err == nil && obj.Name != "" {
				name = obj.Name + " (" + id + ")"
			}
			s.Send("  " + name)
		}
		return
	}

	if !strings.EqualFold(args[0], "character") || len(args) < 2 {
		s.Send("Usage: connect character <name>")
		return
	}
	name := strings.Join(args[1:], " ")
	gm.EmbodyCharacter(s, name)
}

// EmbodyCharacter binds the named character to the session, creating the
// character object on first use. Exactly one session embodies a character;
// an earlier session is displaced.
func (gm *Game) EmbodyCharacter(s *Session, name string) {
	a := s.Account()
	if a == nil {
		s.Send("You are not logged in.")
		return
	}

	charID := ""
	for _, id := range a.CharacterIDs {
		if obj, err := gm.Cache.Get(id); err == nil && strings.EqualFold(obj.Name, name) {
			charID = id
			break
		}
	}

	if charID == "" {
		id, err := gm.createCharacter(a.LoginID, name)
		if err != nil {
			s.Send(fmt.Sprintf("Cannot create character: %v", err))
			return
		}
		charID = id
		s.Send(fmt.Sprintf("Character %s created as %s.", name, charID))
	}

	if prevChar := s.CharacterID(); prevChar != "" {
		gm.Bus.Unsubscribe(prevChar, s)
	}
	gm.Sessions.Embody(s, charID)
	gm.Bus.Subscribe(charID, s)
	gm.Bus.Emit(events.Event{Type: events.EvEmbody, Target: charID, Source: charID})

	obj, err := gm.Cache.Get(charID)
	if err == nil && obj.LocationID == "" {
		gm.MoveObject(charID, gm.startingRoom())
		obj, err = gm.Cache.Get(charID)
	}

	s.Send("You are now " + name + ".")
	if err == nil && obj.LocationID != "" {
		gm.ShowRoom(s, obj.LocationID)
	}
}

// createCharacter mints a character object and attaches it to the account.
func (gm *Game) createCharacter(loginID, name string) (string, error) {
	id, err := gm.CreateObject(name, []string{CharParentID}, "")
	if err != nil {
		return "", err
	}
	gm.Cache.Mutate(id, func(o *world.Object) error {
		o.Attributes["account"] = "acct:" + strings.ToLower(loginID)
		return nil
	})
	if err := gm.Accounts.AttachCharacter(loginID, id); err != nil {
		return "", err
	}
	return id, nil
}

// startingRoom returns where new characters appear.
func (gm *Game) startingRoom() string {
	v, ok, _ := gm.Cache.GetAttribute(ConfigObjectID, "starting_room")
	if ok {
		if id, isRef := v.(g.Ref); isRef {
			return string(id)
		}
		if sid := g.ToString(v); strings.HasPrefix(sid, "#") {
			return sid
		}
	}
	return RoomParentID
}

// ShowRoom sends the room name and description to the session.
func (gm *Game) ShowRoom(s *Session, roomID string) {
	obj, err := gm.Cache.Get(roomID)
	if err != nil {
		return
	}
	if obj.Name != "" {
		s.Send(obj.Name)
	}
	if v, ok, _ := gm.Cache.GetAttribute(roomID, "description"); ok {
		if desc := g.ToString(v); desc != "" {
			s.Send(desc)
		}
	}
}
