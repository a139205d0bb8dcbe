package server

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adamdray/gaia-mud/pkg/accounts"
	"github.com/adamdray/gaia-mud/pkg/events"
)

// TransportType identifies the kind of transport a Session uses.
type TransportType int

const (
	TransportTelnet TransportType = iota
	TransportWebSocket
)

func (t TransportType) String() string {
	if t == TransportWebSocket {
		return "websocket"
	}
	return "telnet"
}

// SessionState tracks the login state machine.
type SessionState int

const (
	StateLogin      SessionState = iota // awaiting connect <user> <password>
	StateAuthed                         // authenticated, unembodied
	StateEmbodied                       // playing a character
)

// Session is a live connection. Output is serialized through a bounded
// outbound channel drained by a single writer goroutine, so writes to one
// client never interleave mid-message; a full channel applies backpressure
// to senders.
type Session struct {
	ID        string
	Transport TransportType
	Addr      string
	ConnTime  time.Time

	mu        sync.Mutex
	state     SessionState
	account   *accounts.Account
	charID    string // embodied character, "" when unembodied
	userObjID string // session-scoped transient user object
	lastCmd   time.Time
	retries   int
	closed    bool

	out     chan string
	writeFn func(msg string) error
	closeFn func()
	wg      sync.WaitGroup
}

// NewSession wraps a transport write function in a session. closeFn tears
// down the underlying connection.
func NewSession(transport TransportType, addr string, outSize int, retries int,
	writeFn func(string) error, closeFn func()) *Session {
	if outSize <= 0 {
		outSize = 64
	}
	s := &Session{
		ID:        uuid.NewString(),
		Transport: transport,
		Addr:      addr,
		ConnTime:  time.Now(),
		lastCmd:   time.Now(),
		retries:   retries,
		out:       make(chan string, outSize),
		writeFn:   writeFn,
		closeFn:   closeFn,
	}
	s.wg.Add(1)
	go s.writer()
	return s
}

// writer drains the outbound channel; per-session output order is the
// channel order.
func (s *Session) writer() {
	defer s.wg.Done()
	for msg := range s.out {
		if err := s.writeFn(msg); err != nil {
			s.Close()
			return
		}
	}
}

// Send queues a line for delivery. Blocks when the channel is full
// (backpressure); drops silently once the session is closed.
func (s *Session) Send(msg string) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return
	}
	defer func() {
		// The channel may close while a sender is blocked on it.
		recover()
	}()
	s.out <- msg
}

// TrySend queues a line without blocking; reports whether it was accepted.
func (s *Session) TrySend(msg string) bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return false
	}
	defer func() { recover() }()
	select {
	case s.out <- msg:
		return true
	default:
		return false
	}
}

// Close shuts the session down; the writer drains what is already queued.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.out)
	if s.closeFn != nil {
		s.closeFn()
	}
}

// Closed reports whether the session is closed. Implements
// events.Subscriber together with Receive.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Receive implements events.Subscriber.
func (s *Session) Receive(ev events.Event) {
	if ev.Text != "" {
		s.Send(ev.Text)
	}
}

// State returns the login state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Account returns the authenticated account, or nil.
func (s *Session) Account() *accounts.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

// IsAdmin reports whether the authenticated account holds the admin role.
func (s *Session) IsAdmin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account != nil && s.account.IsAdmin()
}

// CharacterID returns the embodied character ID, or "".
func (s *Session) CharacterID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.charID
}

// UserObjectID returns the transient user object ID, or "".
func (s *Session) UserObjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userObjID
}

// ActorID returns the object the session acts as: the embodied character,
// else the transient user object.
func (s *Session) ActorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.charID != "" {
		return s.charID
	}
	return s.userObjID
}

// TouchCmd records input activity.
func (s *Session) TouchCmd() {
	s.mu.Lock()
	s.lastCmd = time.Now()
	s.mu.Unlock()
}

// IdleFor returns how long since the last command.
func (s *Session) IdleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastCmd)
}

// FailedLogin decrements the retry budget; true means the session should be
// disconnected.
func (s *Session) FailedLogin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retries--
	return s.retries <= 0
}

// SessionManager tracks live sessions and embodiment.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byChar   map[string]*Session
}

// NewSessionManager creates an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		byChar:   make(map[string]*Session),
	}
}

// Add registers a session.
func (sm *SessionManager) Add(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.sessions[s.ID] = s
}

// Remove unregisters a session and clears its embodiment.
func (sm *SessionManager) Remove(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, s.ID)
	if s.charID != "" && sm.byChar[s.charID] == s {
		delete(sm.byChar, s.charID)
	}
}

// Authenticate transitions a session to authenticated-unembodied and
// records its transient user object.
func (sm *SessionManager) Authenticate(s *Session, a *accounts.Account, userObjID string) {
	s.mu.Lock()
	s.account = a
	s.state = StateAuthed
	s.userObjID = userObjID
	s.mu.Unlock()
}

// Embody binds a character to the session. If another session currently
// embodies the character, the earlier session is displaced (and told so).
// Returns the displaced session, if any.
func (sm *SessionManager) Embody(s *Session, charID string) *Session {
	sm.mu.Lock()
	prev := sm.byChar[charID]
	if prev == s {
		sm.mu.Unlock()
		return nil
	}
	sm.byChar[charID] = s
	if prev != nil {
		prev.mu.Lock()
		prev.charID = ""
		prev.state = StateAuthed
		prev.mu.Unlock()
	}
	sm.mu.Unlock()

	s.mu.Lock()
	s.charID = charID
	s.state = StateEmbodied
	s.mu.Unlock()

	if prev != nil {
		prev.Send("Your character has been taken over by another connection.")
		log.Printf("[%s] displaced from %s by [%s]", prev.ID, charID, s.ID)
	}
	return prev
}

// ByCharacter returns the session embodying a character, or nil.
func (sm *SessionManager) ByCharacter(charID string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.byChar[charID]
}

// All returns a snapshot of live sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
