package server

import (
	"bufio"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Server owns the listeners and the per-connection receive loops.
type Server struct {
	Game *Game

	listener net.Listener
	web      *WebServer
}

// NewServer creates a server over an assembled game.
func NewServer(game *Game) *Server {
	return &Server{Game: game}
}

// Start brings up the telnet and WebSocket listeners and blocks until
// shutdown. Listener failures surface as errors (bind failure → exit 3 in
// cmd/server).
func (s *Server) Start() error {
	conf := s.Game.Conf

	s.Game.Cache.StartWriteBack()
	s.Game.StartTicker()

	var group errgroup.Group

	group.Go(func() error {
		var ln net.Listener
		var err error
		addr := fmt.Sprintf(":%d", conf.TelnetPort)
		if conf.TLS && conf.TLSCert != "" && conf.TLSKey != "" {
			cert, cerr := tls.LoadX509KeyPair(conf.TLSCert, conf.TLSKey)
			if cerr != nil {
				return fmt.Errorf("telnet TLS cert: %w", cerr)
			}
			ln, err = tls.Listen("tcp", addr, &tls.Config{Certificates: []tls.Certificate{cert}})
		} else {
			ln, err = net.Listen("tcp", addr)
		}
		if err != nil {
			return fmt.Errorf("telnet listener: %w", err)
		}
		s.listener = ln
		log.Printf("Listening (telnet) on port %d", conf.TelnetPort)
		s.acceptLoop(ln)
		return nil
	})

	s.web = NewWebServer(s.Game)
	group.Go(func() error {
		if err := s.web.Start(); err != nil {
			return fmt.Errorf("web server: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-s.Game.Shutdown
		s.Stop()
		return nil
	})

	return group.Wait()
}

// Stop closes the listeners and flushes the cache.
func (s *Server) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	if s.web != nil {
		s.web.Stop()
	}
	for _, sess := range s.Game.Sessions.All() {
		sess.Send("Server is shutting down.")
		sess.Close()
	}
	s.Game.Cache.StopWriteBack()
}

// acceptLoop accepts connections until the listener closes.
func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}

// handleConnection runs the per-connection receive task for telnet.
func (s *Server) handleConnection(conn net.Conn) {
	gm := s.Game
	sess := NewSession(TransportTelnet, conn.RemoteAddr().String(), gm.Conf.OutboundSize, gm.Conf.MaxRetries,
		func(msg string) error {
			if !strings.HasSuffix(msg, "\n") {
				msg += "\r\n"
			}
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			_, err := conn.Write([]byte(msg))
			return err
		},
		func() { conn.Close() },
	)
	gm.Sessions.Add(sess)
	if gm.Metrics != nil {
		gm.Metrics.ConnectionOpened("telnet")
	}
	log.Printf("[%s] new telnet connection from %s", sess.ID, sess.Addr)

	defer func() {
		gm.DropSession(sess)
		sess.Close()
		log.Printf("[%s] connection closed from %s", sess.ID, sess.Addr)
	}()

	// Welcome banner, then the login prompt.
	if gm.Texts != nil {
		if txt := gm.Texts.GetConnect(); txt != "" {
			sess.Send(txt)
		} else {
			sess.Send(defaultWelcome(gm.Conf.WorldName))
		}
	} else {
		sess.Send(defaultWelcome(gm.Conf.WorldName))
	}
	sess.Send("CONNECT <user> <password>")

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 8192), 8192)

	idle := time.Duration(gm.Conf.IdleTimeout) * time.Second
	for {
		conn.SetReadDeadline(time.Now().Add(idle))
		if !scanner.Scan() {
			return
		}
		if sess.Closed() {
			return
		}
		line := decodeLine(scanner.Bytes())
		line = strings.TrimRight(line, "\r\n")

		if sess.State() == StateLogin {
			s.handleLoginLine(sess, line)
		} else {
			gm.HandleLine(sess, line)
		}
		if sess.Closed() {
			return
		}
	}
}

// decodeLine interprets input as UTF-8; a line that is not valid UTF-8 is
// decoded entirely as Latin-1, one rune per byte.
func decodeLine(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	runes := make([]rune, len(b))
	for i, c := range b {
		runes[i] = rune(c)
	}
	return string(runes)
}

// handleLoginLine drives the pre-authentication state machine: the literal
// connect <user> <password> line (case-insensitive keyword), register for
// account creation, and the pre-login WHO/QUIT conveniences.
func (s *Server) handleLoginLine(sess *Session, line string) {
	gm := s.Game
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	fields := strings.Fields(line)
	keyword := strings.ToLower(fields[0])

	switch keyword {
	case "quit":
		sess.Send("Goodbye!")
		sess.Close()
		return
	case "who":
		gm.SendWho(sess)
		return
	case "connect":
		if len(fields) != 3 {
			sess.Send("Usage: connect <user> <password>")
			return
		}
		s.authenticate(sess, fields[1], fields[2])
		return
	case "register":
		if len(fields) != 3 {
			sess.Send("Usage: register <user> <password>")
			return
		}
		if _, err := gm.Accounts.Create(fields[1], fields[2], "", fields[1]); err != nil {
			sess.Send(fmt.Sprintf("Registration failed: %v", err))
			return
		}
		sess.Send("Account created. Now: connect " + fields[1] + " <password>")
		return
	default:
		sess.Send("Commands: connect <user> <password>, register <user> <password>, WHO, QUIT")
	}
}

// authenticate verifies credentials and transitions the session to
// authenticated-unembodied; three consecutive failures disconnect.
func (s *Server) authenticate(sess *Session, user, password string) {
	gm := s.Game
	a, err := gm.Accounts.Authenticate(user, password)
	if err != nil {
		sess.Send("Either that account does not exist, or has a different password.")
		if sess.FailedLogin() {
			sess.Send("Too many failed attempts. Disconnecting.")
			sess.Close()
		}
		return
	}

	gm.Sessions.Authenticate(sess, a, "")
	if id, err := gm.CreateTransientUser(sess); err == nil {
		gm.Sessions.Authenticate(sess, a, id)
		gm.Bus.Subscribe(id, sess)
	} else {
		log.Printf("[%s] transient user: %v", sess.ID, err)
	}

	log.Printf("[%s] %s authenticated from %s", sess.ID, a.LoginID, sess.Addr)
	sess.Send(fmt.Sprintf("Welcome, %s.", a.LoginID))
	if gm.Texts != nil {
		if txt := gm.Texts.GetMotd(); txt != "" {
			sess.Send(txt)
		}
	}
	if len(a.CharacterIDs) > 0 {
		sess.Send("Use: connect character <name> to embody a character (CONNECT lists yours).")
	} else {
		sess.Send("Use: connect character <name> to create and embody a character.")
	}
}

func defaultWelcome(worldName string) string {
	return fmt.Sprintf(`Welcome to %s.

"connect <user> <password>" to log in to your account.
"register <user> <password>" to create an account.
"WHO" to see who is connected.
"QUIT" to disconnect.`, worldName)
}
