package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebServer provides the WebSocket transport plus the HTTP surface: auth
// endpoints, health, and Prometheus metrics. One text frame = one input
// line; multi-line output goes out as separate frames.
type WebServer struct {
	game     *Game
	httpSrv  *http.Server
	mux      *http.ServeMux
	auth     *AuthService
	upgrader websocket.Upgrader
}

// NewWebServer creates the web server bound to the game.
func NewWebServer(game *Game) *WebServer {
	ws := &WebServer{
		game: game,
		mux:  http.NewServeMux(),
		auth: NewAuthService(game.Accounts, game.Conf.JWTSecret, game.Conf.JWTExpiry),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	ws.registerRoutes()
	return ws
}

func (ws *WebServer) registerRoutes() {
	conf := ws.game.Conf
	ws.httpSrv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", conf.WebHost, conf.WebPort),
		Handler: ws.mux,
	}

	ws.mux.HandleFunc("GET /ws", ws.handleWebSocket)
	ws.mux.HandleFunc("POST /api/v1/auth/login", ws.handleAuthLogin)
	ws.mux.HandleFunc("POST /api/v1/auth/refresh", ws.handleAuthRefresh)
	ws.mux.HandleFunc("GET /health", ws.handleHealth)
	if ws.game.Metrics != nil {
		ws.mux.Handle("GET /metrics", ws.game.Metrics.Handler())
	}
}

// Start begins listening. TLS is selected by domain (Let's Encrypt),
// provided cert files, or falls back to plain HTTP.
func (ws *WebServer) Start() error {
	conf := ws.game.Conf
	hasTLS := conf.Domain != "" || (conf.TLSCert != "" && conf.TLSKey != "")
	if hasTLS {
		result, err := SetupTLS(conf.Domain, conf.TLSCert, conf.TLSKey, conf.CertDir)
		if err != nil {
			log.Printf("web: TLS setup failed (%v), falling back to HTTP", err)
		} else {
			ws.httpSrv.TLSConfig = result.Config
			if result.AutocertMgr != nil {
				go func() {
					httpSrv := &http.Server{Addr: ":80", Handler: result.AutocertMgr.HTTPHandler(nil)}
					log.Printf("ACME HTTP challenge listener on :80")
					if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						log.Printf("ACME HTTP listener error: %v", err)
					}
				}()
			}
			log.Printf("Listening (websocket/HTTPS) on %s", ws.httpSrv.Addr)
			err = ws.httpSrv.ListenAndServeTLS("", "")
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	}

	log.Printf("Listening (websocket) on %s", ws.httpSrv.Addr)
	err := ws.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop gracefully shuts the web server down.
func (ws *WebServer) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return ws.httpSrv.Shutdown(ctx)
}

// wsConn serializes frame writes to one WebSocket connection.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (wc *wsConn) writeText(msg string) error {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	wc.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return wc.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// handleWebSocket upgrades the connection and runs its receive loop. A
// valid bearer token authenticates the session immediately.
func (ws *WebServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	var claims *Claims
	token := r.URL.Query().Get("token")
	if token == "" {
		if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
			token = h[7:]
		}
	}
	if token != "" {
		var err error
		claims, err = ws.auth.ValidateToken(token)
		if err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
	}

	conn, err := ws.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	gm := ws.game
	wc := &wsConn{conn: conn}
	sess := NewSession(TransportWebSocket, r.RemoteAddr, gm.Conf.OutboundSize, gm.Conf.MaxRetries,
		wc.writeText,
		func() { conn.Close() },
	)
	gm.Sessions.Add(sess)
	if gm.Metrics != nil {
		gm.Metrics.ConnectionOpened("websocket")
	}
	log.Printf("[%s] new websocket connection from %s", sess.ID, sess.Addr)

	if claims != nil {
		if acct, err := gm.Accounts.Store().Get(claims.AccountID); err == nil {
			gm.Sessions.Authenticate(sess, acct, "")
			if id, err := gm.CreateTransientUser(sess); err == nil {
				gm.Sessions.Authenticate(sess, acct, id)
				gm.Bus.Subscribe(id, sess)
			}
			sess.Send(fmt.Sprintf("Welcome, %s.", acct.LoginID))
		}
	} else {
		sess.Send("Connected. Log in with: connect <user> <password>")
	}

	go ws.readLoop(sess, wc)
}

// readLoop consumes frames: one text frame = one input line.
func (ws *WebServer) readLoop(sess *Session, wc *wsConn) {
	gm := ws.game
	defer func() {
		gm.DropSession(sess)
		sess.Close()
		log.Printf("[%s] websocket closed from %s", sess.ID, sess.Addr)
	}()

	for {
		kind, data, err := wc.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[%s] read error: %v", sess.ID, err)
			}
			return
		}
		if kind != websocket.TextMessage {
			sess.Send("Protocol error: text frames only.")
			continue
		}
		line := strings.TrimRight(string(data), "\r\n")

		if sess.State() == StateLogin {
			ws.handleWSLogin(sess, line)
		} else {
			gm.HandleLine(sess, line)
		}
		if sess.Closed() {
			return
		}
	}
}

// handleWSLogin reuses the telnet login state machine for frame-based
// sessions.
func (ws *WebServer) handleWSLogin(sess *Session, line string) {
	srv := &Server{Game: ws.game}
	srv.handleLoginLine(sess, line)
}

// --- HTTP handlers ---

func (ws *WebServer) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	token, acct, err := ws.auth.Login(req.Name, req.Password)
	if err != nil {
		http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"token":      token,
		"login_id":   acct.LoginID,
		"characters": acct.CharacterIDs,
	})
}

func (ws *WebServer) handleAuthRefresh(w http.ResponseWriter, r *http.Request) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
		return
	}
	newToken, err := ws.auth.RefreshToken(h[7:])
	if err != nil {
		http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"token": newToken})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":   "ok",
		"world":    ws.game.Conf.WorldName,
		"sessions": ws.game.Sessions.Count(),
	})
}
