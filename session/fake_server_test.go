package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/tablematch/client"
	"github.com/Seednode/tablematch/protocol"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// rawFrame is written to the socket as-is instead of JSON-encoded.
type rawFrame []byte

type fakeClient struct {
	conn      *websocket.Conn
	send      chan any
	sessionID string
	playerID  string
	once      sync.Once
}

func (c *fakeClient) close() {
	c.once.Do(func() {
		close(c.send)
		_ = c.conn.Close()
	})
}

// fakeServer stands in for the session engine: it accepts create/join
// requests and one WebSocket per connecting player.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	actions chan protocol.Action

	mu       sync.Mutex
	clients  map[*fakeClient]bool
	attempts int
	opened   []string
	joins    int
	refuse   bool
	sessions map[string]bool
	joinGate chan struct{}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()

	fs := &fakeServer{
		t:        t,
		actions:  make(chan protocol.Action, 64),
		clients:  make(map[*fakeClient]bool),
		sessions: map[string]bool{"abc": true},
	}

	mux := httprouter.New()
	mux.POST("/sessions/*rest", fs.serveSessions)
	mux.GET("/ws/:session/:player", fs.serveWS)

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.close)

	return fs
}

func (fs *fakeServer) close() {
	fs.dropAll()
	fs.srv.Close()
}

func (fs *fakeServer) client() *client.Client {
	c, err := client.New(fs.srv.URL, nil)
	if err != nil {
		fs.t.Fatalf("new client: %v", err)
	}
	return c
}

// serveSessions routes /sessions/create and /sessions/{id}/join.
func (fs *fakeServer) serveSessions(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	rest := strings.Trim(ps.ByName("rest"), "/")

	if rest == "create" {
		fs.serveCreate(w, r)
		return
	}

	if sessionID, ok := strings.CutSuffix(rest, "/join"); ok && sessionID != "" && !strings.Contains(sessionID, "/") {
		fs.serveJoin(w, sessionID)
		return
	}

	http.NotFound(w, r)
}

func (fs *fakeServer) serveCreate(w http.ResponseWriter, r *http.Request) {
	var req protocol.CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.HostName == "" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(protocol.ErrorBody{Detail: "host_name is required"})
		return
	}

	fs.mu.Lock()
	fs.sessions["new1"] = true
	fs.mu.Unlock()

	_ = json.NewEncoder(w).Encode(protocol.CreateSessionResponse{
		SessionID: "new1",
		PlayerID:  "host1",
		InviteURL: fs.srv.URL + "/join?session=new1",
	})
}

func (fs *fakeServer) serveJoin(w http.ResponseWriter, sessionID string) {
	fs.mu.Lock()
	fs.joins++
	gate := fs.joinGate
	known := fs.sessions[sessionID]
	fs.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if !known {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(protocol.ErrorBody{Detail: "Session not found or full"})
		return
	}

	_ = json.NewEncoder(w).Encode(protocol.JoinSessionResponse{PlayerID: "p2"})
}

func (fs *fakeServer) serveWS(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	fs.mu.Lock()
	fs.attempts++
	refuse := fs.refuse
	fs.mu.Unlock()

	if refuse {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &fakeClient{
		conn:      conn,
		send:      make(chan any, 16),
		sessionID: ps.ByName("session"),
		playerID:  ps.ByName("player"),
	}

	fs.mu.Lock()
	fs.clients[c] = true
	fs.opened = append(fs.opened, r.URL.Path)
	fs.mu.Unlock()

	go c.writePump()
	fs.readPump(c)
}

func (fs *fakeServer) readPump(c *fakeClient) {
	defer func() {
		fs.mu.Lock()
		delete(fs.clients, c)
		fs.mu.Unlock()
		c.close()
	}()

	for {
		var a protocol.Action
		if err := c.conn.ReadJSON(&a); err != nil {
			return
		}
		fs.actions <- a
	}
}

func (c *fakeClient) writePump() {
	for msg := range c.send {
		var err error
		switch m := msg.(type) {
		case rawFrame:
			err = c.conn.WriteMessage(websocket.TextMessage, m)
		default:
			err = c.conn.WriteJSON(m)
		}
		if err != nil {
			return
		}
	}
}

// live returns the "session/player" pairs with an open socket.
func (fs *fakeServer) live() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	out := make([]string, 0, len(fs.clients))
	for c := range fs.clients {
		out = append(out, c.sessionID+"/"+c.playerID)
	}
	return out
}

func (fs *fakeServer) openedPaths() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.opened...)
}

func (fs *fakeServer) attemptCount() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.attempts
}

func (fs *fakeServer) setRefuse(refuse bool) {
	fs.mu.Lock()
	fs.refuse = refuse
	fs.mu.Unlock()
}

// broadcast pushes msg to every open socket.
func (fs *fakeServer) broadcast(msg any) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	for c := range fs.clients {
		select {
		case c.send <- msg:
		default:
			fs.t.Errorf("send buffer full for %s/%s", c.sessionID, c.playerID)
		}
	}
}

// dropAll closes every socket from the server side.
func (fs *fakeServer) dropAll() {
	fs.mu.Lock()
	clients := make([]*fakeClient, 0, len(fs.clients))
	for c := range fs.clients {
		clients = append(clients, c)
	}
	fs.mu.Unlock()

	for _, c := range clients {
		_ = c.conn.Close()
	}
}

func stateUpdate(t *testing.T, s *protocol.SessionState) protocol.ServerMessage {
	t.Helper()

	msg, err := protocol.NewStateUpdate(s)
	if err != nil {
		t.Fatalf("encode state: %v", err)
	}
	return msg
}

func fastBackoff(retries uint64) func() backoff.BackOff {
	return func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(5*time.Millisecond), retries)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
