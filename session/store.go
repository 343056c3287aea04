/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package session owns a client's place in a matching session: its
// identity, the single real-time connection to the session engine, and
// the latest snapshot the engine pushed.
//
// All state lives in a Store. Views read it through accessors and change
// it only through Store methods or a Dispatcher; nothing outside the Store
// touches the WebSocket.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/tablematch/client"
	"github.com/Seednode/tablematch/protocol"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	DefaultReconnectAttempts = 8

	handshakeTimeout = 10 * time.Second
	writeWait        = 10 * time.Second

	MessageInvalid   = "Received an invalid message from the server."
	MessageTransport = "WebSocket connection error."
	MessageGeneric   = "An error occurred in the session."
)

var (
	ErrNotConnected    = errors.New("not connected to session")
	ErrSuperseded      = errors.New("session identity changed while the request was in flight")
	ErrNoIdentity      = errors.New("no session identity")
	ErrInvalidDecision = errors.New("invalid swipe decision")
	ErrClosed          = errors.New("session store closed")
)

// ConnState is the real-time connection lifecycle.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (c ConnState) String() string {
	switch c {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// IsFatal reports whether a server error means the local identity no
// longer refers to anything.
func IsFatal(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "session not found") || strings.Contains(m, "player not found")
}

// DefaultBackoff is bounded exponential backoff with jitter.
func DefaultBackoff(attempts uint64) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, attempts)
}

type Options struct {
	// Client performs the create/join requests and names the WebSocket URL.
	Client *client.Client

	// Identities defaults to an in-memory store.
	Identities IdentityStore

	Dialer *websocket.Dialer

	// Backoff returns a fresh policy for each connection. Defaults to
	// DefaultBackoff(ReconnectAttempts).
	Backoff           func() backoff.BackOff
	ReconnectAttempts uint64

	// Lazy leaves a persisted identity disconnected until Connect is
	// called.
	Lazy bool

	Logf func(format string, args ...any)
}

// Store is the client-side session state holder.
type Store struct {
	api        *client.Client
	ids        IdentityStore
	dialer     *websocket.Dialer
	newBackoff func() backoff.BackOff
	logf       func(string, ...any)

	changes chan struct{}

	// persistMu orders writes to ids; each write is checked against epoch
	// while it is held.
	persistMu sync.Mutex

	mu        sync.Mutex
	identity  Identity
	epoch     uint64 // bumped on every identity change
	gen       uint64 // bumped whenever the current connection is detached
	conn      *connection
	connState ConnState
	state     *protocol.SessionState
	err       string
	loading   int
	closed    bool
}

// New builds a Store and re-hydrates the persisted identity. When that
// identity is complete the connection is opened right away, unless
// opts.Lazy is set.
func New(opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("session: a client is required")
	}

	s := &Store{
		api:        opts.Client,
		ids:        opts.Identities,
		dialer:     opts.Dialer,
		newBackoff: opts.Backoff,
		logf:       opts.Logf,
		changes:    make(chan struct{}, 1),
	}

	if s.ids == nil {
		s.ids = NewMemoryIdentityStore(Identity{})
	}
	if s.dialer == nil {
		s.dialer = &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		}
	}
	if s.newBackoff == nil {
		attempts := opts.ReconnectAttempts
		if attempts == 0 {
			attempts = DefaultReconnectAttempts
		}
		s.newBackoff = func() backoff.BackOff { return DefaultBackoff(attempts) }
	}
	if s.logf == nil {
		s.logf = func(string, ...any) {}
	}

	id, err := s.ids.Load()
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	s.identity = id

	if id.Complete() && !opts.Lazy {
		s.logf("SESSION: Resuming session %s as player %s", id.SessionID, id.PlayerID)
		_ = s.Connect()
	}

	return s, nil
}

// Changes is signalled after every observable change. Signals coalesce;
// readers should re-read whatever they display.
func (s *Store) Changes() <-chan struct{} {
	return s.changes
}

func (s *Store) notify() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

func (s *Store) Identity() Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

// State returns the latest snapshot, or nil before the first one. The
// snapshot must not be modified.
func (s *Store) State() *protocol.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the current real-time error text, if any.
func (s *Store) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Store) ConnState() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connState
}

func (s *Store) IsConnected() bool {
	return s.ConnState() == Connected
}

// Loading reports whether a create or join request is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// CreateSession asks the engine for a new session hosted by this client.
// Identity is only replaced on success.
func (s *Store) CreateSession(ctx context.Context, req protocol.CreateSessionRequest) (protocol.CreateSessionResponse, error) {
	epoch := s.begin()
	defer s.end()

	resp, err := s.api.CreateSession(ctx, req)
	if err != nil {
		s.logf("SESSION: Create failed: %v", err)
		return resp, err
	}
	if resp.SessionID == "" || resp.PlayerID == "" {
		return resp, &client.RequestError{
			Detail: "Could not create session.",
			Err:    errors.New("response is missing session or player id"),
		}
	}

	id := Identity{
		SessionID:  resp.SessionID,
		PlayerID:   resp.PlayerID,
		PlayerName: req.HostName,
		IsHost:     true,
	}
	if !s.adopt(epoch, id) {
		return resp, ErrSuperseded
	}

	s.logf("SESSION: Created session %s as host %s", id.SessionID, id.PlayerID)

	return resp, nil
}

// JoinSession joins an existing session as a regular player.
func (s *Store) JoinSession(ctx context.Context, sessionID, playerName string) (protocol.JoinSessionResponse, error) {
	epoch := s.begin()
	defer s.end()

	resp, err := s.api.JoinSession(ctx, sessionID, playerName)
	if err != nil {
		s.logf("SESSION: Join of %s failed: %v", sessionID, err)
		return resp, err
	}
	if resp.PlayerID == "" {
		return resp, &client.RequestError{
			Detail: "Could not join session.",
			Err:    errors.New("response is missing player id"),
		}
	}

	id := Identity{
		SessionID:  sessionID,
		PlayerID:   resp.PlayerID,
		PlayerName: playerName,
	}
	if !s.adopt(epoch, id) {
		return resp, ErrSuperseded
	}

	s.logf("SESSION: Joined session %s as %s", id.SessionID, id.PlayerID)

	return resp, nil
}

func (s *Store) begin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading++
	return s.epoch
}

func (s *Store) end() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
	s.notify()
}

// adopt installs id if no other identity change happened since epoch. The
// previous connection is fully closed before the new one is opened.
func (s *Store) adopt(epoch uint64, id Identity) bool {
	s.mu.Lock()
	if s.closed || s.epoch != epoch {
		s.mu.Unlock()
		return false
	}
	old := s.detachLocked()
	s.epoch++
	s.identity = id
	s.state = nil
	s.err = ""
	s.mu.Unlock()

	old.stop(true)

	if !s.persist(epoch+1, func() error { return s.ids.Save(id) }) {
		return false
	}

	_ = s.Connect()
	s.notify()

	return true
}

// Connect opens the real-time connection for the current identity. It is
// a no-op while a connection is open, being opened, or being retried.
func (s *Store) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return ErrClosed
	case !s.identity.Complete():
		return ErrNoIdentity
	case s.conn != nil:
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &connection{
		gen:    s.gen,
		id:     s.identity,
		url:    s.api.WebSocketURL(s.identity.SessionID, s.identity.PlayerID),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.conn = c
	s.connState = Connecting

	go s.run(ctx, c)

	return nil
}

// Disconnect closes the connection if one is open or being opened. The
// identity is kept and no reconnection is attempted.
func (s *Store) Disconnect() {
	s.mu.Lock()
	c := s.detachLocked()
	s.mu.Unlock()

	if c != nil {
		c.stop(true)
		s.logf("SESSION: Disconnected from %s", c.id.SessionID)
		s.notify()
	}
}

// ClearSessionData forgets everything: connection, identity (also on
// disk), cached state and error.
func (s *Store) ClearSessionData() {
	s.mu.Lock()
	c := s.detachLocked()
	s.epoch++
	epoch := s.epoch
	s.identity = Identity{}
	s.state = nil
	s.err = ""
	s.mu.Unlock()

	c.stop(true)

	s.persist(epoch, s.ids.Clear)

	s.notify()
}

// persist runs write against the identity store unless the identity has
// changed again since epoch.
func (s *Store) persist(epoch uint64, write func() error) bool {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	current := s.epoch == epoch
	s.mu.Unlock()

	if !current {
		return false
	}

	if err := write(); err != nil {
		s.logf("SESSION: Could not persist identity: %v", err)
	}
	return true
}

// Close tears down the connection for shutdown. The persisted identity is
// kept so a later process can resume.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	c := s.detachLocked()
	s.mu.Unlock()

	c.stop(true)

	return nil
}

// Send transmits an action over the open connection. Without one the
// action is dropped and ErrNotConnected returned; nothing is queued.
func (s *Store) Send(a protocol.Action) error {
	s.mu.Lock()
	c := s.conn
	connected := s.connState == Connected
	s.mu.Unlock()

	if c == nil || !connected {
		s.logf("SESSION: Not connected, dropping %s action", a.Action)
		return ErrNotConnected
	}

	if err := c.write(a); err != nil {
		s.logf("SESSION: Sending %s action failed: %v", a.Action, err)
		return fmt.Errorf("send %s: %w", a.Action, err)
	}

	return nil
}

func (s *Store) detachLocked() *connection {
	s.gen++
	c := s.conn
	s.conn = nil
	s.connState = Disconnected
	return c
}

// currentLocked reports whether c still owns the store's connection slot.
func (s *Store) currentLocked(c *connection) bool {
	return s.conn == c && s.gen == c.gen
}
