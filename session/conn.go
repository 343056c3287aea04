/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Seednode/tablematch/protocol"
	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

var errFatal = errors.New("fatal session error")

// connection is one identity's real-time channel, including its retries.
// It is owned by the Store; gen ties it to the slot it was opened for.
type connection struct {
	gen    uint64
	id     Identity
	url    string
	cancel context.CancelFunc
	done   chan struct{}

	wmu sync.Mutex // serializes writers

	mu       sync.Mutex
	ws       *websocket.Conn
	shutdown bool
}

func (c *connection) attach(ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return false
	}
	c.ws = ws
	return true
}

func (c *connection) release() {
	c.mu.Lock()
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		_ = ws.Close()
	}
}

// stop cancels retries, closes the socket and, if wait is set, blocks
// until the connection goroutine has exited.
func (c *connection) stop(wait bool) {
	if c == nil {
		return
	}

	c.cancel()

	c.mu.Lock()
	c.shutdown = true
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = ws.Close()
	}

	if wait {
		<-c.done
	}
}

func (c *connection) write(v any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()

	if ws == nil {
		return ErrNotConnected
	}

	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))

	return ws.WriteJSON(v)
}

// run dials, reads until the socket drops, and retries with backoff until
// the connection is stopped, the policy gives up, or the server reports a
// fatal error.
func (s *Store) run(ctx context.Context, c *connection) {
	defer close(c.done)

	b := s.newBackoff()

	for {
		s.logf("SESSION: Connecting to %s", c.url)

		err := s.session(ctx, c, b)
		if errors.Is(err, errFatal) || ctx.Err() != nil {
			return
		}

		s.logf("SESSION: Connection to %s lost: %v", c.url, err)

		if !s.dropped(c) {
			return
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			s.logf("SESSION: Giving up on %s", c.url)
			s.giveUp(c)
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if !s.transition(c, Connecting) {
			return
		}
	}
}

// session runs one socket from dial to close.
func (s *Store) session(ctx context.Context, c *connection, b backoff.BackOff) error {
	ws, _, err := s.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return err
	}
	if !c.attach(ws) {
		_ = ws.Close()
		return ctx.Err()
	}
	defer c.release()

	if !s.transition(c, Connected) {
		return context.Canceled
	}
	b.Reset()

	s.logf("SESSION: Connected to %s", c.url)

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		if s.handle(c, data) {
			return errFatal
		}
	}
}

// handle applies one inbound frame and reports whether it was fatal.
func (s *Store) handle(c *connection, data []byte) bool {
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		s.logf("SESSION: %v", err)
		s.setErr(c, MessageInvalid)
		return false
	}

	switch msg.Type {
	case protocol.KindStateUpdate:
		st, err := msg.State()
		if err != nil {
			s.logf("SESSION: %v", err)
			s.setErr(c, MessageInvalid)
			return false
		}
		s.apply(c, st)

	case protocol.KindError:
		text := msg.Message
		if text == "" {
			text = MessageGeneric
		}
		s.logf("SESSION: Server error for %s: %s", c.id.SessionID, text)
		if IsFatal(text) {
			return s.fatal(c, text)
		}
		s.setErr(c, text)

	default:
		s.logf("SESSION: Ignoring %q message", msg.Type)
	}

	return false
}

// apply replaces the cached snapshot wholesale if c is still current.
func (s *Store) apply(c *connection, st *protocol.SessionState) bool {
	s.mu.Lock()
	if !s.currentLocked(c) {
		s.mu.Unlock()
		return false
	}
	s.state = st
	s.err = ""
	s.mu.Unlock()

	s.notify()

	return true
}

func (s *Store) setErr(c *connection, text string) bool {
	s.mu.Lock()
	if !s.currentLocked(c) {
		s.mu.Unlock()
		return false
	}
	s.err = text
	s.mu.Unlock()

	s.notify()

	return true
}

func (s *Store) transition(c *connection, to ConnState) bool {
	s.mu.Lock()
	if !s.currentLocked(c) {
		s.mu.Unlock()
		return false
	}
	s.connState = to
	s.mu.Unlock()

	s.notify()

	return true
}

// dropped records an unexpected transport loss.
func (s *Store) dropped(c *connection) bool {
	s.mu.Lock()
	if !s.currentLocked(c) {
		s.mu.Unlock()
		return false
	}
	s.connState = Disconnected
	s.err = MessageTransport
	s.mu.Unlock()

	s.notify()

	return true
}

// giveUp frees the slot so a later Connect starts over.
func (s *Store) giveUp(c *connection) {
	s.mu.Lock()
	if s.currentLocked(c) {
		s.detachLocked()
	}
	s.mu.Unlock()

	c.cancel()
	s.notify()
}

// fatal wipes identity and state. The error text is kept so views can
// say why they were sent back to the start.
func (s *Store) fatal(c *connection, text string) bool {
	s.mu.Lock()
	if !s.currentLocked(c) {
		s.mu.Unlock()
		return false
	}
	s.detachLocked()
	s.epoch++
	epoch := s.epoch
	s.identity = Identity{}
	s.state = nil
	s.err = text
	s.mu.Unlock()

	c.cancel()

	s.persist(epoch, s.ids.Clear)

	s.notify()

	return true
}
