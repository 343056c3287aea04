/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/tablematch/client"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const relaySendBuffer = 16

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type frame struct {
	kind int
	data []byte
}

// relayClient joins one player's socket to the session engine's socket for
// the same identity.
type relayClient struct {
	conn      *websocket.Conn
	upstream  *websocket.Conn
	send      chan frame
	done      chan struct{}
	sessionID string
	playerID  string
}

// readPump forwards player frames to the engine.
func (c *relayClient) readPump() {
	defer func() {
		close(c.done)
		_ = c.upstream.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.upstream.Close()
	}()

	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if err := c.upstream.WriteMessage(kind, data); err != nil {
			return
		}
	}
}

// upstreamPump queues engine frames for the player.
func (c *relayClient) upstreamPump() {
	defer close(c.send)

	for {
		kind, data, err := c.upstream.ReadMessage()
		if err != nil {
			return
		}
		select {
		case c.send <- frame{kind: kind, data: data}:
		case <-c.done:
			return
		}
	}
}

// writePump delivers queued frames to the player.
func (c *relayClient) writePump() {
	defer c.conn.Close()

	for f := range c.send {
		if err := c.conn.WriteMessage(f.kind, f.data); err != nil {
			return
		}
	}

	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
}

func remoteHost(r *http.Request) string {
	addr := realIP(r)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.Trim(addr, "[]")
}

func upstreamSocketURL(target *url.URL, sessionID, playerID string) string {
	u := *target
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath("ws", url.PathEscape(sessionID), url.PathEscape(playerID)).String()
}

func serveRelaySocket(cfg *Config, target *url.URL, dialer *websocket.Dialer) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		sessionID, playerID := p.ByName("session"), p.ByName("player")
		id := requestID(w, r)

		hdr := http.Header{}
		hdr.Set(client.RequestIDHeader, id)
		hdr.Set("X-Forwarded-For", remoteHost(r))

		up, resp, err := dialer.DialContext(r.Context(), upstreamSocketURL(target, sessionID, playerID), hdr)
		if err != nil {
			logf(cfg, "RELAY: [%s] Dial for %s/%s failed: %v", id, sessionID, playerID, err)

			status := http.StatusBadGateway
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				status = http.StatusNotFound
			}
			_, _ = writeError(cfg, w, status, "Session server unavailable.")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			_ = up.Close()
			logf(cfg, "RELAY: [%s] Upgrade for %s failed: %v", id, realIP(r), err)
			return
		}

		c := &relayClient{
			conn:      conn,
			upstream:  up,
			send:      make(chan frame, relaySendBuffer),
			done:      make(chan struct{}),
			sessionID: sessionID,
			playerID:  playerID,
		}

		logf(cfg, "RELAY: [%s] Player %s joined session %s from %s", id, playerID, sessionID, realIP(r))

		go c.upstreamPump()
		go c.writePump()
		c.readPump()

		logf(cfg, "RELAY: [%s] Player %s left session %s", id, playerID, sessionID)
	}
}

func newSessionProxy(cfg *Config, target *url.URL) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Path = strings.TrimPrefix(pr.In.URL.Path, cfg.prefix)
			pr.Out.URL.RawPath = ""
			pr.SetURL(target)
			pr.SetXForwarded()
		},
		ModifyResponse: func(resp *http.Response) error {
			resp.Header.Set("Access-Control-Allow-Origin", "*")
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logf(cfg, "RELAY: %s %s failed: %v", r.Method, r.URL.Path, err)

			_, _ = writeError(cfg, w, http.StatusBadGateway, "Session server unavailable.")
		},
	}
}

// registerRelay forwards the session engine's REST and real-time routes to
// --session-server.
func registerRelay(cfg *Config, mux *httprouter.Router) error {
	target, err := url.Parse(strings.TrimSuffix(cfg.sessionServer, "/"))
	if err != nil {
		return fmt.Errorf("parse session server: %w", err)
	}

	proxy := newSessionProxy(cfg, target)

	mux.Handler(http.MethodPost, cfg.prefix+"/sessions/*path", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID(w, r)
		r.Header.Set(client.RequestIDHeader, w.Header().Get(client.RequestIDHeader))

		logf(cfg, "RELAY: %s %s for %s", r.Method, r.URL.Path, realIP(r))

		proxy.ServeHTTP(w, r)
	}))

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.upstreamTimeout,
	}

	mux.GET(cfg.prefix+"/ws/:session/:player", serveRelaySocket(cfg, target, dialer))

	logf(cfg, "RELAY: Forwarding sessions to %s", target)

	return nil
}
