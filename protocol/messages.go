/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Kinds of server-to-client messages.
const (
	KindStateUpdate = "state_update"
	KindError       = "error"
)

// ServerMessage is the envelope of every message pushed over /ws.
type ServerMessage struct {
	Type    string          `json:"type"`              // "state_update" or "error"
	Data    json.RawMessage `json:"data,omitempty"`    // state_update
	Message string          `json:"message,omitempty"` // error
}

var ErrMalformed = errors.New("malformed server message")

// DecodeServerMessage parses one real-time frame. A frame with a known
// type but an unusable payload is reported as ErrMalformed.
func DecodeServerMessage(b []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(b, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.Type == "" {
		return ServerMessage{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return msg, nil
}

// State decodes the snapshot carried by a state_update message.
func (m ServerMessage) State() (*SessionState, error) {
	if m.Type != KindStateUpdate {
		return nil, fmt.Errorf("%w: %q carries no state", ErrMalformed, m.Type)
	}
	if len(m.Data) == 0 || string(m.Data) == "null" {
		return nil, fmt.Errorf("%w: empty state", ErrMalformed)
	}
	var s SessionState
	if err := json.Unmarshal(m.Data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &s, nil
}

// NewStateUpdate builds the envelope a server sends for a snapshot.
func NewStateUpdate(s *SessionState) (ServerMessage, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return ServerMessage{}, err
	}
	return ServerMessage{Type: KindStateUpdate, Data: data}, nil
}

// NewError builds an error envelope.
func NewError(message string) ServerMessage {
	return ServerMessage{Type: KindError, Message: message}
}

// ActionKind names a client-to-server intent.
type ActionKind string

const (
	ActionSwipe        ActionKind = "swipe"
	ActionSetReady     ActionKind = "set_ready"
	ActionFinishEarly  ActionKind = "finish_early"
	ActionStartSession ActionKind = "start_session"
)

// Decision is a player's verdict on one restaurant.
type Decision string

const (
	Like      Decision = "like"
	Dislike   Decision = "dislike"
	Superlike Decision = "superlike"
)

func (d Decision) Valid() bool {
	switch d {
	case Like, Dislike, Superlike:
		return true
	}
	return false
}

// ParseDecision accepts the canonical names plus the short forms used by
// the terminal client.
func ParseDecision(s string) (Decision, error) {
	switch s {
	case "like", "l", "yes", "y":
		return Like, nil
	case "dislike", "d", "no", "n":
		return Dislike, nil
	case "superlike", "s", "super":
		return Superlike, nil
	}
	return "", fmt.Errorf("unknown decision %q", s)
}

// Action is a client-to-server message.
type Action struct {
	Action       ActionKind `json:"action"`
	RestaurantID string     `json:"restaurant_id,omitempty"` // swipe
	Decision     Decision   `json:"decision,omitempty"`      // swipe
	Ready        *bool      `json:"ready,omitempty"`         // set_ready
}

func SwipeAction(restaurantID string, d Decision) Action {
	return Action{Action: ActionSwipe, RestaurantID: restaurantID, Decision: d}
}

func SetReadyAction(ready bool) Action {
	return Action{Action: ActionSetReady, Ready: &ready}
}

func FinishEarlyAction() Action {
	return Action{Action: ActionFinishEarly}
}

func StartSessionAction() Action {
	return Action{Action: ActionStartSession}
}

func sortedPlayerIDs(players map[string]Player) []string {
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
