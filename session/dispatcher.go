/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package session

import (
	"errors"
	"fmt"

	"github.com/Seednode/tablematch/protocol"
)

// Sender is anything that can put an action on the wire.
type Sender interface {
	Send(protocol.Action) error
}

// Dispatcher turns user intents into canonical actions. It checks shape
// only; whether an action is legal right now is the server's call.
type Dispatcher struct {
	sender Sender
}

func NewDispatcher(sender Sender) *Dispatcher {
	return &Dispatcher{sender: sender}
}

func (d *Dispatcher) Swipe(restaurantID string, decision protocol.Decision) error {
	if restaurantID == "" {
		return errors.New("swipe: restaurant id is required")
	}
	if !decision.Valid() {
		return fmt.Errorf("swipe %q: %w", decision, ErrInvalidDecision)
	}
	return d.sender.Send(protocol.SwipeAction(restaurantID, decision))
}

func (d *Dispatcher) SetReadyStatus(ready bool) error {
	return d.sender.Send(protocol.SetReadyAction(ready))
}

// FinishEarly is a single explicit signal; remaining restaurants are not
// swiped on the player's behalf.
func (d *Dispatcher) FinishEarly() error {
	return d.sender.Send(protocol.FinishEarlyAction())
}

func (d *Dispatcher) StartSession() error {
	return d.sender.Send(protocol.StartSessionAction())
}
