/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package protocol holds the wire model shared by the session engine, the
// restaurant gateway and the client: session snapshots, the vote ledger,
// real-time messages and REST bodies.
package protocol

// Status is the lifecycle stage of a session as reported by the server.
type Status string

const (
	StatusWaitingForPlayers   Status = "waiting_for_players"
	StatusActive              Status = "active"
	StatusSomePlayersFinished Status = "some_players_finished"
	StatusCompleted           Status = "completed"
	StatusErrorFetching       Status = "error_fetching_restaurants"
)

// Terminal reports whether no further transitions are expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusErrorFetching
}

// Mode controls whether players swipe concurrently or one at a time.
type Mode string

const (
	ModeFreeform  Mode = "freeform"
	ModeTurnBased Mode = "turn-based"
)

// Player is one participant in the roster.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Ready        bool   `json:"ready"`
	Connected    bool   `json:"connected"`
	CurrentIndex int    `json:"current_index"` // restaurants swiped so far
}

// Votes is the append-only ledger entry for one restaurant.
type Votes struct {
	Likes      []string `json:"likes"`
	Superlikes []string `json:"superlikes"`
}

// SessionState is a full snapshot pushed by the server. Clients treat it
// as read-only; a new snapshot replaces the old one wholesale.
type SessionState struct {
	ID                  string            `json:"id"`
	Status              Status            `json:"status"`
	Players             map[string]Player `json:"players"`
	Restaurants         []Restaurant      `json:"restaurants"`
	Matches             map[string]Votes  `json:"matches"`
	ConsensusThreshold  float64           `json:"consensus_threshold"`
	Mode                Mode              `json:"mode"`
	CurrentTurnPlayerID string            `json:"current_turn_player_id,omitempty"`
	HostID              string            `json:"host_id"`
	MaxPlayers          int               `json:"max_players"`
	InviteURL           string            `json:"invite_url"`
	FinishedPlayers     []string          `json:"finished_players,omitempty"`
}

// Finished reports whether the player has swiped every restaurant or has
// signalled finish_early.
func (s *SessionState) Finished(playerID string) bool {
	if s == nil {
		return false
	}
	for _, id := range s.FinishedPlayers {
		if id == playerID {
			return true
		}
	}
	p, ok := s.Players[playerID]
	if !ok {
		return false
	}
	return p.CurrentIndex >= len(s.Restaurants)
}

// CurrentRestaurant returns the next restaurant the player has to swipe.
func (s *SessionState) CurrentRestaurant(playerID string) (Restaurant, bool) {
	if s == nil {
		return Restaurant{}, false
	}
	p, ok := s.Players[playerID]
	if !ok || p.CurrentIndex < 0 || p.CurrentIndex >= len(s.Restaurants) {
		return Restaurant{}, false
	}
	return s.Restaurants[p.CurrentIndex], true
}

// IsTurn reports whether the player may swipe now. It is a display hint;
// the server decides.
func (s *SessionState) IsTurn(playerID string) bool {
	if s == nil {
		return false
	}
	if s.Mode != ModeTurnBased {
		return true
	}
	return s.CurrentTurnPlayerID == playerID
}

// AllReady reports whether the roster is non-empty and every player has
// marked themselves ready.
func (s *SessionState) AllReady() bool {
	if s == nil || len(s.Players) == 0 {
		return false
	}
	for _, p := range s.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// Unfinished returns the names of players other than exclude who are still
// swiping, sorted by player id.
func (s *SessionState) Unfinished(exclude string) []string {
	if s == nil {
		return nil
	}
	ids := sortedPlayerIDs(s.Players)
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == exclude || s.Finished(id) {
			continue
		}
		names = append(names, s.Players[id].Name)
	}
	return names
}
