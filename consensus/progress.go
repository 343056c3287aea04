/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package consensus

import (
	"sort"

	"github.com/Seednode/tablematch/protocol"
)

// PlayerProgress is how far one player has swiped.
type PlayerProgress struct {
	ID       string // roster key
	Player   protocol.Player
	Swiped   int
	Total    int
	Finished bool
}

// Progress lists every player's swipe progress ordered by name, then id.
func Progress(s *protocol.SessionState) []PlayerProgress {
	if s == nil {
		return nil
	}

	total := len(s.Restaurants)
	out := make([]PlayerProgress, 0, len(s.Players))
	for id, p := range s.Players {
		swiped := p.CurrentIndex
		if swiped > total {
			swiped = total
		}
		out = append(out, PlayerProgress{
			ID:       id,
			Player:   p,
			Swiped:   swiped,
			Total:    total,
			Finished: s.Finished(id),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Player.Name != out[j].Player.Name {
			return out[i].Player.Name < out[j].Player.Name
		}
		return out[i].ID < out[j].ID
	})

	return out
}
