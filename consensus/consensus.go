/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package consensus derives session-wide matches from the raw vote ledger.
package consensus

import (
	"slices"

	"github.com/Seednode/tablematch/protocol"
)

// Match is a restaurant that reached the consensus threshold, with the
// metadata a results view needs.
type Match struct {
	Restaurant              protocol.Restaurant
	LikedBy                 []string // player names
	SuperlikedBy            []string // player names
	AllLikers               []protocol.Player
	LikedByCurrentUser      bool
	SuperlikedByCurrentUser bool
}

// Compute returns the restaurants whose share of unique likers reaches
// threshold, strongest first. A restaurant qualifies iff players is
// non-empty and |likes ∪ superlikes| / |players| >= threshold.
//
// Output order depends only on the restaurant order and the vote counts,
// never on map iteration.
func Compute(restaurants []protocol.Restaurant, matches map[string]protocol.Votes, players map[string]protocol.Player, threshold float64, viewerID string) []Match {
	out := []Match{}
	if len(players) == 0 || len(matches) == 0 {
		return out
	}

	total := float64(len(players))
	seen := make(map[string]bool, len(restaurants))

	for _, r := range restaurants {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true

		votes, ok := matches[r.ID]
		if !ok {
			continue
		}

		likers := union(votes.Likes, votes.Superlikes)
		if float64(len(likers))/total < threshold {
			continue
		}

		m := Match{
			Restaurant:   r,
			LikedBy:      names(dedupe(votes.Likes), players),
			SuperlikedBy: names(dedupe(votes.Superlikes), players),
			AllLikers:    make([]protocol.Player, 0, len(likers)),
		}
		for _, id := range likers {
			if p, ok := players[id]; ok {
				m.AllLikers = append(m.AllLikers, p)
			}
		}
		m.LikedByCurrentUser = slices.Contains(votes.Likes, viewerID)
		m.SuperlikedByCurrentUser = slices.Contains(votes.Superlikes, viewerID)

		out = append(out, m)
	}

	slices.SortStableFunc(out, func(a, b Match) int {
		if d := len(b.SuperlikedBy) - len(a.SuperlikedBy); d != 0 {
			return d
		}
		return len(b.LikedBy) - len(a.LikedBy)
	})

	return out
}

// FromState runs Compute over a snapshot.
func FromState(s *protocol.SessionState, viewerID string) []Match {
	if s == nil {
		return []Match{}
	}
	return Compute(s.Restaurants, s.Matches, s.Players, s.ConsensusThreshold, viewerID)
}

// dedupe keeps the first occurrence of every id.
func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func union(a, b []string) []string {
	return dedupe(append(slices.Clone(a), b...))
}

func names(ids []string, players map[string]protocol.Player) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := players[id]; ok {
			out = append(out, p.Name)
		}
	}
	return out
}
