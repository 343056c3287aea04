/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package protocol

import (
	"encoding/json"
	"fmt"
)

// CreateSessionRequest is the body of POST /sessions/create.
type CreateSessionRequest struct {
	HostName            string   `json:"host_name"`
	LocationDescription string   `json:"location_description"`
	Lat                 float64  `json:"lat"`
	Lng                 float64  `json:"lng"`
	RadiusM             int      `json:"radius_m"`
	Price               string   `json:"price"`      // comma separated levels, "1,2,3,4"
	MinRating           *float64 `json:"min_rating"` // null means no minimum
	SortBy              string   `json:"sort_by"`
	MaxPlayers          int      `json:"max_players"`
	ConsensusThreshold  float64  `json:"consensus_threshold"`
	Mode                Mode     `json:"mode"`
}

// Validate checks the shape constraints the client can know about.
func (r CreateSessionRequest) Validate() error {
	switch {
	case r.HostName == "":
		return fmt.Errorf("host name is required")
	case r.LocationDescription == "":
		return fmt.Errorf("a geocoded location is required")
	case r.MaxPlayers < 1:
		return fmt.Errorf("max players must be at least 1, got %d", r.MaxPlayers)
	case r.ConsensusThreshold <= 0 || r.ConsensusThreshold > 1:
		return fmt.Errorf("consensus threshold must be in (0,1], got %v", r.ConsensusThreshold)
	case r.Mode != ModeFreeform && r.Mode != ModeTurnBased:
		return fmt.Errorf("unknown mode %q", r.Mode)
	}
	return nil
}

type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
	PlayerID  string `json:"player_id"`
	InviteURL string `json:"invite_url"`
}

type JoinSessionRequest struct {
	PlayerName string `json:"player_name"`
}

type JoinSessionResponse struct {
	SessionID string `json:"session_id,omitempty"`
	PlayerID  string `json:"player_id"`
}

// ErrorBody is the error payload of every REST endpoint.
type ErrorBody struct {
	Detail string `json:"detail"`
}

type GeocodeRequest struct {
	Location string `json:"location"`
}

type GeocodeResponse struct {
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	FullAddress string  `json:"full_address,omitempty"`
}

// Suggestion is one autocomplete entry. Servers send either a bare string
// or an object with a description.
type Suggestion string

func (s *Suggestion) UnmarshalJSON(b []byte) error {
	var plain string
	if err := json.Unmarshal(b, &plain); err == nil {
		*s = Suggestion(plain)
		return nil
	}
	var obj struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("suggestion is neither a string nor an object: %w", err)
	}
	*s = Suggestion(obj.Description)
	return nil
}

type AutocompleteResponse struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// RestaurantsRequest is the body of POST /restaurants.
type RestaurantsRequest struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	Radius    int      `json:"radius"`
	MinRating *float64 `json:"min_rating,omitempty"`
	Price     string   `json:"price,omitempty"`
	SortBy    string   `json:"sort_by,omitempty"`
}
