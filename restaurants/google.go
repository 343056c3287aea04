/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package restaurants

import (
	"context"
	"net/http"
	"strings"

	"github.com/Seednode/tablematch/protocol"
	"googlemaps.github.io/maps"
)

// MaxSuggestions bounds the autocomplete list.
const MaxSuggestions = 5

type GoogleConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
	Logf       func(format string, args ...any)
}

// Google resolves free-text locations with the Google Maps platform.
type Google struct {
	maps *maps.Client
	err  error
	logf func(string, ...any)
}

// NewGoogle never fails; a missing or rejected configuration is reported
// by every call instead, so the gateway can still serve other routes.
func NewGoogle(cfg GoogleConfig) *Google {
	g := &Google{logf: cfg.Logf}
	if g.logf == nil {
		g.logf = func(string, ...any) {}
	}

	if cfg.APIKey == "" {
		g.err = missingKey("Google Maps")
		return g
	}

	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, maps.WithHTTPClient(cfg.HTTPClient))
	}

	c, err := maps.NewClient(opts...)
	if err != nil {
		g.err = &Error{Status: http.StatusInternalServerError, Msg: "Google Maps client misconfigured.", Err: err}
		return g
	}
	g.maps = c

	return g
}

// Geocode returns the first match for a free-text location.
func (g *Google) Geocode(ctx context.Context, location string) (protocol.GeocodeResponse, error) {
	var out protocol.GeocodeResponse

	if g.err != nil {
		return out, g.err
	}

	location = strings.TrimSpace(location)
	if location == "" {
		return out, badRequest("Location is required.")
	}

	results, err := g.maps.Geocode(ctx, &maps.GeocodingRequest{Address: location})
	if err != nil {
		return out, unavailable("Geocoding service unavailable.", err)
	}
	if len(results) == 0 {
		return out, notFound("Location not found.")
	}

	out.Lat = results[0].Geometry.Location.Lat
	out.Lng = results[0].Geometry.Location.Lng
	out.FullAddress = results[0].FormattedAddress

	g.logf("GOOGLE: Geocoded %q to %v,%v", location, out.Lat, out.Lng)

	return out, nil
}

// Autocomplete suggests regions (cities, postal codes, countries) that
// match a partial query. A blank query yields no suggestions.
func (g *Google) Autocomplete(ctx context.Context, query string) ([]string, error) {
	if g.err != nil {
		return nil, g.err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return []string{}, nil
	}

	resp, err := g.maps.PlaceAutocomplete(ctx, &maps.PlaceAutocompleteRequest{
		Input: query,
		Types: maps.AutocompletePlaceTypeRegions,
	})
	if err != nil {
		return nil, unavailable("Location suggestions unavailable.", err)
	}

	out := make([]string, 0, min(len(resp.Predictions), MaxSuggestions))
	for _, p := range resp.Predictions {
		if p.Description == "" {
			continue
		}
		out = append(out, p.Description)
		if len(out) == MaxSuggestions {
			break
		}
	}

	return out, nil
}
