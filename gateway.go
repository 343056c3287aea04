/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Seednode/tablematch/client"
	"github.com/Seednode/tablematch/protocol"
	"github.com/google/uuid"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	maxBodySize = 1 << 20
	qrSize      = 320
)

// Locator resolves free-text places.
type Locator interface {
	Geocode(ctx context.Context, location string) (protocol.GeocodeResponse, error)
	Autocomplete(ctx context.Context, query string) ([]string, error)
}

// Searcher finds restaurants.
type Searcher interface {
	Search(ctx context.Context, req protocol.RestaurantsRequest) ([]protocol.Restaurant, error)
	Details(ctx context.Context, id string) (protocol.RestaurantDetails, error)
}

type suggestions struct {
	Suggestions []string `json:"suggestions"`
}

// requestID echoes the caller's request id, or assigns one.
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(client.RequestIDHeader)
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}
	w.Header().Set(client.RequestIDHeader, id)
	return id
}

// decodeBody reads a JSON body into v and returns the user-facing problem
// with it, if any.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) string {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return "Request body is required."
		}
		return "Invalid request body."
	}
	return ""
}

func serveGeocode(cfg *Config, loc Locator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()
		id := requestID(w, r)

		var req protocol.GeocodeRequest
		if problem := decodeBody(w, r, &req); problem != "" {
			_, _ = writeError(cfg, w, http.StatusUnprocessableEntity, problem)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.upstreamTimeout)
		defer cancel()

		resp, err := loc.Geocode(ctx, req.Location)
		if err != nil {
			logf(cfg, "GEOCODE: [%s] %q for %s failed: %v", id, req.Location, realIP(r), err)

			_, _ = writeProviderError(cfg, w, err)
			return
		}

		written, err := writeJSON(cfg, w, http.StatusOK, resp)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "GEOCODE: [%s] %q (%s) to %s in %s",
			id,
			req.Location,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveAutocomplete(cfg *Config, loc Locator, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()
		id := requestID(w, r)

		query := r.URL.Query().Get("q")

		ctx, cancel := context.WithTimeout(r.Context(), cfg.upstreamTimeout)
		defer cancel()

		list, err := loc.Autocomplete(ctx, query)
		if err != nil {
			logf(cfg, "SUGGEST: [%s] %q for %s failed: %v", id, query, realIP(r), err)

			_, _ = writeProviderError(cfg, w, err)
			return
		}
		if list == nil {
			list = []string{}
		}

		written, err := writeJSON(cfg, w, http.StatusOK, suggestions{Suggestions: list})
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SUGGEST: [%s] %d suggestions for %q (%s) to %s in %s",
			id,
			len(list),
			query,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveRestaurants(cfg *Config, s Searcher, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()
		id := requestID(w, r)

		var req protocol.RestaurantsRequest
		if problem := decodeBody(w, r, &req); problem != "" {
			_, _ = writeError(cfg, w, http.StatusUnprocessableEntity, problem)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), cfg.upstreamTimeout)
		defer cancel()

		list, err := s.Search(ctx, req)
		if err != nil {
			logf(cfg, "SEARCH: [%s] %v,%v for %s failed: %v", id, req.Lat, req.Lng, realIP(r), err)

			_, _ = writeProviderError(cfg, w, err)
			return
		}
		if list == nil {
			list = []protocol.Restaurant{}
		}

		written, err := writeJSON(cfg, w, http.StatusOK, list)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SEARCH: [%s] %d restaurants near %v,%v (%s) to %s in %s",
			id,
			len(list),
			req.Lat,
			req.Lng,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveRestaurantDetails(cfg *Config, s Searcher, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()
		id := requestID(w, r)

		restaurantID := p.ByName("id")

		ctx, cancel := context.WithTimeout(r.Context(), cfg.upstreamTimeout)
		defer cancel()

		d, err := s.Details(ctx, restaurantID)
		if err != nil {
			logf(cfg, "DETAILS: [%s] %s for %s failed: %v", id, restaurantID, realIP(r), err)

			_, _ = writeProviderError(cfg, w, err)
			return
		}

		written, err := writeJSON(cfg, w, http.StatusOK, d)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "DETAILS: [%s] %s (%s) to %s in %s",
			id,
			restaurantID,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// inviteURL picks the link a QR code points at: an explicit absolute
// ?url= wins, otherwise the join page under --invite-base.
func inviteURL(cfg *Config, r *http.Request, sessionID string) (string, bool) {
	if raw := r.URL.Query().Get("url"); raw != "" {
		if u, ok := absoluteURL(raw); ok {
			return u.String(), true
		}
	}

	base, ok := absoluteURL(cfg.inviteBase)
	if !ok {
		return "", false
	}

	u := base.JoinPath("join")
	u.RawQuery = url.Values{"session": {sessionID}}.Encode()
	return u.String(), true
}

func absoluteURL(raw string) (*url.URL, bool) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

func serveQR(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		startTime := time.Now()

		sessionID := p.ByName("session")
		target, ok := inviteURL(cfg, r, sessionID)
		if !ok {
			_, _ = writeError(cfg, w, http.StatusBadRequest, "An absolute invite url is required.")
			return
		}

		png, err := qrcode.Encode(target, qrcode.Medium, qrSize)
		if err != nil {
			_, _ = writeError(cfg, w, http.StatusInternalServerError, "QR generation failed.")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "QR: %s (%s) to %s in %s",
			target,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
