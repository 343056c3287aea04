/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package client issues the one-shot REST requests of the session engine
// and the restaurant gateway.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/tablematch/protocol"
	"github.com/google/uuid"
)

const (
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader correlates a request with gateway logs.
	RequestIDHeader = "X-Request-ID"

	maxErrorBody = 64 << 10
)

// RequestError is a request-level failure. Detail is the server's error
// text when it sent one, else a generic fallback.
type RequestError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *RequestError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Detail, e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NotFound reports whether the server answered 404.
func (e *RequestError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Client talks to a tablematch-compatible HTTP API.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the API rooted at baseURL. A nil httpClient
// gets a default one with DefaultTimeout.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api url must be http or https, got %q", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{base: u, http: httpClient}, nil
}

// BaseURL returns a copy of the API root.
func (c *Client) BaseURL() *url.URL {
	u := *c.base
	return &u
}

// WebSocketURL returns the real-time endpoint for an identity pair.
func (c *Client) WebSocketURL(sessionID, playerID string) string {
	u := c.BaseURL()
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return u.JoinPath("ws", url.PathEscape(sessionID), url.PathEscape(playerID)).String()
}

func (c *Client) CreateSession(ctx context.Context, req protocol.CreateSessionRequest) (protocol.CreateSessionResponse, error) {
	var resp protocol.CreateSessionResponse
	err := c.do(ctx, http.MethodPost, "/sessions/create", nil, req, &resp, "Could not create session.")
	return resp, err
}

func (c *Client) JoinSession(ctx context.Context, sessionID, playerName string) (protocol.JoinSessionResponse, error) {
	var resp protocol.JoinSessionResponse
	path := "/sessions/" + url.PathEscape(sessionID) + "/join"
	err := c.do(ctx, http.MethodPost, path, nil, protocol.JoinSessionRequest{PlayerName: playerName}, &resp, "Could not join session.")
	if err == nil && resp.SessionID == "" {
		resp.SessionID = sessionID
	}
	return resp, err
}

func (c *Client) Geocode(ctx context.Context, location string) (protocol.GeocodeResponse, error) {
	var resp protocol.GeocodeResponse
	err := c.do(ctx, http.MethodPost, "/geocode", nil, protocol.GeocodeRequest{Location: location}, &resp, "Error geocoding location")
	return resp, err
}

func (c *Client) Autocomplete(ctx context.Context, query string) ([]string, error) {
	var resp protocol.AutocompleteResponse
	q := url.Values{"q": {query}}
	if err := c.do(ctx, http.MethodGet, "/autocomplete_location", q, nil, &resp, "Error fetching locations"); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(resp.Suggestions))
	for _, s := range resp.Suggestions {
		if s != "" {
			out = append(out, string(s))
		}
	}
	return out, nil
}

func (c *Client) Restaurants(ctx context.Context, req protocol.RestaurantsRequest) ([]protocol.Restaurant, error) {
	var resp []protocol.Restaurant
	err := c.do(ctx, http.MethodPost, "/restaurants", nil, req, &resp, "Error fetching restaurants")
	return resp, err
}

func (c *Client) RestaurantDetails(ctx context.Context, id string) (protocol.RestaurantDetails, error) {
	var resp protocol.RestaurantDetails
	err := c.do(ctx, http.MethodGet, "/restaurant-details/"+url.PathEscape(id), nil, nil, &resp, "Error fetching restaurant details")
	return resp, err
}

// do performs one request. path is already escaped; ids in it go through
// url.PathEscape.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, fallback string) error {
	u := c.BaseURL().JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &RequestError{Detail: fallback, Err: err}
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return &RequestError{Detail: fallback, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Detail: fallback, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			StatusCode: resp.StatusCode,
			Detail:     detail(resp.Body, fallback),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Detail: fallback, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func detail(r io.Reader, fallback string) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return fallback
	}

	var eb protocol.ErrorBody
	if err := json.Unmarshal(b, &eb); err == nil && eb.Detail != "" {
		return eb.Detail
	}

	// FastAPI validation errors carry a list under "detail".
	var list struct {
		Detail []struct {
			Msg string `json:"msg"`
		} `json:"detail"`
	}
	if err := json.Unmarshal(b, &list); err == nil && len(list.Detail) > 0 && list.Detail[0].Msg != "" {
		return list.Detail[0].Msg
	}

	return fallback
}

// Detail extracts the human-readable message from any error returned by
// this package.
func Detail(err error) string {
	var re *RequestError
	if errors.As(err, &re) {
		return re.Detail
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
