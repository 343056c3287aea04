/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package restaurants

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/tablematch/protocol"
)

const (
	DefaultYelpURL    = "https://api.yelp.com/v3"
	DefaultCategories = "vegan"
	DefaultSortBy     = "best_match"
	DefaultTimeout    = 10 * time.Second

	// MaxRadius is the largest search radius Yelp accepts, in meters.
	MaxRadius   = 40000
	SearchLimit = 20
)

var sortOrders = []string{"best_match", "rating", "review_count", "distance"}

type YelpConfig struct {
	APIKey     string
	BaseURL    string
	Categories string
	HTTPClient *http.Client
	Logf       func(format string, args ...any)
}

// Yelp talks to the Yelp Fusion API.
type Yelp struct {
	apiKey     string
	baseURL    string
	categories string
	http       *http.Client
	logf       func(string, ...any)
}

func NewYelp(cfg YelpConfig) *Yelp {
	y := &Yelp{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		categories: cfg.Categories,
		http:       cfg.HTTPClient,
		logf:       cfg.Logf,
	}

	if y.baseURL == "" {
		y.baseURL = DefaultYelpURL
	}
	if y.categories == "" {
		y.categories = DefaultCategories
	}
	if y.http == nil {
		y.http = &http.Client{Timeout: DefaultTimeout}
	}
	if y.logf == nil {
		y.logf = func(string, ...any) {}
	}

	return y
}

// Search returns up to SearchLimit restaurants around a point. Restaurants
// rated below the requested minimum are dropped from the result.
func (y *Yelp) Search(ctx context.Context, req protocol.RestaurantsRequest) ([]protocol.Restaurant, error) {
	if y.apiKey == "" {
		return nil, missingKey("Yelp")
	}

	q, err := searchQuery(req, y.categories)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Businesses []protocol.Restaurant `json:"businesses"`
	}
	if err := y.get(ctx, "/businesses/search", q, &resp); err != nil {
		return nil, err
	}

	out := make([]protocol.Restaurant, 0, len(resp.Businesses))
	for _, b := range resp.Businesses {
		if req.MinRating != nil && b.Rating < *req.MinRating {
			continue
		}
		out = append(out, b)
	}

	y.logf("YELP: %d of %d results kept near %v,%v", len(out), len(resp.Businesses), req.Lat, req.Lng)

	return out, nil
}

func searchQuery(req protocol.RestaurantsRequest, categories string) (url.Values, error) {
	switch {
	case req.Lat < -90 || req.Lat > 90:
		return nil, badRequest(fmt.Sprintf("Latitude %v is out of range.", req.Lat))
	case req.Lng < -180 || req.Lng > 180:
		return nil, badRequest(fmt.Sprintf("Longitude %v is out of range.", req.Lng))
	case req.Radius < 0:
		return nil, badRequest("Radius must not be negative.")
	case req.MinRating != nil && (*req.MinRating < 0 || *req.MinRating > 5):
		return nil, badRequest("Minimum rating must be between 0 and 5.")
	}

	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = DefaultSortBy
	}
	if !slices.Contains(sortOrders, sortBy) {
		return nil, badRequest(fmt.Sprintf("Unknown sort order %q.", sortBy))
	}

	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(req.Lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(req.Lng, 'f', -1, 64))
	if req.Radius > 0 {
		q.Set("radius", strconv.Itoa(min(req.Radius, MaxRadius)))
	}
	q.Set("categories", categories)
	q.Set("limit", strconv.Itoa(SearchLimit))
	q.Set("sort_by", sortBy)

	if req.Price != "" {
		price, err := normalizePrice(req.Price)
		if err != nil {
			return nil, err
		}
		q.Set("price", price)
	}

	return q, nil
}

// normalizePrice accepts "1,2", "$$" style or mixed lists and returns the
// comma separated levels Yelp expects.
func normalizePrice(s string) (string, error) {
	var levels []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.Trim(part, "$") == "" {
			part = strconv.Itoa(len(part))
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 1 || n > 4 {
			return "", badRequest(fmt.Sprintf("Invalid price level %q.", part))
		}
		if !slices.Contains(levels, part) {
			levels = append(levels, part)
		}
	}
	slices.Sort(levels)
	return strings.Join(levels, ","), nil
}

// Details returns the expanded record for one restaurant. Reviews are best
// effort: a failure there still yields the business details.
func (y *Yelp) Details(ctx context.Context, id string) (protocol.RestaurantDetails, error) {
	var d protocol.RestaurantDetails

	if y.apiKey == "" {
		return d, missingKey("Yelp")
	}
	if id == "" {
		return d, badRequest("Restaurant id is required.")
	}

	path := "/businesses/" + url.PathEscape(id)
	if err := y.get(ctx, path, nil, &d); err != nil {
		return d, err
	}

	var reviews struct {
		Reviews []protocol.Review `json:"reviews"`
	}
	if err := y.get(ctx, path+"/reviews", nil, &reviews); err != nil {
		y.logf("YELP: Reviews for %s unavailable: %v", id, err)
	}

	d.Reviews = reviews.Reviews
	if d.Reviews == nil {
		d.Reviews = []protocol.Review{}
	}
	if d.Photos == nil {
		d.Photos = []string{}
		if d.ImageURL != "" {
			d.Photos = append(d.Photos, d.ImageURL)
		}
	}

	return d, nil
}

func (y *Yelp) get(ctx context.Context, path string, q url.Values, out any) error {
	u := y.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build yelp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+y.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := y.http.Do(req)
	if err != nil {
		return unavailable("Restaurant service unavailable.", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound("Restaurant not found.")
	case resp.StatusCode >= 500:
		return unavailable("Restaurant service unavailable.", upstreamError(resp))
	case resp.StatusCode >= 400:
		err := upstreamError(resp)
		return &Error{Status: resp.StatusCode, Msg: "Restaurant service rejected the request.", Err: err}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return unavailable("Restaurant service sent an invalid response.", err)
	}

	return nil
}

// upstreamError reads Yelp's {"error": {"code", "description"}} body.
func upstreamError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &body); err == nil && body.Error.Code != "" {
		return fmt.Errorf("yelp %d: %s: %s", resp.StatusCode, body.Error.Code, body.Error.Description)
	}

	return fmt.Errorf("yelp %d", resp.StatusCode)
}

func badRequest(msg string) error {
	return &Error{Status: http.StatusBadRequest, Msg: msg}
}
