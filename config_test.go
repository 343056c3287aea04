/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/Seednode/tablematch/protocol"
	"github.com/spf13/cobra"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		edit    func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, "tls-key"},
		{"key without cert", func(c *Config) { c.tlsKey = "key.pem" }, "tls-cert"},
		{"both tls files", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, ""},
		{"port zero", func(c *Config) { c.port = 0 }, "invalid port"},
		{"port too high", func(c *Config) { c.port = 70000 }, "invalid port"},
		{"no timeout", func(c *Config) { c.upstreamTimeout = 0 }, "upstream timeout"},
		{"session server", func(c *Config) { c.sessionServer = "http://engine:8000" }, ""},
		{"invite base", func(c *Config) { c.inviteBase = "https://eat.example.org" }, ""},
		{"relative invite base", func(c *Config) { c.inviteBase = "/app" }, "invite base"},
		{"session server without scheme", func(c *Config) { c.sessionServer = "engine:8000" }, "session server"},
		{"session server ws scheme", func(c *Config) { c.sessionServer = "ws://engine:8000" }, "session server"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.edit(cfg)

			err := cfg.validate()
			switch {
			case tt.wantErr == "" && err != nil:
				t.Errorf("validate() error = %v", err)
			case tt.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tt.wantErr)):
				t.Errorf("validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateClient(t *testing.T) {
	cfg := &Config{apiURL: "https://eat.example.com/api", stateFile: "/tmp/identity.json"}
	if err := cfg.validateClient(); err != nil {
		t.Fatalf("validateClient() error = %v", err)
	}

	cfg.apiURL = "localhost:8080"
	if err := cfg.validateClient(); err == nil {
		t.Errorf("api url without scheme accepted")
	}

	cfg.apiURL = "http://localhost:8080"
	cfg.stateFile = ""
	if err := cfg.validateClient(); err == nil {
		t.Errorf("empty state file accepted")
	}
}

func TestCreateOptionsRequest(t *testing.T) {
	o := createOptions{
		name:       "  Ann ",
		radius:     5000,
		price:      "1,2",
		minRating:  4,
		sortBy:     "rating",
		maxPlayers: 3,
		threshold:  0.5,
		mode:       "turn-based",
	}

	req, err := o.request()
	if err != nil {
		t.Fatalf("request() error = %v", err)
	}
	if req.HostName != "Ann" || req.RadiusM != 5000 || req.Price != "1,2" || req.SortBy != "rating" ||
		req.MaxPlayers != 3 || req.ConsensusThreshold != 0.5 || req.Mode != protocol.ModeTurnBased {
		t.Errorf("request() = %+v", req)
	}
	if req.MinRating == nil || *req.MinRating != 4 {
		t.Errorf("MinRating = %v, want 4", req.MinRating)
	}

	o.minRating = 0
	if req, _ := o.request(); req.MinRating != nil {
		t.Errorf("MinRating = %v, want nil for no minimum", *req.MinRating)
	}

	for _, bad := range []createOptions{
		{radius: 0},
		{radius: 40001},
		{radius: 1000, minRating: -1},
		{radius: 1000, minRating: 5.5},
	} {
		if _, err := bad.request(); err == nil {
			t.Errorf("request() accepted %+v", bad)
		}
	}
}

func subcommand(t *testing.T, root *cobra.Command, name string) *cobra.Command {
	t.Helper()

	for _, c := range root.Commands() {
		if c.Name() == name {
			return c
		}
	}
	t.Fatalf("no %q subcommand", name)
	return nil
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("TABLEMATCH_PORT", "9000")
	t.Setenv("TABLEMATCH_UPSTREAM_TIMEOUT", "3s")
	t.Setenv("TABLEMATCH_SESSION_SERVER", "http://engine:8000")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.port)
	}
	if cfg.upstreamTimeout != 3*time.Second {
		t.Errorf("upstream timeout = %s", cfg.upstreamTimeout)
	}
	if cfg.sessionServer != "http://engine:8000" {
		t.Errorf("session server = %q", cfg.sessionServer)
	}
}

func TestAPIKeyAliases(t *testing.T) {
	t.Setenv("YELP_API_KEY", "plain-yelp")
	t.Setenv("GOOGLE_MAPS_API_KEY", "plain-maps")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.yelpAPIKey != "plain-yelp" || cfg.googleMapsAPIKey != "plain-maps" {
		t.Errorf("keys = %q, %q", cfg.yelpAPIKey, cfg.googleMapsAPIKey)
	}

	t.Setenv("TABLEMATCH_YELP_API_KEY", "prefixed-yelp")

	cfg = &Config{}
	newCmd(cfg)

	if cfg.yelpAPIKey != "prefixed-yelp" {
		t.Errorf("yelp key = %q, want the prefixed variable to win", cfg.yelpAPIKey)
	}
}

func TestFlagsBeatEnvironment(t *testing.T) {
	t.Setenv("TABLEMATCH_PORT", "9000")

	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.Flags().Parse([]string{"--port", "7000"}); err != nil {
		t.Fatal(err)
	}
	if cfg.port != 7000 {
		t.Errorf("port = %d, want 7000", cfg.port)
	}
}

func TestSubcommandEnvironment(t *testing.T) {
	t.Setenv("TABLEMATCH_MAX_PLAYERS", "6")
	t.Setenv("TABLEMATCH_API_URL", "https://eat.example.com")
	t.Setenv("TABLEMATCH_NAME", "Ann")

	cfg := &Config{}
	root := newCmd(cfg)

	if cfg.create.maxPlayers != 6 {
		t.Errorf("create max players = %d, want 6", cfg.create.maxPlayers)
	}
	if cfg.apiURL != "https://eat.example.com" {
		t.Errorf("api url = %q", cfg.apiURL)
	}
	if cfg.create.name != "Ann" || cfg.join.name != "Ann" {
		t.Errorf("names = %q, %q", cfg.create.name, cfg.join.name)
	}

	for _, name := range []string{"create", "join", "play", "leave", "locations"} {
		if f := subcommand(t, root, name).Flags().Lookup("state-file"); f == nil {
			t.Errorf("%s has no --state-file flag", name)
		}
	}
}

func TestUnderscoreFlagNames(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)

	if err := cmd.Flags().Parse([]string{"--upstream_timeout", "4s"}); err != nil {
		t.Fatal(err)
	}
	if cfg.upstreamTimeout != 4*time.Second {
		t.Errorf("upstream timeout = %s", cfg.upstreamTimeout)
	}
}
