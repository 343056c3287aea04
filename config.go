/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Seednode/tablematch/protocol"
	"github.com/Seednode/tablematch/restaurants"
	"github.com/Seednode/tablematch/session"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TABLEMATCH"

// envAliases lists extra environment variables honoured for a flag, in
// addition to the prefixed one.
var envAliases = map[string][]string{
	"yelp-api-key":        {"YELP_API_KEY"},
	"google-maps-api-key": {"GOOGLE_MAPS_API_KEY"},
}

type Config struct {
	bind             string
	categories       string
	googleMapsAPIKey string
	inviteBase       string
	port             int
	prefix           string
	profile          bool
	sessionServer    string
	tlsCert          string
	tlsKey           string
	upstreamTimeout  time.Duration
	verbose          bool
	version          bool
	yelpAPIKey       string

	// provider endpoints, overridden in tests
	yelpURL       string
	googleMapsURL string

	apiURL            string
	stateFile         string
	reconnectAttempts uint64

	create createOptions
	join   joinOptions
}

type createOptions struct {
	name       string
	location   string
	radius     int
	price      string
	minRating  float64
	sortBy     string
	maxPlayers int
	threshold  float64
	mode       string
	qr         string
	play       bool
}

type joinOptions struct {
	name string
	play bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.upstreamTimeout <= 0 {
		return fmt.Errorf("invalid upstream timeout (must be positive): %s", c.upstreamTimeout)
	}
	if c.inviteBase != "" {
		u, err := url.Parse(c.inviteBase)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid invite base (must be an http or https url): %q", c.inviteBase)
		}
	}
	if c.sessionServer != "" {
		u, err := url.Parse(c.sessionServer)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid session server (must be an http or https url): %q", c.sessionServer)
		}
	}
	return nil
}

func (c *Config) validateClient() error {
	u, err := url.Parse(c.apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url (must be an http or https url): %q", c.apiURL)
	}
	if c.stateFile == "" {
		return errors.New("--state-file must not be empty")
	}
	return nil
}

func (o *createOptions) request() (protocol.CreateSessionRequest, error) {
	req := protocol.CreateSessionRequest{
		HostName:           strings.TrimSpace(o.name),
		RadiusM:            o.radius,
		Price:              o.price,
		SortBy:             o.sortBy,
		MaxPlayers:         o.maxPlayers,
		ConsensusThreshold: o.threshold,
		Mode:               protocol.Mode(o.mode),
	}

	if o.radius < 1 || o.radius > restaurants.MaxRadius {
		return req, fmt.Errorf("invalid radius (must be between 1-%d meters): %d", restaurants.MaxRadius, o.radius)
	}
	if o.minRating < 0 || o.minRating > 5 {
		return req, fmt.Errorf("invalid minimum rating (must be between 0-5): %v", o.minRating)
	}
	if o.minRating > 0 {
		rating := o.minRating
		req.MinRating = &rating
	}
	return req, nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) logger() func(string, ...any) {
	return func(format string, args ...any) {
		logf(c, format, args...)
	}
}

func defaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".tablematch.json"
	}
	return filepath.Join(dir, "tablematch", "identity.json")
}

// bindFlags lets every flag in fs be set from the environment, with
// explicit flags taking precedence.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if aliases, ok := envAliases[f.Name]; ok {
			prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			_ = v.BindEnv(append([]string{f.Name, prefixed}, aliases...)...)
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

func newCmd(cfg *Config) *cobra.Command {
	v := newViper()

	cmd := &cobra.Command{
		Use:           "tablematch",
		Short:         "Decide where to eat together: swipe on nearby restaurants and see what everyone likes.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: TABLEMATCH_BIND)")
	fs.StringVar(&cfg.categories, "categories", restaurants.DefaultCategories, "comma-separated Yelp categories to search (env: TABLEMATCH_CATEGORIES)")
	fs.StringVar(&cfg.googleMapsAPIKey, "google-maps-api-key", "", "Google Maps API key for geocoding and suggestions (env: TABLEMATCH_GOOGLE_MAPS_API_KEY, GOOGLE_MAPS_API_KEY)")
	fs.StringVar(&cfg.inviteBase, "invite-base", "", "base url of the web front end, used for QR codes requested without ?url= (env: TABLEMATCH_INVITE_BASE)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: TABLEMATCH_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: TABLEMATCH_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: TABLEMATCH_PROFILE)")
	fs.StringVar(&cfg.sessionServer, "session-server", "", "session engine to relay /sessions and /ws requests to (env: TABLEMATCH_SESSION_SERVER)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: TABLEMATCH_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: TABLEMATCH_TLS_KEY)")
	fs.DurationVar(&cfg.upstreamTimeout, "upstream-timeout", restaurants.DefaultTimeout, "timeout for requests to restaurant and map providers (env: TABLEMATCH_UPSTREAM_TIMEOUT)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TABLEMATCH_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: TABLEMATCH_VERSION)")
	fs.StringVar(&cfg.yelpAPIKey, "yelp-api-key", "", "Yelp Fusion API key for restaurant search (env: TABLEMATCH_YELP_API_KEY, YELP_API_KEY)")

	bindFlags(v, fs)

	cmd.AddCommand(
		newCreateCmd(cfg),
		newJoinCmd(cfg),
		newPlayCmd(cfg),
		newLeaveCmd(cfg),
		newLocationsCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("tablematch v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}

// addClientFlags registers the flags shared by every client subcommand.
func addClientFlags(cfg *Config, fs *pflag.FlagSet) {
	fs.StringVarP(&cfg.apiURL, "api-url", "a", "http://localhost:8080", "base url of the tablematch api (env: TABLEMATCH_API_URL)")
	fs.Uint64Var(&cfg.reconnectAttempts, "reconnect-attempts", session.DefaultReconnectAttempts, "times to retry a dropped session connection (env: TABLEMATCH_RECONNECT_ATTEMPTS)")
	fs.StringVar(&cfg.stateFile, "state-file", defaultStateFile(), "where to remember the current session (env: TABLEMATCH_STATE_FILE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: TABLEMATCH_VERBOSE)")
}
