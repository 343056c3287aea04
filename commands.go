/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Seednode/tablematch/client"
	"github.com/Seednode/tablematch/protocol"
	"github.com/Seednode/tablematch/restaurants"
	"github.com/Seednode/tablematch/session"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

// clientEnv is what every client subcommand works with.
type clientEnv struct {
	api   *client.Client
	store *session.Store
	ids   *session.FileIdentityStore
}

func openClient(cfg *Config) (*clientEnv, error) {
	if err := cfg.validateClient(); err != nil {
		return nil, err
	}

	api, err := client.New(cfg.apiURL, nil)
	if err != nil {
		return nil, err
	}

	ids := session.NewFileIdentityStore(nil, cfg.stateFile)

	store, err := session.New(session.Options{
		Client:            api,
		Identities:        ids,
		ReconnectAttempts: cfg.reconnectAttempts,
		Logf:              cfg.logger(),
		Lazy:              true,
	})
	if err != nil {
		return nil, err
	}

	return &clientEnv{api: api, store: store, ids: ids}, nil
}

func newClientCmd(cfg *Config, use, short string, run func(ctx context.Context, env *clientEnv, args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openClient(cfg)
			if err != nil {
				return err
			}
			defer env.store.Close()

			return run(cmd.Context(), env, args)
		},
	}

	addClientFlags(cfg, cmd.Flags())

	return cmd
}

func newCreateCmd(cfg *Config) *cobra.Command {
	o := &cfg.create

	cmd := newClientCmd(cfg, "create", "Start a new session as its host", func(ctx context.Context, env *clientEnv, args []string) error {
		req, err := o.request()
		if err != nil {
			return err
		}

		where, err := env.api.Geocode(ctx, o.location)
		if err != nil {
			return fmt.Errorf("%s", client.Detail(err))
		}

		req.Lat, req.Lng = where.Lat, where.Lng
		req.LocationDescription = o.location
		if where.FullAddress != "" {
			req.LocationDescription = where.FullAddress
		}

		if err := req.Validate(); err != nil {
			return err
		}

		resp, err := env.store.CreateSession(ctx, req)
		if err != nil {
			return fmt.Errorf("%s", client.Detail(err))
		}

		fmt.Printf("Session %s created near %s.\n", resp.SessionID, req.LocationDescription)
		if resp.InviteURL != "" {
			fmt.Printf("Invite link: %s\n", resp.InviteURL)

			if o.qr != "" {
				if err := qrcode.WriteFile(resp.InviteURL, qrcode.Medium, qrSize, o.qr); err != nil {
					return fmt.Errorf("write qr code: %w", err)
				}
				fmt.Printf("Invite QR code saved to %s\n", o.qr)
			}
		}

		if !o.play {
			fmt.Printf("Run \"tablematch play\" to start swiping.\n")
			return nil
		}

		return play(ctx, cfg, env, os.Stdin, os.Stdout)
	})

	fs := cmd.Flags()

	fs.StringVarP(&o.name, "name", "n", "", "your display name (env: TABLEMATCH_NAME)")
	fs.StringVarP(&o.location, "location", "l", "", "where to search, e.g. a city or postal code (env: TABLEMATCH_LOCATION)")
	fs.IntVarP(&o.radius, "radius", "r", 5000, "search radius in meters (env: TABLEMATCH_RADIUS)")
	fs.StringVar(&o.price, "price", "", "comma-separated price levels to include, 1-4 (env: TABLEMATCH_PRICE)")
	fs.Float64Var(&o.minRating, "min-rating", 0, "minimum rating, 0 for any (env: TABLEMATCH_MIN_RATING)")
	fs.StringVar(&o.sortBy, "sort-by", restaurants.DefaultSortBy, "best_match, rating, review_count or distance (env: TABLEMATCH_SORT_BY)")
	fs.IntVar(&o.maxPlayers, "max-players", 4, "largest number of players allowed to join (env: TABLEMATCH_MAX_PLAYERS)")
	fs.Float64VarP(&o.threshold, "threshold", "t", 0.5, "share of players that must like a restaurant for a match (env: TABLEMATCH_THRESHOLD)")
	fs.StringVarP(&o.mode, "mode", "m", string(protocol.ModeFreeform), "freeform or turn-based (env: TABLEMATCH_MODE)")
	fs.StringVar(&o.qr, "qr", "", "also save the invite link as a QR code png at this path (env: TABLEMATCH_QR)")
	fs.BoolVar(&o.play, "play", false, "start swiping right away (env: TABLEMATCH_PLAY)")

	bindFlags(newViper(), fs)

	return cmd
}

func newJoinCmd(cfg *Config) *cobra.Command {
	o := &cfg.join

	cmd := newClientCmd(cfg, "join <session-id>", "Join an existing session", func(ctx context.Context, env *clientEnv, args []string) error {
		name := strings.TrimSpace(o.name)
		if name == "" {
			return errors.New("--name is required")
		}

		resp, err := env.store.JoinSession(ctx, args[0], name)
		if err != nil {
			return fmt.Errorf("%s", client.Detail(err))
		}

		fmt.Printf("Joined session %s as %s.\n", resp.SessionID, name)

		if !o.play {
			fmt.Printf("Run \"tablematch play\" to start swiping.\n")
			return nil
		}

		return play(ctx, cfg, env, os.Stdin, os.Stdout)
	})
	cmd.Args = cobra.ExactArgs(1)

	fs := cmd.Flags()

	fs.StringVarP(&o.name, "name", "n", "", "your display name (env: TABLEMATCH_NAME)")
	fs.BoolVar(&o.play, "play", false, "start swiping right away (env: TABLEMATCH_PLAY)")

	bindFlags(newViper(), fs)

	return cmd
}

func newPlayCmd(cfg *Config) *cobra.Command {
	cmd := newClientCmd(cfg, "play", "Resume the current session", func(ctx context.Context, env *clientEnv, args []string) error {
		if !env.store.Identity().Complete() {
			return errors.New("not in a session; run \"tablematch create\" or \"tablematch join\" first")
		}

		return play(ctx, cfg, env, os.Stdin, os.Stdout)
	})
	cmd.Args = cobra.ExactArgs(0)

	bindFlags(newViper(), cmd.Flags())

	return cmd
}

func newLeaveCmd(cfg *Config) *cobra.Command {
	cmd := newClientCmd(cfg, "leave", "Forget the current session", func(ctx context.Context, env *clientEnv, args []string) error {
		id := env.store.Identity()

		env.store.ClearSessionData()

		if id.Complete() {
			fmt.Printf("Left session %s.\n", id.SessionID)
		} else {
			fmt.Printf("Not in a session.\n")
		}

		return nil
	})
	cmd.Args = cobra.ExactArgs(0)

	bindFlags(newViper(), cmd.Flags())

	return cmd
}

func newLocationsCmd(cfg *Config) *cobra.Command {
	cmd := newClientCmd(cfg, "locations <query>", "Suggest search locations matching a query", func(ctx context.Context, env *clientEnv, args []string) error {
		list, err := env.api.Autocomplete(ctx, strings.Join(args, " "))
		if err != nil {
			return fmt.Errorf("%s", client.Detail(err))
		}

		return printSuggestions(os.Stdout, list)
	})
	cmd.Args = cobra.MinimumNArgs(1)

	bindFlags(newViper(), cmd.Flags())

	return cmd
}

func printSuggestions(w io.Writer, list []string) error {
	if len(list) == 0 {
		_, err := fmt.Fprintln(w, "No matching locations.")
		return err
	}
	for _, s := range list {
		if _, err := fmt.Fprintln(w, s); err != nil {
			return err
		}
	}
	return nil
}
