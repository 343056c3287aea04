/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Seednode/tablematch/client"
	"github.com/Seednode/tablematch/consensus"
	"github.com/Seednode/tablematch/protocol"
	"github.com/Seednode/tablematch/session"
)

type commandKind int

const (
	cmdSwipe commandKind = iota
	cmdReady
	cmdUnready
	cmdStart
	cmdFinish
	cmdMatches
	cmdInfo
	cmdStatus
	cmdReconnect
	cmdLeave
	cmdQuit
	cmdHelp
)

type command struct {
	kind     commandKind
	decision protocol.Decision
}

const helpText = `Commands:
  like (l), dislike (d), superlike (s)   swipe on the current restaurant
  info (i)                               details for the current restaurant
  ready, unready                         mark yourself (not) ready
  start                                  start swiping (host only)
  finish                                 stop swiping and wait for results
  matches (m)                            show restaurants everyone likes so far
  status                                 show the session again
  reconnect                              retry a lost connection
  leave                                  leave the session for good
  quit (q)                               exit, keeping your place in the session`

func parseCommand(line string) (command, error) {
	word := strings.ToLower(strings.TrimSpace(line))

	if d, err := protocol.ParseDecision(word); err == nil {
		return command{kind: cmdSwipe, decision: d}, nil
	}

	switch word {
	case "ready":
		return command{kind: cmdReady}, nil
	case "unready":
		return command{kind: cmdUnready}, nil
	case "start":
		return command{kind: cmdStart}, nil
	case "finish", "done":
		return command{kind: cmdFinish}, nil
	case "matches", "m":
		return command{kind: cmdMatches}, nil
	case "info", "i":
		return command{kind: cmdInfo}, nil
	case "status", "":
		return command{kind: cmdStatus}, nil
	case "reconnect":
		return command{kind: cmdReconnect}, nil
	case "leave":
		return command{kind: cmdLeave}, nil
	case "quit", "q", "exit":
		return command{kind: cmdQuit}, nil
	case "help", "h", "?":
		return command{kind: cmdHelp}, nil
	}

	return command{}, fmt.Errorf("unknown command %q, type \"help\" for a list", word)
}

// view is everything a screen is drawn from.
type view struct {
	identity session.Identity
	state    *protocol.SessionState
	err      string
	conn     session.ConnState
}

type game struct {
	api   *client.Client
	store *session.Store
	disp  *session.Dispatcher
	out   io.Writer

	last view
}

func play(ctx context.Context, cfg *Config, env *clientEnv, in io.Reader, out io.Writer) error {
	if err := env.store.Connect(); err != nil {
		return err
	}

	g := &game{
		api:   env.api,
		store: env.store,
		disp:  session.NewDispatcher(env.store),
		out:   out,
	}

	logf(cfg, "PLAY: Session %s as %s", env.store.Identity().SessionID, env.store.Identity().PlayerID)

	return g.run(ctx, in)
}

func (g *game) snapshot() view {
	return view{
		identity: g.store.Identity(),
		state:    g.store.State(),
		err:      g.store.Err(),
		conn:     g.store.ConnState(),
	}
}

func (g *game) run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	g.last = g.snapshot()
	render(g.out, g.last)

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-g.store.Changes():
			v := g.snapshot()
			if !v.identity.Complete() {
				if v.err != "" {
					return errors.New(v.err)
				}
				return errors.New("the session has ended")
			}
			if v != g.last {
				g.last = v
				render(g.out, v)
			}

		case line, ok := <-lines:
			if !ok {
				return nil
			}

			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Fprintln(g.out, err)
				continue
			}

			if g.exec(ctx, cmd) {
				return nil
			}
		}
	}
}

// exec runs one command and reports whether the loop should end.
func (g *game) exec(ctx context.Context, cmd command) bool {
	v := g.snapshot()
	st := v.state
	me := v.identity.PlayerID

	switch cmd.kind {
	case cmdSwipe:
		switch {
		case st == nil:
			g.say("Still waiting for the session.")
		case st.Status != protocol.StatusActive && st.Status != protocol.StatusSomePlayersFinished:
			g.say("Swiping hasn't started yet.")
		case !st.IsTurn(me):
			g.say("It's %s's turn.", st.Players[st.CurrentTurnPlayerID].Name)
		default:
			r, ok := st.CurrentRestaurant(me)
			if !ok {
				g.say("You have swiped on every restaurant.")
				break
			}
			g.sent(g.disp.Swipe(r.ID, cmd.decision))
		}

	case cmdReady:
		g.sent(g.disp.SetReadyStatus(true))

	case cmdUnready:
		g.sent(g.disp.SetReadyStatus(false))

	case cmdStart:
		if !v.identity.IsHost {
			g.say("Only the host can start the session.")
			break
		}
		g.sent(g.disp.StartSession())

	case cmdFinish:
		g.sent(g.disp.FinishEarly())

	case cmdMatches:
		if st == nil {
			g.say("Still waiting for the session.")
			break
		}
		renderMatches(g.out, consensus.FromState(st, me))

	case cmdInfo:
		r, ok := st.CurrentRestaurant(me)
		if !ok {
			g.say("No restaurant to show.")
			break
		}
		d, err := g.api.RestaurantDetails(ctx, r.ID)
		if err != nil {
			g.say("%s", client.Detail(err))
			break
		}
		renderDetails(g.out, d)

	case cmdStatus:
		g.last = v
		render(g.out, v)

	case cmdReconnect:
		if err := g.store.Connect(); err != nil {
			g.say("%v", err)
		}

	case cmdLeave:
		g.store.ClearSessionData()
		g.say("Left session %s.", v.identity.SessionID)
		return true

	case cmdQuit:
		g.say("Bye! Run \"tablematch play\" to come back.")
		return true

	case cmdHelp:
		g.say("%s", helpText)
	}

	return false
}

func (g *game) say(format string, args ...any) {
	fmt.Fprintf(g.out, format+"\n", args...)
}

// sent reports a failed send.
func (g *game) sent(err error) {
	switch {
	case err == nil:
	case errors.Is(err, session.ErrNotConnected):
		g.say("Not connected, nothing was sent. Type \"reconnect\" to try again.")
	default:
		g.say("%v", err)
	}
}

func render(w io.Writer, v view) {
	st := v.state

	fmt.Fprintf(w, "\nSession %s | %s", v.identity.SessionID, v.conn)
	if st != nil {
		fmt.Fprintf(w, " | %s | %s", st.Status, st.Mode)
	}
	fmt.Fprintln(w)

	if v.err != "" {
		fmt.Fprintf(w, "! %s\n", v.err)
	}

	if st == nil {
		fmt.Fprintln(w, "Waiting for the session...")
		return
	}

	me := v.identity.PlayerID

	switch st.Status {
	case protocol.StatusWaitingForPlayers:
		fmt.Fprintf(w, "Players (%d/%d):\n", len(st.Players), st.MaxPlayers)
		for _, p := range consensus.Progress(st) {
			state := "not ready"
			if p.Player.Ready {
				state = "ready"
			}
			fmt.Fprintf(w, "  %s%s - %s\n", p.Player.Name, tags(st, p.ID, me), state)
		}

		switch {
		case st.AllReady() && v.identity.IsHost:
			fmt.Fprintln(w, "Everyone is ready. Type \"start\" to begin.")
		case st.AllReady():
			fmt.Fprintln(w, "Everyone is ready. Waiting for the host to start.")
		default:
			fmt.Fprintln(w, "Type \"ready\" when you are.")
		}

	case protocol.StatusActive, protocol.StatusSomePlayersFinished:
		for _, p := range consensus.Progress(st) {
			done := ""
			if p.Finished {
				done = " done"
			}
			fmt.Fprintf(w, "  %s%s %d/%d%s\n", p.Player.Name, tags(st, p.ID, me), p.Swiped, p.Total, done)
		}

		if st.Finished(me) {
			if waiting := st.Unfinished(me); len(waiting) > 0 {
				fmt.Fprintf(w, "You're done. Still swiping: %s\n", strings.Join(waiting, ", "))
			} else {
				fmt.Fprintln(w, "You're done. Waiting for results...")
			}
			return
		}

		if r, ok := st.CurrentRestaurant(me); ok {
			renderCard(w, r, st.Players[me].CurrentIndex+1, len(st.Restaurants))
		}
		if st.IsTurn(me) {
			fmt.Fprintln(w, "like (l), dislike (d), superlike (s), info, finish")
		} else {
			fmt.Fprintf(w, "Waiting for %s's turn.\n", st.Players[st.CurrentTurnPlayerID].Name)
		}

	case protocol.StatusCompleted:
		fmt.Fprintln(w, "Results:")
		renderMatches(w, consensus.FromState(st, me))

	case protocol.StatusErrorFetching:
		fmt.Fprintln(w, "Could not fetch restaurants for this session. Type \"leave\" and start a new one.")

	default:
		fmt.Fprintf(w, "Unknown session status %q.\n", st.Status)
	}
}

func tags(st *protocol.SessionState, id, me string) string {
	var out []string
	if id == st.HostID {
		out = append(out, "host")
	}
	if id == me {
		out = append(out, "you")
	}
	if p := st.Players[id]; !p.Connected {
		out = append(out, "away")
	}
	if len(out) == 0 {
		return ""
	}
	return " (" + strings.Join(out, ", ") + ")"
}

func renderCard(w io.Writer, r protocol.Restaurant, n, total int) {
	fmt.Fprintf(w, "[%d/%d] %s  %.1f stars (%d reviews)", n, total, r.Name, r.Rating, r.ReviewCount)
	if r.Price != "" {
		fmt.Fprintf(w, "  %s", r.Price)
	}
	fmt.Fprintln(w)

	if addr := r.Address(); addr != "" {
		fmt.Fprintf(w, "  %s\n", addr)
	}
	if len(r.Categories) > 0 {
		titles := make([]string, 0, len(r.Categories))
		for _, c := range r.Categories {
			titles = append(titles, c.Title)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(titles, ", "))
	}
	if r.Distance > 0 {
		fmt.Fprintf(w, "  %.1f km away\n", r.Distance/1000)
	}
}

func renderMatches(w io.Writer, matches []consensus.Match) {
	if len(matches) == 0 {
		fmt.Fprintln(w, "No restaurant has reached the consensus threshold.")
		return
	}

	for i, m := range matches {
		fmt.Fprintf(w, "%d. %s (%.1f stars)", i+1, m.Restaurant.Name, m.Restaurant.Rating)
		if len(m.LikedBy) > 0 {
			fmt.Fprintf(w, " liked by %s", strings.Join(m.LikedBy, ", "))
		}
		if len(m.SuperlikedBy) > 0 {
			if len(m.LikedBy) > 0 {
				fmt.Fprint(w, ";")
			}
			fmt.Fprintf(w, " superliked by %s", strings.Join(m.SuperlikedBy, ", "))
		}
		switch {
		case m.SuperlikedByCurrentUser:
			fmt.Fprint(w, " [you superliked]")
		case m.LikedByCurrentUser:
			fmt.Fprint(w, " [you liked]")
		}
		fmt.Fprintln(w)
		if m.Restaurant.URL != "" {
			fmt.Fprintf(w, "   %s\n", m.Restaurant.URL)
		}
	}
}

var weekdays = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func renderDetails(w io.Writer, d protocol.RestaurantDetails) {
	fmt.Fprintf(w, "%s  %.1f stars (%d reviews)\n", d.Name, d.Rating, d.ReviewCount)
	if addr := d.Address(); addr != "" {
		fmt.Fprintf(w, "  %s\n", addr)
	}
	if d.DisplayPhone != "" {
		fmt.Fprintf(w, "  %s\n", d.DisplayPhone)
	}

	for _, h := range d.Hours {
		if h.IsOpenNow {
			fmt.Fprintln(w, "  Open now")
		}
		for _, o := range h.Open {
			if o.Day < 0 || o.Day >= len(weekdays) {
				continue
			}
			fmt.Fprintf(w, "  %s %s-%s\n", weekdays[o.Day], clock(o.Start), clock(o.End))
		}
	}

	for _, r := range d.Reviews {
		fmt.Fprintf(w, "  %.0f/5 %s: %s\n", r.Rating, r.User.Name, r.Text)
	}
	if len(d.Photos) > 0 {
		fmt.Fprintf(w, "  Photos: %s\n", strings.Join(d.Photos, " "))
	}
	if d.URL != "" {
		fmt.Fprintf(w, "  %s\n", d.URL)
	}
}

// clock turns Yelp's "1730" into "17:30".
func clock(hhmm string) string {
	if len(hhmm) != 4 {
		return hhmm
	}
	return hhmm[:2] + ":" + hhmm[2:]
}
