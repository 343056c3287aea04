/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/Seednode/tablematch/client"
	"github.com/Seednode/tablematch/protocol"
	"github.com/Seednode/tablematch/session"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in       string
		kind     commandKind
		decision protocol.Decision
	}{
		{"like", cmdSwipe, protocol.Like},
		{"Y", cmdSwipe, protocol.Like},
		{" l ", cmdSwipe, protocol.Like},
		{"no", cmdSwipe, protocol.Dislike},
		{"d", cmdSwipe, protocol.Dislike},
		{"super", cmdSwipe, protocol.Superlike},
		{"s", cmdSwipe, protocol.Superlike},
		{"ready", cmdReady, ""},
		{"unready", cmdUnready, ""},
		{"start", cmdStart, ""},
		{"done", cmdFinish, ""},
		{"finish", cmdFinish, ""},
		{"m", cmdMatches, ""},
		{"info", cmdInfo, ""},
		{"", cmdStatus, ""},
		{"reconnect", cmdReconnect, ""},
		{"leave", cmdLeave, ""},
		{"q", cmdQuit, ""},
		{"?", cmdHelp, ""},
	}

	for _, tt := range tests {
		got, err := parseCommand(tt.in)
		if err != nil {
			t.Errorf("parseCommand(%q) error = %v", tt.in, err)
			continue
		}
		if got.kind != tt.kind || got.decision != tt.decision {
			t.Errorf("parseCommand(%q) = %+v, want kind %d decision %q", tt.in, got, tt.kind, tt.decision)
		}
	}

	if _, err := parseCommand("maybe"); err == nil || !strings.Contains(err.Error(), "help") {
		t.Errorf("parseCommand(maybe) error = %v", err)
	}
}

func sampleSession(status protocol.Status) *protocol.SessionState {
	return &protocol.SessionState{
		ID:                 "abc",
		Status:             status,
		Mode:               protocol.ModeFreeform,
		HostID:             "p1",
		MaxPlayers:         4,
		ConsensusThreshold: 0.5,
		Players: map[string]protocol.Player{
			"p1": {ID: "p1", Name: "Ann", Ready: true, Connected: true},
			"p2": {ID: "p2", Name: "Bob", Connected: false},
		},
		Restaurants: []protocol.Restaurant{
			{
				ID:          "r1",
				Name:        "Green Fork",
				Rating:      4.5,
				ReviewCount: 120,
				Price:       "$$",
				Distance:    800,
				Categories:  []protocol.Category{{Alias: "vegan", Title: "Vegan"}, {Alias: "thai", Title: "Thai"}},
				Location:    protocol.Location{DisplayAddress: []string{"1 Main St", "Portland, OR"}},
			},
			{ID: "r2", Name: "Leaf", Rating: 4},
		},
		Matches: map[string]protocol.Votes{},
	}
}

func ann() session.Identity {
	return session.Identity{SessionID: "abc", PlayerID: "p1", PlayerName: "Ann", IsHost: true}
}

func bob() session.Identity {
	return session.Identity{SessionID: "abc", PlayerID: "p2", PlayerName: "Bob"}
}

func rendered(v view) string {
	var buf bytes.Buffer
	render(&buf, v)
	return buf.String()
}

func assertContains(t *testing.T, out string, want ...string) {
	t.Helper()

	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("output missing %q:\n%s", w, out)
		}
	}
}

func TestRenderWaiting(t *testing.T) {
	st := sampleSession(protocol.StatusWaitingForPlayers)

	out := rendered(view{identity: ann(), state: st, conn: session.Connected})
	assertContains(t, out,
		"Session abc | connected | waiting_for_players | freeform",
		"Players (2/4):",
		"Ann (host, you) - ready",
		"Bob (away) - not ready",
		`Type "ready" when you are.`,
	)

	p2 := st.Players["p2"]
	p2.Ready = true
	st.Players["p2"] = p2

	assertContains(t, rendered(view{identity: ann(), state: st}), `Type "start" to begin.`)
	assertContains(t, rendered(view{identity: bob(), state: st}), "Waiting for the host to start.")
}

func TestRenderActive(t *testing.T) {
	st := sampleSession(protocol.StatusActive)

	out := rendered(view{identity: ann(), state: st, conn: session.Connected})
	assertContains(t, out,
		"Ann (host, you) 0/2",
		"[1/2] Green Fork  4.5 stars (120 reviews)  $$",
		"1 Main St, Portland, OR",
		"Vegan, Thai",
		"0.8 km away",
		"like (l), dislike (d), superlike (s)",
	)

	st.Mode = protocol.ModeTurnBased
	st.CurrentTurnPlayerID = "p2"
	assertContains(t, rendered(view{identity: ann(), state: st}), "Waiting for Bob's turn.")
}

func TestRenderFinishedPlayer(t *testing.T) {
	st := sampleSession(protocol.StatusSomePlayersFinished)
	p1 := st.Players["p1"]
	p1.CurrentIndex = 2
	st.Players["p1"] = p1

	out := rendered(view{identity: ann(), state: st})
	assertContains(t, out, "Ann (host, you) 2/2 done", "You're done. Still swiping: Bob")
	if strings.Contains(out, "Green Fork") {
		t.Errorf("finished player still shown a card:\n%s", out)
	}
}

func TestRenderCompleted(t *testing.T) {
	st := sampleSession(protocol.StatusCompleted)
	st.Matches = map[string]protocol.Votes{
		"r1": {Likes: []string{"p2"}, Superlikes: []string{"p1"}},
		"r2": {Likes: []string{"p1"}},
	}
	st.Restaurants[0].URL = "https://yelp.example/green-fork"

	out := rendered(view{identity: ann(), state: st})
	assertContains(t, out,
		"Results:",
		"1. Green Fork (4.5 stars) liked by Bob; superliked by Ann [you superliked]",
		"https://yelp.example/green-fork",
		"2. Leaf (4.0 stars) liked by Ann [you liked]",
	)

	st.Matches = map[string]protocol.Votes{}
	assertContains(t, rendered(view{identity: ann(), state: st}), "No restaurant has reached the consensus threshold.")
}

func TestRenderEdgeStates(t *testing.T) {
	assertContains(t, rendered(view{identity: ann(), conn: session.Connecting}),
		"Session abc | connecting", "Waiting for the session...")

	assertContains(t, rendered(view{identity: ann(), state: sampleSession(protocol.StatusErrorFetching), err: "Yelp is down"}),
		"! Yelp is down", "Could not fetch restaurants")

	assertContains(t, rendered(view{identity: ann(), state: sampleSession("paused")}), `Unknown session status "paused".`)
}

func TestRenderDetails(t *testing.T) {
	d := protocol.RestaurantDetails{
		Restaurant:   protocol.Restaurant{ID: "r1", Name: "Green Fork", Rating: 4.5, ReviewCount: 120, URL: "https://yelp.example/gf"},
		DisplayPhone: "(503) 555-0100",
		Hours: []protocol.Hours{{
			IsOpenNow: true,
			Open:      []protocol.OpenHours{{Day: 0, Start: "1100", End: "2130"}, {Day: 9, Start: "0000", End: "0100"}},
		}},
		Photos: []string{"a.jpg", "b.jpg"},
	}
	d.Reviews = []protocol.Review{{Rating: 5, Text: "Great tofu."}}
	d.Reviews[0].User.Name = "Cy"

	var buf bytes.Buffer
	renderDetails(&buf, d)

	assertContains(t, buf.String(),
		"Green Fork  4.5 stars (120 reviews)",
		"(503) 555-0100",
		"Open now",
		"Mon 11:00-21:30",
		"5/5 Cy: Great tofu.",
		"Photos: a.jpg b.jpg",
		"https://yelp.example/gf",
	)
	if strings.Contains(buf.String(), "00:00-01:00") {
		t.Errorf("out of range day rendered")
	}
}

func TestClock(t *testing.T) {
	for in, want := range map[string]string{"0930": "09:30", "2359": "23:59", "930": "930", "": ""} {
		if got := clock(in); got != want {
			t.Errorf("clock(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPrintSuggestions(t *testing.T) {
	var buf bytes.Buffer
	if err := printSuggestions(&buf, []string{"Portland, OR, USA", "Portland, ME, USA"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "Portland, OR, USA\nPortland, ME, USA\n" {
		t.Errorf("output = %q", buf.String())
	}

	buf.Reset()
	_ = printSuggestions(&buf, nil)
	if buf.String() != "No matching locations.\n" {
		t.Errorf("empty output = %q", buf.String())
	}
}

// newOfflineGame builds a game whose store never opens a connection.
func newOfflineGame(t *testing.T, id session.Identity) (*game, *session.MemoryIdentityStore, *bytes.Buffer) {
	t.Helper()

	api, err := client.New("http://127.0.0.1:1", nil)
	if err != nil {
		t.Fatal(err)
	}
	ids := session.NewMemoryIdentityStore(id)

	store, err := session.New(session.Options{Client: api, Identities: ids, Lazy: true})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	var out bytes.Buffer
	return &game{
		api:   api,
		store: store,
		disp:  session.NewDispatcher(store),
		out:   &out,
	}, ids, &out
}

func TestExecWithoutConnection(t *testing.T) {
	g, _, out := newOfflineGame(t, bob())

	tests := []struct {
		cmd  command
		want string
	}{
		{command{kind: cmdReady}, `Not connected, nothing was sent. Type "reconnect" to try again.`},
		{command{kind: cmdFinish}, "Not connected"},
		{command{kind: cmdStart}, "Only the host can start the session."},
		{command{kind: cmdSwipe, decision: protocol.Like}, "Still waiting for the session."},
		{command{kind: cmdMatches}, "Still waiting for the session."},
		{command{kind: cmdInfo}, "No restaurant to show."},
		{command{kind: cmdHelp}, "superlike (s)"},
	}

	for _, tt := range tests {
		out.Reset()
		if g.exec(context.Background(), tt.cmd) {
			t.Errorf("exec(%+v) ended the loop", tt.cmd)
		}
		if !strings.Contains(out.String(), tt.want) {
			t.Errorf("exec(%+v) printed %q, want %q", tt.cmd, out.String(), tt.want)
		}
	}
}

func TestExecQuitKeepsIdentity(t *testing.T) {
	g, ids, _ := newOfflineGame(t, ann())

	if !g.exec(context.Background(), command{kind: cmdQuit}) {
		t.Fatal("quit did not end the loop")
	}
	if id, _ := ids.Load(); !id.Complete() {
		t.Errorf("identity cleared on quit: %+v", id)
	}
}

func TestExecLeaveClearsIdentity(t *testing.T) {
	g, ids, out := newOfflineGame(t, ann())

	if !g.exec(context.Background(), command{kind: cmdLeave}) {
		t.Fatal("leave did not end the loop")
	}
	if id, _ := ids.Load(); id.Complete() {
		t.Errorf("identity kept after leave: %+v", id)
	}
	assertContains(t, out.String(), "Left session abc.")
}

func TestRunEndsOnEOF(t *testing.T) {
	g, _, out := newOfflineGame(t, ann())

	if err := g.run(context.Background(), strings.NewReader("help\nbogus\n")); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	assertContains(t, out.String(), "Session abc | disconnected", "Commands:", `unknown command "bogus"`)
}
