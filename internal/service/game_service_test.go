package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/freeeve/conquest/internal/model"
	"github.com/freeeve/conquest/internal/session"
	"github.com/freeeve/conquest/pkg/conquest"
)

type testDeps struct {
	svc    *GameService
	games  *mockGameRepo
	users  *mockUserRepo
	states *mockStateRepo
	bc     *recordingBroadcaster
}

func newTestService(t *testing.T) *testDeps {
	t.Helper()
	d := &testDeps{
		games:  newMockGameRepo(),
		users:  newMockUserRepo(),
		states: newMockStateRepo(),
		bc:     &recordingBroadcaster{},
	}
	mgr := session.NewManager(session.Deps{States: d.states, Broadcaster: d.bc})
	t.Cleanup(mgr.Stop)
	d.svc = NewGameService(d.games, d.users, d.states, mgr, conquest.DefaultBoard(), time.Minute, d.bc)
	return d
}

func TestCreateGame(t *testing.T) {
	d := newTestService(t)
	game, err := d.svc.CreateGame(context.Background(), "Test Game", "user-1", 0, 2, "random")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if game.Status != model.GameWaiting || game.MaxPlayers != defaultMaxPlayers {
		t.Errorf("game = %+v", game)
	}
	if len(game.Players) != 3 || game.Players[0].UserID != "user-1" {
		t.Fatalf("players = %+v", game.Players)
	}
	for _, p := range game.Players[1:] {
		if !p.IsBot || p.BotStrategy != "random" {
			t.Errorf("bot seat = %+v", p)
		}
	}
}

func TestCreateGame_Limits(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()

	game, err := d.svc.CreateGame(ctx, "Big", "user-1", 20, 50, "")
	if err != nil {
		t.Fatal(err)
	}
	if game.MaxPlayers != maxSeats || len(game.Players) != maxSeats {
		t.Errorf("max %d, seated %d", game.MaxPlayers, len(game.Players))
	}

	if _, err := d.svc.CreateGame(ctx, "Bad", "user-1", 4, 1, "grandmaster"); !errors.Is(err, ErrInvalidStrategy) {
		t.Errorf("err = %v, want ErrInvalidStrategy", err)
	}
}

func TestJoinGame(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	open, _ := d.svc.CreateGame(ctx, "Open", "user-1", 3, 0, "")
	full, _ := d.svc.CreateGame(ctx, "Full", "user-1", 2, 1, "")
	started, _ := d.svc.CreateGame(ctx, "Started", "user-1", 3, 1, "")
	if _, err := d.svc.StartGame(ctx, started.ID, "user-1"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		gameID string
		userID string
		want   error
	}{
		{"joins", open.ID, "user-2", nil},
		{"twice", open.ID, "user-1", ErrAlreadyJoined},
		{"full", full.ID, "user-2", ErrGameFull},
		{"started", started.ID, "user-2", ErrGameNotWaiting},
		{"missing", "nope", "user-2", ErrGameNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := d.svc.JoinGame(ctx, tt.gameID, tt.userID); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
	if !d.bc.has(open.ID, EventPlayerJoined) {
		t.Error("join was not broadcast")
	}
}

func TestAddBot(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	game, _ := d.svc.CreateGame(ctx, "Bots", "user-1", 3, 1, "")

	if _, err := d.svc.AddBot(ctx, game.ID, "user-2", "passive"); !errors.Is(err, ErrNotCreator) {
		t.Errorf("err = %v, want ErrNotCreator", err)
	}
	got, err := d.svc.AddBot(ctx, game.ID, "user-1", "passive")
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Players) != 3 || got.Players[2].BotStrategy != "passive" {
		t.Errorf("players = %+v", got.Players)
	}
	if got.Players[1].UserID == got.Players[2].UserID {
		t.Error("bots share a user")
	}
	if _, err := d.svc.AddBot(ctx, game.ID, "user-1", ""); !errors.Is(err, ErrGameFull) {
		t.Errorf("err = %v, want ErrGameFull", err)
	}
}

func TestStartGame_Guards(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	solo, _ := d.svc.CreateGame(ctx, "Solo", "user-1", 4, 0, "")

	if _, err := d.svc.StartGame(ctx, solo.ID, "user-2"); !errors.Is(err, ErrNotCreator) {
		t.Errorf("err = %v, want ErrNotCreator", err)
	}
	if _, err := d.svc.StartGame(ctx, solo.ID, "user-1"); !errors.Is(err, ErrNotEnough) {
		t.Errorf("err = %v, want ErrNotEnough", err)
	}
	if _, err := d.svc.StartGame(ctx, "nope", "user-1"); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("err = %v, want ErrGameNotFound", err)
	}
}

func TestStartGameAndPlay(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	d.users.users["user-1"] = &model.User{ID: "user-1", DisplayName: "Alice"}
	game, _ := d.svc.CreateGame(ctx, "Match", "user-1", 2, 1, "heuristic")

	before := time.Now().UTC()
	started, err := d.svc.StartGame(ctx, game.ID, "user-1")
	if err != nil {
		t.Fatal(err)
	}
	if started.Status != model.GameActive || started.StartedAt == nil {
		t.Errorf("started = %+v", started)
	}
	if !d.bc.has(game.ID, EventGameStarted) {
		t.Error("start was not broadcast")
	}
	if _, err := d.svc.StartGame(ctx, game.ID, "user-1"); !errors.Is(err, ErrGameNotWaiting) {
		t.Errorf("restart err = %v", err)
	}

	gs, err := d.svc.State(ctx, game.ID)
	if err != nil {
		t.Fatal(err)
	}
	if gs.Status != conquest.StatusBidding || gs.Player("user-1").Name != "Alice" {
		t.Fatalf("state status %s, players %+v", gs.Status, gs.Players)
	}
	if gs.Deadline == nil || gs.Deadline.Before(before.Add(time.Minute)) {
		t.Errorf("deadline = %v", gs.Deadline)
	}

	// The payload's player is ignored; the caller always acts as themselves.
	act := conquest.NewAction(conquest.ActionPlaceBid, "someone-else", conquest.PlaceBidData{Amount: 10})
	out, err := d.svc.SubmitAction(ctx, game.ID, "user-1", act)
	if err != nil {
		t.Fatal(err)
	}
	if !out.OK {
		t.Fatalf("bid rejected: %s", out.Reason)
	}
	if out.State.Bidding.HighestBidder != "user-1" {
		t.Errorf("highest bidder = %s", out.State.Bidding.HighestBidder)
	}

	recs, err := d.svc.ActionLog(ctx, game.ID, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 3 {
		t.Fatalf("log has %d records, want 3", len(recs))
	}
	if recs[1].PlayerID != "user-1" || recs[2].Type != string(conquest.ActionRevealBids) {
		t.Errorf("log = %+v", recs)
	}
	if tail, _ := d.svc.ActionLog(ctx, game.ID, recs[1].Seq, 10); len(tail) != 1 {
		t.Errorf("paged log has %d records", len(tail))
	}
}

func TestSubmitAction_UnknownGame(t *testing.T) {
	d := newTestService(t)
	_, err := d.svc.SubmitAction(context.Background(), "nope", "user-1", conquest.NewAction(conquest.ActionRevealBids, "", nil))
	if !errors.Is(err, ErrGameNotFound) {
		t.Errorf("err = %v, want ErrGameNotFound", err)
	}
}

func TestDeleteGame(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	game, _ := d.svc.CreateGame(ctx, "Doomed", "user-1", 4, 0, "")

	if err := d.svc.DeleteGame(ctx, game.ID, "user-2"); !errors.Is(err, ErrNotCreator) {
		t.Errorf("err = %v, want ErrNotCreator", err)
	}
	if err := d.svc.DeleteGame(ctx, game.ID, "user-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := d.svc.GetGame(ctx, game.ID); !errors.Is(err, ErrGameNotFound) {
		t.Errorf("err = %v after delete", err)
	}
}

func TestListGames(t *testing.T) {
	d := newTestService(t)
	ctx := context.Background()
	d.svc.CreateGame(ctx, "Mine", "user-1", 4, 0, "")
	active, _ := d.svc.CreateGame(ctx, "Playing", "user-2", 2, 1, "")
	if _, err := d.svc.StartGame(ctx, active.ID, "user-2"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		filter string
		want   int
	}{
		{"", 1},
		{"my", 1},
		{"active", 1},
	}
	for _, tt := range tests {
		games, err := d.svc.ListGames(ctx, "user-1", tt.filter)
		if err != nil {
			t.Fatal(err)
		}
		if len(games) != tt.want {
			t.Errorf("filter %q: %d games, want %d", tt.filter, len(games), tt.want)
		}
	}
}
