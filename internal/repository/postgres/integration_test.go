//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/freeeve/conquest/internal/model"
	"github.com/freeeve/conquest/internal/testutil"
)

var testDB *sql.DB

func setup(t *testing.T) {
	t.Helper()
	if testDB == nil {
		testDB = testutil.SetupDB(t)
	}
	testutil.CleanupDB(t, testDB)
}

func createTestUser(t *testing.T, repo *UserRepo, suffix string) *model.User {
	t.Helper()
	u, err := repo.Upsert(context.Background(), "google", "provider-"+suffix, "User "+suffix, "https://avatar/"+suffix)
	if err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

func createTestGame(t *testing.T, name string) (*GameRepo, *model.Game, *model.User) {
	t.Helper()
	users := NewUserRepo(testDB)
	games := NewGameRepo(testDB)
	creator := createTestUser(t, users, name)
	g, err := games.Create(context.Background(), name, creator.ID, 4)
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
	return games, g, creator
}

// --- UserRepo ---

func TestUserUpsertCreatesAndUpdates(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	ctx := context.Background()

	u1, err := repo.Upsert(ctx, "google", "goog-456", "Bob", "https://old")
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if u1.ID == "" || u1.DisplayName != "Bob" {
		t.Fatalf("unexpected user: %+v", u1)
	}

	u2, err := repo.Upsert(ctx, "google", "goog-456", "Bobby", "https://new")
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if u1.ID != u2.ID {
		t.Fatalf("upsert should return same ID: %s vs %s", u1.ID, u2.ID)
	}
	if u2.DisplayName != "Bobby" || u2.AvatarURL != "https://new" {
		t.Fatalf("expected refreshed profile, got %+v", u2)
	}
}

func TestUserLookups(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	ctx := context.Background()

	created, _ := repo.Upsert(ctx, "apple", "apple-123", "Charlie", "")
	byID, err := repo.FindByID(ctx, created.ID)
	if err != nil || byID == nil || byID.DisplayName != "Charlie" {
		t.Fatalf("find by id = %+v, %v", byID, err)
	}
	byProvider, err := repo.FindByProviderID(ctx, "apple", "apple-123")
	if err != nil || byProvider == nil || byProvider.ID != created.ID {
		t.Fatalf("find by provider = %+v, %v", byProvider, err)
	}

	missing, err := repo.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for a missing user, got %+v, %v", missing, err)
	}
	missing, err = repo.FindByProviderID(ctx, "apple", "no-such-id")
	if err != nil || missing != nil {
		t.Fatalf("expected nil, nil for a missing provider id, got %+v, %v", missing, err)
	}
}

func TestUserUpdateDisplayName(t *testing.T) {
	setup(t)
	repo := NewUserRepo(testDB)
	ctx := context.Background()

	u, _ := repo.Upsert(ctx, "google", "goog-upd", "OldName", "")
	if err := repo.UpdateDisplayName(ctx, u.ID, "NewName"); err != nil {
		t.Fatalf("update display name: %v", err)
	}
	found, _ := repo.FindByID(ctx, u.ID)
	if found.DisplayName != "NewName" {
		t.Fatalf("expected NewName, got %s", found.DisplayName)
	}
}

// --- GameRepo ---

func TestGameCreate(t *testing.T) {
	setup(t)
	_, g, creator := createTestGame(t, "create")

	if g.ID == "" || g.Name != "create" || g.CreatorID != creator.ID {
		t.Fatalf("unexpected game: %+v", g)
	}
	if g.Status != model.GameWaiting || g.MaxPlayers != 4 {
		t.Fatalf("expected waiting game with 4 seats, got %s/%d", g.Status, g.MaxPlayers)
	}
}

func TestGameSeatsHumansAndBots(t *testing.T) {
	setup(t)
	games, g, creator := createTestGame(t, "seats")
	users := NewUserRepo(testDB)
	ctx := context.Background()

	if err := games.JoinGame(ctx, g.ID, creator.ID); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := games.JoinGame(ctx, g.ID, creator.ID); err != nil {
		t.Fatalf("second join should be a no-op: %v", err)
	}
	bot := createTestUser(t, users, "bot")
	if err := games.JoinGameAsBot(ctx, g.ID, bot.ID, "heuristic"); err != nil {
		t.Fatalf("join as bot: %v", err)
	}

	count, err := games.PlayerCount(ctx, g.ID)
	if err != nil || count != 2 {
		t.Fatalf("player count = %d, %v; want 2", count, err)
	}

	found, err := games.FindByID(ctx, g.ID)
	if err != nil || found == nil {
		t.Fatalf("find by id: %+v, %v", found, err)
	}
	if len(found.Players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(found.Players))
	}
	if found.Players[0].UserID != creator.ID || found.Players[0].IsBot {
		t.Errorf("first seat should be the human creator, got %+v", found.Players[0])
	}
	if !found.Players[1].IsBot || found.Players[1].BotStrategy != "heuristic" {
		t.Errorf("second seat should be a heuristic bot, got %+v", found.Players[1])
	}
}

func TestGameListings(t *testing.T) {
	setup(t)
	users := NewUserRepo(testDB)
	games := NewGameRepo(testDB)
	ctx := context.Background()

	u1 := createTestUser(t, users, "u1")
	u2 := createTestUser(t, users, "u2")
	g1, _ := games.Create(ctx, "G1", u1.ID, 2)
	g2, _ := games.Create(ctx, "G2", u2.ID, 2)
	games.JoinGame(ctx, g2.ID, u2.ID)
	games.JoinGame(ctx, g2.ID, u1.ID)

	open, err := games.ListOpen(ctx)
	if err != nil || len(open) != 2 {
		t.Fatalf("list open = %d, %v; want 2", len(open), err)
	}
	mine, _ := games.ListByUser(ctx, u1.ID)
	if len(mine) != 2 {
		t.Fatalf("expected 2 games for u1, got %d", len(mine))
	}
	theirs, _ := games.ListByUser(ctx, u2.ID)
	if len(theirs) != 1 {
		t.Fatalf("expected 1 game for u2, got %d", len(theirs))
	}

	if err := games.MarkStarted(ctx, g2.ID, 99); err != nil {
		t.Fatalf("mark started: %v", err)
	}
	active, err := games.ListActive(ctx)
	if err != nil || len(active) != 1 || active[0].ID != g2.ID {
		t.Fatalf("list active = %+v, %v", active, err)
	}
	if active[0].Seed != 99 || len(active[0].Players) != 2 {
		t.Errorf("active game should carry seed and players, got %+v", active[0])
	}
	open, _ = games.ListOpen(ctx)
	if len(open) != 1 || open[0].ID != g1.ID {
		t.Errorf("started game should leave the open list, got %+v", open)
	}
}

func TestGameMarkStartedOnlyOnce(t *testing.T) {
	setup(t)
	games, g, _ := createTestGame(t, "start")
	ctx := context.Background()

	if err := games.MarkStarted(ctx, g.ID, 7); err != nil {
		t.Fatalf("mark started: %v", err)
	}
	if err := games.MarkStarted(ctx, g.ID, 8); err == nil {
		t.Fatal("expected an error starting an active game")
	}
	found, _ := games.FindByID(ctx, g.ID)
	if found.Status != model.GameActive || found.StartedAt == nil || found.Seed != 7 {
		t.Fatalf("unexpected started game: %+v", found)
	}
}

func TestGameSetFinishedAndDelete(t *testing.T) {
	setup(t)
	games, g, creator := createTestGame(t, "finish")
	ctx := context.Background()

	if err := games.SetFinished(ctx, g.ID, creator.ID); err != nil {
		t.Fatalf("set finished: %v", err)
	}
	found, _ := games.FindByID(ctx, g.ID)
	if found.Status != model.GameFinished || found.Winner != creator.ID || found.FinishedAt == nil {
		t.Fatalf("unexpected finished game: %+v", found)
	}

	if err := games.Delete(ctx, g.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	gone, err := games.FindByID(ctx, g.ID)
	if err != nil || gone != nil {
		t.Fatalf("expected nil, nil after delete, got %+v, %v", gone, err)
	}
}

// --- StateRepo ---

func TestSnapshotUpsertKeepsNewest(t *testing.T) {
	setup(t)
	_, g, _ := createTestGame(t, "snap")
	repo := NewStateRepo(testDB)
	ctx := context.Background()

	none, err := repo.LatestSnapshot(ctx, g.ID)
	if err != nil || none != nil {
		t.Fatalf("expected nil, nil before the first save, got %+v, %v", none, err)
	}

	at := time.Now().UTC().Truncate(time.Millisecond)
	save := func(version int64) {
		t.Helper()
		state, _ := json.Marshal(map[string]int64{"version": version})
		if err := repo.SaveSnapshot(ctx, model.Snapshot{
			GameID: g.ID, Version: version, Status: "active", State: state, UpdatedAt: at,
		}); err != nil {
			t.Fatalf("save v%d: %v", version, err)
		}
	}
	save(3)
	save(5)
	save(4)

	snap, err := repo.LatestSnapshot(ctx, g.ID)
	if err != nil || snap == nil {
		t.Fatalf("latest snapshot: %+v, %v", snap, err)
	}
	if snap.Version != 5 {
		t.Fatalf("expected version 5 to survive a stale write, got %d", snap.Version)
	}
	var decoded map[string]int64
	if err := json.Unmarshal(snap.State, &decoded); err != nil || decoded["version"] != 5 {
		t.Fatalf("state round trip: %v, %v", decoded, err)
	}
}

func TestActionLogAppendAndPage(t *testing.T) {
	setup(t)
	_, g, _ := createTestGame(t, "log")
	repo := NewStateRepo(testDB)
	ctx := context.Background()

	at := time.Now().UTC().Truncate(time.Millisecond)
	var records []model.ActionRecord
	for seq := int64(1); seq <= 5; seq++ {
		records = append(records, model.ActionRecord{
			GameID:     g.ID,
			Seq:        seq,
			ID:         "6ba7b812-9dad-11d1-80b4-00c04fd430c" + string(rune('0'+seq)),
			Type:       "advance_phase",
			PlayerID:   "alice",
			HashBefore: "before",
			HashAfter:  "after",
			At:         at,
		})
	}
	records[0].Data = json.RawMessage(`{"figures":{"total":4}}`)

	if err := repo.AppendActions(ctx, records[:3]); err != nil {
		t.Fatalf("append: %v", err)
	}
	// Overlapping batch: seq 3 already stored.
	if err := repo.AppendActions(ctx, records[2:]); err != nil {
		t.Fatalf("append overlap: %v", err)
	}

	all, err := repo.ListActions(ctx, g.ID, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 records, got %d", len(all))
	}
	for i, rec := range all {
		if rec.Seq != int64(i+1) {
			t.Fatalf("record %d has seq %d", i, rec.Seq)
		}
	}
	if len(all[0].Data) == 0 || len(all[1].Data) != 0 {
		t.Errorf("data should round trip only where set: %q / %q", all[0].Data, all[1].Data)
	}

	page, _ := repo.ListActions(ctx, g.ID, 2, 2)
	if len(page) != 2 || page[0].Seq != 3 || page[1].Seq != 4 {
		t.Fatalf("unexpected page: %+v", page)
	}
}
