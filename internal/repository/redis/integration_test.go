//go:build integration

package redis

import (
	"bytes"
	"context"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/freeeve/conquest/internal/testutil"
)

var testRDB *goredis.Client

func setup(t *testing.T) *Client {
	t.Helper()
	if testRDB == nil {
		testRDB = testutil.SetupRedis(t)
	}
	testutil.CleanupRedis(t, testRDB)
	return NewClientFromPool(testRDB)
}

func TestGameStateRoundTrip(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	gameID := "test-game-1"

	state := bytes.Repeat([]byte(`{"territory":"northlands_1","units":3},`), 200)
	if err := c.SetGameState(ctx, gameID, state); err != nil {
		t.Fatalf("set game state: %v", err)
	}

	stored := testRDB.Get(ctx, stateKey(gameID)).Val()
	if len(stored) >= len(state) {
		t.Errorf("expected a compressed blob, stored %d bytes for %d", len(stored), len(state))
	}

	got, err := c.GetGameState(ctx, gameID)
	if err != nil {
		t.Fatalf("get game state: %v", err)
	}
	if !bytes.Equal(got, state) {
		t.Fatalf("state round-trip mismatch: got %d bytes", len(got))
	}
}

func TestGameStateNotFound(t *testing.T) {
	c := setup(t)
	got, err := c.GetGameState(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("get missing state: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for missing game state")
	}
}

func TestTimerWithTTL(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	gameID := "test-game-2"

	if err := c.SetTimer(ctx, gameID, time.Now().Add(10*time.Second)); err != nil {
		t.Fatalf("set timer: %v", err)
	}
	ttl := testRDB.TTL(ctx, timerKey(gameID)).Val()
	if ttl <= 10*time.Second || ttl > 16*time.Second {
		t.Fatalf("expected TTL of deadline plus grace, got %v", ttl)
	}

	if err := c.ClearTimer(ctx, gameID); err != nil {
		t.Fatalf("clear timer: %v", err)
	}
	if testRDB.Exists(ctx, timerKey(gameID)).Val() != 0 {
		t.Fatal("expected timer key to be deleted")
	}
}

func TestTimerPastDeadline(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	gameID := "test-game-3"

	if err := c.SetTimer(ctx, gameID, time.Now().Add(-10*time.Second)); err != nil {
		t.Fatalf("set timer past deadline: %v", err)
	}
	ttl := testRDB.TTL(ctx, timerKey(gameID)).Val()
	if ttl <= 0 || ttl > 2*time.Second {
		t.Fatalf("expected TTL ~1s for past deadline, got %v", ttl)
	}
}

func TestDeleteGameData(t *testing.T) {
	c := setup(t)
	ctx := context.Background()
	gameID := "test-game-4"

	c.SetGameState(ctx, gameID, []byte(`{"year":1}`))
	c.SetTimer(ctx, gameID, time.Now().Add(time.Minute))

	if err := c.DeleteGameData(ctx, gameID); err != nil {
		t.Fatalf("delete game data: %v", err)
	}
	if n := testRDB.Exists(ctx, stateKey(gameID), timerKey(gameID)).Val(); n != 0 {
		t.Fatalf("expected all keys gone, %d remain", n)
	}
}
