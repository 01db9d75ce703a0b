package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "game:"
	timerSuffix = ":timer"
)

func stateKey(gameID string) string { return keyPrefix + gameID + ":state" }
func timerKey(gameID string) string { return keyPrefix + gameID + timerSuffix }

// GameIDFromTimerKey extracts the game id from an expired timer key.
func GameIDFromTimerKey(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, timerSuffix) {
		return "", false
	}
	id := key[len(keyPrefix) : len(key)-len(timerSuffix)]
	return id, id != ""
}

// TimerPattern is the keyspace channel pattern for expired deadline timers.
const TimerPattern = "__keyevent@*__:expired"

func compress(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(src []byte) ([]byte, error) {
	return io.ReadAll(lz4.NewReader(bytes.NewReader(src)))
}

// SetGameState stores the live state JSON of a game, lz4-compressed.
func (c *Client) SetGameState(ctx context.Context, gameID string, state []byte) error {
	blob, err := compress(state)
	if err != nil {
		return fmt.Errorf("compress game state: %w", err)
	}
	return c.rdb.Set(ctx, stateKey(gameID), blob, 0).Err()
}

// GetGameState returns the live state JSON of a game, or nil if none is cached.
func (c *Client) GetGameState(ctx context.Context, gameID string) ([]byte, error) {
	blob, err := c.rdb.Get(ctx, stateKey(gameID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	state, err := decompress(blob)
	if err != nil {
		return nil, fmt.Errorf("decompress game state: %w", err)
	}
	return state, nil
}

// deadlineGrace delays expiry past the displayed deadline so late clicks still land.
const deadlineGrace = 5 * time.Second

// SetTimer arms the deadline timer of a game. Expiry is delivered through
// keyspace notifications.
func (c *Client) SetTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + deadlineGrace
	if ttl <= 0 {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(gameID), deadline.Unix(), ttl).Err()
}

// ClearTimer disarms the deadline timer of a game.
func (c *Client) ClearTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, timerKey(gameID)).Err()
}

// DeleteGameData removes every key of a finished game.
func (c *Client) DeleteGameData(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, stateKey(gameID), timerKey(gameID)).Err()
}
