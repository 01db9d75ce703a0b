package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	redisrepo "github.com/freeeve/conquest/internal/repository/redis"
	"github.com/freeeve/conquest/internal/session"
)

const (
	pollInterval = 10 * time.Second
	pollGrace    = 5 * time.Second
)

// TimerListener listens for Redis keyspace notifications on expired timer keys
// and expires the game's bidding deadline. Also runs a polling fallback to
// catch expirations if keyspace notifications are unavailable.
type TimerListener struct {
	rdb      *redis.Client
	sessions *session.Manager
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(rdb *redis.Client, sessions *session.Manager) *TimerListener {
	return &TimerListener{rdb: rdb, sessions: sessions}
}

// Start begins listening for expired key events and runs the polling
// fallback until ctx is done.
func (t *TimerListener) Start(ctx context.Context) {
	if t.rdb != nil {
		t.enableNotifications(ctx)
		go t.listenKeyspace(ctx)
	}
	t.pollExpiredDeadlines(ctx)
}

// enableNotifications turns on expired-key events. Managed Redis often
// forbids CONFIG, in which case the poller covers.
func (t *TimerListener) enableNotifications(ctx context.Context) {
	if err := t.rdb.ConfigSet(ctx, "notify-keyspace-events", "Ex").Err(); err != nil {
		log.Warn().Err(err).Msg("Could not enable keyspace notifications, relying on poller")
	}
}

func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.rdb.PSubscribe(ctx, redisrepo.TimerPattern)
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

func (t *TimerListener) pollExpiredDeadlines(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	log.Info().Dur("interval", pollInterval).Msg("Deadline poller started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Deadline poller stopped")
			return
		case <-ticker.C:
			if n := t.sessions.ExpireOverdue(ctx, pollGrace); n > 0 {
				log.Info().Int("count", n).Msg("Poller expired overdue deadlines")
			}
		}
	}
}

// handleExpiry processes an expired key. Only acts on game timer keys.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	gameID, ok := redisrepo.GameIDFromTimerKey(key)
	if !ok {
		return
	}
	log.Info().Str("gameId", gameID).Msg("Timer expired, expiring deadline")
	out, err := t.sessions.Expire(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("Deadline expiry failed")
		return
	}
	if !out.OK {
		log.Debug().Str("gameId", gameID).Str("reason", out.Reason).Msg("Expiry ignored")
	}
}
