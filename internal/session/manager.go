package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/bot"
	"github.com/freeeve/conquest/internal/model"
	"github.com/freeeve/conquest/pkg/conquest"
)

var (
	// ErrGameNotFound means no live, cached or stored state exists for the id.
	ErrGameNotFound = errors.New("game state not found")
	// ErrGameExists is returned when starting a game that already has an actor.
	ErrGameExists = errors.New("game already running")
)

const defaultMaxAISteps = 500

// Manager owns the actor of every loaded game. Actors are created when a
// game starts or loaded lazily from Redis or Postgres on first use.
type Manager struct {
	deps *Deps

	mu     sync.Mutex
	actors map[string]*Actor
	// starting holds games whose genesis is being persisted by Start.
	starting map[string]struct{}
	stopped  bool
}

// NewManager creates a Manager. Nil collaborators are skipped.
func NewManager(deps Deps) *Manager {
	if deps.Broadcaster == nil {
		deps.Broadcaster = NoopBroadcaster{}
	}
	if deps.MaxAISteps <= 0 {
		deps.MaxAISteps = defaultMaxAISteps
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	m := &Manager{deps: &deps, actors: make(map[string]*Actor), starting: make(map[string]struct{})}
	m.deps.finished = m.retire
	return m
}

// retire unregisters an actor whose game has ended. It runs on the actor's
// own goroutine, so it must not wait for the actor to exit.
func (m *Manager) retire(a *Actor) {
	m.mu.Lock()
	if m.actors[a.id] == a {
		delete(m.actors, a.id)
	}
	m.mu.Unlock()
	a.halt()
	log.Debug().Str("gameId", a.id).Msg("Game session retired")
}

// Start persists the genesis state of a new game, spawns its actor and lets
// any AI seats act. strategies maps AI player ids to strategy names.
func (m *Manager) Start(ctx context.Context, gs *conquest.GameState, strategies map[string]string) (*Actor, error) {
	if err := m.reserve(gs.ID); err != nil {
		return nil, err
	}
	defer func() {
		m.mu.Lock()
		delete(m.starting, gs.ID)
		m.mu.Unlock()
	}()

	if err := m.persistGenesis(ctx, gs); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	a := newActor(gs, m.deps, m.picker(strategies))
	m.actors[gs.ID] = a
	m.mu.Unlock()

	a.kickLater()
	log.Info().Str("gameId", gs.ID).Int("players", len(gs.Players)).Msg("Game session started")
	return a, nil
}

func (m *Manager) reserve(gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return ErrStopped
	}
	if _, ok := m.actors[gameID]; ok {
		return ErrGameExists
	}
	if _, ok := m.starting[gameID]; ok {
		return ErrGameExists
	}
	m.starting[gameID] = struct{}{}
	return nil
}

func (m *Manager) persistGenesis(ctx context.Context, gs *conquest.GameState) error {
	raw, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("marshal genesis: %w", err)
	}
	if m.deps.Cache != nil {
		if err := m.deps.Cache.SetGameState(ctx, gs.ID, raw); err != nil {
			return fmt.Errorf("cache genesis: %w", err)
		}
		if gs.Deadline != nil {
			if err := m.deps.Cache.SetTimer(ctx, gs.ID, *gs.Deadline); err != nil {
				return fmt.Errorf("arm deadline: %w", err)
			}
		}
	}
	if m.deps.States != nil {
		snap := model.Snapshot{GameID: gs.ID, Version: gs.Version, Status: string(gs.Status), State: raw, UpdatedAt: gs.UpdatedAt}
		if err := m.deps.States.SaveSnapshot(ctx, snap); err != nil {
			return fmt.Errorf("save genesis: %w", err)
		}
	}
	if m.deps.Archive != nil {
		if err := m.deps.Archive.WriteGenesis(gs); err != nil {
			log.Error().Err(err).Str("gameId", gs.ID).Msg("Failed to archive genesis")
		}
	}
	return nil
}

// Get returns the actor of a game, loading it if needed.
func (m *Manager) Get(ctx context.Context, gameID string) (*Actor, error) {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil, ErrStopped
	}
	if a, ok := m.actors[gameID]; ok {
		m.mu.Unlock()
		return a, nil
	}
	_, starting := m.starting[gameID]
	m.mu.Unlock()
	if starting {
		return nil, ErrGameNotFound
	}

	gs, err := m.load(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if gs.Status == conquest.StatusFinished {
		return newSettled(gs, m.deps), nil
	}
	strategies, err := m.strategies(ctx, gameID)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrStopped
	}
	if a, ok := m.actors[gameID]; ok {
		return a, nil
	}
	if _, ok := m.starting[gameID]; ok {
		return nil, ErrGameNotFound
	}
	a := newActor(gs, m.deps, m.picker(strategies))
	m.actors[gameID] = a
	log.Info().Str("gameId", gameID).Int64("version", gs.Version).Msg("Game session loaded")
	return a, nil
}

// State returns the current state of a game.
func (m *Manager) State(ctx context.Context, gameID string) (*conquest.GameState, error) {
	a, err := m.Get(ctx, gameID)
	if err != nil {
		return nil, err
	}
	return a.State(), nil
}

// Submit routes an action to the game's actor.
func (m *Manager) Submit(ctx context.Context, gameID string, act conquest.Action) (Outcome, error) {
	a, err := m.Get(ctx, gameID)
	if err != nil {
		return Outcome{}, err
	}
	return a.Submit(ctx, act)
}

// Expire submits a system expire_deadline. The actor ignores it unless the
// game's deadline has passed.
func (m *Manager) Expire(ctx context.Context, gameID string) (Outcome, error) {
	return m.Submit(ctx, gameID, conquest.NewAction(conquest.ActionExpireDeadline, conquest.SystemPlayerID, nil))
}

// ExpireOverdue expires every loaded game whose deadline passed more than
// grace ago. Returns the number of games expired.
func (m *Manager) ExpireOverdue(ctx context.Context, grace time.Duration) int {
	cutoff := m.deps.Now().Add(-grace)
	var due []*Actor
	m.mu.Lock()
	for _, a := range m.actors {
		if gs := a.State(); gs.Deadline != nil && gs.Deadline.Before(cutoff) {
			due = append(due, a)
		}
	}
	m.mu.Unlock()

	n := 0
	for _, a := range due {
		out, err := a.Submit(ctx, conquest.NewAction(conquest.ActionExpireDeadline, conquest.SystemPlayerID, nil))
		if err != nil {
			log.Error().Err(err).Str("gameId", a.ID()).Msg("Failed to expire overdue deadline")
			continue
		}
		if out.OK {
			n++
		}
	}
	return n
}

// Recover loads the given games, expires deadlines that lapsed while the
// server was down and lets AI seats resume.
func (m *Manager) Recover(ctx context.Context, gameIDs []string) int {
	n := 0
	for _, id := range gameIDs {
		a, err := m.Get(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("gameId", id).Msg("Failed to recover game")
			continue
		}
		if gs := a.State(); gs.Deadline != nil && !m.deps.Now().Before(*gs.Deadline) {
			if _, err := a.Submit(ctx, conquest.NewAction(conquest.ActionExpireDeadline, conquest.SystemPlayerID, nil)); err != nil {
				log.Error().Err(err).Str("gameId", id).Msg("Failed to expire deadline on recovery")
			}
		}
		a.kickLater()
		n++
	}
	return n
}

// RecoverActiveGames recovers every game the lobby lists as active.
func (m *Manager) RecoverActiveGames(ctx context.Context) (int, error) {
	if m.deps.Games == nil {
		return 0, nil
	}
	games, err := m.deps.Games.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active games: %w", err)
	}
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.ID
	}
	n := m.Recover(ctx, ids)
	log.Info().Int("recovered", n).Int("active", len(ids)).Msg("Recovered active games")
	return n, nil
}

// Loaded returns the number of live actors.
func (m *Manager) Loaded() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.actors)
}

// Stop shuts down every actor. The Manager rejects further use.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	actors := m.actors
	m.actors = make(map[string]*Actor)
	m.mu.Unlock()
	for _, a := range actors {
		a.Stop()
	}
}

// load returns the freshest stored state: the Redis blob or the Postgres
// snapshot, whichever has the higher version.
func (m *Manager) load(ctx context.Context, gameID string) (*conquest.GameState, error) {
	var best *conquest.GameState
	if m.deps.Cache != nil {
		raw, err := m.deps.Cache.GetGameState(ctx, gameID)
		if err != nil {
			log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to read cached state")
		} else if raw != nil {
			var gs conquest.GameState
			if err := json.Unmarshal(raw, &gs); err != nil {
				log.Warn().Err(err).Str("gameId", gameID).Msg("Discarding unreadable cached state")
			} else {
				best = &gs
			}
		}
	}
	if m.deps.States != nil {
		snap, err := m.deps.States.LatestSnapshot(ctx, gameID)
		if err != nil {
			if best == nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
			log.Warn().Err(err).Str("gameId", gameID).Msg("Failed to read snapshot, using cached state")
		} else if snap != nil && (best == nil || snap.Version > best.Version) {
			var gs conquest.GameState
			if err := json.Unmarshal(snap.State, &gs); err != nil {
				return nil, fmt.Errorf("decode snapshot: %w", err)
			}
			best = &gs
		}
	}
	if best == nil {
		return nil, ErrGameNotFound
	}
	return best, nil
}

func (m *Manager) strategies(ctx context.Context, gameID string) (map[string]string, error) {
	if m.deps.Games == nil {
		return nil, nil
	}
	g, err := m.deps.Games.FindByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load seats: %w", err)
	}
	if g == nil {
		return nil, nil
	}
	out := make(map[string]string)
	for _, p := range g.Players {
		if p.IsBot && p.BotStrategy != "" {
			out[p.UserID] = p.BotStrategy
		}
	}
	return out, nil
}

func (m *Manager) picker(strategies map[string]string) bot.Picker {
	fallback := bot.ForName(m.deps.DefaultStrategy)
	return func(playerID string) bot.Strategy {
		if name, ok := strategies[playerID]; ok {
			return bot.ForName(name)
		}
		return fallback
	}
}
