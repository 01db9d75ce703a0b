// Package session hosts live games. Each game is owned by one Actor
// goroutine that applies actions one at a time, persists the result and
// broadcasts the new state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/conquest/internal/bot"
	"github.com/freeeve/conquest/internal/logger"
	"github.com/freeeve/conquest/internal/model"
	"github.com/freeeve/conquest/internal/repository"
	"github.com/freeeve/conquest/pkg/conquest"
)

// ErrStopped is returned when submitting to an actor that has shut down.
var ErrStopped = errors.New("session stopped")

const (
	mailboxSize    = 64
	persistTimeout = 10 * time.Second
)

// maxUnsaved bounds the log records held while the database is down.
var maxUnsaved = 2048

// Archive receives the genesis state and accepted entries of every game.
type Archive interface {
	WriteGenesis(gs *conquest.GameState) error
	WriteEntries(gameID string, entries []conquest.ActionLogEntry) error
}

// Deps are the collaborators shared by every actor.
type Deps struct {
	Cache       repository.GameCache
	States      repository.StateRepository
	Games       repository.GameRepository
	Archive     Archive
	Broadcaster Broadcaster
	// DefaultStrategy drives AI seats with no recorded strategy.
	DefaultStrategy string
	// MaxAISteps bounds the automatic actions applied per mailbox turn.
	MaxAISteps int
	Now        func() time.Time

	// finished is called from the actor goroutine once its game ends.
	finished func(*Actor)
}

type request struct {
	ctx    context.Context
	action *conquest.Action // nil runs the autopilot only
	reply  chan Outcome
}

// Actor is the single writer of one game's state.
type Actor struct {
	id   string
	deps *Deps
	pick bot.Picker
	log  zerolog.Logger

	state   atomic.Pointer[conquest.GameState]
	mailbox chan request
	quit    chan struct{}
	done    chan struct{}
	once    sync.Once

	// unsaved holds log records the database has not acknowledged yet.
	unsaved []model.ActionRecord
}

func newActor(gs *conquest.GameState, deps *Deps, pick bot.Picker) *Actor {
	a := &Actor{
		id:      gs.ID,
		deps:    deps,
		pick:    pick,
		log:     logger.ForGame(gs.ID),
		mailbox: make(chan request, mailboxSize),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	a.state.Store(gs)
	go a.run()
	return a
}

// newSettled wraps a finished game. It runs no goroutine and rejects every action.
func newSettled(gs *conquest.GameState, deps *Deps) *Actor {
	a := &Actor{id: gs.ID, deps: deps, log: logger.ForGame(gs.ID), done: make(chan struct{})}
	a.state.Store(gs)
	a.once.Do(func() {})
	close(a.done)
	return a
}

// ID returns the game id.
func (a *Actor) ID() string { return a.id }

// State returns the latest committed state. States are never mutated in
// place, so the result is safe to read concurrently.
func (a *Actor) State() *conquest.GameState { return a.state.Load() }

// Submit queues an action and waits for its outcome. Rejections are reported
// in the Outcome; the error is set only when the actor is gone or ctx ends.
func (a *Actor) Submit(ctx context.Context, act conquest.Action) (Outcome, error) {
	return a.send(ctx, &act)
}

// Kick runs the autopilot and waits until it yields.
func (a *Actor) Kick(ctx context.Context) (Outcome, error) {
	return a.send(ctx, nil)
}

func (a *Actor) send(ctx context.Context, act *conquest.Action) (Outcome, error) {
	if a.mailbox == nil {
		return a.settled(act), nil
	}
	req := request{ctx: ctx, action: act, reply: make(chan Outcome, 1)}
	select {
	case a.mailbox <- req:
	case <-a.done:
		return a.afterStop(act)
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	select {
	case out := <-req.reply:
		return out, nil
	case <-a.done:
		// The reply may have been sent just before the actor retired.
		select {
		case out := <-req.reply:
			return out, nil
		default:
		}
		return a.afterStop(act)
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// afterStop answers requests that raced the actor's shutdown. A finished
// game keeps answering like a settled one.
func (a *Actor) afterStop(act *conquest.Action) (Outcome, error) {
	if a.state.Load().Status == conquest.StatusFinished {
		return a.settled(act), nil
	}
	return Outcome{}, ErrStopped
}

func (a *Actor) settled(act *conquest.Action) Outcome {
	gs := a.state.Load()
	if act == nil {
		return Outcome{Result: conquest.Result{OK: true}, State: gs}
	}
	if _, res := conquest.Apply(gs, conquest.Stamp(*act, a.now())); !res.OK {
		return Outcome{Result: res, State: gs}
	}
	return Outcome{Result: conquest.Result{Kind: conquest.RejectIllegal, Reason: "game is finished"}, State: gs}
}

// kickLater queues an autopilot turn without waiting. Dropped if the mailbox is full.
func (a *Actor) kickLater() {
	if a.mailbox == nil {
		return
	}
	select {
	case a.mailbox <- request{ctx: context.Background(), reply: make(chan Outcome, 1)}:
	default:
	}
}

// Stop ends the actor after the request in progress. Queued requests fail
// with ErrStopped unless the game has finished.
func (a *Actor) Stop() {
	a.halt()
	<-a.done
}

// halt asks the run loop to exit without waiting for it.
func (a *Actor) halt() {
	a.once.Do(func() { close(a.quit) })
}

func (a *Actor) run() {
	defer close(a.done)
	for {
		select {
		case <-a.quit:
			return
		case req := <-a.mailbox:
			req.reply <- a.handle(req)
		}
	}
}

func (a *Actor) now() time.Time {
	if a.deps.Now != nil {
		return a.deps.Now().UTC()
	}
	return time.Now().UTC()
}

func (a *Actor) handle(req request) Outcome {
	prev := a.state.Load()
	cur := prev
	var entries []conquest.ActionLogEntry

	if req.action != nil {
		act := conquest.Stamp(*req.action, a.now())
		if act.Type == conquest.ActionExpireDeadline && (cur.Deadline == nil || act.At.Before(*cur.Deadline)) {
			return Outcome{
				Result: conquest.Result{Kind: conquest.RejectIllegal, Reason: "deadline has not passed"},
				State:  cur,
			}
		}
		next, res := conquest.Apply(cur, act)
		if !res.OK {
			a.log.Debug().Str("action", string(act.Type)).Str("playerId", act.PlayerID).
				Str("kind", string(res.Kind)).Str("reason", res.Reason).Msg("Action rejected")
			return Outcome{Result: res, State: cur}
		}
		cur = next
		entries = append(entries, lastEntry(cur))
	}

	cur, auto, more := a.autopilot(cur)
	entries = append(entries, auto...)
	if len(entries) > 0 {
		a.state.Store(cur)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(req.ctx), persistTimeout)
		a.commit(ctx, prev, cur, entries)
		cancel()
	}
	if more {
		a.kickLater()
	}
	return Outcome{Result: conquest.Result{OK: true}, State: cur}
}

func lastEntry(gs *conquest.GameState) conquest.ActionLogEntry {
	return gs.ActionLog[len(gs.ActionLog)-1]
}

// autopilot applies server-driven actions until the game waits on a human
// or the step budget runs out, in which case more is true.
func (a *Actor) autopilot(gs *conquest.GameState) (_ *conquest.GameState, entries []conquest.ActionLogEntry, more bool) {
	for range a.deps.MaxAISteps {
		act, ok := bot.Autopilot(gs, a.pick)
		if !ok {
			return gs, entries, false
		}
		next, res := conquest.Apply(gs, conquest.Stamp(act, a.now()))
		if !res.OK {
			a.log.Warn().Str("action", string(act.Type)).Str("playerId", act.PlayerID).
				Str("reason", res.Reason).Msg("AI action rejected, falling back to passive play")
			if act.PlayerID == conquest.SystemPlayerID {
				return gs, entries, false
			}
			fallback, ok := bot.PassiveStrategy{}.Decide(gs, act.PlayerID)
			if !ok {
				return gs, entries, false
			}
			if next, res = conquest.Apply(gs, conquest.Stamp(fallback, a.now())); !res.OK {
				a.log.Error().Str("action", string(fallback.Type)).Str("reason", res.Reason).Msg("Fallback action rejected, AI stalled")
				return gs, entries, false
			}
		}
		gs = next
		entries = append(entries, lastEntry(gs))
	}
	_, pending := bot.Autopilot(gs, a.pick)
	return gs, entries, pending
}

// commit persists, archives and broadcasts an accepted transition. Storage
// failures are logged; the in-memory state stays authoritative and the
// next commit retries the log records.
func (a *Actor) commit(ctx context.Context, prev, next *conquest.GameState, entries []conquest.ActionLogEntry) {
	l := a.log.With().Int64("version", next.Version).Int("actions", len(entries)).Logger()

	raw, err := json.Marshal(next)
	if err != nil {
		l.Error().Err(err).Msg("Failed to marshal state")
		return
	}
	if a.deps.Cache != nil {
		if err := a.deps.Cache.SetGameState(ctx, a.id, raw); err != nil {
			l.Error().Err(err).Msg("Failed to cache state")
		}
	}
	if a.deps.States != nil {
		snap := model.Snapshot{GameID: a.id, Version: next.Version, Status: string(next.Status), State: raw, UpdatedAt: next.UpdatedAt}
		if err := a.deps.States.SaveSnapshot(ctx, snap); err != nil {
			l.Error().Err(err).Msg("Failed to save snapshot")
		}
		a.unsaved = append(a.unsaved, toRecords(a.id, entries)...)
		if over := len(a.unsaved) - maxUnsaved; over > 0 {
			l.Warn().Int("dropped", over).Int64("fromSeq", a.unsaved[0].Seq).
				Msg("Unsaved action log over limit, dropping oldest records")
			a.unsaved = slices.Delete(a.unsaved, 0, over)
		}
		if err := a.deps.States.AppendActions(ctx, a.unsaved); err != nil {
			l.Error().Err(err).Int("pending", len(a.unsaved)).Msg("Failed to append action log, will retry")
		} else {
			a.unsaved = nil
		}
	}
	if a.deps.Archive != nil {
		if err := a.deps.Archive.WriteEntries(a.id, entries); err != nil {
			l.Error().Err(err).Msg("Failed to archive actions")
		}
	}
	a.syncTimer(ctx, prev, next)

	types := make([]string, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}
	a.deps.Broadcaster.BroadcastGameEvent(a.id, EventStateUpdated, StateUpdate{Version: next.Version, Actions: types, State: next})
	l.Info().Str("status", string(next.Status)).Int("year", next.CurrentYear).Msg("State committed")

	if next.Status == conquest.StatusFinished && prev.Status != conquest.StatusFinished {
		a.finish(ctx, next)
	}
}

func (a *Actor) syncTimer(ctx context.Context, prev, next *conquest.GameState) {
	if a.deps.Cache == nil {
		return
	}
	switch {
	case next.Deadline != nil && (prev.Deadline == nil || !prev.Deadline.Equal(*next.Deadline)):
		if err := a.deps.Cache.SetTimer(ctx, a.id, *next.Deadline); err != nil {
			a.log.Error().Err(err).Msg("Failed to arm deadline timer")
		}
	case next.Deadline == nil && prev.Deadline != nil:
		if err := a.deps.Cache.ClearTimer(ctx, a.id); err != nil {
			a.log.Error().Err(err).Msg("Failed to clear deadline timer")
		}
	}
}

func (a *Actor) finish(ctx context.Context, gs *conquest.GameState) {
	if a.deps.Games != nil {
		if err := a.deps.Games.SetFinished(ctx, a.id, gs.WinnerID); err != nil {
			a.log.Error().Err(err).Msg("Failed to mark game finished")
		}
	}
	if a.deps.Cache != nil {
		if err := a.deps.Cache.DeleteGameData(ctx, a.id); err != nil {
			a.log.Warn().Err(err).Msg("Failed to delete live game data")
		}
	}
	a.deps.Broadcaster.BroadcastGameEvent(a.id, EventGameEnded, GameEnded{WinnerID: gs.WinnerID, Standings: conquest.Standings(gs)})
	a.log.Info().Str("winner", gs.WinnerID).Msg("Game finished")
	if a.deps.finished != nil {
		a.deps.finished(a)
	}
}

func toRecords(gameID string, entries []conquest.ActionLogEntry) []model.ActionRecord {
	out := make([]model.ActionRecord, len(entries))
	for i, e := range entries {
		out[i] = model.ActionRecord{
			GameID:     gameID,
			Seq:        e.Seq,
			ID:         e.ID,
			Type:       e.Type,
			PlayerID:   e.PlayerID,
			Data:       e.Data,
			HashBefore: e.HashBefore,
			HashAfter:  e.HashAfter,
			At:         e.At,
		}
	}
	return out
}
