package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/conquest/pkg/conquest"
)

// Orchestrator plays a full game against a running server: remote bots log
// in as ordinary users, take human seats and act over the WebSocket, while
// the server drives its own AI seats.
type Orchestrator struct {
	baseURL    string
	strategy   Strategy
	remote     int
	serverBots int
	idleLimit  time.Duration
	bots       []*Client
}

// NewOrchestrator creates an Orchestrator with remote bots using strategy
// and serverBots seats left to the server's autopilot.
func NewOrchestrator(baseURL string, strategy Strategy, remote, serverBots int, idleLimit time.Duration) *Orchestrator {
	return &Orchestrator{
		baseURL:    baseURL,
		strategy:   strategy,
		remote:     max(remote, 1),
		serverBots: max(serverBots, 0),
		idleLimit:  idleLimit,
	}
}

// Run logs the bots in, sets up and starts the game, and plays until it ends.
// It returns the winner's id.
func (o *Orchestrator) Run(ctx context.Context) (string, error) {
	log.Info().Str("strategy", o.strategy.Name()).Int("remote", o.remote).Int("serverBots", o.serverBots).Msg("Starting bot game")

	for i := 1; i <= o.remote; i++ {
		c := NewClient(fmt.Sprintf("Remote%d", i), o.baseURL)
		if err := c.Login(); err != nil {
			return "", fmt.Errorf("login %s: %w", c.Name(), err)
		}
		o.bots = append(o.bots, c)
	}

	host := o.bots[0]
	gameID, err := host.CreateGame("Bot Test Game", o.remote+o.serverBots, o.serverBots, "")
	if err != nil {
		return "", fmt.Errorf("create game: %w", err)
	}
	log.Info().Str("gameId", gameID).Msg("Game created")

	for _, c := range o.bots[1:] {
		if err := c.JoinGame(gameID); err != nil {
			return "", fmt.Errorf("join %s: %w", c.Name(), err)
		}
	}

	for _, c := range o.bots {
		if err := c.ConnectWS(); err != nil {
			return "", fmt.Errorf("ws connect %s: %w", c.Name(), err)
		}
	}
	defer func() {
		for _, c := range o.bots {
			c.CloseWS()
		}
	}()

	if err := host.StartGame(gameID); err != nil {
		return "", fmt.Errorf("start game: %w", err)
	}
	log.Info().Str("gameId", gameID).Msg("Game started")

	winners := make([]string, len(o.bots))
	g, ctx := errgroup.WithContext(ctx)
	for i, c := range o.bots {
		g.Go(func() error {
			if err := c.SubscribeGame(gameID); err != nil {
				return fmt.Errorf("ws subscribe %s: %w", c.Name(), err)
			}
			w, err := o.play(ctx, c, gameID)
			winners[i] = w
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	return winners[0], nil
}

// play reacts to one bot's event stream until the game ends. Every state
// update is checked for a move owed by this bot; a rejected move is retried
// once with the passive strategy on the latest state.
func (o *Orchestrator) play(ctx context.Context, c *Client, gameID string) (string, error) {
	var latest *conquest.GameState
	idle := time.NewTimer(o.idleLimit)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-idle.C:
			return "", fmt.Errorf("%s: no events for %s", c.Name(), o.idleLimit)
		case ev, ok := <-c.Events():
			if !ok {
				return "", fmt.Errorf("%s: websocket closed", c.Name())
			}
			idle.Reset(o.idleLimit)

			switch ev.Type {
			case "state_snapshot":
				var gs conquest.GameState
				if err := json.Unmarshal(ev.Data, &gs); err != nil {
					return "", fmt.Errorf("decode snapshot: %w", err)
				}
				latest = &gs
			case "state_updated":
				var upd struct {
					State *conquest.GameState `json:"state"`
				}
				if err := json.Unmarshal(ev.Data, &upd); err != nil {
					return "", fmt.Errorf("decode update: %w", err)
				}
				if latest != nil && upd.State.Version <= latest.Version {
					continue
				}
				latest = upd.State
			case "action_result":
				var res conquest.Result
				json.Unmarshal(ev.Data, &res)
				if res.OK || latest == nil {
					continue
				}
				log.Debug().Str("bot", c.Name()).Str("kind", string(res.Kind)).Str("reason", res.Reason).Msg("Action rejected, falling back")
				if act, ok := (PassiveStrategy{}).Decide(latest, c.UserID()); ok {
					if err := c.SendAction(gameID, act); err != nil {
						return "", err
					}
				}
				continue
			case "game_ended":
				var end struct {
					WinnerID string `json:"winnerId"`
				}
				json.Unmarshal(ev.Data, &end)
				log.Info().Str("bot", c.Name()).Str("winner", end.WinnerID).Msg("Game ended")
				return end.WinnerID, nil
			default:
				continue
			}

			if act, ok := o.next(latest, c.UserID()); ok {
				if err := c.SendAction(gameID, act); err != nil {
					return "", err
				}
			}
		}
	}
}

// next is the action a remote seat owes: its strategy's move, or starting
// the year after winning the bidding.
func (o *Orchestrator) next(gs *conquest.GameState, playerID string) (conquest.Action, bool) {
	if b := gs.Bidding; gs.Status == conquest.StatusBidding && b != nil && b.BidsRevealed {
		if len(b.FinalTurnOrder) > 0 && b.FinalTurnOrder[0] == playerID {
			return conquest.NewAction(conquest.ActionStartYearTurns, playerID, nil), true
		}
		return conquest.Action{}, false
	}
	return o.strategy.Decide(gs, playerID)
}
