package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/conquest/internal/bot"
	"github.com/freeeve/conquest/internal/model"
	"github.com/freeeve/conquest/internal/repository"
	"github.com/freeeve/conquest/internal/session"
	"github.com/freeeve/conquest/pkg/conquest"
)

var (
	ErrGameNotFound    = errors.New("game not found")
	ErrGameNotWaiting  = errors.New("game is not in waiting status")
	ErrGameNotActive   = errors.New("game is not active")
	ErrGameFull        = errors.New("game is full")
	ErrNotEnough       = errors.New("need at least two players to start")
	ErrNotCreator      = errors.New("only the creator can do that")
	ErrAlreadyJoined   = errors.New("already joined this game")
	ErrNotInGame       = errors.New("you are not in this game")
	ErrInvalidStrategy = errors.New("unknown bot strategy")
)

// Lobby events broadcast to a game's subscribers.
const (
	EventPlayerJoined = "player_joined"
	EventGameStarted  = "game_started"
)

const (
	defaultMaxPlayers = 4
	maxSeats          = 8
	actionPageLimit   = 500
)

// GameService handles the lobby lifecycle and routes play to the session manager.
type GameService struct {
	gameRepo  repository.GameRepository
	userRepo  repository.UserRepository
	stateRepo repository.StateRepository
	sessions  *session.Manager
	board     *conquest.Board
	bidWindow time.Duration
	bcast     session.Broadcaster
}

// NewGameService creates a GameService. Games are dealt on board; a non-zero
// bidWindow replaces the board's bidding window. Lobby events go to bcast.
func NewGameService(gameRepo repository.GameRepository, userRepo repository.UserRepository, stateRepo repository.StateRepository,
	sessions *session.Manager, board *conquest.Board, bidWindow time.Duration, bcast session.Broadcaster) *GameService {
	if bcast == nil {
		bcast = session.NoopBroadcaster{}
	}
	return &GameService{
		gameRepo:  gameRepo,
		userRepo:  userRepo,
		stateRepo: stateRepo,
		sessions:  sessions,
		board:     board,
		bidWindow: bidWindow,
		bcast:     bcast,
	}
}

// CreateGame creates a waiting game, seats the creator and fills bots seats
// with the given strategy.
func (s *GameService) CreateGame(ctx context.Context, name, creatorID string, maxPlayers, bots int, strategy string) (*model.Game, error) {
	if maxPlayers == 0 {
		maxPlayers = defaultMaxPlayers
	}
	maxPlayers = min(max(maxPlayers, 2), maxSeats)
	bots = min(max(bots, 0), maxPlayers-1)
	if strategy != "" && !validStrategy(strategy) {
		return nil, ErrInvalidStrategy
	}

	game, err := s.gameRepo.Create(ctx, name, creatorID, maxPlayers)
	if err != nil {
		return nil, err
	}
	if err := s.gameRepo.JoinGame(ctx, game.ID, creatorID); err != nil {
		return nil, err
	}
	for i := 1; i <= bots; i++ {
		if err := s.seatBot(ctx, game.ID, i, strategy); err != nil {
			return nil, err
		}
	}
	log.Info().Str("gameId", game.ID).Str("creator", creatorID).Int("bots", bots).Msg("Game created")
	return s.gameRepo.FindByID(ctx, game.ID)
}

func (s *GameService) seatBot(ctx context.Context, gameID string, n int, strategy string) error {
	botUser, err := s.userRepo.Upsert(ctx, "bot", fmt.Sprintf("bot-%d", n), fmt.Sprintf("Bot %d", n), "")
	if err != nil {
		return fmt.Errorf("create bot user %d: %w", n, err)
	}
	if err := s.gameRepo.JoinGameAsBot(ctx, gameID, botUser.ID, strategy); err != nil {
		return fmt.Errorf("join bot %d: %w", n, err)
	}
	return nil
}

func validStrategy(name string) bool {
	for _, n := range bot.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// waitingGame loads a game that must still be in the lobby.
func (s *GameService) waitingGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	if game.Status != model.GameWaiting {
		return nil, ErrGameNotWaiting
	}
	return game, nil
}

// JoinGame seats a player in a waiting game.
func (s *GameService) JoinGame(ctx context.Context, gameID, userID string) error {
	game, err := s.waitingGame(ctx, gameID)
	if err != nil {
		return err
	}
	for _, p := range game.Players {
		if p.UserID == userID {
			return ErrAlreadyJoined
		}
	}
	if len(game.Players) >= game.MaxPlayers {
		return ErrGameFull
	}
	if err := s.gameRepo.JoinGame(ctx, gameID, userID); err != nil {
		return err
	}
	s.bcast.BroadcastGameEvent(gameID, EventPlayerJoined, map[string]string{"user_id": userID})
	return nil
}

// AddBot seats another bot. Only the creator may add bots.
func (s *GameService) AddBot(ctx context.Context, gameID, userID, strategy string) (*model.Game, error) {
	if strategy != "" && !validStrategy(strategy) {
		return nil, ErrInvalidStrategy
	}
	game, err := s.waitingGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	if len(game.Players) >= game.MaxPlayers {
		return nil, ErrGameFull
	}
	bots := 0
	for _, p := range game.Players {
		if p.IsBot {
			bots++
		}
	}
	if err := s.seatBot(ctx, gameID, bots+1, strategy); err != nil {
		return nil, err
	}
	return s.gameRepo.FindByID(ctx, gameID)
}

// StartGame deals the board, opens year-one bidding and hands the game to
// its session actor.
func (s *GameService) StartGame(ctx context.Context, gameID, userID string) (*model.Game, error) {
	game, err := s.waitingGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game.CreatorID != userID {
		return nil, ErrNotCreator
	}
	if len(game.Players) < 2 {
		return nil, ErrNotEnough
	}

	seats := make([]conquest.Seat, len(game.Players))
	strategies := make(map[string]string)
	for i, p := range game.Players {
		seats[i] = conquest.Seat{ID: p.UserID, Name: s.displayName(ctx, p.UserID), Color: p.Color, IsAI: p.IsBot}
		if p.IsBot && p.BotStrategy != "" {
			strategies[p.UserID] = p.BotStrategy
		}
	}

	board := *s.board
	if s.bidWindow > 0 {
		board.Rules.BidWindowSeconds = int(s.bidWindow / time.Second)
	}
	seed := rand.Int64()
	now := time.Now().UTC()
	gs, err := conquest.NewGame(gameID, &board, seats, uint64(seed), now)
	if err != nil {
		return nil, fmt.Errorf("deal board: %w", err)
	}
	if gs, err = conquest.BeginBidding(gs, now); err != nil {
		return nil, fmt.Errorf("open bidding: %w", err)
	}
	if err := s.gameRepo.MarkStarted(ctx, gameID, seed); err != nil {
		return nil, err
	}
	if _, err := s.sessions.Start(ctx, gs, strategies); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	log.Info().Str("gameId", gameID).Int("players", len(seats)).Int64("seed", seed).Msg("Game started")
	s.bcast.BroadcastGameEvent(gameID, EventGameStarted, map[string]any{"version": gs.Version})
	return s.gameRepo.FindByID(ctx, gameID)
}

func (s *GameService) displayName(ctx context.Context, userID string) string {
	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil || u == nil {
		return ""
	}
	return u.DisplayName
}

// GetGame returns a game by ID.
func (s *GameService) GetGame(ctx context.Context, gameID string) (*model.Game, error) {
	game, err := s.gameRepo.FindByID(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if game == nil {
		return nil, ErrGameNotFound
	}
	return game, nil
}

// ListGames returns open games, the user's games or active games.
func (s *GameService) ListGames(ctx context.Context, userID, filter string) ([]model.Game, error) {
	switch filter {
	case "my":
		return s.gameRepo.ListByUser(ctx, userID)
	case "active":
		return s.gameRepo.ListActive(ctx)
	default:
		return s.gameRepo.ListOpen(ctx)
	}
}

// DeleteGame removes a waiting game. Only the creator can delete a game.
func (s *GameService) DeleteGame(ctx context.Context, gameID, userID string) error {
	game, err := s.waitingGame(ctx, gameID)
	if err != nil {
		return err
	}
	if game.CreatorID != userID {
		return ErrNotCreator
	}
	return s.gameRepo.Delete(ctx, gameID)
}

// State returns the live engine state of a started game.
func (s *GameService) State(ctx context.Context, gameID string) (*conquest.GameState, error) {
	gs, err := s.sessions.State(ctx, gameID)
	if errors.Is(err, session.ErrGameNotFound) {
		return nil, ErrGameNotFound
	}
	return gs, err
}

// SubmitAction applies an action on behalf of userID. The action's player
// is always the caller; rejections come back in the outcome.
func (s *GameService) SubmitAction(ctx context.Context, gameID, userID string, act conquest.Action) (session.Outcome, error) {
	act.PlayerID = userID
	act.At = time.Time{}
	out, err := s.sessions.Submit(ctx, gameID, act)
	if errors.Is(err, session.ErrGameNotFound) {
		return out, ErrGameNotFound
	}
	return out, err
}

// ActionLog pages through a game's accepted actions after seq.
func (s *GameService) ActionLog(ctx context.Context, gameID string, afterSeq int64, limit int) ([]model.ActionRecord, error) {
	if limit <= 0 || limit > actionPageLimit {
		limit = actionPageLimit
	}
	return s.stateRepo.ListActions(ctx, gameID, afterSeq, limit)
}
