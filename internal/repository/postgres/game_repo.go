package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/freeeve/conquest/internal/model"
)

const gameColumns = `id, name, creator_id, status, winner, max_players, seed, created_at, started_at, finished_at`

// GameRepo handles game and game_player database operations.
type GameRepo struct {
	db *sql.DB
}

// NewGameRepo creates a GameRepo.
func NewGameRepo(db *sql.DB) *GameRepo {
	return &GameRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*model.Game, error) {
	var g model.Game
	var winner sql.NullString
	var seed sql.NullInt64
	if err := row.Scan(&g.ID, &g.Name, &g.CreatorID, &g.Status, &winner, &g.MaxPlayers, &seed,
		&g.CreatedAt, &g.StartedAt, &g.FinishedAt); err != nil {
		return nil, err
	}
	g.Winner = winner.String
	g.Seed = seed.Int64
	return &g, nil
}

func (r *GameRepo) queryGames(ctx context.Context, withPlayers bool, query string, args ...any) ([]model.Game, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []model.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		games = append(games, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if withPlayers {
		for i := range games {
			players, err := r.ListPlayers(ctx, games[i].ID)
			if err != nil {
				return nil, err
			}
			games[i].Players = players
		}
	}
	return games, nil
}

// Create inserts a new game in waiting status.
func (r *GameRepo) Create(ctx context.Context, name, creatorID string, maxPlayers int) (*model.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx,
		`INSERT INTO games (name, creator_id, max_players) VALUES ($1, $2, $3)
		 RETURNING `+gameColumns,
		name, creatorID, maxPlayers))
	if err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	return g, nil
}

// FindByID returns a game with its players, or nil, nil if it does not exist.
func (r *GameRepo) FindByID(ctx context.Context, id string) (*model.Game, error) {
	g, err := scanGame(r.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game: %w", err)
	}
	players, err := r.ListPlayers(ctx, id)
	if err != nil {
		return nil, err
	}
	g.Players = players
	return g, nil
}

// ListOpen returns games still waiting for players.
func (r *GameRepo) ListOpen(ctx context.Context) ([]model.Game, error) {
	games, err := r.queryGames(ctx, false,
		`SELECT `+gameColumns+` FROM games WHERE status = 'waiting' ORDER BY created_at DESC LIMIT 50`)
	if err != nil {
		return nil, fmt.Errorf("list open games: %w", err)
	}
	return games, nil
}

// ListByUser returns the games a user created or holds a seat in.
func (r *GameRepo) ListByUser(ctx context.Context, userID string) ([]model.Game, error) {
	games, err := r.queryGames(ctx, false,
		`SELECT `+gameColumns+` FROM games
		 WHERE creator_id = $1 OR id IN (SELECT game_id FROM game_players WHERE user_id = $1)
		 ORDER BY created_at DESC LIMIT 50`, userID)
	if err != nil {
		return nil, fmt.Errorf("list user games: %w", err)
	}
	return games, nil
}

// ListActive returns running games with their players, oldest first.
func (r *GameRepo) ListActive(ctx context.Context) ([]model.Game, error) {
	games, err := r.queryGames(ctx, true,
		`SELECT `+gameColumns+` FROM games WHERE status = 'active' ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active games: %w", err)
	}
	return games, nil
}

// ListPlayers returns the seats of a game in join order.
func (r *GameRepo) ListPlayers(ctx context.Context, gameID string) ([]model.GamePlayer, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT game_id, user_id, color, is_bot, bot_strategy, joined_at
		 FROM game_players WHERE game_id = $1 ORDER BY joined_at`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	defer rows.Close()

	var players []model.GamePlayer
	for rows.Next() {
		var p model.GamePlayer
		var color sql.NullString
		if err := rows.Scan(&p.GameID, &p.UserID, &color, &p.IsBot, &p.BotStrategy, &p.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		p.Color = color.String
		players = append(players, p)
	}
	return players, rows.Err()
}

// JoinGame seats a human player. Joining twice is a no-op.
func (r *GameRepo) JoinGame(ctx context.Context, gameID, userID string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO game_players (game_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		gameID, userID,
	); err != nil {
		return fmt.Errorf("join game: %w", err)
	}
	return nil
}

// JoinGameAsBot seats an AI player driven by the named strategy.
func (r *GameRepo) JoinGameAsBot(ctx context.Context, gameID, userID, strategy string) error {
	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO game_players (game_id, user_id, is_bot, bot_strategy) VALUES ($1, $2, true, $3)
		 ON CONFLICT DO NOTHING`,
		gameID, userID, strategy,
	); err != nil {
		return fmt.Errorf("join game as bot: %w", err)
	}
	return nil
}

// PlayerCount returns the number of seats taken in a game.
func (r *GameRepo) PlayerCount(ctx context.Context, gameID string) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM game_players WHERE game_id = $1`, gameID,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("player count: %w", err)
	}
	return count, nil
}

// MarkStarted moves a waiting game to active and records its dice seed.
func (r *GameRepo) MarkStarted(ctx context.Context, gameID string, seed int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'active', started_at = now(), seed = $2
		 WHERE id = $1 AND status = 'waiting'`, gameID, seed)
	if err != nil {
		return fmt.Errorf("mark started: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("mark started: game %s is not waiting", gameID)
	}
	return nil
}

// SetFinished marks a game finished with its winner.
func (r *GameRepo) SetFinished(ctx context.Context, gameID, winner string) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE games SET status = 'finished', winner = NULLIF($1, ''), finished_at = now() WHERE id = $2`,
		winner, gameID,
	); err != nil {
		return fmt.Errorf("set finished: %w", err)
	}
	return nil
}

// Delete removes a game. Seats, snapshots and the action log cascade.
func (r *GameRepo) Delete(ctx context.Context, gameID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM games WHERE id = $1`, gameID); err != nil {
		return fmt.Errorf("delete game: %w", err)
	}
	return nil
}
