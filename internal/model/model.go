package model

import (
	"encoding/json"
	"time"
)

// Game lobby statuses.
const (
	GameWaiting  = "waiting"
	GameActive   = "active"
	GameFinished = "finished"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Game is the lobby record of a conquest game. Live engine state is held
// by the session actor and stored separately as snapshots.
type Game struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	CreatorID  string       `json:"creator_id"`
	Status     string       `json:"status"`
	Winner     string       `json:"winner,omitempty"`
	MaxPlayers int          `json:"max_players"`
	Seed       int64        `json:"seed,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Players    []GamePlayer `json:"players,omitempty"`
}

// GamePlayer represents a seat in a game.
type GamePlayer struct {
	GameID      string    `json:"game_id"`
	UserID      string    `json:"user_id"`
	Color       string    `json:"color,omitempty"`
	IsBot       bool      `json:"is_bot"`
	BotStrategy string    `json:"bot_strategy,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Snapshot is a durable copy of a game's engine state at a version.
type Snapshot struct {
	GameID    string          `json:"game_id"`
	Version   int64           `json:"version"`
	Status    string          `json:"status"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ActionRecord is one accepted action in a game's append-only log.
type ActionRecord struct {
	GameID     string          `json:"game_id"`
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	PlayerID   string          `json:"player_id"`
	Data       json.RawMessage `json:"data,omitempty"`
	HashBefore string          `json:"hash_before"`
	HashAfter  string          `json:"hash_after"`
	At         time.Time       `json:"at"`
}
