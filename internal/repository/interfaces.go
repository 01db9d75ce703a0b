package repository

import (
	"context"
	"time"

	"github.com/freeeve/conquest/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// GameRepository defines lobby operations on games and their seats.
type GameRepository interface {
	Create(ctx context.Context, name, creatorID string, maxPlayers int) (*model.Game, error)
	FindByID(ctx context.Context, id string) (*model.Game, error)
	ListOpen(ctx context.Context) ([]model.Game, error)
	ListByUser(ctx context.Context, userID string) ([]model.Game, error)
	ListActive(ctx context.Context) ([]model.Game, error)
	JoinGame(ctx context.Context, gameID, userID string) error
	JoinGameAsBot(ctx context.Context, gameID, userID, strategy string) error
	PlayerCount(ctx context.Context, gameID string) (int, error)
	MarkStarted(ctx context.Context, gameID string, seed int64) error
	SetFinished(ctx context.Context, gameID, winner string) error
	Delete(ctx context.Context, gameID string) error
}

// StateRepository durably stores engine snapshots and the full action log.
type StateRepository interface {
	SaveSnapshot(ctx context.Context, snap model.Snapshot) error
	LatestSnapshot(ctx context.Context, gameID string) (*model.Snapshot, error)
	AppendActions(ctx context.Context, records []model.ActionRecord) error
	ListActions(ctx context.Context, gameID string, afterSeq int64, limit int) ([]model.ActionRecord, error)
}

// GameCache holds the live state blob and deadline timer of each game (Redis).
type GameCache interface {
	SetGameState(ctx context.Context, gameID string, state []byte) error
	GetGameState(ctx context.Context, gameID string) ([]byte, error)
	SetTimer(ctx context.Context, gameID string, deadline time.Time) error
	ClearTimer(ctx context.Context, gameID string) error
	DeleteGameData(ctx context.Context, gameID string) error
}
