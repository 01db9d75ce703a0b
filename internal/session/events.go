package session

import "github.com/freeeve/conquest/pkg/conquest"

// Events broadcast to a game's subscribers.
const (
	EventStateUpdated = "state_updated"
	EventGameEnded    = "game_ended"
)

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	BroadcastGameEvent(gameID string, eventType string, data any)
}

// NoopBroadcaster drops every event.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastGameEvent(string, string, any) {}

// StateUpdate is the payload of state_updated: the full post-action snapshot.
type StateUpdate struct {
	Version int64               `json:"version"`
	Actions []string            `json:"actions"`
	State   *conquest.GameState `json:"state"`
}

// GameEnded is the payload of game_ended.
type GameEnded struct {
	WinnerID  string              `json:"winnerId"`
	Standings []conquest.Standing `json:"standings"`
}

// Outcome is the reply to a submitted action: the reducer's verdict and the
// state after the action and any automatic follow-ups.
type Outcome struct {
	conquest.Result
	State *conquest.GameState `json:"state"`
}
