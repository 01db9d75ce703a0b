package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/freeeve/conquest/internal/model"
)

type mockGameRepo struct {
	games   map[string]*model.Game
	players map[string][]model.GamePlayer
}

func newMockGameRepo() *mockGameRepo {
	return &mockGameRepo{
		games:   make(map[string]*model.Game),
		players: make(map[string][]model.GamePlayer),
	}
}

func (m *mockGameRepo) Create(_ context.Context, name, creatorID string, maxPlayers int) (*model.Game, error) {
	g := &model.Game{
		ID:         fmt.Sprintf("game-%d", len(m.games)+1),
		Name:       name,
		CreatorID:  creatorID,
		Status:     model.GameWaiting,
		MaxPlayers: maxPlayers,
		CreatedAt:  time.Now(),
	}
	m.games[g.ID] = g
	return g, nil
}

func (m *mockGameRepo) FindByID(_ context.Context, id string) (*model.Game, error) {
	g, ok := m.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	cp.Players = m.players[id]
	return &cp, nil
}

func (m *mockGameRepo) list(keep func(*model.Game) bool) []model.Game {
	var result []model.Game
	for _, g := range m.games {
		if keep(g) {
			result = append(result, *g)
		}
	}
	return result
}

func (m *mockGameRepo) ListOpen(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == model.GameWaiting }), nil
}

func (m *mockGameRepo) ListActive(_ context.Context) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool { return g.Status == model.GameActive }), nil
}

func (m *mockGameRepo) ListByUser(_ context.Context, userID string) ([]model.Game, error) {
	return m.list(func(g *model.Game) bool {
		for _, p := range m.players[g.ID] {
			if p.UserID == userID {
				return true
			}
		}
		return false
	}), nil
}

func (m *mockGameRepo) JoinGame(_ context.Context, gameID, userID string) error {
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:   gameID,
		UserID:   userID,
		JoinedAt: time.Now(),
	})
	return nil
}

func (m *mockGameRepo) JoinGameAsBot(_ context.Context, gameID, userID, strategy string) error {
	m.players[gameID] = append(m.players[gameID], model.GamePlayer{
		GameID:      gameID,
		UserID:      userID,
		IsBot:       true,
		BotStrategy: strategy,
		JoinedAt:    time.Now(),
	})
	return nil
}

func (m *mockGameRepo) PlayerCount(_ context.Context, gameID string) (int, error) {
	return len(m.players[gameID]), nil
}

func (m *mockGameRepo) MarkStarted(_ context.Context, gameID string, seed int64) error {
	g, ok := m.games[gameID]
	if !ok || g.Status != model.GameWaiting {
		return errors.New("game not waiting")
	}
	now := time.Now()
	g.Status = model.GameActive
	g.Seed = seed
	g.StartedAt = &now
	return nil
}

func (m *mockGameRepo) SetFinished(_ context.Context, gameID, winner string) error {
	if g, ok := m.games[gameID]; ok {
		now := time.Now()
		g.Status = model.GameFinished
		g.Winner = winner
		g.FinishedAt = &now
	}
	return nil
}

func (m *mockGameRepo) Delete(_ context.Context, gameID string) error {
	delete(m.games, gameID)
	delete(m.players, gameID)
	return nil
}

// mockUserRepo implements repository.UserRepository for testing.
type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("%s-user-%d", provider, m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	if u, ok := m.users[id]; ok {
		u.DisplayName = displayName
	}
	return nil
}

// mockStateRepo implements repository.StateRepository for testing.
type mockStateRepo struct {
	mu        sync.Mutex
	snapshots map[string]model.Snapshot
	records   []model.ActionRecord
}

func newMockStateRepo() *mockStateRepo {
	return &mockStateRepo{snapshots: make(map[string]model.Snapshot)}
}

func (m *mockStateRepo) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snap.GameID] = snap
	return nil
}

func (m *mockStateRepo) LatestSnapshot(_ context.Context, gameID string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[gameID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *mockStateRepo) AppendActions(_ context.Context, records []model.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, records...)
	return nil
}

func (m *mockStateRepo) ListActions(_ context.Context, gameID string, afterSeq int64, limit int) ([]model.ActionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActionRecord
	for _, r := range m.records {
		if r.GameID == gameID && r.Seq > afterSeq && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) BroadcastGameEvent(gameID, eventType string, _ any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, gameID+":"+eventType)
}

func (b *recordingBroadcaster) has(gameID, eventType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e == gameID+":"+eventType {
			return true
		}
	}
	return false
}
