package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/freeeve/conquest/internal/model"
	"github.com/freeeve/conquest/pkg/conquest"
)

type mockCache struct {
	mu      sync.Mutex
	states  map[string][]byte
	timers  map[string]time.Time
	clears  int
	deleted []string

	// SetGameState for holdID blocks until hold is closed.
	holdID string
	hold   chan struct{}
}

func newMockCache() *mockCache {
	return &mockCache{states: make(map[string][]byte), timers: make(map[string]time.Time)}
}

func (m *mockCache) SetGameState(_ context.Context, gameID string, state []byte) error {
	if m.hold != nil && gameID == m.holdID {
		<-m.hold
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[gameID] = state
	return nil
}

func (m *mockCache) GetGameState(_ context.Context, gameID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[gameID], nil
}

func (m *mockCache) SetTimer(_ context.Context, gameID string, deadline time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timers[gameID] = deadline
	return nil
}

func (m *mockCache) ClearTimer(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.timers, gameID)
	m.clears++
	return nil
}

func (m *mockCache) DeleteGameData(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, gameID)
	delete(m.timers, gameID)
	m.deleted = append(m.deleted, gameID)
	return nil
}

func (m *mockCache) timer(gameID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[gameID]
	return t, ok
}

type mockStates struct {
	mu        sync.Mutex
	snapshots map[string]model.Snapshot
	records   []model.ActionRecord
	failNext  int
}

func newMockStates() *mockStates {
	return &mockStates{snapshots: make(map[string]model.Snapshot)}
}

func (m *mockStates) SaveSnapshot(_ context.Context, snap model.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.snapshots[snap.GameID]; !ok || cur.Version < snap.Version {
		m.snapshots[snap.GameID] = snap
	}
	return nil
}

func (m *mockStates) LatestSnapshot(_ context.Context, gameID string) (*model.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[gameID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (m *mockStates) AppendActions(_ context.Context, records []model.ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return errors.New("connection reset")
	}
	seen := make(map[int64]bool, len(m.records))
	for _, r := range m.records {
		seen[r.Seq] = true
	}
	for _, r := range records {
		if !seen[r.Seq] {
			m.records = append(m.records, r)
		}
	}
	return nil
}

func (m *mockStates) ListActions(_ context.Context, gameID string, afterSeq int64, limit int) ([]model.ActionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ActionRecord
	for _, r := range m.records {
		if r.GameID == gameID && r.Seq > afterSeq {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStates) recordCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *mockStates) snapshotVersion(gameID string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshots[gameID].Version
}

type mockGames struct {
	mu       sync.Mutex
	games    map[string]*model.Game
	finished map[string]string
}

func newMockGames() *mockGames {
	return &mockGames{games: make(map[string]*model.Game), finished: make(map[string]string)}
}

func (m *mockGames) Create(_ context.Context, name, creatorID string, maxPlayers int) (*model.Game, error) {
	return nil, errors.New("not implemented")
}

func (m *mockGames) FindByID(_ context.Context, id string) (*model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[id], nil
}

func (m *mockGames) ListOpen(context.Context) ([]model.Game, error) { return nil, nil }
func (m *mockGames) ListByUser(context.Context, string) ([]model.Game, error) { return nil, nil }
func (m *mockGames) JoinGame(context.Context, string, string) error { return nil }
func (m *mockGames) JoinGameAsBot(context.Context, string, string, string) error { return nil }
func (m *mockGames) PlayerCount(context.Context, string) (int, error) { return 0, nil }
func (m *mockGames) MarkStarted(context.Context, string, int64) error { return nil }
func (m *mockGames) Delete(context.Context, string) error { return nil }

func (m *mockGames) ListActive(context.Context) ([]model.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Game
	for _, g := range m.games {
		if g.Status == model.GameActive {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *mockGames) SetFinished(_ context.Context, gameID, winner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished[gameID] = winner
	return nil
}

type mockArchive struct {
	mu      sync.Mutex
	genesis []string
	entries int
}

func (m *mockArchive) WriteGenesis(gs *conquest.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.genesis = append(m.genesis, gs.ID)
	return nil
}

func (m *mockArchive) WriteEntries(_ string, entries []conquest.ActionLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries += len(entries)
	return nil
}

type event struct {
	gameID string
	kind   string
	data   any
}

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []event
}

func (b *recordingBroadcaster) BroadcastGameEvent(gameID, eventType string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event{gameID, eventType, data})
}

func (b *recordingBroadcaster) ofKind(kind string) []event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []event
	for _, e := range b.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
