package conquest

import (
	"testing"
)

// newTestState builds a small two-player board in alice's Phase 1:
//
//	a1 - a2 - a3 - b1 - b2
//	|          \          |
//	sea         e        sea
//
// alice holds a1..a3 (the "west" continent), bob holds b1 and b2, e is
// empty neutral land and sea is open water.
func newTestState() *GameState {
	gs := &GameState{
		ID:              "g1",
		Status:          StatusPlaying,
		CurrentYear:     1,
		CurrentPhase:    PhaseCollectDeploy,
		ActiveTurnOrder: []string{"alice", "bob"},
		Players: []Player{
			{ID: "alice", Name: "Alice", Color: "red", Energy: 10, Cards: []Card{}},
			{ID: "bob", Name: "Bob", Color: "blue", Energy: 8, Cards: []Card{}},
		},
		Territories: map[string]*Territory{
			"a1":  {ID: "a1", Continent: "west", OwnerID: "alice", MachineCount: 3, Type: Land, Connections: []string{"a2", "sea"}},
			"a2":  {ID: "a2", Continent: "west", OwnerID: "alice", MachineCount: 2, Type: Land, Connections: []string{"a1", "a3"}},
			"a3":  {ID: "a3", Continent: "west", OwnerID: "alice", MachineCount: 5, Type: Land, Connections: []string{"a2", "b1", "e"}},
			"b1":  {ID: "b1", Continent: "east", OwnerID: "bob", MachineCount: 3, Type: Land, Connections: []string{"a3", "b2"}},
			"b2":  {ID: "b2", Continent: "east", OwnerID: "bob", MachineCount: 2, Type: Land, Connections: []string{"b1", "sea"}},
			"e":   {ID: "e", Continent: "east", Type: Land, Connections: []string{"a3"}},
			"sea": {ID: "sea", Type: Water, Connections: []string{"a1", "b2"}},
		},
		Continents: []Continent{
			{ID: "west", Name: "West", Bonus: 2, Territories: []string{"a1", "a2", "a3"}},
			{ID: "east", Name: "East", Bonus: 1, Territories: []string{"b1", "b2", "e"}},
		},
		Rules:   DefaultRules(),
		Catalog: DefaultBoard().Cards,
		Dice:    DiceState{Seed: 42},
	}
	gs.syncPlayerTerritories()
	return gs
}

// inPhase puts playerID on the move in phase p.
func inPhase(gs *GameState, playerID string, p Phase) *GameState {
	for i, id := range gs.ActiveTurnOrder {
		if id == playerID {
			gs.CurrentPlayerIndex = i
		}
	}
	gs.CurrentPhase = p
	return gs
}

func act(t ActionType, playerID string, data any) Action {
	return NewAction(t, playerID, data)
}

func mustApply(t *testing.T, gs *GameState, a Action, opts ...ApplyOption) *GameState {
	t.Helper()
	next, res := Apply(gs, a, opts...)
	if !res.OK {
		t.Fatalf("%s by %s rejected: %s (%s)", a.Type, a.PlayerID, res.Reason, res.Kind)
	}
	return next
}

func mustReject(t *testing.T, gs *GameState, a Action, kind RejectionKind, opts ...ApplyOption) {
	t.Helper()
	before := HashState(gs)
	next, res := Apply(gs, a, opts...)
	if res.OK {
		t.Fatalf("%s by %s accepted, want %s rejection", a.Type, a.PlayerID, kind)
	}
	if res.Kind != kind {
		t.Errorf("%s rejection kind = %s, want %s (%s)", a.Type, res.Kind, kind, res.Reason)
	}
	if next != gs {
		t.Error("rejected action should return the input state")
	}
	if HashState(gs) != before {
		t.Error("rejected action mutated the input state")
	}
}
