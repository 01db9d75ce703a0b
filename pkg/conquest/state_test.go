package conquest

import (
	"encoding/json"
	"testing"
)

func TestGameState_Clone_Independent(t *testing.T) {
	gs := newTestState()
	openBidding(gs, gs.UpdatedAt)
	gs.PendingConquest = &PendingConquest{AttackingCommanders: []CommanderType{LandCommander}}
	c := gs.Clone()

	c.Territories["a1"].MachineCount = 99
	if gs.Territories["a1"].MachineCount == 99 {
		t.Error("territory mutation leaked into the original")
	}
	c.Players[0].Territories[0] = "zz"
	if gs.Players[0].Territories[0] == "zz" {
		t.Error("player territory list is shared")
	}
	c.Bidding.BidsSubmitted["alice"] = 4
	if _, ok := gs.Bidding.BidsSubmitted["alice"]; ok {
		t.Error("bids map is shared")
	}
	c.PendingConquest.AttackingCommanders[0] = NavalCommander
	if gs.PendingConquest.AttackingCommanders[0] != LandCommander {
		t.Error("pending conquest is shared")
	}
	c.Continents[0].Territories[0] = "zz"
	if gs.Continents[0].Territories[0] == "zz" {
		t.Error("continent membership is shared")
	}
}

func TestGameState_JSONRoundTripPreservesHash(t *testing.T) {
	gs := inPhase(newTestState(), "alice", PhaseInvade)
	gs = mustApply(t, gs, attack("a3", "b1", 2))

	raw, err := json.Marshal(gs)
	if err != nil {
		t.Fatal(err)
	}
	var back GameState
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if HashState(&back) != HashState(gs) {
		t.Error("decoded state hashes differently")
	}
}

func TestTerritory_Commanders(t *testing.T) {
	var terr Territory
	for _, c := range AllCommanderTypes() {
		terr.SetCommander(c, "p")
		if terr.Commander(c) != "p" {
			t.Errorf("%s slot not set", c)
		}
	}
	if terr.Commander("wizard") != "" {
		t.Error("unknown commander type should read empty")
	}
}
