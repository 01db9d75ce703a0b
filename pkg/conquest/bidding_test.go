package conquest

import (
	"maps"
	"slices"
	"testing"
	"time"
)

func newBiddingState() *GameState {
	gs := newTestState()
	gs.Players = append(gs.Players, Player{ID: "npc", Name: "Raiders", IsNPC: true, Cards: []Card{}})
	openBidding(gs, time.Time{})
	return gs
}

func bid(playerID string, amount int) Action {
	return act(ActionPlaceBid, playerID, PlaceBidData{Amount: amount})
}

func TestOpenBidding_ExcludesNPCs(t *testing.T) {
	gs := newBiddingState()
	if !slices.Equal(gs.Bidding.PlayersWaitingToBid, []string{"alice", "bob"}) {
		t.Errorf("waiting = %v, want [alice bob]", gs.Bidding.PlayersWaitingToBid)
	}
	if gs.Bidding.Stage() != "waiting_for_bids" {
		t.Errorf("stage = %s", gs.Bidding.Stage())
	}
}

func TestBidding_TieResolvedByDice(t *testing.T) {
	gs := newBiddingState()
	gs = mustApply(t, gs, bid("alice", 5))
	gs = mustApply(t, gs, bid("bob", 5))
	gs = mustApply(t, gs, act(ActionRevealBids, SystemPlayerID, nil), WithRoller(NewScriptedRoller(7, 15)))

	b := gs.Bidding
	if b.HighestBidder != "bob" {
		t.Errorf("winner = %s, want bob", b.HighestBidder)
	}
	if !maps.Equal(b.TiebreakRoll, map[string]int{"alice": 7, "bob": 15}) {
		t.Errorf("tiebreak = %v", b.TiebreakRoll)
	}
	if got := gs.Player("alice").Energy; got != 5 {
		t.Errorf("alice energy = %d, want 5 (loser still pays)", got)
	}
	if got := gs.Player("bob").Energy; got != 3 {
		t.Errorf("bob energy = %d, want 3", got)
	}
	if !slices.Equal(b.FinalTurnOrder, []string{"bob", "alice"}) {
		t.Errorf("final order = %v, want [bob alice]", b.FinalTurnOrder)
	}
	if !slices.Equal(gs.TurnOrderHistory[1], b.FinalTurnOrder) {
		t.Errorf("history[1] = %v", gs.TurnOrderHistory[1])
	}
	if b.Stage() != "revealed" {
		t.Errorf("stage = %s, want revealed", b.Stage())
	}
}

func TestBidding_SettlementConservesEnergy(t *testing.T) {
	gs := newBiddingState()
	before := map[string]int{"alice": gs.Player("alice").Energy, "bob": gs.Player("bob").Energy}
	gs = mustApply(t, gs, bid("bob", 2))
	gs = mustApply(t, gs, bid("alice", 7))
	gs = mustApply(t, gs, act(ActionRevealBids, "bob", nil))

	paid := 0
	for id, e := range before {
		paid += e - gs.Player(id).Energy
	}
	if paid != 9 {
		t.Errorf("total paid = %d, want 9", paid)
	}
	if gs.Bidding.HighestBidder != "alice" || gs.Bidding.TiebreakRoll != nil {
		t.Errorf("winner = %s tiebreak = %v, want alice without a roll", gs.Bidding.HighestBidder, gs.Bidding.TiebreakRoll)
	}
	if !slices.Equal(gs.ActiveTurnOrder, []string{"alice", "bob"}) {
		t.Errorf("order = %v", gs.ActiveTurnOrder)
	}
}

func TestBidding_ReTieRerollsAmongLeaders(t *testing.T) {
	gs := newBiddingState()
	gs = mustApply(t, gs, bid("alice", 1))
	gs = mustApply(t, gs, bid("bob", 1))
	gs = mustApply(t, gs, act(ActionRevealBids, SystemPlayerID, nil), WithRoller(NewScriptedRoller(10, 10, 4, 12)))

	if gs.Bidding.HighestBidder != "bob" {
		t.Errorf("winner = %s, want bob", gs.Bidding.HighestBidder)
	}
	if !maps.Equal(gs.Bidding.TiebreakRoll, map[string]int{"alice": 4, "bob": 12}) {
		t.Errorf("tiebreak = %v, want the deciding round", gs.Bidding.TiebreakRoll)
	}
}

func TestBidding_PersistentTieFallsBackToSeating(t *testing.T) {
	winner, _ := breakTie(NewScriptedRoller(), []string{"bob", "alice"})
	if winner != "bob" {
		t.Errorf("winner = %s, want the first contender", winner)
	}
}

func TestPlaceBid_Rejections(t *testing.T) {
	gs := newBiddingState()
	mustReject(t, gs, bid("alice", 11), RejectIllegal)
	mustReject(t, gs, bid("npc", 0), RejectIllegal)
	mustReject(t, gs, bid("mallory", 1), RejectReferential)
	mustReject(t, gs, bid("alice", -1), RejectStructural)
	mustReject(t, gs, act(ActionPlaceBid, "alice", map[string]any{}), RejectStructural)

	gs = mustApply(t, gs, bid("alice", 3))
	mustReject(t, gs, bid("alice", 2), RejectIllegal)
	mustReject(t, gs, act(ActionRevealBids, "alice", nil), RejectIllegal)
	mustReject(t, gs, act(ActionStartYearTurns, "alice", nil), RejectIllegal)
}

func TestStartYearTurns(t *testing.T) {
	gs := newBiddingState()
	gs.Player("bob").IsAI = true
	gs = mustApply(t, gs, bid("alice", 0))
	gs = mustApply(t, gs, bid("bob", 4))
	gs = mustApply(t, gs, act(ActionRevealBids, SystemPlayerID, nil))
	gs = mustApply(t, gs, act(ActionStartYearTurns, SystemPlayerID, nil))

	if gs.Status != StatusPlaying || gs.CurrentPhase != PhaseCollectDeploy {
		t.Fatalf("status/phase = %s/%d", gs.Status, gs.CurrentPhase)
	}
	if gs.Bidding != nil || gs.Deadline != nil {
		t.Error("bidding substate should be cleared")
	}
	if gs.CurrentPlayerID() != "bob" {
		t.Fatalf("current = %s, want bob", gs.CurrentPlayerID())
	}
	bob := gs.Player("bob")
	if !bob.IncomeCollected || bob.UnitsToPlaceThisTurn != 3 || bob.Energy != 8-4+3 {
		t.Errorf("AI bob should auto-collect: %+v", bob)
	}
	if bob.CurrentBid != nil {
		t.Error("current bid should be cleared")
	}
}

func TestExpireDeadline(t *testing.T) {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	gs := newBiddingState()
	gs.Rules.BidWindowSeconds = 60
	openBidding(gs, t0)
	if gs.Deadline == nil || !gs.Deadline.Equal(t0.Add(time.Minute)) {
		t.Fatalf("deadline = %v, want %v", gs.Deadline, t0.Add(time.Minute))
	}

	gs = mustApply(t, gs, bid("alice", 3))
	mustReject(t, gs, act(ActionExpireDeadline, "alice", nil), RejectIllegal)

	t1 := t0.Add(2 * time.Minute)
	expire := act(ActionExpireDeadline, SystemPlayerID, nil)
	expire.At = t1
	gs = mustApply(t, gs, expire)
	if !gs.Bidding.BidsRevealed || gs.Bidding.BidsSubmitted["bob"] != 0 {
		t.Fatalf("expiry should record bob's 0 bid and reveal: %+v", gs.Bidding)
	}
	if gs.Bidding.HighestBidder != "alice" || gs.Player("alice").Energy != 7 {
		t.Errorf("winner %s alice energy %d, want alice/7", gs.Bidding.HighestBidder, gs.Player("alice").Energy)
	}
	if !gs.Deadline.Equal(t1.Add(time.Minute)) {
		t.Errorf("deadline after reveal = %v", gs.Deadline)
	}

	gs = mustApply(t, gs, act(ActionExpireDeadline, SystemPlayerID, nil))
	if gs.Status != StatusPlaying || gs.CurrentPlayerID() != "alice" {
		t.Errorf("second expiry should start the year, got %s/%s", gs.Status, gs.CurrentPlayerID())
	}
}
