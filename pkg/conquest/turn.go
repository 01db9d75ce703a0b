package conquest

import (
	"cmp"
	"slices"
	"time"
)

// AdvanceToNextPlayer passes the turn to the next live player in
// ActiveTurnOrder. Wrapping past the last player ends the year: the next
// year opens a new bidding round, and finishing the final year ends the game.
func AdvanceToNextPlayer(gs *GameState, at time.Time) {
	gs.PendingConquest = nil
	for next := gs.CurrentPlayerIndex + 1; next < len(gs.ActiveTurnOrder); next++ {
		p := gs.Player(gs.ActiveTurnOrder[next])
		if p == nil || p.Eliminated {
			continue
		}
		gs.CurrentPlayerIndex = next
		gs.CurrentPhase = PhaseCollectDeploy
		beginTurn(gs, p.ID)
		return
	}
	advanceYear(gs, at)
}

func advanceYear(gs *GameState, at time.Time) {
	for i := range gs.Players {
		resetTurnCounters(&gs.Players[i])
	}
	if gs.CurrentYear >= gs.Rules.MaxYear {
		finishGame(gs)
		return
	}
	gs.CurrentYear++
	openBidding(gs, at)
}

// beginTurn resets the player's per-turn counters. AI players collect their
// income immediately; humans must send collect_and_deploy.
func beginTurn(gs *GameState, playerID string) {
	p := gs.Player(playerID)
	if p == nil {
		return
	}
	resetTurnCounters(p)
	if p.IsAI {
		collectIncome(gs, p)
	}
}

func resetTurnCounters(p *Player) {
	p.IncomeCollected = false
	p.UnitsToPlaceThisTurn = 0
	p.UnitsPlacedThisTurn = 0
	p.PendingDecision = nil
	p.InvasionStats.ContestedTerritoriesTaken = 0
	p.InvasionStats.ConquestBonusEarned = 0
}

func collectIncome(gs *GameState, p *Player) Income {
	inc := CalculateIncome(p, gs)
	p.Energy += inc.Energy
	p.UnitsToPlaceThisTurn = inc.TotalUnits
	p.IncomeCollected = true
	return inc
}

// finishGame ends the game and records the leader as winner.
func finishGame(gs *GameState) {
	gs.Status = StatusFinished
	gs.Bidding = nil
	gs.PendingConquest = nil
	gs.Deadline = nil
	if gs.CurrentYear > gs.Rules.MaxYear {
		gs.CurrentYear = gs.Rules.MaxYear
	}
	if s := Standings(gs); len(s) > 0 {
		gs.WinnerID = s[0].PlayerID
	}
}

// Standing is one row of the end-of-game ranking.
type Standing struct {
	PlayerID    string `json:"playerId"`
	Territories int    `json:"territories"`
	Units       int    `json:"units"`
	Energy      int    `json:"energy"`
}

// Standings ranks non-NPC players by territories, then units, then energy,
// then seating order.
func Standings(gs *GameState) []Standing {
	var out []Standing
	for _, p := range gs.Players {
		if p.IsNPC {
			continue
		}
		out = append(out, Standing{
			PlayerID:    p.ID,
			Territories: len(gs.OwnedBy(p.ID)),
			Units:       gs.TotalUnits(p.ID),
			Energy:      p.Energy,
		})
	}
	slices.SortStableFunc(out, func(a, b Standing) int {
		return cmp.Or(
			cmp.Compare(b.Territories, a.Territories),
			cmp.Compare(b.Units, a.Units),
			cmp.Compare(b.Energy, a.Energy),
		)
	})
	return out
}
