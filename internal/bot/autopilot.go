package bot

import (
	"github.com/freeeve/conquest/pkg/conquest"
)

// Picker returns the strategy driving an AI player. A nil Picker, or a nil
// result, means the heuristic.
type Picker func(playerID string) Strategy

func (p Picker) strategy(playerID string) Strategy {
	if p != nil {
		if s := p(playerID); s != nil {
			return s
		}
	}
	return HeuristicStrategy{}
}

// Autopilot returns the next action the server applies on its own: an AI
// player's move, revealing bids once everyone has bid, or starting the year
// when an AI won the bidding. It returns false when the game is waiting on a
// human (or is over).
func Autopilot(gs *conquest.GameState, pick Picker) (conquest.Action, bool) {
	switch gs.Status {
	case conquest.StatusBidding:
		b := gs.Bidding
		if b == nil {
			return conquest.Action{}, false
		}
		if b.BidsRevealed {
			if len(b.FinalTurnOrder) > 0 && isAI(gs, b.FinalTurnOrder[0]) {
				return conquest.NewAction(conquest.ActionStartYearTurns, conquest.SystemPlayerID, nil), true
			}
			return conquest.Action{}, false
		}
		if len(b.PlayersWaitingToBid) == 0 {
			return conquest.NewAction(conquest.ActionRevealBids, conquest.SystemPlayerID, nil), true
		}
		for _, id := range b.PlayersWaitingToBid {
			if isAI(gs, id) {
				return pick.strategy(id).Decide(gs, id)
			}
		}
	case conquest.StatusPlaying:
		if id := gs.CurrentPlayerID(); isAI(gs, id) {
			return pick.strategy(id).Decide(gs, id)
		}
	}
	return conquest.Action{}, false
}

func isAI(gs *conquest.GameState, playerID string) bool {
	p := gs.Player(playerID)
	return p != nil && p.IsAI && !p.Eliminated
}
