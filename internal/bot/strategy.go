// Package bot drives AI seats. A Strategy picks one action at a time for a
// player; the session actor keeps asking until the AI has nothing left to do.
package bot

import (
	"slices"

	"github.com/freeeve/conquest/pkg/conquest"
)

// Strategy chooses the next action for an AI player. Decide returns false
// when the player has nothing to do in gs.
type Strategy interface {
	Name() string
	Decide(gs *conquest.GameState, playerID string) (conquest.Action, bool)
}

// Names lists the strategies ForName understands.
func Names() []string {
	return []string{"heuristic", "random", "passive"}
}

// ForName returns the strategy with the given name. Unknown names get the heuristic.
func ForName(name string) Strategy {
	switch name {
	case "random":
		return RandomStrategy{}
	case "passive":
		return PassiveStrategy{}
	default:
		return HeuristicStrategy{}
	}
}

// policy makes the discretionary choices of a strategy. decide handles the
// sequencing every strategy shares.
type policy interface {
	bid(gs *conquest.GameState, p *conquest.Player) int
	placement(gs *conquest.GameState, playerID string) string
	hire(gs *conquest.GameState, p *conquest.Player) (conquest.Action, bool)
	buyCard(gs *conquest.GameState, p *conquest.Player) (string, bool)
	playCard(gs *conquest.GameState, p *conquest.Player) (conquest.PlayCardData, bool)
	attack(gs *conquest.GameState, playerID string) (conquest.AttackData, bool)
	additionalMoveIn(gs *conquest.GameState, pc *conquest.PendingConquest) int
	fortify(gs *conquest.GameState, playerID string) (conquest.FortifyData, bool)
}

func decide(gs *conquest.GameState, playerID string, pol policy) (conquest.Action, bool) {
	p := gs.Player(playerID)
	if p == nil || p.Eliminated || p.IsNPC {
		return conquest.Action{}, false
	}
	switch gs.Status {
	case conquest.StatusBidding:
		b := gs.Bidding
		if b == nil || b.BidsRevealed || !slices.Contains(b.PlayersWaitingToBid, playerID) {
			return conquest.Action{}, false
		}
		amount := min(max(pol.bid(gs, p), 0), p.Energy)
		return conquest.NewAction(conquest.ActionPlaceBid, playerID, conquest.PlaceBidData{Amount: amount}), true
	case conquest.StatusPlaying:
		if gs.CurrentPlayerID() != playerID {
			return conquest.Action{}, false
		}
		return turn(gs, p, pol), true
	}
	return conquest.Action{}, false
}

func turn(gs *conquest.GameState, p *conquest.Player, pol policy) conquest.Action {
	id := p.ID
	if pc := gs.PendingConquest; pc != nil && pc.PlayerID == id {
		return moveIn(gs, pc, pol)
	}
	switch gs.CurrentPhase {
	case conquest.PhaseCollectDeploy:
		if !p.IncomeCollected {
			inc := conquest.CalculateIncome(p, gs)
			return conquest.NewAction(conquest.ActionCollectAndDeploy, id,
				conquest.CollectAndDeployData{EnergyAmount: inc.Energy, UnitsToPlace: inc.TotalUnits})
		}
		if p.UnitsPlacedThisTurn < p.UnitsToPlaceThisTurn {
			if target := pol.placement(gs, id); target != "" {
				return conquest.NewAction(conquest.ActionPlaceUnit, id, conquest.PlaceUnitData{TerritoryID: target})
			}
		}
		return conquest.NewAction(conquest.ActionAdvancePhase, id, conquest.AdvancePhaseData{DeploymentComplete: true})
	case conquest.PhaseBuildHire:
		if a, ok := pol.hire(gs, p); ok {
			return a
		}
		return conquest.NewAction(conquest.ActionAdvancePhase, id, conquest.AdvancePhaseData{PhaseComplete: true})
	case conquest.PhaseBuyCards:
		if key, ok := pol.buyCard(gs, p); ok {
			return conquest.NewAction(conquest.ActionPurchaseCard, id, conquest.PurchaseCardData{CardKey: key})
		}
	case conquest.PhasePlayCards:
		if d, ok := pol.playCard(gs, p); ok {
			return conquest.NewAction(conquest.ActionPlayCard, id, d)
		}
	case conquest.PhaseInvade:
		if d, ok := pol.attack(gs, id); ok {
			return conquest.NewAction(conquest.ActionAttackTerritory, id, d)
		}
	case conquest.PhaseFortify:
		if d, ok := pol.fortify(gs, id); ok {
			return conquest.NewAction(conquest.ActionFortifyTerritory, id, d)
		}
	}
	return conquest.NewAction(conquest.ActionAdvancePhase, id, conquest.AdvancePhaseData{})
}

// moveIn settles a pending conquest, keeping at least one unit behind.
func moveIn(gs *conquest.GameState, pc *conquest.PendingConquest, pol policy) conquest.Action {
	from := gs.Territory(pc.FromTerritoryID)
	extra := min(max(pol.additionalMoveIn(gs, pc), 0), pc.AvailableForAdditionalMoveIn)
	if !pc.ShowDiceResults {
		moving := min(max(pc.MinimumMoveIn+extra, 1), from.MachineCount-1)
		return conquest.NewAction(conquest.ActionMoveIntoEmpty, pc.PlayerID, conquest.MoveIntoEmptyData{MovingUnits: moving})
	}
	extra = min(extra, from.MachineCount-pc.MinimumMoveIn-1)
	return conquest.NewAction(conquest.ActionConfirmConquest, pc.PlayerID, conquest.ConfirmConquestData{AdditionalUnits: max(extra, 0)})
}

// PassiveStrategy bids nothing, stacks every unit on one territory and
// never attacks. It is the fallback when another strategy's action is rejected.
type PassiveStrategy struct{}

func (PassiveStrategy) Name() string { return "passive" }

func (s PassiveStrategy) Decide(gs *conquest.GameState, playerID string) (conquest.Action, bool) {
	return decide(gs, playerID, s)
}

func (PassiveStrategy) bid(*conquest.GameState, *conquest.Player) int { return 0 }

func (PassiveStrategy) placement(gs *conquest.GameState, playerID string) string {
	if owned := gs.OwnedBy(playerID); len(owned) > 0 {
		return owned[0]
	}
	return ""
}

func (PassiveStrategy) hire(*conquest.GameState, *conquest.Player) (conquest.Action, bool) {
	return conquest.Action{}, false
}

func (PassiveStrategy) buyCard(*conquest.GameState, *conquest.Player) (string, bool) { return "", false }

func (PassiveStrategy) playCard(*conquest.GameState, *conquest.Player) (conquest.PlayCardData, bool) {
	return conquest.PlayCardData{}, false
}

func (PassiveStrategy) attack(*conquest.GameState, string) (conquest.AttackData, bool) {
	return conquest.AttackData{}, false
}

func (PassiveStrategy) additionalMoveIn(*conquest.GameState, *conquest.PendingConquest) int { return 0 }

func (PassiveStrategy) fortify(*conquest.GameState, string) (conquest.FortifyData, bool) {
	return conquest.FortifyData{}, false
}
