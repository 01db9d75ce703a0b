package bot

import (
	"github.com/freeeve/conquest/pkg/conquest"
)

// RandomStrategy makes random but legal choices. Useful for soak tests.
type RandomStrategy struct{}

func (RandomStrategy) Name() string { return "random" }

func (s RandomStrategy) Decide(gs *conquest.GameState, playerID string) (conquest.Action, bool) {
	return decide(gs, playerID, s)
}

func (RandomStrategy) bid(_ *conquest.GameState, p *conquest.Player) int {
	return botIntn(min(p.Energy, 3) + 1)
}

func (RandomStrategy) placement(gs *conquest.GameState, playerID string) string {
	owned := gs.OwnedBy(playerID)
	if len(owned) == 0 {
		return ""
	}
	return owned[botIntn(len(owned))]
}

func (RandomStrategy) hire(gs *conquest.GameState, p *conquest.Player) (conquest.Action, bool) {
	if p.Energy < gs.Rules.CommanderCost || botFloat64() < 0.7 {
		return conquest.Action{}, false
	}
	owned := gs.OwnedBy(p.ID)
	if len(owned) == 0 {
		return conquest.Action{}, false
	}
	types := conquest.AllCommanderTypes()
	c := types[botIntn(len(types))]
	at := owned[botIntn(len(owned))]
	if gs.CommanderLocation(p.ID, c) != "" || gs.Territory(at).Commander(c) != "" {
		return conquest.Action{}, false
	}
	return conquest.NewAction(conquest.ActionPurchaseCommander, p.ID, conquest.PurchaseCommanderData{
		TerritoryID: at, CommanderType: c, Cost: gs.Rules.CommanderCost,
	}), true
}

func (RandomStrategy) buyCard(*conquest.GameState, *conquest.Player) (string, bool) { return "", false }

func (RandomStrategy) playCard(*conquest.GameState, *conquest.Player) (conquest.PlayCardData, bool) {
	return conquest.PlayCardData{}, false
}

// Attacks a random candidate half of the time.
func (RandomStrategy) attack(gs *conquest.GameState, playerID string) (conquest.AttackData, bool) {
	cands := attackCandidates(gs, playerID)
	if len(cands) == 0 || botFloat64() < 0.5 {
		return conquest.AttackData{}, false
	}
	c := cands[botIntn(len(cands))]
	return conquest.AttackData{
		FromTerritoryID: c.from.ID,
		ToTerritoryID:   c.to.ID,
		AttackingUnits:  1 + botIntn(c.from.MachineCount-1),
		CommanderTypes:  commandersAt(c.from, playerID),
	}, true
}

func (RandomStrategy) additionalMoveIn(_ *conquest.GameState, pc *conquest.PendingConquest) int {
	return botIntn(pc.AvailableForAdditionalMoveIn + 1)
}

func (RandomStrategy) fortify(*conquest.GameState, string) (conquest.FortifyData, bool) {
	return conquest.FortifyData{}, false
}
