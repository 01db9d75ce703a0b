package bot

import (
	"slices"

	"github.com/freeeve/conquest/pkg/conquest"
)

// HeuristicStrategy plays greedily: it reinforces its most threatened
// border, hires a land commander early, and attacks only with a clear
// numerical edge.
type HeuristicStrategy struct{}

func (HeuristicStrategy) Name() string { return "heuristic" }

func (s HeuristicStrategy) Decide(gs *conquest.GameState, playerID string) (conquest.Action, bool) {
	return decide(gs, playerID, s)
}

// Bids a fifth of the bank; going first matters less than spending later.
func (HeuristicStrategy) bid(_ *conquest.GameState, p *conquest.Player) int {
	return p.Energy / 5
}

func (HeuristicStrategy) placement(gs *conquest.GameState, playerID string) string {
	return mostThreatened(gs, playerID)
}

func (HeuristicStrategy) hire(gs *conquest.GameState, p *conquest.Player) (conquest.Action, bool) {
	cost := gs.Rules.CommanderCost
	if gs.CommanderLocation(p.ID, conquest.LandCommander) == "" && p.Energy >= cost+2 {
		if at := mostThreatened(gs, p.ID); at != "" && gs.Territory(at).LandCommander == "" {
			return conquest.NewAction(conquest.ActionPurchaseCommander, p.ID, conquest.PurchaseCommanderData{
				TerritoryID: at, CommanderType: conquest.LandCommander, Cost: cost,
			}), true
		}
	}
	if gs.CommanderLocation(p.ID, conquest.NavalCommander) == "" && p.Energy >= cost+4 {
		for _, id := range gs.OwnedBy(p.ID) {
			t := gs.Territory(id)
			if t.NavalCommander != "" {
				continue
			}
			for _, n := range hostileNeighbors(gs, t, p.ID) {
				if n.Type == conquest.Water {
					return conquest.NewAction(conquest.ActionPurchaseCommander, p.ID, conquest.PurchaseCommanderData{
						TerritoryID: t.ID, CommanderType: conquest.NavalCommander, Cost: cost,
					}), true
				}
			}
		}
	}
	return conquest.Action{}, false
}

func (HeuristicStrategy) buyCard(gs *conquest.GameState, p *conquest.Player) (string, bool) {
	if len(p.Cards) >= 2 {
		return "", false
	}
	var best *conquest.CardTemplate
	for i := range gs.Catalog {
		c := &gs.Catalog[i]
		if c.Effect != conquest.EffectReinforce && c.Effect != conquest.EffectEnergy {
			continue
		}
		if c.Cost >= p.Energy || gs.CommanderLocation(p.ID, c.CommanderType) == "" {
			continue
		}
		if best == nil || c.Cost < best.Cost {
			best = c
		}
	}
	if best == nil {
		return "", false
	}
	return best.Key, true
}

func (HeuristicStrategy) playCard(gs *conquest.GameState, p *conquest.Player) (conquest.PlayCardData, bool) {
	for _, c := range p.Cards {
		switch c.Effect {
		case conquest.EffectReinforce:
			if target := mostThreatened(gs, p.ID); target != "" {
				return conquest.PlayCardData{CardID: c.ID, Targets: []string{target}}, true
			}
		case conquest.EffectEnergy:
			return conquest.PlayCardData{CardID: c.ID, Targets: []string{}}, true
		}
	}
	return conquest.PlayCardData{}, false
}

// Attacks the weakest reachable target when the attacker leads by two units.
func (HeuristicStrategy) attack(gs *conquest.GameState, playerID string) (conquest.AttackData, bool) {
	cands := attackCandidates(gs, playerID)
	slices.SortStableFunc(cands, func(a, b attackCandidate) int { return b.score - a.score })
	for _, c := range cands {
		if c.score < 2 {
			break
		}
		return conquest.AttackData{
			FromTerritoryID: c.from.ID,
			ToTerritoryID:   c.to.ID,
			AttackingUnits:  c.from.MachineCount - 1,
			CommanderTypes:  commandersAt(c.from, playerID),
		}, true
	}
	return conquest.AttackData{}, false
}

// Moves half of the spare units forward.
func (HeuristicStrategy) additionalMoveIn(_ *conquest.GameState, pc *conquest.PendingConquest) int {
	return pc.AvailableForAdditionalMoveIn / 2
}

func (HeuristicStrategy) fortify(gs *conquest.GameState, playerID string) (conquest.FortifyData, bool) {
	return fortifyMove(gs, playerID)
}
