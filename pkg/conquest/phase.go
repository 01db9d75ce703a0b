package conquest

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// advancePhase moves the current player to the next phase. Phase 1 needs
// deployment confirmed and every unit placed; Phase 2 needs an explicit
// phaseComplete; Phase 5 cannot be left with a conquest awaiting move-in.
// Leaving Phase 6 hands the turn to the next player.
func advancePhase(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[AdvancePhaseData](a)
	if err != nil {
		return err
	}
	p := gs.Player(a.PlayerID)
	switch gs.CurrentPhase {
	case PhaseCollectDeploy:
		if !d.DeploymentComplete {
			return illegal("deployment not marked complete")
		}
		if p.UnitsPlacedThisTurn < p.UnitsToPlaceThisTurn {
			return illegal("%d of %d units placed", p.UnitsPlacedThisTurn, p.UnitsToPlaceThisTurn)
		}
	case PhaseBuildHire:
		if !d.PhaseComplete {
			return illegal("build phase not marked complete")
		}
	case PhaseInvade:
		if gs.PendingConquest != nil {
			return illegal("a conquest is awaiting move-in")
		}
		payConquestBonus(gs, p)
	case PhaseFortify:
		AdvanceToNextPlayer(gs, a.At)
		return nil
	}
	gs.CurrentPhase++
	return nil
}

// payConquestBonus grants one energy per ConquestBonusPer contested territories taken this turn.
func payConquestBonus(gs *GameState, p *Player) {
	per := gs.Rules.ConquestBonusPer
	if per <= 0 {
		return
	}
	bonus := p.InvasionStats.ContestedTerritoriesTaken / per
	p.InvasionStats.ConquestBonusEarned = bonus
	p.Energy += bonus
}

func collectAndDeploy(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[CollectAndDeployData](a)
	if err != nil {
		return err
	}
	p := gs.Player(a.PlayerID)
	if p.IncomeCollected {
		return illegal("income already collected this turn")
	}
	inc := CalculateIncome(p, gs)
	if d.EnergyAmount > inc.Energy || d.UnitsToPlace > inc.TotalUnits {
		return illegal("claimed income %d/%d exceeds %d/%d", d.EnergyAmount, d.UnitsToPlace, inc.Energy, inc.TotalUnits)
	}
	collectIncome(gs, p)
	return nil
}

func placeUnit(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[PlaceUnitData](a)
	if err != nil {
		return err
	}
	t := gs.Territory(d.TerritoryID)
	if t == nil {
		return unknown("territory %q", d.TerritoryID)
	}
	if t.OwnerID != a.PlayerID {
		return illegal("%s is not yours", t.ID)
	}
	p := gs.Player(a.PlayerID)
	if p.UnitsPlacedThisTurn >= p.UnitsToPlaceThisTurn {
		return illegal("no units left to place")
	}
	t.MachineCount++
	p.UnitsPlacedThisTurn++
	return nil
}

func purchaseCommander(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[PurchaseCommanderData](a)
	if err != nil {
		return err
	}
	if !d.CommanderType.Valid() {
		return malformed("commander type %q", d.CommanderType)
	}
	t := gs.Territory(d.TerritoryID)
	if t == nil {
		return unknown("territory %q", d.TerritoryID)
	}
	if t.OwnerID != a.PlayerID {
		return illegal("%s is not yours", t.ID)
	}
	if t.Commander(d.CommanderType) != "" {
		return illegal("%s already hosts a %s commander", t.ID, d.CommanderType)
	}
	if loc := gs.CommanderLocation(a.PlayerID, d.CommanderType); loc != "" {
		return illegal("you already have a %s commander at %s", d.CommanderType, loc)
	}
	if err := spend(gs.Player(a.PlayerID), d.Cost, gs.Rules.CommanderCost); err != nil {
		return err
	}
	t.SetCommander(d.CommanderType, a.PlayerID)
	return nil
}

func purchaseSpaceBase(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[PurchaseSpaceBaseData](a)
	if err != nil {
		return err
	}
	t := gs.Territory(d.TerritoryID)
	if t == nil {
		return unknown("territory %q", d.TerritoryID)
	}
	if t.OwnerID != a.PlayerID {
		return illegal("%s is not yours", t.ID)
	}
	if t.SpaceBase != "" {
		return illegal("%s already has a space base", t.ID)
	}
	if err := spend(gs.Player(a.PlayerID), d.Cost, gs.Rules.SpaceBaseCost); err != nil {
		return err
	}
	t.SpaceBase = a.PlayerID
	return nil
}

// spend deducts price after checking the client quoted it and can afford it.
func spend(p *Player, quoted, price int) error {
	if quoted != price {
		return illegal("quoted cost %d does not match price %d", quoted, price)
	}
	if p.Energy < price {
		return illegal("cost %d exceeds energy %d", price, p.Energy)
	}
	p.Energy -= price
	return nil
}

func purchaseCard(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[PurchaseCardData](a)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(gs.Catalog, func(c CardTemplate) bool { return c.Key == d.CardKey })
	if i < 0 {
		return unknown("card %q", d.CardKey)
	}
	tpl := gs.Catalog[i]
	if gs.CommanderLocation(a.PlayerID, tpl.CommanderType) == "" {
		return illegal("%s cards need a live %s commander", tpl.Key, tpl.CommanderType)
	}
	p := gs.Player(a.PlayerID)
	if err := spend(p, tpl.Cost, tpl.Cost); err != nil {
		return err
	}
	p.Cards = append(p.Cards, Card{
		ID:            cardID(gs, a.PlayerID, len(p.Cards)),
		Key:           tpl.Key,
		Title:         tpl.Title,
		CommanderType: tpl.CommanderType,
		Effect:        tpl.Effect,
		Value:         tpl.Value,
	})
	return nil
}

// cardID derives a stable id so replays reproduce identical states.
func cardID(gs *GameState, playerID string, handSize int) string {
	name := fmt.Sprintf("%s/%d/%s/%d", gs.ID, gs.Version, playerID, handSize)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func playCard(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[PlayCardData](a)
	if err != nil {
		return err
	}
	p := gs.Player(a.PlayerID)
	i := slices.IndexFunc(p.Cards, func(c Card) bool { return c.ID == d.CardID })
	if i < 0 {
		return unknown("card %q not in hand", d.CardID)
	}
	card := p.Cards[i]
	switch card.Effect {
	case EffectReinforce:
		if len(d.Targets) == 0 {
			return malformed("%s needs a target territory", card.Key)
		}
		t := gs.Territory(d.Targets[0])
		if t == nil {
			return unknown("territory %q", d.Targets[0])
		}
		if t.OwnerID != a.PlayerID {
			return illegal("%s is not yours", t.ID)
		}
		t.MachineCount += card.Value
	case EffectEnergy:
		p.Energy += card.Value
	}
	p.Cards = slices.Delete(p.Cards, i, i+1)
	return nil
}
