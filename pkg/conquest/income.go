package conquest

// Income is the Phase 1 income breakdown for a player.
type Income struct {
	TerritorialBonus    int `json:"territorialBonus"`
	ContinentalBonus    int `json:"continentalBonus"`
	Energy              int `json:"energy"`
	BaseUnits           int `json:"baseUnits"`
	SpaceBaseBonusUnits int `json:"spaceBaseBonusUnits"`
	TotalUnits          int `json:"totalUnits"`
}

// CalculateIncome derives a player's income from the current board. It is
// recomputed every Phase 1 because ownership changes from turn to turn.
// Ownership is read from the territory map, not from the player's cached list.
func CalculateIncome(p *Player, gs *GameState) Income {
	owned := 0
	spaceBases := 0
	for _, t := range gs.Territories {
		if t.OwnerID != p.ID {
			continue
		}
		owned++
		if t.SpaceBase == p.ID {
			spaceBases++
		}
	}

	inc := Income{
		TerritorialBonus:    owned / 3,
		ContinentalBonus:    ContinentalBonus(p.ID, gs),
		SpaceBaseBonusUnits: spaceBases,
	}
	floor := gs.Rules.MinimumEnergy
	if floor == 0 {
		floor = DefaultRules().MinimumEnergy
	}
	inc.Energy = max(floor, inc.TerritorialBonus+inc.ContinentalBonus)
	inc.BaseUnits = inc.Energy
	inc.TotalUnits = inc.BaseUnits + inc.SpaceBaseBonusUnits
	return inc
}

// ContinentalBonus sums the bonus of every continent playerID fully controls.
func ContinentalBonus(playerID string, gs *GameState) int {
	bonus := 0
	for _, c := range gs.Continents {
		if ControlsContinent(playerID, c, gs) {
			bonus += c.Bonus
		}
	}
	return bonus
}

// ControlsContinent reports whether every territory of c is owned by playerID.
func ControlsContinent(playerID string, c Continent, gs *GameState) bool {
	if len(c.Territories) == 0 {
		return false
	}
	for _, id := range c.Territories {
		t := gs.Territories[id]
		if t == nil || t.OwnerID != playerID {
			return false
		}
	}
	return true
}
