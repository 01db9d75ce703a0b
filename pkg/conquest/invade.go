package conquest

import "slices"

// maxInvasionHistory bounds InvasionStats.LastInvasionResults.
const maxInvasionHistory = 10

func attackTerritory(gs *GameState, a Action, x *applyCtx) error {
	d, err := decodeData[AttackData](a)
	if err != nil {
		return err
	}
	if gs.PendingConquest != nil {
		return illegal("a conquest is awaiting move-in")
	}
	from, to := gs.Territory(d.FromTerritoryID), gs.Territory(d.ToTerritoryID)
	if from == nil {
		return unknown("territory %q", d.FromTerritoryID)
	}
	if to == nil {
		return unknown("territory %q", d.ToTerritoryID)
	}
	if from.OwnerID != a.PlayerID {
		return illegal("%s is not yours", from.ID)
	}
	if to.OwnerID == a.PlayerID {
		return illegal("cannot attack your own territory %s", to.ID)
	}
	if !from.ConnectsTo(to.ID) {
		return illegal("%s does not border %s", from.ID, to.ID)
	}
	if d.AttackingUnits < 1 || d.AttackingUnits >= from.MachineCount {
		return illegal("attacking with %d units from %s leaves no garrison", d.AttackingUnits, from.ID)
	}
	seen := make(map[CommanderType]bool, len(d.CommanderTypes))
	for _, c := range d.CommanderTypes {
		if !c.Valid() || seen[c] {
			return malformed("commander type %q", c)
		}
		seen[c] = true
		if from.Commander(c) != a.PlayerID {
			return illegal("no %s commander at %s", c, from.ID)
		}
	}
	if to.Type == Water && !seen[NavalCommander] && from.NavalCommander != a.PlayerID {
		return illegal("attacking water territory %s requires a naval commander", to.ID)
	}

	p := gs.Player(a.PlayerID)
	if to.OwnerID == "" && to.MachineCount == 0 {
		gs.PendingConquest = &PendingConquest{
			PlayerID:                     a.PlayerID,
			FromTerritoryID:              from.ID,
			ToTerritoryID:                to.ID,
			OriginalAttackingUnits:       d.AttackingUnits,
			MinimumMoveIn:                d.AttackingUnits,
			AvailableForAdditionalMoveIn: from.MachineCount - d.AttackingUnits - 1,
			AttackingCommanders:          slices.Clone(d.CommanderTypes),
			CombatResult: CombatResult{
				AttackerUnitsRemaining: d.AttackingUnits,
				TerritoryConquered:     true,
			},
		}
		p.PendingDecision = &PendingDecision{Type: string(ActionMoveIntoEmpty), TerritoryID: to.ID}
		return nil
	}

	defenders := to.MachineCount
	res := ResolveCombat(x.roller, d.AttackingUnits, d.CommanderTypes, defenders)

	unitLosses := min(res.AttackerLosses, d.AttackingUnits)
	from.MachineCount -= unitLosses
	surviving := slices.Clone(d.CommanderTypes)
	for excess := res.AttackerLosses - unitLosses; excess > 0 && len(surviving) > 0; excess-- {
		lost := surviving[len(surviving)-1]
		surviving = surviving[:len(surviving)-1]
		from.SetCommander(lost, "")
		res.CommandersLost = append(res.CommandersLost, lost)
	}
	to.MachineCount = max(defenders-res.DefenderLosses, 0)

	stats := &p.InvasionStats
	stats.LastInvasionResults = append(stats.LastInvasionResults, res.clone())
	if n := len(stats.LastInvasionResults); n > maxInvasionHistory {
		stats.LastInvasionResults = stats.LastInvasionResults[n-maxInvasionHistory:]
	}

	if !res.TerritoryConquered {
		return nil
	}
	if res.AttackerUnitsRemaining == 0 {
		// Both sides wiped out: the territory falls empty and unowned.
		prev := to.OwnerID
		to.OwnerID = ""
		clearCommanders(to, "")
		to.SpaceBase = ""
		gs.syncPlayerTerritories()
		settleElimination(gs, prev)
		return nil
	}
	gs.PendingConquest = &PendingConquest{
		PlayerID:                     a.PlayerID,
		FromTerritoryID:              from.ID,
		ToTerritoryID:                to.ID,
		OriginalAttackingUnits:       d.AttackingUnits,
		MinimumMoveIn:                res.AttackerUnitsRemaining,
		AvailableForAdditionalMoveIn: max(from.MachineCount-res.AttackerUnitsRemaining-1, 0),
		AttackingCommanders:          surviving,
		CombatResult:                 res,
		ShowDiceResults:              true,
		PreviousOwnerID:              to.OwnerID,
	}
	p.PendingDecision = &PendingDecision{Type: string(ActionConfirmConquest), TerritoryID: to.ID}
	return nil
}

func confirmConquest(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[ConfirmConquestData](a)
	if err != nil {
		return err
	}
	pc := gs.PendingConquest
	if pc == nil || pc.PlayerID != a.PlayerID || !pc.ShowDiceResults {
		return illegal("no conquest awaiting confirmation")
	}
	if d.AdditionalUnits < 0 || d.AdditionalUnits > pc.AvailableForAdditionalMoveIn {
		return illegal("additional units %d exceed the %d available", d.AdditionalUnits, pc.AvailableForAdditionalMoveIn)
	}
	moving := pc.MinimumMoveIn + d.AdditionalUnits
	if gs.Territory(pc.FromTerritoryID).MachineCount-moving < 1 {
		return illegal("moving %d units would empty %s", moving, pc.FromTerritoryID)
	}
	commitConquest(gs, pc, moving)
	return nil
}

func moveIntoEmpty(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[MoveIntoEmptyData](a)
	if err != nil {
		return err
	}
	pc := gs.PendingConquest
	if pc == nil || pc.PlayerID != a.PlayerID || pc.ShowDiceResults {
		return illegal("no empty territory awaiting move-in")
	}
	if d.MovingUnits < 1 || d.MovingUnits >= gs.Territory(pc.FromTerritoryID).MachineCount {
		return illegal("moving %d units would empty %s", d.MovingUnits, pc.FromTerritoryID)
	}
	// The declared attackers move in; any extra comes from the spare garrison.
	if maxMove := pc.MinimumMoveIn + pc.AvailableForAdditionalMoveIn; d.MovingUnits < pc.MinimumMoveIn || d.MovingUnits > maxMove {
		return illegal("moving %d units, must be between %d and %d", d.MovingUnits, pc.MinimumMoveIn, maxMove)
	}
	commitConquest(gs, pc, d.MovingUnits)
	return nil
}

// commitConquest transfers the target to the attacker with moving units.
func commitConquest(gs *GameState, pc *PendingConquest, moving int) {
	from, to := gs.Territory(pc.FromTerritoryID), gs.Territory(pc.ToTerritoryID)
	prev := to.OwnerID

	from.MachineCount -= moving
	to.OwnerID = pc.PlayerID
	to.MachineCount = moving
	clearCommanders(to, pc.PlayerID)
	for _, c := range pc.AttackingCommanders {
		if from.Commander(c) == pc.PlayerID {
			from.SetCommander(c, "")
			to.SetCommander(c, pc.PlayerID)
		}
	}
	if to.SpaceBase != "" {
		to.SpaceBase = pc.PlayerID
	}

	p := gs.Player(pc.PlayerID)
	if prev != "" {
		p.InvasionStats.ContestedTerritoriesTaken++
	}
	p.PendingDecision = nil
	gs.PendingConquest = nil
	gs.syncPlayerTerritories()
	settleElimination(gs, prev)
}

// clearCommanders removes every commander on t not held by keep.
func clearCommanders(t *Territory, keep string) {
	for _, c := range AllCommanderTypes() {
		if holder := t.Commander(c); holder != "" && holder != keep {
			t.SetCommander(c, "")
		}
	}
}

// settleElimination marks playerID eliminated when it owns nothing and ends
// the game once a single contender remains.
func settleElimination(gs *GameState, playerID string) {
	if playerID == "" {
		return
	}
	if p := gs.Player(playerID); p != nil && !p.IsNPC && len(p.Territories) == 0 {
		p.Eliminated = true
		p.PendingDecision = nil
	}
	contenders := 0
	for _, p := range gs.Players {
		if !p.IsNPC && !p.Eliminated {
			contenders++
		}
	}
	if contenders <= 1 {
		finishGame(gs)
	}
}

func fortifyTerritory(gs *GameState, a Action, _ *applyCtx) error {
	d, err := decodeData[FortifyData](a)
	if err != nil {
		return err
	}
	from, to := gs.Territory(d.FromTerritoryID), gs.Territory(d.ToTerritoryID)
	if from == nil {
		return unknown("territory %q", d.FromTerritoryID)
	}
	if to == nil {
		return unknown("territory %q", d.ToTerritoryID)
	}
	if from.ID == to.ID {
		return illegal("source and destination are the same")
	}
	if from.OwnerID != a.PlayerID || to.OwnerID != a.PlayerID {
		return illegal("both territories must be yours")
	}
	if d.UnitCount < 1 || d.UnitCount >= from.MachineCount {
		return illegal("moving %d units would empty %s", d.UnitCount, from.ID)
	}
	if !ConnectedThroughOwned(gs, from.ID, to.ID, a.PlayerID) {
		return illegal("no path of your territories from %s to %s", from.ID, to.ID)
	}
	from.MachineCount -= d.UnitCount
	to.MachineCount += d.UnitCount
	return nil
}

// ConnectedThroughOwned reports whether a path of playerID-owned territories links from and to.
func ConnectedThroughOwned(gs *GameState, from, to, playerID string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range gs.Territories[cur].Connections {
			t := gs.Territories[next]
			if t == nil || t.OwnerID != playerID || visited[next] {
				continue
			}
			if next == to {
				return true
			}
			visited[next] = true
			queue = append(queue, next)
		}
	}
	return false
}
