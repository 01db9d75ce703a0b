package bot

import (
	"github.com/freeeve/conquest/pkg/conquest"
)

// hostileNeighbors returns the neighbors of t not owned by playerID.
func hostileNeighbors(gs *conquest.GameState, t *conquest.Territory, playerID string) []*conquest.Territory {
	var out []*conquest.Territory
	for _, id := range t.Connections {
		n := gs.Territory(id)
		if n != nil && n.OwnerID != playerID {
			out = append(out, n)
		}
	}
	return out
}

// threat scores how exposed t is: hostile units next to it minus its garrison.
func threat(gs *conquest.GameState, t *conquest.Territory, playerID string) int {
	score := -t.MachineCount
	for _, n := range hostileNeighbors(gs, t, playerID) {
		if n.OwnerID != "" {
			score += n.MachineCount
		}
	}
	return score
}

// borders returns the owned territories touching a territory playerID does not own.
func borders(gs *conquest.GameState, playerID string) []*conquest.Territory {
	var out []*conquest.Territory
	for _, id := range gs.OwnedBy(playerID) {
		t := gs.Territory(id)
		if len(hostileNeighbors(gs, t, playerID)) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// mostThreatened returns the border territory with the highest threat, or
// the first owned territory when playerID has no border.
func mostThreatened(gs *conquest.GameState, playerID string) string {
	var best *conquest.Territory
	bestScore := 0
	for _, t := range borders(gs, playerID) {
		if s := threat(gs, t, playerID); best == nil || s > bestScore {
			best, bestScore = t, s
		}
	}
	if best != nil {
		return best.ID
	}
	if owned := gs.OwnedBy(playerID); len(owned) > 0 {
		return owned[0]
	}
	return ""
}

// commandersAt lists the commander types playerID holds on t.
func commandersAt(t *conquest.Territory, playerID string) []conquest.CommanderType {
	var out []conquest.CommanderType
	for _, c := range conquest.AllCommanderTypes() {
		if t.Commander(c) == playerID {
			out = append(out, c)
		}
	}
	return out
}

// canReach reports whether an attack from t onto n is allowed by the naval rule.
func canReach(t, n *conquest.Territory, playerID string) bool {
	return n.Type != conquest.Water || t.NavalCommander == playerID
}

// attackCandidate is a scored legal attack.
type attackCandidate struct {
	from, to *conquest.Territory
	score    int
}

// attackCandidates lists every attack playerID could legally launch, scored
// by the attacker's surplus over the defender.
func attackCandidates(gs *conquest.GameState, playerID string) []attackCandidate {
	var out []attackCandidate
	for _, id := range gs.OwnedBy(playerID) {
		from := gs.Territory(id)
		if from.MachineCount < 2 {
			continue
		}
		for _, to := range hostileNeighbors(gs, from, playerID) {
			if !canReach(from, to, playerID) {
				continue
			}
			out = append(out, attackCandidate{from: from, to: to, score: from.MachineCount - 1 - to.MachineCount})
		}
	}
	return out
}

// fortifyMove finds an interior territory with spare units and a border
// territory it can reach through owned land.
func fortifyMove(gs *conquest.GameState, playerID string) (conquest.FortifyData, bool) {
	edge := borders(gs, playerID)
	if len(edge) == 0 {
		return conquest.FortifyData{}, false
	}
	for _, id := range gs.OwnedBy(playerID) {
		from := gs.Territory(id)
		if from.MachineCount < 2 || len(hostileNeighbors(gs, from, playerID)) > 0 {
			continue
		}
		for _, to := range edge {
			if conquest.ConnectedThroughOwned(gs, from.ID, to.ID, playerID) {
				return conquest.FortifyData{
					FromTerritoryID: from.ID,
					ToTerritoryID:   to.ID,
					UnitCount:       from.MachineCount - 1,
				}, true
			}
		}
	}
	return conquest.FortifyData{}, false
}
