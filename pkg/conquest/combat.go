package conquest

// MaxDefenderDice is the most dice a defending territory may roll.
const MaxDefenderDice = 2

// ResolveCombat rolls one attack. The attacker rolls a d6 per unit plus one
// die per selected commander; the defender rolls a d6 per unit, capped at
// MaxDefenderDice. Sorted pools are matched pairwise and ties go to the defender.
func ResolveCombat(r Roller, attackingUnits int, commanders []CommanderType, defendingUnits int) CombatResult {
	attackerFaces := make([]int, 0, attackingUnits+len(commanders))
	for range attackingUnits {
		attackerFaces = append(attackerFaces, 6)
	}
	for _, c := range commanders {
		attackerFaces = append(attackerFaces, c.DieFaces())
	}
	defenderFaces := make([]int, 0, MaxDefenderDice)
	for range min(max(defendingUnits, 0), MaxDefenderDice) {
		defenderFaces = append(defenderFaces, 6)
	}

	res := CombatResult{
		AttackerDice: rollPool(r, attackerFaces),
		DefenderDice: rollPool(r, defenderFaces),
	}
	res.AttackerLosses, res.DefenderLosses = MatchDice(res.AttackerDice, res.DefenderDice)
	res.AttackerUnitsRemaining = max(attackingUnits-res.AttackerLosses, 0)
	res.TerritoryConquered = defendingUnits-res.DefenderLosses <= 0
	return res
}

// MatchDice compares two descending-sorted pools index by index over the
// shorter length. The loser of each pairing loses one unit; ties favor the defender.
func MatchDice(attacker, defender []int) (attackerLosses, defenderLosses int) {
	for i := range min(len(attacker), len(defender)) {
		if attacker[i] > defender[i] {
			defenderLosses++
		} else {
			attackerLosses++
		}
	}
	return attackerLosses, defenderLosses
}
