package conquest

import (
	"math/rand/v2"
	"slices"
)

// Roller produces uniform die rolls in 1..faces.
type Roller interface {
	Roll(faces int) int
}

// streamRoller draws from the game's persisted dice stream. Each draw is
// derived from (seed, draw index) so a replay of the same actions yields
// the same rolls.
type streamRoller struct {
	dice *DiceState
}

func (r streamRoller) Roll(faces int) int {
	rng := rand.New(rand.NewPCG(r.dice.Seed, r.dice.Draws))
	r.dice.Draws++
	return rng.IntN(faces) + 1
}

// ScriptedRoller returns a fixed sequence of rolls. Once exhausted it
// returns 1. Used by tests and by replays of externally recorded dice.
type ScriptedRoller struct {
	Rolls []int
	next  int
}

// NewScriptedRoller creates a ScriptedRoller over rolls.
func NewScriptedRoller(rolls ...int) *ScriptedRoller {
	return &ScriptedRoller{Rolls: rolls}
}

func (r *ScriptedRoller) Roll(faces int) int {
	if r.next >= len(r.Rolls) {
		return 1
	}
	v := r.Rolls[r.next]
	r.next++
	return min(max(v, 1), faces)
}

// rollPool rolls one die per entry of faces and returns the results sorted descending.
func rollPool(r Roller, faces []int) []int {
	out := make([]int, len(faces))
	for i, f := range faces {
		out[i] = r.Roll(f)
	}
	sortDesc(out)
	return out
}

func sortDesc(v []int) {
	slices.SortFunc(v, func(a, b int) int { return b - a })
}
