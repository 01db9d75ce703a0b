package conquest

import (
	"slices"
	"testing"
)

func TestMatchDice(t *testing.T) {
	tests := []struct {
		name               string
		attacker, defender []int
		wantAtk, wantDef   int
	}{
		{"attacker sweeps", []int{6, 4, 2}, []int{5, 3}, 0, 2},
		{"tie goes to defender", []int{3}, []int{3}, 1, 0},
		{"split", []int{5, 5}, []int{6, 1}, 1, 1},
		{"no defender dice", []int{4}, nil, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			atk, def := MatchDice(tt.attacker, tt.defender)
			if atk != tt.wantAtk || def != tt.wantDef {
				t.Errorf("MatchDice = %d/%d, want %d/%d", atk, def, tt.wantAtk, tt.wantDef)
			}
		})
	}
}

func TestResolveCombat_Scripted(t *testing.T) {
	// Two d6 units, one land d8, then two defender d6.
	r := NewScriptedRoller(2, 4, 8, 5, 3)
	res := ResolveCombat(r, 2, []CommanderType{LandCommander}, 2)

	if !slices.Equal(res.AttackerDice, []int{8, 4, 2}) {
		t.Errorf("attacker dice = %v, want [8 4 2]", res.AttackerDice)
	}
	if !slices.Equal(res.DefenderDice, []int{5, 3}) {
		t.Errorf("defender dice = %v, want [5 3]", res.DefenderDice)
	}
	if res.AttackerLosses != 0 || res.DefenderLosses != 2 {
		t.Errorf("losses = %d/%d, want 0/2", res.AttackerLosses, res.DefenderLosses)
	}
	if !res.TerritoryConquered || res.AttackerUnitsRemaining != 2 {
		t.Errorf("conquered=%v remaining=%d, want true/2", res.TerritoryConquered, res.AttackerUnitsRemaining)
	}
}

func TestResolveCombat_Invariants(t *testing.T) {
	for seed := uint64(0); seed < 200; seed++ {
		dice := &DiceState{Seed: seed}
		attacking := int(seed%4) + 1
		defending := int(seed%7) + 1
		var cmds []CommanderType
		if seed%3 == 0 {
			cmds = []CommanderType{NavalCommander, DiplomatCommander}
		}
		res := ResolveCombat(streamRoller{dice: dice}, attacking, cmds, defending)

		if len(res.DefenderDice) != min(defending, MaxDefenderDice) {
			t.Fatalf("seed %d: %d defender dice for %d defenders", seed, len(res.DefenderDice), defending)
		}
		if len(res.AttackerDice) != attacking+len(cmds) {
			t.Fatalf("seed %d: %d attacker dice, want %d", seed, len(res.AttackerDice), attacking+len(cmds))
		}
		pairs := min(len(res.AttackerDice), len(res.DefenderDice))
		if res.AttackerLosses+res.DefenderLosses != pairs {
			t.Errorf("seed %d: losses %d+%d != %d pairings", seed, res.AttackerLosses, res.DefenderLosses, pairs)
		}
		if res.TerritoryConquered != (defending-res.DefenderLosses <= 0) {
			t.Errorf("seed %d: conquered=%v with %d defenders and %d losses", seed, res.TerritoryConquered, defending, res.DefenderLosses)
		}
		if res.AttackerUnitsRemaining != max(attacking-res.AttackerLosses, 0) {
			t.Errorf("seed %d: remaining %d, want %d", seed, res.AttackerUnitsRemaining, max(attacking-res.AttackerLosses, 0))
		}
		if !slices.IsSortedFunc(res.AttackerDice, func(a, b int) int { return b - a }) {
			t.Errorf("seed %d: attacker dice not sorted descending: %v", seed, res.AttackerDice)
		}
	}
}

func TestStreamRoller_Deterministic(t *testing.T) {
	a, b := &DiceState{Seed: 9}, &DiceState{Seed: 9}
	ra, rb := streamRoller{dice: a}, streamRoller{dice: b}
	for i := range 50 {
		x, y := ra.Roll(20), rb.Roll(20)
		if x != y {
			t.Fatalf("draw %d: %d != %d", i, x, y)
		}
		if x < 1 || x > 20 {
			t.Fatalf("draw %d: %d outside 1..20", i, x)
		}
	}
	if a.Draws != 50 {
		t.Errorf("draws = %d, want 50", a.Draws)
	}
}

func TestCommanderDieFaces(t *testing.T) {
	want := map[CommanderType]int{LandCommander: 8, NavalCommander: 8, NuclearCommander: 8, DiplomatCommander: 6}
	for c, faces := range want {
		if got := c.DieFaces(); got != faces {
			t.Errorf("%s faces = %d, want %d", c, got, faces)
		}
	}
}
