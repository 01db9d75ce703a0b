package conquest

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"
)

// Seat describes a player joining a new game.
type Seat struct {
	ID    string
	Name  string
	Color string
	IsAI  bool
	IsNPC bool
}

var defaultColors = []string{"red", "blue", "green", "yellow", "purple", "orange", "teal", "grey"}

// ErrInvalidSeats is returned by NewGame when the seating cannot start a game.
var ErrInvalidSeats = errors.New("invalid seats")

// NewGame builds the setup state for a board. Land territories are dealt
// round-robin in an order shuffled by seed, each with the starting garrison;
// water territories start empty and unowned. The same seed always deals the
// same board.
func NewGame(id string, b *Board, seats []Seat, seed uint64, at time.Time) (*GameState, error) {
	contenders := 0
	ids := make(map[string]bool, len(seats))
	for _, s := range seats {
		if s.ID == "" || s.ID == SystemPlayerID || ids[s.ID] {
			return nil, fmt.Errorf("%w: bad or duplicate id %q", ErrInvalidSeats, s.ID)
		}
		ids[s.ID] = true
		if !s.IsNPC {
			contenders++
		}
	}
	if contenders < 2 {
		return nil, fmt.Errorf("%w: need at least two players, have %d", ErrInvalidSeats, contenders)
	}
	land := b.LandIDs()
	if len(land) < len(seats) {
		return nil, fmt.Errorf("%w: %d seats for %d land territories", ErrInvalidSeats, len(seats), len(land))
	}

	at = at.UTC()
	gs := &GameState{
		ID:          id,
		Status:      StatusSetup,
		CurrentYear: 1,
		Players:     make([]Player, len(seats)),
		Territories: make(map[string]*Territory, len(b.Territories)),
		Continents:  make([]Continent, len(b.Continents)),
		Rules:       b.Rules,
		Catalog:     slices.Clone(b.Cards),
		Dice:        DiceState{Seed: seed},
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	for i, s := range seats {
		color := s.Color
		if color == "" {
			color = defaultColors[i%len(defaultColors)]
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		gs.Players[i] = Player{
			ID:          s.ID,
			Name:        name,
			Color:       color,
			IsAI:        s.IsAI,
			IsNPC:       s.IsNPC,
			Energy:      b.Rules.StartingEnergy,
			Territories: []string{},
			Cards:       []Card{},
		}
	}
	for _, t := range b.Territories {
		gs.Territories[t.ID] = &Territory{
			ID:          t.ID,
			Name:        t.Name,
			Continent:   t.Continent,
			Type:        t.Type,
			Connections: slices.Clone(t.Connections),
		}
	}
	for i, c := range b.Continents {
		c.Territories = slices.Clone(c.Territories)
		gs.Continents[i] = c
	}

	rng := rand.New(rand.NewPCG(seed, uint64(len(land))))
	rng.Shuffle(len(land), func(i, j int) { land[i], land[j] = land[j], land[i] })
	for i, tid := range land {
		t := gs.Territories[tid]
		t.OwnerID = seats[i%len(seats)].ID
		t.MachineCount = b.Rules.StartingUnits
	}
	gs.syncPlayerTerritories()
	return gs, nil
}

// BeginBidding moves a setup game into the year-one auction. It returns a
// new state and leaves gs untouched.
func BeginBidding(gs *GameState, at time.Time) (*GameState, error) {
	if gs.Status != StatusSetup {
		return nil, illegal("game %s is %s, not setup", gs.ID, gs.Status)
	}
	next := gs.Clone()
	next.CurrentYear = 1
	openBidding(next, at)
	next.Version++
	if !at.IsZero() {
		next.UpdatedAt = at.UTC()
	}
	return next, nil
}
