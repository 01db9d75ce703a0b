package conquest

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// GameStatus represents the overall game status.
type GameStatus string

const (
	StatusSetup    GameStatus = "setup"
	StatusBidding  GameStatus = "bidding"
	StatusPlaying  GameStatus = "playing"
	StatusFinished GameStatus = "finished"
)

// Phase is one of the six per-turn stages.
type Phase int

const (
	PhaseCollectDeploy Phase = iota + 1
	PhaseBuildHire
	PhaseBuyCards
	PhasePlayCards
	PhaseInvade
	PhaseFortify
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseCollectDeploy:
		return "collect_deploy"
	case PhaseBuildHire:
		return "build_hire"
	case PhaseBuyCards:
		return "buy_cards"
	case PhasePlayCards:
		return "play_cards"
	case PhaseInvade:
		return "invade"
	case PhaseFortify:
		return "fortify"
	}
	return "unknown"
}

// TerritoryType distinguishes land from water territories.
type TerritoryType string

const (
	Land  TerritoryType = "land"
	Water TerritoryType = "water"
)

// CommanderType is one of the four commander kinds.
type CommanderType string

const (
	LandCommander     CommanderType = "land"
	DiplomatCommander CommanderType = "diplomat"
	NavalCommander    CommanderType = "naval"
	NuclearCommander  CommanderType = "nuclear"
)

// AllCommanderTypes lists the commander kinds in a stable order.
func AllCommanderTypes() []CommanderType {
	return []CommanderType{LandCommander, DiplomatCommander, NavalCommander, NuclearCommander}
}

// Valid reports whether c names a known commander type.
func (c CommanderType) Valid() bool {
	return slices.Contains(AllCommanderTypes(), c)
}

// DieFaces returns the die a commander rolls in combat.
func (c CommanderType) DieFaces() int {
	if c == DiplomatCommander {
		return 6
	}
	return 8
}

// GameState is the complete replicated state of one game session.
// It is only mutated by Apply, which always works on a Clone.
type GameState struct {
	ID                 string                `json:"id"`
	Status             GameStatus            `json:"status"`
	CurrentYear        int                   `json:"currentYear"`
	CurrentPhase       Phase                 `json:"currentPhase"`
	CurrentPlayerIndex int                   `json:"currentPlayerIndex"`
	ActiveTurnOrder    []string              `json:"activeTurnOrder"`
	Players            []Player              `json:"players"`
	Territories        map[string]*Territory `json:"territories"`
	Continents         []Continent           `json:"continents"`
	Rules              Rules                 `json:"rules"`
	Catalog            []CardTemplate        `json:"catalog,omitempty"`
	Bidding            *BiddingState         `json:"bidding,omitempty"`
	PendingConquest    *PendingConquest      `json:"pendingConquest,omitempty"`
	TurnOrderHistory   map[int][]string      `json:"turnOrderHistory,omitempty"`
	WinnerID           string                `json:"winnerId,omitempty"`
	Dice               DiceState             `json:"dice"`
	Deadline           *time.Time            `json:"deadline,omitempty"`
	Version            int64                 `json:"version"`
	ActionLog          []ActionLogEntry      `json:"actionLog,omitempty"`
	CreatedAt          time.Time             `json:"createdAt"`
	UpdatedAt          time.Time             `json:"updatedAt"`
}

// Player is a seat in the game.
type Player struct {
	ID                   string           `json:"id"`
	Name                 string           `json:"name"`
	Color                string           `json:"color"`
	IsAI                 bool             `json:"isAI,omitempty"`
	IsNPC                bool             `json:"isNPC,omitempty"`
	Eliminated           bool             `json:"eliminated,omitempty"`
	Energy               int              `json:"energy"`
	Territories          []string         `json:"territories"`
	Cards                []Card           `json:"cards"`
	CurrentBid           *int             `json:"currentBid,omitempty"`
	IncomeCollected      bool             `json:"incomeCollected,omitempty"`
	UnitsToPlaceThisTurn int              `json:"unitsToPlaceThisTurn"`
	UnitsPlacedThisTurn  int              `json:"unitsPlacedThisTurn"`
	InvasionStats        InvasionStats    `json:"invasionStats"`
	PendingDecision      *PendingDecision `json:"pendingDecision,omitempty"`
}

// InvasionStats tracks a player's Phase 5 results for the current turn.
type InvasionStats struct {
	ContestedTerritoriesTaken int            `json:"contestedTerritoriesTaken"`
	ConquestBonusEarned       int            `json:"conquestBonusEarned"`
	LastInvasionResults       []CombatResult `json:"lastInvasionResults,omitempty"`
}

// PendingDecision tells a client which follow-up action the engine is waiting for.
type PendingDecision struct {
	Type        string `json:"type"`
	TerritoryID string `json:"territoryId,omitempty"`
}

// Territory is a node of the board graph.
type Territory struct {
	ID                string        `json:"id"`
	Name              string        `json:"name"`
	Continent         string        `json:"continent,omitempty"`
	OwnerID           string        `json:"ownerId,omitempty"`
	MachineCount      int           `json:"machineCount"`
	Connections       []string      `json:"connections"`
	Type              TerritoryType `json:"type"`
	LandCommander     string        `json:"landCommander,omitempty"`
	DiplomatCommander string        `json:"diplomatCommander,omitempty"`
	NavalCommander    string        `json:"navalCommander,omitempty"`
	NuclearCommander  string        `json:"nuclearCommander,omitempty"`
	SpaceBase         string        `json:"spaceBase,omitempty"`
}

// Commander returns the player holding the given commander slot, or "".
func (t *Territory) Commander(c CommanderType) string {
	switch c {
	case LandCommander:
		return t.LandCommander
	case DiplomatCommander:
		return t.DiplomatCommander
	case NavalCommander:
		return t.NavalCommander
	case NuclearCommander:
		return t.NuclearCommander
	}
	return ""
}

// SetCommander assigns (or clears, with "") a commander slot.
func (t *Territory) SetCommander(c CommanderType, playerID string) {
	switch c {
	case LandCommander:
		t.LandCommander = playerID
	case DiplomatCommander:
		t.DiplomatCommander = playerID
	case NavalCommander:
		t.NavalCommander = playerID
	case NuclearCommander:
		t.NuclearCommander = playerID
	}
}

// ConnectsTo reports whether other is adjacent to t.
func (t *Territory) ConnectsTo(other string) bool {
	return slices.Contains(t.Connections, other)
}

// Continent is a set of territories granting a bonus to a sole owner.
type Continent struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Bonus       int      `json:"bonus" yaml:"bonus"`
	Territories []string `json:"territories" yaml:"territories,omitempty"`
}

// Rules holds the tunable constants of a game.
type Rules struct {
	MaxYear          int `json:"maxYear" yaml:"max_year"`
	StartingEnergy   int `json:"startingEnergy" yaml:"starting_energy"`
	StartingUnits    int `json:"startingUnits" yaml:"starting_units"`
	MinimumEnergy    int `json:"minimumEnergy" yaml:"minimum_energy"`
	CommanderCost    int `json:"commanderCost" yaml:"commander_cost"`
	SpaceBaseCost    int `json:"spaceBaseCost" yaml:"space_base_cost"`
	ConquestBonusPer int `json:"conquestBonusPer" yaml:"conquest_bonus_per"`
	BidWindowSeconds int `json:"bidWindowSeconds,omitempty" yaml:"bid_window_seconds"`
}

// DefaultRules returns the standard rule constants.
func DefaultRules() Rules {
	return Rules{
		MaxYear:          5,
		StartingEnergy:   10,
		StartingUnits:    2,
		MinimumEnergy:    3,
		CommanderCost:    3,
		SpaceBaseCost:    5,
		ConquestBonusPer: 3,
	}
}

// BiddingState is the yearly sealed-bid auction.
type BiddingState struct {
	Year                int            `json:"year"`
	BidsSubmitted       map[string]int `json:"bidsSubmitted"`
	BidsRevealed        bool           `json:"bidsRevealed"`
	PlayersWaitingToBid []string       `json:"playersWaitingToBid"`
	FinalTurnOrder      []string       `json:"finalTurnOrder,omitempty"`
	HighestBidder       string         `json:"highestBidder,omitempty"`
	TiebreakRoll        map[string]int `json:"tiebreakRoll,omitempty"`
}

// Stage returns the auction stage name.
func (b *BiddingState) Stage() string {
	if b.BidsRevealed {
		return "revealed"
	}
	return "waiting_for_bids"
}

// CombatResult is the outcome of one attack.
type CombatResult struct {
	AttackerDice           []int           `json:"attackerDice"`
	DefenderDice           []int           `json:"defenderDice"`
	AttackerLosses         int             `json:"attackerLosses"`
	DefenderLosses         int             `json:"defenderLosses"`
	AttackerUnitsRemaining int             `json:"attackerUnitsRemaining"`
	CommandersLost         []CommanderType `json:"commandersLost,omitempty"`
	TerritoryConquered     bool            `json:"territoryConquered"`
}

// PendingConquest bridges a winning attack and its confirm_conquest commit.
type PendingConquest struct {
	PlayerID                     string          `json:"playerId"`
	FromTerritoryID              string          `json:"fromTerritoryId"`
	ToTerritoryID                string          `json:"toTerritoryId"`
	OriginalAttackingUnits       int             `json:"originalAttackingUnits"`
	MinimumMoveIn                int             `json:"minimumMoveIn"`
	AvailableForAdditionalMoveIn int             `json:"availableForAdditionalMoveIn"`
	AttackingCommanders          []CommanderType `json:"attackingCommanders"`
	CombatResult                 CombatResult    `json:"combatResult"`
	ShowDiceResults              bool            `json:"showDiceResults"`
	PreviousOwnerID              string          `json:"previousOwnerId,omitempty"`
}

// Card is a card held in a player's hand.
type Card struct {
	ID            string        `json:"id"`
	Key           string        `json:"key"`
	Title         string        `json:"title"`
	CommanderType CommanderType `json:"commanderType"`
	Effect        string        `json:"effect"`
	Value         int           `json:"value"`
}

// CardTemplate is a purchasable card in the board catalog.
type CardTemplate struct {
	Key           string        `json:"key" yaml:"key"`
	Title         string        `json:"title" yaml:"title"`
	CommanderType CommanderType `json:"commanderType" yaml:"commander"`
	Cost          int           `json:"cost" yaml:"cost"`
	Effect        string        `json:"effect" yaml:"effect"`
	Value         int           `json:"value" yaml:"value"`
}

// Card effects understood by play_card.
const (
	EffectReinforce = "reinforce"
	EffectEnergy    = "energy"
)

// DiceState is the persisted dice stream of a game.
type DiceState struct {
	Seed  uint64 `json:"seed"`
	Draws uint64 `json:"draws"`
}

// ActionLogEntry is one append-only audit record.
type ActionLogEntry struct {
	Seq        int64           `json:"seq"`
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	PlayerID   string          `json:"playerId"`
	Data       json.RawMessage `json:"data,omitempty"`
	HashBefore string          `json:"hashBefore"`
	HashAfter  string          `json:"hashAfter"`
	At         time.Time       `json:"at"`
}

// maxActionLog is how many entries the state itself retains.
const maxActionLog = 50

// Player returns the player with the given id, or nil.
func (gs *GameState) Player(id string) *Player {
	for i := range gs.Players {
		if gs.Players[i].ID == id {
			return &gs.Players[i]
		}
	}
	return nil
}

// Territory returns the territory with the given id, or nil.
func (gs *GameState) Territory(id string) *Territory {
	return gs.Territories[id]
}

// CurrentPlayerID returns the id of the player whose turn it is, or "".
func (gs *GameState) CurrentPlayerID() string {
	if gs.CurrentPlayerIndex < 0 || gs.CurrentPlayerIndex >= len(gs.ActiveTurnOrder) {
		return ""
	}
	return gs.ActiveTurnOrder[gs.CurrentPlayerIndex]
}

// OwnedBy returns the ids of territories owned by playerID, sorted.
func (gs *GameState) OwnedBy(playerID string) []string {
	var ids []string
	for id, t := range gs.Territories {
		if t.OwnerID == playerID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// CommanderLocation returns the territory holding playerID's commander of type c, or "".
func (gs *GameState) CommanderLocation(playerID string, c CommanderType) string {
	for _, id := range gs.territoryIDs() {
		if gs.Territories[id].Commander(c) == playerID {
			return id
		}
	}
	return ""
}

// TotalUnits returns the number of machines playerID has on the board.
func (gs *GameState) TotalUnits(playerID string) int {
	n := 0
	for _, t := range gs.Territories {
		if t.OwnerID == playerID {
			n += t.MachineCount
		}
	}
	return n
}

// territoryIDs returns territory ids in a stable order.
func (gs *GameState) territoryIDs() []string {
	return slices.Sorted(maps.Keys(gs.Territories))
}

// syncPlayerTerritories rebuilds every player's territory list from ownership.
func (gs *GameState) syncPlayerTerritories() {
	for i := range gs.Players {
		gs.Players[i].Territories = gs.OwnedBy(gs.Players[i].ID)
	}
}

// Clone returns a deep copy of the GameState. Mutations to the clone
// never leak into the original.
func (gs *GameState) Clone() *GameState {
	c := *gs
	c.ActiveTurnOrder = slices.Clone(gs.ActiveTurnOrder)
	if gs.Players != nil {
		c.Players = make([]Player, len(gs.Players))
		for i, p := range gs.Players {
			c.Players[i] = p.clone()
		}
	}
	if gs.Territories != nil {
		c.Territories = make(map[string]*Territory, len(gs.Territories))
		for id, t := range gs.Territories {
			tc := *t
			tc.Connections = slices.Clone(t.Connections)
			c.Territories[id] = &tc
		}
	}
	if gs.Continents != nil {
		c.Continents = make([]Continent, len(gs.Continents))
		for i, ct := range gs.Continents {
			ct.Territories = slices.Clone(ct.Territories)
			c.Continents[i] = ct
		}
	}
	c.Catalog = slices.Clone(gs.Catalog)
	if gs.Bidding != nil {
		b := *gs.Bidding
		b.BidsSubmitted = maps.Clone(gs.Bidding.BidsSubmitted)
		b.PlayersWaitingToBid = slices.Clone(gs.Bidding.PlayersWaitingToBid)
		b.FinalTurnOrder = slices.Clone(gs.Bidding.FinalTurnOrder)
		b.TiebreakRoll = maps.Clone(gs.Bidding.TiebreakRoll)
		c.Bidding = &b
	}
	if gs.PendingConquest != nil {
		pc := *gs.PendingConquest
		pc.AttackingCommanders = slices.Clone(gs.PendingConquest.AttackingCommanders)
		pc.CombatResult = gs.PendingConquest.CombatResult.clone()
		c.PendingConquest = &pc
	}
	if gs.TurnOrderHistory != nil {
		c.TurnOrderHistory = make(map[int][]string, len(gs.TurnOrderHistory))
		for y, order := range gs.TurnOrderHistory {
			c.TurnOrderHistory[y] = slices.Clone(order)
		}
	}
	if gs.Deadline != nil {
		d := *gs.Deadline
		c.Deadline = &d
	}
	c.ActionLog = slices.Clone(gs.ActionLog)
	return &c
}

func (p Player) clone() Player {
	p.Territories = slices.Clone(p.Territories)
	p.Cards = slices.Clone(p.Cards)
	if p.CurrentBid != nil {
		b := *p.CurrentBid
		p.CurrentBid = &b
	}
	if p.PendingDecision != nil {
		d := *p.PendingDecision
		p.PendingDecision = &d
	}
	if p.InvasionStats.LastInvasionResults != nil {
		res := make([]CombatResult, len(p.InvasionStats.LastInvasionResults))
		for i, r := range p.InvasionStats.LastInvasionResults {
			res[i] = r.clone()
		}
		p.InvasionStats.LastInvasionResults = res
	}
	return p
}

func (r CombatResult) clone() CombatResult {
	r.AttackerDice = slices.Clone(r.AttackerDice)
	r.DefenderDice = slices.Clone(r.DefenderDice)
	r.CommandersLost = slices.Clone(r.CommandersLost)
	return r
}
