package conquest

import (
	"bytes"
	"encoding/json"
	"time"
)

// ActionType tags the reducer input union.
type ActionType string

const (
	ActionPlaceBid          ActionType = "place_bid"
	ActionRevealBids        ActionType = "reveal_bids"
	ActionStartYearTurns    ActionType = "start_year_turns"
	ActionCollectAndDeploy  ActionType = "collect_and_deploy"
	ActionPlaceUnit         ActionType = "place_unit"
	ActionPurchaseCommander ActionType = "purchase_and_place_commander"
	ActionPurchaseSpaceBase ActionType = "purchase_and_place_space_base"
	ActionPurchaseCard      ActionType = "purchase_card"
	ActionPlayCard          ActionType = "play_card"
	ActionAdvancePhase      ActionType = "advance_phase"
	ActionAttackTerritory   ActionType = "attack_territory"
	ActionMoveIntoEmpty     ActionType = "move_into_empty"
	ActionConfirmConquest   ActionType = "confirm_conquest"
	ActionFortifyTerritory  ActionType = "fortify_territory"
	ActionExpireDeadline    ActionType = "expire_deadline"
)

// SystemPlayerID is the actor id used for server-originated actions.
const SystemPlayerID = "system"

// Action is the common {type, playerId, data} shape accepted over every transport.
// At is stamped by the session host on receipt and drives UpdatedAt and deadlines,
// keeping the reducer independent of the wall clock.
type Action struct {
	Type     ActionType      `json:"type"`
	PlayerID string          `json:"playerId"`
	Data     json.RawMessage `json:"data,omitempty"`
	At       time.Time       `json:"at,omitzero"`
}

// PlaceBidData is the payload of place_bid.
type PlaceBidData struct {
	Amount int `json:"amount"`
}

// CollectAndDeployData is the payload of collect_and_deploy.
type CollectAndDeployData struct {
	EnergyAmount int `json:"energyAmount"`
	UnitsToPlace int `json:"unitsToPlace"`
}

// PlaceUnitData is the payload of place_unit.
type PlaceUnitData struct {
	TerritoryID string `json:"territoryId"`
}

// PurchaseCommanderData is the payload of purchase_and_place_commander.
type PurchaseCommanderData struct {
	TerritoryID   string        `json:"territoryId"`
	CommanderType CommanderType `json:"commanderType"`
	Cost          int           `json:"cost"`
}

// PurchaseSpaceBaseData is the payload of purchase_and_place_space_base.
type PurchaseSpaceBaseData struct {
	TerritoryID string `json:"territoryId"`
	Cost        int    `json:"cost"`
}

// PurchaseCardData is the payload of purchase_card.
type PurchaseCardData struct {
	CardKey string `json:"cardKey"`
}

// PlayCardData is the payload of play_card.
type PlayCardData struct {
	CardID  string   `json:"cardId"`
	Targets []string `json:"targets"`
}

// AdvancePhaseData is the payload of advance_phase.
type AdvancePhaseData struct {
	DeploymentComplete bool `json:"deploymentComplete,omitempty"`
	PhaseComplete      bool `json:"phaseComplete,omitempty"`
}

// AttackData is the payload of attack_territory.
type AttackData struct {
	FromTerritoryID string          `json:"fromTerritoryId"`
	ToTerritoryID   string          `json:"toTerritoryId"`
	AttackingUnits  int             `json:"attackingUnits"`
	CommanderTypes  []CommanderType `json:"commanderTypes"`
}

// MoveIntoEmptyData is the payload of move_into_empty.
type MoveIntoEmptyData struct {
	MovingUnits int `json:"movingUnits"`
}

// ConfirmConquestData is the payload of confirm_conquest.
type ConfirmConquestData struct {
	AdditionalUnits int `json:"additionalUnits"`
}

// FortifyData is the payload of fortify_territory.
type FortifyData struct {
	FromTerritoryID string `json:"fromTerritoryId"`
	ToTerritoryID   string `json:"toTerritoryId"`
	UnitCount       int    `json:"unitCount"`
}

// NewAction builds an Action with data marshaled to JSON. A nil data yields "{}".
func NewAction(t ActionType, playerID string, data any) Action {
	a := Action{Type: t, PlayerID: playerID, Data: json.RawMessage(`{}`)}
	if data != nil {
		if raw, err := json.Marshal(data); err == nil {
			a.Data = raw
		}
	}
	return a
}

// DecodeAction parses and structurally validates an action from the wire.
func DecodeAction(raw []byte) (Action, error) {
	var a Action
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&a); err != nil {
		return Action{}, malformed("decode action: %v", err)
	}
	if err := validatePayload(a); err != nil {
		return Action{}, err
	}
	return a, nil
}

// decodeData unmarshals an action payload that has already passed schema validation.
func decodeData[T any](a Action) (T, error) {
	var v T
	if len(a.Data) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(a.Data, &v); err != nil {
		return v, malformed("%s data: %v", a.Type, err)
	}
	return v, nil
}
