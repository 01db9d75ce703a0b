package conquest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// applyCtx carries per-call dependencies into handlers.
type applyCtx struct {
	roller Roller
}

// ApplyOption customizes a single Apply call.
type ApplyOption func(*applyCtx)

// WithRoller replaces the game's persisted dice stream with r.
func WithRoller(r Roller) ApplyOption {
	return func(x *applyCtx) { x.roller = r }
}

type handlerFunc func(gs *GameState, a Action, x *applyCtx) error

// gate describes when an action type may be applied.
type gate struct {
	status      GameStatus
	phase       Phase // zero means any phase
	currentOnly bool
	systemOnly  bool
	run         handlerFunc
}

var handlers = map[ActionType]gate{
	ActionPlaceBid:          {status: StatusBidding, run: placeBid},
	ActionRevealBids:        {status: StatusBidding, run: revealBids},
	ActionStartYearTurns:    {status: StatusBidding, run: startYearTurns},
	ActionExpireDeadline:    {status: StatusBidding, systemOnly: true, run: expireDeadline},
	ActionCollectAndDeploy:  {status: StatusPlaying, phase: PhaseCollectDeploy, currentOnly: true, run: collectAndDeploy},
	ActionPlaceUnit:         {status: StatusPlaying, phase: PhaseCollectDeploy, currentOnly: true, run: placeUnit},
	ActionPurchaseCommander: {status: StatusPlaying, phase: PhaseBuildHire, currentOnly: true, run: purchaseCommander},
	ActionPurchaseSpaceBase: {status: StatusPlaying, phase: PhaseBuildHire, currentOnly: true, run: purchaseSpaceBase},
	ActionPurchaseCard:      {status: StatusPlaying, phase: PhaseBuyCards, currentOnly: true, run: purchaseCard},
	ActionPlayCard:          {status: StatusPlaying, phase: PhasePlayCards, currentOnly: true, run: playCard},
	ActionAdvancePhase:      {status: StatusPlaying, currentOnly: true, run: advancePhase},
	ActionAttackTerritory:   {status: StatusPlaying, phase: PhaseInvade, currentOnly: true, run: attackTerritory},
	ActionMoveIntoEmpty:     {status: StatusPlaying, phase: PhaseInvade, currentOnly: true, run: moveIntoEmpty},
	ActionConfirmConquest:   {status: StatusPlaying, phase: PhaseInvade, currentOnly: true, run: confirmConquest},
	ActionFortifyTerritory:  {status: StatusPlaying, phase: PhaseFortify, currentOnly: true, run: fortifyTerritory},
}

// Apply runs one action against gs. On acceptance it returns a new state
// with Version incremented and an action-log entry appended; on rejection it
// returns gs itself, untouched, with a Result describing why. Apply never
// mutates its input.
func Apply(gs *GameState, a Action, opts ...ApplyOption) (next *GameState, res Result) {
	if gs == nil {
		return nil, rejection(malformed("nil game state"))
	}
	defer func() {
		if r := recover(); r != nil {
			next, res = gs, rejection(malformed("%s: %v", a.Type, r))
		}
	}()

	g, ok := handlers[a.Type]
	if !ok {
		return gs, rejection(malformed("unknown action type %q", a.Type))
	}
	if err := validatePayload(a); err != nil {
		return gs, rejection(err)
	}
	if err := checkGate(gs, a, g); err != nil {
		return gs, rejection(err)
	}

	next = gs.Clone()
	x := &applyCtx{roller: streamRoller{dice: &next.Dice}}
	for _, opt := range opts {
		opt(x)
	}
	if err := g.run(next, a, x); err != nil {
		return gs, rejection(err)
	}
	record(gs, next, a)
	return next, Result{OK: true}
}

func checkGate(gs *GameState, a Action, g gate) error {
	if a.PlayerID == SystemPlayerID {
		if g.currentOnly {
			return illegal("%s must come from the current player", a.Type)
		}
	} else {
		if g.systemOnly {
			return illegal("%s is reserved for the server", a.Type)
		}
		p := gs.Player(a.PlayerID)
		if p == nil {
			return unknown("player %q", a.PlayerID)
		}
		if p.Eliminated {
			return illegal("player %s is eliminated", p.ID)
		}
	}
	if gs.Status != g.status {
		return illegal("%s not allowed while game is %s", a.Type, gs.Status)
	}
	if g.currentOnly && gs.CurrentPlayerID() != a.PlayerID {
		return illegal("it is not %s's turn", a.PlayerID)
	}
	if g.phase != 0 && gs.CurrentPhase != g.phase {
		return illegal("%s not allowed in phase %s", a.Type, gs.CurrentPhase)
	}
	return nil
}

// record stamps bookkeeping on an accepted transition.
func record(prev, next *GameState, a Action) {
	next.Version = prev.Version + 1
	if !a.At.IsZero() {
		next.UpdatedAt = a.At
	}
	entry := ActionLogEntry{
		Seq:        next.Version,
		ID:         logEntryID(next.ID, next.Version),
		Type:       string(a.Type),
		PlayerID:   a.PlayerID,
		Data:       a.Data,
		HashBefore: HashState(prev),
		HashAfter:  HashState(next),
		At:         a.At,
	}
	next.ActionLog = append(next.ActionLog, entry)
	if n := len(next.ActionLog); n > maxActionLog {
		next.ActionLog = next.ActionLog[n-maxActionLog:]
	}
}

func logEntryID(gameID string, seq int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s#%d", gameID, seq))).String()
}

// ApplyAll applies actions in order, stopping at the first rejection.
// It returns the last accepted state and the index of the rejected action,
// or -1 when every action was accepted.
func ApplyAll(gs *GameState, actions []Action, opts ...ApplyOption) (*GameState, int, Result) {
	for i, a := range actions {
		next, res := Apply(gs, a, opts...)
		if !res.OK {
			return gs, i, res
		}
		gs = next
	}
	return gs, -1, Result{OK: true}
}

// Stamp sets a.At to at when it has not been set.
func Stamp(a Action, at time.Time) Action {
	if a.At.IsZero() {
		a.At = at.UTC()
	}
	return a
}
