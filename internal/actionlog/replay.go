package actionlog

import (
	"errors"
	"fmt"

	"github.com/freeeve/conquest/pkg/conquest"
)

var (
	// ErrNoGenesis is returned when a game's records do not start with its genesis state.
	ErrNoGenesis = errors.New("archive has no genesis record")
	// ErrDiverged is returned when a replayed hash differs from the archived one.
	ErrDiverged = errors.New("replay diverged")
)

// ReplayReport summarizes a verified replay.
type ReplayReport struct {
	GameID  string
	Actions int
	Final   *conquest.GameState
}

// Replay re-applies a game's archived actions to its genesis state and
// checks each entry's before and after hashes. Records of other games are ignored.
func Replay(records []Record, gameID string) (*ReplayReport, error) {
	var gs *conquest.GameState
	report := &ReplayReport{GameID: gameID}
	for _, rec := range records {
		if rec.GameID != gameID {
			continue
		}
		switch rec.Kind {
		case KindGenesis:
			if rec.State == nil {
				return nil, fmt.Errorf("%w: empty state", ErrNoGenesis)
			}
			gs = rec.State
		case KindAction:
			if gs == nil {
				return nil, ErrNoGenesis
			}
			if rec.Entry == nil {
				return nil, fmt.Errorf("action record without entry")
			}
			next, err := step(gs, rec.Entry)
			if err != nil {
				return nil, err
			}
			gs = next
			report.Actions++
		}
	}
	if gs == nil {
		return nil, ErrNoGenesis
	}
	report.Final = gs
	return report, nil
}

func step(gs *conquest.GameState, e *conquest.ActionLogEntry) (*conquest.GameState, error) {
	if e.Seq != gs.Version+1 {
		return nil, fmt.Errorf("%w: seq %d follows version %d", ErrDiverged, e.Seq, gs.Version)
	}
	if got := conquest.HashState(gs); got != e.HashBefore {
		return nil, fmt.Errorf("%w: seq %d before hash %s, archived %s", ErrDiverged, e.Seq, got, e.HashBefore)
	}
	a := conquest.Action{
		Type:     conquest.ActionType(e.Type),
		PlayerID: e.PlayerID,
		Data:     e.Data,
		At:       e.At,
	}
	next, res := conquest.Apply(gs, a)
	if !res.OK {
		return nil, fmt.Errorf("%w: seq %d %s rejected: %s", ErrDiverged, e.Seq, e.Type, res.Reason)
	}
	if got := conquest.HashState(next); got != e.HashAfter {
		return nil, fmt.Errorf("%w: seq %d after hash %s, archived %s", ErrDiverged, e.Seq, got, e.HashAfter)
	}
	return next, nil
}
