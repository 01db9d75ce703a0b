package conquest

import (
	"errors"
	"fmt"
)

var (
	// ErrIllegalAction covers wrong actor, wrong phase and insufficient resources.
	ErrIllegalAction = errors.New("illegal action")
	// ErrUnknownReference covers unknown territory, player or card ids.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrMalformedAction covers missing or mistyped action data.
	ErrMalformedAction = errors.New("malformed action")
)

// RejectionKind classifies why an action was rejected.
type RejectionKind string

const (
	RejectIllegal     RejectionKind = "illegal"
	RejectReferential RejectionKind = "referential"
	RejectStructural  RejectionKind = "structural"
)

// Result is the explicit acceptance envelope returned by Apply.
type Result struct {
	OK     bool          `json:"ok"`
	Kind   RejectionKind `json:"kind,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

func illegal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalAction, fmt.Sprintf(format, args...))
}

func unknown(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnknownReference, fmt.Sprintf(format, args...))
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedAction, fmt.Sprintf(format, args...))
}

func rejection(err error) Result {
	kind := RejectIllegal
	switch {
	case errors.Is(err, ErrMalformedAction):
		kind = RejectStructural
	case errors.Is(err, ErrUnknownReference):
		kind = RejectReferential
	}
	return Result{Kind: kind, Reason: err.Error()}
}
