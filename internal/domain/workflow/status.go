// Package workflow owns the document status state machine. It is the single
// writer of document status: no other code path may change it.
package workflow

import (
	"time"

	"docuvault/internal/core/apperror"
)

// Status is a stored document status.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusObsolete  Status = "OBSOLETE"

	// StatusExpired is derived at read time from an APPROVED document whose
	// expiry has passed. It is never stored.
	StatusExpired Status = "EXPIRED"
)

// IsTerminal reports whether no transition leaves the status.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusObsolete
}

// Valid reports whether s is a storable status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected, StatusObsolete:
		return true
	}
	return false
}

// Action is a requested state machine move.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionWithdraw Action = "withdraw"
	ActionObsolete Action = "obsolete"
)

// Transition is one legal (action, from, to) row of the table.
type Transition struct {
	From Status
	To   Status
}

// transitions is the full table. Any (action, from) pair not listed here is
// an invalid transition, never a silent no-op.
var transitions = map[Action]Transition{
	ActionSubmit:   {From: StatusDraft, To: StatusSubmitted},
	ActionApprove:  {From: StatusSubmitted, To: StatusApproved},
	ActionReject:   {From: StatusSubmitted, To: StatusRejected},
	ActionWithdraw: {From: StatusSubmitted, To: StatusDraft},
	ActionObsolete: {From: StatusApproved, To: StatusObsolete},
}

// TransitionFor returns the table row for action.
func TransitionFor(action Action) (Transition, bool) {
	t, ok := transitions[action]
	return t, ok
}

// Actions returns all defined actions.
func Actions() []Action {
	out := make([]Action, 0, len(transitions))
	for a := range transitions {
		out = append(out, a)
	}
	return out
}

// ValidateTransition checks the table for (action, current) and returns the
// target status, or an invalid transition error naming actual vs expected.
func ValidateTransition(action Action, current Status) (Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", apperror.NewInvalidTransition(string(action), string(current), "")
	}
	if current != t.From {
		return "", apperror.NewInvalidTransition(string(action), string(current), string(t.From))
	}
	return t.To, nil
}

// EffectiveStatus computes the derived status: APPROVED with an expiry
// strictly before now reads as EXPIRED. The value is advisory and never
// written back; operations whose precondition is "document must be APPROVED"
// must consult it instead of the stored status.
func EffectiveStatus(stored Status, expiresAt *time.Time, now time.Time) Status {
	if stored == StatusApproved && expiresAt != nil && expiresAt.Before(now) {
		return StatusExpired
	}
	return stored
}
