package appointment

import (
	"strings"
)

type Status string

const (
	StatusConfirmed   Status = "CONFIRMED"
	StatusCompleted   Status = "COMPLETED"
	StatusNoShow      Status = "NO_SHOW"
	StatusCancelled   Status = "CANCELLED"
	StatusRescheduled Status = "RESCHEDULED"
	StatusPatient     Status = "PATIENT"
)

// State transitions:
//
//	CONFIRMED → COMPLETED | NO_SHOW | CANCELLED | RESCHEDULED | PATIENT
//	COMPLETED → PATIENT
//
// Every other status is final.
var allowedTransitions = map[Status]map[Status]bool{
	StatusConfirmed: {
		StatusCompleted:   true,
		StatusNoShow:      true,
		StatusCancelled:   true,
		StatusRescheduled: true,
		StatusPatient:     true,
	},
	StatusCompleted:   {StatusPatient: true},
	StatusNoShow:      {},
	StatusCancelled:   {},
	StatusRescheduled: {},
	StatusPatient:     {},
}

func AllStatuses() []Status {
	return []Status{
		StatusConfirmed,
		StatusCompleted,
		StatusNoShow,
		StatusCancelled,
		StatusRescheduled,
		StatusPatient,
	}
}

// ParseStatus accepts any casing of a known status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	_, ok := allowedTransitions[s]
	return s, ok
}

func (s Status) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// Final reports whether no transition leaves s.
func (s Status) Final() bool {
	return len(allowedTransitions[s]) == 0
}

// CanTransition reports whether from → to is a legal move. Staying in the
// same status is not a transition and is handled by callers as a no-op.
func CanTransition(from, to Status) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}
