package lifecycle

import "salonbook/internal/models"

// Action is a lifecycle operation requested by a user.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

// Target returns the status an action moves a booking into.
func (a Action) Target() models.Status {
	switch a {
	case ActionConfirm:
		return models.StatusConfirmed
	case ActionCancel:
		return models.StatusCancelled
	case ActionComplete:
		return models.StatusCompleted
	}
	return ""
}

// FSM holds the allowed status transitions of a booking.
type FSM struct {
	transitions map[models.Status][]models.Status
}

// NewFSM creates a new FSM with predefined transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[models.Status][]models.Status{
			models.StatusPending:   {models.StatusConfirmed, models.StatusCancelled, models.StatusCompleted},
			models.StatusConfirmed: {models.StatusCancelled, models.StatusCompleted},
			models.StatusCompleted: {},
			models.StatusCancelled: {},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to models.Status) bool {
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
