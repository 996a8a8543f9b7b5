package models

import "time"

// TransitionRecord is the append-only fact produced by a successful
// status transition.
type TransitionRecord struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	Reason    string    `json:"reason,omitempty"`
	Note      string    `json:"note,omitempty"`
	At        time.Time `json:"at"`
}
