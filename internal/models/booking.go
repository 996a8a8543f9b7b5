package models

import (
	"strings"
	"time"
)

// Status is the lifecycle status of a booking.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// AllStatuses lists statuses in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

// ParseStatus parses a status case-insensitively.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if st.Valid() {
		return st, true
	}
	return "", false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Service is a salon service attached to a booking.
type Service struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Booking represents a single scheduled appointment.
type Booking struct {
	ID                 string     `json:"id"`
	Start              time.Time  `json:"start"`
	Stylist            StylistRef `json:"stylist"`
	Services           []Service  `json:"services"`
	Client             ClientRef  `json:"client"`
	Status             Status     `json:"status"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
	CompletionNote     string     `json:"completion_note,omitempty"`
	ConfirmedAt        *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
	Version            int64      `json:"version"`
}

// StylistID returns the resolved stylist identifier.
func (b *Booking) StylistID() string {
	return b.Stylist.ID()
}

// Clone returns a copy that shares no mutable state with b.
func (b Booking) Clone() Booking {
	if b.Services != nil {
		b.Services = append([]Service(nil), b.Services...)
	}
	b.ConfirmedAt = cloneTime(b.ConfirmedAt)
	b.CancelledAt = cloneTime(b.CancelledAt)
	b.CompletedAt = cloneTime(b.CompletedAt)
	return b
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
