// Package filter computes which bookings are visible for a filter state and
// viewer.
package filter

import (
	"sort"
	"strings"

	"salonbook/internal/dates"
	"salonbook/internal/models"
	"salonbook/shared/logging"
)

// All is the sentinel for "no constraint" on stylist and status.
const All = "ALL"

// stylistRoles are the role names that restrict a viewer to their own queue.
var stylistRoles = map[string]bool{
	"stylist":   true,
	"estilista": true,
}

// State is the user's current filter selection.
type State struct {
	Date         string `json:"date"`       // yyyy-MM-dd
	StylistID    string `json:"stylist_id"` // id or ALL
	Status       string `json:"status"`     // status or ALL
	ViewAllDates bool   `json:"view_all_dates"`
}

// DefaultState shows everything for the given day.
func DefaultState(day dates.DayKey) State {
	return State{Date: string(day), StylistID: All, Status: All}
}

// Viewer is the authenticated user evaluating the filter.
type Viewer struct {
	ID   string
	Role string
}

// IsStylist reports whether the viewer may only see their own bookings.
func (v Viewer) IsStylist() bool {
	return stylistRoles[strings.ToLower(strings.TrimSpace(v.Role))]
}

// Effective applies the viewer override and normalizes malformed fields.
// A stylist always gets their own id as stylist filter.
func (s State) Effective(viewer Viewer) State {
	if viewer.IsStylist() {
		s.StylistID = models.CanonicalID(viewer.ID)
	} else {
		s.StylistID = strings.TrimSpace(s.StylistID)
		if s.StylistID == "" || strings.EqualFold(s.StylistID, All) {
			s.StylistID = All
		} else {
			s.StylistID = models.CanonicalID(s.StylistID)
		}
	}

	if st, ok := models.ParseStatus(s.Status); ok {
		s.Status = string(st)
	} else {
		s.Status = All
	}

	if _, ok := dates.ParseDayKey(s.Date); !ok {
		// no date selected
		s.Date = ""
	} else {
		s.Date = strings.TrimSpace(s.Date)
	}
	return s
}

// DateSelected reports whether a usable date is set.
func (s State) DateSelected() bool {
	_, ok := dates.ParseDayKey(s.Date)
	return ok
}

// Engine evaluates filters and logs each evaluation.
type Engine struct {
	logger logging.Logger
}

// NewEngine creates an engine; a nil logger is a no-op.
func NewEngine(logger logging.Logger) *Engine {
	return &Engine{logger: logging.OrNop(logger)}
}

// VisibleBookings returns the bookings visible to viewer under state.
func (e *Engine) VisibleBookings(all []models.Booking, state State, viewer Viewer) []models.Booking {
	eff := state.Effective(viewer)
	out := VisibleBookings(all, state, viewer)

	e.logger.Debug("filter evaluated",
		"date", eff.Date,
		"view_all_dates", eff.ViewAllDates,
		"stylist_id", eff.StylistID,
		"status", eff.Status,
		"viewer_role", viewer.Role,
		"total", len(all),
		"visible", len(out),
	)
	return out
}

// VisibleBookings returns the subsequence of all that passes the filter,
// ordered by start time. Ties keep input order. The input is not modified.
func VisibleBookings(all []models.Booking, state State, viewer Viewer) []models.Booking {
	eff := state.Effective(viewer)
	if viewer.IsStylist() && eff.StylistID == "" {
		return []models.Booking{}
	}

	var day dates.DayKey
	filterDate := !eff.ViewAllDates && eff.Date != ""
	if filterDate {
		day = dates.DayKey(eff.Date)
	}

	out := make([]models.Booking, 0, len(all))
	for i := range all {
		b := &all[i]
		if filterDate && dates.KeyOf(b.Start) != day {
			continue
		}
		if eff.StylistID != All && b.StylistID() != eff.StylistID {
			continue
		}
		if eff.Status != All && string(b.Status) != eff.Status {
			continue
		}
		out = append(out, *b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out
}

// Summary counts bookings per status.
type Summary struct {
	Total  int                   `json:"total"`
	Counts map[models.Status]int `json:"counts"`
}

// Summarize counts bookings per status.
func Summarize(bookings []models.Booking) Summary {
	s := Summary{Total: len(bookings), Counts: make(map[models.Status]int, len(models.AllStatuses))}
	for _, st := range models.AllStatuses {
		s.Counts[st] = 0
	}
	for i := range bookings {
		s.Counts[bookings[i].Status]++
	}
	return s
}
