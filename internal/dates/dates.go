// Package dates converts timestamps to comparable day keys and labels.
package dates

import (
	"strings"
	"time"
)

const (
	// DayKeyLayout is the layout of a day key (yyyy-MM-dd).
	DayKeyLayout = "2006-01-02"
	// TimeLayout is the layout of appointment times.
	TimeLayout = "15:04"
	// DateLabelLayout is the layout of human date labels.
	DateLabelLayout = "Monday, January 2, 2006"
)

// DayKey identifies a calendar day in the location of the timestamp it was
// derived from.
type DayKey string

// KeyOf returns the day key of t in t's own location.
func KeyOf(t time.Time) DayKey {
	return DayKey(t.Format(DayKeyLayout))
}

// ParseDayKey validates a bare yyyy-MM-dd string.
func ParseDayKey(s string) (DayKey, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if _, err := time.Parse(DayKeyLayout, s); err != nil {
		return "", false
	}
	return DayKey(s), true
}

// Midday anchors a bare date to 12:00 local time so that converting it
// back to a day never crosses a UTC/local boundary.
func (k DayKey) Midday(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DayKeyLayout, string(k), loc)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc), true
}

// FormatDateLabel renders a bare yyyy-MM-dd date as a human label.
// Unparseable input is returned unchanged.
func FormatDateLabel(day string) string {
	t, ok := DayKey(strings.TrimSpace(day)).Midday(time.Local)
	if !ok {
		return day
	}
	return t.Format(DateLabelLayout)
}

// FormatTime renders the time of day of t.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
