package filter

import (
	"strings"
	"time"

	"salonbook/internal/dates"
	"salonbook/internal/models"
)

const (
	// NoServiceLabel is shown for bookings without services.
	NoServiceLabel = "No service recorded"
	// FallbackClientLabel is shown when no client is known.
	FallbackClientLabel = "Client"
)

// FormatDateLabel renders a yyyy-MM-dd day as a label.
func FormatDateLabel(day string) string {
	return dates.FormatDateLabel(day)
}

// FormatTime renders the appointment time.
func FormatTime(t time.Time) string {
	return dates.FormatTime(t)
}

// ServiceNames joins service names in order.
func ServiceNames(services []models.Service) string {
	names := make([]string, 0, len(services))
	for _, s := range services {
		if n := strings.TrimSpace(s.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		return NoServiceLabel
	}
	return strings.Join(names, ", ")
}

// ClientLabel picks manual name, then resolved client, then the fallback.
func ClientLabel(c models.ClientRef) string {
	if name, ok := c.ManualName(); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if client, ok := c.Resolved(); ok {
		if name := client.FullName(); name != "" {
			return name
		}
	}
	return FallbackClientLabel
}

// StylistLabel returns the stylist's name, or the bare id.
func StylistLabel(r models.StylistRef) string {
	if s, ok := r.Resolved(); ok {
		if name := s.FullName(); name != "" {
			return name
		}
	}
	return r.ID()
}
