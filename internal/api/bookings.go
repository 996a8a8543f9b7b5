package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"salonbook/internal/dates"
	"salonbook/internal/filter"
	"salonbook/internal/lifecycle"
	"salonbook/internal/models"
	"salonbook/shared/export"
)

// BookingResponse is a booking with its display labels.
type BookingResponse struct {
	ID                 string        `json:"id"`
	Start              time.Time     `json:"start"`
	DateLabel          string        `json:"date_label"`
	Time               string        `json:"time"`
	StylistID          string        `json:"stylist_id"`
	StylistLabel       string        `json:"stylist_label"`
	ClientLabel        string        `json:"client_label"`
	ServicesLabel      string        `json:"services_label"`
	Status             models.Status `json:"status"`
	CancellationReason string        `json:"cancellation_reason,omitempty"`
	CompletionNote     string        `json:"completion_note,omitempty"`
	Version            int64         `json:"version"`
}

// ListResponse is the body of GET /api/bookings.
type ListResponse struct {
	Filter   filter.State      `json:"filter"`
	Bookings []BookingResponse `json:"bookings"`
	Summary  filter.Summary    `json:"summary"`
}

// TransitionRequest carries the optional reason or note of an action.
type TransitionRequest struct {
	Reason string `json:"reason,omitempty"`
	Note   string `json:"note,omitempty"`
}

type action int

const (
	actionConfirm action = iota
	actionCancel
	actionComplete
)

func toResponse(b models.Booking) BookingResponse {
	return BookingResponse{
		ID:                 b.ID,
		Start:              b.Start,
		DateLabel:          filter.FormatDateLabel(string(dates.KeyOf(b.Start))),
		Time:               filter.FormatTime(b.Start),
		StylistID:          b.StylistID(),
		StylistLabel:       filter.StylistLabel(b.Stylist),
		ClientLabel:        filter.ClientLabel(b.Client),
		ServicesLabel:      filter.ServiceNames(b.Services),
		Status:             b.Status,
		CancellationReason: b.CancellationReason,
		CompletionNote:     b.CompletionNote,
		Version:            b.Version,
	}
}

// filterState reads the filter from the query string. A missing date
// parameter means today; an empty one means no date selected.
func (s *HTTPServer) filterState(r *http.Request) filter.State {
	q := r.URL.Query()

	state := filter.DefaultState(dates.KeyOf(s.now().In(s.config.Location)))
	if q.Has("date") {
		state.Date = q.Get("date")
	}
	if v := q.Get("stylist"); v != "" {
		state.StylistID = v
	}
	if v := q.Get("status"); v != "" {
		state.Status = v
	}
	if all, err := strconv.ParseBool(q.Get("all")); err == nil {
		state.ViewAllDates = all
	}
	return state
}

// handleListBookings returns the visible agenda.
// GET /api/bookings?date=YYYY-MM-DD&stylist=ID|ALL&status=STATUS|ALL&all=true
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	state := s.filterState(r)
	visible := s.view.Visible(state, viewer)

	resp := ListResponse{
		Filter:   state.Effective(viewer),
		Bookings: make([]BookingResponse, 0, len(visible)),
		Summary:  filter.Summarize(visible),
	}
	for _, b := range visible {
		resp.Bookings = append(resp.Bookings, toResponse(b))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleExport returns the visible agenda as an Excel workbook.
// GET /api/bookings/export.xlsx
func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r.Context())
	state := s.filterState(r)
	visible := s.view.Visible(state, viewer)

	rows := make([]export.Row, 0, len(visible))
	for _, b := range visible {
		resp := toResponse(b)
		detail := b.CancellationReason
		if detail == "" {
			detail = b.CompletionNote
		}
		rows = append(rows, export.Row{
			BookingID: resp.ID,
			Date:      resp.DateLabel,
			Time:      resp.Time,
			Stylist:   resp.StylistLabel,
			Client:    resp.ClientLabel,
			Services:  resp.ServicesLabel,
			Status:    string(resp.Status),
			Detail:    detail,
		})
	}

	var buf bytes.Buffer
	if err := export.WriteAgenda(export.NewExcelizeWriter(), s.config.SheetName, rows, &buf); err != nil {
		s.logger.Error().Err(err).Msg("Agenda export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	eff := state.Effective(viewer)
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.Filename(eff.Date, eff.ViewAllDates)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleTransitions returns the journal of one booking.
// GET /api/bookings/{id}/transitions
func (s *HTTPServer) handleTransitions(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeError(w, http.StatusNotFound, "journal not available")
		return
	}
	id := r.PathValue("id")
	if !s.mayAct(viewerFrom(r.Context()), id) {
		writeError(w, http.StatusForbidden, "booking belongs to another stylist")
		return
	}

	records, err := s.journal.ListTransitions(r.Context(), id)
	if err != nil {
		s.logger.Error().Err(err).Str("booking_id", id).Msg("List transitions failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if records == nil {
		records = []models.TransitionRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"transitions": records})
}

// transition handles POST /api/bookings/{id}/confirm|cancel|complete.
func (s *HTTPServer) transition(a action) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		var req TransitionRequest
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if !s.mayAct(viewerFrom(r.Context()), id) {
			writeError(w, http.StatusForbidden, "booking belongs to another stylist")
			return
		}

		var (
			updated *models.Booking
			err     error
		)
		switch a {
		case actionConfirm:
			updated, err = s.transitions.Confirm(r.Context(), id)
		case actionCancel:
			updated, err = s.transitions.Cancel(r.Context(), id, req.Reason)
		case actionComplete:
			updated, err = s.transitions.Complete(r.Context(), id, req.Note)
		}
		if err != nil {
			status := statusFor(err)
			if status == http.StatusInternalServerError {
				s.logger.Error().Err(err).Str("booking_id", id).Msg("Transition failed")
			}
			writeError(w, status, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toResponse(*updated))
	})
}

// mayAct reports whether viewer may see or change a booking. Stylists are
// limited to their own queue; unknown ids are left to the controller.
func (s *HTTPServer) mayAct(viewer filter.Viewer, id string) bool {
	if !viewer.IsStylist() {
		return true
	}
	b, ok := s.view.Get(id)
	if !ok {
		return true
	}
	return b.StylistID() == models.CanonicalID(viewer.ID)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrStaleSelection):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrInvalidTransition), errors.Is(err, lifecycle.ErrTransitionInFlight):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
