package database

import (
	"context"
	"fmt"

	"salonbook/internal/models"
)

// AppendTransition stores a transition record in the journal.
func (db *DB) AppendTransition(ctx context.Context, rec models.TransitionRecord) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO booking_transitions (id, booking_id, from_status, to_status, reason, note, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.BookingID, string(rec.From), string(rec.To),
		nullString(rec.Reason), nullString(rec.Note), formatTime(rec.At),
	)
	if err != nil {
		return fmt.Errorf("insert transition: %w", err)
	}
	return nil
}

// ListTransitions returns the journal of a booking, oldest first.
func (db *DB) ListTransitions(ctx context.Context, bookingID string) ([]models.TransitionRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, booking_id, from_status, to_status, COALESCE(reason, ''), COALESCE(note, ''), at
		FROM booking_transitions WHERE booking_id = ?
		ORDER BY at, rowid`,
		models.CanonicalID(bookingID),
	)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var records []models.TransitionRecord
	for rows.Next() {
		var rec models.TransitionRecord
		var from, to, at string
		if err := rows.Scan(&rec.ID, &rec.BookingID, &from, &to, &rec.Reason, &rec.Note, &at); err != nil {
			return nil, err
		}
		rec.From = models.Status(from)
		rec.To = models.Status(to)
		if rec.At, err = db.parseTime(at); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
