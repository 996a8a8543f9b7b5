package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"salonbook/internal/models"
)

const bookingColumns = `
	b.id, b.start_at, b.stylist_id, s.first_name, s.last_name,
	b.client_id, c.first_name, c.last_name, b.manual_client_name,
	b.status, b.cancellation_reason, b.completion_note,
	b.confirmed_at, b.cancelled_at, b.completed_at, b.updated_at, b.version`

const bookingFrom = `
	FROM bookings b
	LEFT JOIN stylists s ON s.id = b.stylist_id
	LEFT JOIN clients c ON c.id = b.client_id`

// UpsertStylist creates or renames a stylist.
func (db *DB) UpsertStylist(ctx context.Context, s models.Stylist) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO stylists (id, first_name, last_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET first_name = excluded.first_name, last_name = excluded.last_name`,
		models.CanonicalID(s.ID), s.FirstName, s.LastName,
	)
	if err != nil {
		return fmt.Errorf("upsert stylist: %w", err)
	}
	return nil
}

// UpsertClient creates or renames a client.
func (db *DB) UpsertClient(ctx context.Context, c models.Client) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO clients (id, first_name, last_name) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET first_name = excluded.first_name, last_name = excluded.last_name`,
		models.CanonicalID(c.ID), c.FirstName, c.LastName,
	)
	if err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// CreateBooking inserts a booking with its services.
func (db *DB) CreateBooking(ctx context.Context, b models.Booking) error {
	if b.Status == "" {
		b.Status = models.StatusPending
	}
	if !b.Status.Valid() {
		return fmt.Errorf("invalid status %q", b.Status)
	}

	var clientID, manualName sql.NullString
	if name, ok := b.Client.ManualName(); ok {
		manualName = sql.NullString{String: name, Valid: true}
	} else if c, ok := b.Client.Resolved(); ok {
		clientID = sql.NullString{String: c.ID, Valid: true}
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := formatTime(time.Now().UTC())
	_, err = tx.ExecContext(ctx, `
		INSERT INTO bookings (
			id, start_at, stylist_id, client_id, manual_client_name, status,
			cancellation_reason, completion_note, confirmed_at, cancelled_at, completed_at,
			created_at, updated_at, version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		models.CanonicalID(b.ID), formatTime(b.Start), b.StylistID(), clientID, manualName, string(b.Status),
		nullString(b.CancellationReason), nullString(b.CompletionNote),
		nullTime(b.ConfirmedAt), nullTime(b.CancelledAt), nullTime(b.CompletedAt),
		now, now,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}

	for i, s := range b.Services {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booking_services (booking_id, position, service_id, name) VALUES (?, ?, ?, ?)`,
			models.CanonicalID(b.ID), i, s.ID, s.Name,
		); err != nil {
			return fmt.Errorf("insert service: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ListBookings returns every booking ordered by start time.
func (db *DB) ListBookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+bookingColumns+bookingFrom+` ORDER BY b.start_at, b.id`)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		b, err := db.scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	services, err := db.loadServices(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		bookings[i].Services = services[bookings[i].ID]
	}
	return bookings, nil
}

// GetBooking returns a booking by id.
func (db *DB) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	id = models.CanonicalID(id)
	row := db.QueryRowContext(ctx, `SELECT `+bookingColumns+bookingFrom+` WHERE b.id = ?`, id)
	b, err := db.scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	services, err := db.loadServices(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Services = services[id]
	return b, nil
}

// Confirm moves a pending booking to CONFIRMED.
func (db *DB) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	return db.transition(ctx, id, models.StatusConfirmed, []models.Status{models.StatusPending},
		`confirmed_at = ?`, nil)
}

// Cancel moves a pending or confirmed booking to CANCELLED.
func (db *DB) Cancel(ctx context.Context, id, reason string) (*models.Booking, error) {
	return db.transition(ctx, id, models.StatusCancelled,
		[]models.Status{models.StatusPending, models.StatusConfirmed},
		`cancelled_at = ?, cancellation_reason = ?`, []any{reason})
}

// Complete moves a pending or confirmed booking to COMPLETED.
func (db *DB) Complete(ctx context.Context, id, note string) (*models.Booking, error) {
	return db.transition(ctx, id, models.StatusCompleted,
		[]models.Status{models.StatusPending, models.StatusConfirmed},
		`completed_at = ?, completion_note = ?`, []any{note})
}

// transition applies a status change guarded by the current status and the
// row version. set must start with the timestamp placeholder.
func (db *DB) transition(
	ctx context.Context,
	id string,
	to models.Status,
	from []models.Status,
	set string,
	extra []any,
) (*models.Booking, error) {
	id = models.CanonicalID(id)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	var version int64
	err = tx.QueryRowContext(ctx, `SELECT status, version FROM bookings WHERE id = ?`, id).Scan(&status, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}

	if !containsStatus(from, models.Status(status)) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrStatusConflict, status, to)
	}

	now := formatTime(time.Now().UTC())
	args := []any{string(to), now}
	args = append(args, extra...)
	args = append(args, now, id, version)

	result, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, `+set+`, updated_at = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, ErrConcurrentModification
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	db.logger.Debug().Str("booking_id", id).Str("from", status).Str("to", string(to)).Msg("Booking status updated")
	return db.GetBooking(ctx, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func (db *DB) scanBooking(row scanner) (*models.Booking, error) {
	var (
		b                                     models.Booking
		start, stylistID, status, updatedAt   string
		stylistFirst, stylistLast             sql.NullString
		clientID, clientFirst, clientLast     sql.NullString
		manualName, reason, note              sql.NullString
		confirmedAt, cancelledAt, completedAt sql.NullString
	)
	if err := row.Scan(
		&b.ID, &start, &stylistID, &stylistFirst, &stylistLast,
		&clientID, &clientFirst, &clientLast, &manualName,
		&status, &reason, &note,
		&confirmedAt, &cancelledAt, &completedAt, &updatedAt, &b.Version,
	); err != nil {
		return nil, err
	}

	var err error
	if b.Start, err = db.parseTime(start); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = db.parseTime(updatedAt); err != nil {
		return nil, err
	}
	if b.ConfirmedAt, err = db.parseNullTime(confirmedAt); err != nil {
		return nil, err
	}
	if b.CancelledAt, err = db.parseNullTime(cancelledAt); err != nil {
		return nil, err
	}
	if b.CompletedAt, err = db.parseNullTime(completedAt); err != nil {
		return nil, err
	}

	if stylistFirst.Valid {
		b.Stylist = models.ResolvedStylist(models.Stylist{ID: stylistID, FirstName: stylistFirst.String, LastName: stylistLast.String})
	} else {
		b.Stylist = models.UnresolvedStylist(stylistID)
	}

	switch {
	case manualName.Valid:
		b.Client = models.ManualClient(manualName.String)
	case clientID.Valid && clientFirst.Valid:
		b.Client = models.ResolvedClient(models.Client{ID: clientID.String, FirstName: clientFirst.String, LastName: clientLast.String})
	default:
		b.Client = models.NoClient()
	}

	b.Status = models.Status(status)
	b.CancellationReason = reason.String
	b.CompletionNote = note.String
	return &b, nil
}

// loadServices returns services per booking id, for one booking or all.
func (db *DB) loadServices(ctx context.Context, bookingID string) (map[string][]models.Service, error) {
	query := `SELECT booking_id, service_id, name FROM booking_services`
	var args []any
	if bookingID != "" {
		query += ` WHERE booking_id = ?`
		args = append(args, bookingID)
	}
	query += ` ORDER BY booking_id, position`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query services: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]models.Service)
	for rows.Next() {
		var id string
		var s models.Service
		if err := rows.Scan(&id, &s.ID, &s.Name); err != nil {
			return nil, err
		}
		out[id] = append(out[id], s)
	}
	return out, rows.Err()
}

func containsStatus(list []models.Status, s models.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
