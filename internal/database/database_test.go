package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/config"
	"salonbook/internal/models"
)

func setupDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := NewDB(filepath.Join(t.TempDir(), "salon.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, db.UpsertStylist(ctx, models.Stylist{ID: "A", FirstName: "Ana", LastName: "Lopez"}))
	require.NoError(t, db.UpsertClient(ctx, models.Client{ID: "c1", FirstName: "Maria", LastName: "Diaz"}))

	require.NoError(t, db.CreateBooking(ctx, models.Booking{
		ID:       "1",
		Start:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Stylist:  models.UnresolvedStylist("A"),
		Services: []models.Service{{ID: "s1", Name: "Cut"}, {ID: "s2", Name: "Color"}},
		Client:   models.ManualClient("Walk-in Rosa"),
		Status:   models.StatusPending,
	}))
	require.NoError(t, db.CreateBooking(ctx, models.Booking{
		ID:      "2",
		Start:   time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		Stylist: models.UnresolvedStylist("B"),
		Client:  models.ResolvedClient(models.Client{ID: "c1"}),
		Status:  models.StatusConfirmed,
	}))
}

func TestListAndGetBookings(t *testing.T) {
	db := setupDB(t)
	seed(t, db)
	ctx := context.Background()

	bookings, err := db.ListBookings(ctx)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	assert.Equal(t, "2", bookings[0].ID)
	assert.Equal(t, "1", bookings[1].ID)

	b, err := db.GetBooking(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, []models.Service{{ID: "s1", Name: "Cut"}, {ID: "s2", Name: "Color"}}, b.Services)
	name, ok := b.Client.ManualName()
	assert.True(t, ok)
	assert.Equal(t, "Walk-in Rosa", name)
	stylist, ok := b.Stylist.Resolved()
	require.True(t, ok)
	assert.Equal(t, "Ana Lopez", stylist.FullName())
	assert.True(t, b.Start.Equal(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(1), b.Version)

	b, err = db.GetBooking(ctx, "2")
	require.NoError(t, err)
	assert.Empty(t, b.Services)
	client, ok := b.Client.Resolved()
	require.True(t, ok)
	assert.Equal(t, "Maria Diaz", client.FullName())
	_, ok = b.Stylist.Resolved()
	assert.False(t, ok)
	assert.Equal(t, "B", b.StylistID())

	_, err = db.GetBooking(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitions(t *testing.T) {
	db := setupDB(t)
	seed(t, db)
	ctx := context.Background()

	b, err := db.Confirm(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, b.Status)
	assert.NotNil(t, b.ConfirmedAt)
	assert.Equal(t, int64(2), b.Version)

	_, err = db.Confirm(ctx, "1")
	assert.ErrorIs(t, err, ErrStatusConflict)

	b, err = db.Cancel(ctx, "1", "no-show")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, b.Status)
	assert.Equal(t, "no-show", b.CancellationReason)
	assert.NotNil(t, b.CancelledAt)

	_, err = db.Complete(ctx, "1", "done")
	assert.ErrorIs(t, err, ErrStatusConflict)

	b, err = db.Complete(ctx, "2", "Service completed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, b.Status)
	assert.Equal(t, "Service completed", b.CompletionNote)

	_, err = db.Cancel(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransitionJournal(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	at := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	require.NoError(t, db.AppendTransition(ctx, models.TransitionRecord{
		ID: "t1", BookingID: "1", From: models.StatusPending, To: models.StatusConfirmed, At: at,
	}))
	require.NoError(t, db.AppendTransition(ctx, models.TransitionRecord{
		ID: "t2", BookingID: "1", From: models.StatusConfirmed, To: models.StatusCancelled, Reason: "sick", At: at.Add(time.Hour),
	}))
	require.NoError(t, db.AppendTransition(ctx, models.TransitionRecord{
		ID: "t3", BookingID: "2", From: models.StatusPending, To: models.StatusCompleted, Note: "ok", At: at,
	}))

	records, err := db.ListTransitions(ctx, "1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "t1", records[0].ID)
	assert.Equal(t, "sick", records[1].Reason)
	assert.True(t, records[1].At.Equal(at.Add(time.Hour)))

	// ids are unique
	assert.Error(t, db.AppendTransition(ctx, models.TransitionRecord{ID: "t1", BookingID: "1", At: at}))
}

func TestBackup(t *testing.T) {
	db := setupDB(t)
	seed(t, db)

	dir := filepath.Join(t.TempDir(), "backups")
	logger := zerolog.Nop()
	svc := NewBackupService(db, config.BackupConfig{Enabled: true, StoragePath: dir, RetentionDays: 7}, &logger)
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	path, err := svc.PerformBackup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backup_20240501_120000.db"), path)

	copyDB, err := NewDB(path, time.UTC, &logger)
	require.NoError(t, err)
	defer copyDB.Close()
	bookings, err := copyDB.ListBookings(context.Background())
	require.NoError(t, err)
	assert.Len(t, bookings, 2)

	old := filepath.Join(dir, "backup_20000101_000000.db")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.Chtimes(old, time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)))

	// the fresh backup has a real mtime of now, newer than the cutoff
	svc.now = time.Now
	assert.Equal(t, 1, svc.CleanupOldBackups())
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))
}
