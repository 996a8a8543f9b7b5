package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"salonbook/internal/models"
)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Confirm(ctx context.Context, id string) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockProvider) Cancel(ctx context.Context, id, reason string) (*models.Booking, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockProvider) Complete(ctx context.Context, id, note string) (*models.Booking, error) {
	args := m.Called(ctx, id, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

type fakeView struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
}

func newFakeView(bookings ...models.Booking) *fakeView {
	v := &fakeView{bookings: make(map[string]models.Booking)}
	for _, b := range bookings {
		v.bookings[b.ID] = b
	}
	return v
}

func (v *fakeView) Get(id string) (models.Booking, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	b, ok := v.bookings[id]
	return b, ok
}

func (v *fakeView) Apply(b models.Booking) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.bookings[b.ID] = b
}

// hookView runs afterGet once, after the first Get returns its result.
type hookView struct {
	*fakeView
	fired    atomic.Bool
	afterGet func()
}

func (v *hookView) Get(id string) (models.Booking, bool) {
	b, ok := v.fakeView.Get(id)
	if v.fired.CompareAndSwap(false, true) {
		v.afterGet()
	}
	return b, ok
}

type captureRecorder struct {
	mu      sync.Mutex
	records []models.TransitionRecord
}

func (r *captureRecorder) Publish(rec models.TransitionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

func (r *captureRecorder) all() []models.TransitionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.TransitionRecord(nil), r.records...)
}

var fixedNow = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func booking(id string, status models.Status) models.Booking {
	return models.Booking{
		ID:      id,
		Start:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
		Stylist: models.UnresolvedStylist("A"),
		Status:  status,
	}
}

func withStatus(b models.Booking, status models.Status) *models.Booking {
	b.Status = status
	return &b
}

func setup(bookings ...models.Booking) (*Controller, *MockProvider, *fakeView, *captureRecorder) {
	provider := new(MockProvider)
	view := newFakeView(bookings...)
	rec := &captureRecorder{}
	c := NewController(nil, provider, view, nil, rec, nil)
	c.now = func() time.Time { return fixedNow }
	return c, provider, view, rec
}

func TestCancel_BlankReasonIsValidationError(t *testing.T) {
	c, provider, view, rec := setup(booking("1", models.StatusPending))

	for _, reason := range []string{"", "   ", "\t\n"} {
		got, err := c.Cancel(context.Background(), "1", reason)
		assert.Nil(t, got)
		assert.ErrorIs(t, err, ErrValidation)
	}

	// also before the snapshot lookup
	_, err := c.Cancel(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrValidation)

	provider.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything, mock.Anything)
	b, _ := view.Get("1")
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Empty(t, rec.all())
}

func TestCancel_PendingNoShow(t *testing.T) {
	start := booking("1", models.StatusPending)
	c, provider, view, rec := setup(start)

	updated := withStatus(start, models.StatusCancelled)
	updated.CancellationReason = "no-show"
	provider.On("Cancel", mock.Anything, "1", "no-show").Return(updated, nil).Once()

	got, err := c.Cancel(context.Background(), "1", "  no-show ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	assert.Equal(t, "no-show", got.CancellationReason)

	b, _ := view.Get("1")
	assert.Equal(t, models.StatusCancelled, b.Status)

	records := rec.all()
	require.Len(t, records, 1)
	assert.Equal(t, "1", records[0].BookingID)
	assert.Equal(t, models.StatusPending, records[0].From)
	assert.Equal(t, models.StatusCancelled, records[0].To)
	assert.Equal(t, "no-show", records[0].Reason)
	assert.Equal(t, fixedNow, records[0].At)
	assert.NotEmpty(t, records[0].ID)
	provider.AssertExpectations(t)
}

func TestTerminalStatesRejectEveryAction(t *testing.T) {
	for _, status := range []models.Status{models.StatusCompleted, models.StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			c, provider, view, rec := setup(booking("1", status))
			ctx := context.Background()

			_, err := c.Confirm(ctx, "1")
			assert.ErrorIs(t, err, ErrInvalidTransition)
			_, err = c.Cancel(ctx, "1", "late")
			assert.ErrorIs(t, err, ErrInvalidTransition)
			_, err = c.Complete(ctx, "1", "")
			assert.ErrorIs(t, err, ErrInvalidTransition)

			b, _ := view.Get("1")
			assert.Equal(t, status, b.Status)
			assert.Empty(t, rec.all())
			assert.Empty(t, provider.Calls)
		})
	}
}

func TestConfirm(t *testing.T) {
	start := booking("1", models.StatusPending)
	c, provider, view, _ := setup(start, booking("2", models.StatusConfirmed))
	provider.On("Confirm", mock.Anything, "1").Return(withStatus(start, models.StatusConfirmed), nil).Once()

	got, err := c.Confirm(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	b, _ := view.Get("1")
	assert.Equal(t, models.StatusConfirmed, b.Status)

	// confirm is only defined from PENDING
	_, err = c.Confirm(context.Background(), "2")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	provider.AssertExpectations(t)
}

func TestComplete_DefaultNote(t *testing.T) {
	start := booking("1", models.StatusConfirmed)
	c, provider, _, rec := setup(start)

	updated := withStatus(start, models.StatusCompleted)
	updated.CompletionNote = DefaultCompletionNote
	provider.On("Complete", mock.Anything, "1", DefaultCompletionNote).Return(updated, nil).Once()

	got, err := c.Complete(context.Background(), "1", "  ")
	require.NoError(t, err)
	assert.Equal(t, DefaultCompletionNote, got.CompletionNote)
	require.Len(t, rec.all(), 1)
	assert.Equal(t, DefaultCompletionNote, rec.all()[0].Note)
	provider.AssertExpectations(t)
}

func TestComplete_ConfiguredNote(t *testing.T) {
	start := booking("1", models.StatusPending)
	provider := new(MockProvider)
	c := NewController(&Config{DefaultCompletionNote: "Done"}, provider, newFakeView(start), nil, nil, nil)

	provider.On("Complete", mock.Anything, "1", "Done").Return(withStatus(start, models.StatusCompleted), nil).Once()
	_, err := c.Complete(context.Background(), "1", "")
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestStaleSelection(t *testing.T) {
	c, provider, _, rec := setup(booking("1", models.StatusPending))

	_, err := c.Confirm(context.Background(), "42")
	assert.ErrorIs(t, err, ErrStaleSelection)
	assert.Empty(t, provider.Calls)
	assert.Empty(t, rec.all())
}

func TestProviderFailureLeavesSnapshot(t *testing.T) {
	start := booking("1", models.StatusPending)
	c, provider, view, rec := setup(start)

	cause := errors.New("connection reset")
	provider.On("Confirm", mock.Anything, "1").Return(nil, cause).Once()

	_, err := c.Confirm(context.Background(), "1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsProviderError(err))

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ActionConfirm, pe.Op)
	assert.Equal(t, "1", pe.BookingID)

	b, _ := view.Get("1")
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Empty(t, rec.all())

	// the guard is released, a retry goes through
	provider.On("Confirm", mock.Anything, "1").Return(withStatus(start, models.StatusConfirmed), nil).Once()
	_, err = c.Confirm(context.Background(), "1")
	assert.NoError(t, err)
}

func TestProviderWrongStatusIsProviderError(t *testing.T) {
	start := booking("1", models.StatusPending)
	c, provider, view, _ := setup(start)
	provider.On("Confirm", mock.Anything, "1").Return(withStatus(start, models.StatusPending), nil).Once()

	_, err := c.Confirm(context.Background(), "1")
	assert.ErrorIs(t, err, ErrProvider)
	b, _ := view.Get("1")
	assert.Equal(t, models.StatusPending, b.Status)
}

func TestSecondRequestWhileInFlightIsRejected(t *testing.T) {
	start := booking("1", models.StatusPending)
	c, provider, view, _ := setup(start)

	entered := make(chan struct{})
	release := make(chan struct{})
	provider.On("Confirm", mock.Anything, "1").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(withStatus(start, models.StatusConfirmed), nil).Once()

	done := make(chan error, 1)
	go func() {
		_, err := c.Confirm(context.Background(), "1")
		done <- err
	}()
	<-entered

	// snapshot still shows the prior status while the request is pending
	b, _ := view.Get("1")
	assert.Equal(t, models.StatusPending, b.Status)

	_, err := c.Cancel(context.Background(), "1", "changed mind")
	assert.ErrorIs(t, err, ErrTransitionInFlight)

	close(release)
	require.NoError(t, <-done)
	provider.AssertExpectations(t)
}

func TestCommitBetweenCheckAndGuardIsRejected(t *testing.T) {
	provider := new(MockProvider)
	rec := &captureRecorder{}
	b := booking("1", models.StatusPending)
	view := &hookView{fakeView: newFakeView(b)}
	c := NewController(nil, provider, view, nil, rec, nil)

	provider.On("Confirm", mock.Anything, "1").Return(withStatus(b, models.StatusConfirmed), nil).Once()

	// the first request has read PENDING; a second one commits before it
	// reaches the guard
	var otherErr error
	view.afterGet = func() {
		_, otherErr = c.Confirm(context.Background(), "1")
	}

	got, err := c.Confirm(context.Background(), "1")
	require.NoError(t, otherErr)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.False(t, IsProviderError(err))

	provider.AssertNumberOfCalls(t, "Confirm", 1)
	provider.AssertExpectations(t)
	assert.Len(t, rec.all(), 1)

	current, _ := view.fakeView.Get("1")
	assert.Equal(t, models.StatusConfirmed, current.Status)
}

func TestDispatchedCallIgnoresCallerCancellation(t *testing.T) {
	start := booking("1", models.StatusPending)
	c, provider, _, _ := setup(start)

	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })
	provider.On("Confirm", live, "1").Return(withStatus(start, models.StatusConfirmed), nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Confirm(ctx, "1")
	require.NoError(t, err)
	provider.AssertExpectations(t)
}

func TestFSM(t *testing.T) {
	f := NewFSM()
	tests := []struct {
		from, to models.Status
		want     bool
	}{
		{models.StatusPending, models.StatusConfirmed, true},
		{models.StatusPending, models.StatusCancelled, true},
		{models.StatusPending, models.StatusCompleted, true},
		{models.StatusConfirmed, models.StatusCancelled, true},
		{models.StatusConfirmed, models.StatusCompleted, true},
		{models.StatusConfirmed, models.StatusConfirmed, false},
		{models.StatusConfirmed, models.StatusPending, false},
		{models.StatusCompleted, models.StatusCancelled, false},
		{models.StatusCancelled, models.StatusConfirmed, false},
		{models.Status("ARCHIVED"), models.StatusConfirmed, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	ctx := context.Background()

	ok, err := g.TryAcquire(ctx, "1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, _ = g.TryAcquire(ctx, "1")
	assert.False(t, ok)
	ok, _ = g.TryAcquire(ctx, "2")
	assert.True(t, ok)

	require.NoError(t, g.Release(ctx, "1"))
	ok, _ = g.TryAcquire(ctx, "1")
	assert.True(t, ok)
}
