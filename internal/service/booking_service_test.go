package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"agrirent/internal/database"
	"agrirent/internal/events"
	"agrirent/internal/models"
	"agrirent/internal/payment"
	"agrirent/internal/rental"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

type mockWorker struct {
	mock.Mock
}

func (m *mockWorker) EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error {
	return m.Called(ctx, taskType, bookingID, booking, status).Error(0)
}

type eventRecorder struct {
	mu    sync.Mutex
	types []string
}

func (r *eventRecorder) handle(e *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types = append(r.types, e.Type)
	return nil
}

func (r *eventRecorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func interval(start, end string) models.DateInterval {
	return models.DateInterval{Start: date(start), End: date(end)}
}

type bookingFixture struct {
	svc      *BookingService
	db       *database.DB
	item     *models.Equipment
	worker   *mockWorker
	recorder *eventRecorder
	owner    models.Party
	renter   models.Party
	admin    models.Party
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	logger := zerolog.New(io.Discard)

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	owner := models.Party{ID: "owner-1", Name: "Ravi"}
	item := &models.Equipment{
		Title:       "Mahindra 575 DI",
		Category:    models.CategoryTractor,
		PricePerDay: 500,
		Location:    "Pune",
		OwnerID:     owner.ID,
		OwnerName:   owner.Name,
		IsAvailable: true,
	}
	require.NoError(t, db.CreateEquipment(context.Background(), item))

	recorder := &eventRecorder{}
	bus := events.NewEventBus()
	bus.SubscribeMany(append(events.BookingEvents, events.EventPaymentRecorded), recorder.handle)

	worker := new(mockWorker)
	worker.On("EnqueueTask", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	processor := payment.NewProcessor(
		payment.NewSimulatedGateway(0, &logger),
		payment.NewMemoryIdempotencyStore(time.Hour),
		&logger,
	)
	users := NewUserService(db, []string{"admin-1"}, &logger)

	svc := NewBookingService(db, processor, bus, worker, users, BookingOptions{
		MaxBookingDays: 90,
		MaxRentalDays:  30,
		Clock:          fixedClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)},
	}, &logger)

	return &bookingFixture{
		svc:      svc,
		db:       db,
		item:     item,
		worker:   worker,
		recorder: recorder,
		owner:    owner,
		renter:   models.Party{ID: "renter-1", Name: "Asha"},
		admin:    models.Party{ID: "admin-1", Name: "Ops"},
	}
}

func TestBookingService_Quote(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	q, err := f.svc.Quote(ctx, f.item.ID, interval("2025-06-02", "2025-06-04"))
	require.NoError(t, err)
	assert.Equal(t, 3, q.Days)
	assert.Equal(t, 1500.0, q.Total)
	assert.Equal(t, "2025-06-02", q.StartDate)
	require.Len(t, q.Installments, 3)
	assert.Equal(t, int64(263), q.Installments[1].MonthlyPayment)

	_, err = f.svc.Quote(ctx, f.item.ID, interval("2025-06-04", "2025-06-02"))
	assert.ErrorIs(t, err, models.ErrInvalidRange)

	_, err = f.svc.Quote(ctx, 999, interval("2025-06-02", "2025-06-04"))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestBookingService_CreateBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-04"))
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, 1500.0, b.TotalPrice)
	assert.Equal(t, f.owner.ID, b.OwnerID)
	assert.Equal(t, "BK1748768400000", b.Reference)
	assert.Equal(t, []string{events.EventBookingCreated}, f.recorder.seen())
	f.worker.AssertCalled(t, "EnqueueTask", mock.Anything, "upsert", b.ID, mock.Anything, "")

	t.Run("Overlap", func(t *testing.T) {
		_, err := f.svc.CreateBooking(ctx, models.Party{ID: "renter-2"}, f.item.ID, interval("2025-06-04", "2025-06-06"))
		assert.ErrorIs(t, err, models.ErrStaleAvailability)
	})

	t.Run("Adjacent", func(t *testing.T) {
		_, err := f.svc.CreateBooking(ctx, models.Party{ID: "renter-2"}, f.item.ID, interval("2025-06-05", "2025-06-06"))
		assert.NoError(t, err)
	})

	tests := []struct {
		name    string
		renter  models.Party
		iv      models.DateInterval
		wantErr error
	}{
		{"Reversed", f.renter, interval("2025-06-20", "2025-06-18"), models.ErrInvalidRange},
		{"Past", f.renter, interval("2025-05-31", "2025-06-01"), ErrPastDate},
		{"TooFar", f.renter, interval("2025-09-01", "2025-09-02"), ErrDateTooFar},
		{"TooLong", f.renter, interval("2025-06-10", "2025-07-20"), ErrRentalTooLong},
		{"OwnEquipment", f.owner, interval("2025-06-20", "2025-06-21"), ErrOwnEquipment},
		{"Anonymous", models.Party{}, interval("2025-06-20", "2025-06-21"), rental.ErrMissingRenter},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateBooking(ctx, tt.renter, f.item.ID, tt.iv)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("TodayAllowed", func(t *testing.T) {
		_, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-01", "2025-06-01"))
		assert.NoError(t, err)
	})

	t.Run("HiddenEquipment", func(t *testing.T) {
		require.NoError(t, f.db.SetEquipmentAvailability(ctx, f.item.ID, false))
		_, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-20", "2025-06-21"))
		assert.ErrorIs(t, err, ErrEquipmentUnavailable)
	})
}

func TestBookingService_ConcurrentCreate(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			renter := models.Party{ID: "renter-" + string(rune('a'+i))}
			_, err := f.svc.CreateBooking(ctx, renter, f.item.ID, interval("2025-06-10", "2025-06-12"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, models.ErrStaleAvailability):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	overlaps, err := f.svc.FindOverlaps(ctx, f.admin)
	require.NoError(t, err)
	assert.Empty(t, overlaps)
}

func TestBookingService_Availability(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-03"))
	require.NoError(t, err)

	cal, err := f.svc.GetCalendar(ctx, f.item.ID, date("2025-05-31"), 5)
	require.NoError(t, err)
	require.Len(t, cal, 5)
	assert.Equal(t, models.BlockedReasonPast, cal[0].Reason)
	assert.False(t, cal[1].Blocked)
	assert.Equal(t, models.BlockedReasonBooked, cal[2].Reason)
	assert.Equal(t, models.BlockedReasonBooked, cal[3].Reason)
	assert.False(t, cal[4].Blocked)

	cal, err = f.svc.GetCalendar(ctx, f.item.ID, time.Time{}, 0)
	require.NoError(t, err)
	assert.Len(t, cal, models.DefaultCalendarDays)
	assert.Equal(t, date("2025-06-01"), cal[0].Date)

	blocked, reason, err := f.svc.IsDateBlocked(ctx, f.item.ID, date("2025-06-02").Add(17*time.Hour))
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Equal(t, models.BlockedReasonBooked, reason)

	blocked, _, err = f.svc.IsDateBlocked(ctx, f.item.ID, date("2025-06-05"))
	require.NoError(t, err)
	assert.False(t, blocked)

	_, _, err = f.svc.IsDateBlocked(ctx, 404, date("2025-06-05"))
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestBookingService_PayBooking(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	t.Run("SuccessWithEMI", func(t *testing.T) {
		b, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-04"))
		require.NoError(t, err)

		req := models.PaymentRequest{Method: models.PaymentMethodEMI, TermMonths: 6, SimulateSuccess: true, IdempotencyKey: "pay-1"}
		paid, pay, err := f.svc.PayBooking(ctx, f.renter, b.ID, req)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, paid.Status)
		assert.Equal(t, 6, paid.EMITermMonths)
		assert.Equal(t, int64(263), paid.MonthlyInstallment)
		assert.Equal(t, models.PaymentSucceeded, pay.Status)
		assert.NotEmpty(t, pay.TransactionID)

		stored, err := f.db.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, stored.Status)
		assert.Equal(t, int64(2), stored.Version)

		again, replay, err := f.svc.PayBooking(ctx, f.renter, b.ID, req)
		require.NoError(t, err)
		assert.Equal(t, pay.TransactionID, replay.TransactionID)
		assert.Equal(t, models.StatusConfirmed, again.Status)

		payments, err := f.db.GetPaymentsByBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)

		_, _, err = f.svc.PayBooking(ctx, f.renter, b.ID, models.PaymentRequest{Method: models.PaymentMethodCard, SimulateSuccess: true})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("DeclinedReleasesDates", func(t *testing.T) {
		b, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-10", "2025-06-11"))
		require.NoError(t, err)

		failed, pay, err := f.svc.PayBooking(ctx, f.renter, b.ID, models.PaymentRequest{Method: models.PaymentMethodUPI})
		require.NoError(t, err)
		assert.Equal(t, models.StatusFailed, failed.Status)
		assert.Equal(t, models.PaymentFailed, pay.Status)

		_, err = f.svc.CreateBooking(ctx, models.Party{ID: "renter-2"}, f.item.ID, interval("2025-06-10", "2025-06-11"))
		assert.NoError(t, err)
	})

	t.Run("Validation", func(t *testing.T) {
		b, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-20", "2025-06-21"))
		require.NoError(t, err)

		_, _, err = f.svc.PayBooking(ctx, f.renter, b.ID, models.PaymentRequest{Method: "cash"})
		assert.ErrorIs(t, err, payment.ErrInvalidMethod)

		_, _, err = f.svc.PayBooking(ctx, f.renter, b.ID, models.PaymentRequest{Method: models.PaymentMethodEMI, TermMonths: 9})
		assert.ErrorIs(t, err, models.ErrInvalidTerm)

		_, _, err = f.svc.PayBooking(ctx, models.Party{ID: "stranger"}, b.ID, models.PaymentRequest{Method: models.PaymentMethodCard})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestBookingService_PayBookingConcurrentKeys(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-05", "2025-06-06"))
	require.NoError(t, err)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		confirmed int
		rejected  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := models.PaymentRequest{
				Method:          models.PaymentMethodCard,
				SimulateSuccess: true,
				IdempotencyKey:  "card-" + string(rune('a'+i)),
			}
			_, _, err := f.svc.PayBooking(ctx, f.renter, b.ID, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				confirmed++
			case errors.Is(err, ErrInvalidTransition):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, confirmed)
	assert.Equal(t, callers-1, rejected)

	payments, err := f.db.GetPaymentsByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1, "only one charge is captured")
}

func TestBookingService_Checkout(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	t.Run("Declined", func(t *testing.T) {
		b, pay, err := f.svc.Checkout(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-03"),
			models.PaymentRequest{Method: models.PaymentMethodCard, SimulateSuccess: false})
		assert.ErrorIs(t, err, ErrPaymentDeclined)
		assert.Nil(t, b)
		require.NotNil(t, pay)
		assert.Equal(t, models.PaymentFailed, pay.Status)

		bookings, err := f.db.GetBookingsByEquipment(ctx, f.item.ID, nil)
		require.NoError(t, err)
		assert.Empty(t, bookings)
	})

	t.Run("Success", func(t *testing.T) {
		b, pay, err := f.svc.Checkout(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-03"),
			models.PaymentRequest{Method: models.PaymentMethodNetbanking, SimulateSuccess: true})
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, b.Status)
		assert.Equal(t, 1000.0, b.TotalPrice)
		assert.Equal(t, b.ID, pay.BookingID)

		payments, err := f.db.GetPaymentsByBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Len(t, payments, 1)
		assert.Contains(t, f.recorder.seen(), events.EventBookingConfirmed)
	})

	t.Run("TakenDates", func(t *testing.T) {
		_, _, err := f.svc.Checkout(ctx, models.Party{ID: "renter-2"}, f.item.ID, interval("2025-06-03", "2025-06-04"),
			models.PaymentRequest{Method: models.PaymentMethodCard, SimulateSuccess: true})
		assert.ErrorIs(t, err, models.ErrStaleAvailability)
	})
}

func TestBookingService_Transitions(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-04"))
	require.NoError(t, err)

	_, err = f.svc.CompleteBooking(ctx, f.owner, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.CancelBooking(ctx, models.Party{ID: "stranger"}, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := f.svc.CancelBooking(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	f.worker.AssertCalled(t, "EnqueueTask", mock.Anything, "update_status", b.ID, mock.Anything, models.StatusCancelled)

	_, err = f.svc.CancelBooking(ctx, f.renter, b.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	paid, _, err := f.svc.Checkout(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-04"),
		models.PaymentRequest{Method: models.PaymentMethodCard, SimulateSuccess: true})
	require.NoError(t, err)

	_, err = f.svc.CompleteBooking(ctx, f.renter, paid.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	done, err := f.svc.CompleteBooking(ctx, f.admin, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	stored, err := f.db.GetBooking(ctx, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, done.Version, stored.Version)
}

func TestBookingService_Listings(t *testing.T) {
	f := newBookingFixture(t)
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.renter, f.item.ID, interval("2025-06-02", "2025-06-04"))
	require.NoError(t, err)

	got, err := f.svc.GetBooking(ctx, f.owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.Reference, got.Reference)

	_, err = f.svc.GetBooking(ctx, models.Party{ID: "stranger"}, b.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	mine, err := f.svc.GetRenterBookings(ctx, f.renter)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	incoming, err := f.svc.GetOwnerBookings(ctx, f.owner)
	require.NoError(t, err)
	assert.Len(t, incoming, 1)

	byItem, err := f.svc.GetEquipmentBookings(ctx, f.owner, f.item.ID)
	require.NoError(t, err)
	assert.Len(t, byItem, 1)

	_, err = f.svc.GetEquipmentBookings(ctx, f.renter, f.item.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.FindOverlaps(ctx, f.renter)
	assert.ErrorIs(t, err, ErrForbidden)
}
