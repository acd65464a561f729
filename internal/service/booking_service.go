package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"agrirent/internal/domain"
	"agrirent/internal/events"
	"agrirent/internal/metrics"
	"agrirent/internal/models"
	"agrirent/internal/payment"
	"agrirent/internal/rental"

	"github.com/rs/zerolog"
)

const (
	taskUpsert       = "upsert"
	taskUpdateStatus = "update_status"
)

type adminChecker interface {
	IsAdmin(partyID string) bool
}

// BookingOptions bounds the dates a renter may request.
type BookingOptions struct {
	MaxBookingDays int
	MaxRentalDays  int
	Clock          domain.Clock
}

type BookingService struct {
	repo           domain.Repository
	payments       domain.PaymentProcessor
	eventBus       domain.EventPublisher
	sheetsWorker   domain.SyncWorker
	admins         adminChecker
	clock          domain.Clock
	maxBookingDays int
	maxRentalDays  int
	logger         *zerolog.Logger

	// payLocks serialize payments per booking id so a booking is charged once.
	payLocks [32]sync.Mutex
}

func NewBookingService(
	repo domain.Repository,
	payments domain.PaymentProcessor,
	eventBus domain.EventPublisher,
	sheetsWorker domain.SyncWorker,
	admins adminChecker,
	opts BookingOptions,
	logger *zerolog.Logger,
) *BookingService {
	if opts.MaxBookingDays <= 0 {
		opts.MaxBookingDays = models.DefaultMaxBookingDays
	}
	if opts.MaxRentalDays <= 0 {
		opts.MaxRentalDays = models.DefaultMaxRentalDays
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	return &BookingService{
		repo:           repo,
		payments:       payments,
		eventBus:       eventBus,
		sheetsWorker:   sheetsWorker,
		admins:         admins,
		clock:          opts.Clock,
		maxBookingDays: opts.MaxBookingDays,
		maxRentalDays:  opts.MaxRentalDays,
		logger:         logger,
	}
}

func (s *BookingService) isAdmin(partyID string) bool {
	return s.admins != nil && s.admins.IsAdmin(partyID)
}

// ValidateInterval applies the marketplace's date rules to a requested rental.
func (s *BookingService) ValidateInterval(iv models.DateInterval) error {
	if err := iv.Validate(); err != nil {
		return err
	}
	now := s.clock.Now()
	if rental.IsPast(iv.Start, now) {
		return ErrPastDate
	}

	maxStart := models.DateOnly(now).AddDate(0, 0, s.maxBookingDays)
	if models.DateOnly(iv.Start).After(maxStart) {
		return ErrDateTooFar
	}
	if iv.Days() > s.maxRentalDays {
		return fmt.Errorf("%d days, at most %d allowed: %w", iv.Days(), s.maxRentalDays, ErrRentalTooLong)
	}
	return nil
}

// Quote prices a range without reserving anything.
func (s *BookingService) Quote(ctx context.Context, equipmentID int64, iv models.DateInterval) (*models.Quote, error) {
	if err := iv.Validate(); err != nil {
		return nil, err
	}
	item, err := s.repo.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}

	total, err := rental.ComputeTotal(iv.Start, iv.End, item.PricePerDay)
	if err != nil {
		return nil, err
	}
	plans, err := rental.InstallmentPlans(total)
	if err != nil {
		return nil, err
	}
	metrics.IncQuote()

	return &models.Quote{
		EquipmentID:  item.ID,
		StartDate:    models.DateOnly(iv.Start).Format(models.DateLayout),
		EndDate:      models.DateOnly(iv.End).Format(models.DateLayout),
		Days:         iv.Days(),
		PricePerDay:  item.PricePerDay,
		Total:        total,
		Installments: plans,
	}, nil
}

func (s *BookingService) occupied(ctx context.Context, equipmentID int64) (rental.OccupiedDates, error) {
	bookings, err := s.repo.GetBookingsByEquipment(ctx, equipmentID, models.ActiveStatuses)
	if err != nil {
		return nil, err
	}
	return rental.OccupiedFromBookings(bookings), nil
}

// GetCalendar lays out day availability for a listing starting at from.
func (s *BookingService) GetCalendar(ctx context.Context, equipmentID int64, from time.Time, days int) ([]models.DayAvailability, error) {
	if days <= 0 {
		days = models.DefaultCalendarDays
	}
	if days > models.MaxCalendarDays {
		days = models.MaxCalendarDays
	}
	now := s.clock.Now()
	if from.IsZero() {
		from = now
	}

	if _, err := s.repo.GetEquipment(ctx, equipmentID); err != nil {
		return nil, err
	}
	occupied, err := s.occupied(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	return rental.Calendar(from, days, occupied, now), nil
}

// IsDateBlocked answers the single-day availability question and its reason.
func (s *BookingService) IsDateBlocked(ctx context.Context, equipmentID int64, date time.Time) (bool, string, error) {
	if _, err := s.repo.GetEquipment(ctx, equipmentID); err != nil {
		return false, "", err
	}
	occupied, err := s.occupied(ctx, equipmentID)
	if err != nil {
		return false, "", err
	}
	reason := rental.BlockedReason(date, occupied, s.clock.Now())
	return reason != "", reason, nil
}

// prepare loads the listing and checks the range against the current
// bookings snapshot. The write transaction checks again.
func (s *BookingService) prepare(ctx context.Context, renter models.Party, equipmentID int64, iv models.DateInterval) (*models.Equipment, error) {
	if renter.IsZero() {
		return nil, rental.ErrMissingRenter
	}
	if err := s.ValidateInterval(iv); err != nil {
		return nil, err
	}

	item, err := s.repo.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if !item.IsAvailable {
		return nil, ErrEquipmentUnavailable
	}
	if item.OwnerID == renter.ID {
		return nil, ErrOwnEquipment
	}

	occupied, err := s.occupied(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	if day, blocked := rental.FirstBlockedDay(iv, occupied, now); blocked {
		if rental.IsPast(day, now) {
			return nil, ErrPastDate
		}
		metrics.IncBookingConflict()
		return nil, fmt.Errorf("%s is booked: %w", day.Format(models.DateLayout), models.ErrStaleAvailability)
	}
	return item, nil
}

func (s *BookingService) insert(ctx context.Context, booking *models.Booking) error {
	if err := s.repo.CreateBookingWithLock(ctx, booking); err != nil {
		if errors.Is(err, models.ErrStaleAvailability) {
			metrics.IncBookingConflict()
		}
		return err
	}
	metrics.IncBooking(booking.Status)
	return nil
}

func validatePaymentRequest(req models.PaymentRequest) error {
	if !models.IsValidPaymentMethod(req.Method) {
		return fmt.Errorf("%q: %w", req.Method, payment.ErrInvalidMethod)
	}
	if req.Method == models.PaymentMethodEMI {
		if _, err := rental.InterestRate(req.TermMonths); err != nil {
			return err
		}
	}
	return nil
}

// CreateBooking places a pending booking. Payment follows with PayBooking.
func (s *BookingService) CreateBooking(ctx context.Context, renter models.Party, equipmentID int64, iv models.DateInterval) (*models.Booking, error) {
	item, err := s.prepare(ctx, renter, equipmentID, iv)
	if err != nil {
		return nil, err
	}

	booking, err := rental.BuildBooking(item, renter, iv, rental.BuildOptions{Now: s.clock.Now()})
	if err != nil {
		return nil, err
	}
	if err := s.insert(ctx, booking); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("booking_id", booking.ID).Int64("equipment_id", item.ID).Str("renter_id", renter.ID).
		Str("dates", iv.String()).Float64("total", booking.TotalPrice).Msg("booking created")
	s.publishEvent(events.EventBookingCreated, booking, renter.ID)
	s.enqueueSync(ctx, booking, taskUpsert)
	return booking, nil
}

func (s *BookingService) newPayment(booking *models.Booking, req models.PaymentRequest, result *payment.ChargeResult) *models.Payment {
	return &models.Payment{
		BookingID:      booking.ID,
		TransactionID:  result.TransactionID,
		IdempotencyKey: req.IdempotencyKey,
		Method:         req.Method,
		Amount:         result.Amount,
		Status:         result.Status,
		Simulated:      true,
		CreatedAt:      s.clock.Now(),
	}
}

// PayBooking settles a pending booking. A declined charge moves it to failed
// and is not an error.
func (s *BookingService) PayBooking(ctx context.Context, renter models.Party, bookingID int64, req models.PaymentRequest) (*models.Booking, *models.Payment, error) {
	if err := validatePaymentRequest(req); err != nil {
		return nil, nil, err
	}

	lock := &s.payLocks[uint64(bookingID)%uint64(len(s.payLocks))]
	lock.Lock()
	defer lock.Unlock()

	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if booking.RenterID != renter.ID && !s.isAdmin(renter.ID) {
		return nil, nil, ErrForbidden
	}

	if booking.Status != models.StatusPending {
		if prior := s.findPayment(ctx, booking.ID, req.IdempotencyKey); prior != nil {
			return booking, prior, nil
		}
		return nil, nil, fmt.Errorf("pay %s booking: %w", booking.Status, ErrInvalidTransition)
	}

	var monthly int64
	if req.Method == models.PaymentMethodEMI {
		if monthly, err = rental.ComputeInstallment(booking.TotalPrice, req.TermMonths); err != nil {
			return nil, nil, err
		}
	}

	result, replayed, err := s.payments.Process(ctx, payment.ChargeRequest{
		BookingID:       booking.ID,
		Amount:          booking.TotalPrice,
		Method:          req.Method,
		SimulateSuccess: req.SimulateSuccess,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		return nil, nil, err
	}
	if replayed && result.BookingID != booking.ID {
		return nil, nil, fmt.Errorf("idempotency key belongs to booking %d: %w", result.BookingID, payment.ErrPaymentInProgress)
	}

	pay := s.newPayment(booking, req, result)
	if err := s.repo.CreatePayment(ctx, pay); err != nil {
		return nil, nil, err
	}
	metrics.IncPayment(req.Method, result.Status)

	fromVersion := booking.Version
	booking.PaymentMethod = req.Method
	if result.Status == models.PaymentSucceeded {
		booking.Status = models.StatusConfirmed
		if req.Method == models.PaymentMethodEMI {
			booking.EMITermMonths = req.TermMonths
			booking.MonthlyInstallment = monthly
		}
	} else {
		booking.Status = models.StatusFailed
	}
	if err := s.repo.UpdateBookingPaymentWithVersion(ctx, booking, fromVersion); err != nil {
		if result.Status == models.PaymentSucceeded {
			s.logger.Warn().Err(err).Str("transaction_id", result.TransactionID).Int64("booking_id", booking.ID).
				Msg("booking changed after charge, refund required")
		}
		return nil, nil, err
	}
	metrics.IncBooking(booking.Status)

	s.logger.Info().Int64("booking_id", booking.ID).Str("method", req.Method).Str("payment_status", result.Status).
		Str("transaction_id", result.TransactionID).Msg("booking payment processed")

	eventType := events.EventBookingConfirmed
	if booking.Status == models.StatusFailed {
		eventType = events.EventBookingFailed
	}
	s.publishEvent(eventType, booking, renter.ID)
	s.publishPayment(pay)
	s.enqueueSync(ctx, booking, taskUpsert)
	return booking, pay, nil
}

func (s *BookingService) findPayment(ctx context.Context, bookingID int64, key string) *models.Payment {
	if key == "" {
		return nil
	}
	payments, err := s.repo.GetPaymentsByBooking(ctx, bookingID)
	if err != nil {
		s.logger.Warn().Err(err).Int64("booking_id", bookingID).Msg("lookup payments")
		return nil
	}
	for _, p := range payments {
		if p.IdempotencyKey == key {
			return p
		}
	}
	return nil
}

// Checkout charges first and only then stores a confirmed booking. Nothing is
// persisted when the charge is declined.
func (s *BookingService) Checkout(ctx context.Context, renter models.Party, equipmentID int64, iv models.DateInterval, req models.PaymentRequest) (*models.Booking, *models.Payment, error) {
	if err := validatePaymentRequest(req); err != nil {
		return nil, nil, err
	}
	item, err := s.prepare(ctx, renter, equipmentID, iv)
	if err != nil {
		return nil, nil, err
	}

	booking, err := rental.BuildBooking(item, renter, iv, rental.BuildOptions{
		Status:        models.StatusConfirmed,
		PaymentMethod: req.Method,
		TermMonths:    req.TermMonths,
		Now:           s.clock.Now(),
	})
	if err != nil {
		return nil, nil, err
	}

	result, _, err := s.payments.Process(ctx, payment.ChargeRequest{
		Amount:          booking.TotalPrice,
		Method:          req.Method,
		SimulateSuccess: req.SimulateSuccess,
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		return nil, nil, err
	}
	pay := s.newPayment(booking, req, result)
	metrics.IncPayment(req.Method, result.Status)
	if result.Status != models.PaymentSucceeded {
		s.logger.Info().Int64("equipment_id", item.ID).Str("renter_id", renter.ID).Msg("checkout payment declined")
		return nil, pay, ErrPaymentDeclined
	}

	if err := s.insert(ctx, booking); err != nil {
		if errors.Is(err, models.ErrStaleAvailability) {
			s.logger.Warn().Str("transaction_id", result.TransactionID).Int64("equipment_id", item.ID).
				Msg("dates taken after charge, refund required")
		}
		return nil, nil, err
	}

	pay.BookingID = booking.ID
	if err := s.repo.CreatePayment(ctx, pay); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Msg("record checkout payment")
	}

	s.logger.Info().Int64("booking_id", booking.ID).Int64("equipment_id", item.ID).Str("renter_id", renter.ID).
		Str("dates", iv.String()).Float64("total", booking.TotalPrice).Msg("checkout completed")
	s.publishEvent(events.EventBookingCreated, booking, renter.ID)
	s.publishEvent(events.EventBookingConfirmed, booking, renter.ID)
	s.publishPayment(pay)
	s.enqueueSync(ctx, booking, taskUpsert)
	return booking, pay, nil
}

// CancelBooking releases the dates. Renter, owner or admin may cancel a
// pending or confirmed booking.
func (s *BookingService) CancelBooking(ctx context.Context, actor models.Party, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RenterID != actor.ID && booking.OwnerID != actor.ID && !s.isAdmin(actor.ID) {
		return nil, ErrForbidden
	}
	if booking.Status != models.StatusPending && booking.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("cancel %s booking: %w", booking.Status, ErrInvalidTransition)
	}
	return s.transition(ctx, booking, models.StatusCancelled, events.EventBookingCancelled, actor)
}

// CompleteBooking marks a confirmed rental as returned. Owner or admin only.
func (s *BookingService) CompleteBooking(ctx context.Context, actor models.Party, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.OwnerID != actor.ID && !s.isAdmin(actor.ID) {
		return nil, ErrForbidden
	}
	if booking.Status != models.StatusConfirmed {
		return nil, fmt.Errorf("complete %s booking: %w", booking.Status, ErrInvalidTransition)
	}
	return s.transition(ctx, booking, models.StatusCompleted, events.EventBookingCompleted, actor)
}

func (s *BookingService) transition(ctx context.Context, booking *models.Booking, status, eventType string, actor models.Party) (*models.Booking, error) {
	if err := s.repo.UpdateBookingStatusWithVersion(ctx, booking.ID, booking.Version, status); err != nil {
		return nil, err
	}
	booking.Status = status
	booking.Version++
	booking.UpdatedAt = s.clock.Now()
	metrics.IncBooking(status)

	s.logger.Info().Int64("booking_id", booking.ID).Str("status", status).Str("actor", actor.ID).Msg("booking status changed")
	s.publishEvent(eventType, booking, actor.ID)
	s.enqueueSync(ctx, booking, taskUpdateStatus)
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, actor models.Party, bookingID int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.RenterID != actor.ID && booking.OwnerID != actor.ID && !s.isAdmin(actor.ID) {
		return nil, ErrForbidden
	}
	return booking, nil
}

func (s *BookingService) GetRenterBookings(ctx context.Context, renter models.Party) ([]*models.Booking, error) {
	return s.repo.GetBookingsByRenter(ctx, renter.ID)
}

func (s *BookingService) GetOwnerBookings(ctx context.Context, owner models.Party) ([]*models.Booking, error) {
	return s.repo.GetBookingsByOwner(ctx, owner.ID)
}

func (s *BookingService) GetEquipmentBookings(ctx context.Context, actor models.Party, equipmentID int64) ([]*models.Booking, error) {
	item, err := s.repo.GetEquipment(ctx, equipmentID)
	if err != nil {
		return nil, err
	}
	if item.OwnerID != actor.ID && !s.isAdmin(actor.ID) {
		return nil, ErrForbidden
	}
	return s.repo.GetBookingsByEquipment(ctx, equipmentID, nil)
}

// FindOverlaps runs the consistency audit. Admins only.
func (s *BookingService) FindOverlaps(ctx context.Context, actor models.Party) ([]models.Overlap, error) {
	if !s.isAdmin(actor.ID) {
		return nil, ErrForbidden
	}
	overlaps, err := s.repo.FindOverlaps(ctx)
	if err != nil {
		return nil, err
	}
	if len(overlaps) > 0 {
		s.logger.Warn().Int("count", len(overlaps)).Msg("overlapping bookings found")
	}
	return overlaps, nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, changedBy string) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, events.NewBookingPayload(booking, changedBy)); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func (s *BookingService) publishPayment(p *models.Payment) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(events.EventPaymentRecorded, p); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", p.BookingID).Msg("publish payment event error")
	}
}

func (s *BookingService) enqueueSync(ctx context.Context, booking *models.Booking, taskType string) {
	if s.sheetsWorker == nil {
		return
	}

	var status string
	if taskType == taskUpdateStatus {
		status = booking.Status
	}

	snapshot := *booking
	if err := s.sheetsWorker.EnqueueTask(ctx, taskType, booking.ID, &snapshot, status); err != nil {
		s.logger.Error().Err(err).Int64("booking_id", booking.ID).Str("task", taskType).Msg("sheets enqueue error")
	}
}
