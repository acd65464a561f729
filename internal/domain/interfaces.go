package domain

import (
	"context"
	"time"

	"agrirent/internal/models"
	"agrirent/internal/payment"
)

// Repository is the persistence collaborator of the services.
type Repository interface {
	CreateEquipment(ctx context.Context, e *models.Equipment) error
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	ListEquipment(ctx context.Context, f models.EquipmentFilter) ([]*models.Equipment, error)
	UpdateEquipment(ctx context.Context, e *models.Equipment) error
	SetEquipmentAvailability(ctx context.Context, id int64, available bool) error

	CreateBookingWithLock(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	GetBookingsByEquipment(ctx context.Context, equipmentID int64, statuses []string) ([]*models.Booking, error)
	GetBookingsByRenter(ctx context.Context, renterID string) ([]*models.Booking, error)
	GetBookingsByOwner(ctx context.Context, ownerID string) ([]*models.Booking, error)
	UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status string) error
	UpdateBookingPaymentWithVersion(ctx context.Context, b *models.Booking, fromVersion int64) error
	FindOverlaps(ctx context.Context) ([]models.Overlap, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	GetPaymentsByBooking(ctx context.Context, bookingID int64) ([]*models.Payment, error)

	UpsertUser(ctx context.Context, user *models.User) error
	GetUserByPartyID(ctx context.Context, partyID string) (*models.User, error)
	UpdateUserContact(ctx context.Context, partyID, email, phone string) error
	GetUsers(ctx context.Context, adminsOnly bool) ([]*models.User, error)
}

// StateRepository keeps renters' draft selections and request counters.
type StateRepository interface {
	GetDraft(ctx context.Context, partyID string) (*models.DraftState, error)
	SetDraft(ctx context.Context, draft *models.DraftState) error
	ClearDraft(ctx context.Context, partyID string) error
	CheckRateLimit(ctx context.Context, partyID string, limit int, window time.Duration) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PaymentProcessor charges a booking, deduplicating by idempotency key.
type PaymentProcessor interface {
	Process(ctx context.Context, req payment.ChargeRequest) (*payment.ChargeResult, bool, error)
}

// SyncWorker mirrors bookings into the external ledger.
type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking, status string) error
}

// SheetsWriter is the ledger the sync worker writes to.
type SheetsWriter interface {
	UpsertBooking(ctx context.Context, booking *models.Booking) error
	UpdateBookingStatus(ctx context.Context, bookingID int64, status string) error
	DeleteBookingRow(ctx context.Context, bookingID int64) error
}

// Clock supplies "now" so date rules can be tested.
type Clock interface {
	Now() time.Time
}

type BookingService interface {
	Quote(ctx context.Context, equipmentID int64, iv models.DateInterval) (*models.Quote, error)
	GetCalendar(ctx context.Context, equipmentID int64, from time.Time, days int) ([]models.DayAvailability, error)
	IsDateBlocked(ctx context.Context, equipmentID int64, date time.Time) (bool, string, error)
	CreateBooking(ctx context.Context, renter models.Party, equipmentID int64, iv models.DateInterval) (*models.Booking, error)
	PayBooking(ctx context.Context, renter models.Party, bookingID int64, req models.PaymentRequest) (*models.Booking, *models.Payment, error)
	Checkout(ctx context.Context, renter models.Party, equipmentID int64, iv models.DateInterval, req models.PaymentRequest) (*models.Booking, *models.Payment, error)
	CancelBooking(ctx context.Context, actor models.Party, bookingID int64) (*models.Booking, error)
	CompleteBooking(ctx context.Context, actor models.Party, bookingID int64) (*models.Booking, error)
	GetBooking(ctx context.Context, actor models.Party, bookingID int64) (*models.Booking, error)
	GetRenterBookings(ctx context.Context, renter models.Party) ([]*models.Booking, error)
	GetOwnerBookings(ctx context.Context, owner models.Party) ([]*models.Booking, error)
	GetEquipmentBookings(ctx context.Context, actor models.Party, equipmentID int64) ([]*models.Booking, error)
	FindOverlaps(ctx context.Context, actor models.Party) ([]models.Overlap, error)
}

type EquipmentService interface {
	List(ctx context.Context, f models.EquipmentFilter) ([]*models.Equipment, error)
	Get(ctx context.Context, id int64) (*models.Equipment, error)
	Create(ctx context.Context, owner models.Party, e *models.Equipment) error
	Update(ctx context.Context, actor models.Party, e *models.Equipment, available *bool) error
	Deactivate(ctx context.Context, actor models.Party, id int64) error
}

type UserService interface {
	IsAdmin(partyID string) bool
	Touch(ctx context.Context, party models.Party) error
	GetUser(ctx context.Context, partyID string) (*models.User, error)
	GetAdmins(ctx context.Context, actor models.Party) ([]*models.User, error)
	UpdateContact(ctx context.Context, party models.Party, email, phone string) (*models.User, error)
}

type DraftService interface {
	GetDraft(ctx context.Context, party models.Party) (*models.DraftState, error)
	SaveDraft(ctx context.Context, party models.Party, draft *models.DraftState) error
	ClearDraft(ctx context.Context, party models.Party) error
	CheckRateLimit(ctx context.Context, party models.Party) (bool, error)
}
