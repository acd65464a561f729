package events

import (
	"encoding/json"
	"sync"
	"time"

	"agrirent/internal/models"
)

const (
	EventBookingCreated   = "booking_created"
	EventBookingConfirmed = "booking_confirmed"
	EventBookingFailed    = "booking_failed"
	EventBookingCancelled = "booking_cancelled"
	EventBookingCompleted = "booking_completed"
	EventPaymentRecorded  = "payment_recorded"
)

// BookingEvents lists every booking lifecycle event type.
var BookingEvents = []string{
	EventBookingCreated,
	EventBookingConfirmed,
	EventBookingFailed,
	EventBookingCancelled,
	EventBookingCompleted,
}

// BookingEventPayload is the booking snapshot sent to event consumers.
type BookingEventPayload struct {
	BookingID      int64     `json:"booking_id"`
	Reference      string    `json:"reference"`
	EquipmentID    int64     `json:"equipment_id"`
	EquipmentTitle string    `json:"equipment_title"`
	OwnerID        string    `json:"owner_id"`
	RenterID       string    `json:"renter_id"`
	RenterName     string    `json:"renter_name"`
	StartDate      string    `json:"start_date"`
	EndDate        string    `json:"end_date"`
	TotalPrice     float64   `json:"total_price"`
	Status         string    `json:"status"`
	PaymentMethod  string    `json:"payment_method,omitempty"`
	ChangedBy      string    `json:"changed_by,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// NewBookingPayload snapshots a booking for publishing.
func NewBookingPayload(b *models.Booking, changedBy string) BookingEventPayload {
	return BookingEventPayload{
		BookingID:      b.ID,
		Reference:      b.Reference,
		EquipmentID:    b.EquipmentID,
		EquipmentTitle: b.EquipmentTitle,
		OwnerID:        b.OwnerID,
		RenterID:       b.RenterID,
		RenterName:     b.RenterName,
		StartDate:      b.StartDate.Format(models.DateLayout),
		EndDate:        b.EndDate.Format(models.DateLayout),
		TotalPrice:     b.TotalPrice,
		Status:         b.Status,
		PaymentMethod:  b.PaymentMethod,
		ChangedBy:      changedBy,
		OccurredAt:     time.Now(),
	}
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	onError     func(event *Event, err error)
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeMany registers one handler for several event types.
func (b *EventBus) SubscribeMany(eventTypes []string, handler EventHandler) {
	for _, t := range eventTypes {
		b.Subscribe(t, handler)
	}
}

// OnError installs a callback for handler failures.
func (b *EventBus) OnError(fn func(event *Event, err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	onError := b.onError
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil && onError != nil {
			onError(event, err)
		}
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}

	b.Publish(&event)
	return nil
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
