package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusFailed    = "failed"
	StatusCompleted = "completed"
)

// ActiveStatuses are the booking statuses whose dates stay occupied.
var ActiveStatuses = []string{StatusPending, StatusConfirmed, StatusCompleted}

// IsActiveStatus reports whether a booking in this status occupies its dates.
func IsActiveStatus(status string) bool {
	for _, s := range ActiveStatuses {
		if s == status {
			return true
		}
	}
	return false
}

const (
	CategoryTractor    = "Tractor"
	CategoryHarvester  = "Harvester"
	CategoryPlanter    = "Planter"
	CategorySprayer    = "Sprayer"
	CategoryIrrigation = "Irrigation"
	CategoryTiller     = "Tiller"
	CategoryMower      = "Mower"
	CategoryOther      = "Other"
)

var Categories = []string{
	CategoryTractor,
	CategoryHarvester,
	CategoryPlanter,
	CategorySprayer,
	CategoryIrrigation,
	CategoryTiller,
	CategoryMower,
	CategoryOther,
}

// IsValidCategory checks the listing category against the fixed catalog.
func IsValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

const (
	PaymentMethodCard       = "card"
	PaymentMethodUPI        = "upi"
	PaymentMethodNetbanking = "netbanking"
	PaymentMethodEMI        = "emi"
)

// IsValidPaymentMethod reports whether the method is one the gateway accepts.
func IsValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodCard, PaymentMethodUPI, PaymentMethodNetbanking, PaymentMethodEMI:
		return true
	}
	return false
}

const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"

	// DefaultDraftTTL lifetime of a booking draft in Redis
	DefaultDraftTTL = 24 * 60 * 60 // 24 hours in seconds

	// DefaultCalendarDays number of days returned by the availability calendar
	DefaultCalendarDays = 60

	// MaxCalendarDays upper bound for a single calendar request
	MaxCalendarDays = 366

	// DefaultMaxBookingDays how far ahead a rental may start
	DefaultMaxBookingDays = 365

	// DefaultMaxRentalDays longest single rental
	DefaultMaxRentalDays = 90

	// WorkerQueueSize in-memory queue size of the ledger worker
	WorkerQueueSize = 1000

	// RateLimitRequests requests per party in a window
	RateLimitRequests = 120

	// RateLimitWindow window for the per-party limit
	RateLimitWindow = 60 // 1 minute in seconds

	// CatalogCacheTTL lifetime of the in-memory listing cache
	CatalogCacheTTL = 30 * 60 // 30 minutes in seconds

	// CatalogCacheMaxEntries distinct listing filters kept in the cache
	CatalogCacheMaxEntries = 256

	// MaxPricePerDay ceiling for a listing's daily price
	MaxPricePerDay = 1_000_000
)
