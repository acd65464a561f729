package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"agrirent/internal/domain"
	"agrirent/internal/models"

	"github.com/rs/zerolog"
)

type listingCacheEntry struct {
	items     []*models.Equipment
	expiresAt time.Time
}

// EquipmentService serves the catalog. Listing results are cached per filter,
// at most maxEntries of them, and dropped on every write.
type EquipmentService struct {
	repo       domain.Repository
	admins     adminChecker
	logger     *zerolog.Logger
	cacheTTL   time.Duration
	maxEntries int
	cache      map[models.EquipmentFilter]listingCacheEntry
	mu         sync.RWMutex
	now        func() time.Time
}

func NewEquipmentService(repo domain.Repository, admins adminChecker, cacheTTL time.Duration, logger *zerolog.Logger) *EquipmentService {
	return &EquipmentService{
		repo:       repo,
		admins:     admins,
		logger:     logger,
		cacheTTL:   cacheTTL,
		maxEntries: models.CatalogCacheMaxEntries,
		cache:      make(map[models.EquipmentFilter]listingCacheEntry),
		now:        time.Now,
	}
}

func normalizeFilter(f models.EquipmentFilter) models.EquipmentFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.Location = strings.TrimSpace(f.Location)
	if strings.EqualFold(f.Category, "all") {
		f.Category = ""
	}
	return f
}

func (s *EquipmentService) List(ctx context.Context, f models.EquipmentFilter) ([]*models.Equipment, error) {
	f = normalizeFilter(f)
	if f.Category != "" && !models.IsValidCategory(f.Category) {
		return nil, fmt.Errorf("unknown category %q: %w", f.Category, ErrInvalidEquipment)
	}

	if s.cacheTTL > 0 {
		s.mu.RLock()
		entry, ok := s.cache[f]
		s.mu.RUnlock()
		if ok && s.now().Before(entry.expiresAt) {
			return entry.items, nil
		}
	}

	items, err := s.repo.ListEquipment(ctx, f)
	if err != nil {
		return nil, err
	}

	if s.cacheTTL > 0 {
		s.storeListing(f, items)
	}
	return items, nil
}

// storeListing drops expired entries first, then the one closest to expiry
// while the cache is still full.
func (s *EquipmentService) storeListing(f models.EquipmentFilter, items []*models.Equipment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.cache {
		if !now.Before(entry.expiresAt) {
			delete(s.cache, key)
		}
	}
	if _, ok := s.cache[f]; !ok && len(s.cache) >= s.maxEntries {
		var oldest models.EquipmentFilter
		var oldestAt time.Time
		for key, entry := range s.cache {
			if oldestAt.IsZero() || entry.expiresAt.Before(oldestAt) {
				oldest, oldestAt = key, entry.expiresAt
			}
		}
		delete(s.cache, oldest)
	}
	s.cache[f] = listingCacheEntry{items: items, expiresAt: now.Add(s.cacheTTL)}
}

func (s *EquipmentService) Get(ctx context.Context, id int64) (*models.Equipment, error) {
	return s.repo.GetEquipment(ctx, id)
}

// Create lists new equipment owned by the caller.
func (s *EquipmentService) Create(ctx context.Context, owner models.Party, e *models.Equipment) error {
	if owner.IsZero() {
		return ErrForbidden
	}
	e.OwnerID = owner.ID
	if e.OwnerName == "" {
		e.OwnerName = owner.Name
	}
	e.IsAvailable = true
	if err := validateEquipment(e); err != nil {
		return err
	}

	if err := s.repo.CreateEquipment(ctx, e); err != nil {
		return err
	}
	s.logger.Info().Int64("equipment_id", e.ID).Str("owner_id", e.OwnerID).Str("category", e.Category).Msg("equipment listed")
	s.Invalidate()
	return nil
}

// Update replaces a listing's details. available is nil when the caller did
// not send it, in which case the listing keeps its visibility.
func (s *EquipmentService) Update(ctx context.Context, actor models.Party, e *models.Equipment, available *bool) error {
	existing, err := s.authorize(ctx, actor, e.ID)
	if err != nil {
		return err
	}
	e.IsAvailable = existing.IsAvailable
	if available != nil {
		e.IsAvailable = *available
	}
	e.OwnerID = existing.OwnerID
	e.CreatedAt = existing.CreatedAt
	if e.OwnerName == "" {
		e.OwnerName = existing.OwnerName
	}
	if err := validateEquipment(e); err != nil {
		return err
	}

	if err := s.repo.UpdateEquipment(ctx, e); err != nil {
		return err
	}
	s.Invalidate()
	return nil
}

// Deactivate hides a listing from renters. Existing bookings stay.
func (s *EquipmentService) Deactivate(ctx context.Context, actor models.Party, id int64) error {
	if _, err := s.authorize(ctx, actor, id); err != nil {
		return err
	}
	if err := s.repo.SetEquipmentAvailability(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().Int64("equipment_id", id).Str("actor", actor.ID).Msg("equipment deactivated")
	s.Invalidate()
	return nil
}

func (s *EquipmentService) authorize(ctx context.Context, actor models.Party, id int64) (*models.Equipment, error) {
	existing, err := s.repo.GetEquipment(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != actor.ID && (s.admins == nil || !s.admins.IsAdmin(actor.ID)) {
		return nil, ErrNotOwner
	}
	return existing, nil
}

func (s *EquipmentService) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[models.EquipmentFilter]listingCacheEntry)
}

func validateEquipment(e *models.Equipment) error {
	e.Title = strings.TrimSpace(e.Title)
	e.Location = strings.TrimSpace(e.Location)
	switch {
	case e.Title == "":
		return fmt.Errorf("title is required: %w", ErrInvalidEquipment)
	case !models.IsValidCategory(e.Category):
		return fmt.Errorf("unknown category %q: %w", e.Category, ErrInvalidEquipment)
	case e.Location == "":
		return fmt.Errorf("location is required: %w", ErrInvalidEquipment)
	case !(e.PricePerDay > 0):
		return fmt.Errorf("price per day must be positive: %w", ErrInvalidEquipment)
	case e.PricePerDay > models.MaxPricePerDay:
		return fmt.Errorf("price per day must not exceed %d: %w", models.MaxPricePerDay, ErrInvalidEquipment)
	}
	return nil
}
