package service

import (
	"context"
	"fmt"
	"time"

	"agrirent/internal/domain"
	"agrirent/internal/models"

	"github.com/rs/zerolog"
)

// DraftService keeps a renter's unfinished date selection between requests.
type DraftService struct {
	stateRepo  domain.StateRepository
	rateLimit  int
	rateWindow time.Duration
	logger     *zerolog.Logger
}

func NewDraftService(stateRepo domain.StateRepository, rateLimit int, rateWindow time.Duration, logger *zerolog.Logger) *DraftService {
	if rateLimit <= 0 {
		rateLimit = models.RateLimitRequests
	}
	if rateWindow <= 0 {
		rateWindow = models.RateLimitWindow * time.Second
	}
	return &DraftService{
		stateRepo:  stateRepo,
		rateLimit:  rateLimit,
		rateWindow: rateWindow,
		logger:     logger,
	}
}

func (s *DraftService) GetDraft(ctx context.Context, party models.Party) (*models.DraftState, error) {
	draft, err := s.stateRepo.GetDraft(ctx, party.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("party_id", party.ID).Msg("failed to get draft")
		return nil, err
	}
	return draft, nil
}

// SaveDraft stores a partial selection. Dates may be missing but must parse
// and be ordered when both are present.
func (s *DraftService) SaveDraft(ctx context.Context, party models.Party, draft *models.DraftState) error {
	if draft.EquipmentID <= 0 {
		return fmt.Errorf("equipment_id is required: %w", ErrInvalidDraft)
	}
	if draft.StartDate != "" {
		if _, err := models.ParseDate(draft.StartDate); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidDraft)
		}
	}
	if draft.EndDate != "" {
		if _, err := models.ParseDate(draft.EndDate); err != nil {
			return fmt.Errorf("%v: %w", err, ErrInvalidDraft)
		}
	}
	if _, _, err := draft.Interval(); err != nil {
		return err
	}
	if draft.PaymentMethod != "" && !models.IsValidPaymentMethod(draft.PaymentMethod) {
		return fmt.Errorf("unknown payment method %q: %w", draft.PaymentMethod, ErrInvalidDraft)
	}

	draft.PartyID = party.ID
	draft.UpdatedAt = time.Now()
	return s.stateRepo.SetDraft(ctx, draft)
}

func (s *DraftService) ClearDraft(ctx context.Context, party models.Party) error {
	return s.stateRepo.ClearDraft(ctx, party.ID)
}

// CheckRateLimit reports whether the party may make another request in the
// current window.
func (s *DraftService) CheckRateLimit(ctx context.Context, party models.Party) (bool, error) {
	return s.stateRepo.CheckRateLimit(ctx, party.ID, s.rateLimit, s.rateWindow)
}
