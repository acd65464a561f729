package repository

import (
	"context"
	"sync/atomic"
	"time"

	"agrirent/internal/domain"
	"agrirent/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverStateRepository serves from primary (Redis) and switches to the
// fallback (memory) on error, probing the primary again after recoveryInterval.
type FailoverStateRepository struct {
	primary   domain.StateRepository
	fallback  domain.StateRepository
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
	now       func() time.Time
}

func NewFailoverStateRepository(primary, fallback domain.StateRepository, logger *zerolog.Logger) *FailoverStateRepository {
	return &FailoverStateRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

func (r *FailoverStateRepository) markDown(err error) {
	if !r.isDown.Swap(true) {
		r.logger.Error().Err(err).Msg("Primary state repository failed, falling back to memory")
	}
	r.lastCheck.Store(r.now().UnixNano())
}

// usePrimary reports whether the call should try the primary store.
func (r *FailoverStateRepository) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return r.now().Sub(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverStateRepository) primaryOK() {
	if r.isDown.Swap(false) {
		r.logger.Info().Msg("Primary state repository recovered")
	}
}

func (r *FailoverStateRepository) GetDraft(ctx context.Context, partyID string) (*models.DraftState, error) {
	if r.usePrimary() {
		draft, err := r.primary.GetDraft(ctx, partyID)
		if err == nil {
			r.primaryOK()
			return draft, nil
		}
		r.markDown(err)
	}
	return r.fallback.GetDraft(ctx, partyID)
}

func (r *FailoverStateRepository) SetDraft(ctx context.Context, draft *models.DraftState) error {
	if r.usePrimary() {
		err := r.primary.SetDraft(ctx, draft)
		if err == nil {
			r.primaryOK()
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.SetDraft(ctx, draft)
}

func (r *FailoverStateRepository) ClearDraft(ctx context.Context, partyID string) error {
	if r.usePrimary() {
		err := r.primary.ClearDraft(ctx, partyID)
		if err == nil {
			r.primaryOK()
			// the fallback may hold a copy written while primary was down
			_ = r.fallback.ClearDraft(ctx, partyID)
			return nil
		}
		r.markDown(err)
	}
	return r.fallback.ClearDraft(ctx, partyID)
}

func (r *FailoverStateRepository) CheckRateLimit(ctx context.Context, partyID string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, partyID, limit, window)
		if err == nil {
			r.primaryOK()
			return allowed, nil
		}
		r.markDown(err)
	}
	return r.fallback.CheckRateLimit(ctx, partyID, limit, window)
}
