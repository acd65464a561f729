package repository

import (
	"context"
	"sync"
	"time"

	"agrirent/internal/models"
)

type MemoryStateRepository struct {
	mu         sync.Mutex
	drafts     map[string]draftEntry
	rateLimits map[string]*rateLimitEntry
	ttl        time.Duration
	now        func() time.Time
}

type draftEntry struct {
	draft     models.DraftState
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryStateRepository(ttl time.Duration) *MemoryStateRepository {
	return &MemoryStateRepository{
		drafts:     make(map[string]draftEntry),
		rateLimits: make(map[string]*rateLimitEntry),
		ttl:        ttl,
		now:        time.Now,
	}
}

func (r *MemoryStateRepository) GetDraft(_ context.Context, partyID string) (*models.DraftState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.drafts[partyID]
	if !ok {
		return nil, nil
	}
	if r.ttl > 0 && r.now().After(entry.expiresAt) {
		delete(r.drafts, partyID)
		return nil, nil
	}
	draft := entry.draft
	return &draft, nil
}

func (r *MemoryStateRepository) SetDraft(_ context.Context, draft *models.DraftState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.drafts[draft.PartyID] = draftEntry{draft: *draft, expiresAt: r.now().Add(r.ttl)}
	return nil
}

func (r *MemoryStateRepository) ClearDraft(_ context.Context, partyID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.drafts, partyID)
	return nil
}

func (r *MemoryStateRepository) CheckRateLimit(_ context.Context, partyID string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[partyID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[partyID] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
