package payment

import (
	"context"
	"sync"
	"time"
)

const (
	stateProcessing = "processing"
	stateSuccess    = "success"
)

type idempotencyState struct {
	Status    string        `json:"status"`
	Result    *ChargeResult `json:"result,omitempty"`
	ExpiresAt time.Time     `json:"-"`
}

// MemoryIdempotencyStore keeps keys in process memory.
type MemoryIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]*idempotencyState
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		keys: make(map[string]*idempotencyState),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string) (*ChargeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if state, ok := s.keys[key]; ok {
		if s.ttl > 0 && now.After(state.ExpiresAt) {
			delete(s.keys, key)
		} else {
			switch state.Status {
			case stateSuccess:
				return state.Result, nil
			case stateProcessing:
				return nil, ErrPaymentInProgress
			}
			delete(s.keys, key)
		}
	}

	s.keys[key] = &idempotencyState{Status: stateProcessing, ExpiresAt: now.Add(s.ttl)}
	return nil, nil
}

func (s *MemoryIdempotencyStore) MarkSuccess(_ context.Context, key string, result *ChargeResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[key] = &idempotencyState{Status: stateSuccess, Result: result, ExpiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) MarkFailure(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, key)
	return nil
}
