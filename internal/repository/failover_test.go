package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"agrirent/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetDraft(ctx context.Context, partyID string) (*models.DraftState, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DraftState), args.Error(1)
}

func (m *mockRepo) SetDraft(ctx context.Context, draft *models.DraftState) error {
	args := m.Called(ctx, draft)
	return args.Error(0)
}

func (m *mockRepo) ClearDraft(ctx context.Context, partyID string) error {
	args := m.Called(ctx, partyID)
	return args.Error(0)
}

func (m *mockRepo) CheckRateLimit(ctx context.Context, partyID string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, partyID, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverStateRepository(t *testing.T) {
	primary := new(mockRepo)
	fallback := new(mockRepo)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverStateRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		draft := &models.DraftState{PartyID: "p1", EquipmentID: 1}
		primary.On("GetDraft", ctx, "p1").Return(draft, nil).Once()

		got, err := repo.GetDraft(ctx, "p1")
		assert.NoError(t, err)
		assert.Equal(t, draft, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		draft := &models.DraftState{PartyID: "p2"}
		primary.On("GetDraft", ctx, "p2").Return(nil, errors.New("fail")).Once()
		fallback.On("GetDraft", ctx, "p2").Return(draft, nil).Once()

		got, err := repo.GetDraft(ctx, "p2")
		assert.NoError(t, err)
		assert.Equal(t, draft, got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWithinInterval", func(t *testing.T) {
		fallback.On("GetDraft", ctx, "p21").Return(nil, nil).Once()

		got, err := repo.GetDraft(ctx, "p21")
		assert.NoError(t, err)
		assert.Nil(t, got)
		primary.AssertNotCalled(t, "GetDraft", ctx, "p21")
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		draft := &models.DraftState{PartyID: "p3"}
		primary.On("GetDraft", ctx, "p3").Return(draft, nil).Once()

		got, err := repo.GetDraft(ctx, "p3")
		assert.NoError(t, err)
		assert.Equal(t, draft, got)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("GetDraft", ctx, "p33").Return(nil, errors.New("still fail")).Once()
		fallback.On("GetDraft", ctx, "p33").Return(nil, nil).Once()

		_, err := repo.GetDraft(ctx, "p33")
		assert.NoError(t, err)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("SetDraftSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		draft := &models.DraftState{PartyID: "p77"}
		primary.On("SetDraft", ctx, draft).Return(nil).Once()

		assert.NoError(t, repo.SetDraft(ctx, draft))
		primary.AssertExpectations(t)
	})

	t.Run("ClearDraftClearsBoth", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("ClearDraft", ctx, "p88").Return(nil).Once()
		fallback.On("ClearDraft", ctx, "p88").Return(nil).Once()

		assert.NoError(t, repo.ClearDraft(ctx, "p88"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitSuccess", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "p99", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "p99", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		primary.AssertExpectations(t)
	})

	t.Run("SetDraftFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		draft := &models.DraftState{PartyID: "p4"}
		primary.On("SetDraft", ctx, draft).Return(errors.New("fail")).Once()
		fallback.On("SetDraft", ctx, draft).Return(nil).Once()

		assert.NoError(t, repo.SetDraft(ctx, draft))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("ClearDraftFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("ClearDraft", ctx, "p5").Return(errors.New("fail")).Once()
		fallback.On("ClearDraft", ctx, "p5").Return(nil).Once()

		assert.NoError(t, repo.ClearDraft(ctx, "p5"))
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitFailover", func(t *testing.T) {
		repo.isDown.Store(false)
		primary.On("CheckRateLimit", ctx, "p6", 10, time.Minute).Return(false, errors.New("fail")).Once()
		fallback.On("CheckRateLimit", ctx, "p6", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "p6", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("CheckRateLimitAlreadyDown", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().UnixNano())
		fallback.On("CheckRateLimit", ctx, "p66", 10, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "p66", 10, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		fallback.AssertExpectations(t)
	})
}
