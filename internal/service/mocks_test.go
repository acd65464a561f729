package service

import (
	"context"
	"time"

	"agrirent/internal/domain"
	"agrirent/internal/models"

	"github.com/stretchr/testify/mock"
)

// mockRepo stubs the repository methods the catalog and user services touch.
// Anything else panics through the nil embedded interface.
type mockRepo struct {
	mock.Mock
	domain.Repository
}

func (m *mockRepo) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Equipment), args.Error(1)
}

func (m *mockRepo) ListEquipment(ctx context.Context, f models.EquipmentFilter) ([]*models.Equipment, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Equipment), args.Error(1)
}

func (m *mockRepo) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockRepo) UpdateEquipment(ctx context.Context, e *models.Equipment) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockRepo) SetEquipmentAvailability(ctx context.Context, id int64, available bool) error {
	return m.Called(ctx, id, available).Error(0)
}

func (m *mockRepo) UpsertUser(ctx context.Context, u *models.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockRepo) GetUserByPartyID(ctx context.Context, partyID string) (*models.User, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockRepo) UpdateUserContact(ctx context.Context, partyID, email, phone string) error {
	args := m.Called(ctx, partyID, email, phone)
	return args.Error(0)
}

func (m *mockRepo) GetUsers(ctx context.Context, adminsOnly bool) ([]*models.User, error) {
	args := m.Called(ctx, adminsOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}

type mockStateRepo struct {
	mock.Mock
}

func (m *mockStateRepo) GetDraft(ctx context.Context, partyID string) (*models.DraftState, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DraftState), args.Error(1)
}

func (m *mockStateRepo) SetDraft(ctx context.Context, draft *models.DraftState) error {
	return m.Called(ctx, draft).Error(0)
}

func (m *mockStateRepo) ClearDraft(ctx context.Context, partyID string) error {
	return m.Called(ctx, partyID).Error(0)
}

func (m *mockStateRepo) CheckRateLimit(ctx context.Context, partyID string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, partyID, limit, window)
	return args.Bool(0), args.Error(1)
}
