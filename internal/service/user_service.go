package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"agrirent/internal/domain"
	"agrirent/internal/models"
	"agrirent/internal/rental"

	"github.com/rs/zerolog"
)

type UserService struct {
	repo      domain.Repository
	logger    *zerolog.Logger
	adminsMap map[string]bool
}

func NewUserService(repo domain.Repository, admins []string, logger *zerolog.Logger) *UserService {
	adminsMap := make(map[string]bool, len(admins))
	for _, id := range admins {
		adminsMap[id] = true
	}

	return &UserService{
		repo:      repo,
		logger:    logger,
		adminsMap: adminsMap,
	}
}

func (s *UserService) IsAdmin(partyID string) bool {
	return s.adminsMap[partyID]
}

// Touch records the caller on every authenticated request.
func (s *UserService) Touch(ctx context.Context, party models.Party) error {
	if party.IsZero() {
		return nil
	}
	now := time.Now()
	return s.repo.UpsertUser(ctx, &models.User{
		PartyID:      party.ID,
		DisplayName:  party.Name,
		IsAdmin:      s.IsAdmin(party.ID),
		LastActivity: now,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
}

func (s *UserService) GetUser(ctx context.Context, partyID string) (*models.User, error) {
	return s.repo.GetUserByPartyID(ctx, partyID)
}

// GetAdmins lists known administrators. Only an administrator may ask.
func (s *UserService) GetAdmins(ctx context.Context, actor models.Party) ([]*models.User, error) {
	if !s.IsAdmin(actor.ID) {
		return nil, ErrForbidden
	}
	return s.repo.GetUsers(ctx, true)
}

func (s *UserService) UpdateContact(ctx context.Context, party models.Party, email, phone string) (*models.User, error) {
	if party.IsZero() {
		return nil, rental.ErrMissingRenter
	}
	email = strings.TrimSpace(email)
	phone = strings.TrimSpace(phone)
	if email != "" && !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email %q: %w", email, ErrInvalidContact)
	}
	if err := s.Touch(ctx, party); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateUserContact(ctx, party.ID, email, phone); err != nil {
		return nil, err
	}
	s.logger.Info().Str("party_id", party.ID).Msg("contact details updated")
	return s.repo.GetUserByPartyID(ctx, party.ID)
}
