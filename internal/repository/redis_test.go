package repository

import (
	"context"
	"testing"
	"time"

	"agrirent/internal/config"
	"agrirent/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStateRepository(t *testing.T) {
	s := miniredis.RunT(t)

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisStateRepository(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetDraft", func(t *testing.T) {
		draft := &models.DraftState{
			PartyID:       "renter-1",
			EquipmentID:   42,
			StartDate:     "2025-06-01",
			EndDate:       "2025-06-03",
			PaymentMethod: models.PaymentMethodEMI,
			TermMonths:    6,
		}

		require.NoError(t, repo.SetDraft(ctx, draft))
		assert.True(t, s.Exists("agrirent:draft:renter-1"))
		assert.Equal(t, time.Hour, s.TTL("agrirent:draft:renter-1"))

		got, err := repo.GetDraft(ctx, "renter-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, draft.EquipmentID, got.EquipmentID)
		assert.Equal(t, draft.EndDate, got.EndDate)
		assert.Equal(t, 6, got.TermMonths)
	})

	t.Run("GetMissingDraft", func(t *testing.T) {
		got, err := repo.GetDraft(ctx, "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("CorruptDraft", func(t *testing.T) {
		require.NoError(t, s.Set("agrirent:draft:broken", "{not json"))
		_, err := repo.GetDraft(ctx, "broken")
		assert.Error(t, err)
	})

	t.Run("ClearDraft", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, &models.DraftState{PartyID: "renter-2"}))
		require.NoError(t, repo.ClearDraft(ctx, "renter-2"))

		got, _ := repo.GetDraft(ctx, "renter-2")
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		window := time.Second
		for i := 0; i < 2; i++ {
			allowed, err := repo.CheckRateLimit(ctx, "renter-3", 2, window)
			require.NoError(t, err)
			assert.True(t, allowed)
		}

		allowed, err := repo.CheckRateLimit(ctx, "renter-3", 2, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, "renter-3", 2, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisStateRepository(nil, time.Hour)
		_, err := repo.GetDraft(ctx, "renter-1")
		assert.ErrorContains(t, err, "redis client is nil")
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("PingDown", func(t *testing.T) {
		s.SetError("server down")
		defer s.SetError("")
		assert.Error(t, Ping(ctx, client))
	})
}

func TestClose(t *testing.T) {
	s := miniredis.RunT(t)
	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	assert.NoError(t, Close(client))
	assert.NoError(t, Close(nil))
}
