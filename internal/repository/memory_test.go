package repository

import (
	"context"
	"testing"
	"time"

	"agrirent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	t.Run("SetAndGetDraft", func(t *testing.T) {
		draft := &models.DraftState{PartyID: "renter-1", EquipmentID: 7, StartDate: "2025-06-02"}
		require.NoError(t, repo.SetDraft(ctx, draft))

		got, err := repo.GetDraft(ctx, "renter-1")
		require.NoError(t, err)
		assert.Equal(t, draft, got)

		got.EndDate = "2025-06-04"
		again, _ := repo.GetDraft(ctx, "renter-1")
		assert.Empty(t, again.EndDate, "stored draft must not alias the returned copy")
	})

	t.Run("DraftExpires", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, &models.DraftState{PartyID: "renter-2"}))
		now = now.Add(2 * time.Hour)

		got, err := repo.GetDraft(ctx, "renter-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearDraft", func(t *testing.T) {
		require.NoError(t, repo.SetDraft(ctx, &models.DraftState{PartyID: "renter-1"}))
		require.NoError(t, repo.ClearDraft(ctx, "renter-1"))
		got, _ := repo.GetDraft(ctx, "renter-1")
		assert.Nil(t, got)
	})

	t.Run("RateLimit", func(t *testing.T) {
		allowed, _ := repo.CheckRateLimit(ctx, "renter-3", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "renter-3", 2, time.Second)
		assert.True(t, allowed)
		allowed, _ = repo.CheckRateLimit(ctx, "renter-3", 2, time.Second)
		assert.False(t, allowed)

		now = now.Add(time.Second + 10*time.Millisecond)
		allowed, _ = repo.CheckRateLimit(ctx, "renter-3", 2, time.Second)
		assert.True(t, allowed)
	})
}
