package database

import (
	"context"
	"errors"
	"testing"

	"agrirent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEquipmentCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	e := seedEquipment(t, db, "owner-1")
	require.NotZero(t, e.ID)

	got, err := db.GetEquipment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "Swaraj 744 FE", got.Title)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, got.Images)
	assert.True(t, got.IsAvailable)

	got.PricePerDay = 1300
	got.Description = "updated"
	require.NoError(t, db.UpdateEquipment(ctx, got))

	again, err := db.GetEquipment(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, 1300.0, again.PricePerDay)
	assert.Equal(t, "updated", again.Description)

	require.NoError(t, db.SetEquipmentAvailability(ctx, e.ID, false))
	hidden, err := db.GetEquipment(ctx, e.ID)
	require.NoError(t, err)
	assert.False(t, hidden.IsAvailable)

	_, err = db.GetEquipment(ctx, 999)
	assert.True(t, errors.Is(err, ErrNotFound))

	err = db.UpdateEquipment(ctx, &models.Equipment{ID: 999, Title: "x", Category: models.CategoryOther, PricePerDay: 1, Location: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, db.SetEquipmentAvailability(ctx, 999, true), ErrNotFound)
}

func TestListEquipmentFilters(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	items := []models.Equipment{
		{ID: 1, Title: "Mahindra 575", Category: models.CategoryTractor, Description: "Reliable tractor", PricePerDay: 1500, Location: "Nashik", OwnerID: "o1", IsAvailable: true},
		{ID: 2, Title: "Boom sprayer", Category: models.CategorySprayer, Description: "For cotton fields", PricePerDay: 400, Location: "Pune", OwnerID: "o2", IsAvailable: true},
		{ID: 3, Title: "Combine", Category: models.CategoryHarvester, Description: "Paddy harvester", PricePerDay: 5000, Location: "Ludhiana", OwnerID: "o1", IsAvailable: true},
		{ID: 4, Title: "Old tiller", Category: models.CategoryTiller, PricePerDay: 200, Location: "Nashik", OwnerID: "o2", IsAvailable: false},
	}
	require.NoError(t, db.SyncEquipment(ctx, items))

	tests := []struct {
		name   string
		filter models.EquipmentFilter
		want   []int64
	}{
		{"all visible", models.EquipmentFilter{Category: "all"}, []int64{3, 2, 1}},
		{"search title", models.EquipmentFilter{Search: "MAHINDRA"}, []int64{1}},
		{"search description", models.EquipmentFilter{Search: "cotton"}, []int64{2}},
		{"category", models.EquipmentFilter{Category: models.CategoryHarvester}, []int64{3}},
		{"location substring", models.EquipmentFilter{Location: "nash"}, []int64{1}},
		{"max price", models.EquipmentFilter{MaxPricePerDay: 1500}, []int64{2, 1}},
		{"owner including hidden", models.EquipmentFilter{OwnerID: "o2", IncludeHidden: true}, []int64{4, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := db.ListEquipment(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]int64, 0, len(got))
			for _, e := range got {
				ids = append(ids, e.ID)
			}
			assert.ElementsMatch(t, tt.want, ids)
		})
	}
}

func TestSyncEquipmentUpserts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	items := []models.Equipment{{ID: 7, Title: "Drip kit", Category: models.CategoryIrrigation, PricePerDay: 100, Location: "Jalgaon", OwnerID: "o", IsAvailable: true}}
	require.NoError(t, db.SyncEquipment(ctx, items))

	items[0].PricePerDay = 120
	require.NoError(t, db.SyncEquipment(ctx, items))

	got, err := db.GetEquipment(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.PricePerDay)

	all, err := db.ListEquipment(ctx, models.EquipmentFilter{IncludeHidden: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
