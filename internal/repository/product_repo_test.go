package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tillsync/internal/model"
)

func product(id, merchantID, name string, priceCents int64) model.Product {
	return model.Product{
		ID:         id,
		MerchantID: merchantID,
		Name:       name,
		PriceCents: priceCents,
		VatRate:    decimal.NewFromInt(21),
		IsActive:   true,
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestReplaceForMerchantSwapsCatalog(t *testing.T) {
	repo := NewProductRepository(newTestDB(t))
	ctx := context.Background()
	syncedAt := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.ReplaceForMerchant(ctx, "m1", []model.Product{
		product("p-1", "m1", "Espresso", 250),
		product("p-2", "m1", "Latte", 380),
	}, syncedAt))

	// A second full refresh drops p-2 entirely, no stale leftovers.
	require.NoError(t, repo.ReplaceForMerchant(ctx, "m1", []model.Product{
		product("p-1", "m1", "Espresso", 270),
		product("p-3", "m1", "Mocha", 420),
	}, syncedAt.Add(time.Minute)))

	products, err := repo.List(ctx, "m1", false, "")
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "p-1", products[0].ID)
	assert.Equal(t, int64(270), products[0].PriceCents)
	assert.Equal(t, "p-3", products[1].ID)

	mark, err := repo.LastProductSync(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.True(t, mark.Equal(syncedAt.Add(time.Minute)))
}

func TestReplaceForMerchantLeavesOtherMerchantsAlone(t *testing.T) {
	repo := NewProductRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.ReplaceForMerchant(ctx, "m1", []model.Product{
		product("p-1", "m1", "Espresso", 250),
	}, now))
	require.NoError(t, repo.ReplaceForMerchant(ctx, "m2", []model.Product{
		product("p-9", "m2", "Bagel", 310),
	}, now))

	require.NoError(t, repo.ReplaceForMerchant(ctx, "m1", nil, now.Add(time.Minute)))

	m1, err := repo.List(ctx, "m1", false, "")
	require.NoError(t, err)
	assert.Empty(t, m1)

	m2, err := repo.List(ctx, "m2", false, "")
	require.NoError(t, err)
	assert.Len(t, m2, 1)
}

func TestUpsertBatchMergesIncrementalFetch(t *testing.T) {
	repo := NewProductRepository(newTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, repo.ReplaceForMerchant(ctx, "m1", []model.Product{
		product("p-1", "m1", "Espresso", 250),
		product("p-2", "m1", "Latte", 380),
	}, base))

	changed := product("p-2", "m1", "Latte Grande", 420)
	added := product("p-4", "m1", "Flat White", 360)
	require.NoError(t, repo.UpsertBatch(ctx, "m1", []model.Product{changed, added}, base.Add(time.Minute)))

	products, err := repo.List(ctx, "m1", false, "")
	require.NoError(t, err)
	require.Len(t, products, 3)

	byID := make(map[string]model.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	assert.Equal(t, int64(250), byID["p-1"].PriceCents, "untouched row survives")
	assert.Equal(t, "Latte Grande", byID["p-2"].Name)
	assert.Equal(t, int64(360), byID["p-4"].PriceCents)

	mark, err := repo.LastProductSync(ctx, "m1")
	require.NoError(t, err)
	require.NotNil(t, mark)
	assert.True(t, mark.Equal(base.Add(time.Minute)))
}

func TestListFilters(t *testing.T) {
	repo := NewProductRepository(newTestDB(t))
	ctx := context.Background()

	inactive := product("p-2", "m1", "Retired blend", 200)
	inactive.IsActive = false
	sku := "SKU-77"
	withSKU := product("p-3", "m1", "House roast", 300)
	withSKU.SKU = &sku
	require.NoError(t, repo.ReplaceForMerchant(ctx, "m1", []model.Product{
		product("p-1", "m1", "Espresso", 250),
		inactive,
		withSKU,
	}, time.Now().UTC()))

	active, err := repo.List(ctx, "m1", true, "")
	require.NoError(t, err)
	assert.Len(t, active, 2)

	byName, err := repo.List(ctx, "m1", false, "roast")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "p-3", byName[0].ID)

	bySKU, err := repo.List(ctx, "m1", false, "SKU-77")
	require.NoError(t, err)
	require.Len(t, bySKU, 1)
	assert.Equal(t, "p-3", bySKU[0].ID)
}

func TestLastProductSyncNilWhenNeverFetched(t *testing.T) {
	repo := NewProductRepository(newTestDB(t))
	mark, err := repo.LastProductSync(context.Background(), "m-unknown")
	require.NoError(t, err)
	assert.Nil(t, mark)
}
