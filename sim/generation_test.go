package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateEntities_CountsAndRanges(t *testing.T) {
	// GIVEN the default generation parameters
	cfg := DefaultConfig().Generation

	// WHEN a population is generated
	products, suppliers, companies := GenerateEntities(cfg, testRNG(42))

	// THEN counts and value ranges follow the config
	require.Len(t, products, cfg.Products)
	require.Len(t, suppliers, cfg.Suppliers)
	require.Len(t, companies, cfg.Companies)

	names := map[string]bool{}
	for _, p := range products {
		assert.True(t, p.Active)
		assert.True(t, IsValidCategory(string(p.Category)))
		assert.GreaterOrEqual(t, p.BasePrice, cfg.BasePriceMin)
		assert.LessOrEqual(t, p.BasePrice, cfg.BasePriceMax)
		assert.Equal(t, p.BasePrice, p.OriginalPrice)
		assert.False(t, names[p.Name], "duplicate product name %q", p.Name)
		names[p.Name] = true
	}
	for _, s := range suppliers {
		assert.GreaterOrEqual(t, len(s.Stock), cfg.ProductsPerSupplierMin)
		assert.LessOrEqual(t, len(s.Stock), cfg.ProductsPerSupplierMax)
		assert.NotEmpty(t, s.Continent)
		for _, qty := range s.Stock {
			assert.GreaterOrEqual(t, qty, cfg.StockMin)
			assert.LessOrEqual(t, qty, cfg.StockMax)
		}
	}
	for _, c := range companies {
		assert.True(t, IsValidStrategy(string(c.Strategy)))
		assert.NotEmpty(t, c.PreferredCategories)
		assert.LessOrEqual(t, len(c.PreferredCategories), cfg.PreferredCategoriesMax)
		assert.Equal(t, c.Budget, c.InitialBudget)
	}
}

func TestGenerateEntities_SameSeed_SamePopulation(t *testing.T) {
	cfg := DefaultConfig().Generation
	p1, s1, c1 := GenerateEntities(cfg, testRNG(9))
	p2, s2, c2 := GenerateEntities(cfg, testRNG(9))

	assert.Equal(t, p1, p2)
	assert.Equal(t, s1, s2)
	assert.Equal(t, c1, c2)
}

func TestGenerateEntities_MoreProductsPerSupplierThanProducts_Clamped(t *testing.T) {
	cfg := DefaultConfig().Generation
	cfg.Products = 3
	cfg.ProductsPerSupplierMin = 5
	cfg.ProductsPerSupplierMax = 8

	_, suppliers, _ := GenerateEntities(cfg, testRNG(1))

	for _, s := range suppliers {
		assert.Len(t, s.Stock, 3)
	}
}

func TestNewGeneratedStore_Valid(t *testing.T) {
	store, err := NewGeneratedStore(DefaultConfig().Generation, testRNG(42))
	require.NoError(t, err)
	assert.Equal(t, 30, store.ActiveProductCount())
	assert.Len(t, store.ListCompanies(), 20)
}
