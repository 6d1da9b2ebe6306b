package sim

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
}

func TestValidate_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"selection probability above 1", func(c *Config) { c.Run.SelectionProbability = 1.1 }, "selection_probability"},
		{"negative inflation probability", func(c *Config) { c.Inflation.Probability = -0.1 }, "inflation_probability"},
		{"zero event interval", func(c *Config) { c.Run.EventInterval = 0 }, "event_interval"},
		{"negative tick count", func(c *Config) { c.Run.TickCount = -1 }, "tick_count"},
		{"inverted purchase quantity", func(c *Config) { c.Run.PurchaseQtyMin, c.Run.PurchaseQtyMax = 5, 2 }, "purchase_qty"},
		{"inverted inflation percent", func(c *Config) { c.Inflation.MinPercent, c.Inflation.MaxPercent = 20, 10 }, "inflation_percent"},
		{"zero inflation min percent", func(c *Config) { c.Inflation.MinPercent = 0 }, "inflation_min_percent"},
		{"penalty ratio of 1", func(c *Config) { c.Inflation.PenaltyRatio = 1 }, "inflation_penalty_ratio"},
		{"zero recovery ticks", func(c *Config) { c.Inflation.RecoveryTicks = 0 }, "inflation_recovery_ticks"},
		{"zero stock divisor", func(c *Config) { c.Pricing.StockVariationDivisor = 0 }, "stock_variation_divisor"},
		{"whole-unit price decimals", func(c *Config) { c.Pricing.PriceDecimals = 0 }, "price_decimals"},
		{"inverted random band", func(c *Config) { c.Pricing.RandomMin, c.Pricing.RandomMax = 1.1, 0.9 }, "random"},
		{"zero restock suppliers", func(c *Config) { c.Restock.MaxSuppliers = 0 }, "restock_max_suppliers"},
		{"inverted recharge amount", func(c *Config) { c.Recharge.AmountMin, c.Recharge.AmountMax = 10, 1 }, "recharge_amount"},
		{"zero supplier restock interval", func(c *Config) { c.SupplierRestock.Interval = 0 }, "supplier_restock_interval"},
		{"no companies", func(c *Config) { c.Generation.Companies = 0 }, "companies"},
		{"free products", func(c *Config) { c.Generation.BasePriceMin = 0 }, "base_price_min"},
		{"too many preferred categories", func(c *Config) { c.Generation.PreferredCategoriesMax = 4 }, "preferred_categories_max"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestValidate_UnboundedRunAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.TickCount = 0
	assert.NoError(t, cfg.Validate())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "market.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_PartialFile_OverDefaults(t *testing.T) {
	// GIVEN a file setting a handful of options
	path := writeConfig(t, strings.Join([]string{
		"seed: 7",
		"event_interval: 3",
		"partial_fill: false",
		"inflation_penalty_ratio: 0.25",
		"products: 12",
	}, "\n"))

	// WHEN it is loaded
	cfg, err := LoadConfig(path)

	// THEN those options change and the rest keep their defaults
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, int64(7), cfg.Run.Seed)
	assert.Equal(t, int64(3), cfg.Run.EventInterval)
	assert.False(t, cfg.Run.PartialFill)
	assert.Equal(t, 0.25, cfg.Inflation.PenaltyRatio)
	assert.Equal(t, 12, cfg.Generation.Products)
	assert.Equal(t, def.Pricing, cfg.Pricing)
	assert.Equal(t, def.Recharge, cfg.Recharge)
}

func TestLoadConfig_UnknownKey_Rejected(t *testing.T) {
	// GIVEN a typo in an option name
	path := writeConfig(t, "inflation_probabilty: 0.5\n")

	// WHEN loaded
	_, err := LoadConfig(path)

	// THEN strict parsing reports it
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inflation_probabilty")
}

func TestLoadConfig_EmptyFile_Defaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile_Error(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_YAML_UsesFlatOptionNames(t *testing.T) {
	data, err := DefaultConfig().YAML()
	require.NoError(t, err)
	out := string(data)
	for _, key := range []string{"seed: 42", "reference_stock: 50", "inflation_floor_percent: 2", "restock_qty_max: 50", "companies: 20"} {
		assert.Contains(t, out, key)
	}
}
