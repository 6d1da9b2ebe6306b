package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// RunConfig groups orchestrator parameters.
type RunConfig struct {
	Seed                  int64   `yaml:"seed"`                    // master seed for every RNG subsystem
	TickCount             int64   `yaml:"tick_count"`              // ticks per run; 0 = unbounded
	SelectionProbability  float64 `yaml:"selection_probability"`   // chance a company trades in a tick
	EventInterval         int64   `yaml:"event_interval"`          // events run when tick % interval == 0 (> 0)
	PartialFill           bool    `yaml:"partial_fill"`            // clamp quantity to stock instead of failing
	PurchaseQtyMin        int     `yaml:"purchase_qty_min"`        // min units requested per attempt (> 0)
	PurchaseQtyMax        int     `yaml:"purchase_qty_max"`        // max units requested per attempt
	PreferredCategoryBias float64 `yaml:"preferred_category_bias"` // chance a company shops its preferred categories
}

// InflationConfig groups the inflation rule and its decay.
type InflationConfig struct {
	Probability         float64 `yaml:"inflation_probability"`
	CategoryProbability float64 `yaml:"inflation_category_probability"` // chance a hit covers a whole category
	MinPercent          float64 `yaml:"inflation_min_percent"`
	MaxPercent          float64 `yaml:"inflation_max_percent"`
	PenaltyRatio        float64 `yaml:"inflation_penalty_ratio"` // repeat hit percent = previous percent × ratio, in (0,1)
	DurationTicks       int64   `yaml:"inflation_duration_ticks"`
	RecoveryTicks       int64   `yaml:"inflation_recovery_ticks"`
	FloorPercent        float64 `yaml:"inflation_floor_percent"` // permanent residual above the product's original price
}

// RestockConfig groups the availability restock rule and the restock quantities.
type RestockConfig struct {
	Probability  float64 `yaml:"restock_probability"`
	MaxSuppliers int     `yaml:"restock_max_suppliers"`
	QtyMin       int     `yaml:"restock_qty_min"`
	QtyMax       int     `yaml:"restock_qty_max"`
}

// RechargeConfig groups the budget recharge rule.
type RechargeConfig struct {
	Probability          float64 `yaml:"recharge_probability"`
	SelectionProbability float64 `yaml:"recharge_selection_probability"`
	AmountMin            float64 `yaml:"recharge_amount_min"`
	AmountMax            float64 `yaml:"recharge_amount_max"`
}

// AvailabilityConfig groups the availability variation rule.
type AvailabilityConfig struct {
	Probability             float64 `yaml:"availability_variation_probability"`
	ReactivationProbability float64 `yaml:"reactivation_probability"`
	DeactivationProbability float64 `yaml:"deactivation_probability"`
}

// SupplierRestockConfig groups the periodic quantity restock.
// The rule is checked on event ticks only, so the effective period is Interval
// rounded up to a multiple of event_interval (7 with event_interval 5 fires every 10).
type SupplierRestockConfig struct {
	Interval           int64   `yaml:"supplier_restock_interval"`
	Probability        float64 `yaml:"supplier_restock_probability"`
	ProductProbability float64 `yaml:"product_restock_probability"`
}

// GenerationConfig controls the initial random population.
type GenerationConfig struct {
	Products               int     `yaml:"products"`
	Suppliers              int     `yaml:"suppliers"`
	Companies              int     `yaml:"companies"`
	BasePriceMin           float64 `yaml:"base_price_min"`
	BasePriceMax           float64 `yaml:"base_price_max"`
	BudgetMin              float64 `yaml:"budget_min"`
	BudgetMax              float64 `yaml:"budget_max"`
	StockMin               int     `yaml:"stock_min"`
	StockMax               int     `yaml:"stock_max"`
	ProductsPerSupplierMin int     `yaml:"products_per_supplier_min"`
	ProductsPerSupplierMax int     `yaml:"products_per_supplier_max"`
	PreferredCategoriesMax int     `yaml:"preferred_categories_max"`
}

// Config is the immutable parameter snapshot of one run.
// YAML sections are flattened so every option keeps its documented name.
type Config struct {
	Run             RunConfig             `yaml:",inline"`
	Pricing         PricingConfig         `yaml:",inline"`
	Inflation       InflationConfig       `yaml:",inline"`
	Restock         RestockConfig         `yaml:",inline"`
	Recharge        RechargeConfig        `yaml:",inline"`
	Availability    AvailabilityConfig    `yaml:",inline"`
	SupplierRestock SupplierRestockConfig `yaml:",inline"`
	Generation      GenerationConfig      `yaml:",inline"`
}

// DefaultConfig returns the parameters used when no config file is given.
func DefaultConfig() Config {
	return Config{
		Run: RunConfig{
			Seed:                  42,
			TickCount:             100,
			SelectionProbability:  0.3,
			EventInterval:         5,
			PartialFill:           true,
			PurchaseQtyMin:        1,
			PurchaseQtyMax:        10,
			PreferredCategoryBias: 0.7,
		},
		Pricing: PricingConfig{
			ReferenceStock:        50,
			StockVariationDivisor: 1000,
			MaxStockAdjust:        0.05,
			RandomMin:             0.95,
			RandomMax:             1.05,
			PriceDecimals:         2,
		},
		Inflation: InflationConfig{
			Probability:         0.1,
			CategoryProbability: 0.2,
			MinPercent:          5,
			MaxPercent:          15,
			PenaltyRatio:        0.5,
			DurationTicks:       10,
			RecoveryTicks:       20,
			FloorPercent:        2,
		},
		Restock: RestockConfig{
			Probability:  0.2,
			MaxSuppliers: 3,
			QtyMin:       10,
			QtyMax:       50,
		},
		Recharge: RechargeConfig{
			Probability:          0.2,
			SelectionProbability: 0.5,
			AmountMin:            500,
			AmountMax:            2000,
		},
		Availability: AvailabilityConfig{
			Probability:             0.1,
			ReactivationProbability: 0.3,
			DeactivationProbability: 0.05,
		},
		SupplierRestock: SupplierRestockConfig{
			Interval:           10,
			Probability:        0.5,
			ProductProbability: 0.5,
		},
		Generation: GenerationConfig{
			Products:               30,
			Suppliers:              10,
			Companies:              20,
			BasePriceMin:           5,
			BasePriceMax:           200,
			BudgetMin:              5000,
			BudgetMax:              20000,
			StockMin:               10,
			StockMax:               100,
			ProductsPerSupplierMin: 5,
			ProductsPerSupplierMax: 15,
			PreferredCategoriesMax: 2,
		},
	}
}

// LoadConfig reads a YAML config file over DefaultConfig.
// Unknown keys are errors so typos never silently fall back to defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// YAML encodes the config using its documented option names.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

func checkProbability(name string, p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %g", name, p)
	}
	return nil
}

func checkRange[T int | int64 | float64](name string, lo, hi T) error {
	if lo > hi {
		return fmt.Errorf("%s: min %v exceeds max %v", name, lo, hi)
	}
	return nil
}

// Validate checks every parameter range. It is called once before the first tick.
func (c Config) Validate() error {
	probs := []struct {
		name string
		p    float64
	}{
		{"selection_probability", c.Run.SelectionProbability},
		{"preferred_category_bias", c.Run.PreferredCategoryBias},
		{"inflation_probability", c.Inflation.Probability},
		{"inflation_category_probability", c.Inflation.CategoryProbability},
		{"restock_probability", c.Restock.Probability},
		{"recharge_probability", c.Recharge.Probability},
		{"recharge_selection_probability", c.Recharge.SelectionProbability},
		{"availability_variation_probability", c.Availability.Probability},
		{"reactivation_probability", c.Availability.ReactivationProbability},
		{"deactivation_probability", c.Availability.DeactivationProbability},
		{"supplier_restock_probability", c.SupplierRestock.Probability},
		{"product_restock_probability", c.SupplierRestock.ProductProbability},
	}
	for _, pr := range probs {
		if err := checkProbability(pr.name, pr.p); err != nil {
			return err
		}
	}

	if c.Run.TickCount < 0 {
		return fmt.Errorf("tick_count must be non-negative, got %d", c.Run.TickCount)
	}
	if c.Run.EventInterval <= 0 {
		return fmt.Errorf("event_interval must be positive, got %d", c.Run.EventInterval)
	}
	if c.Run.PurchaseQtyMin <= 0 {
		return fmt.Errorf("purchase_qty_min must be positive, got %d", c.Run.PurchaseQtyMin)
	}
	if err := checkRange("purchase_qty", c.Run.PurchaseQtyMin, c.Run.PurchaseQtyMax); err != nil {
		return err
	}

	if c.Pricing.StockVariationDivisor <= 0 {
		return fmt.Errorf("stock_variation_divisor must be positive, got %g", c.Pricing.StockVariationDivisor)
	}
	if c.Pricing.MaxStockAdjust < 0 || c.Pricing.MaxStockAdjust >= 1 {
		return fmt.Errorf("max_stock_adjust must be in [0, 1), got %g", c.Pricing.MaxStockAdjust)
	}
	if c.Pricing.RandomMin <= 0 {
		return fmt.Errorf("random_min must be positive, got %g", c.Pricing.RandomMin)
	}
	if err := checkRange("random", c.Pricing.RandomMin, c.Pricing.RandomMax); err != nil {
		return err
	}
	if c.Pricing.PriceDecimals < moneyDecimals {
		return fmt.Errorf("price_decimals must be at least %d, got %d", moneyDecimals, c.Pricing.PriceDecimals)
	}

	if c.Inflation.MinPercent <= 0 {
		return fmt.Errorf("inflation_min_percent must be positive, got %g", c.Inflation.MinPercent)
	}
	if err := checkRange("inflation_percent", c.Inflation.MinPercent, c.Inflation.MaxPercent); err != nil {
		return err
	}
	if c.Inflation.PenaltyRatio <= 0 || c.Inflation.PenaltyRatio >= 1 {
		return fmt.Errorf("inflation_penalty_ratio must be in (0, 1), got %g", c.Inflation.PenaltyRatio)
	}
	if c.Inflation.DurationTicks < 0 || c.Inflation.RecoveryTicks <= 0 {
		return fmt.Errorf("inflation_duration_ticks must be >= 0 and inflation_recovery_ticks > 0, got %d and %d",
			c.Inflation.DurationTicks, c.Inflation.RecoveryTicks)
	}
	if c.Inflation.FloorPercent < 0 {
		return fmt.Errorf("inflation_floor_percent must be non-negative, got %g", c.Inflation.FloorPercent)
	}

	if c.Restock.MaxSuppliers <= 0 {
		return fmt.Errorf("restock_max_suppliers must be positive, got %d", c.Restock.MaxSuppliers)
	}
	if c.Restock.QtyMin < 0 {
		return fmt.Errorf("restock_qty_min must be non-negative, got %d", c.Restock.QtyMin)
	}
	if err := checkRange("restock_qty", c.Restock.QtyMin, c.Restock.QtyMax); err != nil {
		return err
	}
	if c.Recharge.AmountMin < 0 {
		return fmt.Errorf("recharge_amount_min must be non-negative, got %g", c.Recharge.AmountMin)
	}
	if err := checkRange("recharge_amount", c.Recharge.AmountMin, c.Recharge.AmountMax); err != nil {
		return err
	}
	if c.SupplierRestock.Interval <= 0 {
		return fmt.Errorf("supplier_restock_interval must be positive, got %d", c.SupplierRestock.Interval)
	}

	return c.Generation.validate()
}

func (g GenerationConfig) validate() error {
	if g.Products <= 0 || g.Suppliers <= 0 || g.Companies <= 0 {
		return fmt.Errorf("products, suppliers and companies must be positive, got %d, %d, %d",
			g.Products, g.Suppliers, g.Companies)
	}
	if g.BasePriceMin < 0.01 {
		return fmt.Errorf("base_price_min must be at least 0.01, got %g", g.BasePriceMin)
	}
	if err := checkRange("base_price", g.BasePriceMin, g.BasePriceMax); err != nil {
		return err
	}
	if g.BudgetMin < 0 {
		return fmt.Errorf("budget_min must be non-negative, got %g", g.BudgetMin)
	}
	if err := checkRange("budget", g.BudgetMin, g.BudgetMax); err != nil {
		return err
	}
	if g.StockMin < 0 {
		return fmt.Errorf("stock_min must be non-negative, got %d", g.StockMin)
	}
	if err := checkRange("stock", g.StockMin, g.StockMax); err != nil {
		return err
	}
	if g.ProductsPerSupplierMin <= 0 {
		return fmt.Errorf("products_per_supplier_min must be positive, got %d", g.ProductsPerSupplierMin)
	}
	if err := checkRange("products_per_supplier", g.ProductsPerSupplierMin, g.ProductsPerSupplierMax); err != nil {
		return err
	}
	if g.PreferredCategoriesMax <= 0 || g.PreferredCategoriesMax > len(AllCategories) {
		return fmt.Errorf("preferred_categories_max must be in [1, %d], got %d", len(AllCategories), g.PreferredCategoriesMax)
	}
	return nil
}
