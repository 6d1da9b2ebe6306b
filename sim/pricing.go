package sim

import (
	"math/rand"

	"github.com/shopspring/decimal"
)

// moneyDecimals is the precision of every stored amount (prices, budgets, totals).
const moneyDecimals = 2

// RoundMoney rounds an amount half-away-from-zero to cents.
func RoundMoney(v float64) float64 {
	return decimal.NewFromFloat(v).Round(moneyDecimals).InexactFloat64()
}

// PricingConfig groups the offered-price model parameters.
type PricingConfig struct {
	ReferenceStock        int     `yaml:"reference_stock"`         // stock level at which the stock factor is 1.0
	StockVariationDivisor float64 `yaml:"stock_variation_divisor"` // units of stock per 100% price change (> 0)
	MaxStockAdjust        float64 `yaml:"max_stock_adjust"`        // stock factor band half-width, e.g. 0.05 = ±5%
	RandomMin             float64 `yaml:"random_min"`              // lower bound of the random factor
	RandomMax             float64 `yaml:"random_max"`              // upper bound of the random factor
	PriceDecimals         int32   `yaml:"price_decimals"`          // decimal places of offered prices (>= 2)
}

// PriceModel computes a supplier's offered price for a product.
// It has no side effects; the only source of variation is the injected rng.
type PriceModel struct {
	cfg PricingConfig
}

// NewPriceModel creates a PriceModel from a validated PricingConfig.
func NewPriceModel(cfg PricingConfig) *PriceModel {
	return &PriceModel{cfg: cfg}
}

// StockFactor is 1 − (stock − reference)/divisor clamped to [1−adj, 1+adj].
// It is non-increasing in stock for every stock value.
func (m *PriceModel) StockFactor(stock int) float64 {
	f := 1.0 - float64(stock-m.cfg.ReferenceStock)/m.cfg.StockVariationDivisor
	lo, hi := 1.0-m.cfg.MaxStockAdjust, 1.0+m.cfg.MaxStockAdjust
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

// RandomFactor draws uniformly from [RandomMin, RandomMax).
func (m *PriceModel) RandomFactor(rng *rand.Rand) float64 {
	return m.cfg.RandomMin + rng.Float64()*(m.cfg.RandomMax-m.cfg.RandomMin)
}

// Price returns base × stock factor × random factor, rounded.
func (m *PriceModel) Price(basePrice float64, stock int, rng *rand.Rand) float64 {
	return m.PriceWithFactor(basePrice, stock, m.RandomFactor(rng))
}

// PriceWithFactor is Price with a fixed random factor. An offered price is
// never below one unit of the last decimal place.
func (m *PriceModel) PriceWithFactor(basePrice float64, stock int, randomFactor float64) float64 {
	raw := basePrice * m.StockFactor(stock) * randomFactor
	price := decimal.NewFromFloat(raw).Round(m.cfg.PriceDecimals)
	if minPrice := decimal.New(1, -m.cfg.PriceDecimals); price.LessThan(minPrice) {
		price = minPrice
	}
	return price.InexactFloat64()
}
