package sim

import (
	"math/rand"
	"testing"
)

// newTestStore builds a small fixed market:
//
//	product 1 Steel  raw_material  10.00
//	product 2 Paper  consumable     5.00
//	product 3 Laptop finished_good 100.00
//	supplier 1 stocks {1: 50, 2: 20}
//	supplier 2 stocks {1: 30, 3: 5}
//	company 1 budget 1000 cheapest,   prefers raw_material
//	company 2 budget   50 best_ratio, prefers consumable
func newTestStore(t *testing.T) *EntityStore {
	t.Helper()
	products := []*Product{
		{ID: 1, Name: "Steel", BasePrice: 10, Active: true, Category: CategoryRawMaterial},
		{ID: 2, Name: "Paper", BasePrice: 5, Active: true, Category: CategoryConsumable},
		{ID: 3, Name: "Laptop", BasePrice: 100, Active: true, Category: CategoryFinishedGood},
	}
	suppliers := []*Supplier{
		{ID: 1, Name: "France Trading 1", Country: "France", Continent: "Europe", Stock: map[ProductID]int{1: 50, 2: 20}},
		{ID: 2, Name: "Japan Wholesale 2", Country: "Japan", Continent: "Asia", Stock: map[ProductID]int{1: 30, 3: 5}},
	}
	companies := []*Company{
		{ID: 1, Name: "Acme", Budget: 1000, InitialBudget: 1000, PreferredCategories: []Category{CategoryRawMaterial}, Strategy: StrategyCheapest},
		{ID: 2, Name: "Globex", Budget: 50, InitialBudget: 50, PreferredCategories: []Category{CategoryConsumable}, Strategy: StrategyBestRatio},
	}
	store, err := NewEntityStore(products, suppliers, companies)
	if err != nil {
		t.Fatalf("NewEntityStore: %v", err)
	}
	return store
}

func testRNG(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// quietConfig returns the defaults with every event rule switched off, so a
// test can enable exactly the rule it exercises.
func quietConfig() Config {
	cfg := DefaultConfig()
	cfg.Inflation.Probability = 0
	cfg.Restock.Probability = 0
	cfg.Recharge.Probability = 0
	cfg.Availability.Probability = 0
	cfg.SupplierRestock.Probability = 0
	return cfg
}

// captureRecorder keeps every record in memory.
type captureRecorder struct {
	transactions []Transaction
	events       []EventRecord
	ticks        []TickStats
	onTick       func(TickStats)
}

func (c *captureRecorder) RecordTransaction(tx Transaction) {
	c.transactions = append(c.transactions, tx)
}
func (c *captureRecorder) RecordEvent(ev EventRecord) { c.events = append(c.events, ev) }
func (c *captureRecorder) RecordTick(stats TickStats) {
	c.ticks = append(c.ticks, stats)
	if c.onTick != nil {
		c.onTick(stats)
	}
}

// snapshot captures the observable store state for before/after comparisons.
type snapshot struct {
	products  []Product
	suppliers []Supplier
	companies []Company
}

func takeSnapshot(s *EntityStore) snapshot {
	return snapshot{s.ListProducts(false), s.ListSuppliers(), s.ListCompanies()}
}
