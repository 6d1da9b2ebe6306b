package sim

import (
	"fmt"
	"math/rand"
)

var productNames = map[Category][]string{
	CategoryRawMaterial:  {"Steel", "Copper", "Timber", "Cotton", "Silica", "Rubber", "Aluminium", "Resin", "Wool", "Clay"},
	CategoryConsumable:   {"Paper", "Ink", "Coffee", "Detergent", "Batteries", "Gloves", "Lubricant", "Tape", "Solvent", "Filters"},
	CategoryFinishedGood: {"Laptop", "Chair", "Printer", "Bicycle", "Monitor", "Desk", "Drill", "Router", "Lamp", "Kettle"},
}

type place struct {
	Country   string
	Continent string
}

var places = []place{
	{"France", "Europe"}, {"Germany", "Europe"}, {"Italy", "Europe"}, {"Spain", "Europe"},
	{"United States", "North America"}, {"Canada", "North America"}, {"Mexico", "North America"},
	{"Brazil", "South America"}, {"Argentina", "South America"}, {"Chile", "South America"},
	{"China", "Asia"}, {"Japan", "Asia"}, {"India", "Asia"}, {"Vietnam", "Asia"},
	{"Nigeria", "Africa"}, {"Kenya", "Africa"}, {"Morocco", "Africa"},
	{"Australia", "Oceania"}, {"New Zealand", "Oceania"},
}

var supplierSuffixes = []string{"Trading", "Supply Co.", "Wholesale", "Distribution", "Logistics", "Industries"}
var companySuffixes = []string{"Corp", "Group", "Holdings", "Labs", "Works", "Partners", "Systems"}

// GenerateEntities draws the initial population. The same rng state always
// yields the same entities. Every product starts active.
func GenerateEntities(cfg GenerationConfig, rng *rand.Rand) ([]*Product, []*Supplier, []*Company) {
	products := make([]*Product, 0, cfg.Products)
	used := make(map[string]int)
	for i := 1; i <= cfg.Products; i++ {
		cat := AllCategories[rng.Intn(len(AllCategories))]
		names := productNames[cat]
		name := names[rng.Intn(len(names))]
		used[name]++
		if used[name] > 1 {
			name = fmt.Sprintf("%s %d", name, used[name])
		}
		price := RoundMoney(uniformFloat(rng, cfg.BasePriceMin, cfg.BasePriceMax))
		if price <= 0 {
			price = 0.01
		}
		products = append(products, &Product{
			ID:            ProductID(i),
			Name:          name,
			BasePrice:     price,
			OriginalPrice: price,
			Active:        true,
			Category:      cat,
		})
	}

	suppliers := make([]*Supplier, 0, cfg.Suppliers)
	for i := 1; i <= cfg.Suppliers; i++ {
		pl := places[rng.Intn(len(places))]
		n := min(uniformInt(rng, cfg.ProductsPerSupplierMin, cfg.ProductsPerSupplierMax), len(products))
		stock := make(map[ProductID]int, n)
		for _, idx := range rng.Perm(len(products))[:n] {
			stock[products[idx].ID] = uniformInt(rng, cfg.StockMin, cfg.StockMax)
		}
		suppliers = append(suppliers, &Supplier{
			ID:        SupplierID(i),
			Name:      fmt.Sprintf("%s %s %d", pl.Country, supplierSuffixes[rng.Intn(len(supplierSuffixes))], i),
			Country:   pl.Country,
			Continent: pl.Continent,
			Stock:     stock,
		})
	}

	companies := make([]*Company, 0, cfg.Companies)
	for i := 1; i <= cfg.Companies; i++ {
		pl := places[rng.Intn(len(places))]
		budget := RoundMoney(uniformFloat(rng, cfg.BudgetMin, cfg.BudgetMax))
		nPref := uniformInt(rng, 1, min(cfg.PreferredCategoriesMax, len(AllCategories)))
		var prefs []Category
		for _, idx := range rng.Perm(len(AllCategories))[:nPref] {
			prefs = append(prefs, AllCategories[idx])
		}
		companies = append(companies, &Company{
			ID:                  CompanyID(i),
			Name:                fmt.Sprintf("%s %s %d", pl.Country, companySuffixes[rng.Intn(len(companySuffixes))], i),
			Country:             pl.Country,
			Budget:              budget,
			InitialBudget:       budget,
			PreferredCategories: prefs,
			Strategy:            AllStrategies[rng.Intn(len(AllStrategies))],
		})
	}
	return products, suppliers, companies
}

// NewGeneratedStore generates a population and wraps it in an EntityStore.
func NewGeneratedStore(cfg GenerationConfig, rng *rand.Rand) (*EntityStore, error) {
	products, suppliers, companies := GenerateEntities(cfg, rng)
	return NewEntityStore(products, suppliers, companies)
}
