// Defines the entities of the market: products, suppliers and companies.
// All mutable state lives in EntityStore; these types are plain data.

package sim

import (
	"fmt"
	"sort"
)

// ProductID identifies a product. IDs are assigned densely from 1 at generation.
type ProductID int

// SupplierID identifies a supplier.
type SupplierID int

// CompanyID identifies a company.
type CompanyID int

// Category groups products for company preferences and category-wide inflation.
type Category string

const (
	CategoryRawMaterial  Category = "raw_material"
	CategoryConsumable   Category = "consumable"
	CategoryFinishedGood Category = "finished_good"
)

// AllCategories lists categories in their canonical order.
var AllCategories = []Category{CategoryRawMaterial, CategoryConsumable, CategoryFinishedGood}

// validCategories maps accepted category names.
var validCategories = map[Category]bool{
	CategoryRawMaterial:  true,
	CategoryConsumable:   true,
	CategoryFinishedGood: true,
}

// IsValidCategory returns true if the given name is a recognized category.
func IsValidCategory(name string) bool {
	return validCategories[Category(name)]
}

// Product is a good traded in the market.
type Product struct {
	ID            ProductID `json:"id"`
	Name          string    `json:"name"`
	BasePrice     float64   `json:"base_price"`     // current list price, moved by inflation (always > 0)
	OriginalPrice float64   `json:"original_price"` // list price at generation time
	Active        bool      `json:"active"`
	Category      Category  `json:"category"`
}

// Supplier sells products out of its own stock.
type Supplier struct {
	ID        SupplierID        `json:"id"`
	Name      string            `json:"name"`
	Country   string            `json:"country"`
	Continent string            `json:"continent"`
	Stock     map[ProductID]int `json:"stock"` // product → quantity on hand (never negative)
}

// Carries reports whether the supplier has a stock entry for the product.
func (s *Supplier) Carries(id ProductID) bool {
	_, ok := s.Stock[id]
	return ok
}

// CarriedProducts returns the IDs the supplier has stock entries for, ascending.
func (s *Supplier) CarriedProducts() []ProductID {
	ids := make([]ProductID, 0, len(s.Stock))
	for id := range s.Stock {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *Supplier) clone() *Supplier {
	c := *s
	c.Stock = make(map[ProductID]int, len(s.Stock))
	for k, v := range s.Stock {
		c.Stock[k] = v
	}
	return &c
}

// Company buys products according to its strategy and budget.
type Company struct {
	ID                  CompanyID  `json:"id"`
	Name                string     `json:"name"`
	Country             string     `json:"country"`
	Budget              float64    `json:"budget"` // never negative
	InitialBudget       float64    `json:"initial_budget"`
	PreferredCategories []Category `json:"preferred_categories"`
	Strategy            Strategy   `json:"strategy"`
}

// Prefers reports whether the category is one of the company's preferred categories.
func (c *Company) Prefers(cat Category) bool {
	for _, p := range c.PreferredCategories {
		if p == cat {
			return true
		}
	}
	return false
}

func (c *Company) clone() *Company {
	cp := *c
	cp.PreferredCategories = append([]Category(nil), c.PreferredCategories...)
	return &cp
}

func (id ProductID) String() string  { return fmt.Sprintf("product_%d", int(id)) }
func (id SupplierID) String() string { return fmt.Sprintf("supplier_%d", int(id)) }
func (id CompanyID) String() string  { return fmt.Sprintf("company_%d", int(id)) }
