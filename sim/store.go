// sim/store.go
package sim

import (
	"fmt"
	"sort"
	"sync"
)

// EntityStore holds the mutable state of every product, supplier and company.
//
// Locking: the Simulator holds the write lock for the duration of a tick and the
// engines use the unlocked accessors (Product, Supplier, Products, ...). The
// List* snapshot accessors take the read lock and return copies, so they are
// safe to call from other goroutines (e.g. the HTTP API) while a run is active.
type EntityStore struct {
	mu sync.RWMutex

	products  map[ProductID]*Product
	suppliers map[SupplierID]*Supplier
	companies map[CompanyID]*Company

	// ascending ID order, fixed after construction
	productIDs  []ProductID
	supplierIDs []SupplierID
	companyIDs  []CompanyID
}

// NewEntityStore builds a store from the given entities. Duplicate IDs and
// non-positive prices are rejected.
func NewEntityStore(products []*Product, suppliers []*Supplier, companies []*Company) (*EntityStore, error) {
	s := &EntityStore{
		products:  make(map[ProductID]*Product, len(products)),
		suppliers: make(map[SupplierID]*Supplier, len(suppliers)),
		companies: make(map[CompanyID]*Company, len(companies)),
	}
	for _, p := range products {
		if _, dup := s.products[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %d", p.ID)
		}
		if p.BasePrice <= 0 {
			return nil, fmt.Errorf("product %d: %w", p.ID, ErrInvalidPrice)
		}
		if p.OriginalPrice == 0 {
			p.OriginalPrice = p.BasePrice
		}
		s.products[p.ID] = p
		s.productIDs = append(s.productIDs, p.ID)
	}
	for _, sup := range suppliers {
		if _, dup := s.suppliers[sup.ID]; dup {
			return nil, fmt.Errorf("duplicate supplier id %d", sup.ID)
		}
		if sup.Stock == nil {
			sup.Stock = make(map[ProductID]int)
		}
		for pid, qty := range sup.Stock {
			if _, ok := s.products[pid]; !ok {
				return nil, fmt.Errorf("supplier %d stocks product %d: %w", sup.ID, pid, ErrUnknownProduct)
			}
			if qty < 0 {
				return nil, fmt.Errorf("supplier %d: negative stock %d for product %d", sup.ID, qty, pid)
			}
		}
		s.suppliers[sup.ID] = sup
		s.supplierIDs = append(s.supplierIDs, sup.ID)
	}
	for _, c := range companies {
		if _, dup := s.companies[c.ID]; dup {
			return nil, fmt.Errorf("duplicate company id %d", c.ID)
		}
		if c.Budget < 0 {
			return nil, fmt.Errorf("company %d: negative budget %.2f", c.ID, c.Budget)
		}
		s.companies[c.ID] = c
		s.companyIDs = append(s.companyIDs, c.ID)
	}
	sort.Slice(s.productIDs, func(i, j int) bool { return s.productIDs[i] < s.productIDs[j] })
	sort.Slice(s.supplierIDs, func(i, j int) bool { return s.supplierIDs[i] < s.supplierIDs[j] })
	sort.Slice(s.companyIDs, func(i, j int) bool { return s.companyIDs[i] < s.companyIDs[j] })
	return s, nil
}

// === Unlocked accessors (tick-scoped, caller holds the lock) ===

func (s *EntityStore) Product(id ProductID) (*Product, bool) {
	p, ok := s.products[id]
	return p, ok
}

func (s *EntityStore) Supplier(id SupplierID) (*Supplier, bool) {
	sup, ok := s.suppliers[id]
	return sup, ok
}

func (s *EntityStore) Company(id CompanyID) (*Company, bool) {
	c, ok := s.companies[id]
	return c, ok
}

// Products returns all products in ascending ID order.
func (s *EntityStore) Products() []*Product {
	out := make([]*Product, 0, len(s.productIDs))
	for _, id := range s.productIDs {
		out = append(out, s.products[id])
	}
	return out
}

// ActiveProducts returns active products in ascending ID order.
func (s *EntityStore) ActiveProducts() []*Product {
	out := make([]*Product, 0, len(s.productIDs))
	for _, id := range s.productIDs {
		if p := s.products[id]; p.Active {
			out = append(out, p)
		}
	}
	return out
}

// Suppliers returns all suppliers in ascending ID order.
func (s *EntityStore) Suppliers() []*Supplier {
	out := make([]*Supplier, 0, len(s.supplierIDs))
	for _, id := range s.supplierIDs {
		out = append(out, s.suppliers[id])
	}
	return out
}

// Companies returns all companies in ascending ID order.
func (s *EntityStore) Companies() []*Company {
	out := make([]*Company, 0, len(s.companyIDs))
	for _, id := range s.companyIDs {
		out = append(out, s.companies[id])
	}
	return out
}

// TotalBudget sums all company budgets.
func (s *EntityStore) TotalBudget() float64 {
	total := 0.0
	for _, id := range s.companyIDs {
		total += s.companies[id].Budget
	}
	return RoundMoney(total)
}

// ActiveProductCount counts active products.
func (s *EntityStore) ActiveProductCount() int {
	n := 0
	for _, p := range s.products {
		if p.Active {
			n++
		}
	}
	return n
}

// === Field-level mutations ===
// Each returns the value before and after so callers can record the change.

// DebitStock removes qty units of a product from a supplier. It never lets
// stock go negative: an oversized debit is rejected with ErrInsufficientStock.
func (s *EntityStore) DebitStock(sid SupplierID, pid ProductID, qty int) (before, after int, err error) {
	sup, ok := s.suppliers[sid]
	if !ok {
		return 0, 0, fmt.Errorf("debit stock: %w: %d", ErrUnknownSupplier, sid)
	}
	cur, ok := sup.Stock[pid]
	if !ok {
		return 0, 0, fmt.Errorf("debit stock: supplier %d: %w: %d", sid, ErrUnknownProduct, pid)
	}
	if qty < 0 || qty > cur {
		return cur, cur, fmt.Errorf("debit stock: supplier %d product %d has %d, want %d: %w", sid, pid, cur, qty, ErrInsufficientStock)
	}
	sup.Stock[pid] = cur - qty
	return cur, cur - qty, nil
}

// CreditStock adds qty units to a product the supplier already carries.
func (s *EntityStore) CreditStock(sid SupplierID, pid ProductID, qty int) (before, after int, err error) {
	sup, ok := s.suppliers[sid]
	if !ok {
		return 0, 0, fmt.Errorf("credit stock: %w: %d", ErrUnknownSupplier, sid)
	}
	cur, ok := sup.Stock[pid]
	if !ok {
		return 0, 0, fmt.Errorf("credit stock: supplier %d: %w: %d", sid, ErrUnknownProduct, pid)
	}
	if qty < 0 {
		return cur, cur, fmt.Errorf("credit stock: negative quantity %d", qty)
	}
	sup.Stock[pid] = cur + qty
	return cur, cur + qty, nil
}

// DebitBudget charges a company. Overdrafts are rejected with ErrInsufficientBudget.
func (s *EntityStore) DebitBudget(cid CompanyID, amount float64) (before, after float64, err error) {
	c, ok := s.companies[cid]
	if !ok {
		return 0, 0, fmt.Errorf("debit budget: %w: %d", ErrUnknownCompany, cid)
	}
	if amount < 0 || amount > c.Budget {
		return c.Budget, c.Budget, fmt.Errorf("debit budget: company %d has %.2f, want %.2f: %w", cid, c.Budget, amount, ErrInsufficientBudget)
	}
	before = c.Budget
	c.Budget = RoundMoney(c.Budget - amount)
	if c.Budget < 0 {
		c.Budget = 0
	}
	return before, c.Budget, nil
}

// CreditBudget adds funds to a company.
func (s *EntityStore) CreditBudget(cid CompanyID, amount float64) (before, after float64, err error) {
	c, ok := s.companies[cid]
	if !ok {
		return 0, 0, fmt.Errorf("credit budget: %w: %d", ErrUnknownCompany, cid)
	}
	if amount < 0 {
		return c.Budget, c.Budget, fmt.Errorf("credit budget: negative amount %.2f", amount)
	}
	before = c.Budget
	c.Budget = RoundMoney(c.Budget + amount)
	return before, c.Budget, nil
}

// SetBasePrice updates a product's list price. Non-positive prices are rejected.
func (s *EntityStore) SetBasePrice(pid ProductID, price float64) (before, after float64, err error) {
	p, ok := s.products[pid]
	if !ok {
		return 0, 0, fmt.Errorf("set price: %w: %d", ErrUnknownProduct, pid)
	}
	price = RoundMoney(price)
	if price <= 0 {
		return p.BasePrice, p.BasePrice, fmt.Errorf("set price: product %d: %w", pid, ErrInvalidPrice)
	}
	before = p.BasePrice
	p.BasePrice = price
	return before, price, nil
}

// SetActive toggles a product's availability.
func (s *EntityStore) SetActive(pid ProductID, active bool) (before bool, err error) {
	p, ok := s.products[pid]
	if !ok {
		return false, fmt.Errorf("set active: %w: %d", ErrUnknownProduct, pid)
	}
	before = p.Active
	p.Active = active
	return before, nil
}

// === Snapshot accessors (locked, return copies) ===

// ListProducts returns copies of the products, optionally only active ones.
func (s *EntityStore) ListProducts(activeOnly bool) []Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Product, 0, len(s.productIDs))
	for _, id := range s.productIDs {
		p := s.products[id]
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// ListSuppliers returns deep copies of the suppliers.
func (s *EntityStore) ListSuppliers() []Supplier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Supplier, 0, len(s.supplierIDs))
	for _, id := range s.supplierIDs {
		out = append(out, *s.suppliers[id].clone())
	}
	return out
}

// ListCompanies returns deep copies of the companies.
func (s *EntityStore) ListCompanies() []Company {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Company, 0, len(s.companyIDs))
	for _, id := range s.companyIDs {
		out = append(out, *s.companies[id].clone())
	}
	return out
}

// Clone returns an independent deep copy of the store.
func (s *EntityStore) Clone() *EntityStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := &EntityStore{
		products:    make(map[ProductID]*Product, len(s.products)),
		suppliers:   make(map[SupplierID]*Supplier, len(s.suppliers)),
		companies:   make(map[CompanyID]*Company, len(s.companies)),
		productIDs:  append([]ProductID(nil), s.productIDs...),
		supplierIDs: append([]SupplierID(nil), s.supplierIDs...),
		companyIDs:  append([]CompanyID(nil), s.companyIDs...),
	}
	for id, p := range s.products {
		cp := *p
		c.products[id] = &cp
	}
	for id, sup := range s.suppliers {
		c.suppliers[id] = sup.clone()
	}
	for id, co := range s.companies {
		c.companies[id] = co.clone()
	}
	return c
}

func (s *EntityStore) lock()   { s.mu.Lock() }
func (s *EntityStore) unlock() { s.mu.Unlock() }
