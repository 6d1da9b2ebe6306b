// sim/events.go
package sim

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/sirupsen/logrus"
)

// EventKind names an economic event rule.
type EventKind string

const (
	EventInflation             EventKind = "inflation"
	EventInflationDecay        EventKind = "inflation_decay"
	EventRestockAvailability   EventKind = "restock_availability"
	EventBudgetRecharge        EventKind = "budget_recharge"
	EventSupplierRestock       EventKind = "supplier_restock"
	EventAvailabilityVariation EventKind = "availability_variation"
)

// AllEventKinds lists event kinds in reporting order.
var AllEventKinds = []EventKind{
	EventInflation, EventInflationDecay, EventRestockAvailability,
	EventBudgetRecharge, EventSupplierRestock, EventAvailabilityVariation,
}

// MutationField is the entity field an event mutation touches.
type MutationField string

const (
	FieldPrice  MutationField = "base_price"
	FieldActive MutationField = "active"
	FieldBudget MutationField = "budget"
	FieldStock  MutationField = "stock"
)

// Mutation is a single change decided by an event rule. Rules only decide;
// the EventEngine applies mutations to the store and records them.
type Mutation struct {
	Kind       EventKind
	Field      MutationField
	ProductID  ProductID
	SupplierID SupplierID
	CompanyID  CompanyID

	Price    float64 // FieldPrice: new base price
	Active   bool    // FieldActive: new flag
	Amount   float64 // FieldBudget: credit
	Quantity int     // FieldStock: credit
	Percent  float64 // inflation percentage applied, if any

	Timer      *InflationTimer // FieldPrice: installed for the product after the price change
	ClearTimer bool            // FieldPrice: removes the product's timer
	Detail     string
}

// EventRecord is the structured fact emitted for one applied mutation, or
// the per-rule aggregate summary when Aggregate is set.
type EventRecord struct {
	Tick       int64         `json:"tick"`
	Kind       EventKind     `json:"kind"`
	Field      MutationField `json:"field,omitempty"`
	ProductID  ProductID     `json:"product_id,omitempty"`
	SupplierID SupplierID    `json:"supplier_id,omitempty"`
	CompanyID  CompanyID     `json:"company_id,omitempty"`
	Before     float64       `json:"before"`
	After      float64       `json:"after"`
	Percent    float64       `json:"percent,omitempty"`
	Aggregate  bool          `json:"aggregate,omitempty"`
	Count      int           `json:"count,omitempty"`
	Detail     string        `json:"detail,omitempty"`
}

// EventRule decides the mutations of one event type for a tick.
// Decide must not mutate the store; it may keep rule-local bookkeeping.
type EventRule interface {
	Kind() EventKind
	Decide(rng *rand.Rand, store *EntityStore, tick int64) []Mutation
}

// EventStats counts what the event engine did in one tick.
type EventStats struct {
	Applied map[EventKind]int // applied mutations per kind
	Errors  int               // rules or mutations that failed
}

func newEventStats() EventStats {
	return EventStats{Applied: make(map[EventKind]int)}
}

// Total returns the number of applied mutations.
func (s EventStats) Total() int {
	n := 0
	for _, c := range s.Applied {
		n += c
	}
	return n
}

// EventEngine applies the economic event rules and owns the inflation timers.
type EventEngine struct {
	store    *EntityStore
	rng      *rand.Rand
	cfg      Config
	timers   map[ProductID]*InflationTimer
	rules    []EventRule
	recorder Recorder
}

// NewEventEngine wires the five rules in their fixed evaluation order.
func NewEventEngine(store *EntityStore, cfg Config, rng *rand.Rand, recorder Recorder) *EventEngine {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	e := &EventEngine{
		store:    store,
		rng:      rng,
		cfg:      cfg,
		timers:   make(map[ProductID]*InflationTimer),
		recorder: recorder,
	}
	e.rules = []EventRule{
		&inflationRule{cfg: cfg.Inflation, timers: e.timers},
		&restockAvailabilityRule{cfg: cfg.Restock},
		&budgetRechargeRule{cfg: cfg.Recharge},
		&supplierRestockRule{cfg: cfg.SupplierRestock, qtyMin: cfg.Restock.QtyMin, qtyMax: cfg.Restock.QtyMax},
		&availabilityVariationRule{cfg: cfg.Availability},
	}
	return e
}

// Rules returns the configured rules in evaluation order.
func (e *EventEngine) Rules() []EventRule {
	return e.rules
}

// Timers returns a copy of the active inflation timers.
func (e *EventEngine) Timers() map[ProductID]InflationTimer {
	out := make(map[ProductID]InflationTimer, len(e.timers))
	for id, t := range e.timers {
		out[id] = *t
	}
	return out
}

// AdvanceInflation runs the decay of every product under inflation. Called every tick.
func (e *EventEngine) AdvanceInflation(tick int64) EventStats {
	stats := newEventStats()
	e.runRule(tick, decayRule{cfg: e.cfg.Inflation, timers: e.timers}, &stats)
	return stats
}

// RunRules evaluates every event rule once. Each rule is gated by its own
// probability; a failing rule is logged and never prevents the others.
func (e *EventEngine) RunRules(tick int64) EventStats {
	stats := newEventStats()
	for _, rule := range e.rules {
		e.runRule(tick, rule, &stats)
	}
	return stats
}

func (e *EventEngine) runRule(tick int64, rule EventRule, stats *EventStats) {
	defer func() {
		if r := recover(); r != nil {
			stats.Errors++
			logrus.Errorf("[tick %07d] event %s panicked: %v", tick, rule.Kind(), r)
		}
	}()

	mutations := rule.Decide(e.rng, e.store, tick)
	applied := 0
	for _, m := range mutations {
		rec, changed, err := e.apply(tick, m)
		if err != nil {
			stats.Errors++
			logrus.Warnf("[tick %07d] event %s: %v", tick, m.Kind, err)
			continue
		}
		if !changed {
			continue
		}
		applied++
		e.recorder.RecordEvent(rec)
	}
	if applied > 0 {
		stats.Applied[rule.Kind()] += applied
		e.recorder.RecordEvent(EventRecord{
			Tick:      tick,
			Kind:      rule.Kind(),
			Aggregate: true,
			Count:     applied,
		})
		logrus.Debugf("[tick %07d] event %s applied %d mutations", tick, rule.Kind(), applied)
	}
}

// apply performs one mutation through the store. changed is false when the
// mutation turned out to be a no-op (e.g. activating an already active product).
func (e *EventEngine) apply(tick int64, m Mutation) (rec EventRecord, changed bool, err error) {
	rec = EventRecord{
		Tick:       tick,
		Kind:       m.Kind,
		Field:      m.Field,
		ProductID:  m.ProductID,
		SupplierID: m.SupplierID,
		CompanyID:  m.CompanyID,
		Percent:    m.Percent,
		Detail:     m.Detail,
	}
	switch m.Field {
	case FieldPrice:
		p, ok := e.store.Product(m.ProductID)
		if !ok {
			return rec, false, fmt.Errorf("%w: %d", ErrUnknownProduct, m.ProductID)
		}
		if m.Price != p.BasePrice {
			before, after, err := e.store.SetBasePrice(m.ProductID, m.Price)
			if err != nil {
				return rec, false, err
			}
			rec.Before, rec.After = before, after
			changed = before != after
		}
		if m.ClearTimer {
			delete(e.timers, m.ProductID)
		} else if m.Timer != nil {
			e.timers[m.ProductID] = m.Timer
		}
		return rec, changed, nil
	case FieldActive:
		before, err := e.store.SetActive(m.ProductID, m.Active)
		if err != nil {
			return rec, false, err
		}
		rec.Before, rec.After = boolToFloat(before), boolToFloat(m.Active)
		return rec, before != m.Active, nil
	case FieldBudget:
		before, after, err := e.store.CreditBudget(m.CompanyID, m.Amount)
		if err != nil {
			return rec, false, err
		}
		rec.Before, rec.After = before, after
		return rec, true, nil
	case FieldStock:
		before, after, err := e.store.CreditStock(m.SupplierID, m.ProductID, m.Quantity)
		if err != nil {
			return rec, false, err
		}
		rec.Before, rec.After = float64(before), float64(after)
		return rec, true, nil
	default:
		return rec, false, fmt.Errorf("unknown mutation field %q", m.Field)
	}
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// === Stateless rules ===

// restockAvailabilityRule re-activates an inactive product at one or more suppliers.
type restockAvailabilityRule struct {
	cfg RestockConfig
}

func (r *restockAvailabilityRule) Kind() EventKind { return EventRestockAvailability }

func (r *restockAvailabilityRule) Decide(rng *rand.Rand, store *EntityStore, tick int64) []Mutation {
	if rng.Float64() >= r.cfg.Probability {
		return nil
	}
	suppliers := store.Suppliers()
	if len(suppliers) == 0 {
		return nil
	}
	n := 1 + rng.Intn(min(r.cfg.MaxSuppliers, len(suppliers)))
	chosen := rng.Perm(len(suppliers))[:n]
	sort.Ints(chosen)

	picked := make(map[ProductID]bool)
	var out []Mutation
	for _, idx := range chosen {
		sup := suppliers[idx]
		var inactive []ProductID
		for _, pid := range sup.CarriedProducts() {
			if p, ok := store.Product(pid); ok && !p.Active && !picked[pid] {
				inactive = append(inactive, pid)
			}
		}
		if len(inactive) == 0 {
			continue
		}
		pid := inactive[rng.Intn(len(inactive))]
		picked[pid] = true
		out = append(out, Mutation{
			Kind:       EventRestockAvailability,
			Field:      FieldActive,
			ProductID:  pid,
			SupplierID: sup.ID,
			Active:     true,
			Detail:     fmt.Sprintf("activated by %s", sup.Name),
		})
	}
	return out
}

// budgetRechargeRule injects funds into a random subset of companies.
type budgetRechargeRule struct {
	cfg RechargeConfig
}

func (r *budgetRechargeRule) Kind() EventKind { return EventBudgetRecharge }

func (r *budgetRechargeRule) Decide(rng *rand.Rand, store *EntityStore, tick int64) []Mutation {
	if rng.Float64() >= r.cfg.Probability {
		return nil
	}
	var out []Mutation
	for _, c := range store.Companies() {
		if rng.Float64() >= r.cfg.SelectionProbability {
			continue
		}
		out = append(out, Mutation{
			Kind:      EventBudgetRecharge,
			Field:     FieldBudget,
			CompanyID: c.ID,
			Amount:    RoundMoney(uniformFloat(rng, r.cfg.AmountMin, r.cfg.AmountMax)),
		})
	}
	return out
}

// supplierRestockRule adds quantity to active products suppliers already carry.
// It fires at most once every Interval ticks.
type supplierRestockRule struct {
	cfg            SupplierRestockConfig
	qtyMin, qtyMax int
	lastRun        int64
}

func (r *supplierRestockRule) Kind() EventKind { return EventSupplierRestock }

func (r *supplierRestockRule) Decide(rng *rand.Rand, store *EntityStore, tick int64) []Mutation {
	if tick-r.lastRun < r.cfg.Interval {
		return nil
	}
	r.lastRun = tick

	var out []Mutation
	for _, sup := range store.Suppliers() {
		if rng.Float64() >= r.cfg.Probability {
			continue
		}
		for _, pid := range sup.CarriedProducts() {
			p, ok := store.Product(pid)
			if !ok || !p.Active {
				continue
			}
			if rng.Float64() >= r.cfg.ProductProbability {
				continue
			}
			qty := uniformInt(rng, r.qtyMin, r.qtyMax)
			if qty == 0 {
				continue
			}
			out = append(out, Mutation{
				Kind:       EventSupplierRestock,
				Field:      FieldStock,
				SupplierID: sup.ID,
				ProductID:  pid,
				Quantity:   qty,
			})
		}
	}
	return out
}

// availabilityVariationRule flips product availability independently per product.
type availabilityVariationRule struct {
	cfg AvailabilityConfig
}

func (r *availabilityVariationRule) Kind() EventKind { return EventAvailabilityVariation }

func (r *availabilityVariationRule) Decide(rng *rand.Rand, store *EntityStore, tick int64) []Mutation {
	if rng.Float64() >= r.cfg.Probability {
		return nil
	}
	var out []Mutation
	for _, p := range store.Products() {
		if p.Active {
			if rng.Float64() < r.cfg.DeactivationProbability {
				out = append(out, Mutation{Kind: EventAvailabilityVariation, Field: FieldActive, ProductID: p.ID, Active: false, Detail: "deactivated"})
			}
			continue
		}
		if rng.Float64() < r.cfg.ReactivationProbability {
			out = append(out, Mutation{Kind: EventAvailabilityVariation, Field: FieldActive, ProductID: p.ID, Active: true, Detail: "reactivated"})
		}
	}
	return out
}
