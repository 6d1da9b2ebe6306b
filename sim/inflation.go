package sim

import (
	"fmt"
	"math/rand"
	"sort"
)

// InflationTimer tracks a product under an active inflation effect.
// It is created on the first hit, replaced on every repeat hit, and removed
// once the price has decayed to its floor.
type InflationTimer struct {
	ProductID        ProductID `json:"product_id"`
	TickStarted      int64     `json:"tick_started"`
	PenaltyApplied   bool      `json:"penalty_applied"`   // set once a repeat hit used the reduced percentage
	RecoveryDeadline int64     `json:"recovery_deadline"` // tick by which the price reaches the floor
	ReferencePrice   float64   `json:"reference_price"`   // original list price the floor is relative to
	PeakPrice        float64   `json:"peak_price"`        // list price right after the latest hit
	LastPercent      float64   `json:"last_percent"`      // percentage of the latest hit
}

// Floor is the price the decay converges to. It is anchored to the original
// price so repeated episodes never stack their residuals.
func (t InflationTimer) Floor(floorPercent float64) float64 {
	return RoundMoney(t.ReferencePrice * (1 + floorPercent/100))
}

// inflationRule raises the price of one product, or every active product of
// one category. A product already under inflation gets a reduced increase.
type inflationRule struct {
	cfg    InflationConfig
	timers map[ProductID]*InflationTimer // owned by EventEngine, read-only here
}

func (r *inflationRule) Kind() EventKind { return EventInflation }

func (r *inflationRule) Decide(rng *rand.Rand, store *EntityStore, tick int64) []Mutation {
	if rng.Float64() >= r.cfg.Probability {
		return nil
	}
	active := store.ActiveProducts()
	if len(active) == 0 {
		return nil
	}

	var targets []*Product
	scope := ""
	if rng.Float64() < r.cfg.CategoryProbability {
		byCat := make(map[Category][]*Product)
		var cats []Category
		for _, p := range active {
			if len(byCat[p.Category]) == 0 {
				cats = append(cats, p.Category)
			}
			byCat[p.Category] = append(byCat[p.Category], p)
		}
		cat := cats[rng.Intn(len(cats))]
		targets = byCat[cat]
		scope = fmt.Sprintf("category %s", cat)
	} else {
		targets = []*Product{active[rng.Intn(len(active))]}
		scope = "single product"
	}

	out := make([]Mutation, 0, len(targets))
	for _, p := range targets {
		out = append(out, r.hit(rng, p, tick, scope))
	}
	return out
}

func (r *inflationRule) hit(rng *rand.Rand, p *Product, tick int64, scope string) Mutation {
	prev := r.timers[p.ID]
	timer := &InflationTimer{
		ProductID:        p.ID,
		TickStarted:      tick,
		RecoveryDeadline: tick + r.cfg.DurationTicks + r.cfg.RecoveryTicks,
	}
	var pct float64
	if prev != nil {
		pct = prev.LastPercent * r.cfg.PenaltyRatio
		timer.PenaltyApplied = true
		timer.ReferencePrice = prev.ReferencePrice
	} else {
		pct = uniformFloat(rng, r.cfg.MinPercent, r.cfg.MaxPercent)
		timer.ReferencePrice = p.OriginalPrice
	}
	newPrice := RoundMoney(p.BasePrice * (1 + pct/100))
	timer.PeakPrice = newPrice
	timer.LastPercent = pct

	detail := fmt.Sprintf("%s +%.2f%%", scope, pct)
	if timer.PenaltyApplied {
		detail += " (repeat hit, reduced)"
	}
	return Mutation{
		Kind:      EventInflation,
		Field:     FieldPrice,
		ProductID: p.ID,
		Price:     newPrice,
		Percent:   pct,
		Timer:     timer,
		Detail:    detail,
	}
}

// decayRule brings inflated prices back toward their floor. The price holds for
// DurationTicks after the latest hit, then falls linearly over RecoveryTicks.
// It never raises a price.
type decayRule struct {
	cfg    InflationConfig
	timers map[ProductID]*InflationTimer
}

func (r decayRule) Kind() EventKind { return EventInflationDecay }

func (r decayRule) Decide(_ *rand.Rand, store *EntityStore, tick int64) []Mutation {
	ids := make([]ProductID, 0, len(r.timers))
	for id := range r.timers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []Mutation
	for _, id := range ids {
		t := r.timers[id]
		p, ok := store.Product(id)
		if !ok {
			continue
		}
		elapsed := tick - t.TickStarted
		if elapsed <= r.cfg.DurationTicks {
			continue
		}
		floor := t.Floor(r.cfg.FloorPercent)
		progress := elapsed - r.cfg.DurationTicks

		target := floor
		done := progress >= r.cfg.RecoveryTicks
		if !done {
			frac := float64(progress) / float64(r.cfg.RecoveryTicks)
			target = RoundMoney(t.PeakPrice - (t.PeakPrice-floor)*frac)
		}
		target = min(target, p.BasePrice)
		if target == p.BasePrice && !done {
			continue
		}
		out = append(out, Mutation{
			Kind:       EventInflationDecay,
			Field:      FieldPrice,
			ProductID:  id,
			Price:      target,
			ClearTimer: done,
			Detail:     fmt.Sprintf("recovery %d/%d toward %.2f", min(progress, r.cfg.RecoveryTicks), r.cfg.RecoveryTicks, floor),
		})
	}
	return out
}
