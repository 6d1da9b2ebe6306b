package sim

import (
	"fmt"
	"math/rand"
)

// Strategy is the rule a company uses to pick one supplier among the candidates.
type Strategy string

const (
	StrategyCheapest            Strategy = "cheapest"
	StrategyByPreferredCategory Strategy = "by_preferred_category"
	StrategyBestRatio           Strategy = "best_ratio"
	StrategyRandom              Strategy = "random"
)

// AllStrategies lists strategies in their canonical order.
var AllStrategies = []Strategy{StrategyCheapest, StrategyByPreferredCategory, StrategyBestRatio, StrategyRandom}

// ValidStrategies is the set of recognized strategy names.
var ValidStrategies = map[Strategy]bool{
	StrategyCheapest:            true,
	StrategyByPreferredCategory: true,
	StrategyBestRatio:           true,
	StrategyRandom:              true,
}

// IsValidStrategy returns true if the given name is a recognized strategy.
func IsValidStrategy(name string) bool {
	return ValidStrategies[Strategy(name)]
}

// Candidate is one eligible supplier for a purchase, with its offered price.
type Candidate struct {
	SupplierID SupplierID
	Stock      int
	Price      float64
	Category   Category
}

// Selection is the outcome of applying a strategy to a candidate list.
type Selection struct {
	Candidate Candidate
	Reason    string // human-readable explanation, carried into logs
}

// SelectSupplier applies the company's strategy to a non-empty candidate list.
// Candidates must be in ascending supplier ID order so ties resolve to the lowest ID.
// Panics on an empty list or an unknown strategy.
func SelectSupplier(strategy Strategy, company *Company, candidates []Candidate, rng *rand.Rand) Selection {
	if len(candidates) == 0 {
		panic("SelectSupplier: empty candidates")
	}
	switch strategy {
	case StrategyCheapest:
		c := cheapest(candidates)
		return Selection{Candidate: c, Reason: fmt.Sprintf("cheapest (price=%.2f)", c.Price)}
	case StrategyByPreferredCategory:
		preferred := make([]Candidate, 0, len(candidates))
		for _, c := range candidates {
			if company.Prefers(c.Category) {
				preferred = append(preferred, c)
			}
		}
		if len(preferred) == 0 {
			c := cheapest(candidates)
			return Selection{Candidate: c, Reason: fmt.Sprintf("preferred-category fallback cheapest (price=%.2f)", c.Price)}
		}
		c := cheapest(preferred)
		return Selection{Candidate: c, Reason: fmt.Sprintf("preferred-category %s (price=%.2f)", c.Category, c.Price)}
	case StrategyBestRatio:
		c := bestRatio(candidates)
		return Selection{Candidate: c, Reason: fmt.Sprintf("best-ratio (stock/price=%.3f)", ratio(c))}
	case StrategyRandom:
		idx := rng.Intn(len(candidates))
		return Selection{Candidate: candidates[idx], Reason: fmt.Sprintf("random[%d of %d]", idx, len(candidates))}
	default:
		panic(fmt.Sprintf("unknown strategy %q", strategy))
	}
}

// cheapest returns the minimum-price candidate; ties go to the first (lowest ID).
func cheapest(candidates []Candidate) Candidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Price < best.Price {
			best = c
		}
	}
	return best
}

// bestRatio maximizes stock/price; ties go to the first (lowest ID).
func bestRatio(candidates []Candidate) Candidate {
	best := candidates[0]
	bestScore := ratio(best)
	for _, c := range candidates[1:] {
		if s := ratio(c); s > bestScore {
			best, bestScore = c, s
		}
	}
	return best
}

func ratio(c Candidate) float64 {
	if c.Price <= 0 {
		return 0
	}
	return float64(c.Stock) / c.Price
}
