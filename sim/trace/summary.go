package trace

import (
	"math"
	"sort"

	"github.com/inference-sim/market-sim/sim"
)

// Distribution captures statistical summary of a metric.
type Distribution struct {
	Mean  float64
	P50   float64
	P95   float64
	P99   float64
	Min   float64
	Max   float64
	Count int
}

// NewDistribution computes a Distribution from raw values.
// Returns zero-value Distribution for empty input.
func NewDistribution(values []float64) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	return Distribution{
		Mean:  sum / float64(len(sorted)),
		P50:   percentile(sorted, 50),
		P95:   percentile(sorted, 95),
		P99:   percentile(sorted, 99),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		Count: len(sorted),
	}
}

// percentile uses linear interpolation between closest ranks. Input must be sorted.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper {
		return sorted[lower]
	}
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// StrategyStats counts attempts and successes for one purchasing strategy.
type StrategyStats struct {
	Attempts  int
	Successes int
	Volume    float64
}

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	Attempts        int
	Successes       int
	Failures        map[sim.FailureReason]int
	SuccessRate     float64
	TotalVolume     float64
	OrderTotals     Distribution // totals of successful purchases
	UnitPrices      Distribution // unit prices of successful purchases
	ByStrategy      map[sim.Strategy]StrategyStats
	Events          map[sim.EventKind]int // per-mutation records, aggregates excluded
	VolumePerTick   Distribution
	BusiestTick     int64
	UniqueBuyers    int
	UniqueSuppliers int
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		Failures:   make(map[sim.FailureReason]int),
		ByStrategy: make(map[sim.Strategy]StrategyStats),
		Events:     make(map[sim.EventKind]int),
	}
	if st == nil {
		return summary
	}

	var totals, prices []float64
	buyers := make(map[sim.CompanyID]bool)
	sellers := make(map[sim.SupplierID]bool)
	for _, tx := range st.Transactions() {
		summary.Attempts++
		ss := summary.ByStrategy[tx.Strategy]
		ss.Attempts++
		if tx.Succeeded() {
			summary.Successes++
			summary.TotalVolume = sim.RoundMoney(summary.TotalVolume + tx.Total)
			totals = append(totals, tx.Total)
			prices = append(prices, tx.UnitPrice)
			buyers[tx.CompanyID] = true
			sellers[tx.SupplierID] = true
			ss.Successes++
			ss.Volume = sim.RoundMoney(ss.Volume + tx.Total)
		} else {
			summary.Failures[tx.Reason]++
		}
		summary.ByStrategy[tx.Strategy] = ss
	}
	if summary.Attempts > 0 {
		summary.SuccessRate = float64(summary.Successes) / float64(summary.Attempts)
	}
	summary.OrderTotals = NewDistribution(totals)
	summary.UnitPrices = NewDistribution(prices)
	summary.UniqueBuyers = len(buyers)
	summary.UniqueSuppliers = len(sellers)

	for _, ev := range st.Events() {
		if !ev.Aggregate {
			summary.Events[ev.Kind]++
		}
	}

	var perTick []float64
	busiest := -1.0
	for _, t := range st.Ticks() {
		perTick = append(perTick, t.Volume)
		if t.Volume > busiest {
			busiest = t.Volume
			summary.BusiestTick = t.Tick
		}
	}
	summary.VolumePerTick = NewDistribution(perTick)
	return summary
}
