// Per-tick statistics and the running totals behind RunSummary.

package sim

import "time"

// TickStats aggregates what happened in one tick.
type TickStats struct {
	Tick           int64                 `json:"tick"`
	Selected       int                   `json:"selected"`  // companies picked to trade
	Attempts       int                   `json:"attempts"`  // purchase attempts recorded
	Successes      int                   `json:"successes"` // successful purchases
	Failures       map[FailureReason]int `json:"failures"`  // failed purchases per reason
	Volume         float64               `json:"volume"`    // sum of successful totals
	UnitsSold      int                   `json:"units_sold"`
	TotalBudget    float64               `json:"total_budget"` // sum of company budgets at tick end
	ActiveProducts int                   `json:"active_products"`
	Events         map[EventKind]int     `json:"events"` // applied event mutations per kind
	EventErrors    int                   `json:"event_errors"`
	Duration       time.Duration         `json:"duration"`
}

func newTickStats(tick int64) TickStats {
	return TickStats{
		Tick:     tick,
		Failures: make(map[FailureReason]int),
		Events:   make(map[EventKind]int),
	}
}

func (s *TickStats) addTransaction(tx Transaction) {
	s.Attempts++
	if tx.Succeeded() {
		s.Successes++
		s.Volume = RoundMoney(s.Volume + tx.Total)
		s.UnitsSold += tx.Quantity
		return
	}
	s.Failures[tx.Reason]++
}

func (s *TickStats) addEvents(es EventStats) {
	for k, n := range es.Applied {
		s.Events[k] += n
	}
	s.EventErrors += es.Errors
}

// FailureCount returns the number of failed attempts.
func (s TickStats) FailureCount() int {
	n := 0
	for _, c := range s.Failures {
		n += c
	}
	return n
}

// EventCount returns the number of applied event mutations.
func (s TickStats) EventCount() int {
	n := 0
	for _, c := range s.Events {
		n += c
	}
	return n
}

// RunSummary is the read-only overview of the current run.
type RunSummary struct {
	State            SimState              `json:"state"`
	Tick             int64                 `json:"tick"`
	TickCount        int64                 `json:"tick_count"` // configured ticks; 0 = unbounded
	Transactions     int                   `json:"transactions"`
	Successes        int                   `json:"successes"`
	Failures         map[FailureReason]int `json:"failures"`
	SuccessRate      float64               `json:"success_rate"`
	Volume           float64               `json:"volume"`
	UnitsSold        int                   `json:"units_sold"`
	Events           map[EventKind]int     `json:"events"`
	EventErrors      int                   `json:"event_errors"`
	TotalBudget      float64               `json:"total_budget"`
	InitialBudget    float64               `json:"initial_budget"`
	Products         int                   `json:"products"`
	ActiveProducts   int                   `json:"active_products"`
	InflatedProducts int                   `json:"inflated_products"`
	Suppliers        int                   `json:"suppliers"`
	Companies        int                   `json:"companies"`
}

// runTotals accumulates TickStats across a run.
type runTotals struct {
	transactions int
	successes    int
	failures     map[FailureReason]int
	volume       float64
	unitsSold    int
	events       map[EventKind]int
	eventErrors  int
}

func newRunTotals() runTotals {
	return runTotals{
		failures: make(map[FailureReason]int),
		events:   make(map[EventKind]int),
	}
}

func (t *runTotals) add(s TickStats) {
	t.transactions += s.Attempts
	t.successes += s.Successes
	for r, n := range s.Failures {
		t.failures[r] += n
	}
	t.volume = RoundMoney(t.volume + s.Volume)
	t.unitsSold += s.UnitsSold
	for k, n := range s.Events {
		t.events[k] += n
	}
	t.eventErrors += s.EventErrors
}
