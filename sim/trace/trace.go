package trace

import (
	"sync"

	"github.com/inference-sim/market-sim/sim"
)

// TraceLevel controls what the in-memory trace keeps.
type TraceLevel string

const (
	// TraceLevelNone disables tracing (zero overhead).
	TraceLevelNone TraceLevel = "none"
	// TraceLevelTransactions keeps purchase attempts and tick stats.
	TraceLevelTransactions TraceLevel = "transactions"
	// TraceLevelAll also keeps every event mutation.
	TraceLevelAll TraceLevel = "all"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:         true,
	TraceLevelTransactions: true,
	TraceLevelAll:          true,
	"":                     true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// SimulationTrace collects the facts of a run in memory. It implements
// sim.Recorder and is safe to read while the run is in progress.
type SimulationTrace struct {
	Level TraceLevel

	mu           sync.Mutex
	transactions []sim.Transaction
	events       []sim.EventRecord
	ticks        []sim.TickStats
}

// NewSimulationTrace creates a SimulationTrace ready for recording.
func NewSimulationTrace(level TraceLevel) *SimulationTrace {
	if level == "" {
		level = TraceLevelNone
	}
	return &SimulationTrace{
		Level:        level,
		transactions: make([]sim.Transaction, 0),
		events:       make([]sim.EventRecord, 0),
		ticks:        make([]sim.TickStats, 0),
	}
}

// RecordTransaction appends a purchase attempt.
func (st *SimulationTrace) RecordTransaction(tx sim.Transaction) {
	if st.Level == TraceLevelNone {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.transactions = append(st.transactions, tx)
}

// RecordEvent appends an event mutation. Only kept at TraceLevelAll.
func (st *SimulationTrace) RecordEvent(ev sim.EventRecord) {
	if st.Level != TraceLevelAll {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.events = append(st.events, ev)
}

// RecordTick appends a tick summary.
func (st *SimulationTrace) RecordTick(stats sim.TickStats) {
	if st.Level == TraceLevelNone {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	st.ticks = append(st.ticks, stats)
}

// Transactions returns a copy of the recorded purchase attempts.
func (st *SimulationTrace) Transactions() []sim.Transaction {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]sim.Transaction(nil), st.transactions...)
}

// Events returns a copy of the recorded event mutations.
func (st *SimulationTrace) Events() []sim.EventRecord {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]sim.EventRecord(nil), st.events...)
}

// Ticks returns a copy of the recorded tick summaries.
func (st *SimulationTrace) Ticks() []sim.TickStats {
	st.mu.Lock()
	defer st.mu.Unlock()
	return append([]sim.TickStats(nil), st.ticks...)
}
