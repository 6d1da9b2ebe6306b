package trace

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/market-sim/sim"
)

func successTx(tick int64, company sim.CompanyID, supplier sim.SupplierID, total float64) sim.Transaction {
	return sim.Transaction{
		ID:         "tx",
		Tick:       tick,
		CompanyID:  company,
		SupplierID: supplier,
		ProductID:  1,
		Quantity:   2,
		UnitPrice:  total / 2,
		Total:      total,
		Outcome:    sim.OutcomeSuccess,
		Strategy:   sim.StrategyCheapest,
	}
}

func failedTx(tick int64, reason sim.FailureReason) sim.Transaction {
	return sim.Transaction{
		Tick:      tick,
		CompanyID: 9,
		ProductID: 1,
		Outcome:   sim.OutcomeFailed,
		Reason:    reason,
		Strategy:  sim.StrategyRandom,
	}
}

func TestSimulationTrace_RecordTransaction_AppendsRecord(t *testing.T) {
	// GIVEN a trace keeping transactions
	st := NewSimulationTrace(TraceLevelTransactions)

	// WHEN a transaction is recorded
	st.RecordTransaction(successTx(1, 3, 4, 20))

	// THEN the trace contains it
	txs := st.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, sim.CompanyID(3), txs[0].CompanyID)
	assert.True(t, txs[0].Succeeded())
}

func TestSimulationTrace_Levels_FilterRecords(t *testing.T) {
	tests := []struct {
		level      TraceLevel
		wantTx     int
		wantEvents int
		wantTicks  int
	}{
		{TraceLevelNone, 0, 0, 0},
		{"", 0, 0, 0},
		{TraceLevelTransactions, 1, 0, 1},
		{TraceLevelAll, 1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			st := NewSimulationTrace(tt.level)
			st.RecordTransaction(successTx(1, 1, 1, 10))
			st.RecordEvent(sim.EventRecord{Tick: 1, Kind: sim.EventInflation})
			st.RecordTick(sim.TickStats{Tick: 1})

			assert.Len(t, st.Transactions(), tt.wantTx)
			assert.Len(t, st.Events(), tt.wantEvents)
			assert.Len(t, st.Ticks(), tt.wantTicks)
		})
	}
}

func TestSimulationTrace_MultipleRecords_PreservesOrder(t *testing.T) {
	// GIVEN a full trace
	st := NewSimulationTrace(TraceLevelAll)

	// WHEN multiple records are added
	st.RecordTransaction(successTx(1, 1, 1, 10))
	st.RecordTransaction(failedTx(2, sim.ReasonNoSupplier))
	st.RecordEvent(sim.EventRecord{Tick: 2, Kind: sim.EventBudgetRecharge, CompanyID: 1})

	// THEN order is preserved
	txs := st.Transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, int64(1), txs[0].Tick)
	assert.Equal(t, int64(2), txs[1].Tick)
	require.Len(t, st.Events(), 1)
}

func TestSimulationTrace_Transactions_ReturnsCopy(t *testing.T) {
	st := NewSimulationTrace(TraceLevelTransactions)
	st.RecordTransaction(successTx(1, 1, 1, 10))

	txs := st.Transactions()
	txs[0].Total = 999

	assert.Equal(t, 10.0, st.Transactions()[0].Total)
}

func TestIsValidTraceLevel_ValidLevels(t *testing.T) {
	tests := []struct {
		level string
		valid bool
	}{
		{"none", true},
		{"transactions", true},
		{"all", true},
		{"", true}, // empty defaults to none
		{"decisions", false},
		{"ALL", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := IsValidTraceLevel(tt.level); got != tt.valid {
				t.Errorf("IsValidTraceLevel(%q) = %v, want %v", tt.level, got, tt.valid)
			}
		})
	}
}

func newBufferedLogger() (*logrus.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	logger := logrus.New()
	logger.SetOutput(buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.DebugLevel)
	return logger, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		entry := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestLogRecorder_Transaction_EmitsFields(t *testing.T) {
	// GIVEN a log recorder writing JSON
	logger, buf := newBufferedLogger()
	r := NewLogRecorder(logger)

	// WHEN a success and a failure are recorded
	r.RecordTransaction(successTx(7, 2, 5, 30))
	r.RecordTransaction(failedTx(7, sim.ReasonInsufficientBudget))

	// THEN each produces one entry carrying tick, ids and outcome
	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "purchase", entries[0]["msg"])
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "company_2", entries[0]["company"])
	assert.Equal(t, "supplier_5", entries[0]["supplier"])
	assert.Equal(t, 30.0, entries[0]["total"])
	assert.Equal(t, 7.0, entries[0]["tick"])

	assert.Equal(t, "purchase failed", entries[1]["msg"])
	assert.Equal(t, "warning", entries[1]["level"])
	assert.Equal(t, string(sim.ReasonInsufficientBudget), entries[1]["reason"])
}

func TestLogRecorder_Event_AggregateAndMutation(t *testing.T) {
	logger, buf := newBufferedLogger()
	r := NewLogRecorder(logger)

	r.RecordEvent(sim.EventRecord{Tick: 5, Kind: sim.EventInflation, Field: sim.FieldPrice, ProductID: 3, Before: 10, After: 11, Percent: 10})
	r.RecordEvent(sim.EventRecord{Tick: 5, Kind: sim.EventInflation, Aggregate: true, Count: 1})

	entries := decodeLines(t, buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "event mutation", entries[0]["msg"])
	assert.Equal(t, "product_3", entries[0]["product"])
	assert.Equal(t, 11.0, entries[0]["after"])
	assert.NotContains(t, entries[0], "company")
	assert.Equal(t, "event applied", entries[1]["msg"])
	assert.Equal(t, 1.0, entries[1]["count"])
}

func TestLogRecorder_Tick_LogsAtDebug(t *testing.T) {
	logger, buf := newBufferedLogger()
	logger.SetLevel(logrus.InfoLevel)
	r := NewLogRecorder(logger)

	r.RecordTick(sim.TickStats{Tick: 1})

	assert.Empty(t, buf.String())
}

func TestNewLogRecorder_NilUsesStandardLogger(t *testing.T) {
	r := NewLogRecorder(nil)
	assert.Equal(t, logrus.StandardLogger(), r.Logger)
}
