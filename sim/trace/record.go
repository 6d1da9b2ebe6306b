// Package trace provides recorders for a market simulation run: an in-memory
// trace, a structured-log recorder, and summary statistics over a trace.
// It depends on sim/ for the record types; sim/ never imports it.
package trace

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/market-sim/sim"
)

// LogRecorder writes one structured log entry per recorded fact.
// Transactions and events go out at Info (failures at Warn), tick
// summaries at Debug.
type LogRecorder struct {
	Logger logrus.FieldLogger
}

// NewLogRecorder returns a recorder that logs through logger, or the
// standard logrus logger when nil.
func NewLogRecorder(logger logrus.FieldLogger) *LogRecorder {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogRecorder{Logger: logger}
}

func (r *LogRecorder) RecordTransaction(tx sim.Transaction) {
	entry := r.Logger.WithFields(logrus.Fields{
		"tick":      tx.Tick,
		"tx_id":     tx.ID,
		"company":   tx.CompanyID.String(),
		"product":   tx.ProductID.String(),
		"quantity":  tx.Quantity,
		"requested": tx.RequestedQuantity,
		"strategy":  string(tx.Strategy),
		"outcome":   string(tx.Outcome),
	})
	if !tx.Succeeded() {
		entry.WithField("reason", string(tx.Reason)).Warn("purchase failed")
		return
	}
	entry.WithFields(logrus.Fields{
		"supplier":      tx.SupplierID.String(),
		"unit_price":    tx.UnitPrice,
		"total":         tx.Total,
		"budget_before": tx.BudgetBefore,
		"budget_after":  tx.BudgetAfter,
		"stock_before":  tx.StockBefore,
		"stock_after":   tx.StockAfter,
	}).Info("purchase")
}

func (r *LogRecorder) RecordEvent(ev sim.EventRecord) {
	fields := logrus.Fields{
		"tick":  ev.Tick,
		"event": string(ev.Kind),
	}
	if ev.Aggregate {
		fields["count"] = ev.Count
		r.Logger.WithFields(fields).Info("event applied")
		return
	}
	fields["field"] = string(ev.Field)
	fields["before"] = ev.Before
	fields["after"] = ev.After
	if ev.ProductID != 0 {
		fields["product"] = ev.ProductID.String()
	}
	if ev.SupplierID != 0 {
		fields["supplier"] = ev.SupplierID.String()
	}
	if ev.CompanyID != 0 {
		fields["company"] = ev.CompanyID.String()
	}
	if ev.Percent != 0 {
		fields["percent"] = ev.Percent
	}
	if ev.Detail != "" {
		fields["detail"] = ev.Detail
	}
	r.Logger.WithFields(fields).Info("event mutation")
}

func (r *LogRecorder) RecordTick(stats sim.TickStats) {
	r.Logger.WithFields(logrus.Fields{
		"tick":            stats.Tick,
		"selected":        stats.Selected,
		"attempts":        stats.Attempts,
		"successes":       stats.Successes,
		"failures":        stats.FailureCount(),
		"volume":          stats.Volume,
		"total_budget":    stats.TotalBudget,
		"active_products": stats.ActiveProducts,
		"events":          stats.EventCount(),
		"event_errors":    stats.EventErrors,
	}).Debug("tick")
}
