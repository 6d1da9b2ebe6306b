// Package ledger persists a simulation run to SQLite: every purchase attempt,
// every event mutation and every tick summary.
package ledger

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/inference-sim/market-sim/sim"
)

// DB wraps a SQLite connection holding the run ledger.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One writer goroutine plus occasional readers; a single connection
	// keeps SQLite from reporting SQLITE_BUSY.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		company_id INTEGER NOT NULL,
		supplier_id INTEGER NOT NULL,
		product_id INTEGER NOT NULL,
		requested_quantity INTEGER NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price REAL NOT NULL,
		total REAL NOT NULL,
		outcome TEXT NOT NULL,
		reason TEXT NOT NULL,
		strategy TEXT NOT NULL,
		budget_before REAL NOT NULL,
		budget_after REAL NOT NULL,
		stock_before INTEGER NOT NULL,
		stock_after INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		kind TEXT NOT NULL,
		field TEXT NOT NULL,
		product_id INTEGER NOT NULL,
		supplier_id INTEGER NOT NULL,
		company_id INTEGER NOT NULL,
		before_value REAL NOT NULL,
		after_value REAL NOT NULL,
		percent REAL NOT NULL,
		aggregate INTEGER NOT NULL,
		count INTEGER NOT NULL,
		detail TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS ticks (
		tick INTEGER PRIMARY KEY,
		selected INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		successes INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		volume REAL NOT NULL,
		units_sold INTEGER NOT NULL,
		total_budget REAL NOT NULL,
		active_products INTEGER NOT NULL,
		events INTEGER NOT NULL,
		event_errors INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_tick ON transactions(tick);
	CREATE INDEX IF NOT EXISTS idx_transactions_company ON transactions(company_id);
	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// TransactionRow is the stored form of a purchase attempt.
type TransactionRow struct {
	Seq               int64   `db:"seq"`
	ID                string  `db:"id"`
	Tick              int64   `db:"tick"`
	CompanyID         int     `db:"company_id"`
	SupplierID        int     `db:"supplier_id"`
	ProductID         int     `db:"product_id"`
	RequestedQuantity int     `db:"requested_quantity"`
	Quantity          int     `db:"quantity"`
	UnitPrice         float64 `db:"unit_price"`
	Total             float64 `db:"total"`
	Outcome           string  `db:"outcome"`
	Reason            string  `db:"reason"`
	Strategy          string  `db:"strategy"`
	BudgetBefore      float64 `db:"budget_before"`
	BudgetAfter       float64 `db:"budget_after"`
	StockBefore       int     `db:"stock_before"`
	StockAfter        int     `db:"stock_after"`
}

func transactionRow(tx sim.Transaction) TransactionRow {
	return TransactionRow{
		ID:                tx.ID,
		Tick:              tx.Tick,
		CompanyID:         int(tx.CompanyID),
		SupplierID:        int(tx.SupplierID),
		ProductID:         int(tx.ProductID),
		RequestedQuantity: tx.RequestedQuantity,
		Quantity:          tx.Quantity,
		UnitPrice:         tx.UnitPrice,
		Total:             tx.Total,
		Outcome:           string(tx.Outcome),
		Reason:            string(tx.Reason),
		Strategy:          string(tx.Strategy),
		BudgetBefore:      tx.BudgetBefore,
		BudgetAfter:       tx.BudgetAfter,
		StockBefore:       tx.StockBefore,
		StockAfter:        tx.StockAfter,
	}
}

// EventRow is the stored form of an event mutation or aggregate.
type EventRow struct {
	ID         int64   `db:"id"`
	Tick       int64   `db:"tick"`
	Kind       string  `db:"kind"`
	Field      string  `db:"field"`
	ProductID  int     `db:"product_id"`
	SupplierID int     `db:"supplier_id"`
	CompanyID  int     `db:"company_id"`
	Before     float64 `db:"before_value"`
	After      float64 `db:"after_value"`
	Percent    float64 `db:"percent"`
	Aggregate  bool    `db:"aggregate"`
	Count      int     `db:"count"`
	Detail     string  `db:"detail"`
}

func eventRow(ev sim.EventRecord) EventRow {
	return EventRow{
		Tick:       ev.Tick,
		Kind:       string(ev.Kind),
		Field:      string(ev.Field),
		ProductID:  int(ev.ProductID),
		SupplierID: int(ev.SupplierID),
		CompanyID:  int(ev.CompanyID),
		Before:     ev.Before,
		After:      ev.After,
		Percent:    ev.Percent,
		Aggregate:  ev.Aggregate,
		Count:      ev.Count,
		Detail:     ev.Detail,
	}
}

// TickRow is the stored form of a tick summary.
type TickRow struct {
	Tick           int64   `db:"tick"`
	Selected       int     `db:"selected"`
	Attempts       int     `db:"attempts"`
	Successes      int     `db:"successes"`
	Failures       int     `db:"failures"`
	Volume         float64 `db:"volume"`
	UnitsSold      int     `db:"units_sold"`
	TotalBudget    float64 `db:"total_budget"`
	ActiveProducts int     `db:"active_products"`
	Events         int     `db:"events"`
	EventErrors    int     `db:"event_errors"`
}

func tickRow(s sim.TickStats) TickRow {
	return TickRow{
		Tick:           s.Tick,
		Selected:       s.Selected,
		Attempts:       s.Attempts,
		Successes:      s.Successes,
		Failures:       s.FailureCount(),
		Volume:         s.Volume,
		UnitsSold:      s.UnitsSold,
		TotalBudget:    s.TotalBudget,
		ActiveProducts: s.ActiveProducts,
		Events:         s.EventCount(),
		EventErrors:    s.EventErrors,
	}
}

const (
	insertTransaction = `INSERT INTO transactions
		(id, tick, company_id, supplier_id, product_id, requested_quantity, quantity,
		 unit_price, total, outcome, reason, strategy, budget_before, budget_after,
		 stock_before, stock_after)
		VALUES (:id, :tick, :company_id, :supplier_id, :product_id, :requested_quantity, :quantity,
		 :unit_price, :total, :outcome, :reason, :strategy, :budget_before, :budget_after,
		 :stock_before, :stock_after)`
	insertEvent = `INSERT INTO events
		(tick, kind, field, product_id, supplier_id, company_id, before_value, after_value,
		 percent, aggregate, count, detail)
		VALUES (:tick, :kind, :field, :product_id, :supplier_id, :company_id, :before_value, :after_value,
		 :percent, :aggregate, :count, :detail)`
	insertTick = `INSERT OR REPLACE INTO ticks
		(tick, selected, attempts, successes, failures, volume, units_sold, total_budget,
		 active_products, events, event_errors)
		VALUES (:tick, :selected, :attempts, :successes, :failures, :volume, :units_sold, :total_budget,
		 :active_products, :events, :event_errors)`
)

// batch is a group of records written in one SQL transaction.
type batch struct {
	transactions []TransactionRow
	events       []EventRow
	ticks        []TickRow
}

func (b *batch) len() int {
	return len(b.transactions) + len(b.events) + len(b.ticks)
}

func (b *batch) reset() {
	b.transactions = b.transactions[:0]
	b.events = b.events[:0]
	b.ticks = b.ticks[:0]
}

// saveBatch appends all records of b in a single SQL transaction.
func (db *DB) saveBatch(b *batch) error {
	if b.len() == 0 {
		return nil
	}
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range b.transactions {
		if _, err := tx.NamedExec(insertTransaction, r); err != nil {
			return fmt.Errorf("insert transaction %s: %w", r.ID, err)
		}
	}
	for _, r := range b.events {
		if _, err := tx.NamedExec(insertEvent, r); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}
	for _, r := range b.ticks {
		if _, err := tx.NamedExec(insertTick, r); err != nil {
			return fmt.Errorf("insert tick %d: %w", r.Tick, err)
		}
	}
	return tx.Commit()
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}

// Counts is the number of rows per ledger table.
type Counts struct {
	Transactions int `db:"transactions"`
	Successes    int `db:"successes"`
	Events       int `db:"events"`
	Ticks        int `db:"ticks"`
}

// Counts returns how many records the ledger holds. Aggregate event rows are
// not counted.
func (db *DB) Counts() (Counts, error) {
	var c Counts
	err := db.conn.Get(&c, `SELECT
		(SELECT COUNT(*) FROM transactions) AS transactions,
		(SELECT COUNT(*) FROM transactions WHERE outcome = 'success') AS successes,
		(SELECT COUNT(*) FROM events WHERE aggregate = 0) AS events,
		(SELECT COUNT(*) FROM ticks) AS ticks`)
	return c, err
}

// TransactionsForCompany returns a company's purchase attempts in tick order.
func (db *DB) TransactionsForCompany(id sim.CompanyID) ([]TransactionRow, error) {
	var rows []TransactionRow
	err := db.conn.Select(&rows,
		"SELECT * FROM transactions WHERE company_id = ? ORDER BY seq",
		int(id),
	)
	return rows, err
}

// RecentEvents returns the most recent N event mutations, newest first.
func (db *DB) RecentEvents(limit int) ([]EventRow, error) {
	var rows []EventRow
	err := db.conn.Select(&rows,
		"SELECT * FROM events WHERE aggregate = 0 ORDER BY id DESC LIMIT ?",
		limit,
	)
	return rows, err
}

// FailureCounts returns failed attempts grouped by reason.
func (db *DB) FailureCounts() (map[sim.FailureReason]int, error) {
	var rows []struct {
		Reason string `db:"reason"`
		N      int    `db:"n"`
	}
	if err := db.conn.Select(&rows,
		"SELECT reason, COUNT(*) AS n FROM transactions WHERE outcome = 'failed' GROUP BY reason",
	); err != nil {
		return nil, err
	}
	out := make(map[sim.FailureReason]int, len(rows))
	for _, r := range rows {
		out[sim.FailureReason(r.Reason)] = r.N
	}
	return out, nil
}

// Ticks returns the stored tick summaries in order.
func (db *DB) Ticks() ([]TickRow, error) {
	var rows []TickRow
	err := db.conn.Select(&rows, "SELECT * FROM ticks ORDER BY tick")
	return rows, err
}
