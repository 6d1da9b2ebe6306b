// sim/transaction.go
package sim

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result class of a purchase attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// FailureReason classifies a failed purchase. Business failures are data, not errors.
type FailureReason string

const (
	ReasonNone               FailureReason = ""
	ReasonNoSupplier         FailureReason = "no_supplier"
	ReasonInsufficientBudget FailureReason = "insufficient_budget"
	ReasonInsufficientStock  FailureReason = "insufficient_stock"
	ReasonInternalError      FailureReason = "internal_error"
)

// AllFailureReasons lists the failure reasons in reporting order.
var AllFailureReasons = []FailureReason{ReasonNoSupplier, ReasonInsufficientBudget, ReasonInsufficientStock, ReasonInternalError}

// Transaction is the immutable record of one purchase attempt, successful or not.
// SupplierID is zero when no supplier was chosen.
type Transaction struct {
	ID                string        `json:"id"`
	Timestamp         time.Time     `json:"timestamp"`
	Tick              int64         `json:"tick"`
	CompanyID         CompanyID     `json:"company_id"`
	SupplierID        SupplierID    `json:"supplier_id"`
	ProductID         ProductID     `json:"product_id"`
	RequestedQuantity int           `json:"requested_quantity"`
	Quantity          int           `json:"quantity"`
	UnitPrice         float64       `json:"unit_price"`
	Total             float64       `json:"total"`
	Outcome           Outcome       `json:"outcome"`
	Reason            FailureReason `json:"reason,omitempty"`
	Strategy          Strategy      `json:"strategy"`
	BudgetBefore      float64       `json:"budget_before"`
	BudgetAfter       float64       `json:"budget_after"`
	StockBefore       int           `json:"stock_before"`
	StockAfter        int           `json:"stock_after"`
	Detail            string        `json:"detail,omitempty"`
}

// Succeeded reports whether the purchase went through.
func (t Transaction) Succeeded() bool {
	return t.Outcome == OutcomeSuccess
}

// TransactionEngine resolves purchase attempts against the entity store.
// Candidate enumeration, selection and pricing are read-only; the store is
// mutated only once a purchase is known to be affordable.
type TransactionEngine struct {
	store       *EntityStore
	prices      *PriceModel
	rng         *rand.Rand // offered prices and random-strategy picks
	ids         io.Reader  // entropy for record IDs
	partialFill bool
	now         func() time.Time
}

// NewTransactionEngine wires a TransactionEngine. ids may be nil to use crypto randomness.
func NewTransactionEngine(store *EntityStore, prices *PriceModel, rng *rand.Rand, ids io.Reader, partialFill bool) *TransactionEngine {
	return &TransactionEngine{
		store:       store,
		prices:      prices,
		rng:         rng,
		ids:         ids,
		partialFill: partialFill,
		now:         time.Now,
	}
}

// Candidates lists suppliers holding the product with positive stock, priced,
// in ascending supplier ID order. Inactive products have no candidates.
func (e *TransactionEngine) Candidates(pid ProductID) []Candidate {
	p, ok := e.store.Product(pid)
	if !ok || !p.Active {
		return nil
	}
	var out []Candidate
	for _, sup := range e.store.Suppliers() {
		stock, carries := sup.Stock[pid]
		if !carries || stock <= 0 {
			continue
		}
		out = append(out, Candidate{
			SupplierID: sup.ID,
			Stock:      stock,
			Price:      e.prices.Price(p.BasePrice, stock, e.rng),
			Category:   p.Category,
		})
	}
	return out
}

// AttemptPurchase tries to buy quantity units of a product for a company and
// always returns the record of the attempt. A failed attempt leaves the store untouched.
func (e *TransactionEngine) AttemptPurchase(tick int64, company *Company, pid ProductID, quantity int) Transaction {
	tx := Transaction{
		ID:                e.newID(),
		Timestamp:         e.now(),
		Tick:              tick,
		CompanyID:         company.ID,
		ProductID:         pid,
		RequestedQuantity: quantity,
		Strategy:          company.Strategy,
		BudgetBefore:      company.Budget,
		BudgetAfter:       company.Budget,
	}

	if _, ok := e.store.Product(pid); !ok {
		return fail(tx, ReasonInternalError, fmt.Sprintf("%v: %d", ErrUnknownProduct, pid))
	}
	if quantity <= 0 {
		return fail(tx, ReasonInternalError, fmt.Sprintf("invalid quantity %d", quantity))
	}

	candidates := e.Candidates(pid)
	if len(candidates) == 0 {
		return fail(tx, ReasonNoSupplier, "no supplier with stock")
	}

	sel := SelectSupplier(company.Strategy, company, candidates, e.rng)
	chosen := sel.Candidate
	tx.SupplierID = chosen.SupplierID
	tx.UnitPrice = chosen.Price
	tx.StockBefore = chosen.Stock
	tx.StockAfter = chosen.Stock
	tx.Detail = sel.Reason

	qty := quantity
	if qty > chosen.Stock {
		if !e.partialFill {
			tx.Quantity = quantity
			tx.Total = RoundMoney(chosen.Price * float64(quantity))
			return fail(tx, ReasonInsufficientStock, fmt.Sprintf("requested %d, supplier has %d", quantity, chosen.Stock))
		}
		qty = chosen.Stock
	}
	tx.Quantity = qty
	tx.Total = RoundMoney(chosen.Price * float64(qty))

	if tx.Total > company.Budget {
		return fail(tx, ReasonInsufficientBudget, fmt.Sprintf("total %.2f exceeds budget %.2f", tx.Total, company.Budget))
	}

	// Mutation phase.
	stockBefore, stockAfter, err := e.store.DebitStock(chosen.SupplierID, pid, qty)
	if err != nil {
		if errors.Is(err, ErrInsufficientStock) {
			return fail(tx, ReasonInsufficientStock, err.Error())
		}
		return fail(tx, ReasonInternalError, err.Error())
	}
	budgetBefore, budgetAfter, err := e.store.DebitBudget(company.ID, tx.Total)
	if err != nil {
		// undo the stock debit so the failure leaves no trace
		if _, _, rbErr := e.store.CreditStock(chosen.SupplierID, pid, qty); rbErr != nil {
			err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		if errors.Is(err, ErrInsufficientBudget) {
			return fail(tx, ReasonInsufficientBudget, err.Error())
		}
		return fail(tx, ReasonInternalError, err.Error())
	}

	tx.Outcome = OutcomeSuccess
	tx.StockBefore, tx.StockAfter = stockBefore, stockAfter
	tx.BudgetBefore, tx.BudgetAfter = budgetBefore, budgetAfter
	return tx
}

// InternalErrorTransaction builds the record for an attempt that blew up before
// the engine could produce one.
func (e *TransactionEngine) InternalErrorTransaction(tick int64, company *Company, pid ProductID, quantity int, cause any) Transaction {
	tx := Transaction{
		ID:                e.newID(),
		Timestamp:         e.now(),
		Tick:              tick,
		CompanyID:         company.ID,
		ProductID:         pid,
		RequestedQuantity: quantity,
		Strategy:          company.Strategy,
		BudgetBefore:      company.Budget,
		BudgetAfter:       company.Budget,
	}
	return fail(tx, ReasonInternalError, fmt.Sprint(cause))
}

func fail(tx Transaction, reason FailureReason, detail string) Transaction {
	tx.Outcome = OutcomeFailed
	tx.Reason = reason
	tx.Detail = detail
	return tx
}

func (e *TransactionEngine) newID() string {
	if e.ids == nil {
		return uuid.NewString()
	}
	id, err := uuid.NewRandomFromReader(e.ids)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
