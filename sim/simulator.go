// sim/simulator.go
package sim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// SimState is the orchestrator's lifecycle state.
type SimState string

const (
	StateIdle    SimState = "idle"
	StateRunning SimState = "running"
	StateStopped SimState = "stopped"
)

// Simulator is the core object that holds the tick counter, the entity store,
// both engines and the run totals. Ticks are processed one at a time on the
// goroutine that calls Run/RunTicks/Step; the snapshot accessors may be called
// from any goroutine.
type Simulator struct {
	cfg      Config
	recorder Recorder

	// mu guards the fields below; the store has its own lock held for each tick.
	mu           sync.RWMutex
	state        SimState
	tick         int64
	rng          *PartitionedRNG
	selection    *rand.Rand // which companies trade and what they ask for
	store        *EntityStore
	transactions *TransactionEngine
	events       *EventEngine
	totals       runTotals

	stopRequested atomic.Bool
}

// NewSimulator validates the configuration and generates the initial population.
// A configuration error is the only error a run can fail with.
func NewSimulator(cfg Config, recorder Recorder) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	s := &Simulator{cfg: cfg, recorder: safeRecorder{wrapRecorder(recorder)}}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.reset(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewSimulatorWithStore runs over a caller-built store instead of a generated one.
// Reset still regenerates from the configuration.
func NewSimulatorWithStore(cfg Config, store *EntityStore, recorder Recorder) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if store == nil || len(store.productIDs) == 0 || len(store.supplierIDs) == 0 || len(store.companyIDs) == 0 {
		return nil, fmt.Errorf("invalid store: products, suppliers and companies must be non-empty")
	}
	s := &Simulator{cfg: cfg, recorder: safeRecorder{wrapRecorder(recorder)}}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.install(NewPartitionedRNG(NewSimulationKey(cfg.Run.Seed)), store)
	return s, nil
}

func wrapRecorder(r Recorder) Recorder {
	if r == nil {
		return NopRecorder{}
	}
	return r
}

// reset regenerates the population. Caller holds s.mu.
func (s *Simulator) reset() error {
	rng := NewPartitionedRNG(NewSimulationKey(s.cfg.Run.Seed))
	store, err := NewGeneratedStore(s.cfg.Generation, rng.ForSubsystem(SubsystemGeneration))
	if err != nil {
		return fmt.Errorf("generating entities: %w", err)
	}
	s.install(rng, store)
	return nil
}

// install swaps in fresh run state. Caller holds s.mu.
func (s *Simulator) install(rng *PartitionedRNG, store *EntityStore) {
	s.rng = rng
	s.selection = rng.ForSubsystem(SubsystemSelection)
	s.store = store
	s.transactions = NewTransactionEngine(store, NewPriceModel(s.cfg.Pricing),
		rng.ForSubsystem(SubsystemTransactions), rng.ForSubsystem(SubsystemIDs), s.cfg.Run.PartialFill)
	s.events = NewEventEngine(store, s.cfg, rng.ForSubsystem(SubsystemEvents), s.recorder)
	s.tick = 0
	s.state = StateIdle
	s.totals = newRunTotals()
	s.stopRequested.Store(false)
}

// Config returns the run's configuration snapshot.
func (s *Simulator) Config() Config { return s.cfg }

// Run runs tick_count ticks, or until ctx is cancelled or Stop is called when
// tick_count is 0.
func (s *Simulator) Run(ctx context.Context) error {
	if s.cfg.Run.TickCount > 0 {
		return s.RunTicks(ctx, s.cfg.Run.TickCount)
	}
	return s.RunTicks(ctx, -1)
}

// RunTicks advances n ticks (n < 0 = unbounded). Cancellation and Stop take
// effect between ticks, never mid-tick.
func (s *Simulator) RunTicks(ctx context.Context, n int64) error {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return ErrSimulationRunning
	}
	s.state = StateRunning
	s.mu.Unlock()
	s.stopRequested.Store(false)

	startTick := s.CurrentTick()
	logrus.Infof("[tick %07d] Simulation started (ticks=%d)", startTick, n)
	for i := int64(0); n < 0 || i < n; i++ {
		if ctx.Err() != nil || s.stopRequested.Load() {
			break
		}
		s.Step()
	}

	s.mu.Lock()
	s.state = StateStopped
	tick := s.tick
	s.mu.Unlock()
	logrus.Infof("[tick %07d] Simulation stopped after %d ticks", tick, tick-startTick)
	return nil
}

// Stop asks a running simulation to halt after the current tick.
func (s *Simulator) Stop() {
	s.stopRequested.Store(true)
}

// Reset discards all state and regenerates the population from the seed.
// It is refused while a run is active.
func (s *Simulator) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateRunning {
		return ErrSimulationRunning
	}
	logrus.Info("Resetting simulation state")
	return s.reset()
}

// Step processes exactly one tick and returns its statistics.
func (s *Simulator) Step() TickStats {
	start := time.Now()

	s.mu.RLock()
	store, txEngine, evEngine := s.store, s.transactions, s.events
	tick := s.tick + 1
	selRNG := s.selection
	s.mu.RUnlock()

	stats := newTickStats(tick)

	store.lock()
	func() {
		defer store.unlock()
		s.trade(store, txEngine, selRNG, &stats)
		stats.addEvents(evEngine.AdvanceInflation(tick))
		if tick%s.cfg.Run.EventInterval == 0 {
			stats.addEvents(evEngine.RunRules(tick))
		}
		stats.TotalBudget = store.TotalBudget()
		stats.ActiveProducts = store.ActiveProductCount()
	}()
	stats.Duration = time.Since(start)

	s.mu.Lock()
	s.tick = tick
	s.totals.add(stats)
	s.mu.Unlock()

	s.recorder.RecordTick(stats)
	logrus.Debugf("[tick %07d] attempts=%d successes=%d volume=%.2f events=%d",
		tick, stats.Attempts, stats.Successes, stats.Volume, stats.EventCount())
	return stats
}

// trade lets each selected company make one purchase attempt.
func (s *Simulator) trade(store *EntityStore, txEngine *TransactionEngine, selRNG *rand.Rand, stats *TickStats) {
	tick := stats.Tick
	for _, c := range store.Companies() {
		if selRNG.Float64() >= s.cfg.Run.SelectionProbability {
			continue
		}
		stats.Selected++
		pid := s.chooseProduct(selRNG, store, c)
		qty := uniformInt(selRNG, s.cfg.Run.PurchaseQtyMin, s.cfg.Run.PurchaseQtyMax)
		tx := s.purchase(txEngine, tick, c, pid, qty)
		stats.addTransaction(tx)
		s.recorder.RecordTransaction(tx)
	}
}

// purchase runs one attempt; a panic anywhere inside becomes an internal_error record.
func (s *Simulator) purchase(engine *TransactionEngine, tick int64, c *Company, pid ProductID, qty int) (tx Transaction) {
	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[tick %07d] purchase by %s of %s (qty=%d) failed: %v", tick, c.ID, pid, qty, r)
			tx = engine.InternalErrorTransaction(tick, c, pid, qty, r)
		}
	}()
	return engine.AttemptPurchase(tick, c, pid, qty)
}

// chooseProduct picks the product a company wants this tick, favoring its
// preferred categories. by_preferred_category companies always shop their
// categories when one of them has an active product. With nothing active the
// pick falls back to any product, and the attempt fails with no_supplier.
func (s *Simulator) chooseProduct(rng *rand.Rand, store *EntityStore, c *Company) ProductID {
	active := store.ActiveProducts()
	if len(active) == 0 {
		all := store.Products()
		return all[rng.Intn(len(all))].ID
	}
	var preferred []*Product
	for _, p := range active {
		if c.Prefers(p.Category) {
			preferred = append(preferred, p)
		}
	}
	bias := s.cfg.Run.PreferredCategoryBias
	if c.Strategy == StrategyByPreferredCategory {
		bias = 1
	}
	if len(preferred) > 0 && rng.Float64() < bias {
		return preferred[rng.Intn(len(preferred))].ID
	}
	return active[rng.Intn(len(active))].ID
}

// === Snapshot queries ===

// State returns the lifecycle state.
func (s *Simulator) State() SimState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// CurrentTick returns the last completed tick (0 before the first).
func (s *Simulator) CurrentTick() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tick
}

// Store returns the current entity store. It changes on Reset.
func (s *Simulator) Store() *EntityStore {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store
}

// ListProducts returns copies of the products, optionally only active ones.
func (s *Simulator) ListProducts(activeOnly bool) []Product {
	return s.Store().ListProducts(activeOnly)
}

// ListSuppliers returns copies of the suppliers.
func (s *Simulator) ListSuppliers() []Supplier {
	return s.Store().ListSuppliers()
}

// ListCompanies returns copies of the companies.
func (s *Simulator) ListCompanies() []Company {
	return s.Store().ListCompanies()
}

// InflationTimers returns a copy of the active inflation timers.
func (s *Simulator) InflationTimers() map[ProductID]InflationTimer {
	s.mu.RLock()
	store, ev := s.store, s.events
	s.mu.RUnlock()
	store.mu.RLock()
	defer store.mu.RUnlock()
	return ev.Timers()
}

// RunSummary returns the totals of the current run.
func (s *Simulator) RunSummary() RunSummary {
	s.mu.RLock()
	store, ev := s.store, s.events
	sum := RunSummary{
		State:        s.state,
		Tick:         s.tick,
		TickCount:    s.cfg.Run.TickCount,
		Transactions: s.totals.transactions,
		Successes:    s.totals.successes,
		Failures:     make(map[FailureReason]int, len(s.totals.failures)),
		Volume:       s.totals.volume,
		UnitsSold:    s.totals.unitsSold,
		Events:       make(map[EventKind]int, len(s.totals.events)),
		EventErrors:  s.totals.eventErrors,
	}
	for r, n := range s.totals.failures {
		sum.Failures[r] = n
	}
	for k, n := range s.totals.events {
		sum.Events[k] = n
	}
	s.mu.RUnlock()

	if sum.Transactions > 0 {
		sum.SuccessRate = float64(sum.Successes) / float64(sum.Transactions)
	}

	store.mu.RLock()
	defer store.mu.RUnlock()
	sum.TotalBudget = store.TotalBudget()
	for _, id := range store.companyIDs {
		sum.InitialBudget += store.companies[id].InitialBudget
	}
	sum.InitialBudget = RoundMoney(sum.InitialBudget)
	sum.Products = len(store.products)
	sum.ActiveProducts = store.ActiveProductCount()
	sum.Suppliers = len(store.suppliers)
	sum.Companies = len(store.companies)
	sum.InflatedProducts = len(ev.timers)
	return sum
}

// safeRecorder keeps a misbehaving recorder from aborting a tick.
type safeRecorder struct {
	inner Recorder
}

func (r safeRecorder) RecordTransaction(tx Transaction) {
	defer recoverRecorder("transaction")
	r.inner.RecordTransaction(tx)
}

func (r safeRecorder) RecordEvent(ev EventRecord) {
	defer recoverRecorder("event")
	r.inner.RecordEvent(ev)
}

func (r safeRecorder) RecordTick(stats TickStats) {
	defer recoverRecorder("tick")
	r.inner.RecordTick(stats)
}

func recoverRecorder(what string) {
	if r := recover(); r != nil {
		logrus.Warnf("recorder failed on %s record: %v", what, r)
	}
}
