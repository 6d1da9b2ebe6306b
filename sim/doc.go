// Package sim provides the tick-driven engine of the market simulation.
//
// # Reading Guide
//
// Start with these files to understand the kernel:
//   - types.go, store.go: Products, Suppliers, Companies and the EntityStore that owns them
//   - transaction.go: purchase resolution (candidates → strategy → budget check → mutation)
//   - events.go, inflation.go: the economic event rules and inflation decay
//   - simulator.go: the tick loop and the idle → running → stopped lifecycle
//
// # Architecture
//
// The sim package holds the engines and the data they mutate; collaborators
// live in sub-packages:
//   - sim/trace/: in-memory and structured-log recorders, run summaries
//   - sim/ledger/: asynchronous SQLite ledger of every recorded fact
//   - sim/api/: read-only HTTP snapshots and stop/reset control
//
// # Key Interfaces
//
//   - Recorder: receives every transaction, event mutation and tick summary
//   - EventRule: decides the mutations of one event type for a tick
//
// Strategies are a closed set dispatched by SelectSupplier.
//
// All randomness flows through PartitionedRNG, so a seed reproduces a run.
package sim
