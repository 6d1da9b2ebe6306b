package sim

// Recorder receives every fact the simulation produces: one record per
// purchase attempt, one per individual event mutation, one per tick.
// Implementations must not block tick progress and must not panic;
// failures are theirs to log.
type Recorder interface {
	RecordTransaction(tx Transaction)
	RecordEvent(ev EventRecord)
	RecordTick(stats TickStats)
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) RecordTransaction(Transaction) {}
func (NopRecorder) RecordEvent(EventRecord)       {}
func (NopRecorder) RecordTick(TickStats)          {}

// MultiRecorder fans each record out to several recorders in order.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordTransaction(tx Transaction) {
	for _, r := range m {
		r.RecordTransaction(tx)
	}
}

func (m MultiRecorder) RecordEvent(ev EventRecord) {
	for _, r := range m {
		r.RecordEvent(ev)
	}
}

func (m MultiRecorder) RecordTick(stats TickStats) {
	for _, r := range m {
		r.RecordTick(stats)
	}
}
