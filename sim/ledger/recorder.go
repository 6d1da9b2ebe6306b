package ledger

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/market-sim/sim"
)

// DefaultBufferSize is the number of records the recorder queues before it
// starts dropping.
const DefaultBufferSize = 4096

const maxBatch = 512

// record is one queued fact; exactly one field is set.
type record struct {
	tx   *TransactionRow
	ev   *EventRow
	tick *TickRow
}

// Recorder is a sim.Recorder that writes to the ledger from its own
// goroutine. Recording never blocks a tick: when the queue is full the
// record is dropped and counted.
type Recorder struct {
	db    *DB
	queue chan record
	done  chan struct{}

	closeOnce sync.Once
	dropped   atomic.Int64
	written   atomic.Int64
	failed    atomic.Int64
}

// NewRecorder starts the writer goroutine. Call Close to flush and stop it.
func NewRecorder(db *DB, bufferSize int) *Recorder {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	r := &Recorder{
		db:    db,
		queue: make(chan record, bufferSize),
		done:  make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) RecordTransaction(tx sim.Transaction) {
	row := transactionRow(tx)
	r.enqueue(record{tx: &row})
}

func (r *Recorder) RecordEvent(ev sim.EventRecord) {
	row := eventRow(ev)
	r.enqueue(record{ev: &row})
}

func (r *Recorder) RecordTick(stats sim.TickStats) {
	row := tickRow(stats)
	r.enqueue(record{tick: &row})
}

func (r *Recorder) enqueue(rec record) {
	select {
	case r.queue <- rec:
	default:
		if n := r.dropped.Add(1); n == 1 || n%1000 == 0 {
			logrus.Warnf("ledger queue full, %d records dropped so far", n)
		}
	}
}

// run drains the queue, grouping whatever is immediately available into one
// SQL transaction.
func (r *Recorder) run() {
	defer close(r.done)
	b := &batch{}
	for rec := range r.queue {
		b.add(rec)
	drain:
		for b.len() < maxBatch {
			select {
			case next, ok := <-r.queue:
				if !ok {
					break drain
				}
				b.add(next)
			default:
				break drain
			}
		}
		r.flush(b)
	}
}

func (b *batch) add(rec record) {
	switch {
	case rec.tx != nil:
		b.transactions = append(b.transactions, *rec.tx)
	case rec.ev != nil:
		b.events = append(b.events, *rec.ev)
	case rec.tick != nil:
		b.ticks = append(b.ticks, *rec.tick)
	}
}

func (r *Recorder) flush(b *batch) {
	n := b.len()
	if err := r.db.saveBatch(b); err != nil {
		r.failed.Add(int64(n))
		logrus.Errorf("ledger write of %d records failed: %v", n, err)
	} else {
		r.written.Add(int64(n))
	}
	b.reset()
}

// Close stops accepting records, writes everything queued and waits for the
// writer to finish. It does not close the DB. Recording after Close panics.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		close(r.queue)
	})
	<-r.done
}

// Stats reports how many records were written, dropped and lost to write errors.
func (r *Recorder) Stats() (written, dropped, failed int64) {
	return r.written.Load(), r.dropped.Load(), r.failed.Load()
}
