package journal

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/udisondev/spellcore/internal/event"
)

// Options tune batching. Zero values take defaults.
type Options struct {
	BatchSize     int
	QueueSize     int // ticks of rows waiting for the writer
	FlushInterval time.Duration
	Catalog       string
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 128
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.FlushInterval <= 0 {
		o.FlushInterval = time.Second
	}
	return o
}

// Journal collects rows on the tick goroutine and hands them to a writer goroutine.
//
// Record* and Handoff are called from the tick goroutine only. Run and Flush belong
// to the writer goroutine.
type Journal struct {
	sink Sink
	opts Options

	pending []Entry
	queue   chan []Entry
	subs    []event.Subscription

	batch   []Entry
	written atomic.Int64
	dropped atomic.Int64
}

// New creates a journal writing through sink.
func New(sink Sink, opts Options) *Journal {
	opts = opts.withDefaults()
	return &Journal{
		sink:  sink,
		opts:  opts,
		queue: make(chan []Entry, opts.QueueSize),
		batch: make([]Entry, 0, opts.BatchSize),
	}
}

// Attach subscribes the journal to the combat events on bus.
func (j *Journal) Attach(bus *event.Bus) {
	j.subs = append(j.subs,
		event.Subscribe(bus, func(e event.UnitDamaged) {
			j.record(Entry{At: e.At, Kind: KindDamage, CastID: e.CastID, Source: e.Source, Target: e.Target, Amount: e.Amount})
		}),
		event.Subscribe(bus, func(e event.UnitHealed) {
			j.record(Entry{At: e.At, Kind: KindHeal, CastID: e.CastID, Source: e.Source, Target: e.Target, Amount: e.Amount})
		}),
		event.Subscribe(bus, func(e event.UnitDied) {
			j.record(Entry{At: e.At, Kind: KindDeath, Source: e.Killer, Target: e.Unit})
		}),
		event.Subscribe(bus, func(e event.BuffAdded) {
			j.record(Entry{At: e.At, Kind: KindBuffAdded, Source: e.Caster, Target: e.Target, Buff: e.Buff})
		}),
		event.Subscribe(bus, func(e event.BuffRemoved) {
			j.record(Entry{At: e.At, Kind: KindBuffRemoved, Source: e.Caster, Target: e.Target, Buff: e.Buff})
		}),
		event.Subscribe(bus, func(e event.CastCommitted) {
			j.record(Entry{At: e.At, Kind: KindCommit, CastID: e.CastID, Skill: e.Skill, Source: e.Caster})
		}),
	)
}

// Detach removes the bus subscriptions.
func (j *Journal) Detach() {
	for _, s := range j.subs {
		s.Unsubscribe()
	}
	j.subs = nil
}

func (j *Journal) record(e Entry) {
	e.Catalog = j.opts.Catalog
	j.pending = append(j.pending, e)
}

// Pending returns the number of rows recorded since the last Handoff.
func (j *Journal) Pending() int { return len(j.pending) }

// Handoff passes the rows recorded this tick to the writer. It never blocks:
// when the queue is full the rows are dropped and counted.
func (j *Journal) Handoff() {
	if len(j.pending) == 0 {
		return
	}
	rows := j.pending
	j.pending = nil
	select {
	case j.queue <- rows:
	default:
		n := j.dropped.Add(int64(len(rows)))
		slog.Warn("journal queue full, rows dropped", "rows", len(rows), "droppedTotal", n)
	}
}

// Written returns the number of rows the sink accepted.
func (j *Journal) Written() int64 { return j.written.Load() }

// Dropped returns the number of rows lost to a full queue or a failed write.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// Run drains the queue until ctx is done, writing full batches at once and partial
// batches every flush interval. Rows still queued at shutdown are written before it returns.
func (j *Journal) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return j.shutdown()
		case rows := <-j.queue:
			j.add(ctx, rows)
		case <-ticker.C:
			if err := j.Flush(ctx); err != nil {
				slog.Error("journal flush failed", "error", err)
			}
		}
	}
}

func (j *Journal) add(ctx context.Context, rows []Entry) {
	for len(rows) > 0 {
		n := min(len(rows), j.opts.BatchSize-len(j.batch))
		j.batch = append(j.batch, rows[:n]...)
		rows = rows[n:]
		if len(j.batch) >= j.opts.BatchSize {
			if err := j.Flush(ctx); err != nil {
				slog.Error("journal flush failed", "error", err)
			}
		}
	}
}

// Flush writes the accumulated batch. A failed batch is dropped and counted.
func (j *Journal) Flush(ctx context.Context) error {
	if len(j.batch) == 0 {
		return nil
	}
	rows := j.batch
	j.batch = make([]Entry, 0, j.opts.BatchSize)

	if err := j.sink.InsertBatch(ctx, rows); err != nil {
		j.dropped.Add(int64(len(rows)))
		return fmt.Errorf("writing %d journal rows: %w", len(rows), err)
	}
	j.written.Add(int64(len(rows)))
	return nil
}

func (j *Journal) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case rows := <-j.queue:
			j.add(ctx, rows)
		default:
			if err := j.Flush(ctx); err != nil {
				return err
			}
			slog.Info("journal stopped", "written", j.written.Load(), "dropped", j.dropped.Load())
			return nil
		}
	}
}
