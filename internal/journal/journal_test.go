package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/spellcore/internal/event"
)

type memorySink struct {
	mu      sync.Mutex
	batches [][]Entry
	err     error
}

func (s *memorySink) InsertBatch(_ context.Context, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.batches = append(s.batches, append([]Entry(nil), entries...))
	return nil
}

func (s *memorySink) rows() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, b := range s.batches {
		out = append(out, b...)
	}
	return out
}

func TestJournal_RecordsBusEvents(t *testing.T) {
	bus := event.NewBus()
	j := New(&memorySink{}, Options{Catalog: "abc"})
	j.Attach(bus)

	cast := uuid.New()
	event.Publish(bus, event.CastCommitted{CastID: cast, Caster: 1, Skill: "cleave", At: time.Second})
	event.Publish(bus, event.UnitDamaged{CastID: cast, Source: 1, Target: 2, Amount: 30, At: time.Second})
	event.Publish(bus, event.UnitHealed{Source: 3, Target: 2, Amount: 5, At: 2 * time.Second})
	event.Publish(bus, event.BuffAdded{Caster: 3, Target: 2, Buff: "regrowth"})
	event.Publish(bus, event.BuffRemoved{Caster: 3, Target: 2, Buff: "regrowth"})
	event.Publish(bus, event.UnitDied{Unit: 2, Killer: 1})
	event.Publish(bus, event.BuffUpdated{Target: 2, Buff: "regrowth"})

	require.Equal(t, 6, j.Pending())
	kinds := make([]Kind, 0, len(j.pending))
	for _, e := range j.pending {
		kinds = append(kinds, e.Kind)
		assert.Equal(t, "abc", e.Catalog)
	}
	assert.Equal(t, []Kind{KindCommit, KindDamage, KindHeal, KindBuffAdded, KindBuffRemoved, KindDeath}, kinds)
	assert.Equal(t, Entry{At: time.Second, Kind: KindDamage, CastID: cast, Source: 1, Target: 2, Amount: 30, Catalog: "abc"}, j.pending[1])

	j.Detach()
	event.Publish(bus, event.UnitDamaged{Source: 1, Target: 2, Amount: 1})
	assert.Equal(t, 6, j.Pending())
	assert.Zero(t, event.Count[event.UnitDamaged](bus))
}

func TestJournal_RunWritesBatches(t *testing.T) {
	sink := &memorySink{}
	j := New(sink, Options{BatchSize: 2, FlushInterval: time.Hour})

	for i := range 5 {
		j.record(Entry{Kind: KindDamage, Amount: int32(i)})
	}
	j.Handoff()
	assert.Zero(t, j.Pending())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	require.Eventually(t, func() bool { return j.Written() == 4 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(5), j.Written())

	rows := sink.rows()
	require.Len(t, rows, 5)
	for i, r := range rows {
		assert.Equal(t, int32(i), r.Amount)
	}
	sink.mu.Lock()
	assert.Len(t, sink.batches, 3)
	sink.mu.Unlock()
}

func TestJournal_FlushIntervalWritesPartialBatch(t *testing.T) {
	sink := &memorySink{}
	j := New(sink, Options{BatchSize: 100, FlushInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = j.Run(ctx) }()

	j.record(Entry{Kind: KindHeal})
	j.Handoff()

	require.Eventually(t, func() bool { return j.Written() == 1 }, time.Second, 5*time.Millisecond)
}

func TestJournal_HandoffNeverBlocks(t *testing.T) {
	j := New(&memorySink{}, Options{BatchSize: 1, QueueSize: 1})

	j.record(Entry{Kind: KindDamage})
	j.Handoff()
	j.record(Entry{Kind: KindDamage})
	j.record(Entry{Kind: KindDamage})
	j.Handoff()

	assert.Equal(t, int64(2), j.Dropped())
	assert.Zero(t, j.Pending())
}

func TestJournal_FailedWriteIsCounted(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}
	j := New(sink, Options{BatchSize: 10})

	j.add(context.Background(), []Entry{{Kind: KindDeath}, {Kind: KindDeath}})
	err := j.Flush(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "db down")
	assert.Equal(t, int64(2), j.Dropped())
	assert.Zero(t, j.Written())

	assert.NoError(t, j.Flush(context.Background()), "failed batch is not retried")
}

func TestLogSink(t *testing.T) {
	assert.NoError(t, LogSink{}.InsertBatch(context.Background(), []Entry{{Kind: KindHeal, Amount: 3}}))
}
