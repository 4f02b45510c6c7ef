package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/spellcore/internal/journal"
	"github.com/udisondev/spellcore/internal/testutil"
)

func TestJournalRepository_InsertBatch(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres test in -short mode")
	}
	pool := testutil.SetupTestDB(t)
	repo := NewJournalRepository(pool)
	ctx := context.Background()

	cast := uuid.New()
	entries := []journal.Entry{
		{At: time.Second, Kind: journal.KindCommit, CastID: cast, Skill: "cleave", Source: 1, Catalog: "f00d"},
		{At: time.Second, Kind: journal.KindDamage, CastID: cast, Source: 1, Target: 2, Amount: 30, Catalog: "f00d"},
		{At: 3 * time.Second, Kind: journal.KindBuffAdded, Source: 1, Target: 2, Buff: "ignite", Catalog: "f00d"},
	}
	require.NoError(t, repo.InsertBatch(ctx, entries))
	require.NoError(t, repo.InsertBatch(ctx, nil))

	n, err := repo.CountByCast(ctx, cast)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := repo.ListByCast(ctx, cast)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, entries[0], rows[0])
	assert.Equal(t, entries[1], rows[1])

	var total int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM combat_journal WHERE cast_id IS NULL`).Scan(&total))
	assert.Equal(t, 1, total)
}

func TestJournalRepository_AsJournalSink(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres test in -short mode")
	}
	pool := testutil.SetupTestDB(t)
	repo := NewJournalRepository(pool)

	j := journal.New(repo, journal.Options{BatchSize: 2, FlushInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	cast := uuid.New()
	bus := testutil.NewFixture(t).Bus
	j.Attach(bus)
	for range 3 {
		publishDamage(bus, cast)
	}
	j.Handoff()

	require.Eventually(t, func() bool { return j.Written() == 3 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	n, err := repo.CountByCast(context.Background(), cast)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
