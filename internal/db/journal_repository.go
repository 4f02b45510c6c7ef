package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/spellcore/internal/journal"
	"github.com/udisondev/spellcore/internal/model"
)

// JournalRepository stores combat journal rows. Implements journal.Sink.
type JournalRepository struct {
	pool *pgxpool.Pool
}

// NewJournalRepository creates a repository on pool.
func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

// InsertBatch writes entries in one transaction using a pgx batch.
func (r *JournalRepository) InsertBatch(ctx context.Context, entries []journal.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin journal transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO combat_journal
			 (sim_time_ms, kind, cast_id, skill, source_id, target_id, amount, buff, catalog)
			 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			e.At.Milliseconds(), string(e.Kind), nullUUID(e.CastID), e.Skill,
			int64(e.Source), int64(e.Target), e.Amount, e.Buff, e.Catalog,
		)
	}
	br := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := br.Exec(); err != nil {
			br.Close() //nolint:errcheck
			return fmt.Errorf("insert journal batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close journal batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit journal batch: %w", err)
	}
	return nil
}

// CountByCast returns the number of rows recorded for one cast.
func (r *JournalRepository) CountByCast(ctx context.Context, castID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM combat_journal WHERE cast_id = $1`, castID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting journal rows for cast %s: %w", castID, err)
	}
	return n, nil
}

// ListByCast returns the rows of one cast in simulation order.
func (r *JournalRepository) ListByCast(ctx context.Context, castID uuid.UUID) ([]journal.Entry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT sim_time_ms, kind, skill, source_id, target_id, amount, buff, catalog
		 FROM combat_journal WHERE cast_id = $1 ORDER BY sim_time_ms, id`, castID)
	if err != nil {
		return nil, fmt.Errorf("querying journal rows for cast %s: %w", castID, err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var (
			e              journal.Entry
			ms             int64
			kind           string
			source, target int64
		)
		if err := rows.Scan(&ms, &kind, &e.Skill, &source, &target, &e.Amount, &e.Buff, &e.Catalog); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		e.At = time.Duration(ms) * time.Millisecond
		e.Kind = journal.Kind(kind)
		e.CastID = castID
		e.Source = model.EntityID(source)
		e.Target = model.EntityID(target)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal rows: %w", err)
	}
	return out, nil
}

func nullUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
