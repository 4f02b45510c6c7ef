// Package journal records combat events and writes them in batches off the tick goroutine.
package journal

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/spellcore/internal/model"
)

// Kind names the event a row was built from.
type Kind string

const (
	KindDamage      Kind = "damage"
	KindHeal        Kind = "heal"
	KindDeath       Kind = "death"
	KindBuffAdded   Kind = "buff_added"
	KindBuffRemoved Kind = "buff_removed"
	KindCommit      Kind = "cast_committed"
)

// Entry is one journal row. Fields that do not apply to Kind are zero.
type Entry struct {
	At      time.Duration // simulation time
	Kind    Kind
	CastID  uuid.UUID
	Skill   string
	Source  model.EntityID
	Target  model.EntityID
	Amount  int32
	Buff    string
	Catalog string // catalog fingerprint the run was started with
}

// Sink persists journal rows.
type Sink interface {
	InsertBatch(ctx context.Context, entries []Entry) error
}

// LogSink writes rows to slog at debug level.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) InsertBatch(ctx context.Context, entries []Entry) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range entries {
		logger.DebugContext(ctx, "journal",
			"at", e.At,
			"kind", e.Kind,
			"cast", e.CastID,
			"skill", e.Skill,
			"source", e.Source,
			"target", e.Target,
			"amount", e.Amount,
			"buff", e.Buff)
	}
	return nil
}
