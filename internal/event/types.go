package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/spellcore/internal/model"
)

// UnitDamaged is published after damage lands on a unit.
type UnitDamaged struct {
	CastID uuid.UUID
	Source model.EntityID
	Target model.EntityID
	Amount int32
	Killed bool
	At     time.Duration
}

// UnitHealed is published after a heal restores health.
type UnitHealed struct {
	CastID uuid.UUID
	Source model.EntityID
	Target model.EntityID
	Amount int32
	At     time.Duration
}

// UnitDied is published once when a unit's health reaches zero.
type UnitDied struct {
	Unit   model.EntityID
	Killer model.EntityID
	At     time.Duration
}

// BuffAdded is published when a buff enters a ledger.
type BuffAdded struct {
	Target   model.EntityID
	Caster   model.EntityID
	Buff     string
	Duration time.Duration
	At       time.Duration
}

// BuffUpdated is published for every buff that survives a ledger update.
type BuffUpdated struct {
	Target    model.EntityID
	Buff      string
	Remaining time.Duration
	At        time.Duration
}

// BuffRemoved is published when a buff leaves a ledger (expiry, replacement, clear or dispel).
type BuffRemoved struct {
	Target model.EntityID
	Caster model.EntityID
	Buff   string
	At     time.Duration
}

// CastCommitted is published the first time a cast reaches a node that counts as cast.
type CastCommitted struct {
	CastID uuid.UUID
	Caster model.EntityID
	Skill  string
	At     time.Duration
}
