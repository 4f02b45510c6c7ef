package buff

import (
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/spellcore/internal/model"
)

// Buff is one active (or about to be active) status effect instance.
type Buff struct {
	def    *Definition
	caster model.EntityID
	castID uuid.UUID
	effect Effect

	target   model.EntityID
	owner    Owner
	duration time.Duration
	elapsed  time.Duration

	// tickTimer accumulates time toward the next periodic tick.
	tickTimer time.Duration
	ticks     int
	active    bool
}

// New creates an inactive buff from def, cast by caster (0 for sourceless buffs).
func New(def *Definition, caster model.EntityID) *Buff {
	b := &Buff{
		def:    def,
		caster: caster,
	}
	if def != nil {
		b.duration = def.Duration
		b.effect = def.newEffect()
	}
	return b
}

// WithCast tags the buff with the cast that applied it.
func (b *Buff) WithCast(id uuid.UUID) *Buff {
	b.castID = id
	return b
}

// Def returns the buff definition.
func (b *Buff) Def() *Definition { return b.def }

// Name returns the buff id string.
func (b *Buff) Name() string {
	if b.def == nil {
		return ""
	}
	return b.def.Name
}

// Caster returns the entity that applied the buff (0 when none).
func (b *Buff) Caster() model.EntityID { return b.caster }

// CastID returns the cast that applied the buff (zero when applied outside a cast).
func (b *Buff) CastID() uuid.UUID { return b.castID }

// Target returns the entity carrying the buff (0 until added to a ledger).
func (b *Buff) Target() model.EntityID { return b.target }

// Owner returns the owner that applied the buff through a Manager.
func (b *Buff) Owner() Owner { return b.owner }

// Effect returns the effect behind the buff.
func (b *Buff) Effect() Effect { return b.effect }

// Active reports whether the buff currently sits in a ledger.
func (b *Buff) Active() bool { return b.active }

// Duration returns the total lifetime, including any phase compensation.
func (b *Buff) Duration() time.Duration { return b.duration }

// Elapsed returns how long the buff has been active.
func (b *Buff) Elapsed() time.Duration { return b.elapsed }

// Remaining returns the time left, Infinite for permanent buffs.
func (b *Buff) Remaining() time.Duration {
	if b.duration == Infinite {
		return Infinite
	}
	return max(0, b.duration-b.elapsed)
}

// Periodic reports whether the buff ticks.
func (b *Buff) Periodic() bool {
	return b.def != nil && b.def.Periodic()
}

// TickInterval returns the period between ticks (zero for non-periodic buffs).
func (b *Buff) TickInterval() time.Duration {
	if b.def == nil {
		return 0
	}
	return b.def.TickInterval
}

// TickRemainder returns the time accumulated toward the next tick.
func (b *Buff) TickRemainder() time.Duration { return b.tickTimer }

// Ticks returns how many times the buff has ticked.
func (b *Buff) Ticks() int { return b.ticks }

// inheritPhase transplants a donor's tick phase. Unless the buff ticks on apply, the
// lifetime grows by the part of the interval the donor had not yet covered.
func (b *Buff) inheritPhase(remainder time.Duration) {
	b.tickTimer = remainder
	if b.def.TickOnApply || b.duration == Infinite {
		return
	}
	b.duration += b.def.TickInterval - remainder
}

// advance moves the buff forward by dt and calls tick once per whole interval consumed.
// Time past the end of the buff's lifetime is not counted toward ticks.
// Returns true once the buff has expired.
func (b *Buff) advance(dt time.Duration, tick func()) bool {
	if dt < 0 {
		dt = 0
	}
	live := dt
	if b.duration != Infinite {
		live = min(dt, max(0, b.duration-b.elapsed))
		b.elapsed += live
	} else if b.elapsed < Infinite-dt {
		b.elapsed += dt
	}

	if interval := b.TickInterval(); interval > 0 {
		b.tickTimer += live
		for b.tickTimer >= interval {
			b.tickTimer -= interval
			b.ticks++
			tick()
			if !b.active {
				return false
			}
		}
	}
	return b.duration != Infinite && b.elapsed >= b.duration
}
