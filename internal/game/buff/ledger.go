package buff

import (
	"log/slog"
	"slices"
	"time"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/model"
)

// Ledger holds the active buffs of one target.
//
// Not safe for concurrent use; the engine drives it from a single goroutine.
type Ledger struct {
	target model.EntityID
	svc    *Services
	buffs  []*Buff

	// adding holds buffs whose AddBuff is still removing the instances they replace.
	adding []*Buff

	// removed is called after a buff leaves the ledger by any path.
	removed func(*Buff)
}

// NewLedger creates an empty ledger for target.
func NewLedger(target model.EntityID, svc *Services) *Ledger {
	if svc == nil {
		svc = &Services{}
	}
	return &Ledger{target: target, svc: svc}
}

// Target returns the entity the ledger belongs to.
func (l *Ledger) Target() model.EntityID { return l.target }

// Len returns the number of active buffs.
func (l *Ledger) Len() int { return len(l.buffs) }

// Buffs returns a copy of the active buffs in insertion order.
func (l *Ledger) Buffs() []*Buff { return slices.Clone(l.buffs) }

// Has reports whether any buff of def is active.
func (l *Ledger) Has(def DefID) bool {
	return slices.ContainsFunc(l.buffs, func(b *Buff) bool { return b.def.ID == def })
}

// Find returns the first active buff of def cast by caster. Caster 0 matches any caster.
func (l *Ledger) Find(def DefID, caster model.EntityID) (*Buff, bool) {
	for _, b := range l.buffs {
		if b.def.ID == def && (caster == 0 || b.caster == caster) {
			return b, true
		}
	}
	return nil, false
}

func (l *Ledger) scope(b *Buff) *Scope {
	return &Scope{Buff: b, Ledger: l, Services: l.svc}
}

func (l *Ledger) targetDead() bool {
	return l.svc.Vitals != nil && l.svc.Vitals.IsDead(l.target)
}

// replaces reports whether b evicts other under b's uniqueness mode.
func replaces(b, other *Buff) bool {
	if other.def.ID != b.def.ID {
		return false
	}
	switch b.def.Unique {
	case UniqueGlobal:
		return true
	case UniquePerCaster:
		return other.caster == b.caster
	default:
		return false
	}
}

// donor returns the active buff that b replaces under its uniqueness mode.
func (l *Ledger) donor(b *Buff) *Buff {
	for _, other := range l.buffs {
		if replaces(b, other) {
			return other
		}
	}
	return nil
}

// AddBuff activates b on the ledger's target.
//
// When b's definition is unique, the buff it replaces is removed first and, if both are
// periodic with the same interval, b continues the old tick phase. Unless b ticks on apply,
// its lifetime grows by the rest of the inherited interval. Returns false if b was rejected.
func (l *Ledger) AddBuff(b *Buff) bool {
	if b == nil || b.def == nil {
		slog.Warn("buff without definition rejected", "target", l.target)
		return false
	}
	if b.def.ID == 0 {
		slog.Warn("buff with undefined definition rejected", "buff", b.Name(), "target", l.target)
		return false
	}
	if b.active {
		slog.Warn("buff already active", "buff", b.Name(), "target", b.target)
		return false
	}
	if l.targetDead() {
		return false
	}

	var (
		inherited    time.Duration
		hasInherited bool
	)
	for _, other := range l.adding {
		if replaces(other, b) {
			slog.Warn("re-entrant buff add rejected", "buff", b.Name(), "target", l.target, "caster", b.caster)
			return false
		}
	}

	// Removal hooks and observers run synchronously and may try to add the same buff
	// again; those adds are rejected above until b is in place.
	l.adding = append(l.adding, b)
	for donor := l.donor(b); donor != nil; donor = l.donor(b) {
		if donor.Periodic() && b.Periodic() && absDuration(donor.TickInterval()-b.TickInterval()) < phaseEpsilon {
			inherited, hasInherited = donor.tickTimer, true
		}
		l.RemoveBuff(donor)
	}
	l.adding = slices.DeleteFunc(l.adding, func(x *Buff) bool { return x == b })
	if l.targetDead() {
		return false
	}

	b.target = l.target
	b.active = true
	b.elapsed = 0
	b.tickTimer = 0
	if hasInherited {
		b.inheritPhase(inherited)
	}
	l.buffs = append(l.buffs, b)

	s := l.scope(b)
	b.effect.OnApply(s)
	event.Publish(l.svc.Bus, event.BuffAdded{
		Target:   l.target,
		Caster:   b.caster,
		Buff:     b.Name(),
		Duration: b.duration,
		At:       l.svc.now(),
	})
	if b.def.TickOnApply && b.active {
		b.ticks++
		b.effect.OnTick(s)
	}
	return true
}

// RemoveBuff deactivates b. Returns false if b is not in this ledger.
func (l *Ledger) RemoveBuff(b *Buff) bool {
	i := slices.Index(l.buffs, b)
	if i < 0 {
		return false
	}
	l.buffs = slices.Delete(l.buffs, i, i+1)
	b.active = false

	b.effect.OnRemove(l.scope(b))
	event.Publish(l.svc.Bus, event.BuffRemoved{
		Target: l.target,
		Caster: b.caster,
		Buff:   b.Name(),
		At:     l.svc.now(),
	})
	if l.removed != nil {
		l.removed(b)
	}
	return true
}

// Dispel removes every buff of def cast by caster (0 matches any caster).
func (l *Ledger) Dispel(def DefID, caster model.EntityID) int {
	n := 0
	for _, b := range l.Buffs() {
		if b.def.ID == def && (caster == 0 || b.caster == caster) && l.RemoveBuff(b) {
			n++
		}
	}
	return n
}

// Clear removes every buff, newest first.
func (l *Ledger) Clear() {
	for len(l.buffs) > 0 {
		l.RemoveBuff(l.buffs[len(l.buffs)-1])
	}
}

// Update advances every buff by dt. Expired buffs are removed; a dead target loses all of them.
func (l *Ledger) Update(dt time.Duration) {
	if len(l.buffs) == 0 {
		return
	}
	if l.targetDead() {
		l.Clear()
		return
	}

	snapshot := l.Buffs()
	for i := len(snapshot) - 1; i >= 0; i-- {
		b := snapshot[i]
		if !b.active {
			continue
		}
		s := l.scope(b)
		expired := b.advance(dt, func() { b.effect.OnTick(s) })
		if l.targetDead() {
			l.Clear()
			return
		}
		if !b.active {
			continue
		}
		if expired {
			l.RemoveBuff(b)
			continue
		}
		event.Publish(l.svc.Bus, event.BuffUpdated{
			Target:    l.target,
			Buff:      b.Name(),
			Remaining: b.Remaining(),
			At:        l.svc.now(),
		})
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
