package effect

import (
	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/model"
)

// TeamFilter keeps units with the given relation to the caster.
type TeamFilter struct {
	Relation model.Relation
}

func (f TeamFilter) Filter(env *Env, cc *CastContext, in Targets) Targets {
	casterTeam := env.World.Team(cc.Caster)
	return in.Filter(func(id model.EntityID) bool {
		return env.World.Exists(id) && model.RelationBetween(cc.Caster, id, casterTeam, env.World.Team(id)) == f.Relation
	})
}

// AliveFilter keeps live units, or dead ones with Dead set.
type AliveFilter struct {
	Dead bool
}

func (f AliveFilter) Filter(env *Env, _ *CastContext, in Targets) Targets {
	return in.Filter(func(id model.EntityID) bool {
		return env.World.Exists(id) && env.World.IsDead(id) == f.Dead
	})
}

// HasBuff keeps units carrying Def (cast by the caster when FromCaster is set).
// Negate inverts the test.
type HasBuff struct {
	Def        *buff.Definition
	FromCaster bool
	Negate     bool
}

func (f HasBuff) Filter(env *Env, cc *CastContext, in Targets) Targets {
	if f.Def == nil {
		return nil
	}
	caster := model.EntityID(0)
	if f.FromCaster {
		caster = cc.Caster
	}
	return in.Filter(func(id model.EntityID) bool {
		has := false
		if l, ok := env.Buffs.Find(id); ok {
			_, has = l.Find(f.Def.ID, caster)
		}
		return has != f.Negate
	})
}

// HealthBelow keeps units whose health fraction is below Fraction.
type HealthBelow struct {
	Fraction float64
}

func (f HealthBelow) Filter(env *Env, _ *CastContext, in Targets) Targets {
	return in.Filter(func(id model.EntityID) bool {
		cur, maximum := env.Vitals.Health(id)
		return maximum > 0 && float64(cur)/float64(maximum) < f.Fraction
	})
}

// InRange keeps units within [Min, Max] of the caster. Max zero means unbounded.
type InRange struct {
	Min float64
	Max float64
}

func (f InRange) Filter(env *Env, cc *CastContext, in Targets) Targets {
	return in.Filter(func(id model.EntityID) bool {
		d := env.World.Distance(cc.Caster, id)
		return d >= f.Min && (f.Max == 0 || d <= f.Max)
	})
}

// Limit keeps the first N units.
type Limit struct {
	N int
}

func (f Limit) Filter(_ *Env, _ *CastContext, in Targets) Targets {
	if f.N <= 0 {
		return nil
	}
	return in[:min(f.N, len(in))]
}

// Not keeps the units the wrapped predicate rejects.
type Not struct {
	Predicate Predicate
}

func (f Not) Filter(env *Env, cc *CastContext, in Targets) Targets {
	kept := f.Predicate.Filter(env, cc, in)
	return in.Filter(func(id model.EntityID) bool { return !kept.Contains(id) })
}
