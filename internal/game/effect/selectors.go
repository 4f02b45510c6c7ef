package effect

import (
	"cmp"
	"math"
	"slices"

	"github.com/udisondev/spellcore/internal/model"
)

const defaultMask = model.LayerUnit | model.LayerSummon

func maskOr(m model.Layer) model.Layer {
	if m == 0 {
		return defaultMask
	}
	return m
}

// Self selects the caster.
type Self struct{}

func (Self) Select(env *Env, cc *CastContext, _ Targets) Targets {
	if !env.World.Exists(cc.Caster) {
		return nil
	}
	return Targets{cc.Caster}
}

// Sphere selects units within Radius of the aim point (or the caster when there is
// no aim point or AroundCaster is set).
type Sphere struct {
	Radius       float64
	Mask         model.Layer
	AroundCaster bool
}

func (s Sphere) Select(env *Env, cc *CastContext, _ Targets) Targets {
	center, ok := env.origin(cc)
	if s.AroundCaster {
		center, ok = env.World.Position(cc.Caster)
	}
	if !ok {
		return nil
	}
	return NewTargets(env.World.OverlapSphere(center, s.Radius, maskOr(s.Mask))...)
}

// Cone selects units in front of the caster along the aim direction.
// HalfAngle is in radians.
type Cone struct {
	Radius    float64
	HalfAngle float64
	Mask      model.Layer
}

func (c Cone) Select(env *Env, cc *CastContext, _ Targets) Targets {
	origin, ok := env.World.Position(cc.Caster)
	if !ok {
		return nil
	}
	return NewTargets(env.World.OverlapCone(origin, env.direction(cc), c.Radius, c.HalfAngle, maskOr(c.Mask))...)
}

// Line selects units along a segment from the caster in the aim direction.
type Line struct {
	Length float64
	Width  float64
	Mask   model.Layer
}

func (l Line) Select(env *Env, cc *CastContext, _ Targets) Targets {
	origin, ok := env.World.Position(cc.Caster)
	if !ok {
		return nil
	}
	hits := env.World.LinearCast(origin, env.direction(cc), l.Length, l.Width, maskOr(l.Mask))
	return NewTargets(hits...).Without(cc.Caster)
}

// SmartPick scores live units around the caster and keeps the Count best.
//
// Score = WeightDistance·(1 − d/Radius) + WeightHealth·(1 − hp/max) + WeightThreat·(hate/maxHate),
// where hate is read from the caster's threat list.
type SmartPick struct {
	Radius         float64
	Count          int
	Relation       model.Relation
	WeightDistance float64
	WeightHealth   float64
	WeightThreat   float64
	Mask           model.Layer
}

func (p SmartPick) Select(env *Env, cc *CastContext, _ Targets) Targets {
	center, ok := env.World.Position(cc.Caster)
	if !ok || p.Radius <= 0 {
		return nil
	}
	casterTeam := env.World.Team(cc.Caster)
	candidates := env.alive(NewTargets(env.World.OverlapSphere(center, p.Radius, maskOr(p.Mask))...))
	candidates = candidates.Filter(func(id model.EntityID) bool {
		return model.RelationBetween(cc.Caster, id, casterTeam, env.World.Team(id)) == p.Relation
	})
	if len(candidates) == 0 {
		return nil
	}

	var (
		hate    = make(map[model.EntityID]float64, len(candidates))
		maxHate float64
	)
	if env.Threat != nil && p.WeightThreat != 0 {
		list := env.Threat.Threat(cc.Caster)
		for _, id := range candidates {
			if info, ok := list.Get(id); ok {
				hate[id] = info.Hate
				maxHate = math.Max(maxHate, info.Hate)
			}
		}
	}

	type scored struct {
		id    model.EntityID
		score float64
	}
	ranked := make([]scored, 0, len(candidates))
	for _, id := range candidates {
		s := p.WeightDistance * (1 - math.Min(env.World.Distance(cc.Caster, id)/p.Radius, 1))
		if p.WeightHealth != 0 && env.Vitals != nil {
			if cur, maximum := env.Vitals.Health(id); maximum > 0 {
				s += p.WeightHealth * (1 - float64(cur)/float64(maximum))
			}
		}
		if maxHate > 0 {
			s += p.WeightThreat * hate[id] / maxHate
		}
		ranked = append(ranked, scored{id: id, score: s})
	}
	// Stable sort keeps the distance order of the query among equal scores.
	slices.SortStableFunc(ranked, func(a, b scored) int { return cmp.Compare(b.score, a.score) })

	n := max(p.Count, 1)
	out := make(Targets, 0, n)
	for _, r := range ranked[:min(n, len(ranked))] {
		out = append(out, r.id)
	}
	return out
}
