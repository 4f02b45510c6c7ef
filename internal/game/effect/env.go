package effect

import (
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/model"
)

// World answers entity and spatial queries.
type World interface {
	Exists(id model.EntityID) bool
	IsDead(id model.EntityID) bool
	Team(id model.EntityID) model.Team
	Position(id model.EntityID) (mgl64.Vec3, bool)
	Facing(id model.EntityID) (mgl64.Vec3, bool)
	Distance(a, b model.EntityID) float64
	State(id model.EntityID) model.State
	SetState(id model.EntityID, s model.State, on bool)
	Warp(id model.EntityID, pos mgl64.Vec3) bool

	OverlapSphere(center mgl64.Vec3, radius float64, mask model.Layer) []model.EntityID
	OverlapCone(origin, dir mgl64.Vec3, radius, halfAngle float64, mask model.Layer) []model.EntityID
	LinearCast(origin, dir mgl64.Vec3, length, width float64, mask model.Layer) []model.EntityID
}

// Vitals changes health and shields.
type Vitals interface {
	buff.Vitals
}

// Stats reads stats and installs modifiers.
type Stats interface {
	buff.Modifiers
}

// Presenter spawns fire-and-forget presentation and world objects.
type Presenter interface {
	PlayEffect(name string, at mgl64.Vec3)
	PlaySound(name string, at mgl64.Vec3)
	SpawnProjectile(spec model.ProjectileSpec) model.Projectile
	SpawnEntity(template string, team model.Team, at mgl64.Vec3) model.EntityID
}

// Threat manages hate tables.
type Threat interface {
	AddThreat(holder, source model.EntityID, amount float64)
	Threat(holder model.EntityID) *model.ThreatList
}

// Buffs is the ManageBuff indirection mechanics use to reach target ledgers.
type Buffs interface {
	Manage(owner buff.Owner, target model.EntityID, b *buff.Buff, apply bool) bool
	Dispel(target model.EntityID, def buff.DefID, caster model.EntityID) int
	Find(target model.EntityID) (*buff.Ledger, bool)
}

// Clock reports simulation time.
type Clock interface {
	Now() time.Duration
}

// Env is the set of services operators run against.
type Env struct {
	World     World
	Vitals    Vitals
	Stats     Stats
	Presenter Presenter
	Threat    Threat
	Buffs     Buffs
	Bus       *event.Bus
	Clock     Clock

	runner *Runner
}

// Now returns the current simulation time.
func (e *Env) Now() time.Duration {
	if e.Clock == nil {
		return 0
	}
	return e.Clock.Now()
}

// Runner returns the runner the env is attached to.
func (e *Env) Runner() *Runner { return e.runner }

// alive drops handles that are missing or dead.
func (e *Env) alive(t Targets) Targets {
	return t.Filter(func(id model.EntityID) bool {
		return e.World.Exists(id) && !e.World.IsDead(id)
	})
}

// origin returns the aim point, falling back to the caster position.
func (e *Env) origin(cc *CastContext) (mgl64.Vec3, bool) {
	if p, ok := cc.AimPoint(); ok {
		return p, true
	}
	return e.World.Position(cc.Caster)
}

// direction returns the aim direction, then the direction toward the aim point,
// then the caster facing.
func (e *Env) direction(cc *CastContext) mgl64.Vec3 {
	if d, ok := cc.AimDirection(); ok {
		return d
	}
	from, ok := e.World.Position(cc.Caster)
	if p, hasPoint := cc.AimPoint(); hasPoint && ok {
		if d := p.Sub(from); d.Len() > 0 {
			return d.Normalize()
		}
	}
	if f, ok := e.World.Facing(cc.Caster); ok && f.Len() > 0 {
		return f.Normalize()
	}
	return mgl64.Vec3{1, 0, 0}
}

// ManualClock is a Clock advanced by hand.
type ManualClock struct {
	now time.Duration
}

// Now returns the current time.
func (c *ManualClock) Now() time.Duration { return c.now }

// Advance moves the clock forward by dt.
func (c *ManualClock) Advance(dt time.Duration) { c.now += dt }

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Duration) { c.now = t }
