package world

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/model"
)

// Projectile is a straight-flying projectile advanced by World.Tick.
type Projectile struct {
	id       uint32
	spec     model.ProjectileSpec
	axis     mgl64.Vec3
	pos      mgl64.Vec3
	traveled float64
	done     bool

	onHit    []func(model.EntityID)
	onExpire []func()
}

// ID returns the projectile id.
func (p *Projectile) ID() uint32 { return p.id }

// Position returns the current projectile position.
func (p *Projectile) Position() mgl64.Vec3 { return p.pos }

// Done reports whether the projectile hit something or expired.
func (p *Projectile) Done() bool { return p.done }

// OnHit implements model.Projectile.
func (p *Projectile) OnHit(fn func(model.EntityID)) {
	p.onHit = append(p.onHit, fn)
}

// OnExpire implements model.Projectile.
func (p *Projectile) OnExpire(fn func()) {
	p.onExpire = append(p.onExpire, fn)
}

// SpawnProjectile launches a projectile. A zero direction or speed expires it on the next tick.
func (w *World) SpawnProjectile(spec model.ProjectileSpec) model.Projectile {
	p := &Projectile{
		id:   w.ids.NextProjectileID(),
		spec: spec,
		pos:  spec.Origin,
	}
	if spec.Direction.Len() > 0 {
		p.axis = spec.Direction.Normalize()
	}
	if p.spec.Mask == 0 {
		p.spec.Mask = model.LayerUnit
	}

	w.mu.Lock()
	w.projectiles = append(w.projectiles, p)
	w.mu.Unlock()

	slog.Debug("projectile spawned",
		"projectile", p.id,
		"owner", spec.Owner,
		"visual", spec.Visual,
		"speed", spec.Speed,
		"range", spec.Range)
	return p
}

// ActiveProjectiles returns the number of projectiles in flight.
func (w *World) ActiveProjectiles() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.projectiles)
}

// Tick advances projectiles by dt seconds. Hit and expire callbacks run on the caller's goroutine.
func (w *World) Tick(dtSeconds float64) {
	w.mu.Lock()
	flying := w.projectiles
	w.projectiles = nil
	w.mu.Unlock()

	var alive []*Projectile
	for _, p := range flying {
		w.advance(p, dtSeconds)
		if !p.done {
			alive = append(alive, p)
		}
	}

	w.mu.Lock()
	// Callbacks may have spawned new projectiles meanwhile.
	w.projectiles = append(alive, w.projectiles...)
	w.mu.Unlock()
}

func (w *World) advance(p *Projectile, dt float64) {
	step := p.spec.Speed * dt
	if remaining := p.spec.Range - p.traveled; step > remaining {
		step = remaining
	}
	if step <= 0 || p.axis.Len() == 0 {
		w.expire(p)
		return
	}

	for _, id := range w.LinearCast(p.pos, p.axis, step, p.spec.Radius*2, p.spec.Mask) {
		if id == p.spec.Owner || w.IsDead(id) {
			continue
		}
		p.done = true
		p.pos = p.pos.Add(p.axis.Mul(p.axis.Dot(w.positionOr(id, p.pos).Sub(p.pos))))
		slog.Debug("projectile hit", "projectile", p.id, "target", id)
		for _, fn := range p.onHit {
			fn(id)
		}
		return
	}

	p.pos = p.pos.Add(p.axis.Mul(step))
	p.traveled += step
	if p.traveled >= p.spec.Range {
		w.expire(p)
	}
}

func (w *World) expire(p *Projectile) {
	p.done = true
	slog.Debug("projectile expired", "projectile", p.id)
	for _, fn := range p.onExpire {
		fn()
	}
}

func (w *World) positionOr(id model.EntityID, fallback mgl64.Vec3) mgl64.Vec3 {
	if pos, ok := w.Position(id); ok {
		return pos
	}
	return fallback
}
