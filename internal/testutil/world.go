package testutil

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/game/stat"
	"github.com/udisondev/spellcore/internal/model"
	"github.com/udisondev/spellcore/internal/world"
)

// Fixture wires a world, its services and a runner around a manual clock.
// Advance follows the engine step order: clock, runner, buffs, projectiles.
type Fixture struct {
	Bus       *event.Bus
	Clock     *effect.ManualClock
	World     *world.World
	Stats     *stat.Service
	Buffs     *buff.Manager
	Presenter *RecordingPresenter
	Env       *effect.Env
	Runner    *effect.Runner
}

// NewFixture creates an empty world with every service connected.
func NewFixture(tb testing.TB, opts ...effect.RunnerOption) *Fixture {
	tb.Helper()

	f := &Fixture{
		Bus:   event.NewBus(),
		Clock: &effect.ManualClock{},
	}
	f.World = world.New(world.WithBus(f.Bus), world.WithClock(f.Clock.Now))
	f.Stats = stat.NewService(f.World)
	f.Buffs = buff.NewManager(buff.Services{
		Vitals:    f.World,
		Modifiers: f.Stats,
		States:    f.World,
		Bus:       f.Bus,
		Now:       f.Clock.Now,
	})
	f.Presenter = &RecordingPresenter{World: f.World}
	f.Env = &effect.Env{
		World:     f.World,
		Vitals:    f.World,
		Stats:     f.Stats,
		Presenter: f.Presenter,
		Threat:    f.World,
		Buffs:     f.Buffs,
		Bus:       f.Bus,
		Clock:     f.Clock,
	}
	f.Runner = effect.NewRunner(f.Env, opts...)
	return f
}

// AddUnit places a unit at (x, y) facing +X.
func (f *Fixture) AddUnit(tb testing.TB, id model.EntityID, team model.Team, x, y float64, maxHealth int32) *model.Unit {
	tb.Helper()
	u := model.NewUnit(id, "unit", team, mgl64.Vec3{x, y, 0}, maxHealth)
	u.SetFacing(mgl64.Vec3{1, 0, 0})
	if err := f.World.AddUnit(u); err != nil {
		tb.Fatalf("adding unit %d: %v", id, err)
	}
	return u
}

// Health returns the unit's current health.
func (f *Fixture) Health(id model.EntityID) int32 {
	cur, _ := f.World.Health(id)
	return cur
}

// Advance moves the simulation forward by dt.
func (f *Fixture) Advance(dt time.Duration) {
	f.Clock.Advance(dt)
	f.Runner.Tick()
	f.Buffs.Update(dt)
	f.World.Tick(dt.Seconds())
}

// AdvanceBy moves the simulation forward by total in increments of step.
func (f *Fixture) AdvanceBy(total, step time.Duration) {
	for elapsed := time.Duration(0); elapsed < total; elapsed += step {
		f.Advance(step)
	}
}

// RecordingPresenter forwards calls to the world and records them.
type RecordingPresenter struct {
	*world.World

	Effects     []string
	Sounds      []string
	Projectiles []model.ProjectileSpec
	Spawned     []model.EntityID
}

func (p *RecordingPresenter) PlayEffect(name string, at mgl64.Vec3) {
	p.Effects = append(p.Effects, name)
	p.World.PlayEffect(name, at)
}

func (p *RecordingPresenter) PlaySound(name string, at mgl64.Vec3) {
	p.Sounds = append(p.Sounds, name)
	p.World.PlaySound(name, at)
}

func (p *RecordingPresenter) SpawnProjectile(spec model.ProjectileSpec) model.Projectile {
	p.Projectiles = append(p.Projectiles, spec)
	return p.World.SpawnProjectile(spec)
}

func (p *RecordingPresenter) SpawnEntity(template string, team model.Team, at mgl64.Vec3) model.EntityID {
	id := p.World.SpawnEntity(template, team, at)
	p.Spawned = append(p.Spawned, id)
	return id
}
