// Package engine owns the simulation goroutine: it steps the clock, the chain runner,
// the buff ledgers, AI controllers and projectiles, and feeds the combat journal.
package engine

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/spellcore/internal/ai"
	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/game/skill"
	"github.com/udisondev/spellcore/internal/game/stat"
	"github.com/udisondev/spellcore/internal/journal"
	"github.com/udisondev/spellcore/internal/model"
	"github.com/udisondev/spellcore/internal/world"
)

// ErrQueueFull is returned by Submit when the command queue has no room.
var ErrQueueFull = errors.New("engine command queue full")

// Command runs on the engine goroutine between steps.
type Command func(e *Engine)

type timer struct {
	at  time.Duration
	seq uint64
	cmd Command
}

// Engine is the simulation. Everything except Submit, Stop, Now and Steps must be
// called from the engine goroutine: inside a Command, or before Start.
type Engine struct {
	interval time.Duration

	clock  *effect.ManualClock
	bus    *event.Bus
	world  *world.World
	stats  *stat.Service
	buffs  *buff.Manager
	runner *effect.Runner
	ai     *ai.TickManager
	books  map[model.EntityID]*skill.Book

	journal *journal.Journal

	commands chan Command
	timers   []timer
	timerSeq uint64

	now      atomic.Int64
	steps    atomic.Int64
	stopCh   chan struct{}
	stopOnce sync.Once
}

type settings struct {
	interval         time.Duration
	maxChainLifetime time.Duration
	queueSize        int
	cellSize         float64
	journal          *journal.Journal
}

// Option configures New.
type Option func(*settings)

// WithTickInterval sets the wall-clock step period of Start and the dt of each step.
func WithTickInterval(d time.Duration) Option { return func(s *settings) { s.interval = d } }

// WithMaxChainLifetime sets the runner watchdog. Zero disables it.
func WithMaxChainLifetime(d time.Duration) Option {
	return func(s *settings) { s.maxChainLifetime = d }
}

// WithQueueSize sets the command queue capacity.
func WithQueueSize(n int) Option { return func(s *settings) { s.queueSize = n } }

// WithCellSize sets the world's region size.
func WithCellSize(size float64) Option { return func(s *settings) { s.cellSize = size } }

// WithJournal attaches j to the engine bus. The engine hands rows to it after each step;
// the caller runs j.Run.
func WithJournal(j *journal.Journal) Option { return func(s *settings) { s.journal = j } }

// New wires the world and every service around a fresh bus and clock.
func New(opts ...Option) *Engine {
	s := settings{
		interval:         50 * time.Millisecond,
		maxChainLifetime: effect.DefaultMaxChainLifetime,
		queueSize:        256,
	}
	for _, opt := range opts {
		opt(&s)
	}

	e := &Engine{
		interval: s.interval,
		clock:    &effect.ManualClock{},
		bus:      event.NewBus(),
		ai:       ai.NewTickManager(),
		books:    make(map[model.EntityID]*skill.Book),
		journal:  s.journal,
		commands: make(chan Command, max(1, s.queueSize)),
		stopCh:   make(chan struct{}),
	}

	worldOpts := []world.Option{world.WithBus(e.bus), world.WithClock(e.clock.Now)}
	if s.cellSize > 0 {
		worldOpts = append(worldOpts, world.WithCellSize(s.cellSize))
	}
	e.world = world.New(worldOpts...)
	e.stats = stat.NewService(e.world)
	e.buffs = buff.NewManager(buff.Services{
		Vitals:    e.world,
		Modifiers: e.stats,
		States:    e.world,
		Bus:       e.bus,
		Now:       e.clock.Now,
	})
	e.runner = effect.NewRunner(&effect.Env{
		World:     e.world,
		Vitals:    e.world,
		Stats:     e.stats,
		Presenter: e.world,
		Threat:    e.world,
		Buffs:     e.buffs,
		Bus:       e.bus,
		Clock:     e.clock,
	}, effect.WithMaxChainLifetime(s.maxChainLifetime))

	if e.journal != nil {
		e.journal.Attach(e.bus)
	}
	return e
}

// Bus returns the event bus every service publishes on.
func (e *Engine) Bus() *event.Bus { return e.bus }

// World returns the entity store.
func (e *Engine) World() *world.World { return e.world }

// Stats returns the stat service.
func (e *Engine) Stats() *stat.Service { return e.stats }

// Buffs returns the buff manager.
func (e *Engine) Buffs() *buff.Manager { return e.buffs }

// Runner returns the effect runner.
func (e *Engine) Runner() *effect.Runner { return e.runner }

// AI returns the controller manager ticked every step.
func (e *Engine) AI() *ai.TickManager { return e.ai }

// Interval returns the step length used by Start.
func (e *Engine) Interval() time.Duration { return e.interval }

// Journal returns the attached journal, nil when none was configured.
func (e *Engine) Journal() *journal.Journal { return e.journal }

// Now returns the simulation time. Safe from any goroutine.
func (e *Engine) Now() time.Duration { return time.Duration(e.now.Load()) }

// Steps returns the number of completed steps. Safe from any goroutine.
func (e *Engine) Steps() int64 { return e.steps.Load() }

// AddUnit places u in the world.
func (e *Engine) AddUnit(u *model.Unit) error {
	if err := e.world.AddUnit(u); err != nil {
		return fmt.Errorf("adding unit %d: %w", u.ID(), err)
	}
	return nil
}

// RemoveUnit tears down the unit's skills and controller, drops its ledger and
// removes it from the world.
func (e *Engine) RemoveUnit(id model.EntityID) {
	if book, ok := e.books[id]; ok {
		book.Teardown()
		delete(e.books, id)
	}
	e.ai.Unregister(id)
	e.buffs.Forget(id)
	e.stats.Clear(id)
	e.world.RemoveUnit(id)
	slog.Debug("unit removed", "unit", id)
}

// Book returns the skill book of caster, creating it on first use.
func (e *Engine) Book(caster model.EntityID) *skill.Book {
	b, ok := e.books[caster]
	if !ok {
		b = skill.NewBook(caster, e.runner, e.buffs)
		e.books[caster] = b
	}
	return b
}

// Learn teaches def to caster and runs its init chain.
func (e *Engine) Learn(caster model.EntityID, def *skill.Definition) *skill.Instance {
	return e.Book(caster).Learn(def)
}

// Cast casts a learned skill.
func (e *Engine) Cast(caster model.EntityID, name string, aim ...effect.CastOption) (*effect.CastContext, error) {
	b, ok := e.books[caster]
	if !ok {
		return nil, fmt.Errorf("unit %d casting %q: %w", caster, name, skill.ErrUnknownSkill)
	}
	return b.Cast(name, aim...)
}

// AutoCast puts caster under an AI controller that casts its skills on enemies
// within aggroRange.
func (e *Engine) AutoCast(caster model.EntityID, aggroRange float64) {
	e.ai.Register(caster, ai.NewAutoCaster(e.Book(caster), e.world, aggroRange))
}

// At schedules cmd for the first step whose clock reaches at. Commands due at the
// same time run in scheduling order.
func (e *Engine) At(at time.Duration, cmd Command) {
	e.timerSeq++
	t := timer{at: at, seq: e.timerSeq, cmd: cmd}
	i, _ := slices.BinarySearchFunc(e.timers, t, func(a, b timer) int {
		if c := cmp.Compare(a.at, b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	e.timers = slices.Insert(e.timers, i, t)
}

// After schedules cmd d after the current simulation time.
func (e *Engine) After(d time.Duration, cmd Command) { e.At(e.clock.Now()+d, cmd) }

// Pending returns the number of scheduled commands not yet run.
func (e *Engine) Pending() int { return len(e.timers) }

// Submit queues cmd for the next step. Safe from any goroutine; never blocks.
func (e *Engine) Submit(cmd Command) error {
	select {
	case e.commands <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// SubmitCast queues a cast for the next step. The returned channel receives the
// outcome once the step has run it.
func (e *Engine) SubmitCast(caster model.EntityID, name string, aim ...effect.CastOption) (<-chan error, error) {
	res := make(chan error, 1)
	err := e.Submit(func(e *Engine) {
		_, err := e.Cast(caster, name, aim...)
		res <- err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Step advances the simulation by dt.
func (e *Engine) Step(dt time.Duration) {
	e.drainCommands()

	e.clock.Advance(dt)
	now := e.clock.Now()
	e.now.Store(int64(now))

	e.fireTimers(now)
	e.runner.Tick()
	e.ai.TickAll(now)
	e.buffs.Update(dt)
	e.world.Tick(dt.Seconds())

	if e.journal != nil {
		e.journal.Handoff()
	}
	e.steps.Add(1)

	if effect.IsDebugEnabled() {
		slog.Debug("engine step",
			"now", now,
			"chains", e.runner.Active(),
			"ledgers", e.buffs.Len(),
			"projectiles", e.world.ActiveProjectiles())
	}
}

func (e *Engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			cmd(e)
		default:
			return
		}
	}
}

func (e *Engine) fireTimers(now time.Duration) {
	for len(e.timers) > 0 && e.timers[0].at <= now {
		t := e.timers[0]
		e.timers = e.timers[1:]
		t.cmd(e)
	}
}

// Start steps the simulation every tick interval until ctx is done or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	slog.Info("engine started", "interval", e.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("engine stopping", "now", e.Now(), "steps", e.Steps())
			return ctx.Err()

		case <-e.stopCh:
			slog.Info("engine stopped", "now", e.Now(), "steps", e.Steps())
			return nil

		case <-ticker.C:
			e.Step(e.interval)
		}
	}
}

// Stop ends Start. Safe to call more than once and from any goroutine.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// Done is closed by Stop.
func (e *Engine) Done() <-chan struct{} { return e.stopCh }
