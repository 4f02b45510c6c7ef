package world

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/model"
)

// World is an in-memory entity store with a spatial grid.
// It implements the entity query, vitals, threat and presentation services the
// effect engine consumes. Not a singleton: every simulation owns its World.
type World struct {
	cellSize float64
	bus      *event.Bus
	ids      *IDGenerator
	now      func() time.Duration

	mu      sync.RWMutex
	units   map[model.EntityID]*model.Unit
	cells   map[model.EntityID]cell
	regions map[cell]*Region
	threat  map[model.EntityID]*model.ThreatList

	projectiles []*Projectile
}

// Option configures a World.
type Option func(*World)

// WithCellSize sets the region edge length.
func WithCellSize(size float64) Option {
	return func(w *World) {
		if size > 0 {
			w.cellSize = size
		}
	}
}

// WithBus publishes UnitDied on bus.
func WithBus(bus *event.Bus) Option {
	return func(w *World) { w.bus = bus }
}

// WithClock stamps published events with now().
func WithClock(now func() time.Duration) Option {
	return func(w *World) { w.now = now }
}

// New creates an empty world.
func New(opts ...Option) *World {
	w := &World{
		cellSize: DefaultCellSize,
		ids:      NewIDGenerator(),
		now:      func() time.Duration { return 0 },
		units:    make(map[model.EntityID]*model.Unit),
		cells:    make(map[model.EntityID]cell),
		regions:  make(map[cell]*Region),
		threat:   make(map[model.EntityID]*model.ThreatList),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IDs returns the world's handle generator.
func (w *World) IDs() *IDGenerator {
	return w.ids
}

// AddUnit adds a unit to the world and its region.
func (w *World) AddUnit(u *model.Unit) error {
	if u == nil || !u.ID().Valid() {
		return fmt.Errorf("adding unit: invalid handle")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, exists := w.units[u.ID()]; exists {
		return fmt.Errorf("adding unit %d: already in world", u.ID())
	}
	c := cellOf(u.Position(), w.cellSize)
	w.units[u.ID()] = u
	w.cells[u.ID()] = c
	w.regionAt(c).add(u)
	return nil
}

// RemoveUnit removes a unit from the world. Unknown handles are ignored.
func (w *World) RemoveUnit(id model.EntityID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.units[id]; !ok {
		return
	}
	c := w.cells[id]
	delete(w.units, id)
	delete(w.cells, id)
	delete(w.threat, id)
	if r, ok := w.regions[c]; ok {
		r.remove(id)
		if r.empty() {
			delete(w.regions, c)
		}
	}
}

// Unit returns the unit behind id.
func (w *World) Unit(id model.EntityID) (*model.Unit, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	u, ok := w.units[id]
	return u, ok
}

// UnitCount returns the number of units in the world.
func (w *World) UnitCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.units)
}

// Exists reports whether id is a unit in the world.
func (w *World) Exists(id model.EntityID) bool {
	_, ok := w.Unit(id)
	return ok
}

// Position returns the unit position.
func (w *World) Position(id model.EntityID) (mgl64.Vec3, bool) {
	u, ok := w.Unit(id)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return u.Position(), true
}

// Facing returns the unit facing direction.
func (w *World) Facing(id model.EntityID) (mgl64.Vec3, bool) {
	u, ok := w.Unit(id)
	if !ok {
		return mgl64.Vec3{}, false
	}
	return u.Facing(), true
}

// Distance returns the distance between two units, +Inf if either is missing.
func (w *World) Distance(a, b model.EntityID) float64 {
	pa, okA := w.Position(a)
	pb, okB := w.Position(b)
	if !okA || !okB {
		return math.Inf(1)
	}
	return pa.Sub(pb).Len()
}

// IsDead reports whether the unit is dead. Missing units count as dead.
func (w *World) IsDead(id model.EntityID) bool {
	u, ok := w.Unit(id)
	return !ok || u.IsDead()
}

// Team returns the unit's team (neutral when missing).
func (w *World) Team(id model.EntityID) model.Team {
	u, ok := w.Unit(id)
	if !ok {
		return model.TeamNeutral
	}
	return u.Team()
}

// State returns the unit's busy/control flags.
func (w *World) State(id model.EntityID) model.State {
	u, ok := w.Unit(id)
	if !ok {
		return 0
	}
	return u.State()
}

// SetState raises or clears flags on a unit.
func (w *World) SetState(id model.EntityID, s model.State, on bool) {
	if u, ok := w.Unit(id); ok {
		u.SetState(s, on)
	}
}

// BaseStat implements stat.BaseProvider.
func (w *World) BaseStat(id model.EntityID, s model.Stat) float64 {
	u, ok := w.Unit(id)
	if !ok {
		return 0
	}
	return u.BaseStat(s)
}

// Warp moves a unit and re-indexes its region. Returns false for missing or dead units.
func (w *World) Warp(id model.EntityID, pos mgl64.Vec3) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	u, ok := w.units[id]
	if !ok || u.IsDead() {
		return false
	}
	u.SetPosition(pos)

	from := w.cells[id]
	to := cellOf(pos, w.cellSize)
	if from != to {
		if r, ok := w.regions[from]; ok {
			r.remove(id)
			if r.empty() {
				delete(w.regions, from)
			}
		}
		w.regionAt(to).add(u)
		w.cells[id] = to
	}
	return true
}

// regionAt returns (creating on demand) the region for c. Must be called with mu held.
func (w *World) regionAt(c cell) *Region {
	r, ok := w.regions[c]
	if !ok {
		r = newRegion(c)
		w.regions[c] = r
	}
	return r
}

// Damage applies damage to target and publishes UnitDied on a killing blow.
func (w *World) Damage(source, target model.EntityID, amount int32) (dealt int32, killed bool) {
	u, ok := w.Unit(target)
	if !ok {
		return 0, false
	}
	dealt, killed = u.ApplyDamage(amount)
	if dealt > 0 {
		w.Threat(target).AddDamage(source, int64(dealt))
	}
	if killed {
		slog.Debug("unit died", "unit", target, "killer", source)
		event.Publish(w.bus, event.UnitDied{Unit: target, Killer: source, At: w.now()})
	}
	return dealt, killed
}

// Heal restores health on target and returns the amount restored.
func (w *World) Heal(_, target model.EntityID, amount int32) int32 {
	u, ok := w.Unit(target)
	if !ok {
		return 0
	}
	return u.ApplyHeal(amount)
}

// AddShield changes the absorb pool on target and returns the applied delta.
func (w *World) AddShield(target model.EntityID, amount int32) int32 {
	u, ok := w.Unit(target)
	if !ok {
		return 0
	}
	return u.AddShield(amount)
}

// Health returns current and max health of a unit.
func (w *World) Health(id model.EntityID) (current, maximum int32) {
	u, ok := w.Unit(id)
	if !ok {
		return 0, 0
	}
	return u.Health()
}

// Threat returns (creating on demand) the threat list held by holder.
func (w *World) Threat(holder model.EntityID) *model.ThreatList {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.threat[holder]
	if !ok {
		l = model.NewThreatList()
		w.threat[holder] = l
	}
	return l
}

// AddThreat adds hate for source on holder's list.
func (w *World) AddThreat(holder, source model.EntityID, amount float64) {
	if !w.Exists(holder) {
		return
	}
	w.Threat(holder).AddHate(source, amount)
}
