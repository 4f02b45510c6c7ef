package model

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Unit is a living entity: position, team, health, shield, base stats and state flags.
// Accessors are safe for concurrent use; the engine mutates units from the tick goroutine
// while journal and tooling goroutines read them.
type Unit struct {
	id    EntityID
	name  string
	team  Team
	layer Layer

	mu        sync.RWMutex
	position  mgl64.Vec3
	facing    mgl64.Vec3
	health    int32
	maxHealth int32
	shield    int32
	stats     map[Stat]float64
	state     State
	dead      bool
}

// NewUnit creates a unit at full health facing +X.
func NewUnit(id EntityID, name string, team Team, pos mgl64.Vec3, maxHealth int32) *Unit {
	if maxHealth < 1 {
		maxHealth = 1
	}
	return &Unit{
		id:        id,
		name:      name,
		team:      team,
		layer:     LayerUnit,
		position:  pos,
		facing:    mgl64.Vec3{1, 0, 0},
		health:    maxHealth,
		maxHealth: maxHealth,
		stats:     make(map[Stat]float64, 4),
	}
}

// ID returns the unit handle (immutable).
func (u *Unit) ID() EntityID { return u.id }

// Name returns the display name.
func (u *Unit) Name() string { return u.name }

// Team returns the unit's team (immutable).
func (u *Unit) Team() Team { return u.team }

// Layer returns the overlap layer of the unit.
func (u *Unit) Layer() Layer { return u.layer }

// SetLayer changes the overlap layer. Call before adding the unit to a world.
func (u *Unit) SetLayer(l Layer) { u.layer = l }

// Position returns a copy of the current position.
func (u *Unit) Position() mgl64.Vec3 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.position
}

// SetPosition moves the unit. The world re-indexes it; use World.Warp from game code.
func (u *Unit) SetPosition(pos mgl64.Vec3) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.position = pos
}

// Facing returns the unit's normalized facing direction.
func (u *Unit) Facing() mgl64.Vec3 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.facing
}

// SetFacing sets the facing direction. Zero vectors are ignored.
func (u *Unit) SetFacing(dir mgl64.Vec3) {
	if dir.Len() == 0 {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.facing = dir.Normalize()
}

// Health returns current and max health.
func (u *Unit) Health() (current, maximum int32) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.health, u.maxHealth
}

// SetHealth sets current health with clamp 0..maxHealth.
// Reaching zero marks the unit dead; dead units stay dead.
func (u *Unit) SetHealth(hp int32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dead {
		return
	}
	u.health = clampHealth(hp, u.maxHealth)
	if u.health == 0 {
		u.dead = true
	}
}

// SetMaxHealth sets max health and trims current health if needed.
func (u *Unit) SetMaxHealth(maxHealth int32) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if maxHealth < 1 {
		maxHealth = 1
	}
	u.maxHealth = maxHealth
	if u.health > u.maxHealth {
		u.health = u.maxHealth
	}
}

// ApplyDamage reduces the shield first, then health.
// Returns the amount taken from health and whether this hit killed the unit.
func (u *Unit) ApplyDamage(amount int32) (dealt int32, killed bool) {
	if amount <= 0 {
		return 0, false
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dead {
		return 0, false
	}

	absorbed := min(u.shield, amount)
	u.shield -= absorbed
	amount -= absorbed

	dealt = min(amount, u.health)
	u.health -= dealt
	if u.health == 0 {
		u.dead = true
		killed = true
	}
	return dealt, killed
}

// ApplyHeal restores health up to max. Returns the amount actually restored.
func (u *Unit) ApplyHeal(amount int32) int32 {
	if amount <= 0 {
		return 0
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.dead {
		return 0
	}
	healed := min(amount, u.maxHealth-u.health)
	u.health += healed
	return healed
}

// Shield returns the remaining absorb pool.
func (u *Unit) Shield() int32 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.shield
}

// AddShield grows (or with a negative amount shrinks) the absorb pool, never below zero.
// Returns the amount actually added or removed.
func (u *Unit) AddShield(amount int32) int32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	before := u.shield
	u.shield = max(0, u.shield+amount)
	return u.shield - before
}

// IsDead reports whether the unit has died.
func (u *Unit) IsDead() bool {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.dead
}

// BaseStat returns the unmodified value of a stat.
// Max health is always derived from the health pool.
func (u *Unit) BaseStat(s Stat) float64 {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if s == StatMaxHealth {
		return float64(u.maxHealth)
	}
	return u.stats[s]
}

// SetBaseStat sets the unmodified value of a stat.
func (u *Unit) SetBaseStat(s Stat, v float64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stats[s] = v
}

// State returns the busy/control flags.
func (u *Unit) State() State {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.state
}

// SetState raises or clears flags.
func (u *Unit) SetState(s State, on bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if on {
		u.state |= s
	} else {
		u.state &^= s
	}
}

func clampHealth(hp, maxHP int32) int32 {
	if hp < 0 {
		return 0
	}
	if hp > maxHP {
		return maxHP
	}
	return hp
}
