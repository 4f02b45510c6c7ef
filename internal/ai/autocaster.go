package ai

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/game/skill"
	"github.com/udisondev/spellcore/internal/model"
)

// World is the part of the world an auto caster reads.
type World interface {
	Exists(id model.EntityID) bool
	IsDead(id model.EntityID) bool
	Team(id model.EntityID) model.Team
	Position(id model.EntityID) (mgl64.Vec3, bool)
	OverlapSphere(center mgl64.Vec3, radius float64, mask model.Layer) []model.EntityID
	Threat(holder model.EntityID) *model.ThreatList
}

// AutoCaster casts a unit's skills at the most hated enemy, or the nearest one
// within aggro range when nobody is hated. Skills are tried in the order they were
// learned; the first one ready is cast, aimed at the target's position.
type AutoCaster struct {
	book       *skill.Book
	world      World
	aggroRange float64

	isRunning atomic.Bool
	intention atomic.Uint32
	target    model.EntityID
}

// NewAutoCaster creates a controller for the owner of book.
func NewAutoCaster(book *skill.Book, world World, aggroRange float64) *AutoCaster {
	return &AutoCaster{book: book, world: world, aggroRange: aggroRange}
}

func (ai *AutoCaster) Start() {
	ai.isRunning.Store(true)
	ai.setIntention(IntentionActive)
}

func (ai *AutoCaster) Stop() {
	ai.isRunning.Store(false)
	ai.setIntention(IntentionIdle)
	ai.target = 0
}

func (ai *AutoCaster) Intention() Intention { return Intention(ai.intention.Load()) }

// Target returns the unit the controller is casting at.
func (ai *AutoCaster) Target() model.EntityID { return ai.target }

func (ai *AutoCaster) setIntention(i Intention) { ai.intention.Store(uint32(i)) }

func (ai *AutoCaster) Tick(now time.Duration) {
	if !ai.isRunning.Load() {
		return
	}
	self := ai.book.Caster()
	if !ai.world.Exists(self) || ai.world.IsDead(self) {
		ai.setIntention(IntentionIdle)
		ai.target = 0
		return
	}

	ai.target = ai.pickTarget(self)
	if !ai.target.Valid() {
		ai.setIntention(IntentionActive)
		return
	}
	ai.setIntention(IntentionAttack)

	for _, name := range ai.book.Names() {
		inst, ok := ai.book.Get(name)
		if !ok || inst.Def().Cast.Empty() {
			continue
		}
		if inst.Current() != nil {
			// a cast of ours is still winding up
			return
		}
	}

	at, _ := ai.world.Position(ai.target)
	for _, name := range ai.book.Names() {
		inst, _ := ai.book.Get(name)
		if inst.Def().Cast.Empty() || inst.IsOnCooldown(now) {
			continue
		}
		_, err := ai.book.Cast(name, effect.WithAimPoint(at))
		switch {
		case err == nil:
			if effect.IsDebugEnabled() {
				slog.Debug("auto cast", "caster", self, "skill", name, "target", ai.target)
			}
			return
		case errors.Is(err, skill.ErrBusy), errors.Is(err, skill.ErrCasterDead):
			return
		}
	}
}

func (ai *AutoCaster) pickTarget(self model.EntityID) model.EntityID {
	if hated := ai.world.Threat(self).MostHated(); ai.isEnemyInRange(self, hated) {
		return hated
	}
	pos, ok := ai.world.Position(self)
	if !ok {
		return 0
	}
	for _, id := range ai.world.OverlapSphere(pos, ai.aggroRange, model.LayerUnit|model.LayerSummon) {
		if ai.isEnemyInRange(self, id) {
			return id
		}
	}
	return 0
}

func (ai *AutoCaster) isEnemyInRange(self, id model.EntityID) bool {
	if !id.Valid() || id == self || !ai.world.Exists(id) || ai.world.IsDead(id) {
		return false
	}
	if model.RelationBetween(self, id, ai.world.Team(self), ai.world.Team(id)) != model.RelationEnemy {
		return false
	}
	a, _ := ai.world.Position(self)
	b, _ := ai.world.Position(id)
	return a.Sub(b).Len() <= ai.aggroRange
}
