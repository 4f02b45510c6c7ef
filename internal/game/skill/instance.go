// Package skill hosts skill instances: cooldown bookkeeping and the chains a skill runs.
package skill

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/model"
)

var (
	ErrOnCooldown   = errors.New("skill on cooldown")
	ErrBusy         = errors.New("caster is busy")
	ErrCasterDead   = errors.New("caster is dead")
	ErrUnknownSkill = errors.New("unknown skill")
)

// busyStates block casting unless a skill allows them.
const busyStates = model.StateStunned | model.StateSilenced | model.StateChanneling | model.StateCasting

// Definition is the immutable description of a skill.
type Definition struct {
	Name     string
	Cooldown time.Duration
	// Cast runs on every accepted cast. Init runs once when the skill is learned.
	Cast *effect.Chain
	Init *effect.Chain
	// AllowWhile lists the busy states the skill can be cast through.
	AllowWhile model.State
}

// Validate checks the definition for configuration errors.
func (d *Definition) Validate() error {
	if d.Name == "" {
		return errors.New("skill without name")
	}
	if d.Cooldown < 0 {
		return fmt.Errorf("skill %q: negative cooldown", d.Name)
	}
	if d.Cast.Empty() && d.Init.Empty() {
		return fmt.Errorf("skill %q: no cast or init chain", d.Name)
	}
	return nil
}

// Owners allocates buff owners and retracts their buffs.
type Owners interface {
	NewOwner() buff.Owner
	RetractAll(owner buff.Owner) int
}

// Instance is one caster's copy of a skill.
//
// Not safe for concurrent use; casts are issued from the engine goroutine.
type Instance struct {
	def    *Definition
	caster model.EntityID
	runner *effect.Runner
	owners Owners
	owner  buff.Owner

	current  *effect.CastContext
	passive  *effect.CastContext
	lastCast time.Duration
	hasCast  bool
}

// NewInstance creates an instance of def for caster.
func NewInstance(def *Definition, caster model.EntityID, runner *effect.Runner, owners Owners) *Instance {
	return &Instance{
		def:    def,
		caster: caster,
		runner: runner,
		owners: owners,
		owner:  owners.NewOwner(),
	}
}

// Def returns the skill definition.
func (i *Instance) Def() *Definition { return i.def }

// Name returns the skill name.
func (i *Instance) Name() string { return i.def.Name }

// Caster returns the entity owning the instance.
func (i *Instance) Caster() model.EntityID { return i.caster }

// Owner returns the buff owner recorded on buffs the instance applies.
func (i *Instance) Owner() buff.Owner { return i.owner }

// LastCast returns when the cooldown last started.
func (i *Instance) LastCast() (time.Duration, bool) { return i.lastCast, i.hasCast }

// Current returns the context of the cast in flight, if any.
func (i *Instance) Current() *effect.CastContext { return i.current }

// IsOnCooldown reports whether the skill cannot be cast yet at now.
func (i *Instance) IsOnCooldown(now time.Duration) bool {
	return i.CooldownRemaining(now) > 0
}

// CooldownRemaining returns the time left on the cooldown at now.
func (i *Instance) CooldownRemaining(now time.Duration) time.Duration {
	if !i.hasCast {
		return 0
	}
	return max(0, i.lastCast+i.def.Cooldown-now)
}

// Cast starts the cast chain. The previous cast of this instance, if still running,
// is cancelled. The cooldown starts when the chain commits, not here.
func (i *Instance) Cast(aim ...effect.CastOption) (*effect.CastContext, error) {
	env := i.runner.Env()
	if i.def.Cast.Empty() {
		return nil, fmt.Errorf("skill %q has no cast chain", i.def.Name)
	}
	if !env.World.Exists(i.caster) || env.World.IsDead(i.caster) {
		return nil, ErrCasterDead
	}
	if i.IsOnCooldown(env.Now()) {
		return nil, ErrOnCooldown
	}
	if busy := env.World.State(i.caster) & busyStates &^ i.def.AllowWhile; busy != 0 {
		return nil, ErrBusy
	}

	if i.current != nil {
		i.current.Cancel()
	}
	opts := append([]effect.CastOption{
		effect.WithSkill(i.def.Name),
		effect.WithOwner(i.owner),
		effect.WithCommitSink(i),
	}, aim...)
	cc := effect.NewCastContext(i.caster, opts...)
	i.current = cc

	slog.Debug("skill cast",
		"skill", i.def.Name,
		"caster", i.caster,
		"cast", cc.ID)

	i.runner.Start(i.def.Cast, cc, effect.Targets{i.caster}, func() {
		if i.current == cc {
			i.current = nil
		}
	})
	return cc, nil
}

// CastCommitted starts the cooldown. The context guarantees one call per cast.
func (i *Instance) CastCommitted(cc *effect.CastContext) {
	i.lastCast = i.runner.Env().Now()
	i.hasCast = true
	slog.Debug("skill committed",
		"skill", i.def.Name,
		"caster", i.caster,
		"cast", cc.ID,
		"cooldown", i.def.Cooldown)
}

// Init runs the init chain under a long-lived context that stays open until Teardown.
func (i *Instance) Init() {
	if i.def.Init.Empty() || i.passive != nil {
		return
	}
	i.passive = effect.NewCastContext(i.caster,
		effect.WithSkill(i.def.Name),
		effect.WithOwner(i.owner))
	i.runner.Start(i.def.Init, i.passive, effect.Targets{i.caster}, nil)
}

// Teardown cancels every context of the instance and removes every buff it applied.
func (i *Instance) Teardown() {
	if i.current != nil {
		i.current.Cancel()
		i.current = nil
	}
	if i.passive != nil {
		i.passive.Cancel()
		i.passive = nil
	}
	n := i.owners.RetractAll(i.owner)
	slog.Debug("skill torn down", "skill", i.def.Name, "caster", i.caster, "retracted", n)
}
