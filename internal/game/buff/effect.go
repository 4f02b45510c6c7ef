package buff

import (
	"fmt"
	"time"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/stat"
	"github.com/udisondev/spellcore/internal/model"
)

// Effect is the behaviour behind a buff. Each buff instance owns its own Effect value,
// so implementations may keep per-instance state.
type Effect interface {
	OnApply(s *Scope)
	OnTick(s *Scope)
	OnRemove(s *Scope)
}

// Vitals is the health surface effects act on.
type Vitals interface {
	IsDead(id model.EntityID) bool
	Health(id model.EntityID) (cur, max int32)
	Damage(source, target model.EntityID, amount int32) (dealt int32, killed bool)
	Heal(source, target model.EntityID, amount int32) int32
	AddShield(target model.EntityID, amount int32) int32
}

// Modifiers installs and removes stat modifiers.
type Modifiers interface {
	ApplyModifier(id model.EntityID, m stat.Modifier) stat.Handle
	RemoveModifier(id model.EntityID, h stat.Handle) bool
	GetStat(id model.EntityID, s model.Stat) float64
}

// States toggles control flags on a unit.
type States interface {
	SetState(id model.EntityID, s model.State, on bool)
}

// Services bundles what buffs and their effects may touch. Nil members disable the
// effects that need them.
type Services struct {
	Vitals    Vitals
	Modifiers Modifiers
	States    States
	Bus       *event.Bus
	Now       func() time.Duration
}

func (s *Services) now() time.Duration {
	if s == nil || s.Now == nil {
		return 0
	}
	return s.Now()
}

// Scope is handed to every effect hook.
type Scope struct {
	Buff     *Buff
	Ledger   *Ledger
	Services *Services
}

// Target returns the entity carrying the buff.
func (s *Scope) Target() model.EntityID { return s.Buff.target }

// Caster returns the entity that applied the buff.
func (s *Scope) Caster() model.EntityID { return s.Buff.caster }

// Now returns the current simulation time.
func (s *Scope) Now() time.Duration { return s.Services.now() }

type noEffect struct{}

func (noEffect) OnApply(*Scope)  {}
func (noEffect) OnTick(*Scope)   {}
func (noEffect) OnRemove(*Scope) {}

// effectRegistry maps effect name to factory. Populated by init() in effects.go.
var effectRegistry = map[string]func(params map[string]string) (Effect, error){}

// RegisterEffect registers an effect factory by name.
func RegisterEffect(name string, factory func(params map[string]string) (Effect, error)) {
	effectRegistry[name] = factory
}

// CreateEffect creates an effect by name using the registered factory.
func CreateEffect(name string, params map[string]string) (Effect, error) {
	factory, ok := effectRegistry[name]
	if !ok {
		return nil, fmt.Errorf("unknown effect type: %s", name)
	}
	return factory(params)
}

// EffectNames returns the registered effect names in no particular order.
func EffectNames() []string {
	names := make([]string, 0, len(effectRegistry))
	for n := range effectRegistry {
		names = append(names, n)
	}
	return names
}
