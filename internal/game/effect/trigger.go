package effect

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/model"
)

// EventKind names the bus event a trigger listens to.
type EventKind string

const (
	EventUnitDamaged   EventKind = "unit_damaged"
	EventUnitHealed    EventKind = "unit_healed"
	EventUnitDied      EventKind = "unit_died"
	EventBuffAdded     EventKind = "buff_added"
	EventBuffRemoved   EventKind = "buff_removed"
	EventCastCommitted EventKind = "cast_committed"
)

// Role picks one side of an event: the entity that caused it or the one it happened to.
type Role uint8

const (
	RoleAny Role = iota
	RoleSource
	RoleTarget
)

// ParseRole converts "any", "source" or "target" to Role.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(s) {
	case "", "any":
		return RoleAny, true
	case "source":
		return RoleSource, true
	case "target":
		return RoleTarget, true
	default:
		return 0, false
	}
}

// Trigger starts Chain under its cast context each time a matching event is published.
// A trigger already running under the context rejects new events until its run joins.
type Trigger struct {
	Event EventKind
	// When requires the caster to be this side of the event. RoleAny accepts all events.
	When Role
	// Emit selects which side of the event becomes the chain's targets. RoleAny passes both.
	Emit  Role
	Chain *Chain
	// Key identifies the trigger for the re-entrancy guard. Defaults to event and chain name.
	Key string
}

func (t Trigger) key() string {
	if t.Key != "" {
		return t.Key
	}
	name := ""
	if t.Chain != nil {
		name = t.Chain.Name
	}
	return string(t.Event) + "/" + name
}

// Bind subscribes the trigger on env's bus. The returned subscription is the only
// handle that removes it.
func (t Trigger) Bind(env *Env, cc *CastContext) (event.Subscription, error) {
	if env.runner == nil {
		return event.Subscription{}, errNoRunner
	}
	if env.Bus == nil {
		return event.Subscription{}, errors.New("trigger: env has no bus")
	}
	if t.Chain.Empty() {
		return event.Subscription{}, fmt.Errorf("trigger %s: missing chain", t.Event)
	}

	bus := env.Bus
	switch t.Event {
	case EventUnitDamaged:
		return event.Subscribe(bus, func(e event.UnitDamaged) { t.fire(env, cc, e.Source, e.Target) }), nil
	case EventUnitHealed:
		return event.Subscribe(bus, func(e event.UnitHealed) { t.fire(env, cc, e.Source, e.Target) }), nil
	case EventUnitDied:
		return event.Subscribe(bus, func(e event.UnitDied) { t.fire(env, cc, e.Killer, e.Unit) }), nil
	case EventBuffAdded:
		return event.Subscribe(bus, func(e event.BuffAdded) { t.fire(env, cc, e.Caster, e.Target) }), nil
	case EventBuffRemoved:
		return event.Subscribe(bus, func(e event.BuffRemoved) { t.fire(env, cc, e.Caster, e.Target) }), nil
	case EventCastCommitted:
		return event.Subscribe(bus, func(e event.CastCommitted) { t.fire(env, cc, e.Caster, e.Caster) }), nil
	default:
		return event.Subscription{}, fmt.Errorf("trigger: unknown event %q", t.Event)
	}
}

func (t Trigger) fire(env *Env, cc *CastContext, source, target model.EntityID) {
	if cc.Cancelled() {
		return
	}
	switch t.When {
	case RoleSource:
		if source != cc.Caster {
			return
		}
	case RoleTarget:
		if target != cc.Caster {
			return
		}
	}

	var targets Targets
	switch t.Emit {
	case RoleSource:
		targets = NewTargets(source)
	case RoleTarget:
		targets = NewTargets(target)
	default:
		targets = NewTargets(source, target)
	}
	if len(targets) == 0 {
		return
	}

	key := t.key()
	if !cc.Enter(key) {
		slog.Warn("trigger already running, event skipped",
			"trigger", key,
			"cast", cc.ID,
			"caster", cc.Caster)
		return
	}
	env.runner.Start(t.Chain, cc, targets, func() { cc.Leave(key) })
}
