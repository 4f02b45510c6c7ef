package data

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/model"
)

// Factories build one operator from node params. Read errors are collected by Params;
// a factory returns an error only for constraints Params cannot express.
type (
	SelectorFactory  func(p *Params) (effect.Selector, error)
	PredicateFactory func(p *Params) (effect.Predicate, error)
	ActionFactory    func(p *Params) (effect.Action, error)
)

var (
	selectorRegistry  = map[string]SelectorFactory{}
	predicateRegistry = map[string]PredicateFactory{}
	actionRegistry    = map[string]ActionFactory{}
)

// RegisterSelector registers a target operator type.
func RegisterSelector(name string, f SelectorFactory) { selectorRegistry[name] = f }

// RegisterPredicate registers a condition operator type.
func RegisterPredicate(name string, f PredicateFactory) { predicateRegistry[name] = f }

// RegisterAction registers a mechanic operator type.
func RegisterAction(name string, f ActionFactory) { actionRegistry[name] = f }

// OperatorTypes returns the registered type names of a node kind, sorted.
func OperatorTypes(kind string) []string {
	var names []string
	switch kind {
	case kindTarget:
		for n := range selectorRegistry {
			names = append(names, n)
		}
	case kindCondition:
		for n := range predicateRegistry {
			names = append(names, n)
		}
	case kindMechanic:
		for n := range actionRegistry {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

const (
	kindTarget    = "target"
	kindCondition = "condition"
	kindMechanic  = "mechanic"
)

// buildOp wraps the registered factory output into the operator of the node kind.
// "augment" on targets and "negate" on conditions are handled here for every type.
func buildOp(kind, typ string, p *Params) (effect.Op, error) {
	switch kind {
	case kindTarget:
		f, ok := selectorRegistry[typ]
		if !ok {
			return nil, fmt.Errorf("%s: unknown target type %q", p.Path(), typ)
		}
		augment := p.Bool("augment", false)
		sel, err := f(p)
		if err != nil {
			return nil, err
		}
		return effect.Target{Selector: sel, Augment: augment}, nil
	case kindCondition:
		f, ok := predicateRegistry[typ]
		if !ok {
			return nil, fmt.Errorf("%s: unknown condition type %q", p.Path(), typ)
		}
		negate := p.Bool("negate", false)
		pred, err := f(p)
		if err != nil {
			return nil, err
		}
		if negate {
			pred = effect.Not{Predicate: pred}
		}
		return effect.Condition{Predicate: pred}, nil
	case kindMechanic:
		f, ok := actionRegistry[typ]
		if !ok {
			return nil, fmt.Errorf("%s: unknown mechanic type %q", p.Path(), typ)
		}
		act, err := f(p)
		if err != nil {
			return nil, err
		}
		return effect.Mechanic{Action: act}, nil
	default:
		return nil, fmt.Errorf("%s: unknown node kind %q", p.Path(), kind)
	}
}

const defaultMask = model.LayerUnit | model.LayerSummon

func init() {
	RegisterSelector("self", func(*Params) (effect.Selector, error) { return effect.Self{}, nil })
	RegisterSelector("sphere", func(p *Params) (effect.Selector, error) {
		return effect.Sphere{
			Radius:       p.Float("radius", 0),
			Mask:         p.Mask("mask", defaultMask),
			AroundCaster: p.Bool("around_caster", false),
		}, nil
	})
	RegisterSelector("cone", func(p *Params) (effect.Selector, error) {
		return effect.Cone{
			Radius:    p.Float("radius", 0),
			HalfAngle: mgl64.DegToRad(p.Float("half_angle", 45)),
			Mask:      p.Mask("mask", defaultMask),
		}, nil
	})
	RegisterSelector("line", func(p *Params) (effect.Selector, error) {
		return effect.Line{
			Length: p.Float("length", 0),
			Width:  p.Float("width", 1),
			Mask:   p.Mask("mask", defaultMask),
		}, nil
	})
	RegisterSelector("smart_pick", func(p *Params) (effect.Selector, error) {
		return effect.SmartPick{
			Radius:         p.Float("radius", 0),
			Count:          p.Int("count", 1),
			Relation:       p.Relation("relation", model.RelationEnemy),
			WeightDistance: p.Float("weight_distance", 1),
			WeightHealth:   p.Float("weight_health", 0),
			WeightThreat:   p.Float("weight_threat", 0),
			Mask:           p.Mask("mask", defaultMask),
		}, nil
	})

	RegisterPredicate("team", func(p *Params) (effect.Predicate, error) {
		return effect.TeamFilter{Relation: p.Relation("relation", model.RelationEnemy)}, nil
	})
	RegisterPredicate("alive", func(p *Params) (effect.Predicate, error) {
		return effect.AliveFilter{Dead: p.Bool("dead", false)}, nil
	})
	RegisterPredicate("has_buff", func(p *Params) (effect.Predicate, error) {
		return effect.HasBuff{Def: p.Buff("buff"), FromCaster: p.Bool("from_caster", false)}, nil
	})
	RegisterPredicate("health_below", func(p *Params) (effect.Predicate, error) {
		return effect.HealthBelow{Fraction: p.Float("fraction", 0.5)}, nil
	})
	RegisterPredicate("in_range", func(p *Params) (effect.Predicate, error) {
		return effect.InRange{Min: p.Float("min", 0), Max: p.Float("max", 0)}, nil
	})
	RegisterPredicate("limit", func(p *Params) (effect.Predicate, error) {
		return effect.Limit{N: p.Int("count", 1)}, nil
	})

	RegisterAction("damage", func(p *Params) (effect.Action, error) {
		return effect.Damage{Amount: p.Float("amount", 0), Scaling: p.Float("scaling", 0)}, nil
	})
	RegisterAction("heal", func(p *Params) (effect.Action, error) {
		return effect.Heal{Amount: p.Float("amount", 0), Scaling: p.Float("scaling", 0)}, nil
	})
	RegisterAction("shield", func(p *Params) (effect.Action, error) {
		return effect.Shield{Amount: int32(p.Int("amount", 0))}, nil
	})
	RegisterAction("delay", func(p *Params) (effect.Action, error) {
		return effect.Delay{Duration: p.Duration("duration", 0)}, nil
	})
	RegisterAction("channel", func(p *Params) (effect.Action, error) {
		return effect.Channel{Duration: p.Duration("duration", 0), Modifiers: p.Modifiers()}, nil
	})
	RegisterAction("projectile", func(p *Params) (effect.Action, error) {
		return effect.SpawnProjectile{
			Speed:     p.Float("speed", 10),
			Range:     p.Float("range", 20),
			Radius:    p.Float("radius", 0.5),
			Visual:    p.String("visual", ""),
			Mask:      p.Mask("mask", defaultMask),
			AtTargets: p.Bool("at_targets", false),
			OnHit:     p.Chain("on_hit", true),
		}, nil
	})
	RegisterAction("area", func(p *Params) (effect.Action, error) {
		a := effect.SpawnArea{
			Radius:   p.Float("radius", 0),
			Duration: p.Duration("duration", 0),
			Interval: p.Duration("interval", 0),
			Mask:     p.Mask("mask", defaultMask),
			Visual:   p.String("visual", ""),
			AtCaster: p.Bool("at_caster", false),
			Pulse:    p.Chain("pulse", true),
		}
		if a.Interval <= 0 {
			return nil, fmt.Errorf("%s: area interval must be positive", p.Path())
		}
		return a, nil
	})
	RegisterAction("summon", func(p *Params) (effect.Action, error) {
		return effect.Summon{Template: p.Require("template")}, nil
	})
	RegisterAction("threat", func(p *Params) (effect.Action, error) {
		return effect.AddThreat{Amount: p.Float("amount", 0)}, nil
	})
	RegisterAction("warp", func(p *Params) (effect.Action, error) {
		return effect.Warp{Offset: p.Float("offset", 1)}, nil
	})
	RegisterAction("dash", func(p *Params) (effect.Action, error) {
		return effect.Dash{Distance: p.Float("distance", 0)}, nil
	})
	RegisterAction("apply_buff", func(p *Params) (effect.Action, error) {
		return effect.ApplyBuff{Def: p.Buff("buff")}, nil
	})
	RegisterAction("remove_buff", func(p *Params) (effect.Action, error) {
		return effect.RemoveBuff{Def: p.Buff("buff"), FromCaster: p.Bool("from_caster", false)}, nil
	})
	RegisterAction("play_effect", func(p *Params) (effect.Action, error) {
		return effect.PlayEffect{
			Visual:   p.String("visual", ""),
			Sound:    p.String("sound", ""),
			AtCaster: p.Bool("at_caster", false),
		}, nil
	})
	RegisterAction("run_chain", func(p *Params) (effect.Action, error) {
		return effect.RunChain{Chain: p.Chain("run", true)}, nil
	})
	RegisterAction("listen", func(p *Params) (effect.Action, error) {
		kind := effect.EventKind(p.Require("event"))
		switch kind {
		case "", effect.EventUnitDamaged, effect.EventUnitHealed, effect.EventUnitDied,
			effect.EventBuffAdded, effect.EventBuffRemoved, effect.EventCastCommitted:
		default:
			return nil, fmt.Errorf("%s: unknown trigger event %q", p.Path(), kind)
		}
		return effect.Listen{Trigger: effect.Trigger{
			Event: kind,
			When:  p.Role("when", effect.RoleAny),
			Emit:  p.Role("emit", effect.RoleAny),
			Chain: p.Chain("on_event", true),
			Key:   p.String("key", ""),
		}}, nil
	})
}
