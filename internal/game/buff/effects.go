package buff

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/stat"
	"github.com/udisondev/spellcore/internal/model"
)

func init() {
	RegisterEffect("StatModifier", NewStatModifierEffect)
	RegisterEffect("HealOverTime", NewHealOverTimeEffect)
	RegisterEffect("DamageOverTime", NewDamageOverTimeEffect)
	RegisterEffect("Shield", NewShieldEffect)
	RegisterEffect("Stun", stateFactory(model.StateStunned))
	RegisterEffect("Silence", stateFactory(model.StateSilenced))
	RegisterEffect("Root", stateFactory(model.StateRooted))
}

func parseFloat(params map[string]string, key string) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	return v, nil
}

// StatModifierEffect installs stat modifiers for the buff's lifetime.
// Params: "stat", "kind" (flat|percent), "value". Several stats may be given as
// "stat=attack,defense" with matching comma separated values.
type StatModifierEffect struct {
	mods    []stat.Modifier
	handles []stat.Handle
}

func NewStatModifierEffect(params map[string]string) (Effect, error) {
	stats := strings.Split(params["stat"], ",")
	values := strings.Split(params["value"], ",")
	if len(stats) != len(values) {
		return nil, fmt.Errorf("stat/value count mismatch: %d != %d", len(stats), len(values))
	}
	kind := stat.ParseKind(params["kind"])

	e := &StatModifierEffect{}
	for i, s := range stats {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, fmt.Errorf("param stat: empty")
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(values[i]), 64)
		if err != nil {
			return nil, fmt.Errorf("param value: %w", err)
		}
		e.mods = append(e.mods, stat.Modifier{Stat: model.Stat(s), Kind: kind, Value: v})
	}
	return e, nil
}

// Modifiers returns the modifiers the effect installs.
func (e *StatModifierEffect) Modifiers() []stat.Modifier { return e.mods }

func (e *StatModifierEffect) OnApply(s *Scope) {
	if s.Services == nil || s.Services.Modifiers == nil {
		return
	}
	for _, m := range e.mods {
		e.handles = append(e.handles, s.Services.Modifiers.ApplyModifier(s.Target(), m))
	}
}

func (e *StatModifierEffect) OnTick(*Scope) {}

func (e *StatModifierEffect) OnRemove(s *Scope) {
	if s.Services == nil || s.Services.Modifiers == nil {
		return
	}
	for _, h := range e.handles {
		s.Services.Modifiers.RemoveModifier(s.Target(), h)
	}
	e.handles = nil
}

// overTime splits each tick's fractional amount into whole points and a carried residual.
type overTime struct {
	amount   float64 // flat per tick
	percent  float64 // fraction of max health per tick
	residual float64
}

func parseOverTime(params map[string]string) (overTime, error) {
	amount, err := parseFloat(params, "amount")
	if err != nil {
		return overTime{}, err
	}
	percent, err := parseFloat(params, "percent")
	if err != nil {
		return overTime{}, err
	}
	if amount < 0 || percent < 0 {
		return overTime{}, fmt.Errorf("negative amount")
	}
	return overTime{amount: amount, percent: percent}, nil
}

func (o *overTime) next(maxHealth int32) int32 {
	total := o.amount + o.percent*float64(maxHealth) + o.residual
	whole := math.Floor(total)
	o.residual = total - whole
	if whole > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(whole)
}

// HealOverTimeEffect heals the target every tick.
// Params: "amount" (flat per tick), "percent" (fraction of max health per tick).
type HealOverTimeEffect struct {
	overTime
}

func NewHealOverTimeEffect(params map[string]string) (Effect, error) {
	o, err := parseOverTime(params)
	if err != nil {
		return nil, err
	}
	return &HealOverTimeEffect{overTime: o}, nil
}

func (e *HealOverTimeEffect) OnApply(*Scope) {}

func (e *HealOverTimeEffect) OnTick(s *Scope) {
	v := s.Services.Vitals
	if v == nil || v.IsDead(s.Target()) {
		return
	}
	_, maxHP := v.Health(s.Target())
	amount := e.next(maxHP)
	if amount <= 0 {
		return
	}
	healed := v.Heal(s.Caster(), s.Target(), amount)
	event.Publish(s.Services.Bus, event.UnitHealed{
		CastID: s.Buff.castID,
		Source: s.Caster(),
		Target: s.Target(),
		Amount: healed,
		At:     s.Now(),
	})
	slog.Debug("hot tick", "buff", s.Buff.Name(), "target", s.Target(), "healed", healed)
}

func (e *HealOverTimeEffect) OnRemove(*Scope) {}

// DamageOverTimeEffect damages the target every tick.
// Params: "amount", "percent", "can_kill" (default true).
type DamageOverTimeEffect struct {
	overTime
	canKill bool
}

func NewDamageOverTimeEffect(params map[string]string) (Effect, error) {
	o, err := parseOverTime(params)
	if err != nil {
		return nil, err
	}
	canKill := true
	if raw, ok := params["can_kill"]; ok && raw != "" {
		canKill, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("param can_kill: %w", err)
		}
	}
	return &DamageOverTimeEffect{overTime: o, canKill: canKill}, nil
}

func (e *DamageOverTimeEffect) OnApply(*Scope) {}

func (e *DamageOverTimeEffect) OnTick(s *Scope) {
	v := s.Services.Vitals
	if v == nil || v.IsDead(s.Target()) {
		return
	}
	cur, maxHP := v.Health(s.Target())
	amount := e.next(maxHP)
	if !e.canKill && amount >= cur {
		amount = cur - 1
	}
	if amount <= 0 {
		return
	}
	dealt, killed := v.Damage(s.Caster(), s.Target(), amount)
	event.Publish(s.Services.Bus, event.UnitDamaged{
		CastID: s.Buff.castID,
		Source: s.Caster(),
		Target: s.Target(),
		Amount: dealt,
		Killed: killed,
		At:     s.Now(),
	})
	slog.Debug("dot tick", "buff", s.Buff.Name(), "target", s.Target(), "dealt", dealt, "killed", killed)
}

func (e *DamageOverTimeEffect) OnRemove(*Scope) {}

// ShieldEffect grants an absorb shield and takes back what is left of it on removal.
// Params: "amount".
type ShieldEffect struct {
	amount  int32
	granted int32
}

func NewShieldEffect(params map[string]string) (Effect, error) {
	amount, err := parseFloat(params, "amount")
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("param amount: must be positive")
	}
	return &ShieldEffect{amount: int32(amount)}, nil
}

func (e *ShieldEffect) OnApply(s *Scope) {
	if s.Services.Vitals == nil {
		return
	}
	e.granted = s.Services.Vitals.AddShield(s.Target(), e.amount)
}

func (e *ShieldEffect) OnTick(*Scope) {}

func (e *ShieldEffect) OnRemove(s *Scope) {
	if s.Services.Vitals == nil || e.granted == 0 {
		return
	}
	s.Services.Vitals.AddShield(s.Target(), -e.granted)
	e.granted = 0
}

// StateEffect holds a control flag (stun, silence, root) while the buff is active.
type StateEffect struct {
	state model.State
}

func stateFactory(st model.State) func(map[string]string) (Effect, error) {
	return func(map[string]string) (Effect, error) {
		return &StateEffect{state: st}, nil
	}
}

// State returns the flag the effect holds.
func (e *StateEffect) State() model.State { return e.state }

func (e *StateEffect) OnApply(s *Scope) {
	if s.Services.States != nil {
		s.Services.States.SetState(s.Target(), e.state, true)
	}
}

func (e *StateEffect) OnTick(*Scope) {}

func (e *StateEffect) OnRemove(s *Scope) {
	if s.Services.States == nil {
		return
	}
	// Another buff may still hold the same flag.
	if s.Ledger != nil {
		for _, other := range s.Ledger.buffs {
			if other == s.Buff {
				continue
			}
			if se, ok := other.effect.(*StateEffect); ok && se.state == e.state {
				return
			}
		}
	}
	s.Services.States.SetState(s.Target(), e.state, false)
}
