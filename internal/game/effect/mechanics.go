package effect

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/game/stat"
	"github.com/udisondev/spellcore/internal/model"
)

var errNoRunner = errors.New("env is not attached to a runner")

func (e *Env) scaled(caster model.EntityID, base, scaling float64, s model.Stat) int32 {
	v := base
	if scaling != 0 && e.Stats != nil {
		v += scaling * e.Stats.GetStat(caster, s)
	}
	if v <= 0 {
		return 0
	}
	return int32(math.Min(math.Round(v), math.MaxInt32))
}

// Damage hits every live target. Amount is increased by Scaling × caster attack.
// Outputs the targets that were hit.
type Damage struct {
	Amount  float64
	Scaling float64
}

func (m Damage) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	amount := env.scaled(cc.Caster, m.Amount, m.Scaling, model.StatAttack)
	hit := env.alive(in)
	for _, id := range hit {
		dealt, killed := env.Vitals.Damage(cc.Caster, id, amount)
		event.Publish(env.Bus, event.UnitDamaged{
			CastID: cc.ID,
			Source: cc.Caster,
			Target: id,
			Amount: dealt,
			Killed: killed,
			At:     env.Now(),
		})
	}
	return Ready(hit), nil
}

// Heal restores health on every live target. Amount is increased by Scaling × caster
// healing power.
type Heal struct {
	Amount  float64
	Scaling float64
}

func (m Heal) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	amount := env.scaled(cc.Caster, m.Amount, m.Scaling, model.StatHealingPower)
	hit := env.alive(in)
	for _, id := range hit {
		healed := env.Vitals.Heal(cc.Caster, id, amount)
		event.Publish(env.Bus, event.UnitHealed{
			CastID: cc.ID,
			Source: cc.Caster,
			Target: id,
			Amount: healed,
			At:     env.Now(),
		})
	}
	return Ready(hit), nil
}

// Shield adds an absorb pool to every live target until it is consumed.
// Use a buff with the Shield effect for a timed shield.
type Shield struct {
	Amount int32
}

func (m Shield) Begin(env *Env, _ *CastContext, in Targets) (Task, error) {
	hit := env.alive(in)
	for _, id := range hit {
		env.Vitals.AddShield(id, m.Amount)
	}
	return Ready(hit), nil
}

// Delay suspends for Duration and passes its input on unchanged.
type Delay struct {
	Duration time.Duration
}

func (m Delay) Begin(env *Env, _ *CastContext, in Targets) (Task, error) {
	return WaitUntil(env.Now()+m.Duration, in), nil
}

// Channel holds the caster in the channeling state for Duration, with Modifiers
// installed on it. It completes early, with no output, when the cast is cancelled or
// the caster dies. The state and modifiers are removed on every path.
type Channel struct {
	Duration  time.Duration
	Modifiers []stat.Modifier
}

func (m Channel) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	if env.World.IsDead(cc.Caster) {
		return Ready(nil), nil
	}
	t := &channelTask{
		caster: cc.Caster,
		until:  env.Now() + m.Duration,
		out:    in,
	}
	env.World.SetState(cc.Caster, model.StateChanneling, true)
	if env.Stats != nil {
		for _, mod := range m.Modifiers {
			t.handles = append(t.handles, env.Stats.ApplyModifier(cc.Caster, mod))
		}
	}
	return t, nil
}

type channelTask struct {
	caster   model.EntityID
	until    time.Duration
	out      Targets
	handles  []stat.Handle
	released bool
}

func (t *channelTask) Poll(env *Env, cc *CastContext) (Targets, bool) {
	if cc.Cancelled() || env.World.IsDead(t.caster) {
		t.release(env)
		return nil, true
	}
	if env.Now() < t.until {
		return nil, false
	}
	t.release(env)
	return t.out, true
}

func (t *channelTask) Abort(env *Env, _ *CastContext) {
	t.release(env)
}

func (t *channelTask) release(env *Env) {
	if t.released {
		return
	}
	t.released = true
	env.World.SetState(t.caster, model.StateChanneling, false)
	for _, h := range t.handles {
		env.Stats.RemoveModifier(t.caster, h)
	}
	t.handles = nil
}

// SpawnProjectile launches projectiles from the caster and returns at once.
// With AtTargets one projectile flies toward each live target, otherwise one flies
// along the aim direction. OnHit runs as a new chain under the same cast for every hit.
type SpawnProjectile struct {
	Speed     float64
	Range     float64
	Radius    float64
	Visual    string
	Mask      model.Layer
	AtTargets bool
	OnHit     *Chain
}

func (m SpawnProjectile) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	if env.runner == nil {
		return nil, errNoRunner
	}
	if m.Speed <= 0 || m.Range <= 0 {
		return nil, fmt.Errorf("projectile speed and range must be positive")
	}
	origin, ok := env.World.Position(cc.Caster)
	if !ok {
		return Ready(nil), nil
	}

	var dirs []mgl64.Vec3
	if m.AtTargets {
		for _, id := range env.alive(in.Without(cc.Caster)) {
			pos, ok := env.World.Position(id)
			if !ok {
				continue
			}
			if d := pos.Sub(origin); d.Len() > 0 {
				dirs = append(dirs, d.Normalize())
			}
		}
	} else {
		dirs = append(dirs, env.direction(cc))
	}

	for _, dir := range dirs {
		p := env.Presenter.SpawnProjectile(model.ProjectileSpec{
			Owner:     cc.Caster,
			Origin:    origin,
			Direction: dir,
			Speed:     m.Speed,
			Range:     m.Range,
			Radius:    m.Radius,
			Mask:      maskOr(m.Mask),
			Visual:    m.Visual,
		})
		if p == nil || m.OnHit.Empty() {
			continue
		}
		runner, chain := env.runner, m.OnHit
		p.OnHit(func(id model.EntityID) {
			if cc.Cancelled() {
				return
			}
			runner.Start(chain, cc, Targets{id}, nil)
		})
	}
	return Ready(in), nil
}

// SpawnArea places a pulsing area and returns at once. Every Interval for Duration,
// units inside Radius are handed to Pulse as a new chain under the same cast.
// The area stops when the cast is cancelled.
type SpawnArea struct {
	Radius   float64
	Duration time.Duration
	Interval time.Duration
	Mask     model.Layer
	Visual   string
	AtCaster bool
	Pulse    *Chain
}

func (m SpawnArea) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	if env.runner == nil {
		return nil, errNoRunner
	}
	if m.Interval <= 0 {
		return nil, fmt.Errorf("area interval must be positive")
	}
	center, ok := env.origin(cc)
	if m.AtCaster {
		center, ok = env.World.Position(cc.Caster)
	}
	if !ok {
		return Ready(nil), nil
	}
	if m.Visual != "" {
		env.Presenter.PlayEffect(m.Visual, center)
	}
	now := env.Now()
	env.runner.Schedule(cc, &areaTask{
		area:   m,
		center: center,
		next:   now,
		until:  now + m.Duration,
	})
	return Ready(in), nil
}

type areaTask struct {
	area   SpawnArea
	center mgl64.Vec3
	next   time.Duration
	until  time.Duration
}

func (t *areaTask) Poll(env *Env, cc *CastContext) (Targets, bool) {
	if cc.Cancelled() {
		return nil, true
	}
	now := env.Now()
	for t.next <= now && t.next <= t.until {
		targets := NewTargets(env.World.OverlapSphere(t.center, t.area.Radius, maskOr(t.area.Mask))...)
		if len(targets) > 0 && !t.area.Pulse.Empty() {
			env.runner.Start(t.area.Pulse, cc, targets, nil)
		}
		t.next += t.area.Interval
	}
	return nil, t.next > t.until
}

// Summon spawns a unit of the caster's team at the aim point (or the caster) and
// outputs it.
type Summon struct {
	Template string
}

func (m Summon) Begin(env *Env, cc *CastContext, _ Targets) (Task, error) {
	at, ok := env.origin(cc)
	if !ok {
		return Ready(nil), nil
	}
	id := env.Presenter.SpawnEntity(m.Template, env.World.Team(cc.Caster), at)
	return Ready(NewTargets(id)), nil
}

// AddThreat makes every live target hate the caster by Amount.
type AddThreat struct {
	Amount float64
}

func (m AddThreat) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	hit := env.alive(in)
	for _, id := range hit {
		env.Threat.AddThreat(id, cc.Caster, m.Amount)
	}
	return Ready(hit), nil
}

// Warp teleports the caster next to the first live target, Offset units short of it.
// Outputs that target only.
type Warp struct {
	Offset float64
}

func (m Warp) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	target := env.alive(in.Without(cc.Caster)).First()
	if !target.Valid() {
		return Ready(nil), nil
	}
	from, ok := env.World.Position(cc.Caster)
	to, ok2 := env.World.Position(target)
	if !ok || !ok2 {
		return Ready(nil), nil
	}
	dest := to
	if d := to.Sub(from); d.Len() > m.Offset {
		dest = to.Sub(d.Normalize().Mul(m.Offset))
	}
	env.World.Warp(cc.Caster, dest)
	return Ready(Targets{target}), nil
}

// Dash moves the caster Distance along the aim direction. Outputs its input plus the caster.
type Dash struct {
	Distance float64
}

func (m Dash) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	from, ok := env.World.Position(cc.Caster)
	if !ok || env.World.IsDead(cc.Caster) {
		return Ready(in), nil
	}
	env.World.Warp(cc.Caster, from.Add(env.direction(cc).Mul(m.Distance)))
	return Ready(in.Union(Targets{cc.Caster})), nil
}

// ApplyBuff applies a fresh instance of Def to every live target through the buff
// manager, owned by the cast's owner. Outputs the targets that accepted it.
type ApplyBuff struct {
	Def *buff.Definition
}

func (m ApplyBuff) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	if m.Def == nil {
		return nil, fmt.Errorf("apply buff: missing definition")
	}
	applied := make(Targets, 0, len(in))
	for _, id := range env.alive(in) {
		b := buff.New(m.Def, cc.Caster).WithCast(cc.ID)
		if env.Buffs.Manage(cc.Owner, id, b, true) {
			applied = append(applied, id)
		}
	}
	return Ready(applied), nil
}

// RemoveBuff dispels Def from every target (only the caster's instances with FromCaster).
type RemoveBuff struct {
	Def        *buff.Definition
	FromCaster bool
}

func (m RemoveBuff) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	if m.Def == nil {
		return nil, fmt.Errorf("remove buff: missing definition")
	}
	caster := model.EntityID(0)
	if m.FromCaster {
		caster = cc.Caster
	}
	for _, id := range in {
		env.Buffs.Dispel(id, m.Def.ID, caster)
	}
	return Ready(in), nil
}

// PlayEffect plays a visual and/or sound at every target, or at the caster when AtCaster is set.
type PlayEffect struct {
	Visual   string
	Sound    string
	AtCaster bool
}

func (m PlayEffect) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	at := in
	if m.AtCaster {
		at = Targets{cc.Caster}
	}
	for _, id := range at {
		pos, ok := env.World.Position(id)
		if !ok {
			continue
		}
		if m.Visual != "" {
			env.Presenter.PlayEffect(m.Visual, pos)
		}
		if m.Sound != "" {
			env.Presenter.PlaySound(m.Sound, pos)
		}
	}
	return Ready(in), nil
}

// RunChain starts Chain on its input under the same cast and suspends until it joins.
type RunChain struct {
	Chain *Chain
}

func (m RunChain) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	if env.runner == nil {
		return nil, errNoRunner
	}
	if m.Chain.Empty() {
		return nil, fmt.Errorf("run chain: missing chain")
	}
	t := &joinTask{out: in}
	env.runner.Start(m.Chain, cc, in, func() { t.joined = true })
	return t, nil
}

type joinTask struct {
	out    Targets
	joined bool
}

func (t *joinTask) Poll(*Env, *CastContext) (Targets, bool) {
	return t.out, t.joined
}

// Listen binds Trigger for the lifetime of the cast. Subscriptions are released
// when the cast is cancelled.
type Listen struct {
	Trigger Trigger
}

func (m Listen) Begin(env *Env, cc *CastContext, in Targets) (Task, error) {
	sub, err := m.Trigger.Bind(env, cc)
	if err != nil {
		return nil, err
	}
	cc.track(sub)
	slog.Debug("trigger bound", "event", m.Trigger.Event, "caster", cc.Caster, "skill", cc.Skill)
	return Ready(in), nil
}
