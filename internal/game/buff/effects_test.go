package buff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/model"
)

func TestHealOverTime_CarriesResidual(t *testing.T) {
	f := newFixture(t)
	u := f.unit(t, 1, 100)
	u.SetHealth(50)
	def := f.define(t, Definition{
		Name:         "regen",
		Duration:     10 * time.Second,
		TickInterval: time.Second,
		Effect:       "HealOverTime",
		Params:       map[string]string{"amount": "1.5"},
	})

	var healed []int32
	event.Subscribe(f.bus, func(e event.UnitHealed) { healed = append(healed, e.Amount) })

	l := f.mgr.Ledger(1)
	l.AddBuff(New(def, 2))
	for range 4 {
		l.Update(time.Second)
	}

	cur, _ := u.Health()
	if cur != 56 {
		t.Fatalf("health = %d, want 56", cur)
	}
	assert.Equal(t, []int32{1, 2, 1, 2}, healed)
}

func TestHealOverTime_PercentOfMax(t *testing.T) {
	f := newFixture(t)
	u := f.unit(t, 1, 200)
	u.SetHealth(10)
	def := f.define(t, Definition{
		Name:         "rejuv",
		Duration:     time.Minute,
		TickInterval: time.Second,
		Effect:       "HealOverTime",
		Params:       map[string]string{"percent": "0.25"},
	})

	l := f.mgr.Ledger(1)
	l.AddBuff(New(def, 1))
	l.Update(2 * time.Second)

	cur, _ := u.Health()
	assert.Equal(t, int32(110), cur)
}

func TestDamageOverTime_CannotKill(t *testing.T) {
	f := newFixture(t)
	u := f.unit(t, 1, 100)
	u.SetHealth(5)
	def := f.define(t, Definition{
		Name:         "bleed",
		Duration:     time.Minute,
		TickInterval: time.Second,
		Effect:       "DamageOverTime",
		Params:       map[string]string{"amount": "10", "can_kill": "false"},
	})

	l := f.mgr.Ledger(1)
	b := New(def, 2)
	l.AddBuff(b)
	l.Update(3 * time.Second)

	cur, _ := u.Health()
	assert.Equal(t, int32(1), cur)
	assert.True(t, b.Active())
}

func TestDamageOverTime_KillClearsLedger(t *testing.T) {
	f := newFixture(t)
	u := f.unit(t, 1, 100)
	u.SetHealth(15)
	dot := f.define(t, Definition{
		Name:         "poison",
		Duration:     time.Minute,
		TickInterval: time.Second,
		Effect:       "DamageOverTime",
		Params:       map[string]string{"amount": "10"},
	})
	other := f.define(t, Definition{Name: "other", Duration: time.Minute})

	var died int
	event.Subscribe(f.bus, func(event.UnitDied) { died++ })

	l := f.mgr.Ledger(1)
	l.AddBuff(New(other, 0))
	l.AddBuff(New(dot, 2))
	l.Update(5 * time.Second)

	assert.True(t, u.IsDead())
	assert.Equal(t, 1, died)
	assert.Equal(t, 0, l.Len())
}

func TestShieldEffect_RemovesLeftover(t *testing.T) {
	f := newFixture(t)
	u := f.unit(t, 1, 100)
	def := f.define(t, Definition{
		Name:     "barrier",
		Duration: 5 * time.Second,
		Effect:   "Shield",
		Params:   map[string]string{"amount": "30"},
	})

	l := f.mgr.Ledger(1)
	l.AddBuff(New(def, 1))
	assert.Equal(t, int32(30), u.Shield())

	f.world.Damage(2, 1, 10)
	assert.Equal(t, int32(20), u.Shield())
	cur, _ := u.Health()
	assert.Equal(t, int32(100), cur)

	l.Update(5 * time.Second)
	assert.Equal(t, int32(0), u.Shield())
}

func TestStatModifierEffect(t *testing.T) {
	f := newFixture(t)
	u := f.unit(t, 1, 100)
	u.SetBaseStat(model.StatAttack, 10)
	def := f.define(t, Definition{
		Name:     "might",
		Duration: time.Second,
		Effect:   "StatModifier",
		Params:   map[string]string{"stat": "attack,defense", "kind": "flat", "value": "5,2"},
	})

	l := f.mgr.Ledger(1)
	l.AddBuff(New(def, 1))
	assert.InDelta(t, 15, f.stats.GetStat(1, model.StatAttack), 1e-9)
	assert.InDelta(t, 2, f.stats.GetStat(1, model.StatDefense), 1e-9)

	l.Update(time.Second)
	assert.InDelta(t, 10, f.stats.GetStat(1, model.StatAttack), 1e-9)
	assert.Equal(t, 0, f.stats.Count(1))
}

func TestStatModifierEffect_BadParams(t *testing.T) {
	_, err := NewStatModifierEffect(map[string]string{"stat": "attack,defense", "value": "1"})
	require.Error(t, err)
	_, err = NewStatModifierEffect(map[string]string{"stat": "attack", "value": "x"})
	require.Error(t, err)
}

func TestDefinition_NewEffectFallsBackOnBadParams(t *testing.T) {
	d := &Definition{Name: "broken", Effect: "StatModifier", Params: map[string]string{"stat": "attack", "value": "x"}}
	assert.IsType(t, noEffect{}, d.newEffect())
}

func TestStateEffect_OverlappingStuns(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	short := f.define(t, Definition{Name: "bash", Duration: time.Second, Effect: "Stun"})
	long := f.define(t, Definition{Name: "slam", Duration: 3 * time.Second, Effect: "Stun"})

	l := f.mgr.Ledger(1)
	l.AddBuff(New(short, 2))
	l.AddBuff(New(long, 2))
	assert.True(t, f.world.State(1).Has(model.StateStunned))

	l.Update(time.Second)
	assert.True(t, f.world.State(1).Has(model.StateStunned), "second stun still holds")

	l.Update(2 * time.Second)
	assert.False(t, f.world.State(1).Has(model.StateStunned))
}
