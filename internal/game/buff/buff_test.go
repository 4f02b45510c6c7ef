package buff

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/stat"
	"github.com/udisondev/spellcore/internal/model"
	"github.com/udisondev/spellcore/internal/world"
)

// countingEffect records hook calls.
type countingEffect struct {
	applied, ticks, removed int
}

func (e *countingEffect) OnApply(*Scope)  { e.applied++ }
func (e *countingEffect) OnTick(*Scope)   { e.ticks++ }
func (e *countingEffect) OnRemove(*Scope) { e.removed++ }

type fixture struct {
	world *world.World
	stats *stat.Service
	bus   *event.Bus
	reg   *Registry
	mgr   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bus := event.NewBus()
	w := world.New(world.WithBus(bus))
	stats := stat.NewService(w)
	return &fixture{
		world: w,
		stats: stats,
		bus:   bus,
		reg:   NewRegistry(),
		mgr: NewManager(Services{
			Vitals:    w,
			Modifiers: stats,
			States:    w,
			Bus:       bus,
		}),
	}
}

func (f *fixture) unit(t *testing.T, id model.EntityID, maxHP int32) *model.Unit {
	t.Helper()
	u := model.NewUnit(id, "unit", model.TeamPlayers, mgl64.Vec3{float64(id), 0, 0}, maxHP)
	require.NoError(t, f.world.AddUnit(u))
	return u
}

func (f *fixture) define(t *testing.T, def Definition) *Definition {
	t.Helper()
	if def.NewEffect == nil && def.Effect == "" {
		def.NewEffect = func() Effect { return &countingEffect{} }
	}
	d, err := f.reg.Define(def)
	require.NoError(t, err)
	return d
}

func counting(b *Buff) *countingEffect {
	return b.Effect().(*countingEffect)
}

func TestRegistry_Define(t *testing.T) {
	r := NewRegistry()

	d, err := r.Define(Definition{Name: "regen", Duration: time.Second})
	require.NoError(t, err)
	assert.NotZero(t, d.ID)

	other, err := NewRegistry().Define(Definition{Name: "haste", Duration: time.Second})
	require.NoError(t, err)
	assert.NotEqual(t, d.ID, other.ID, "handles are unique across registries")
	_, ok := r.Get(other.ID)
	assert.False(t, ok)

	got, ok := r.Lookup("regen")
	require.True(t, ok)
	assert.Same(t, d, got)

	byID, ok := r.Get(d.ID)
	require.True(t, ok)
	assert.Same(t, d, byID)

	_, err = r.Define(Definition{Name: "regen", Duration: time.Second})
	assert.True(t, errors.Is(err, ErrInvalidDefinition), "duplicate must be rejected")
}

func TestDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{"empty name", Definition{Duration: time.Second}},
		{"zero duration", Definition{Name: "x"}},
		{"negative interval", Definition{Name: "x", Duration: time.Second, TickInterval: -time.Second}},
		{"tick on apply without interval", Definition{Name: "x", Duration: time.Second, TickOnApply: true}},
		{"unknown effect", Definition{Name: "x", Duration: time.Second, Effect: "Nope"}},
		{"bad params", Definition{Name: "x", Duration: time.Second, Effect: "HealOverTime", Params: map[string]string{"amount": "lots"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.Validate()
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestParseUniqueMode(t *testing.T) {
	for in, want := range map[string]UniqueMode{
		"":           UniqueNone,
		"none":       UniqueNone,
		"global":     UniqueGlobal,
		"per_caster": UniquePerCaster,
		"per-caster": UniquePerCaster,
	} {
		got, err := ParseUniqueMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUniqueMode("sometimes")
	assert.ErrorIs(t, err, ErrInvalidDefinition)
}

func TestLedger_PeriodicCatchUp(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "tick", Duration: 10 * time.Second, TickInterval: time.Second})

	l := f.mgr.Ledger(1)
	b := New(def, 0)
	require.True(t, l.AddBuff(b))

	l.Update(3500 * time.Millisecond)

	if got := counting(b).ticks; got != 3 {
		t.Fatalf("ticks = %d, want 3", got)
	}
	if got := b.TickRemainder(); got != 500*time.Millisecond {
		t.Errorf("remainder = %v, want 500ms", got)
	}
	if got := b.Remaining(); got != 6500*time.Millisecond {
		t.Errorf("remaining = %v, want 6.5s", got)
	}
}

func TestLedger_TicksCappedAtLifetime(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "short", Duration: 2 * time.Second, TickInterval: time.Second})

	l := f.mgr.Ledger(1)
	b := New(def, 0)
	l.AddBuff(b)

	l.Update(5 * time.Second)

	eff := counting(b)
	assert.Equal(t, 2, eff.ticks, "no ticks past the end of the lifetime")
	assert.Equal(t, 1, eff.removed)
	assert.False(t, b.Active())
	assert.Equal(t, 0, l.Len())
}

func TestLedger_ExpiryAtExactDuration(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "hot", Duration: 6 * time.Second, TickInterval: 2 * time.Second})

	l := f.mgr.Ledger(1)
	b := New(def, 0)
	l.AddBuff(b)

	for range 5 {
		l.Update(time.Second)
	}
	assert.True(t, b.Active())
	assert.Equal(t, 2, counting(b).ticks)

	l.Update(time.Second)
	assert.False(t, b.Active())
	assert.Equal(t, 3, counting(b).ticks, "final tick fires on the expiring update")
}

func TestLedger_Uniqueness(t *testing.T) {
	tests := []struct {
		name    string
		mode    UniqueMode
		casters []model.EntityID
		want    int
	}{
		{"none stacks", UniqueNone, []model.EntityID{7, 7, 8}, 3},
		{"global keeps one", UniqueGlobal, []model.EntityID{7, 8, 9}, 1},
		{"per caster keeps one each", UniquePerCaster, []model.EntityID{7, 8, 7}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.unit(t, 1, 100)
			def := f.define(t, Definition{Name: "b", Unique: tt.mode, Duration: time.Minute})

			l := f.mgr.Ledger(1)
			var buffs []*Buff
			for _, c := range tt.casters {
				b := New(def, c)
				require.True(t, l.AddBuff(b))
				buffs = append(buffs, b)
			}
			assert.Equal(t, tt.want, l.Len())

			last := buffs[len(buffs)-1]
			assert.True(t, last.Active(), "newest instance always wins")
		})
	}
}

func TestLedger_DistinctDefinitionsCoexist(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	might := f.define(t, Definition{Name: "might", Unique: UniqueGlobal, Duration: time.Minute})
	haste, err := NewRegistry().Define(Definition{
		Name:      "haste",
		Unique:    UniqueGlobal,
		Duration:  time.Minute,
		NewEffect: func() Effect { return &countingEffect{} },
	})
	require.NoError(t, err)

	l := f.mgr.Ledger(1)
	a, b := New(might, 7), New(haste, 7)
	require.True(t, l.AddBuff(a))
	require.True(t, l.AddBuff(b))

	assert.Equal(t, 2, l.Len())
	assert.True(t, a.Active())
	assert.True(t, l.Has(might.ID))
	assert.True(t, l.Has(haste.ID))
	assert.Equal(t, 1, l.Dispel(haste.ID, 0))
	assert.True(t, a.Active(), "dispelling haste leaves might alone")
}

func TestLedger_RejectsUndefinedDefinition(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	l := f.mgr.Ledger(1)

	raw := &Definition{Name: "raw", Unique: UniqueGlobal, Duration: time.Minute}
	assert.False(t, l.AddBuff(New(raw, 7)))
	assert.Zero(t, l.Len())
}

// hookEffect runs onRemove when its buff leaves the ledger.
type hookEffect struct {
	onRemove func(*Scope)
}

func (e *hookEffect) OnApply(*Scope) {}
func (e *hookEffect) OnTick(*Scope)  {}
func (e *hookEffect) OnRemove(s *Scope) {
	if e.onRemove != nil {
		e.onRemove(s)
	}
}

func TestLedger_GlobalStaysUniqueWhenRemovalReapplies(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)

	var def *Definition
	def = f.define(t, Definition{
		Name:     "ward",
		Unique:   UniqueGlobal,
		Duration: time.Minute,
		NewEffect: func() Effect {
			return &hookEffect{onRemove: func(s *Scope) { s.Ledger.AddBuff(New(def, 0)) }}
		},
	})

	l := f.mgr.Ledger(1)
	require.True(t, l.AddBuff(New(def, 0)))
	outer := New(def, 0)
	require.True(t, l.AddBuff(outer))

	assert.Equal(t, 1, l.Len())
	assert.Same(t, outer, l.Buffs()[0])
}

func TestLedger_ReapplyFromRemovalObserverIsRejected(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "ward", Unique: UniquePerCaster, Duration: time.Minute})
	l := f.mgr.Ledger(1)

	var reapplied []bool
	event.Subscribe(f.bus, func(e event.BuffRemoved) {
		reapplied = append(reapplied, l.AddBuff(New(def, e.Caster)))
	})

	require.True(t, l.AddBuff(New(def, 7)))
	require.True(t, l.AddBuff(New(def, 7)))

	assert.Equal(t, []bool{false}, reapplied)
	assert.Equal(t, 1, l.Len())
}

func TestLedger_ReplacementRemovesDonor(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "b", Unique: UniqueGlobal, Duration: time.Minute})

	var removed []event.BuffRemoved
	event.Subscribe(f.bus, func(e event.BuffRemoved) { removed = append(removed, e) })

	l := f.mgr.Ledger(1)
	old := New(def, 7)
	l.AddBuff(old)
	l.AddBuff(New(def, 8))

	assert.False(t, old.Active())
	assert.Equal(t, 1, counting(old).removed)
	require.Len(t, removed, 1)
	assert.Equal(t, model.EntityID(7), removed[0].Caster)
}

func TestLedger_PhaseInheritance(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "dot", Unique: UniqueGlobal, Duration: 5 * time.Second, TickInterval: time.Second})

	l := f.mgr.Ledger(1)
	a := New(def, 7)
	l.AddBuff(a)
	l.Update(400 * time.Millisecond)

	b := New(def, 7)
	l.AddBuff(b)

	assert.Equal(t, 400*time.Millisecond, b.TickRemainder())
	assert.Equal(t, 5*time.Second+600*time.Millisecond, b.Duration())

	l.Update(599 * time.Millisecond)
	assert.Equal(t, 0, counting(b).ticks)
	l.Update(time.Millisecond)
	assert.Equal(t, 1, counting(b).ticks, "first tick lands interval minus remainder after replacement")
}

func TestLedger_PhaseInheritance_TickOnApply(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{
		Name:         "burst",
		Unique:       UniqueGlobal,
		Duration:     5 * time.Second,
		TickInterval: time.Second,
		TickOnApply:  true,
	})

	l := f.mgr.Ledger(1)
	a := New(def, 7)
	l.AddBuff(a)
	assert.Equal(t, 1, counting(a).ticks, "ticks on apply")

	l.Update(300 * time.Millisecond)
	b := New(def, 7)
	l.AddBuff(b)

	assert.Equal(t, 300*time.Millisecond, b.TickRemainder())
	assert.Equal(t, 5*time.Second, b.Duration(), "no compensation when ticking on apply")
	assert.Equal(t, 1, counting(b).ticks)
}

func TestLedger_DeadTargetLosesEverything(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "b", Duration: time.Minute})

	l := f.mgr.Ledger(1)
	a, b := New(def, 0), New(def, 0)
	l.AddBuff(a)
	l.AddBuff(b)

	f.world.Damage(2, 1, 1000)
	l.Update(time.Millisecond)

	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 1, counting(a).removed)
	assert.Equal(t, 1, counting(b).removed)

	assert.False(t, l.AddBuff(New(def, 0)), "dead targets accept no buffs")
}

func TestLedger_UpdateVisitsNewestFirst(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	first := f.define(t, Definition{Name: "first", Duration: Infinite})
	second := f.define(t, Definition{Name: "second", Duration: Infinite})

	var order []string
	event.Subscribe(f.bus, func(e event.BuffUpdated) { order = append(order, e.Buff) })

	l := f.mgr.Ledger(1)
	l.AddBuff(New(first, 0))
	l.AddBuff(New(second, 0))
	l.Update(time.Second)

	assert.Equal(t, []string{"second", "first"}, order)
}

func TestLedger_InfiniteNeverExpires(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "aura", Duration: Infinite, TickInterval: time.Hour})

	l := f.mgr.Ledger(1)
	b := New(def, 0)
	l.AddBuff(b)
	l.Update(100 * time.Hour)

	assert.True(t, b.Active())
	assert.Equal(t, Infinite, b.Remaining())
	assert.Equal(t, 100, counting(b).ticks)
}

func TestManager_RetractAll(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	f.unit(t, 2, 100)
	short := f.define(t, Definition{Name: "short", Duration: time.Second})
	long := f.define(t, Definition{Name: "long", Duration: time.Minute})

	owner := f.mgr.NewOwner()
	require.True(t, f.mgr.Manage(owner, 1, New(short, 1), true))
	l := New(long, 1)
	require.True(t, f.mgr.Manage(owner, 2, l, true))
	assert.Equal(t, 2, f.mgr.Owned(owner))

	f.mgr.Update(2 * time.Second)
	assert.Equal(t, 1, f.mgr.Owned(owner), "expired buff drops out of the owner set")

	assert.Equal(t, 1, f.mgr.RetractAll(owner))
	assert.False(t, l.Active())
	assert.Equal(t, 0, f.mgr.Owned(owner))
	assert.Equal(t, 0, f.mgr.RetractAll(owner))
}

func TestManager_ManageRemove(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "mark", Unique: UniquePerCaster, Duration: time.Minute})

	owner := f.mgr.NewOwner()
	applied := New(def, 5)
	f.mgr.Manage(owner, 1, applied, true)

	// A fresh instance with the same caster removes the one it would replace.
	assert.True(t, f.mgr.Manage(owner, 1, New(def, 5), false))
	assert.False(t, applied.Active())
	assert.False(t, f.mgr.Manage(owner, 1, New(def, 5), false))
	assert.Equal(t, 0, f.mgr.Owned(owner))
}

func TestManager_Forget(t *testing.T) {
	f := newFixture(t)
	f.unit(t, 1, 100)
	def := f.define(t, Definition{Name: "b", Duration: time.Minute})

	b := New(def, 0)
	f.mgr.Manage(NoOwner, 1, b, true)
	f.mgr.Forget(1)

	assert.False(t, b.Active())
	assert.Equal(t, 0, f.mgr.Len())
	f.mgr.Update(time.Second)
}
