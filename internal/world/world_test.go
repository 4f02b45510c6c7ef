package world

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/model"
)

func addUnit(t *testing.T, w *World, id model.EntityID, team model.Team, x, y float64) *model.Unit {
	t.Helper()
	u := model.NewUnit(id, "unit", team, mgl64.Vec3{x, y, 0}, 100)
	if err := w.AddUnit(u); err != nil {
		t.Fatalf("AddUnit(%d) error = %v", id, err)
	}
	return u
}

func TestWorld_AddRemoveUnit(t *testing.T) {
	w := New()
	addUnit(t, w, 1, model.TeamPlayers, 0, 0)

	if err := w.AddUnit(model.NewUnit(1, "dup", model.TeamPlayers, mgl64.Vec3{}, 10)); err == nil {
		t.Error("AddUnit() with duplicate handle should fail")
	}
	if !w.Exists(1) {
		t.Fatal("Exists(1) = false after AddUnit")
	}

	w.RemoveUnit(1)
	w.RemoveUnit(1)

	if w.Exists(1) {
		t.Error("Exists(1) = true after RemoveUnit")
	}
	if !w.IsDead(1) {
		t.Error("IsDead() of a removed unit should be true")
	}
	if got := w.OverlapSphere(mgl64.Vec3{}, 10, model.LayerAll); len(got) != 0 {
		t.Errorf("OverlapSphere() after removal = %v, want empty", got)
	}
}

func TestWorld_OverlapSphere_OrderedByDistance(t *testing.T) {
	w := New(WithCellSize(4))
	addUnit(t, w, 3, model.TeamMonsters, 6, 0)
	addUnit(t, w, 1, model.TeamMonsters, 2, 0)
	addUnit(t, w, 2, model.TeamMonsters, 0, 2)
	addUnit(t, w, 4, model.TeamMonsters, 40, 0)

	got := w.OverlapSphere(mgl64.Vec3{}, 10, model.LayerUnit)
	want := []model.EntityID{1, 2, 3}

	if len(got) != len(want) {
		t.Fatalf("OverlapSphere() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("OverlapSphere() = %v, want %v", got, want)
		}
	}
}

func TestWorld_OverlapSphere_Mask(t *testing.T) {
	w := New()
	addUnit(t, w, 1, model.TeamMonsters, 1, 0)
	totem := w.SpawnEntity("totem", model.TeamMonsters, mgl64.Vec3{2, 0, 0})

	units := w.OverlapSphere(mgl64.Vec3{}, 5, model.LayerUnit)
	if len(units) != 1 || units[0] != 1 {
		t.Errorf("OverlapSphere(LayerUnit) = %v, want [1]", units)
	}
	summons := w.OverlapSphere(mgl64.Vec3{}, 5, model.LayerSummon)
	if len(summons) != 1 || summons[0] != totem {
		t.Errorf("OverlapSphere(LayerSummon) = %v, want [%d]", summons, totem)
	}
}

func TestWorld_OverlapCone(t *testing.T) {
	w := New()
	addUnit(t, w, 1, model.TeamPlayers, 0, 0) // caster on origin
	addUnit(t, w, 2, model.TeamMonsters, 5, 0)
	addUnit(t, w, 3, model.TeamMonsters, 5, 1)
	addUnit(t, w, 4, model.TeamMonsters, 0, 5)  // 90° off axis
	addUnit(t, w, 5, model.TeamMonsters, -5, 0) // behind

	got := w.OverlapCone(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 10, math.Pi/6, model.LayerUnit)

	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("OverlapCone() = %v, want [2 3]", got)
	}
}

func TestWorld_LinearCast(t *testing.T) {
	w := New()
	addUnit(t, w, 1, model.TeamMonsters, 5, 0.4)
	addUnit(t, w, 2, model.TeamMonsters, 5, 3)
	addUnit(t, w, 3, model.TeamMonsters, 12, 0)

	got := w.LinearCast(mgl64.Vec3{}, mgl64.Vec3{1, 0, 0}, 10, 1, model.LayerUnit)

	if len(got) != 1 || got[0] != 1 {
		t.Errorf("LinearCast() = %v, want [1]", got)
	}
}

func TestWorld_Warp_Reindexes(t *testing.T) {
	w := New(WithCellSize(4))
	addUnit(t, w, 1, model.TeamPlayers, 0, 0)

	if !w.Warp(1, mgl64.Vec3{100, 100, 0}) {
		t.Fatal("Warp() = false, want true")
	}
	if got := w.OverlapSphere(mgl64.Vec3{}, 5, model.LayerAll); len(got) != 0 {
		t.Errorf("old region still returns the unit: %v", got)
	}
	if got := w.OverlapSphere(mgl64.Vec3{100, 100, 0}, 1, model.LayerAll); len(got) != 1 {
		t.Errorf("new region query = %v, want [1]", got)
	}
	if w.Warp(99, mgl64.Vec3{}) {
		t.Error("Warp() of a missing unit should fail")
	}
}

func TestWorld_Damage_PublishesDeathOnce(t *testing.T) {
	bus := event.NewBus()
	w := New(WithBus(bus))
	addUnit(t, w, 1, model.TeamPlayers, 0, 0)
	addUnit(t, w, 2, model.TeamMonsters, 1, 0)

	deaths := 0
	event.Subscribe(bus, func(e event.UnitDied) {
		deaths++
		if e.Killer != 1 {
			t.Errorf("Killer = %d, want 1", e.Killer)
		}
	})

	w.Damage(1, 2, 60)
	w.Damage(1, 2, 60)
	w.Damage(1, 2, 60)

	if deaths != 1 {
		t.Errorf("UnitDied published %d times, want 1", deaths)
	}
	info, ok := w.Threat(2).Get(1)
	if !ok || info.Damage != 100 {
		t.Errorf("threat damage = %+v, want 100", info)
	}
}

func TestWorld_Projectile_HitsFirstLiveUnit(t *testing.T) {
	w := New()
	addUnit(t, w, 1, model.TeamPlayers, 0, 0)
	addUnit(t, w, 2, model.TeamMonsters, 10, 0)
	addUnit(t, w, 3, model.TeamMonsters, 15, 0)

	p := w.SpawnProjectile(model.ProjectileSpec{
		Owner:     1,
		Origin:    mgl64.Vec3{},
		Direction: mgl64.Vec3{1, 0, 0},
		Speed:     20,
		Range:     30,
		Radius:    0.5,
	})
	var hits []model.EntityID
	p.OnHit(func(id model.EntityID) { hits = append(hits, id) })

	w.Tick(0.25) // travels 5, nothing yet
	if len(hits) != 0 {
		t.Fatalf("hit too early: %v", hits)
	}
	w.Tick(0.25)
	w.Tick(0.25)

	if len(hits) != 1 || hits[0] != 2 {
		t.Errorf("hits = %v, want [2]", hits)
	}
	if w.ActiveProjectiles() != 0 {
		t.Errorf("ActiveProjectiles() = %d, want 0", w.ActiveProjectiles())
	}
}

func TestWorld_Projectile_Expires(t *testing.T) {
	w := New()
	p := w.SpawnProjectile(model.ProjectileSpec{
		Origin:    mgl64.Vec3{},
		Direction: mgl64.Vec3{0, 1, 0},
		Speed:     10,
		Range:     5,
		Radius:    0.5,
	})
	expired := false
	p.OnExpire(func() { expired = true })

	w.Tick(1)

	if !expired {
		t.Error("projectile should expire after its range")
	}
}
