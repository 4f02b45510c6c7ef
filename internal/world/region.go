package world

import (
	"cmp"
	"slices"

	"github.com/udisondev/spellcore/internal/model"
)

// Region is one bucket of the spatial grid.
// Not synchronized on its own; World guards all regions with its mutex.
type Region struct {
	at    cell
	units map[model.EntityID]*model.Unit

	// snapshot is rebuilt lazily after Add/Remove.
	snapshot []*model.Unit
	dirty    bool
}

func newRegion(at cell) *Region {
	return &Region{
		at:    at,
		units: make(map[model.EntityID]*model.Unit),
	}
}

func (r *Region) add(u *model.Unit) {
	r.units[u.ID()] = u
	r.dirty = true
}

func (r *Region) remove(id model.EntityID) {
	if _, ok := r.units[id]; !ok {
		return
	}
	delete(r.units, id)
	r.dirty = true
}

func (r *Region) empty() bool {
	return len(r.units) == 0
}

// objects returns the units of the region ordered by ID.
// IMPORTANT: returned slice is shared, DO NOT modify.
func (r *Region) objects() []*model.Unit {
	if !r.dirty && r.snapshot != nil {
		return r.snapshot
	}
	snap := make([]*model.Unit, 0, len(r.units))
	for _, u := range r.units {
		snap = append(snap, u)
	}
	slices.SortFunc(snap, func(a, b *model.Unit) int {
		return cmp.Compare(a.ID(), b.ID())
	})
	r.snapshot = snap
	r.dirty = false
	return snap
}
