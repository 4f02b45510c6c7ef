package effect

import (
	"slices"

	"github.com/udisondev/spellcore/internal/model"
)

// Targets is an ordered set of distinct entity handles flowing between nodes.
// Operators treat a received set as read-only and return a new one.
type Targets []model.EntityID

// NewTargets builds a set from ids, dropping invalid handles and duplicates.
func NewTargets(ids ...model.EntityID) Targets {
	out := make(Targets, 0, len(ids))
	for _, id := range ids {
		if id.Valid() && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether id is in the set.
func (t Targets) Contains(id model.EntityID) bool {
	return slices.Contains(t, id)
}

// First returns the first handle (0 for an empty set).
func (t Targets) First() model.EntityID {
	if len(t) == 0 {
		return 0
	}
	return t[0]
}

// Filter returns the members keep accepts.
func (t Targets) Filter(keep func(model.EntityID) bool) Targets {
	out := make(Targets, 0, len(t))
	for _, id := range t {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

// Without returns the set minus id.
func (t Targets) Without(id model.EntityID) Targets {
	return t.Filter(func(other model.EntityID) bool { return other != id })
}

// Union returns t followed by the members of o not already in t.
func (t Targets) Union(o Targets) Targets {
	out := slices.Clone(t)
	for _, id := range o {
		if id.Valid() && !out.Contains(id) {
			out = append(out, id)
		}
	}
	return out
}

// Intersect returns the members of t that are also in o, in t's order.
func (t Targets) Intersect(o Targets) Targets {
	return t.Filter(o.Contains)
}
