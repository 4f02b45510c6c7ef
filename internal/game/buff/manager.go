package buff

import (
	"time"

	"github.com/udisondev/spellcore/internal/model"
)

// Owner identifies whoever applied a buff through the Manager (usually a skill instance).
type Owner uint64

// NoOwner marks buffs nobody retracts.
const NoOwner Owner = 0

// Manager keeps one Ledger per target and remembers which owner applied which buff.
//
// Not safe for concurrent use; the engine drives it from a single goroutine.
type Manager struct {
	svc       Services
	ledgers   map[model.EntityID]*Ledger
	order     []model.EntityID
	owned     map[Owner]map[*Buff]struct{}
	nextOwner Owner
}

// NewManager creates a manager whose ledgers use svc.
func NewManager(svc Services) *Manager {
	return &Manager{
		svc:     svc,
		ledgers: make(map[model.EntityID]*Ledger),
		owned:   make(map[Owner]map[*Buff]struct{}),
	}
}

// NewOwner allocates an owner handle.
func (m *Manager) NewOwner() Owner {
	m.nextOwner++
	return m.nextOwner
}

// Ledger returns target's ledger, creating it on first use.
func (m *Manager) Ledger(target model.EntityID) *Ledger {
	if l, ok := m.ledgers[target]; ok {
		return l
	}
	l := NewLedger(target, &m.svc)
	l.removed = m.release
	m.ledgers[target] = l
	m.order = append(m.order, target)
	return l
}

// Find returns target's ledger if it exists.
func (m *Manager) Find(target model.EntityID) (*Ledger, bool) {
	l, ok := m.ledgers[target]
	return l, ok
}

// Manage applies b to target on behalf of owner, or removes it when apply is false.
// Removing a buff that is not active removes the instance it would have replaced.
func (m *Manager) Manage(owner Owner, target model.EntityID, b *Buff, apply bool) bool {
	if b == nil || b.def == nil {
		return false
	}
	l := m.Ledger(target)
	if !apply {
		if b.active {
			return l.RemoveBuff(b)
		}
		if d := l.donor(b); d != nil {
			return l.RemoveBuff(d)
		}
		if d, ok := l.Find(b.def.ID, b.caster); ok {
			return l.RemoveBuff(d)
		}
		return false
	}

	if !l.AddBuff(b) {
		return false
	}
	if owner != NoOwner && b.active {
		b.owner = owner
		set := m.owned[owner]
		if set == nil {
			set = make(map[*Buff]struct{})
			m.owned[owner] = set
		}
		set[b] = struct{}{}
	}
	return true
}

// Dispel removes buffs of def from target. Caster 0 matches any caster.
func (m *Manager) Dispel(target model.EntityID, def DefID, caster model.EntityID) int {
	l, ok := m.ledgers[target]
	if !ok {
		return 0
	}
	return l.Dispel(def, caster)
}

// RetractAll removes every buff owner applied that is still active.
func (m *Manager) RetractAll(owner Owner) int {
	set := m.owned[owner]
	if len(set) == 0 {
		return 0
	}
	buffs := make([]*Buff, 0, len(set))
	for b := range set {
		buffs = append(buffs, b)
	}
	n := 0
	for _, b := range buffs {
		if l, ok := m.ledgers[b.target]; ok && l.RemoveBuff(b) {
			n++
		}
	}
	delete(m.owned, owner)
	return n
}

// Owned returns how many active buffs owner has applied.
func (m *Manager) Owned(owner Owner) int {
	return len(m.owned[owner])
}

func (m *Manager) release(b *Buff) {
	if b.owner == NoOwner {
		return
	}
	if set := m.owned[b.owner]; set != nil {
		delete(set, b)
		if len(set) == 0 {
			delete(m.owned, b.owner)
		}
	}
	b.owner = NoOwner
}

// Update advances every ledger by dt in creation order.
func (m *Manager) Update(dt time.Duration) {
	for _, id := range m.order {
		m.ledgers[id].Update(dt)
	}
}

// Forget clears and drops target's ledger.
func (m *Manager) Forget(target model.EntityID) {
	l, ok := m.ledgers[target]
	if !ok {
		return
	}
	l.Clear()
	delete(m.ledgers, target)
	for i, id := range m.order {
		if id == target {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of ledgers.
func (m *Manager) Len() int { return len(m.ledgers) }
