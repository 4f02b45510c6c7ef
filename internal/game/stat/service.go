package stat

import (
	"sync"

	"github.com/udisondev/spellcore/internal/model"
)

// BaseProvider supplies unmodified stat values.
type BaseProvider interface {
	BaseStat(id model.EntityID, s model.Stat) float64
}

type installed struct {
	handle Handle
	mod    Modifier
}

// Service keeps the modifiers installed on every entity.
//
// Final value: (base + Σflat) × (1 + Σpercent).
type Service struct {
	base BaseProvider

	mu     sync.RWMutex
	next   Handle
	byUnit map[model.EntityID][]installed
}

// NewService creates a stat service reading base values from base.
func NewService(base BaseProvider) *Service {
	return &Service{
		base:   base,
		byUnit: make(map[model.EntityID][]installed),
	}
}

// ApplyModifier installs m on id and returns its handle.
func (s *Service) ApplyModifier(id model.EntityID, m Modifier) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.byUnit[id] = append(s.byUnit[id], installed{handle: s.next, mod: m})
	return s.next
}

// RemoveModifier uninstalls the modifier behind h. Returns false if it was not installed.
func (s *Service) RemoveModifier(id model.EntityID, h Handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUnit[id]
	for i, in := range list {
		if in.handle == h {
			list = append(list[:i], list[i+1:]...)
			if len(list) == 0 {
				delete(s.byUnit, id)
			} else {
				s.byUnit[id] = list
			}
			return true
		}
	}
	return false
}

// Bonus returns the summed flat and percent bonuses for a stat.
func (s *Service) Bonus(id model.EntityID, st model.Stat) (flat, percent float64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, in := range s.byUnit[id] {
		if in.mod.Stat != st {
			continue
		}
		switch in.mod.Kind {
		case Flat:
			flat += in.mod.Value
		case Percent:
			percent += in.mod.Value
		}
	}
	return flat, percent
}

// GetStat returns the modified value of a stat.
// Never negative.
func (s *Service) GetStat(id model.EntityID, st model.Stat) float64 {
	base := 0.0
	if s.base != nil {
		base = s.base.BaseStat(id, st)
	}
	flat, percent := s.Bonus(id, st)
	return max(0, (base+flat)*(1+percent))
}

// Count returns the number of modifiers installed on id.
func (s *Service) Count(id model.EntityID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byUnit[id])
}

// Clear drops every modifier installed on id.
func (s *Service) Clear(id model.EntityID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUnit, id)
}
