package model

import "sync"

// ThreatInfo tracks hate and damage from a single source.
type ThreatInfo struct {
	Hate   float64
	Damage int64
}

// ThreatList holds one holder's hate towards multiple sources.
// The add-threat mechanic writes it; AI reads MostHated.
type ThreatList struct {
	mu      sync.RWMutex
	entries map[EntityID]*ThreatInfo
	order   []EntityID
}

// NewThreatList creates a new empty ThreatList.
func NewThreatList() *ThreatList {
	return &ThreatList{entries: make(map[EntityID]*ThreatInfo)}
}

// AddHate adds hate for a source. Creates the entry if missing.
func (l *ThreatList) AddHate(source EntityID, hate float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getOrCreate(source).Hate += hate
}

// AddDamage records damage from a source. Creates the entry if missing.
func (l *ThreatList) AddDamage(source EntityID, damage int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.getOrCreate(source).Damage += damage
}

// MostHated returns the source with the highest hate.
// Ties go to the source that was added first. Returns 0 for an empty list.
func (l *ThreatList) MostHated() EntityID {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var best EntityID
	bestHate := 0.0
	for _, id := range l.order {
		info := l.entries[id]
		if best == 0 || info.Hate > bestHate {
			best = id
			bestHate = info.Hate
		}
	}
	return best
}

// Get returns a copy of the entry for source.
func (l *ThreatList) Get(source EntityID) (ThreatInfo, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	info, ok := l.entries[source]
	if !ok {
		return ThreatInfo{}, false
	}
	return *info, true
}

// Remove drops a source from the list.
func (l *ThreatList) Remove(source EntityID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[source]; !ok {
		return
	}
	delete(l.entries, source)
	for i, id := range l.order {
		if id == source {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of tracked sources.
func (l *ThreatList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// getOrCreate must be called with mu held.
func (l *ThreatList) getOrCreate(source EntityID) *ThreatInfo {
	if info, ok := l.entries[source]; ok {
		return info
	}
	info := &ThreatInfo{}
	l.entries[source] = info
	l.order = append(l.order, source)
	return info
}
