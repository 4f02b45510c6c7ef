package ai

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/udisondev/spellcore/internal/game/effect"
	"github.com/udisondev/spellcore/internal/model"
)

// TickManager holds the controllers of every AI-driven unit.
type TickManager struct {
	controllers     sync.Map // map[model.EntityID]Controller
	controllerCount atomic.Int32
}

// NewTickManager creates an empty manager.
func NewTickManager() *TickManager {
	return &TickManager{}
}

// Register starts controller and ticks it for id from the next step on.
// A controller already registered for id is stopped and replaced.
func (m *TickManager) Register(id model.EntityID, controller Controller) {
	if old, loaded := m.controllers.Swap(id, controller); loaded {
		old.(Controller).Stop()
	} else {
		m.controllerCount.Add(1)
	}
	controller.Start()

	slog.Debug("AI controller registered",
		"unit", id,
		"intention", controller.Intention())
}

// Unregister stops and removes the controller of id.
func (m *TickManager) Unregister(id model.EntityID) {
	value, ok := m.controllers.LoadAndDelete(id)
	if !ok {
		return
	}
	m.controllerCount.Add(-1)
	value.(Controller).Stop()

	slog.Debug("AI controller unregistered", "unit", id)
}

// TickAll ticks every controller.
func (m *TickManager) TickAll(now time.Duration) {
	count := 0
	m.controllers.Range(func(_, value any) bool {
		value.(Controller).Tick(now)
		count++
		return true
	})

	if count > 0 && effect.IsDebugEnabled() {
		slog.Debug("AI tick completed", "controllers", count, "now", now)
	}
}

// Count returns the number of registered controllers.
func (m *TickManager) Count() int {
	return int(m.controllerCount.Load())
}

// Controller returns the controller of id.
func (m *TickManager) Controller(id model.EntityID) (Controller, error) {
	value, ok := m.controllers.Load(id)
	if !ok {
		return nil, fmt.Errorf("controller not found for unit %d", id)
	}
	return value.(Controller), nil
}
