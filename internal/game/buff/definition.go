// Package buff implements timed status effects and the per-target ledger that holds them.
package buff

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Infinite is the duration of a buff that never expires on its own.
const Infinite time.Duration = math.MaxInt64

// phaseEpsilon is how far two tick intervals may differ and still share a tick phase.
const phaseEpsilon = time.Millisecond

// ErrInvalidDefinition is wrapped by every definition validation failure.
var ErrInvalidDefinition = errors.New("invalid buff definition")

// UniqueMode controls how many instances of one definition a target may carry.
type UniqueMode uint8

const (
	UniqueNone      UniqueMode = iota // unlimited stacking
	UniqueGlobal                      // one per target
	UniquePerCaster                   // one per (target, caster)
)

func (m UniqueMode) String() string {
	switch m {
	case UniqueGlobal:
		return "global"
	case UniquePerCaster:
		return "per_caster"
	default:
		return "none"
	}
}

// ParseUniqueMode converts "none", "global" or "per_caster" to UniqueMode.
func ParseUniqueMode(s string) (UniqueMode, error) {
	switch strings.ToLower(strings.ReplaceAll(s, "-", "_")) {
	case "", "none":
		return UniqueNone, nil
	case "global":
		return UniqueGlobal, nil
	case "per_caster", "percaster":
		return UniquePerCaster, nil
	default:
		return 0, fmt.Errorf("%w: unknown unique mode %q", ErrInvalidDefinition, s)
	}
}

// DefID is the interned handle of a definition. Handles are unique across every
// registry in the process; zero marks a definition that was never defined.
type DefID uint32

var lastDefID atomic.Uint32

// Definition is the immutable template buffs are created from.
type Definition struct {
	ID           DefID
	Name         string
	Unique       UniqueMode
	Duration     time.Duration // Infinite for permanent buffs
	TickInterval time.Duration // zero for non-periodic buffs
	TickOnApply  bool

	// Effect names a registered effect factory; Params are handed to it.
	Effect string
	Params map[string]string

	// NewEffect overrides Effect for definitions built in code.
	NewEffect func() Effect
}

// Periodic reports whether buffs of this definition tick.
func (d *Definition) Periodic() bool {
	return d.TickInterval > 0
}

// Validate checks the definition for configuration errors.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: empty buff id", ErrInvalidDefinition)
	}
	if d.Duration <= 0 {
		return fmt.Errorf("%w: buff %q: duration must be positive", ErrInvalidDefinition, d.Name)
	}
	if d.TickInterval < 0 {
		return fmt.Errorf("%w: buff %q: negative tick interval", ErrInvalidDefinition, d.Name)
	}
	if d.TickOnApply && d.TickInterval == 0 {
		return fmt.Errorf("%w: buff %q: tick_on_apply without tick interval", ErrInvalidDefinition, d.Name)
	}
	if d.NewEffect == nil && d.Effect != "" {
		if _, err := CreateEffect(d.Effect, d.Params); err != nil {
			return fmt.Errorf("%w: buff %q: %v", ErrInvalidDefinition, d.Name, err)
		}
	}
	return nil
}

// newEffect builds a fresh effect for one buff instance.
func (d *Definition) newEffect() Effect {
	if d.NewEffect != nil {
		if e := d.NewEffect(); e != nil {
			return e
		}
		return noEffect{}
	}
	if d.Effect == "" {
		return noEffect{}
	}
	e, err := CreateEffect(d.Effect, d.Params)
	if err != nil {
		slog.Warn("buff effect creation failed", "buff", d.Name, "error", err)
		return noEffect{}
	}
	return e
}

// Registry interns definitions by name.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Definition
	byID   map[DefID]*Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Definition),
		byID:   make(map[DefID]*Definition),
	}
}

// Define validates def, assigns its DefID and stores it.
func (r *Registry) Define(def Definition) (*Definition, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[def.Name]; dup {
		return nil, fmt.Errorf("%w: buff %q defined twice", ErrInvalidDefinition, def.Name)
	}
	d := def
	d.ID = DefID(lastDefID.Add(1))
	r.byID[d.ID] = &d
	r.byName[d.Name] = &d
	return &d, nil
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byName[name]
	return d, ok
}

// Get returns the definition with the given handle.
func (r *Registry) Get(id DefID) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	return d, ok
}

// Len returns the number of definitions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
