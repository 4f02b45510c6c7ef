// Package effect runs ability effect trees: target selection, filtering and mechanics
// sequenced as node trees and executed cooperatively, one poll per simulation tick.
package effect

import (
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"github.com/udisondev/spellcore/internal/event"
	"github.com/udisondev/spellcore/internal/game/buff"
	"github.com/udisondev/spellcore/internal/model"
)

// CommitSink is told the first time a cast reaches a node that counts as cast.
type CommitSink interface {
	CastCommitted(cc *CastContext)
}

// CastContext identifies one in-flight invocation of a skill. Every node of the
// invocation, including sub-chains started by projectiles and areas, shares it.
type CastContext struct {
	ID     uuid.UUID
	Caster model.EntityID
	Skill  string
	// Owner is recorded on every buff the cast applies.
	Owner buff.Owner

	aimPoint     mgl64.Vec3
	hasAimPoint  bool
	aimDirection mgl64.Vec3
	hasAimDir    bool

	sink      CommitSink
	cancelled atomic.Bool
	committed atomic.Bool

	// running holds the keys of triggers currently executing under this context.
	running map[string]struct{}

	mu   sync.Mutex
	subs []event.Subscription
}

// CastOption configures a CastContext.
type CastOption func(*CastContext)

// WithSkill names the skill being cast.
func WithSkill(name string) CastOption {
	return func(c *CastContext) { c.Skill = name }
}

// WithOwner sets the buff owner.
func WithOwner(o buff.Owner) CastOption {
	return func(c *CastContext) { c.Owner = o }
}

// WithCommitSink registers the sink notified on commit.
func WithCommitSink(s CommitSink) CastOption {
	return func(c *CastContext) { c.sink = s }
}

// WithAimPoint sets the aim point.
func WithAimPoint(p mgl64.Vec3) CastOption {
	return func(c *CastContext) { c.aimPoint, c.hasAimPoint = p, true }
}

// WithAimDirection sets the aim direction. Zero vectors are ignored.
func WithAimDirection(d mgl64.Vec3) CastOption {
	return func(c *CastContext) {
		if d.Len() == 0 {
			return
		}
		c.aimDirection, c.hasAimDir = d.Normalize(), true
	}
}

// NewCastContext creates a context for a cast by caster.
func NewCastContext(caster model.EntityID, opts ...CastOption) *CastContext {
	c := &CastContext{
		ID:     uuid.New(),
		Caster: caster,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AimPoint returns the aim point if one was given.
func (c *CastContext) AimPoint() (mgl64.Vec3, bool) { return c.aimPoint, c.hasAimPoint }

// AimDirection returns the normalized aim direction if one was given.
func (c *CastContext) AimDirection() (mgl64.Vec3, bool) { return c.aimDirection, c.hasAimDir }

// Cancel sets the cancellation flag and releases the triggers bound under the context.
// The flag is never reset.
func (c *CastContext) Cancel() {
	c.cancelled.Store(true)

	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// track keeps sub until the context is cancelled.
func (c *CastContext) track(sub event.Subscription) {
	c.mu.Lock()
	if !c.cancelled.Load() {
		c.subs = append(c.subs, sub)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()
	sub.Unsubscribe()
}

// Subscriptions returns the number of live trigger subscriptions.
func (c *CastContext) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Cancelled reports whether the cast was cancelled.
func (c *CastContext) Cancelled() bool { return c.cancelled.Load() }

// MarkCommitted flags the cast as committed and notifies the sink.
// Only the first call has effect; it returns true for that call.
func (c *CastContext) MarkCommitted() bool {
	if !c.committed.CompareAndSwap(false, true) {
		return false
	}
	if c.sink != nil {
		c.sink.CastCommitted(c)
	}
	return true
}

// Committed reports whether the cast has been committed.
func (c *CastContext) Committed() bool { return c.committed.Load() }

// Enter marks key as running under this context. Returns false if it already is.
func (c *CastContext) Enter(key string) bool {
	if c.running == nil {
		c.running = make(map[string]struct{})
	}
	if _, busy := c.running[key]; busy {
		return false
	}
	c.running[key] = struct{}{}
	return true
}

// Leave clears a key set by Enter.
func (c *CastContext) Leave(key string) {
	delete(c.running, key)
}
