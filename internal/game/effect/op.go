package effect

import (
	"time"
)

// Op is the operator carried by a node: Target, Condition or Mechanic.
type Op interface {
	kind() string
}

// Selector computes a candidate set.
type Selector interface {
	Select(env *Env, cc *CastContext, in Targets) Targets
}

// Predicate narrows a candidate set.
type Predicate interface {
	Filter(env *Env, cc *CastContext, in Targets) Targets
}

// Action starts a side effect and returns the task that finishes it.
type Action interface {
	Begin(env *Env, cc *CastContext, in Targets) (Task, error)
}

// Task is polled once per tick until done. Output is the set handed to the node's children.
type Task interface {
	Poll(env *Env, cc *CastContext) (out Targets, done bool)
}

// Aborter is implemented by tasks that hold resources to release when their run is
// force-completed without being polled to the end.
type Aborter interface {
	Abort(env *Env, cc *CastContext)
}

// Target computes a new set from scratch. With Augment set, the incoming set is kept
// and the selection is appended to it.
type Target struct {
	Selector Selector
	Augment  bool
}

// Condition filters the incoming set. It never adds entities.
type Condition struct {
	Predicate Predicate
}

// Mechanic performs a side effect and may suspend across ticks.
type Mechanic struct {
	Action Action
}

func (Target) kind() string    { return "target" }
func (Condition) kind() string { return "condition" }
func (Mechanic) kind() string  { return "mechanic" }

// Ready returns a task that completes on its first poll with out.
func Ready(out Targets) Task {
	return readyTask{out: out}
}

type readyTask struct {
	out Targets
}

func (t readyTask) Poll(*Env, *CastContext) (Targets, bool) { return t.out, true }

// WaitUntil returns a task that completes with out once the clock reaches at.
// A cancelled cast completes it early.
func WaitUntil(at time.Duration, out Targets) Task {
	return &waitTask{until: at, out: out}
}

type waitTask struct {
	until time.Duration
	out   Targets
}

func (t *waitTask) Poll(env *Env, cc *CastContext) (Targets, bool) {
	if cc.Cancelled() {
		return nil, true
	}
	if env.Now() < t.until {
		return nil, false
	}
	return t.out, true
}
