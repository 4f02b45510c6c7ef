package ai

import (
	"testing"
	"time"

	"github.com/udisondev/spellcore/internal/model"
)

type countingController struct {
	started, stopped, ticks int
	last                    time.Duration
}

func (c *countingController) Start()               { c.started++ }
func (c *countingController) Stop()                { c.stopped++ }
func (c *countingController) Intention() Intention { return IntentionActive }
func (c *countingController) Tick(now time.Duration) {
	c.ticks++
	c.last = now
}

func TestTickManager_RegisterUnregister(t *testing.T) {
	mgr := NewTickManager()
	c := &countingController{}

	mgr.Register(1, c)
	if mgr.Count() != 1 {
		t.Errorf("Count() after Register() = %d, want 1", mgr.Count())
	}
	if c.started != 1 {
		t.Errorf("started = %d, want 1", c.started)
	}

	got, err := mgr.Controller(1)
	if err != nil {
		t.Fatalf("Controller() error = %v", err)
	}
	if got != Controller(c) {
		t.Error("Controller() returned a different controller")
	}

	mgr.Unregister(1)
	if mgr.Count() != 0 {
		t.Errorf("Count() after Unregister() = %d, want 0", mgr.Count())
	}
	if c.stopped != 1 {
		t.Errorf("stopped = %d, want 1", c.stopped)
	}
	if _, err := mgr.Controller(1); err == nil {
		t.Error("Controller() after Unregister() should return error")
	}

	// second Unregister is a no-op
	mgr.Unregister(1)
	if mgr.Count() != 0 {
		t.Errorf("Count() after double Unregister() = %d, want 0", mgr.Count())
	}
}

func TestTickManager_ReplaceStopsOld(t *testing.T) {
	mgr := NewTickManager()
	old, next := &countingController{}, &countingController{}

	mgr.Register(1, old)
	mgr.Register(1, next)

	if mgr.Count() != 1 {
		t.Errorf("Count() = %d, want 1", mgr.Count())
	}
	if old.stopped != 1 {
		t.Errorf("old controller stopped = %d, want 1", old.stopped)
	}
}

func TestTickManager_TickAll(t *testing.T) {
	mgr := NewTickManager()
	controllers := make([]*countingController, 10)
	for i := range controllers {
		controllers[i] = &countingController{}
		mgr.Register(model.EntityID(i+1), controllers[i])
	}

	mgr.TickAll(3 * time.Second)
	mgr.TickAll(4 * time.Second)

	for i, c := range controllers {
		if c.ticks != 2 {
			t.Errorf("controller %d ticks = %d, want 2", i, c.ticks)
		}
		if c.last != 4*time.Second {
			t.Errorf("controller %d last tick at %v, want 4s", i, c.last)
		}
	}
}

func TestIntention_String(t *testing.T) {
	tests := []struct {
		in   Intention
		want string
	}{
		{IntentionIdle, "IDLE"},
		{IntentionActive, "ACTIVE"},
		{IntentionAttack, "ATTACK"},
		{Intention(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("Intention(%d).String() = %q, want %q", tt.in, got, tt.want)
		}
	}
}
