package ai

import "time"

// Intention is what a controller is currently trying to do.
type Intention uint8

const (
	IntentionIdle   Intention = iota // stopped or caster dead
	IntentionActive                  // looking for a target
	IntentionAttack                  // has a target and casts at it
)

func (i Intention) String() string {
	switch i {
	case IntentionIdle:
		return "IDLE"
	case IntentionActive:
		return "ACTIVE"
	case IntentionAttack:
		return "ATTACK"
	default:
		return "UNKNOWN"
	}
}

// Controller drives one unit. Tick is called from the engine goroutine once per step.
type Controller interface {
	Start()
	Stop()
	Intention() Intention
	Tick(now time.Duration)
}
