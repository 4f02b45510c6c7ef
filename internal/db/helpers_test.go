package db

import (
	"github.com/google/uuid"

	"github.com/udisondev/spellcore/internal/event"
)

func publishDamage(bus *event.Bus, cast uuid.UUID) {
	event.Publish(bus, event.UnitDamaged{CastID: cast, Source: 1, Target: 2, Amount: 5})
}
