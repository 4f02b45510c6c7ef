package world

import (
	"sync/atomic"

	"github.com/udisondev/spellcore/internal/model"
)

// IDGenerator hands out entity handles.
//
// ID ranges (convention):
//
//	0x00000000 - 0x0FFFFFFF: Reserved (0 = invalid, fixtures pick small IDs freely)
//	0x10000000 - 0x1FFFFFFF: Units
//	0x20000000 - 0x2FFFFFFF: Spawned sub-entities (summons, totems)
//	0x30000000 - 0x3FFFFFFF: Projectiles
type IDGenerator struct {
	nextUnit       atomic.Uint32
	nextSpawn      atomic.Uint32
	nextProjectile atomic.Uint32
}

// NewIDGenerator creates a new ID generator.
func NewIDGenerator() *IDGenerator {
	gen := &IDGenerator{}
	gen.nextUnit.Store(0x10000000)
	gen.nextSpawn.Store(0x20000000)
	gen.nextProjectile.Store(0x30000000)
	return gen
}

// NextUnitID generates next unit handle.
func (g *IDGenerator) NextUnitID() model.EntityID {
	return model.EntityID(g.nextUnit.Add(1))
}

// NextSpawnID generates next spawned sub-entity handle.
func (g *IDGenerator) NextSpawnID() model.EntityID {
	return model.EntityID(g.nextSpawn.Add(1))
}

// NextProjectileID generates next projectile id.
func (g *IDGenerator) NextProjectileID() uint32 {
	return g.nextProjectile.Add(1)
}
