package model

import "github.com/go-gl/mathgl/mgl64"

// ProjectileSpec describes a projectile to launch.
type ProjectileSpec struct {
	Owner     EntityID
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
	Speed     float64 // units per second
	Range     float64 // max travel distance
	Radius    float64 // hit radius around the flight line
	Mask      Layer
	Visual    string
}

// Projectile is the handle returned by a projectile spawner.
// The hit callback runs at most once, on the tick the projectile first touches a live unit
// other than its owner.
type Projectile interface {
	OnHit(fn func(target EntityID))
	OnExpire(fn func())
}
