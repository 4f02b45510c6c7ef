package world

import (
	"cmp"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/udisondev/spellcore/internal/model"
)

type hit struct {
	id   model.EntityID
	dist float64
}

// collect walks every region overlapping the square of half-extent reach around center
// and keeps units on mask accepted by keep. Results are ordered by distance to center, then ID.
func (w *World) collect(center mgl64.Vec3, reach float64, mask model.Layer, keep func(u *model.Unit, pos mgl64.Vec3) bool) []model.EntityID {
	w.mu.RLock()
	var hits []hit
	for _, c := range cellsAround(center, reach, w.cellSize) {
		r, ok := w.regions[c]
		if !ok {
			continue
		}
		for _, u := range r.objects() {
			if u.Layer()&mask == 0 {
				continue
			}
			pos := u.Position()
			if keep(u, pos) {
				hits = append(hits, hit{id: u.ID(), dist: pos.Sub(center).Len()})
			}
		}
	}
	w.mu.RUnlock()

	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.dist, b.dist); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})
	out := make([]model.EntityID, len(hits))
	for i, h := range hits {
		out[i] = h.id
	}
	return out
}

// OverlapSphere returns units on mask within radius of center.
func (w *World) OverlapSphere(center mgl64.Vec3, radius float64, mask model.Layer) []model.EntityID {
	if radius <= 0 {
		return nil
	}
	r2 := radius * radius
	return w.collect(center, radius, mask, func(_ *model.Unit, pos mgl64.Vec3) bool {
		d := pos.Sub(center)
		return d.Dot(d) <= r2
	})
}

// OverlapCone returns units on mask within radius of origin whose direction from origin
// is at most halfAngle radians off dir. A unit standing exactly on origin is excluded.
func (w *World) OverlapCone(origin, dir mgl64.Vec3, radius, halfAngle float64, mask model.Layer) []model.EntityID {
	if radius <= 0 || dir.Len() == 0 {
		return nil
	}
	axis := dir.Normalize()
	cosLimit := math.Cos(halfAngle)
	r2 := radius * radius
	return w.collect(origin, radius, mask, func(_ *model.Unit, pos mgl64.Vec3) bool {
		d := pos.Sub(origin)
		l2 := d.Dot(d)
		if l2 == 0 || l2 > r2 {
			return false
		}
		return d.Dot(axis)/math.Sqrt(l2) >= cosLimit-1e-9
	})
}

// LinearCast returns units on mask within width/2 of the segment origin → origin+dir*length.
func (w *World) LinearCast(origin, dir mgl64.Vec3, length, width float64, mask model.Layer) []model.EntityID {
	if length <= 0 || dir.Len() == 0 {
		return nil
	}
	axis := dir.Normalize()
	half := max(width/2, 0)
	end := origin.Add(axis.Mul(length))
	mid := origin.Add(end).Mul(0.5)
	return w.collect(mid, length/2+half, mask, func(_ *model.Unit, pos mgl64.Vec3) bool {
		return distanceToSegment(pos, origin, axis, length) <= half
	})
}

// distanceToSegment returns the distance from p to the segment starting at a along unit axis.
func distanceToSegment(p, a, axis mgl64.Vec3, length float64) float64 {
	t := p.Sub(a).Dot(axis)
	t = max(0, min(length, t))
	closest := a.Add(axis.Mul(t))
	return p.Sub(closest).Len()
}
