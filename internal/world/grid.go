package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultCellSize is the edge of one region in world units.
const DefaultCellSize = 16.0

// cell is a region index on the XY plane. Z does not participate in bucketing.
type cell struct {
	x, y int32
}

// cellOf converts a world position to its region index.
func cellOf(pos mgl64.Vec3, size float64) cell {
	return cell{
		x: int32(math.Floor(pos.X() / size)),
		y: int32(math.Floor(pos.Y() / size)),
	}
}

// cellsAround returns every region index overlapped by the square of half-extent r around center.
func cellsAround(center mgl64.Vec3, r, size float64) []cell {
	lo := cellOf(center.Sub(mgl64.Vec3{r, r, 0}), size)
	hi := cellOf(center.Add(mgl64.Vec3{r, r, 0}), size)

	cells := make([]cell, 0, int(hi.x-lo.x+1)*int(hi.y-lo.y+1))
	for x := lo.x; x <= hi.x; x++ {
		for y := lo.y; y <= hi.y; y++ {
			cells = append(cells, cell{x: x, y: y})
		}
	}
	return cells
}
