package world

import "github.com/udisondev/grimoire/internal/model"

// RadiusSlack is added to every grid radius so that cells touching the edge
// of the circle are included.
const RadiusSlack = 0.5

// DefaultCellSize is the pixel size of a grid cell when the scene omits it.
const DefaultCellSize = 100

// SceneContext carries everything the locator needs about the current scene.
// It replaces ambient "current canvas" state: callers build it explicitly.
type SceneContext struct {
	CellSize float64
	Gridless bool
	Tokens   []model.Token
}

func (s SceneContext) cellSize() float64 {
	if s.CellSize <= 0 {
		return DefaultCellSize
	}
	return s.CellSize
}

// Footprint is the rectangle of cells a token occupies.
type Footprint struct {
	Min model.GridPosition
	Max model.GridPosition // inclusive
}

// FootprintOf returns the token rectangle starting at its floor-divided origin.
func FootprintOf(t model.Token, cellSize float64) Footprint {
	origin := model.CellOf(t.Origin(), cellSize)
	return Footprint{
		Min: origin,
		Max: model.GridPosition{
			X: origin.X + max(t.Width, 1) - 1,
			Y: origin.Y + max(t.Height, 1) - 1,
		},
	}
}

// Contains reports whether cell lies inside the footprint.
func (f Footprint) Contains(cell model.GridPosition) bool {
	return cell.X >= f.Min.X && cell.X <= f.Max.X &&
		cell.Y >= f.Min.Y && cell.Y <= f.Max.Y
}

// Nearest returns the occupied cell closest to cell.
func (f Footprint) Nearest(cell model.GridPosition) model.GridPosition {
	return model.GridPosition{
		X: clamp(cell.X, f.Min.X, f.Max.X),
		Y: clamp(cell.Y, f.Min.Y, f.Max.Y),
	}
}

// DistanceTo is the Euclidean distance in cells from the nearest occupied cell to cell.
func (f Footprint) DistanceTo(cell model.GridPosition) float64 {
	return f.Nearest(cell).DistanceTo(cell)
}

// InRadius applies the edge-inclusion rule: distance <= radius + 0.5.
func InRadius(distance float64, radius int) bool {
	return distance <= float64(radius)+RadiusSlack+1e-9
}

// inPixelRadius is the gridless hit test with one cell of tolerance.
func inPixelRadius(distance, radiusPx, cellSize float64) bool {
	return distance <= radiusPx+cellSize+1e-9
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}
