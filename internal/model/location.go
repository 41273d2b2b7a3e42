package model

import "math"

// Point is a continuous scene coordinate in pixels.
// Value type, passed by value.
type Point struct {
	X float64
	Y float64
}

// DistanceTo returns the Euclidean distance to other.
func (p Point) DistanceTo(other Point) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// GridPosition is an integer cell index.
type GridPosition struct {
	X int
	Y int
}

// CellOf converts a point into its grid cell by floor division.
// Negative coordinates floor towards minus infinity.
func CellOf(p Point, cellSize float64) GridPosition {
	return GridPosition{
		X: int(math.Floor(p.X / cellSize)),
		Y: int(math.Floor(p.Y / cellSize)),
	}
}

// DistanceTo returns the Euclidean distance in cell units.
func (g GridPosition) DistanceTo(other GridPosition) float64 {
	return math.Hypot(float64(g.X-other.X), float64(g.Y-other.Y))
}
