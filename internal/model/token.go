package model

import "slices"

// Token is an actor's footprint on the scene.
// X/Y are the top-left corner in pixels; Width/Height are in cells.
type Token struct {
	ID      string
	ActorID string
	Name    string
	X       float64
	Y       float64
	Width   int
	Height  int
	Hidden  bool
	Owners  []string
}

// Origin returns the top-left pixel corner.
func (t Token) Origin() Point {
	return Point{X: t.X, Y: t.Y}
}

// Center returns the bounding box center in pixels.
func (t Token) Center(cellSize float64) Point {
	return Point{
		X: t.X + float64(max(t.Width, 1))*cellSize/2,
		Y: t.Y + float64(max(t.Height, 1))*cellSize/2,
	}
}

// OwnedBy reports whether userID is a listed owner.
func (t Token) OwnedBy(userID string) bool {
	return slices.Contains(t.Owners, userID)
}
