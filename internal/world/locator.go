package world

import (
	"log/slog"

	"github.com/udisondev/grimoire/internal/model"
)

// Locator finds target tokens around a point on one scene for one caller.
//
// Ordering contract: tokens are examined in SceneContext.Tokens order.
// FindAtPoint returns the first match; FindInRadius preserves scene order.
type Locator struct {
	scene         SceneContext
	caller        model.Caller
	casterTokenID string
}

// NewLocator creates a Locator. casterTokenID is excluded from radius searches.
func NewLocator(scene SceneContext, caller model.Caller, casterTokenID string) *Locator {
	return &Locator{
		scene:         scene,
		caller:        caller,
		casterTokenID: casterTokenID,
	}
}

// FindAtPoint returns the first eligible token covering p.
func (l *Locator) FindAtPoint(p model.Point) (model.Token, bool) {
	cellSize := l.scene.cellSize()

	var (
		found model.Token
		ok    bool
	)
	ForEachEligibleToken(l.scene, l.caller, func(t model.Token) bool {
		if l.scene.Gridless {
			if p.DistanceTo(t.Center(cellSize)) <= cellSize {
				found, ok = t, true
			}
		} else if FootprintOf(t, cellSize).Contains(model.CellOf(p, cellSize)) {
			found, ok = t, true
		}
		return !ok
	})
	return found, ok
}

// FindInRadius returns all eligible tokens within radius cells of center,
// excluding the caster's own token.
func (l *Locator) FindInRadius(center model.Point, radius int) []model.Token {
	cellSize := l.scene.cellSize()
	centerCell := model.CellOf(center, cellSize)
	radiusPx := float64(radius) * cellSize

	var result []model.Token
	ForEachEligibleToken(l.scene, l.caller, func(t model.Token) bool {
		if t.ID == l.casterTokenID {
			return true
		}

		var hit bool
		if l.scene.Gridless {
			hit = inPixelRadius(center.DistanceTo(t.Center(cellSize)), radiusPx, cellSize)
		} else {
			hit = InRadius(FootprintOf(t, cellSize).DistanceTo(centerCell), radius)
		}
		if hit {
			result = append(result, t)
		}
		return true
	})

	slog.Debug("radius search",
		"center", center,
		"radius", radius,
		"gridless", l.scene.Gridless,
		"found", len(result))

	return result
}
