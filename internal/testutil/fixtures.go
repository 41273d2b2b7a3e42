package testutil

import (
	"github.com/udisondev/grimoire/internal/model"
)

// CellSize — размер клетки тестовых сцен.
const CellSize = 100

// NewActor создаёт актёра с характеристиками и маной.
func NewActor(id string, mana int, owners []string, chars map[string]int) *model.Actor {
	return &model.Actor{
		ID:              id,
		Name:            id,
		Owners:          owners,
		Characteristics: chars,
		Mana:            mana,
	}
}

// TokenAt создаёт токен 1x1 в клетке (cx, cy) на сетке CellSize.
func TokenAt(id, actorID string, cx, cy int, owners ...string) model.Token {
	return model.Token{
		ID:      id,
		ActorID: actorID,
		Name:    id,
		X:       float64(cx * CellSize),
		Y:       float64(cy * CellSize),
		Width:   1,
		Height:  1,
		Owners:  owners,
	}
}

// CellCenter возвращает пиксельный центр клетки (cx, cy).
func CellCenter(cx, cy int) *model.Point {
	return &model.Point{
		X: float64(cx*CellSize) + CellSize/2,
		Y: float64(cy*CellSize) + CellSize/2,
	}
}
