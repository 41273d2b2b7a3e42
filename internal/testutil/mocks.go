package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/udisondev/grimoire/internal/game/skill"
	"github.com/udisondev/grimoire/internal/model"
	"github.com/udisondev/grimoire/internal/world"
)

// MockRepository — in-memory имплементация skill.ActorRepository и skill.ManaLedger.
// Не требует реальной БД. Считает мутации, чтобы тесты могли проверить
// отсутствие побочных эффектов.
type MockRepository struct {
	mu     sync.Mutex
	actors map[string]*model.Actor

	Spends  []int
	Credits []int
	Creates int
	Updates int
	Deletes int

	// ActorErr, если задан, возвращается из Actor для любого ID.
	ActorErr error
}

// NewMockRepository создаёт репозиторий с копиями переданных актёров.
func NewMockRepository(actors ...*model.Actor) *MockRepository {
	r := &MockRepository{actors: make(map[string]*model.Actor, len(actors))}
	for _, a := range actors {
		r.actors[a.ID] = a.Clone()
	}
	return r
}

// Put добавляет или заменяет актёра.
func (r *MockRepository) Put(a *model.Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[a.ID] = a.Clone()
}

// Get возвращает копию актёра (nil если нет).
func (r *MockRepository) Get(id string) *model.Actor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.actors[id].Clone()
}

// Mutations возвращает общее число мутаций (mana + effects).
func (r *MockRepository) Mutations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Spends) + len(r.Credits) + r.Creates + r.Updates + r.Deletes
}

func (r *MockRepository) Actor(_ context.Context, id string) (*model.Actor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ActorErr != nil {
		return nil, r.ActorErr
	}
	a, ok := r.actors[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", skill.ErrActorNotFound, id)
	}
	return a.Clone(), nil
}

func (r *MockRepository) ListEffects(ctx context.Context, actorID string) ([]model.ActiveEffect, error) {
	a, err := r.Actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return a.Effects, nil
}

func (r *MockRepository) CreateEffect(_ context.Context, actorID string, effect model.ActiveEffect) (model.ActiveEffect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[actorID]
	if !ok {
		return model.ActiveEffect{}, fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	eff := effect.Clone()
	if eff.ID == "" {
		eff.ID = uuid.NewString()
	}
	eff.TargetID = actorID
	a.Effects = append(a.Effects, eff)
	r.Creates++
	return eff.Clone(), nil
}

func (r *MockRepository) UpdateEffect(_ context.Context, actorID, effectID string, patch model.EffectPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[actorID]
	if !ok {
		return fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	for i := range a.Effects {
		if a.Effects[i].ID == effectID {
			patch.Apply(&a.Effects[i])
			r.Updates++
			return nil
		}
	}
	return fmt.Errorf("%w: %s", skill.ErrEffectNotFound, effectID)
}

func (r *MockRepository) DeleteEffect(_ context.Context, actorID, effectID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[actorID]
	if !ok {
		return fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	idx := slices.IndexFunc(a.Effects, func(e model.ActiveEffect) bool { return e.ID == effectID })
	if idx < 0 {
		return fmt.Errorf("%w: %s", skill.ErrEffectNotFound, effectID)
	}
	a.Effects = slices.Delete(a.Effects, idx, idx+1)
	r.Deletes++
	return nil
}

func (r *MockRepository) Spend(_ context.Context, actorID string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[actorID]
	if !ok {
		return fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	if a.Mana < amount {
		return fmt.Errorf("%w: need %d, have %d", skill.ErrNotEnoughMana, amount, a.Mana)
	}
	a.Mana -= amount
	r.Spends = append(r.Spends, amount)
	return nil
}

func (r *MockRepository) CreditBank(_ context.Context, actorID string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.actors[actorID]
	if !ok {
		return fmt.Errorf("%w: %s", skill.ErrActorNotFound, actorID)
	}
	a.BankedMana += amount
	r.Credits = append(r.Credits, amount)
	return nil
}

// MockDelegate — привилегированный исполнитель для тестов.
// По умолчанию применяет команды к Repo через skill.ExecuteCommand.
type MockDelegate struct {
	Repo skill.ActorRepository

	mu       sync.Mutex
	Commands []skill.Command

	// Unavailable — транспортная ошибка для целевых актёров.
	Unavailable map[string]bool
	// Deny — отказ в доступе (Ack.Success=false) для целевых актёров.
	Deny map[string]bool
}

func (d *MockDelegate) Execute(ctx context.Context, cmd skill.Command) (skill.Ack, error) {
	d.mu.Lock()
	d.Commands = append(d.Commands, cmd)
	unavailable := d.Unavailable[cmd.TargetActorID]
	deny := d.Deny[cmd.TargetActorID]
	d.mu.Unlock()

	if unavailable {
		return skill.Ack{}, fmt.Errorf("connection to executor lost")
	}
	if deny {
		return skill.Ack{ID: cmd.ID, Error: "not allowed"}, nil
	}
	return skill.AckFor(cmd, skill.ExecuteCommand(ctx, d.Repo, cmd)), nil
}

// Calls возвращает количество делегированных команд.
func (d *MockDelegate) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.Commands)
}

// MockAnimationPlayer записывает Play/Stop.
type MockAnimationPlayer struct {
	mu      sync.Mutex
	Played  map[string]skill.AnimationSpec
	Stopped []string
	StopErr error
}

func (p *MockAnimationPlayer) Play(handle string, spec skill.AnimationSpec) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Played == nil {
		p.Played = make(map[string]skill.AnimationSpec)
	}
	p.Played[handle] = spec
}

func (p *MockAnimationPlayer) Stop(handle string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Stopped = append(p.Stopped, handle)
	return p.StopErr
}

// MockPicker возвращает заранее заданную точку (nil = отмена).
type MockPicker struct {
	Point *model.Point
	Err   error
	Calls int
}

func (p *MockPicker) PickPoint(_ context.Context, _ int, _ string) (*model.Point, error) {
	p.Calls++
	return p.Point, p.Err
}

// MockConfirmer отвечает Answer и запоминает показанные превью.
type MockConfirmer struct {
	Answer   bool
	Err      error
	Previews []skill.CastPreview
}

func (c *MockConfirmer) Confirm(_ context.Context, preview skill.CastPreview) (bool, error) {
	c.Previews = append(c.Previews, preview)
	return c.Answer, c.Err
}

// MockPresenter собирает опубликованные результаты.
type MockPresenter struct {
	Reports   []*skill.CastReport
	Summaries []string
	Err       error
}

func (p *MockPresenter) PostResult(_ context.Context, _ string, report *skill.CastReport, summary string) error {
	p.Reports = append(p.Reports, report)
	p.Summaries = append(p.Summaries, summary)
	return p.Err
}

// StaticScene — SceneProvider с фиксированной сценой.
type StaticScene struct {
	Context world.SceneContext
	Err     error
}

func (s StaticScene) Scene(context.Context) (world.SceneContext, error) {
	return s.Context, s.Err
}
