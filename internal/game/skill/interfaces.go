package skill

import (
	"context"

	"github.com/udisondev/grimoire/internal/model"
	"github.com/udisondev/grimoire/internal/world"
)

// ActorRepository is the host document store for actors and their effects.
// Mutating calls assume the caller is entitled to mutate; permission checks
// happen in EffectManager before a call is made.
type ActorRepository interface {
	Actor(ctx context.Context, id string) (*model.Actor, error)
	ListEffects(ctx context.Context, actorID string) ([]model.ActiveEffect, error)
	CreateEffect(ctx context.Context, actorID string, effect model.ActiveEffect) (model.ActiveEffect, error)
	UpdateEffect(ctx context.Context, actorID, effectID string, patch model.EffectPatch) error
	DeleteEffect(ctx context.Context, actorID, effectID string) error
}

// ManaLedger spends mana and credits the armor bank.
type ManaLedger interface {
	Spend(ctx context.Context, actorID string, amount int) error
	CreditBank(ctx context.Context, actorID string, amount int) error
}

// TargetPicker asks the user for a point. A nil point means the user cancelled.
type TargetPicker interface {
	PickPoint(ctx context.Context, rangeCells int, style string) (*model.Point, error)
}

// Confirmer shows the cast preview. false means the user cancelled.
type Confirmer interface {
	Confirm(ctx context.Context, preview CastPreview) (bool, error)
}

// AnimationSpec describes a visual to play on a token.
type AnimationSpec struct {
	Asset   string
	TokenID string
	Persist bool
}

// AnimationPlayer is fire-and-forget, keyed by the effect's VisualHandle.
type AnimationPlayer interface {
	Play(handle string, spec AnimationSpec)
	Stop(handle string) error
}

// ResultPresenter hands the cast result to the chat layer.
type ResultPresenter interface {
	PostResult(ctx context.Context, speakerID string, report *CastReport, summary string) error
}

// PermissionDelegate forwards a mutation to a privileged peer and awaits its ack.
type PermissionDelegate interface {
	Execute(ctx context.Context, cmd Command) (Ack, error)
}

// SceneProvider returns the scene the caster is standing on.
type SceneProvider interface {
	Scene(ctx context.Context) (world.SceneContext, error)
}
