package skill

import (
	"context"
	"fmt"
)

// State is the lifecycle state of one (caster, target, kind) effect.
type State int8

const (
	StateAbsent State = iota
	StateActive
	StateRemoved
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateActive:
		return "active"
	case StateRemoved:
		return "removed"
	default:
		return fmt.Sprintf("state(%d)", int8(s))
	}
}

// CleanupFunc tears down what an effect left on the scene once it is removed.
//
// Called exactly once per removal. A returned error is logged and otherwise
// ignored.
type CleanupFunc func(ctx context.Context, effect EffectSnapshot) error

// EffectSnapshot is the state of an effect at the moment it was removed.
type EffectSnapshot struct {
	ID             string
	Kind           string
	TargetID       string
	OriginCasterID string
	VisualHandle   string
}

// AnimationCleanup stops the effect's persistent visual.
// Effects without a VisualHandle need no teardown.
func AnimationCleanup(player AnimationPlayer) CleanupFunc {
	return func(_ context.Context, effect EffectSnapshot) error {
		if player == nil || effect.VisualHandle == "" {
			return nil
		}
		return player.Stop(effect.VisualHandle)
	}
}
