package skill

import (
	"errors"
	"fmt"
)

var (
	// ErrCancelled is a graceful abort at an input stage; nothing was mutated.
	ErrCancelled = errors.New("cancelled by user")

	// ErrNoTarget means the picked point/area holds no eligible target.
	ErrNoTarget = errors.New("no eligible target")

	// ErrNotEnoughMana aborts a cast before anything is spent.
	ErrNotEnoughMana = errors.New("not enough mana")

	// ErrPermissionDenied is a per-target failure: the privileged executor refused the mutation.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDelegationUnavailable is a per-target failure: no privileged executor is reachable.
	ErrDelegationUnavailable = errors.New("privileged executor unavailable")

	// ErrDuplicateEffect is a soft failure: the target already carries this effect kind.
	ErrDuplicateEffect = errors.New("effect already active on target")

	// ErrStaleEffect rejects a conditional update whose expected charges no
	// longer match the stored effect.
	ErrStaleEffect = errors.New("effect changed concurrently")

	// ErrInvalidEffect rejects an effect that cannot enter the Active state.
	ErrInvalidEffect = errors.New("invalid effect")

	// ErrInvalidCommand rejects a malformed delegated command.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrActorNotFound is returned by ActorRepository implementations.
	ErrActorNotFound = errors.New("actor not found")

	// ErrEffectNotFound is returned by ActorRepository implementations and by
	// lifecycle operations on an Absent effect.
	ErrEffectNotFound = errors.New("effect not found")
)

// CleanupError reports a failed visual teardown. It is logged, never returned
// to the caller: the effect is considered removed regardless.
type CleanupError struct {
	EffectID     string
	VisualHandle string
	Err          error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup of effect %s (visual %q): %v", e.EffectID, e.VisualHandle, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}
