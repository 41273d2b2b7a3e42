package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/udisondev/grimoire/internal/model"
)

// EffectManager drives the lifecycle of persistent effects on actors:
//
//	Absent --apply--> Active(n) --consume--> Active(n-1) ... --consume--> Removed
//	Active --end--> Removed
//
// Mutations on actors the caller does not own are delegated to the
// privileged executor. Mutations for one target actor are serialized.
type EffectManager struct {
	repo     ActorRepository
	delegate PermissionDelegate
	cleanup  CleanupFunc

	// locks serializes mutations per target actor: key = actorID, value = *sync.Mutex
	locks sync.Map
}

// NewEffectManager creates an EffectManager. delegate may be nil, in which
// case every mutation on a non-owned target fails with ErrDelegationUnavailable.
// cleanup may be nil.
func NewEffectManager(repo ActorRepository, delegate PermissionDelegate, cleanup CleanupFunc) *EffectManager {
	return &EffectManager{
		repo:     repo,
		delegate: delegate,
		cleanup:  cleanup,
	}
}

// TargetResult is the outcome of a batch operation for one target.
type TargetResult struct {
	TargetID string
	Effect   model.ActiveEffect
	Err      error
}

// BatchResult collects per-target outcomes. A failure never aborts the batch.
type BatchResult struct {
	Results []TargetResult
}

// Succeeded returns the results without error.
func (b BatchResult) Succeeded() []TargetResult {
	var out []TargetResult
	for _, r := range b.Results {
		if r.Err == nil {
			out = append(out, r)
		}
	}
	return out
}

// Failed returns the results with an error.
func (b BatchResult) Failed() []TargetResult {
	var out []TargetResult
	for _, r := range b.Results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Apply creates effect on targetID.
// A target already carrying the same kind is rejected with ErrDuplicateEffect.
func (m *EffectManager) Apply(ctx context.Context, caller model.Caller, targetID string, effect model.ActiveEffect) (model.ActiveEffect, error) {
	if effect.Kind == "" {
		return model.ActiveEffect{}, fmt.Errorf("%w: empty kind", ErrInvalidEffect)
	}
	if effect.Charges != nil && *effect.Charges <= 0 {
		return model.ActiveEffect{}, fmt.Errorf("%w: %d charges", ErrInvalidEffect, *effect.Charges)
	}

	unlock := m.lock(targetID)
	defer unlock()

	target, err := m.repo.Actor(ctx, targetID)
	if err != nil {
		return model.ActiveEffect{}, fmt.Errorf("loading target %s: %w", targetID, err)
	}
	if target.HasEffectKind(effect.Kind) {
		return model.ActiveEffect{}, fmt.Errorf("%w: %s on %s", ErrDuplicateEffect, effect.Kind, targetID)
	}

	eff := effect.Clone()
	eff.TargetID = targetID
	if eff.ID == "" {
		eff.ID = uuid.NewString()
	}

	if err := m.mutate(ctx, caller, target, Command{
		Operation:     OpCreateEffect,
		TargetActorID: targetID,
		Payload:       CommandPayload{Effect: &eff},
	}); err != nil {
		return model.ActiveEffect{}, err
	}

	slog.Debug("effect applied",
		"kind", eff.Kind,
		"effectID", eff.ID,
		"caster", eff.OriginCasterID,
		"target", targetID)

	return eff, nil
}

// ApplyBatch applies one effect template to several targets.
// Each target gets its own effect ID and visual handle; failures are
// collected per target.
func (m *EffectManager) ApplyBatch(ctx context.Context, caller model.Caller, targetIDs []string, template model.ActiveEffect) BatchResult {
	result := BatchResult{Results: make([]TargetResult, 0, len(targetIDs))}

	for _, targetID := range targetIDs {
		eff := template.Clone()
		eff.ID = ""
		if eff.VisualHandle != "" {
			eff.VisualHandle += "-" + targetID
		}
		applied, err := m.Apply(ctx, caller, targetID, eff)
		if err != nil {
			slog.Info("effect not applied",
				"kind", template.Kind,
				"target", targetID,
				"error", err)
		}
		result.Results = append(result.Results, TargetResult{TargetID: targetID, Effect: applied, Err: err})
	}

	return result
}

// consumeAttempts bounds retries when another writer changed the charges
// between our read and the conditional update.
const consumeAttempts = 3

// Consume spends one charge of the effect placed by casterID.
// Reaching zero removes the effect and runs cleanup in the same step, so an
// Active effect with zero charges is never stored. Effects without charges
// are left untouched. Updates are conditional on the charges read, so a
// concurrent writer behind the same executor cannot cause a lost update.
func (m *EffectManager) Consume(ctx context.Context, caller model.Caller, targetID, casterID, kind string) (State, int, error) {
	unlock := m.lock(targetID)
	defer unlock()

	var err error
	for range consumeAttempts {
		var (
			state     State
			remaining int
		)
		state, remaining, err = m.consumeOnce(ctx, caller, targetID, casterID, kind)
		if !errors.Is(err, ErrStaleEffect) {
			return state, remaining, err
		}
		slog.Debug("effect changed during consume, retrying",
			"kind", kind,
			"caster", casterID,
			"target", targetID)
	}
	return StateActive, 0, err
}

func (m *EffectManager) consumeOnce(ctx context.Context, caller model.Caller, targetID, casterID, kind string) (State, int, error) {
	target, eff, err := m.find(ctx, targetID, casterID, kind)
	if err != nil {
		return StateAbsent, 0, err
	}
	if !eff.HasCharges() {
		return StateActive, 0, nil
	}

	current := *eff.Charges
	remaining := current - 1
	if remaining > 0 {
		err := m.mutate(ctx, caller, target, Command{
			Operation:     OpUpdateEffect,
			TargetActorID: targetID,
			Payload: CommandPayload{
				EffectID:        eff.ID,
				Patch:           &model.EffectPatch{Charges: model.IntPtr(remaining)},
				ExpectedCharges: model.IntPtr(current),
			},
		})
		if err != nil {
			return StateActive, current, err
		}
		return StateActive, remaining, nil
	}

	if err := m.remove(ctx, caller, target, eff, model.IntPtr(current)); err != nil {
		return StateActive, current, err
	}
	return StateRemoved, 0, nil
}

// End removes the effect regardless of its remaining charges.
func (m *EffectManager) End(ctx context.Context, caller model.Caller, targetID, casterID, kind string) error {
	unlock := m.lock(targetID)
	defer unlock()

	target, eff, err := m.find(ctx, targetID, casterID, kind)
	if err != nil {
		return err
	}
	return m.remove(ctx, caller, target, eff, nil)
}

// UpdateBonus replaces the bonus flags of an active effect.
func (m *EffectManager) UpdateBonus(ctx context.Context, caller model.Caller, targetID, casterID, kind string, flags model.BonusFlags) error {
	unlock := m.lock(targetID)
	defer unlock()

	target, eff, err := m.find(ctx, targetID, casterID, kind)
	if err != nil {
		return err
	}
	if flags == nil {
		flags = model.BonusFlags{}
	}

	return m.mutate(ctx, caller, target, Command{
		Operation:     OpUpdateEffect,
		TargetActorID: targetID,
		Payload: CommandPayload{
			EffectID: eff.ID,
			Patch:    &model.EffectPatch{BonusFlags: flags},
		},
	})
}

// State reports the lifecycle state of the (caster, target, kind) effect.
func (m *EffectManager) State(ctx context.Context, targetID, casterID, kind string) (State, error) {
	_, _, err := m.find(ctx, targetID, casterID, kind)
	switch {
	case err == nil:
		return StateActive, nil
	case errors.Is(err, ErrEffectNotFound):
		return StateAbsent, nil
	default:
		return StateAbsent, err
	}
}

func (m *EffectManager) find(ctx context.Context, targetID, casterID, kind string) (*model.Actor, model.ActiveEffect, error) {
	target, err := m.repo.Actor(ctx, targetID)
	if err != nil {
		return nil, model.ActiveEffect{}, fmt.Errorf("loading target %s: %w", targetID, err)
	}
	eff, ok := target.FindEffect(casterID, kind)
	if !ok {
		return nil, model.ActiveEffect{}, fmt.Errorf("%w: %s by %s on %s", ErrEffectNotFound, kind, casterID, targetID)
	}
	return target, eff, nil
}

// remove deletes the effect record, then runs cleanup once.
// A non-nil expectedCharges makes the delete conditional.
func (m *EffectManager) remove(ctx context.Context, caller model.Caller, target *model.Actor, eff model.ActiveEffect, expectedCharges *int) error {
	if err := m.mutate(ctx, caller, target, Command{
		Operation:     OpDeleteEffect,
		TargetActorID: target.ID,
		Payload:       CommandPayload{EffectID: eff.ID, ExpectedCharges: expectedCharges},
	}); err != nil {
		return err
	}

	slog.Debug("effect removed",
		"kind", eff.Kind,
		"effectID", eff.ID,
		"target", target.ID)

	if m.cleanup == nil {
		return nil
	}
	snapshot := EffectSnapshot{
		ID:             eff.ID,
		Kind:           eff.Kind,
		TargetID:       target.ID,
		OriginCasterID: eff.OriginCasterID,
		VisualHandle:   eff.VisualHandle,
	}
	if err := m.cleanup(ctx, snapshot); err != nil {
		cerr := &CleanupError{EffectID: eff.ID, VisualHandle: eff.VisualHandle, Err: err}
		slog.Warn("effect cleanup failed", "error", cerr)
	}
	return nil
}

// mutate applies cmd locally when the caller owns the target, otherwise
// delegates it to the privileged executor.
func (m *EffectManager) mutate(ctx context.Context, caller model.Caller, target *model.Actor, cmd Command) error {
	if caller.Owns(target) {
		return ExecuteCommand(ctx, m.repo, cmd)
	}

	if m.delegate == nil {
		return fmt.Errorf("%w: %s on %s", ErrDelegationUnavailable, cmd.Operation, cmd.TargetActorID)
	}

	cmd.ID = uuid.NewString()
	ack, err := m.delegate.Execute(ctx, cmd)
	if err != nil {
		if errors.Is(err, ErrDelegationUnavailable) || errors.Is(err, ErrPermissionDenied) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDelegationUnavailable, err)
	}
	if !ack.Success {
		return fmt.Errorf("%w: %s on %s: %s", ack.Cause(), cmd.Operation, cmd.TargetActorID, ack.Error)
	}

	slog.Debug("mutation delegated",
		"commandID", cmd.ID,
		"operation", cmd.Operation,
		"target", cmd.TargetActorID,
		"caller", caller.UserID)
	return nil
}

// lock acquires the per-target mutex and returns its release function.
func (m *EffectManager) lock(targetID string) func() {
	v, _ := m.locks.LoadOrStore(targetID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
