package skill

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/udisondev/grimoire/internal/model"
)

// Operation is the mutation a delegated command performs.
type Operation string

const (
	OpCreateEffect Operation = "create_effect"
	OpUpdateEffect Operation = "update_effect"
	OpDeleteEffect Operation = "delete_effect"
)

// Command is sent to the privileged executor when the caller does not own the target.
type Command struct {
	ID            string         `json:"id"`
	Operation     Operation      `json:"operation"`
	TargetActorID string         `json:"target_actor_id"`
	Payload       CommandPayload `json:"payload"`
}

// CommandPayload carries the operation-specific data.
type CommandPayload struct {
	EffectID string              `json:"effect_id,omitempty"`
	Effect   *model.ActiveEffect `json:"effect,omitempty"`
	Patch    *model.EffectPatch  `json:"patch,omitempty"`

	// ExpectedCharges, when set, makes an update or delete conditional on the
	// stored charge count. A mismatch fails with ErrStaleEffect.
	ExpectedCharges *int `json:"expected_charges,omitempty"`
}

// Ack is the privileged executor's response to a Command.
// Code names the sentinel behind a refusal so callers can match it with errors.Is.
type Ack struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// Ack codes.
const (
	CodeDuplicateEffect = "duplicate_effect"
	CodeEffectNotFound  = "effect_not_found"
	CodeActorNotFound   = "actor_not_found"
	CodeStaleEffect     = "stale_effect"
	CodeInvalidCommand  = "invalid_command"
	CodeInvalidEffect   = "invalid_effect"
)

var ackCodes = []struct {
	code string
	err  error
}{
	{CodeDuplicateEffect, ErrDuplicateEffect},
	{CodeEffectNotFound, ErrEffectNotFound},
	{CodeActorNotFound, ErrActorNotFound},
	{CodeStaleEffect, ErrStaleEffect},
	{CodeInvalidCommand, ErrInvalidCommand},
	{CodeInvalidEffect, ErrInvalidEffect},
}

// AckFor builds the Ack reporting the result of cmd.
func AckFor(cmd Command, err error) Ack {
	if err == nil {
		return Ack{ID: cmd.ID, Success: true}
	}
	ack := Ack{ID: cmd.ID, Error: err.Error()}
	for _, c := range ackCodes {
		if errors.Is(err, c.err) {
			ack.Code = c.code
			break
		}
	}
	return ack
}

// Cause returns the sentinel named by a refused ack's Code.
// Refusals without a known code are ErrPermissionDenied.
func (a Ack) Cause() error {
	for _, c := range ackCodes {
		if a.Code == c.code {
			return c.err
		}
	}
	return ErrPermissionDenied
}

// Validate checks that the command carries what its operation needs.
func (c Command) Validate() error {
	if c.TargetActorID == "" {
		return fmt.Errorf("%w: missing target actor", ErrInvalidCommand)
	}
	switch c.Operation {
	case OpCreateEffect:
		if c.Payload.Effect == nil {
			return fmt.Errorf("%w: create without effect", ErrInvalidCommand)
		}
	case OpUpdateEffect:
		if c.Payload.EffectID == "" || c.Payload.Patch == nil {
			return fmt.Errorf("%w: update without effect id or patch", ErrInvalidCommand)
		}
	case OpDeleteEffect:
		if c.Payload.EffectID == "" {
			return fmt.Errorf("%w: delete without effect id", ErrInvalidCommand)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", ErrInvalidCommand, c.Operation)
	}
	return nil
}

// ExecuteCommand applies cmd directly to repo.
// Used for owned targets and by the privileged executor itself.
func ExecuteCommand(ctx context.Context, repo ActorRepository, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	switch cmd.Operation {
	case OpCreateEffect:
		current, err := repo.ListEffects(ctx, cmd.TargetActorID)
		if err != nil {
			return fmt.Errorf("listing effects of %s: %w", cmd.TargetActorID, err)
		}
		kind := cmd.Payload.Effect.Kind
		if slices.ContainsFunc(current, func(e model.ActiveEffect) bool { return e.Kind == kind }) {
			return fmt.Errorf("%w: %s on %s", ErrDuplicateEffect, kind, cmd.TargetActorID)
		}
		if _, err := repo.CreateEffect(ctx, cmd.TargetActorID, *cmd.Payload.Effect); err != nil {
			return fmt.Errorf("creating effect on %s: %w", cmd.TargetActorID, err)
		}
	case OpUpdateEffect:
		if err := checkExpectedCharges(ctx, repo, cmd); err != nil {
			return err
		}
		if err := repo.UpdateEffect(ctx, cmd.TargetActorID, cmd.Payload.EffectID, *cmd.Payload.Patch); err != nil {
			return fmt.Errorf("updating effect %s on %s: %w", cmd.Payload.EffectID, cmd.TargetActorID, err)
		}
	case OpDeleteEffect:
		if err := checkExpectedCharges(ctx, repo, cmd); err != nil {
			return err
		}
		if err := repo.DeleteEffect(ctx, cmd.TargetActorID, cmd.Payload.EffectID); err != nil {
			return fmt.Errorf("deleting effect %s on %s: %w", cmd.Payload.EffectID, cmd.TargetActorID, err)
		}
	}
	return nil
}

func checkExpectedCharges(ctx context.Context, repo ActorRepository, cmd Command) error {
	want := cmd.Payload.ExpectedCharges
	if want == nil {
		return nil
	}
	current, err := repo.ListEffects(ctx, cmd.TargetActorID)
	if err != nil {
		return fmt.Errorf("listing effects of %s: %w", cmd.TargetActorID, err)
	}
	i := slices.IndexFunc(current, func(e model.ActiveEffect) bool { return e.ID == cmd.Payload.EffectID })
	if i < 0 {
		return fmt.Errorf("%w: %s on %s", ErrEffectNotFound, cmd.Payload.EffectID, cmd.TargetActorID)
	}
	if got := current[i].Charges; got == nil || *got != *want {
		return fmt.Errorf("%w: %s on %s", ErrStaleEffect, cmd.Payload.EffectID, cmd.TargetActorID)
	}
	return nil
}
