// Package stat resolves an actor's effective characteristic values.
package stat

import (
	"errors"
	"fmt"

	"github.com/udisondev/grimoire/internal/model"
)

// ErrMissingCharacteristic is wrapped by ConfigError when the actor sheet lacks a stat.
var ErrMissingCharacteristic = errors.New("missing characteristic")

// ConfigReason classifies a configuration failure.
type ConfigReason string

const (
	ReasonMissingCharacteristic ConfigReason = "missing_characteristic"
)

// ConfigError is fatal to the current cast: it is raised before any state
// is mutated and must be surfaced to the user.
type ConfigError struct {
	Reason         ConfigReason
	ActorID        string
	Characteristic string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("actor %s: %s %q", e.ActorID, e.Reason, e.Characteristic)
}

func (e *ConfigError) Unwrap() error {
	if e.Reason == ReasonMissingCharacteristic {
		return ErrMissingCharacteristic
	}
	return nil
}

// Resolve computes the effective value of characteristic name on actor.
// Injury stacks come from the injury marker; the effect bonus is the sum of
// every active effect's bonus flag keyed by name.
func Resolve(actor *model.Actor, name string) (model.Characteristic, error) {
	base, ok := actor.Attribute(name)
	if !ok {
		actorID := ""
		if actor != nil {
			actorID = actor.ID
		}
		return model.Characteristic{}, &ConfigError{
			Reason:         ReasonMissingCharacteristic,
			ActorID:        actorID,
			Characteristic: name,
		}
	}

	return model.NewCharacteristic(name, base, actor.InjuryStacks(), actor.SumBonusFor(name)), nil
}
