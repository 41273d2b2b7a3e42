package model

import (
	"math"
	"strconv"
)

const (
	// EffectKindInjury is the singular injury marker; its Stacks lower every characteristic.
	EffectKindInjury = "injury"

	// FlagManaArmor marks a passive that banks mana saved by focused casting.
	FlagManaArmor = "mana_armor"
)

// BonusFlags maps a characteristic (or any numeric flag) name to a bonus.
type BonusFlags map[string]int

// Clone returns an independent copy. Nil stays nil.
func (f BonusFlags) Clone() BonusFlags {
	if f == nil {
		return nil
	}
	out := make(BonusFlags, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// DecodeBonusFlags converts loosely typed host flags into BonusFlags.
// Values that are not integral numbers (or integer strings) are dropped.
func DecodeBonusFlags(raw map[string]any) BonusFlags {
	if len(raw) == 0 {
		return nil
	}
	out := make(BonusFlags, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case int:
			out[k] = n
		case int32:
			out[k] = int(n)
		case int64:
			out[k] = int(n)
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				out[k] = int(n)
			}
		case string:
			if i, err := strconv.Atoi(n); err == nil {
				out[k] = i
			}
		}
	}
	return out
}

// ActiveEffect is a persistent modifier stored on an actor.
//
// When Charges is non-nil and reaches zero the effect must be removed and its
// VisualHandle torn down exactly once.
type ActiveEffect struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Name           string     `json:"name,omitempty"`
	Icon           string     `json:"icon,omitempty"`
	Description    string     `json:"description,omitempty"`
	OriginCasterID string     `json:"origin_caster_id"`
	TargetID       string     `json:"target_id"`
	Charges        *int       `json:"charges,omitempty"`
	Stacks         int        `json:"stacks,omitempty"`
	Stance         Stance     `json:"stance,omitempty"`
	BonusFlags     BonusFlags `json:"bonus_flags,omitempty"`
	VisualHandle   string     `json:"visual_handle,omitempty"`
}

// HasCharges reports whether the effect is consumable.
func (e ActiveEffect) HasCharges() bool {
	return e.Charges != nil
}

// Matches reports whether the effect belongs to the (caster, kind) pair.
func (e ActiveEffect) Matches(casterID, kind string) bool {
	return e.OriginCasterID == casterID && e.Kind == kind
}

// Clone returns a deep copy safe to hand to another goroutine.
func (e ActiveEffect) Clone() ActiveEffect {
	out := e
	if e.Charges != nil {
		c := *e.Charges
		out.Charges = &c
	}
	out.BonusFlags = e.BonusFlags.Clone()
	return out
}

// EffectPatch is a partial update of an ActiveEffect. Nil fields are left unchanged.
type EffectPatch struct {
	Charges    *int       `json:"charges,omitempty"`
	Stacks     *int       `json:"stacks,omitempty"`
	BonusFlags BonusFlags `json:"bonus_flags,omitempty"`
}

// Apply merges the patch into e.
func (p EffectPatch) Apply(e *ActiveEffect) {
	if p.Charges != nil {
		c := *p.Charges
		e.Charges = &c
	}
	if p.Stacks != nil {
		e.Stacks = *p.Stacks
	}
	if p.BonusFlags != nil {
		e.BonusFlags = p.BonusFlags.Clone()
	}
}

// IntPtr is a helper for optional counters.
func IntPtr(v int) *int {
	return &v
}
