package data

import (
	"fmt"

	"github.com/udisondev/grimoire/internal/game/combat"
	"github.com/udisondev/grimoire/internal/game/cost"
	"github.com/udisondev/grimoire/internal/model"
)

// TargetMode defines how a spell picks its targets.
type TargetMode int8

const (
	TargetSelf   TargetMode = iota // Caster only, no picking
	TargetSingle                   // One token under the picked point
	TargetArea                     // Every token within RadiusCells of the picked point
)

func (t TargetMode) String() string {
	switch t {
	case TargetSelf:
		return "self"
	case TargetSingle:
		return "single"
	case TargetArea:
		return "area"
	default:
		return fmt.Sprintf("target(%d)", int8(t))
	}
}

// ParseTargetMode converts a catalog string into a TargetMode.
func ParseTargetMode(s string) (TargetMode, error) {
	switch s {
	case "self":
		return TargetSelf, nil
	case "", "single":
		return TargetSingle, nil
	case "area":
		return TargetArea, nil
	default:
		return TargetSingle, fmt.Errorf("unknown target mode %q", s)
	}
}

// ResistanceTemplate names the defender characteristic used for the opposed roll.
type ResistanceTemplate struct {
	Characteristic string
	Mode           combat.ResistanceMode
}

// EffectTemplate describes the persistent effect a spell grants.
type EffectTemplate struct {
	Kind         string
	Name         string
	Icon         string
	Description  string
	Charges      int // 0 = not consumable
	Stance       model.Stance
	BonusFlags   model.BonusFlags
	VisualHandle string
	Animation    string
}

// Instantiate builds the ActiveEffect cast by casterID.
// The visual handle is suffixed with the caster so that two casters never
// share (and tear down) each other's visual.
func (t EffectTemplate) Instantiate(casterID string) model.ActiveEffect {
	eff := model.ActiveEffect{
		Kind:           t.Kind,
		Name:           t.Name,
		Icon:           t.Icon,
		Description:    t.Description,
		OriginCasterID: casterID,
		Stance:         t.Stance,
		BonusFlags:     t.BonusFlags.Clone(),
	}
	if t.Charges > 0 {
		eff.Charges = model.IntPtr(t.Charges)
	}
	if t.VisualHandle != "" {
		eff.VisualHandle = t.VisualHandle + "-" + casterID
	}
	return eff
}

// SpellTemplate is an immutable spell definition loaded from the catalog.
// Shared across all casts; do not modify after loading.
type SpellTemplate struct {
	ID             string
	Name           string
	Characteristic string

	CostPolicy cost.Policy
	BaseCost   int

	Target      TargetMode
	RangeCells  int
	RadiusCells int

	AttackBonus                int
	Damage                     string
	DamageBonus                int
	Resistance                 *ResistanceTemplate
	ForcesPartialDamageOnDodge bool

	Effect    *EffectTemplate
	Animation string
}

// HasDamage reports whether the spell rolls damage.
func (s *SpellTemplate) HasDamage() bool {
	return s.Damage != ""
}

// Rolls reports whether casting the spell involves an attack roll.
// Pure buffs skip the roll entirely.
func (s *SpellTemplate) Rolls() bool {
	return s.HasDamage() || s.Resistance != nil
}
