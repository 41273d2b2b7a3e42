package combat

import "fmt"

// ResistanceMode selects what a successful opposed roll does.
type ResistanceMode int8

const (
	// ModeResist halves damage when the defender matches the attack.
	ModeResist ResistanceMode = iota
	// ModeDodge negates damage when the defender matches the attack,
	// unless the spell forces partial damage on dodge.
	ModeDodge
)

func (m ResistanceMode) String() string {
	switch m {
	case ModeResist:
		return "resist"
	case ModeDodge:
		return "dodge"
	default:
		return fmt.Sprintf("mode(%d)", int8(m))
	}
}

// ParseResistanceMode converts a catalog string into a ResistanceMode.
func ParseResistanceMode(s string) (ResistanceMode, error) {
	switch s {
	case "", "resist":
		return ModeResist, nil
	case "dodge":
		return ModeDodge, nil
	default:
		return ModeResist, fmt.Errorf("unknown resistance mode %q", s)
	}
}

// AttackRoll is Dice d7 + Bonus.
type AttackRoll struct {
	Dice  int
	Bonus int
}

// DamageRoll is a formula plus a flat bonus.
type DamageRoll struct {
	Formula Formula
	Bonus   int
}

// ResistanceRoll is the defender's opposed Dice d7 + Bonus.
type ResistanceRoll struct {
	Dice  int
	Bonus int
	Mode  ResistanceMode
}

// RollBundle groups every roll of one cast against one target so they are
// resolved, displayed and logged together.
type RollBundle struct {
	Attack                     AttackRoll
	Damage                     *DamageRoll
	Resistance                 *ResistanceRoll
	ForcesPartialDamageOnDodge bool
}

// BundleSpec is the input of BuildRollBundle.
// An empty DamageFormula means the spell deals no damage; a nil Resistance
// means no opposed roll.
type BundleSpec struct {
	AttackDice                 int
	AttackBonus                int
	DamageFormula              string
	DamageBonus                int
	Resistance                 *ResistanceRoll
	ForcesPartialDamageOnDodge bool
}

// BuildRollBundle validates spec and clamps dice pools to at least one die.
func BuildRollBundle(spec BundleSpec) (RollBundle, error) {
	b := RollBundle{
		Attack: AttackRoll{
			Dice:  max(spec.AttackDice, 1),
			Bonus: spec.AttackBonus,
		},
		ForcesPartialDamageOnDodge: spec.ForcesPartialDamageOnDodge,
	}

	if spec.DamageFormula != "" {
		f, err := ParseFormula(spec.DamageFormula)
		if err != nil {
			return RollBundle{}, fmt.Errorf("building damage roll: %w", err)
		}
		b.Damage = &DamageRoll{Formula: f, Bonus: spec.DamageBonus}
	}

	if spec.Resistance != nil {
		r := *spec.Resistance
		r.Dice = max(r.Dice, 1)
		b.Resistance = &r
	}

	return b, nil
}
