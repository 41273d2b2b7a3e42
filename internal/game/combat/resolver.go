package combat

import (
	"fmt"
	"log/slog"

	"github.com/udisondev/grimoire/internal/game/stat"
	"github.com/udisondev/grimoire/internal/model"
)

// Mitigation records what the opposed roll did to the damage.
type Mitigation int8

const (
	MitigationNone Mitigation = iota
	MitigationHalved
	MitigationNegated
)

func (m Mitigation) String() string {
	switch m {
	case MitigationNone:
		return "none"
	case MitigationHalved:
		return "halved"
	case MitigationNegated:
		return "negated"
	default:
		return fmt.Sprintf("mitigation(%d)", int8(m))
	}
}

// Outcome is the interpreted result of one RollBundle.
type Outcome struct {
	Seed            int64
	AttackTotal     int
	HasDamage       bool
	DamageTotal     int
	DamageMaximized bool
	ResistanceTotal *int
	Mitigation      Mitigation
	AppliedDamage   int

	AttackRolls     []int
	DamageRolls     []int
	ResistanceRolls []int
}

// Resolve rolls the bundle in a single seeded draw and applies stance and mitigation.
//
// Under the Offensive stance the damage term is left out of the random draw:
// every damage die takes its maximum face and the total is computed analytically.
func Resolve(b RollBundle, stance model.Stance, seed int64) Outcome {
	out := Outcome{Seed: seed}

	specs := []DiceSpec{{Sides: DieSides, Count: max(b.Attack.Dice, 1)}}
	damageIdx, resistIdx := -1, -1

	maximize := stance == model.StanceOffensive
	if b.Damage != nil && b.Damage.Formula.HasDice() && !maximize {
		damageIdx = len(specs)
		specs = append(specs, DiceSpec{Sides: b.Damage.Formula.Sides, Count: b.Damage.Formula.Count})
	}
	if b.Resistance != nil {
		resistIdx = len(specs)
		specs = append(specs, DiceSpec{Sides: DieSides, Count: max(b.Resistance.Dice, 1)})
	}

	result, err := RollDice(RollRequest{Dice: specs, Seed: seed})
	if err != nil {
		// Unreachable: every dice spec above has positive sides and count.
		panic(err)
	}

	out.AttackRolls = result.Rolls[0].Results
	out.AttackTotal = result.Rolls[0].Total + b.Attack.Bonus

	if b.Damage != nil {
		out.HasDamage = true
		switch {
		case damageIdx >= 0:
			out.DamageRolls = result.Rolls[damageIdx].Results
			out.DamageTotal = result.Rolls[damageIdx].Total + b.Damage.Formula.Flat + b.Damage.Bonus
		default:
			out.DamageMaximized = maximize && b.Damage.Formula.HasDice()
			out.DamageTotal = b.Damage.Formula.Max() + b.Damage.Bonus
		}
		out.DamageTotal = max(out.DamageTotal, 0)
	}

	out.AppliedDamage = out.DamageTotal
	if resistIdx >= 0 {
		total := result.Rolls[resistIdx].Total + b.Resistance.Bonus
		out.ResistanceRolls = result.Rolls[resistIdx].Results
		out.ResistanceTotal = &total
		out.AppliedDamage, out.Mitigation = Mitigate(
			out.DamageTotal, out.AttackTotal, total, b.Resistance.Mode, b.ForcesPartialDamageOnDodge,
		)
	}

	slog.Debug("roll bundle resolved",
		"seed", seed,
		"stance", stance,
		"attack", out.AttackTotal,
		"damage", out.DamageTotal,
		"maximized", out.DamageMaximized,
		"applied", out.AppliedDamage,
		"mitigation", out.Mitigation)

	return out
}

// Mitigate applies the opposed-roll rule.
// A defender matching or beating the attack halves the damage (floor) in
// resist mode. In dodge mode damage is negated, unless forcesPartial keeps the
// halved amount.
func Mitigate(rawDamage, attackTotal, resistanceTotal int, mode ResistanceMode, forcesPartial bool) (int, Mitigation) {
	if resistanceTotal < attackTotal {
		return rawDamage, MitigationNone
	}
	if mode == ModeDodge && !forcesPartial {
		return 0, MitigationNegated
	}
	return rawDamage / 2, MitigationHalved
}

// ResistanceFromActor builds the defender's opposed roll from a characteristic.
// The final value is the dice pool; spell-specific bonuses never apply.
func ResistanceFromActor(defender *model.Actor, characteristic string, mode ResistanceMode) (*ResistanceRoll, error) {
	c, err := stat.Resolve(defender, characteristic)
	if err != nil {
		return nil, fmt.Errorf("resolving resistance pool: %w", err)
	}
	return &ResistanceRoll{Dice: c.Final, Mode: mode}, nil
}
