package combat

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
)

// DieSides is the die used for every attack and resistance pool in the ruleset.
const DieSides = 7

// ErrMissingDice indicates a roll request had no dice specified.
var ErrMissingDice = errors.New("at least one die must be provided")

// ErrInvalidDiceSpec indicates a die specification has invalid fields.
var ErrInvalidDiceSpec = errors.New("dice must have positive sides and count")

// ErrInvalidFormula indicates a damage formula could not be parsed.
var ErrInvalidFormula = errors.New("invalid dice formula")

// Formula bounds. Catalog formulas outside them are rejected at load time.
const (
	MaxFormulaCount = 100
	MaxFormulaSides = 100
	MaxFormulaFlat  = 1000
)

// DiceSpec describes a die to roll and how many times to roll it.
type DiceSpec struct {
	Sides int
	Count int
}

// DieRoll captures the results for a single dice spec.
type DieRoll struct {
	Sides   int
	Results []int
	Total   int
}

// RollRequest describes a request to roll one or more dice.
type RollRequest struct {
	Dice []DiceSpec
	Seed int64
}

// RollResult captures the results from rolling multiple dice.
type RollResult struct {
	Rolls []DieRoll
	Total int
}

// RollDice rolls dice based on the provided request.
//
// RollDice is deterministic with respect to Seed: the same Seed and the same
// Dice slice always produce the same result. Specs are rolled in slice order
// from a single generator, so every term of a bundle shares one draw cycle.
func RollDice(request RollRequest) (RollResult, error) {
	if len(request.Dice) == 0 {
		return RollResult{}, ErrMissingDice
	}

	rng := rand.New(rand.NewPCG(uint64(request.Seed), uint64(request.Seed)>>1|1))
	rolls := make([]DieRoll, 0, len(request.Dice))
	total := 0

	for _, spec := range request.Dice {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return RollResult{}, ErrInvalidDiceSpec
		}

		results := make([]int, spec.Count)
		rollTotal := 0
		for i := range spec.Count {
			value := rng.IntN(spec.Sides) + 1
			results[i] = value
			rollTotal += value
		}

		rolls = append(rolls, DieRoll{
			Sides:   spec.Sides,
			Results: results,
			Total:   rollTotal,
		})
		total += rollTotal
	}

	return RollResult{Rolls: rolls, Total: total}, nil
}

var formulaRe = regexp.MustCompile(`(?i)^\s*(\d+)?\s*d\s*(\d+)\s*(?:([+\-])\s*(\d+))?\s*$`)

// Formula is a parsed "NdM+K" expression. Count == 0 means a flat value.
type Formula struct {
	Count int
	Sides int
	Flat  int
}

// ParseFormula parses N, NdM, dM, NdM+K and NdM-K.
func ParseFormula(expr string) (Formula, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return Formula{}, nil
	}
	if n, err := strconv.Atoi(expr); err == nil {
		if n < -MaxFormulaFlat || n > MaxFormulaFlat {
			return Formula{}, fmt.Errorf("%w: %q: modifier out of range", ErrInvalidFormula, expr)
		}
		return Formula{Flat: n}, nil
	}

	m := formulaRe.FindStringSubmatch(expr)
	if m == nil {
		return Formula{}, fmt.Errorf("%w: %q", ErrInvalidFormula, expr)
	}

	count := 1
	if m[1] != "" {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return Formula{}, fmt.Errorf("%w: %q: %w", ErrInvalidFormula, expr, err)
		}
		count = n
	}
	sides, err := strconv.Atoi(m[2])
	if err != nil {
		return Formula{}, fmt.Errorf("%w: %q: %w", ErrInvalidFormula, expr, err)
	}
	if count <= 0 || sides <= 0 || count > MaxFormulaCount || sides > MaxFormulaSides {
		return Formula{}, fmt.Errorf("%w: %q: dice out of range", ErrInvalidFormula, expr)
	}

	flat := 0
	if m[3] != "" {
		flat, err = strconv.Atoi(m[4])
		if err != nil {
			return Formula{}, fmt.Errorf("%w: %q: %w", ErrInvalidFormula, expr, err)
		}
		if m[3] == "-" {
			flat = -flat
		}
	}
	if flat < -MaxFormulaFlat || flat > MaxFormulaFlat {
		return Formula{}, fmt.Errorf("%w: %q: modifier out of range", ErrInvalidFormula, expr)
	}

	return Formula{Count: count, Sides: sides, Flat: flat}, nil
}

// HasDice reports whether the formula rolls anything.
func (f Formula) HasDice() bool {
	return f.Count > 0 && f.Sides > 0
}

// Max returns the value with every die on its highest face.
func (f Formula) Max() int {
	if !f.HasDice() {
		return f.Flat
	}
	return f.Count*f.Sides + f.Flat
}

func (f Formula) String() string {
	switch {
	case !f.HasDice():
		return strconv.Itoa(f.Flat)
	case f.Flat > 0:
		return fmt.Sprintf("%dd%d+%d", f.Count, f.Sides, f.Flat)
	case f.Flat < 0:
		return fmt.Sprintf("%dd%d%d", f.Count, f.Sides, f.Flat)
	default:
		return fmt.Sprintf("%dd%d", f.Count, f.Sides)
	}
}
