// Package cost computes the mana cost of a spell under the caster's stance.
package cost

import (
	"fmt"

	"github.com/udisondev/grimoire/internal/model"
)

// Policy determines how the Focus stance affects a spell's cost.
type Policy int8

const (
	Fixed          Policy = iota // Stance-invariant
	FullyFocusable               // Free under Focus
	HalfFocusable                // Half price (rounded up) under Focus
)

func (p Policy) String() string {
	switch p {
	case Fixed:
		return "fixed"
	case FullyFocusable:
		return "focusable"
	case HalfFocusable:
		return "half_focusable"
	default:
		return fmt.Sprintf("policy(%d)", int8(p))
	}
}

// ParsePolicy converts a catalog string into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "fixed":
		return Fixed, nil
	case "focusable":
		return FullyFocusable, nil
	case "half_focusable":
		return HalfFocusable, nil
	default:
		return Fixed, fmt.Errorf("unknown cost policy %q", s)
	}
}

// Result is the cost actually charged plus the amount saved versus the base.
// Saved is reported so an armor-bank passive can be credited elsewhere.
type Result struct {
	Base  int
	Cost  int
	Saved int
}

// Compute returns the cost of a spell with the given policy and base cost.
// Negative base costs are treated as 0.
func Compute(policy Policy, base int, stance model.Stance) Result {
	base = max(base, 0)
	actual := base

	if stance == model.StanceFocus {
		switch policy {
		case FullyFocusable:
			actual = 0
		case HalfFocusable:
			actual = halveUp(base)
		}
	}

	return Result{Base: base, Cost: actual, Saved: base - actual}
}

// halveUp is the canonical half-cost rounding: ceil(base/2).
// base=1 stays 1, so a focused cast never becomes free by rounding.
func halveUp(base int) int {
	return (base + 1) / 2
}
