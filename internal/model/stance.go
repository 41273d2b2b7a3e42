package model

import "fmt"

// Stance is a mutually exclusive combat posture.
// At most one stance-tagged effect is active on an actor at a time.
type Stance int8

const (
	StanceNone Stance = iota
	StanceFocus
	StanceOffensive
	StanceDefensive
)

func (s Stance) String() string {
	switch s {
	case StanceNone:
		return "none"
	case StanceFocus:
		return "focus"
	case StanceOffensive:
		return "offensive"
	case StanceDefensive:
		return "defensive"
	default:
		return fmt.Sprintf("stance(%d)", int8(s))
	}
}

// ParseStance converts a catalog/host string into a Stance.
// Empty string maps to StanceNone.
func ParseStance(s string) (Stance, error) {
	switch s {
	case "", "none":
		return StanceNone, nil
	case "focus":
		return StanceFocus, nil
	case "offensive":
		return StanceOffensive, nil
	case "defensive":
		return StanceDefensive, nil
	default:
		return StanceNone, fmt.Errorf("unknown stance %q", s)
	}
}

func (s Stance) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Stance) UnmarshalText(b []byte) error {
	v, err := ParseStance(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
