package model

import "slices"

// Actor is a character sheet as seen by the spell core.
type Actor struct {
	ID              string
	Name            string
	Owners          []string
	Characteristics map[string]int
	Effects         []ActiveEffect
	Mana            int
	BankedMana      int
}

// Attribute returns the configured base value of a characteristic.
func (a *Actor) Attribute(name string) (int, bool) {
	if a == nil || a.Characteristics == nil {
		return 0, false
	}
	v, ok := a.Characteristics[name]
	return v, ok
}

// SumBonusFor sums BonusFlags[key] across all active effects.
func (a *Actor) SumBonusFor(key string) int {
	if a == nil {
		return 0
	}
	total := 0
	for _, e := range a.Effects {
		total += e.BonusFlags[key]
	}
	return total
}

// InjuryStacks returns the counter of the injury marker effect (0 if absent).
func (a *Actor) InjuryStacks() int {
	if a == nil {
		return 0
	}
	for _, e := range a.Effects {
		if e.Kind == EffectKindInjury {
			return e.Stacks
		}
	}
	return 0
}

// CurrentStance returns the stance of the first stance-tagged effect.
func (a *Actor) CurrentStance() Stance {
	if a == nil {
		return StanceNone
	}
	for _, e := range a.Effects {
		if e.Stance != StanceNone {
			return e.Stance
		}
	}
	return StanceNone
}

// FindEffect returns the effect placed by casterID with the given kind.
func (a *Actor) FindEffect(casterID, kind string) (ActiveEffect, bool) {
	if a == nil {
		return ActiveEffect{}, false
	}
	for _, e := range a.Effects {
		if e.Matches(casterID, kind) {
			return e, true
		}
	}
	return ActiveEffect{}, false
}

// HasEffectKind reports whether any effect of kind is present, whoever cast it.
func (a *Actor) HasEffectKind(kind string) bool {
	if a == nil {
		return false
	}
	return slices.ContainsFunc(a.Effects, func(e ActiveEffect) bool {
		return e.Kind == kind
	})
}

// Caller identifies the user driving an operation.
type Caller struct {
	UserID string
	GM     bool
}

// Owns reports whether the caller may mutate the actor directly.
func (c Caller) Owns(a *Actor) bool {
	if a == nil {
		return false
	}
	return c.GM || slices.Contains(a.Owners, c.UserID)
}

// Clone returns a deep copy of the actor.
func (a *Actor) Clone() *Actor {
	if a == nil {
		return nil
	}
	c := *a
	c.Owners = slices.Clone(a.Owners)
	if a.Characteristics != nil {
		c.Characteristics = make(map[string]int, len(a.Characteristics))
		for k, v := range a.Characteristics {
			c.Characteristics[k] = v
		}
	}
	if a.Effects != nil {
		c.Effects = make([]ActiveEffect, len(a.Effects))
		for i, e := range a.Effects {
			c.Effects[i] = e.Clone()
		}
	}
	return &c
}
