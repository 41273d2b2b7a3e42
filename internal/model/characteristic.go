package model

// Characteristic is an actor's stat after injury and effect modifiers.
//
// Invariants:
//
//	InjuryAdjusted = max(1, Base - InjuryStacks)
//	Final          = max(1, InjuryAdjusted + EffectBonus)
type Characteristic struct {
	Name           string
	Base           int
	InjuryStacks   int
	EffectBonus    int
	InjuryAdjusted int
	Final          int
}

// NewCharacteristic applies the injury and bonus formula to a base value.
func NewCharacteristic(name string, base, injuryStacks, effectBonus int) Characteristic {
	adjusted := max(1, base-injuryStacks)
	return Characteristic{
		Name:           name,
		Base:           base,
		InjuryStacks:   injuryStacks,
		EffectBonus:    effectBonus,
		InjuryAdjusted: adjusted,
		Final:          max(1, adjusted+effectBonus),
	}
}
