package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRollBundle(t *testing.T) {
	b, err := BuildRollBundle(BundleSpec{
		AttackDice:    0,
		AttackBonus:   2,
		DamageFormula: "2d6",
		DamageBonus:   1,
		Resistance:    &ResistanceRoll{Dice: -3, Mode: ModeDodge},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, b.Attack.Dice, "attack pool clamps to one die")
	assert.Equal(t, 2, b.Attack.Bonus)
	require.NotNil(t, b.Damage)
	assert.Equal(t, Formula{Count: 2, Sides: 6}, b.Damage.Formula)
	assert.Equal(t, 1, b.Damage.Bonus)
	require.NotNil(t, b.Resistance)
	assert.Equal(t, 1, b.Resistance.Dice)
	assert.Equal(t, ModeDodge, b.Resistance.Mode)
}

func TestBuildRollBundle_AttackOnly(t *testing.T) {
	b, err := BuildRollBundle(BundleSpec{AttackDice: 3})
	require.NoError(t, err)
	assert.Nil(t, b.Damage)
	assert.Nil(t, b.Resistance)
}

func TestBuildRollBundle_InvalidFormula(t *testing.T) {
	_, err := BuildRollBundle(BundleSpec{AttackDice: 3, DamageFormula: "lots"})
	assert.ErrorIs(t, err, ErrInvalidFormula)
}

func TestParseResistanceMode(t *testing.T) {
	for _, m := range []ResistanceMode{ModeResist, ModeDodge} {
		got, err := ParseResistanceMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseResistanceMode("parry")
	assert.Error(t, err)
}
