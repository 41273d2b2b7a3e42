package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBonusFlags(t *testing.T) {
	got := DecodeBonusFlags(map[string]any{
		"esprit":  2,
		"force":   float64(3),
		"agilite": "1",
		"label":   "brulure",
		"ratio":   1.5,
		"active":  true,
		"big":     int64(7),
	})

	assert.Equal(t, BonusFlags{"esprit": 2, "force": 3, "agilite": 1, "big": 7}, got)
	assert.Nil(t, DecodeBonusFlags(nil))
}

func TestActiveEffect_CloneIsDeep(t *testing.T) {
	e := ActiveEffect{ID: "e1", Charges: IntPtr(3), BonusFlags: BonusFlags{"esprit": 1}}
	c := e.Clone()

	*c.Charges = 1
	c.BonusFlags["esprit"] = 9

	require.NotNil(t, e.Charges)
	assert.Equal(t, 3, *e.Charges)
	assert.Equal(t, 1, e.BonusFlags["esprit"])
}

func TestEffectPatch_Apply(t *testing.T) {
	e := ActiveEffect{ID: "e1", Charges: IntPtr(3), Stacks: 1, BonusFlags: BonusFlags{"esprit": 1}}

	EffectPatch{Charges: IntPtr(2)}.Apply(&e)
	assert.Equal(t, 2, *e.Charges)
	assert.Equal(t, 1, e.Stacks)
	assert.Equal(t, BonusFlags{"esprit": 1}, e.BonusFlags)

	EffectPatch{Stacks: IntPtr(4), BonusFlags: BonusFlags{"force": 2}}.Apply(&e)
	assert.Equal(t, 4, e.Stacks)
	assert.Equal(t, BonusFlags{"force": 2}, e.BonusFlags)
}
