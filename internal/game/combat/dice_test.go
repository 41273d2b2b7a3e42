package combat

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRollDiceIsDeterministic ensures the same seed gives the same rolls.
func TestRollDiceIsDeterministic(t *testing.T) {
	req := RollRequest{Dice: []DiceSpec{{Sides: DieSides, Count: 4}, {Sides: 6, Count: 2}}, Seed: 42}

	first, err := RollDice(req)
	require.NoError(t, err)
	second, err := RollDice(req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// TestRollDiceHandlesMultipleSpecs ensures specs are rolled in order from one generator.
func TestRollDiceHandlesMultipleSpecs(t *testing.T) {
	seed := int64(7)
	rng := rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1))
	first := []int{rng.IntN(7) + 1, rng.IntN(7) + 1}
	second := []int{rng.IntN(8) + 1}

	result, err := RollDice(RollRequest{
		Dice: []DiceSpec{{Sides: 7, Count: 2}, {Sides: 8, Count: 1}},
		Seed: seed,
	})
	require.NoError(t, err)
	require.Len(t, result.Rolls, 2)

	assert.Equal(t, first, result.Rolls[0].Results)
	assert.Equal(t, second, result.Rolls[1].Results)
	assert.Equal(t, first[0]+first[1]+second[0], result.Total)
}

func TestRollDiceStaysInRange(t *testing.T) {
	for seed := range int64(200) {
		result, err := RollDice(RollRequest{Dice: []DiceSpec{{Sides: DieSides, Count: 3}}, Seed: seed})
		require.NoError(t, err)
		for _, v := range result.Rolls[0].Results {
			if v < 1 || v > DieSides {
				t.Fatalf("seed %d: die value %d out of range", seed, v)
			}
		}
	}
}

func TestRollDiceRejectsInvalidRequests(t *testing.T) {
	_, err := RollDice(RollRequest{Seed: 1})
	assert.True(t, errors.Is(err, ErrMissingDice))

	for _, spec := range []DiceSpec{{Sides: 0, Count: 1}, {Sides: 6, Count: 0}, {Sides: -1, Count: 2}} {
		_, err := RollDice(RollRequest{Dice: []DiceSpec{spec}, Seed: 1})
		assert.ErrorIs(t, err, ErrInvalidDiceSpec, "spec %+v", spec)
	}
}

func TestParseFormula(t *testing.T) {
	tests := []struct {
		expr    string
		want    Formula
		wantErr bool
	}{
		{expr: "1d6", want: Formula{Count: 1, Sides: 6}},
		{expr: "d8", want: Formula{Count: 1, Sides: 8}},
		{expr: " 2D7 + 3 ", want: Formula{Count: 2, Sides: 7, Flat: 3}},
		{expr: "3d4-1", want: Formula{Count: 3, Sides: 4, Flat: -1}},
		{expr: "5", want: Formula{Flat: 5}},
		{expr: "", want: Formula{}},
		{expr: "0d6", wantErr: true},
		{expr: "2d0", wantErr: true},
		{expr: "fireball", wantErr: true},
		{expr: "2d6x2", wantErr: true},
		{expr: "100d100+1000", want: Formula{Count: 100, Sides: 100, Flat: 1000}},
		{expr: "99999999999999999999d6", wantErr: true},
		{expr: "1d99999999999999999999", wantErr: true},
		{expr: "1d6+99999999999999999999", wantErr: true},
		{expr: "101d6", wantErr: true},
		{expr: "1d101", wantErr: true},
		{expr: "1d6-1001", wantErr: true},
		{expr: "5000", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := ParseFormula(tt.expr)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidFormula)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormula_MaxAndString(t *testing.T) {
	assert.Equal(t, 6, Formula{Count: 1, Sides: 6}.Max())
	assert.Equal(t, 17, Formula{Count: 2, Sides: 7, Flat: 3}.Max())
	assert.Equal(t, 4, Formula{Flat: 4}.Max())

	assert.Equal(t, "2d7+3", Formula{Count: 2, Sides: 7, Flat: 3}.String())
	assert.Equal(t, "3d4-1", Formula{Count: 3, Sides: 4, Flat: -1}.String())
	assert.Equal(t, "1d6", Formula{Count: 1, Sides: 6}.String())
	assert.Equal(t, "4", Formula{Flat: 4}.String())
}
