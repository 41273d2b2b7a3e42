package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/grimoire/internal/model"
)

var allStances = []model.Stance{
	model.StanceNone,
	model.StanceFocus,
	model.StanceOffensive,
	model.StanceDefensive,
}

func TestCompute_FixedIsStanceInvariant(t *testing.T) {
	for _, s := range allStances {
		r := Compute(Fixed, 6, s)
		assert.Equal(t, 6, r.Cost, "stance %s", s)
		assert.Equal(t, 0, r.Saved, "stance %s", s)
	}
}

func TestCompute_FullyFocusable(t *testing.T) {
	for _, s := range allStances {
		r := Compute(FullyFocusable, 5, s)
		if s == model.StanceFocus {
			assert.Equal(t, 0, r.Cost)
			assert.Equal(t, 5, r.Saved)
			continue
		}
		assert.Equal(t, 5, r.Cost, "stance %s", s)
	}
}

func TestCompute_HalfFocusable(t *testing.T) {
	tests := []struct {
		base int
		want int
	}{
		{0, 0},
		{1, 1},
		{2, 1},
		{3, 2},
		{4, 2},
		{7, 4},
	}

	for _, tt := range tests {
		r := Compute(HalfFocusable, tt.base, model.StanceFocus)
		assert.Equal(t, tt.want, r.Cost, "base %d", tt.base)
		assert.Equal(t, tt.base-tt.want, r.Saved, "base %d", tt.base)
	}

	for base := 2; base <= 20; base++ {
		r := Compute(HalfFocusable, base, model.StanceFocus)
		assert.Less(t, r.Cost, base)
		assert.Greater(t, r.Cost, 0)
	}

	assert.Equal(t, 4, Compute(HalfFocusable, 4, model.StanceOffensive).Cost)
}

func TestCompute_NegativeBase(t *testing.T) {
	r := Compute(Fixed, -3, model.StanceNone)
	assert.Equal(t, 0, r.Cost)
	assert.Equal(t, 0, r.Base)
}

func TestParsePolicy(t *testing.T) {
	for _, p := range []Policy{Fixed, FullyFocusable, HalfFocusable} {
		got, err := ParsePolicy(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
	_, err := ParsePolicy("free")
	assert.Error(t, err)
}
