package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStance(t *testing.T) {
	tests := []struct {
		in      string
		want    Stance
		wantErr bool
	}{
		{"", StanceNone, false},
		{"none", StanceNone, false},
		{"focus", StanceFocus, false},
		{"offensive", StanceOffensive, false},
		{"defensive", StanceDefensive, false},
		{"berserk", StanceNone, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStance(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStance_JSONUsesNames(t *testing.T) {
	raw, err := json.Marshal(ActiveEffect{ID: "e", Kind: "posture", Stance: StanceDefensive})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"stance":"defensive"`)

	var e ActiveEffect
	require.NoError(t, json.Unmarshal(raw, &e))
	assert.Equal(t, StanceDefensive, e.Stance)

	assert.Error(t, json.Unmarshal([]byte(`{"stance":"berserk"}`), &e))
}
