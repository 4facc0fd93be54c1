package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnionTopN(t *testing.T) {
	got := unionTopN(3,
		[]string{"local partner", "trade fair"},
		[]string{"Local Partner", "certified early", "translator"},
	)
	// Duplicates collapse on normalized form, first casing wins, capped at 3.
	assert.Equal(t, []string{"local partner", "trade fair", "certified early"}, got)
}

func TestUnionTopNDropsEmpty(t *testing.T) {
	got := unionTopN(5, []string{"", "a", " ", "b"})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestTopNByFrequency(t *testing.T) {
	got := TopNByFrequency(2,
		[]string{"customs delay", "labeling"},
		[]string{"customs delay", "certification"},
		[]string{"customs delay", "labeling"},
	)
	assert.Equal(t, []string{"customs delay", "labeling"}, got)
}

func TestTopNByFrequencyTieBreaksByFirstSeen(t *testing.T) {
	got := TopNByFrequency(2,
		[]string{"alpha", "beta", "gamma"},
	)
	assert.Equal(t, []string{"alpha", "beta"}, got)
}

func TestMode(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   string
	}{
		{"clear winner", []string{"direct", "distributor", "direct"}, "direct"},
		{"tie goes to first seen", []string{"direct", "distributor"}, "direct"},
		{"skips empty", []string{"", "", "distributor"}, "distributor"},
		{"all empty", []string{"", ""}, ""},
		{"no values", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mode(tt.values))
		})
	}
}

func TestOverlaps(t *testing.T) {
	assert.True(t, overlaps([]string{"DE", "FR"}, []string{"fr"}))
	assert.False(t, overlaps([]string{"DE"}, []string{"JP"}))
	assert.False(t, overlaps(nil, []string{"DE"}))
	assert.False(t, overlaps([]string{"DE"}, nil))
}
