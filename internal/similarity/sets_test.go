package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Organic Honey", "organic honey"},
		{"strips punctuation", "CE-marked, (EU)!", "ce marked eu"},
		{"collapses whitespace", "  a   b  ", "a b"},
		{"empty", "", ""},
		{"only punctuation", "---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestWordJaccard(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "organic honey", "organic honey", 1.0},
		{"disjoint", "organic honey", "steel pipes", 0.0},
		{"half overlap", "organic honey", "organic jam", 1.0 / 3},
		{"empty vs nonempty", "", "honey", 0.0},
		{"both empty", "", "", 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, WordJaccard(tt.a, tt.b), 0.001)
		})
	}
}

func TestSetSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []string
		wantMin float64
		wantMax float64
	}{
		{"identical", []string{"honey", "jam"}, []string{"honey", "jam"}, 1.0, 1.0},
		{"identical ignoring case", []string{"Honey"}, []string{"honey"}, 1.0, 1.0},
		{"disjoint", []string{"honey"}, []string{"steel"}, 0.0, 0.0},
		{"empty a", nil, []string{"honey"}, 0.0, 0.0},
		{"both empty", nil, nil, 0.0, 0.0},
		{"partial overlap", []string{"honey", "jam"}, []string{"honey", "steel"}, 1.0 / 3, 1.0 / 3},
		// "organic honey products" vs "organic honey" tokens overlap 2/3,
		// below the 0.8 near bar, so no credit.
		{"below near threshold", []string{"organic honey products"}, []string{"organic honey"}, 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SetSimilarity(tt.a, tt.b, 0.8, 0.7)
			assert.GreaterOrEqual(t, got, tt.wantMin-0.001)
			assert.LessOrEqual(t, got, tt.wantMax+0.001)
		})
	}
}

func TestSetSimilarityNearMatchCredit(t *testing.T) {
	// 5 shared tokens of 6 => token jaccard 5/6 > 0.8, awarding 0.7 credit.
	a := []string{"iso 9001 quality management system certificate"}
	b := []string{"iso 9001 quality management system"}

	got := SetSimilarity(a, b, 0.8, 0.7)
	// effective = 0.7, denom = 2 - 0.7 = 1.3
	assert.InDelta(t, 0.7/1.3, got, 0.001)

	// With credit disabled the same pair scores 0.
	assert.InDelta(t, 0, SetSimilarity(a, b, 1.01, 0), 0.001)
}

func TestSetSimilarityExactMatchTakesPriority(t *testing.T) {
	// The shared element pairs up exactly; the longer variant earns no
	// second credit because its only near candidate is already consumed.
	a := []string{"iso 9001 quality management", "iso 9001 quality management system"}
	b := []string{"iso 9001 quality management"}

	got := SetSimilarity(a, b, 0.8, 0.7)
	// effective = 1, denom = 3 - 1 = 2
	assert.InDelta(t, 0.5, got, 0.001)
}

func TestSetSimilaritySymmetric(t *testing.T) {
	a := []string{"iso 9001 quality management", "iso 9001 quality management system"}
	b := []string{"iso 9001 quality management"}

	ab := SetSimilarity(a, b, 0.8, 0.7)
	ba := SetSimilarity(b, a, 0.8, 0.7)
	assert.InDelta(t, ab, ba, 1e-9)
}

func TestSetSimilarityDeterministic(t *testing.T) {
	a := []string{"iso 9001 quality management", "iso 9001 quality management system", "ce marking low voltage"}
	b := []string{"iso 9001 quality management", "ce marking low voltage directive"}

	first := SetSimilarity(a, b, 0.5, 0.7)
	for i := 0; i < 100; i++ {
		assert.InDelta(t, first, SetSimilarity(a, b, 0.5, 0.7), 1e-9)
		assert.InDelta(t, first, SetSimilarity(b, a, 0.5, 0.7), 1e-9)
	}
}

func TestSetSimilarityClamped(t *testing.T) {
	for _, pair := range [][2][]string{
		{{"a", "b", "c"}, {"a", "b"}},
		{{"wireless sensor node alpha"}, {"wireless sensor node beta"}},
		{{"x"}, {"x", "y", "z"}},
	} {
		got := SetSimilarity(pair[0], pair[1], 0.5, 1.0)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestNumericSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		want float64
	}{
		{"equal", 50, 50, 1.0},
		{"both zero", 0, 0, 1.0},
		{"double", 50, 100, 0.5},
		{"order independent", 100, 50, 0.5},
		{"one zero", 0, 80, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NumericSimilarity(tt.a, tt.b), 0.001)
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want int
	}{
		{"kitten sitting", "kitten", "sitting", 3},
		{"identical", "honey", "honey", 0},
		{"empty a", "", "abc", 3},
		{"empty b", "abc", "", 3},
		{"single substitution", "cat", "car", 1},
		{"unicode", "señor", "senor", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Levenshtein(tt.a, tt.b))
		})
	}
}

func TestLevenshteinSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, LevenshteinSimilarity("", ""), 0.001)
	assert.InDelta(t, 1.0, LevenshteinSimilarity("abc", "abc"), 0.001)
	assert.InDelta(t, 1-3.0/7, LevenshteinSimilarity("kitten", "sitting"), 0.001)
	assert.InDelta(t, 0.0, LevenshteinSimilarity("abc", "xyz"), 0.001)
}
