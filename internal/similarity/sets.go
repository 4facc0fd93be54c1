package similarity

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// Normalize lower-cases a string and strips punctuation, collapsing runs of
// whitespace. Used before any set membership or token comparison.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// tokens splits a normalized string into its word set.
func tokens(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(Normalize(s)) {
		set[w] = struct{}{}
	}
	return set
}

// WordJaccard computes the Jaccard index over the word sets of two strings.
// Two empty strings score 0.
func WordJaccard(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// StringSimilarity returns 1 for normalized-equal strings, else the word-level
// Jaccard measure.
func StringSimilarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" && nb == "" {
		return 0
	}
	if na == nb {
		return 1
	}
	return WordJaccard(na, nb)
}

// SetSimilarity scores two string sets with a Jaccard index extended by a
// near-match credit: a pair whose word-level Jaccard exceeds nearThreshold
// counts as nearCredit of a match instead of 0 or 1. Exact matches are
// consumed before any near pairing, and near pairs are consumed highest
// score first with a stable tie-break, so the score is independent of
// argument order and map iteration order. The result is clamped to [0,1]
// because near-match credit can otherwise push the effective match count
// past the union size. Empty input on either side scores 0.
func SetSimilarity(a, b []string, nearThreshold, nearCredit float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	normA := normalizeSet(a)
	normB := normalizeSet(b)

	matchedB := make(map[string]bool, len(normB))
	var effective float64

	var restA []string
	for ea := range normA {
		if _, ok := normB[ea]; ok {
			effective++
			matchedB[ea] = true
			continue
		}
		restA = append(restA, ea)
	}

	type nearPair struct {
		a, b  string
		score float64
	}
	var pairs []nearPair
	for _, ea := range restA {
		for eb := range normB {
			if matchedB[eb] {
				continue
			}
			if s := WordJaccard(ea, eb); s > nearThreshold {
				pairs = append(pairs, nearPair{a: ea, b: eb, score: s})
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		li, hi := orderPair(pairs[i].a, pairs[i].b)
		lj, hj := orderPair(pairs[j].a, pairs[j].b)
		if li != lj {
			return li < lj
		}
		return hi < hj
	})

	matchedA := make(map[string]bool, len(restA))
	for _, p := range pairs {
		if matchedA[p.a] || matchedB[p.b] {
			continue
		}
		matchedA[p.a] = true
		matchedB[p.b] = true
		effective += nearCredit
	}

	denom := float64(len(normA)+len(normB)) - effective
	if denom <= 0 {
		return 1
	}
	return math.Min(math.Max(effective/denom, 0), 1)
}

// orderPair returns the two strings in lexicographic order so tie-breaking
// treats a pair the same regardless of which set contributed which element.
func orderPair(a, b string) (string, string) {
	if a < b {
		return a, b
	}
	return b, a
}

// normalizeSet maps normalized forms to presence, dropping empties and dupes.
func normalizeSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		if n := Normalize(it); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

// NumericSimilarity scores two non-negative magnitudes: 1 − min(|a−b|/max, 1).
// Equal values score 1; both zero score 1.
func NumericSimilarity(a, b float64) float64 {
	if a == b {
		return 1
	}
	m := math.Max(math.Abs(a), math.Abs(b))
	if m == 0 {
		return 1
	}
	return 1 - math.Min(math.Abs(a-b)/m, 1)
}

// Levenshtein computes the edit distance between two strings by runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// LevenshteinSimilarity normalizes edit distance to [0,1]: 1 − d/max(len).
// Two empty strings score 1.
func LevenshteinSimilarity(a, b string) float64 {
	la, lb := len([]rune(a)), len([]rune(b))
	m := la
	if lb > m {
		m = lb
	}
	if m == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(m)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
