package pattern

import "github.com/exportwise/advisor-cli/internal/similarity"

// unionTopN unions evidence lists preserving insertion order, dropping
// duplicates by normalized form, and truncates to n entries.
func unionTopN(n int, lists ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, list := range lists {
		for _, item := range list {
			key := similarity.Normalize(item)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, item)
			if len(out) == n {
				return out
			}
		}
	}
	return out
}

// TopNByFrequency returns the n most frequent items across the lists,
// ties broken by first appearance. The original casing of the first
// occurrence is kept.
func TopNByFrequency(n int, lists ...[]string) []string {
	type entry struct {
		display string
		count   int
		first   int
	}
	index := make(map[string]*entry)
	order := 0
	for _, list := range lists {
		for _, item := range list {
			key := similarity.Normalize(item)
			if key == "" {
				continue
			}
			if e, ok := index[key]; ok {
				e.count++
				continue
			}
			index[key] = &entry{display: item, count: 1, first: order}
			order++
		}
	}

	entries := make([]*entry, 0, len(index))
	for _, e := range index {
		entries = append(entries, e)
	}
	// Insertion sort by (count desc, first asc); evidence lists are small.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0; j-- {
			a, b := entries[j], entries[j-1]
			if a.count > b.count || (a.count == b.count && a.first < b.first) {
				entries[j], entries[j-1] = b, a
			} else {
				break
			}
		}
	}

	if len(entries) > n {
		entries = entries[:n]
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.display
	}
	return out
}

// mode returns the most frequent non-empty value, ties broken by first seen.
func mode(values []string) string {
	counts := make(map[string]int)
	firsts := make(map[string]int)
	order := 0
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := counts[v]; !ok {
			firsts[v] = order
			order++
		}
		counts[v]++
	}

	best := ""
	for v, c := range counts {
		if best == "" || c > counts[best] || (c == counts[best] && firsts[v] < firsts[best]) {
			best = v
		}
	}
	return best
}

// overlaps reports whether two string slices share at least one normalized member.
func overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, s := range a {
		set[similarity.Normalize(s)] = struct{}{}
	}
	for _, s := range b {
		if _, ok := set[similarity.Normalize(s)]; ok {
			return true
		}
	}
	return false
}
