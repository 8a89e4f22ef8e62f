package swarm

import "strings"

// sequenceRatio reimplements Python's difflib.SequenceMatcher(None, a,
// b).ratio() (the exact metric original_source's _text_similarity uses):
// twice the number of matching characters found by recursively splitting
// on the longest matching block, divided by the combined length of both
// strings. No Go library in the retrieval pack provides this metric, and
// it is small enough to be a faithful, direct port rather than an
// invented algorithm; see DESIGN.md for the standard-library
// justification.
func sequenceRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	matches := matchingCharacters(a, b)
	return 2.0 * float64(matches) / float64(total)
}

func matchingCharacters(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingCharacters(a[:i], b[:j]) + matchingCharacters(a[i+size:], b[j+size:])
}

// longestMatch finds the longest common substring of a and b, using the
// same b2j/j2len dynamic-programming sweep difflib.SequenceMatcher uses
// internally (minus junk-character handling, which this domain has no
// need for).
func longestMatch(a, b string) (besti, bestj, bestsize int) {
	b2j := map[byte][]int{}
	for j := 0; j < len(b); j++ {
		c := b[j]
		b2j[c] = append(b2j[c], j)
	}

	j2len := map[int]int{}
	for i := 0; i < len(a); i++ {
		newJ2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > bestsize {
				besti, bestj, bestsize = i-k+1, j-k+1, k
			}
		}
		j2len = newJ2len
	}
	return
}
