package search

import "strings"

// Tiered term scores. Exact matches must always outrank partial ones,
// so the tiers are fixed values rather than a continuous metric.
const (
	scoreExact          = 10
	scoreContains       = 5
	scoreContained      = 3
	scoreNearTypo       = 2
	scoreFarTypo        = 1
	nearEditDistance = 2
	maxEditDistance  = 3
	minFuzzyTermLen  = 3
	maxFuzzyLenRatio = 2
)

// fuzzyScore rates how well a candidate field value matches one query
// term. Comparison is case-insensitive. Zero means no match.
func fuzzyScore(term, candidate string) int {
	term = strings.ToLower(strings.TrimSpace(term))
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if term == "" || candidate == "" {
		return 0
	}
	if term == candidate {
		return scoreExact
	}
	if strings.Contains(candidate, term) {
		return scoreContains
	}
	if strings.Contains(term, candidate) {
		return scoreContained
	}
	// Edit distance only makes sense between words of comparable
	// length; very short terms produce spurious typo matches.
	if len(term) < minFuzzyTermLen || len(candidate) < minFuzzyTermLen {
		return 0
	}
	if len(candidate) > len(term)*maxFuzzyLenRatio || len(term) > len(candidate)*maxFuzzyLenRatio {
		return 0
	}
	switch d := editDistance(term, candidate, maxEditDistance); {
	case d < 0:
		return 0
	case d <= nearEditDistance:
		return scoreNearTypo
	default:
		return scoreFarTypo
	}
}

// editDistance computes the Levenshtein distance between a and b,
// abandoning at max; returns -1 when the distance exceeds max. Two
// rows of the classic table, O(min-length) memory.
func editDistance(a, b string, max int) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) > len(rb) {
		ra, rb = rb, ra
	}
	if len(rb)-len(ra) > max {
		return -1
	}

	prev := make([]int, len(ra)+1)
	curr := make([]int, len(ra)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(rb); j++ {
		curr[0] = j
		rowMin := curr[0]
		for i := 1; i <= len(ra); i++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[i] = min3(prev[i]+1, curr[i-1]+1, prev[i-1]+cost)
			if curr[i] < rowMin {
				rowMin = curr[i]
			}
		}
		if rowMin > max {
			return -1
		}
		prev, curr = curr, prev
	}
	if prev[len(ra)] > max {
		return -1
	}
	return prev[len(ra)]
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
