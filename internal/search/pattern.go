package search

import (
	"math"
	"regexp"
	"strings"

	"github.com/hir4ta/mneme-sub001/internal/docstore"
)

// Field weights for pattern matches. A keyword hit counts more than a
// description hit.
const (
	weightName        = 4.0
	weightKeyword     = 3.0
	weightDescription = 1.0
)

// Priority boosts applied after base scoring.
const (
	boostHighest = 5.0
	boostMedium  = 2.0
)

// patternMatcher matches query terms against pattern fields with a
// single compiled alternation.
type patternMatcher struct {
	re *regexp.Regexp
}

// newPatternMatcher compiles the query terms into one case-insensitive
// alternation. Terms are regexp-escaped; the query is data, never
// syntax.
func newPatternMatcher(terms []string) *patternMatcher {
	quoted := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			quoted = append(quoted, regexp.QuoteMeta(t))
		}
	}
	if len(quoted) == 0 {
		return &patternMatcher{}
	}
	re, err := regexp.Compile("(?i)(" + strings.Join(quoted, "|") + ")")
	if err != nil {
		return &patternMatcher{}
	}
	return &patternMatcher{re: re}
}

// score rates one pattern. Each matching field contributes its base
// weight once plus a logarithmic bonus for repeated occurrences, so
// repeats can never drown the field weights or the priority boosts.
// Returns zero when nothing matches; the boost alone never surfaces a
// pattern.
func (pm *patternMatcher) score(p docstore.Pattern) (float64, []string) {
	if pm.re == nil {
		return 0, nil
	}

	var score float64
	var fields []string

	if n := len(pm.re.FindAllStringIndex(p.Name, -1)); n > 0 {
		score += weightName + repeatBonus(n)
		fields = append(fields, "name")
	}
	kwHits := 0
	for _, kw := range p.Keywords {
		kwHits += len(pm.re.FindAllStringIndex(kw, -1))
	}
	if kwHits > 0 {
		score += weightKeyword + repeatBonus(kwHits)
		fields = append(fields, "keywords")
	}
	if n := len(pm.re.FindAllStringIndex(p.Description, -1)); n > 0 {
		score += weightDescription + repeatBonus(n)
		fields = append(fields, "description")
	}

	if len(fields) == 0 {
		return 0, nil
	}

	switch p.Priority {
	case docstore.PriorityHighest:
		score += boostHighest
	case docstore.PriorityMedium:
		score += boostMedium
	}
	return score, fields
}

// repeatBonus grows sublinearly with the occurrence count. A single
// hit adds nothing beyond the field weight.
func repeatBonus(n int) float64 {
	return math.Log(float64(n))
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
