package reference

import (
	"strings"
	"unicode/utf8"

	"github.com/agext/levenshtein"
)

// MatchTier is the tier at which a candidate matched a table key.
type MatchTier int

const (
	NoMatch MatchTier = iota
	Exact
	CaseInsensitive
	Fuzzy
	Ambiguous
)

func (m MatchTier) String() string {
	switch m {
	case Exact:
		return "exact"
	case CaseInsensitive:
		return "case_insensitive"
	case Fuzzy:
		return "fuzzy"
	case Ambiguous:
		return "ambiguous"
	default:
		return "no_match"
	}
}

type MatchResult struct {
	Tier     MatchTier
	Key      string
	Distance int
	// Keys tied at the deciding tier when Tier is Ambiguous.
	Tied []string
}

func (r MatchResult) Matched() bool {
	return r.Tier == Exact || r.Tier == CaseInsensitive || r.Tier == Fuzzy
}

// Match looks candidate up in t: exact key, then case-insensitive, then the
// closest key by edit distance. The fuzzy bound is maxDistance, tightened to a
// quarter of the candidate length so short tokens never match fuzzily. Two
// keys at the same tier and distance make the result Ambiguous.
func Match[V any](candidate string, t *Table[V], maxDistance int) MatchResult {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || t.Len() == 0 {
		return MatchResult{Tier: NoMatch}
	}
	if _, ok := t.Get(candidate); ok {
		return MatchResult{Tier: Exact, Key: candidate}
	}

	var folded []string
	for _, k := range t.keys {
		if strings.EqualFold(k, candidate) {
			folded = append(folded, k)
		}
	}
	switch len(folded) {
	case 0:
	case 1:
		return MatchResult{Tier: CaseInsensitive, Key: folded[0]}
	default:
		return MatchResult{Tier: Ambiguous, Tied: folded}
	}

	bound := min(maxDistance, utf8.RuneCountInString(candidate)/4)
	if bound <= 0 {
		return MatchResult{Tier: NoMatch}
	}
	lc := strings.ToLower(candidate)
	best := bound + 1
	var tied []string
	for _, k := range t.keys {
		d := levenshtein.Distance(lc, strings.ToLower(k), nil)
		if d > bound {
			continue
		}
		switch {
		case d < best:
			best = d
			tied = []string{k}
		case d == best:
			tied = append(tied, k)
		}
	}
	switch {
	case len(tied) == 0:
		return MatchResult{Tier: NoMatch}
	case len(tied) > 1:
		return MatchResult{Tier: Ambiguous, Distance: best, Tied: tied}
	}
	return MatchResult{Tier: Fuzzy, Key: tied[0], Distance: best}
}
