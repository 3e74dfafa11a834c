// Package match scores how well a name read off a document agrees with the
// name the kiosk already knows for the rider.
package match

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Strategy records how a score was reached.
type Strategy string

const (
	StrategyExact     Strategy = "EXACT"
	StrategyMarker    Strategy = "MARKER"
	StrategyHeuristic Strategy = "HEURISTIC"
)

// Result is a similarity score in [0,1]. 1.0 only ever means the normalized
// names are identical.
type Result struct {
	Score       float64  `json:"score" yaml:"score"`
	MatchedText string   `json:"matched_text,omitempty" yaml:"matched_text,omitempty"`
	Strategy    Strategy `json:"strategy" yaml:"strategy"`
}

// Score tiers by word overlap.
const (
	highOverlap   = 0.8
	midOverlap    = 0.6
	lowOverlap    = 0.4
	highFloor     = 0.9
	midFloor      = 0.75
	lowFloor      = 0.6
	lowOverlapCap = 0.5

	substringMinLen   = 10
	substringMinBase  = 0.4
	substringBonus    = 0.1
	substringBonusCap = 0.8

	// nonExactCeiling keeps heuristic scores strictly below an exact match.
	nonExactCeiling = 0.99

	minLineLen = 3
)

// Ratio is the SequenceMatcher similarity of two strings, compared rune by rune.
func Ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio()
}

// Match scores candidate against reference.
func Match(candidate, reference string) Result {
	nc, nr := Normalize(candidate), Normalize(reference)
	if nc == "" || nr == "" {
		return Result{Score: 0, MatchedText: candidate, Strategy: StrategyHeuristic}
	}
	if compact(nc) == compact(nr) {
		return Result{Score: 1, MatchedText: candidate, Strategy: StrategyExact}
	}

	base := Ratio(nc, nr)
	overlap := wordOverlap(nc, nr)

	var score float64
	switch {
	case overlap >= highOverlap:
		score = max(highFloor, base)
	case overlap >= midOverlap:
		score = max(midFloor, base)
	case overlap >= lowOverlap:
		score = max(lowFloor, base)
	default:
		score = base
	}

	// The bonus caps the total, so it also pulls an overlap floor above the
	// cap back down to it.
	if base >= substringMinBase && substringOf(nc, nr) {
		score = min(score+substringBonus, substringBonusCap)
	}
	if overlap < lowOverlap {
		score = min(score, lowOverlapCap)
	}

	return Result{Score: min(score, nonExactCeiling), MatchedText: candidate, Strategy: StrategyHeuristic}
}

// wordOverlap is the share of reference words (two letters or more) that
// also appear in the candidate.
func wordOverlap(nc, nr string) float64 {
	ref := tokens(nr)
	if len(ref) == 0 {
		return 0
	}
	cand := tokens(nc)
	shared := 0
	for w := range ref {
		if _, ok := cand[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(ref))
}

func substringOf(a, b string) bool {
	return (len(a) >= substringMinLen && strings.Contains(b, a)) ||
		(len(b) >= substringMinLen && strings.Contains(a, b))
}

// MatchLines scores every recognized line against reference and returns the
// best one. Lines shorter than three characters are skipped. An exact line
// ends the search.
func MatchLines(reference string, lines []string) Result {
	best := Result{Strategy: StrategyHeuristic}
	if strings.TrimSpace(reference) == "" {
		return best
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) < minLineLen {
			continue
		}
		r := Match(line, reference)
		if r.Strategy == StrategyExact {
			return r
		}
		if r.Score > best.Score {
			best = r
		}
	}
	return best
}
