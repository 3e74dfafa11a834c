package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"DELA CRUZ, JUAN", "dela cruz juan"},
		{"  José   Rizal ", "jose rizal"},
		{"PEÑA-REYES,  ANA", "pena reyes ana"},
		{"O'Brien", "o brien"},
		{"", ""},
		{",.;", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestMatch_Exact(t *testing.T) {
	r := Match("DELA CRUZ, JUAN", "Dela Cruz Juan")
	assert.Equal(t, 1.0, r.Score)
	assert.Equal(t, StrategyExact, r.Strategy)

	r = Match("JOSE RIZAL", "José Rizal")
	assert.Equal(t, 1.0, r.Score)

	// Spacing differences still count as the same name.
	r = Match("DELACRUZ JUAN", "Dela Cruz Juan")
	assert.Equal(t, StrategyExact, r.Strategy)
}

func TestMatch_ReorderedName(t *testing.T) {
	r := Match("DELA CRUZ, JUAN", "Juan Dela Cruz")
	assert.Equal(t, StrategyHeuristic, r.Strategy)
	assert.GreaterOrEqual(t, r.Score, 0.9)
	assert.Less(t, r.Score, 1.0)
	assert.Equal(t, "DELA CRUZ, JUAN", r.MatchedText)
}

func TestMatch_LowOverlapCap(t *testing.T) {
	r := Match("MARIA SANTOS", "PEDRO GARCIA")
	assert.LessOrEqual(t, r.Score, 0.5)

	// High character similarity without a shared word is still capped.
	r = Match("ABCDEFGHIJKLMN", "ABCDEFGHIJKL")
	assert.InDelta(t, 0.5, r.Score, 1e-9)
}

func TestMatch_SubstringBonus(t *testing.T) {
	r := Match("MARIE DELOS SANTOS", "Anna Marie Delos Santos Reyes")
	assert.InDelta(t, 0.8, r.Score, 1e-9)

	// Full word overlap would floor these at 0.9; the containment cap wins.
	r = Match("DELA CRUZ JUAN PEDRO", "DELA CRUZ JUAN")
	assert.InDelta(t, 0.8, r.Score, 1e-9)
	r = Match("JUAN DELA CRUZ SANTOS", "JUAN DELA CRUZ")
	assert.InDelta(t, 0.8, r.Score, 1e-9)
	assert.LessOrEqual(t, r.Score, 0.85)
}

func TestMatch_OverlapTiers(t *testing.T) {
	// Two of three reference words: 0.67 overlap.
	r := Match("JUAN CRUZ", "Juan Dela Cruz")
	assert.GreaterOrEqual(t, r.Score, 0.75)

	// Two of five: 0.4 overlap.
	r = Match("JUAN CRUZ", "Juan Pablo Dela Cruz Santos")
	assert.GreaterOrEqual(t, r.Score, 0.6)
	assert.Less(t, r.Score, 0.9)
}

func TestMatch_Empty(t *testing.T) {
	assert.Zero(t, Match("", "Juan").Score)
	assert.Zero(t, Match("Juan", "").Score)
}

func TestMatchLines(t *testing.T) {
	lines := []string{
		"REPUBLIC OF THE PHILIPPINES",
		"ab",
		"DELA CRUZ, JUAN",
		"NATIONALITY PHL",
	}
	r := MatchLines("Juan Dela Cruz", lines)
	assert.Equal(t, "DELA CRUZ, JUAN", r.MatchedText)
	assert.GreaterOrEqual(t, r.Score, 0.9)

	r = MatchLines("Juan Dela Cruz", []string{"noise", "  JUAN DELA CRUZ  ", "JUAN DELA CRUZ JR"})
	assert.Equal(t, StrategyExact, r.Strategy)
	assert.Equal(t, "JUAN DELA CRUZ", r.MatchedText)

	r = MatchLines("", lines)
	assert.Zero(t, r.Score)
	assert.Empty(t, r.MatchedText)

	r = MatchLines("Juan", []string{"a", "bc"})
	assert.Zero(t, r.Score)
}

func TestRatio(t *testing.T) {
	assert.Equal(t, 1.0, Ratio("", ""))
	assert.Equal(t, 1.0, Ratio("abc", "abc"))
	assert.Zero(t, Ratio("abc", "xyz"))
	assert.InDelta(t, 0.75, Ratio("abcd", "abce"), 1e-9)
}
