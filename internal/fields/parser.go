// Package fields pulls structured values out of noisy license text: the
// holder name, the expiration date and whether the card is a restricted
// document type.
package fields

import (
	"strings"

	"github.com/MeKo-Tech/motorpass/internal/document"
)

// Parsed is the structured view of one recognition result.
type Parsed struct {
	NameCandidate  string     `json:"name_candidate,omitempty" yaml:"name_candidate,omitempty"`
	NameSource     NameSource `json:"name_source" yaml:"name_source"`
	Expiration     *Date      `json:"expiration,omitempty" yaml:"expiration,omitempty"`
	BirthDates     []Date     `json:"birth_dates,omitempty" yaml:"birth_dates,omitempty"`
	Restricted     bool       `json:"restricted" yaml:"restricted"`
	RestrictedTerm string     `json:"restricted_term,omitempty" yaml:"restricted_term,omitempty"`
	KeywordCount   int        `json:"keyword_count" yaml:"keyword_count"`
}

// HasName reports whether a name candidate was found.
func (p Parsed) HasName() bool { return p.NameCandidate != "" }

// DocumentDetected reports whether any license vocabulary was recognized.
func (p Parsed) DocumentDetected() bool { return p.KeywordCount >= 1 }

// Lines splits raw text into trimmed, non-empty lines.
func Lines(raw string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

// Parse extracts fields from raw recognized text. Restricted documents are
// reported without further parsing. Parse never fails; missing values are
// left empty.
func Parse(raw string) Parsed {
	p := Parsed{NameSource: NameSourceNone, KeywordCount: document.CountKeywords(raw)}

	if term := document.RestrictedTerm(raw); term != "" {
		p.Restricted = true
		p.RestrictedTerm = term
		return p
	}

	birth, other := scanDates(raw)
	p.BirthDates = birth
	p.Expiration = pickExpiration(birth, other)

	p.NameCandidate, p.NameSource = findName(Lines(raw))
	return p
}
