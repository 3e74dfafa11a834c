package fields

import (
	"strings"
	"unicode"
)

// NameSource records how a name candidate was found.
type NameSource string

const (
	NameSourceMarker  NameSource = "MARKER"
	NameSourcePattern NameSource = "PATTERN"
	NameSourceNone    NameSource = "NONE"
)

var (
	markerPhrases = []string{"LAST NAME", "FIRST NAME", "MIDDLE NAME"}
	markerTokens  = map[string]bool{"LN": true, "FN": true, "MN": true}
	// Compact label spellings OCR produces when it drops the separators.
	markerCompact = []string{"LNFN", "FNMN", "LNFMM"}

	addressTokens = map[string]bool{
		"BLK": true, "LOT": true, "STREET": true, "ST": true, "AVE": true,
		"ROAD": true, "BRGY": true, "CITY": true, "PHASE": true,
	}

	// labelPrefixes are card field labels; a line starting with one is a
	// label row, not a value.
	labelPrefixes = []string{
		"REPUBLIC", "DEPARTMENT", "LAND TRANSPORTATION", "DRIVER", "LICENSE",
		"NON-PROFESSIONAL", "PROFESSIONAL", "NATIONALITY", "ADDRESS", "DATE OF BIRTH",
		"EXPIRATION", "AGENCY CODE", "CONDITIONS", "EYES COLOR", "WEIGHT", "HEIGHT",
		"BLOOD TYPE", "RESTRICTION", "SIGNATURE", "SEX", "DL CODES",
	}
)

// Name-candidate scoring.
const (
	scoreBase       = 20
	scoreGoodLength = 3
	scoreAtMarker   = 50
	scoreNearMarker = 20
	scoreFarMarker  = -10
	scoreAddress    = -30
)

func words(upper string) []string {
	return strings.FieldsFunc(upper, func(r rune) bool { return !unicode.IsLetter(r) })
}

// isMarkerLine reports whether line is the name label row.
func isMarkerLine(line string) bool {
	upper := strings.ToUpper(line)
	hits := 0
	for _, p := range markerPhrases {
		if strings.Contains(upper, p) {
			hits++
		}
	}
	for _, w := range words(upper) {
		if markerTokens[w] {
			hits++
		}
	}
	if hits >= 2 {
		return true
	}

	compact := strings.NewReplacer(" ", "", ".", "", ",", "").Replace(upper)
	for _, c := range markerCompact {
		if strings.Contains(compact, c) {
			return true
		}
	}
	return false
}

func isLabelLine(upper string) bool {
	for _, p := range labelPrefixes {
		if upper == p || strings.HasPrefix(upper, p+" ") || strings.HasPrefix(upper, p+":") {
			return true
		}
	}
	return false
}

// cleanPart keeps letters and inner spaces, hyphens and apostrophes of one
// half of a name, and reports whether anything alphabetic was left.
func cleanPart(part string) (string, bool) {
	var b strings.Builder
	letters := 0
	for _, r := range strings.ToUpper(part) {
		switch {
		case unicode.IsLetter(r):
			letters++
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '\'':
			b.WriteRune(r)
		case r == '.':
		default:
			return "", false
		}
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	return cleaned, letters >= 2
}

// twoPartName accepts "SURNAME, GIVEN NAMES" lines: exactly one comma, no
// digits, both halves alphabetic. It returns the normalized form.
func twoPartName(line string) (string, bool) {
	if strings.Count(line, ",") != 1 || strings.ContainsFunc(line, unicode.IsDigit) {
		return "", false
	}
	surname, given, _ := strings.Cut(line, ",")
	s, ok := cleanPart(surname)
	if !ok {
		return "", false
	}
	g, ok := cleanPart(given)
	if !ok {
		return "", false
	}
	return s + ", " + g, true
}

func hasAddressToken(upper string) bool {
	for _, w := range words(upper) {
		if addressTokens[w] {
			return true
		}
	}
	return false
}

// findName locates the holder name in the recognized lines.
func findName(lines []string) (string, NameSource) {
	marker := -1
	for i, line := range lines {
		if isMarkerLine(line) {
			marker = i
			break
		}
	}

	if marker >= 0 && marker+1 < len(lines) {
		next := strings.ToUpper(lines[marker+1])
		if !isLabelLine(next) {
			if name, ok := twoPartName(next); ok {
				return name, NameSourceMarker
			}
		}
	}

	bestScore := 0
	bestName := ""
	for i, line := range lines {
		if i == marker || len(line) <= 5 || len(line) >= 50 {
			continue
		}
		upper := strings.ToUpper(line)
		if isLabelLine(upper) {
			continue
		}
		name, ok := twoPartName(upper)
		if !ok {
			continue
		}

		score := scoreBase
		if n := len(name); n >= 10 && n <= 30 {
			score += scoreGoodLength
		}
		if marker >= 0 {
			switch d := abs(i - marker - 1); {
			case d == 0:
				score += scoreAtMarker
			case d == 1:
				score += scoreNearMarker
			case d > 3:
				score += scoreFarMarker
			}
		}
		if hasAddressToken(upper) {
			score += scoreAddress
		}

		if score > bestScore {
			bestScore = score
			bestName = name
		}
	}
	if bestName != "" {
		return bestName, NameSourcePattern
	}
	return "", NameSourceNone
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
