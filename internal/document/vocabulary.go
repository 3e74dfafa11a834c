// Package document holds the fixed vocabulary of the one credential format the
// kiosk accepts (Philippine LTO driver's license) and the cheap text scores
// built on it. Every stage that needs to ask "does this text look like the
// expected document" goes through here so the capture preview, the local
// recognizer and the field parser agree on the same terms.
package document

import (
	"regexp"
	"strings"
)

// Type names the only document class the engine recognizes.
const Type = "Driver's License"

// VerificationKeywords are the printed labels and headers of the license.
// Matching is case-insensitive substring matching on upper-cased text.
var VerificationKeywords = []string{
	"REPUBLIC", "PHILIPPINES", "DEPARTMENT", "TRANSPORTATION",
	"LAND TRANSPORTATION OFFICE", "DRIVER'S LICENSE", "DRIVERS LICENSE",
	"LICENSE", "NON-PROFESSIONAL", "PROFESSIONAL", "LAST NAME", "FIRST NAME",
	"MIDDLE NAME", "NATIONALITY", "DATE OF BIRTH", "ADDRESS", "LICENSE NO",
	"EXPIRATION DATE", "EXPIRATION",
}

// RestrictedTerms flag the ineligible sub-type (student permit and its
// official-receipt stub).
var RestrictedTerms = []string{
	"STUDENT PERMIT", "PERMIT NO.", "OR NUMBER", "AMOUNT PAID",
	"ORNUMBER", "AMOUNTPAID",
}

var (
	licenseNumberPattern = regexp.MustCompile(`[A-Z]\d{2}-\d{2}-\d{6}|[A-Z]\d{8}|\d{10}`)
	anyDatePattern       = regexp.MustCompile(`\d{2}[-/]\d{2}[-/]\d{4}|\d{1,2}[-/]\d{1,2}[-/]\d{2,4}|\d{4}[-/.]\d{2}[-/.]\d{2}`)
)

// CountKeywords returns how many distinct verification keywords occur in text.
func CountKeywords(text string) int {
	upper := strings.ToUpper(text)
	n := 0
	for _, kw := range VerificationKeywords {
		if strings.Contains(upper, kw) {
			n++
		}
	}
	return n
}

// RestrictedTerm returns the first restricted phrase found in text, or "" if
// the text does not look like a restricted document. STUDENT and PERMIT
// appearing anywhere together also count, since OCR often splits the phrase.
func RestrictedTerm(text string) string {
	upper := strings.ToUpper(text)
	for _, term := range RestrictedTerms {
		if strings.Contains(upper, term) {
			return term
		}
	}
	if strings.Contains(upper, "STUDENT") && strings.Contains(upper, "PERMIT") {
		return "STUDENT+PERMIT"
	}
	return ""
}

// IsRestricted reports whether text contains restricted-document vocabulary.
func IsRestricted(text string) bool {
	return RestrictedTerm(text) != ""
}

// ConfidenceScore rates how license-like a recognition output is, on a 0-100
// scale. It is a heuristic used to rank local recognition attempts against
// each other, not a calibrated probability.
func ConfidenceScore(text string, keywordsFound int) int {
	score := float64(keywordsFound) / float64(len(VerificationKeywords)) * 100
	score = min(90, max(30, score))

	if len(strings.TrimSpace(text)) > 50 {
		score += 10
	}
	upper := strings.ToUpper(text)
	if licenseNumberPattern.MatchString(upper) {
		score += 5
	}
	if anyDatePattern.MatchString(upper) {
		score += 5
	}
	return min(100, int(score))
}
