package fields

import (
	"regexp"
	"strings"
	"time"
)

var datePattern = regexp.MustCompile(`\b(\d{4})[/.-](\d{2})[/.-](\d{2})\b`)

// birthLookback is how many bytes before a date are searched for a birth label.
const birthLookback = 30

// scanDates returns every valid YYYY/MM/DD date in text, split into dates
// labelled as a birth date and everything else, each in text order.
func scanDates(text string) (birth, other []Date) {
	for _, m := range datePattern.FindAllStringSubmatchIndex(text, -1) {
		normalized := text[m[2]:m[3]] + "-" + text[m[4]:m[5]] + "-" + text[m[6]:m[7]]
		t, err := time.Parse(isoLayout, normalized)
		if err != nil {
			continue
		}
		d := DateOf(t)

		before := strings.ToUpper(text[max(0, m[0]-birthLookback):m[0]])
		if strings.Contains(before, "BIRTH") || strings.Contains(before, "DOB") {
			birth = append(birth, d)
			continue
		}
		other = append(other, d)
	}
	return birth, other
}

// pickExpiration returns the latest date in candidates that does not equal
// any birth date.
func pickExpiration(birth, candidates []Date) *Date {
	var best *Date
	for i := range candidates {
		d := candidates[i]
		if isBirth(d, birth) {
			continue
		}
		if best == nil || d.After(*best) {
			best = &d
		}
	}
	return best
}

func isBirth(d Date, birth []Date) bool {
	for _, b := range birth {
		if b == d {
			return true
		}
	}
	return false
}
