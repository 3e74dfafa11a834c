package testutil

import "strings"

// LicenseFixture is the text a recognizer would read off one card, with the
// rider it belongs to.
type LicenseFixture struct {
	Name      string
	Lines     []string
	Reference string
}

// Text joins the card lines the way an OCR engine returns them.
func (f LicenseFixture) Text() string { return strings.Join(f.Lines, "\n") }

// Sample cards. Expiration dates are far enough out that they stay valid.
var (
	ValidLicense = LicenseFixture{
		Name: "valid",
		Lines: []string{
			"REPUBLIC OF THE PHILIPPINES",
			"DEPARTMENT OF TRANSPORTATION",
			"LAND TRANSPORTATION OFFICE",
			"NON-PROFESSIONAL DRIVER'S LICENSE",
			"LAST NAME, FIRST NAME, MIDDLE NAME",
			"DELA CRUZ, JUAN",
			"NATIONALITY SEX DATE OF BIRTH",
			"PHL M 1999/01/15",
			"LICENSE NO. AGENCY CODE",
			"N01-23-456789 N25",
			"EXPIRATION DATE",
			"2035-05-12",
		},
		Reference: "Juan Dela Cruz",
	}

	ExpiredLicense = LicenseFixture{
		Name: "expired",
		Lines: []string{
			"REPUBLIC OF THE PHILIPPINES",
			"LAND TRANSPORTATION OFFICE",
			"DRIVER'S LICENSE",
			"LAST NAME, FIRST NAME, MIDDLE NAME",
			"SANTOS, MARIA CLARA",
			"DATE OF BIRTH 1990/07/04",
			"EXPIRATION DATE",
			"2020/07/04",
		},
		Reference: "Maria Clara Santos",
	}

	StudentPermit = LicenseFixture{
		Name: "student_permit",
		Lines: []string{
			"REPUBLIC OF THE PHILIPPINES",
			"LAND TRANSPORTATION OFFICE",
			"STUDENT PERMIT",
			"LAST NAME, FIRST NAME, MIDDLE NAME",
			"DELA CRUZ, JUAN",
			"EXPIRATION DATE 2035/01/01",
		},
		Reference: "Juan Dela Cruz",
	}

	UnrelatedCard = LicenseFixture{
		Name:      "unrelated",
		Lines:     []string{"CAMPUS LIBRARY", "BORROWER CARD", "NO 00412"},
		Reference: "Juan Dela Cruz",
	}
)

// Fixtures returns every sample card keyed by name.
func Fixtures() map[string]LicenseFixture {
	return map[string]LicenseFixture{
		ValidLicense.Name:   ValidLicense,
		ExpiredLicense.Name: ExpiredLicense,
		StudentPermit.Name:  StudentPermit,
		UnrelatedCard.Name:  UnrelatedCard,
	}
}
