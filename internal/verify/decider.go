// Package verify combines the document reading with the kiosk's other
// signals into the final accept/reject decision for one rider.
package verify

import (
	"fmt"
	"log/slog"
	"strings"
)

// Profile selects the name-match threshold.
type Profile string

const (
	ProfileStudent Profile = "student"
	ProfileStaff   Profile = "staff"
	ProfileVIP     Profile = "vip"
	ProfileGuest   Profile = "guest"
)

// Name-match thresholds. Registered riders are matched against a name the
// kiosk already trusts; guests typed theirs in, so they need a closer match.
const (
	StudentThreshold = 0.65
	GuestThreshold   = 0.85
)

// ParseProfile maps a user-supplied profile name. Unknown names are an error.
func ParseProfile(s string) (Profile, error) {
	switch p := Profile(strings.ToLower(strings.TrimSpace(s))); p {
	case ProfileStudent, ProfileStaff, ProfileVIP, ProfileGuest:
		return p, nil
	case "":
		return ProfileStudent, nil
	default:
		return "", fmt.Errorf("unknown profile %q", s)
	}
}

// Threshold returns the score a name match must exceed.
func (p Profile) Threshold() float64 {
	if p == ProfileGuest {
		return GuestThreshold
	}
	return StudentThreshold
}

// IsGuest reports whether p is the guest profile.
func (p Profile) IsGuest() bool { return p == ProfileGuest }

// Rejection reasons.
const (
	ReasonVerified     = "verified"
	ReasonRestricted   = "restricted document: student permit not allowed"
	ReasonHelmet       = "helmet not detected"
	ReasonCredential   = "credential confidence too low"
	ReasonExpired      = "license has expired"
	ReasonNoDocument   = "no driver's license detected"
	ReasonNameMismatch = "name does not match reference"
)

// Signals are the inputs to a decision.
type Signals struct {
	Profile          Profile
	HelmetOK         bool
	CredentialOK     bool
	ExpirationOK     bool
	DocumentDetected bool
	MatchScore       float64
	Restricted       bool
}

// Checks is the per-signal breakdown of a decision.
type Checks struct {
	Helmet        bool `json:"helmet" yaml:"helmet"`
	Credential    bool `json:"credential" yaml:"credential"`
	Expiration    bool `json:"expiration" yaml:"expiration"`
	Document      bool `json:"document" yaml:"document"`
	NameMatch     bool `json:"name_match" yaml:"name_match"`
	NotRestricted bool `json:"not_restricted" yaml:"not_restricted"`
}

// Decision is the bare result of Decide.
type Decision struct {
	Verified bool
	Reason   string
	// Override is set when a strong name match stood in for a missing
	// document-detected signal.
	Override bool
	Checks   Checks
}

// Decide applies the acceptance rule: not restricted, every signal true and
// the match score above the profile threshold. A passing name match counts
// as document detection even when no license vocabulary was read.
func Decide(s Signals) Decision {
	profile := s.Profile
	if profile == "" {
		profile = ProfileStudent
	}
	c := Checks{
		Helmet:        s.HelmetOK,
		Credential:    s.CredentialOK,
		Expiration:    s.ExpirationOK,
		Document:      s.DocumentDetected,
		NameMatch:     s.MatchScore > profile.Threshold(),
		NotRestricted: !s.Restricted,
	}

	d := Decision{Checks: c}
	if s.Restricted {
		d.Reason = ReasonRestricted
		return d
	}

	if !c.Document && c.NameMatch {
		c.Document = true
		d.Checks = c
		d.Override = true
		slog.Warn("name match overrides missing document detection",
			"profile", string(profile), "score", s.MatchScore)
	}

	switch {
	case !c.Helmet:
		d.Reason = ReasonHelmet
	case !c.Credential:
		d.Reason = ReasonCredential
	case !c.Expiration:
		d.Reason = ReasonExpired
	case !c.Document:
		d.Reason = ReasonNoDocument
	case !c.NameMatch:
		d.Reason = ReasonNameMismatch
	default:
		d.Verified = true
		d.Reason = ReasonVerified
	}
	return d
}
