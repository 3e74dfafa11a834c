package verify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/document"
	"github.com/MeKo-Tech/motorpass/internal/extract"
	"github.com/MeKo-Tech/motorpass/internal/fields"
	"github.com/MeKo-Tech/motorpass/internal/match"
)

// Identity is who the rider claims to be, as known to the kiosk.
type Identity struct {
	Name                 string `json:"name" yaml:"name"`
	ExpectedDocumentType string `json:"expected_document_type,omitempty" yaml:"expected_document_type,omitempty"`
}

// Request is one verification attempt.
type Request struct {
	Image    []byte
	Identity Identity
	Profile  Profile
	HelmetOK bool
	// CredentialConfidence is the fingerprint (or other credential) match
	// confidence on a 0-100 scale.
	CredentialConfidence float64
	// ExpirationOK is the caller's own expiration verdict, e.g. from the
	// registration record. Nil means the caller has none.
	ExpirationOK *bool
}

// Outcome is the final verdict handed back to the kiosk flow.
type Outcome struct {
	Verified    bool           `json:"verified" yaml:"verified"`
	Reason      string         `json:"reason" yaml:"reason"`
	Profile     Profile        `json:"profile" yaml:"profile"`
	DisplayName string         `json:"display_name" yaml:"display_name"`
	Override    bool           `json:"override" yaml:"override"`
	Fields      fields.Parsed  `json:"fields" yaml:"fields"`
	Match       match.Result   `json:"match" yaml:"match"`
	Checks      Checks         `json:"checks" yaml:"checks"`
	Source      extract.Source `json:"source" yaml:"source"`
	Cached      bool           `json:"cached" yaml:"cached"`
}

// Extractor produces raw text for an image.
type Extractor interface {
	Extract(ctx context.Context, data []byte, hints extract.Hints) (extract.Result, error)
}

// EngineConfig tunes the verification pipeline.
type EngineConfig struct {
	// MinCredentialConfidence is the exclusive lower bound for the
	// credential signal.
	MinCredentialConfidence float64
	// CheckParsedExpiration also fails the expiration signal when the date
	// read off the card is already past.
	CheckParsedExpiration bool
}

// DefaultEngineConfig returns the stock pipeline settings.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{MinCredentialConfidence: 50, CheckParsedExpiration: true}
}

// Engine runs extract, parse, match and decide for one request.
type Engine struct {
	extractor Extractor
	cfg       EngineConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewEngine creates a verification engine.
func NewEngine(extractor Extractor, cfg EngineConfig) *Engine {
	return &Engine{extractor: extractor, cfg: cfg, now: time.Now, logger: slog.Default()}
}

// WithClock overrides the clock used for the expiration check.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Verify never returns an error: every failure along the way becomes a
// rejected Outcome with a reason.
func (e *Engine) Verify(ctx context.Context, req Request) (out Outcome) {
	profile := req.Profile
	if profile == "" {
		profile = ProfileStudent
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("verification panicked", "panic", fmt.Sprint(r))
			out = Outcome{Profile: profile, Reason: ReasonNoDocument, DisplayName: req.Identity.Name}
		}
		verificationsTotal.WithLabelValues(string(profile), strconv.FormatBool(out.Verified), out.Reason).Inc()
	}()

	res, err := e.extractor.Extract(ctx, req.Image, extract.Hints{
		Guest:         profile.IsGuest(),
		ReferenceName: req.Identity.Name,
	})
	if err != nil {
		e.logger.Warn("text extraction failed", "error", err)
	}

	parsed := fields.Parse(res.RawText)
	out = Outcome{
		Profile: profile,
		Fields:  parsed,
		Source:  res.Source,
		Cached:  res.Cached,
	}

	if parsed.Restricted {
		d := Decide(Signals{Profile: profile, Restricted: true})
		out.Reason = d.Reason
		out.Checks = d.Checks
		out.DisplayName = req.Identity.Name
		e.logger.Info("restricted document rejected", "term", parsed.RestrictedTerm)
		return out
	}

	if !documentTypeAccepted(req.Identity.ExpectedDocumentType) {
		out.Reason = ReasonNoDocument
		out.DisplayName = req.Identity.Name
		out.Checks = Checks{Helmet: req.HelmetOK, NotRestricted: true}
		e.logger.Info("unsupported document type requested", "expected", req.Identity.ExpectedDocumentType)
		return out
	}

	out.Match = e.matchName(parsed, res.RawText, req.Identity.Name)
	matchScore.WithLabelValues(string(profile)).Observe(out.Match.Score)

	d := Decide(Signals{
		Profile:          profile,
		HelmetOK:         req.HelmetOK,
		CredentialOK:     req.CredentialConfidence > e.cfg.MinCredentialConfidence,
		ExpirationOK:     e.expirationOK(req.ExpirationOK, parsed.Expiration),
		DocumentDetected: parsed.DocumentDetected(),
		MatchScore:       out.Match.Score,
	})
	out.Verified = d.Verified
	out.Reason = d.Reason
	out.Override = d.Override
	out.Checks = d.Checks
	if d.Override {
		overridesTotal.Inc()
	}
	out.DisplayName = displayName(req.Identity.Name, parsed, d.Checks.NameMatch)

	e.logger.Info("verification decided",
		"profile", string(profile),
		"verified", out.Verified,
		"reason", out.Reason,
		"score", out.Match.Score,
		"strategy", string(out.Match.Strategy),
		"keywords", parsed.KeywordCount,
		"source", string(res.Source))
	return out
}

// matchName scores the parsed candidate, or the best recognized line when no
// candidate was found.
func (e *Engine) matchName(parsed fields.Parsed, raw, reference string) match.Result {
	if reference == "" {
		return match.Result{Strategy: match.StrategyHeuristic}
	}
	if !parsed.HasName() {
		return match.MatchLines(reference, fields.Lines(raw))
	}
	m := match.Match(parsed.NameCandidate, reference)
	if parsed.NameSource == fields.NameSourceMarker && m.Strategy != match.StrategyExact {
		m.Strategy = match.StrategyMarker
	}
	return m
}

func (e *Engine) expirationOK(caller *bool, parsed *fields.Date) bool {
	if caller != nil && !*caller {
		return false
	}
	if e.cfg.CheckParsedExpiration && parsed != nil {
		return !parsed.Before(fields.DateOf(e.now()))
	}
	return true
}

func documentTypeAccepted(expected string) bool {
	return expected == "" || strings.EqualFold(strings.TrimSpace(expected), document.Type)
}

// displayName picks the name shown on the kiosk screen. A passing match
// shows the trusted reference name; otherwise whatever was read, falling
// back to the reference when nothing was.
func displayName(reference string, parsed fields.Parsed, nameMatched bool) string {
	switch {
	case nameMatched && reference != "":
		return reference
	case parsed.HasName():
		return parsed.NameCandidate
	default:
		return reference
	}
}
