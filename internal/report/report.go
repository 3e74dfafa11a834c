// Package report renders results for people and scripts: indented JSON,
// YAML, or a short plain-text summary.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/extract"
	"github.com/MeKo-Tech/motorpass/internal/fields"
	"github.com/MeKo-Tech/motorpass/internal/match"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Formats lists the accepted format names.
var Formats = []string{FormatText, FormatJSON, FormatYAML}

// ContentType returns the HTTP content type for format.
func ContentType(format string) string {
	switch format {
	case FormatYAML:
		return "application/yaml"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// Write renders v to w. An empty format means JSON.
func Write(w io.Writer, format string, v any) error {
	switch format {
	case FormatJSON, "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatText:
		_, err := io.WriteString(w, Text(v))
		return err
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// CaptureReport is the result of one capture run: the final session, where
// the snapshot was saved and, when a rider was named, the verdict on it.
type CaptureReport struct {
	Session   *capture.Session `json:"session" yaml:"session"`
	ImagePath string           `json:"image_path,omitempty" yaml:"image_path,omitempty"`
	Outcome   *verify.Outcome  `json:"outcome,omitempty" yaml:"outcome,omitempty"`
}

// Text is the plain-text rendering of the result types; anything else is
// printed with %v.
func Text(v any) string {
	var b strings.Builder
	switch r := v.(type) {
	case verify.Outcome:
		outcomeText(&b, r)
	case *verify.Outcome:
		outcomeText(&b, *r)
	case fields.Parsed:
		parsedText(&b, r)
	case match.Result:
		fmt.Fprintf(&b, "Score: %.3f\nStrategy: %s\n", r.Score, r.Strategy)
		if r.MatchedText != "" {
			fmt.Fprintf(&b, "Matched: %s\n", r.MatchedText)
		}
	case extract.Result:
		fmt.Fprintf(&b, "Source: %s (%s)\nCached: %t\n\n%s\n", r.Source, r.Method, r.Cached, r.RawText)
	case *capture.Session:
		sessionText(&b, r)
	case CaptureReport:
		sessionText(&b, r.Session)
		if r.ImagePath != "" {
			fmt.Fprintf(&b, "Image: %s\n", r.ImagePath)
		}
		if r.Outcome != nil {
			b.WriteString("\n")
			outcomeText(&b, *r.Outcome)
		}
	case cache.Stats:
		fmt.Fprintf(&b, "Directory: %s\nEntries: %d/%d\nSize: %d bytes\n", r.Dir, r.Entries, r.MaxEntries, r.Bytes)
	default:
		fmt.Fprintf(&b, "%v\n", v)
	}
	return b.String()
}

func outcomeText(b *strings.Builder, o verify.Outcome) {
	status := "REJECTED"
	if o.Verified {
		status = "VERIFIED"
	}
	fmt.Fprintf(b, "%s: %s\n", status, o.Reason)
	fmt.Fprintf(b, "Rider: %s (%s)\n", o.DisplayName, o.Profile)
	fmt.Fprintf(b, "Name match: %.3f [%s]", o.Match.Score, o.Match.Strategy)
	if o.Override {
		b.WriteString(" (document override)")
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "Text source: %s", o.Source)
	if o.Cached {
		b.WriteString(" (cached)")
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "Checks: helmet=%t credential=%t expiration=%t document=%t name=%t not_restricted=%t\n",
		o.Checks.Helmet, o.Checks.Credential, o.Checks.Expiration,
		o.Checks.Document, o.Checks.NameMatch, o.Checks.NotRestricted)
	parsedText(b, o.Fields)
}

func parsedText(b *strings.Builder, p fields.Parsed) {
	name := p.NameCandidate
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(b, "Name: %s (%s)\n", name, p.NameSource)
	if p.Expiration != nil {
		fmt.Fprintf(b, "Expiration: %s\n", p.Expiration)
	}
	for _, d := range p.BirthDates {
		fmt.Fprintf(b, "Birth date: %s\n", d)
	}
	fmt.Fprintf(b, "Keywords: %d\n", p.KeywordCount)
	if p.Restricted {
		fmt.Fprintf(b, "Restricted: %s\n", p.RestrictedTerm)
	}
}

func sessionText(b *strings.Builder, s *capture.Session) {
	fmt.Fprintf(b, "Session: %s\nState: %s\n", s.ID, s.State)
	if s.CancelReason != "" {
		fmt.Fprintf(b, "Reason: %s\n", s.CancelReason)
	}
	fmt.Fprintf(b, "Frames: %d\nKeywords: %d (threshold %d)\n", s.Frames, s.Keywords, s.Threshold)
	for _, t := range s.Transitions {
		fmt.Fprintf(b, "  %s -> %s at frame %d\n", t.From, t.To, t.Frame)
	}
}
