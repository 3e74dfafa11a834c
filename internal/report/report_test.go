package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/fields"
	"github.com/MeKo-Tech/motorpass/internal/match"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

func sampleOutcome() verify.Outcome {
	exp := fields.Date{Year: 2030, Month: 5, Day: 12}
	return verify.Outcome{
		Verified:    true,
		Reason:      verify.ReasonVerified,
		Profile:     verify.ProfileStudent,
		DisplayName: "Juan Dela Cruz",
		Fields: fields.Parsed{
			NameCandidate: "DELA CRUZ, JUAN",
			NameSource:    fields.NameSourceMarker,
			Expiration:    &exp,
			KeywordCount:  9,
		},
		Match: match.Result{Score: 0.93, Strategy: match.StrategyMarker},
	}
}

func TestWrite_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleOutcome()))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, true, got["verified"])
	assert.Equal(t, "Juan Dela Cruz", got["display_name"])
}

func TestWrite_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, sampleOutcome()))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "verified", got["reason"])
	assert.Contains(t, buf.String(), "2030-05-12")
}

func TestWrite_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sampleOutcome()))

	out := buf.String()
	assert.Contains(t, out, "VERIFIED: verified")
	assert.Contains(t, out, "Name: DELA CRUZ, JUAN (MARKER)")
	assert.Contains(t, out, "Expiration: 2030-05-12")
	assert.NotContains(t, out, "override")
}

func TestWrite_UnknownFormat(t *testing.T) {
	require.Error(t, Write(&bytes.Buffer{}, "csv", sampleOutcome()))
}

func TestText_Restricted(t *testing.T) {
	out := Text(fields.Parsed{Restricted: true, RestrictedTerm: "STUDENT PERMIT", NameSource: fields.NameSourceNone})
	assert.Contains(t, out, "Name: - (NONE)")
	assert.Contains(t, out, "Restricted: STUDENT PERMIT")
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType(""))
	assert.Equal(t, "application/yaml", ContentType(FormatYAML))
	assert.Contains(t, ContentType(FormatText), "text/plain")
}

func TestText_CaptureReport(t *testing.T) {
	out := sampleOutcome()
	rep := CaptureReport{
		Session: &capture.Session{
			ID:    "01J0000000000000000000000",
			State: capture.StateCaptured,
			Transitions: []capture.Transition{
				{From: capture.StateScanning, To: capture.StateStabilizing, Frame: 0},
				{From: capture.StateReady, To: capture.StateCaptured, Frame: 5},
			},
		},
		ImagePath: "/tmp/capture.jpg",
		Outcome:   &out,
	}
	text := Text(rep)
	assert.Contains(t, text, "State: CAPTURED")
	assert.Contains(t, text, "READY -> CAPTURED at frame 5")
	assert.Contains(t, text, "Image: /tmp/capture.jpg")
	assert.Contains(t, text, "VERIFIED: verified")

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatYAML, rep))
	assert.Contains(t, buf.String(), "state: CAPTURED")
	assert.NotContains(t, buf.String(), "ready_at")
}
