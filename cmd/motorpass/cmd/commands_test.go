package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/extract"
	"github.com/MeKo-Tech/motorpass/internal/testutil"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

func writeCard(t *testing.T, fixture testutil.LicenseFixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), fixture.Name+".png")
	testutil.SaveImage(t, testutil.LicenseCard(fixture.Lines...), path)
	return path
}

func TestVerifyCommand(t *testing.T) {
	useFakeEngine(t, testutil.ValidLicense.Text())
	card := writeCard(t, testutil.ValidLicense)

	out, err := runCLI(t, "", "verify", card,
		"--name", testutil.ValidLicense.Reference, "--helmet", "--credential", "90", "--format", "json")
	require.NoError(t, err)

	var got verify.Outcome
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Verified, got.Reason)
	assert.Equal(t, verify.ReasonVerified, got.Reason)
	assert.Equal(t, verify.ProfileStudent, got.Profile)
	assert.Equal(t, extract.SourceLocal, got.Source)
}

func TestVerifyCommand_StrictRejection(t *testing.T) {
	useFakeEngine(t, testutil.StudentPermit.Text())
	card := writeCard(t, testutil.StudentPermit)

	out, err := runCLI(t, "", "verify", card,
		"--name", testutil.StudentPermit.Reference, "--helmet", "--credential", "90", "--strict")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRejected))
	assert.Contains(t, out, "REJECTED: "+verify.ReasonRestricted)
}

func TestVerifyCommand_BadInput(t *testing.T) {
	useFakeEngine(t, testutil.ValidLicense.Text())
	card := writeCard(t, testutil.ValidLicense)

	tests := []struct {
		name string
		args []string
	}{
		{name: "missing name", args: []string{"verify", card}},
		{name: "unknown profile", args: []string{"verify", card, "--name", "Juan", "--profile", "admin"}},
		{name: "credential out of range", args: []string{"verify", card, "--name", "Juan", "--credential", "101"}},
		{name: "missing file", args: []string{"verify", filepath.Join(t.TempDir(), "none.jpg"), "--name", "Juan"}},
		{name: "unsupported file", args: []string{"verify", filepath.Join(t.TempDir(), "card.gif"), "--name", "Juan"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, "", tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestExtractCommand(t *testing.T) {
	engine := useFakeEngine(t, testutil.ValidLicense.Text())
	card := writeCard(t, testutil.ValidLicense)

	out, err := runCLI(t, "", "extract", card, "--format", "json")
	require.NoError(t, err)

	var got extract.Result
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, testutil.ValidLicense.Text(), got.RawText)
	assert.Equal(t, extract.SourceLocal, got.Source)
	assert.False(t, got.Cached)
	calls := engine.Calls()

	out, err = runCLI(t, "", "extract", card, "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.True(t, got.Cached)
	assert.Equal(t, calls, engine.Calls())
}

func TestParseCommand(t *testing.T) {
	useFakeEngine(t, "")

	out, err := runCLI(t, testutil.ValidLicense.Text(), "parse")
	require.NoError(t, err)
	assert.Contains(t, out, "Name: DELA CRUZ, JUAN")
	assert.Contains(t, out, "Expiration: 2035-05-12")

	path := filepath.Join(t.TempDir(), "ocr.txt")
	require.NoError(t, os.WriteFile(path, []byte(testutil.StudentPermit.Text()), 0o600))
	out, err = runCLI(t, "", "parse", path, "--format", "yaml")
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["restricted"])

	_, err = runCLI(t, "   ", "parse", "-")
	assert.Error(t, err)
}

func TestMatchCommand(t *testing.T) {
	useFakeEngine(t, "")

	out, err := runCLI(t, "", "match", "Juan Dela Cruz", "REPUBLIC OF THE PHILIPPINES", "JUAN DELA CRUZ")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 1.000")
	assert.Contains(t, out, "Strategy: EXACT")

	_, err = runCLI(t, "", "match", "Juan Dela Cruz")
	assert.Error(t, err)
}

func TestCaptureCommand(t *testing.T) {
	useFakeEngine(t, testutil.ValidLicense.Text())
	t.Setenv("MOTORPASS_CAPTURE_CHECK_INTERVAL", "1")
	t.Setenv("MOTORPASS_CAPTURE_STABILITY_FRAMES", "1")
	t.Setenv("MOTORPASS_CAPTURE_CAPTURE_DELAY", "0s")

	frames := t.TempDir()
	frame := testutil.InFrame(testutil.LicenseCard(testutil.ValidLicense.Lines...), testutil.FrameSize)
	for _, name := range []string{"0001.png", "0002.png", "0003.png"} {
		testutil.SaveImage(t, frame, filepath.Join(frames, name))
	}
	save := filepath.Join(t.TempDir(), "out", "capture.jpg")

	out, err := runCLI(t, "", "capture", frames,
		"--save", save, "--name", testutil.ValidLicense.Reference,
		"--helmet", "--credential", "88", "--format", "json")
	require.NoError(t, err)

	var got struct {
		Session   capture.Session `json:"session"`
		ImagePath string          `json:"image_path"`
		Outcome   *verify.Outcome `json:"outcome"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, capture.StateCaptured, got.Session.State)
	assert.Equal(t, int64(1), got.Session.Frames)
	assert.Equal(t, save, got.ImagePath)
	assert.True(t, testutil.FileExists(save))
	require.NotNil(t, got.Outcome)
	assert.True(t, got.Outcome.Verified, got.Outcome.Reason)
}

func TestCaptureCommand_SourceExhausted(t *testing.T) {
	useFakeEngine(t, "CAMPUS LIBRARY")

	frames := t.TempDir()
	testutil.SaveImage(t, testutil.InFrame(testutil.LicenseCard("CAMPUS LIBRARY"), testutil.FrameSize),
		filepath.Join(frames, "0001.png"))

	out, err := runCLI(t, "", "capture", frames)
	require.NoError(t, err)
	assert.Contains(t, out, "State: CANCELLED")
	assert.Contains(t, out, "Reason: "+capture.ReasonSourceDone)
}

func TestCacheCommands(t *testing.T) {
	useFakeEngine(t, testutil.ValidLicense.Text())
	card := writeCard(t, testutil.ValidLicense)

	_, err := runCLI(t, "", "extract", card)
	require.NoError(t, err)

	out, err := runCLI(t, "", "cache", "stats", "--format", "json")
	require.NoError(t, err)
	var stats struct {
		Dir     string `json:"dir"`
		Entries int    `json:"entries"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, os.Getenv("MOTORPASS_CACHE_DIR"), stats.Dir)
	assert.Equal(t, 1, stats.Entries)

	out, err = runCLI(t, "", "cache", "clear")
	require.NoError(t, err)
	assert.Contains(t, out, "removed 1 entries")

	t.Setenv("MOTORPASS_CACHE_ENABLED", "false")
	_, err = runCLI(t, "", "cache", "stats")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	useFakeEngine(t, "")
	t.Setenv("MOTORPASS_REMOTE_API_KEY", "secret-key")

	out, err := runCLI(t, "", "config", "show", "--format", "json")
	require.NoError(t, err)
	assert.NotContains(t, out, "secret-key")
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Contains(t, shown, "capture")

	path := filepath.Join(t.TempDir(), "motorpass.yaml")
	out, err = runCLI(t, "", "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)
	assert.True(t, testutil.FileExists(path))
}
