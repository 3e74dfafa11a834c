// Package support holds the state and step definitions shared by the
// verification feature files.
package support

import (
	"fmt"
	"os"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/extract"
	"github.com/MeKo-Tech/motorpass/internal/recognizer"
	"github.com/MeKo-Tech/motorpass/internal/testutil"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// TestContext holds the state of one scenario.
type TestContext struct {
	TempDir string

	Engine    *testutil.FakeEngine
	Cache     *cache.Cache
	Extractor *extract.Extractor
	Verifier  *verify.Engine

	// Verification inputs
	Image   []byte
	Request verify.Request

	// Verification results
	LastOutcome    verify.Outcome
	CallsBeforeRun int

	// Capture state
	CaptureConfig capture.Config
	FramesDir     string
	Session       *capture.Session
	CapturedImage []byte
}

// NewTestContext creates a scenario context with its own temp dir.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "motorpass-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir:       tempDir,
		Engine:        testutil.NewFakeEngine(""),
		CaptureConfig: capture.DefaultConfig(),
	}, nil
}

// buildPipeline wires the fake engine through the real extractor, cache and
// verification engine.
func (testCtx *TestContext) buildPipeline() {
	var opts []extract.Option
	if testCtx.Cache != nil {
		opts = append(opts, extract.WithCache(testCtx.Cache))
	}
	local := recognizer.NewLocal(testCtx.Engine, recognizer.DefaultLocalConfig())
	testCtx.Extractor = extract.New(nil, local, opts...)
	testCtx.Verifier = verify.NewEngine(testCtx.Extractor, verify.DefaultEngineConfig())
}

// Cleanup removes everything the scenario wrote.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.TempDir == "" {
		return nil
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}
