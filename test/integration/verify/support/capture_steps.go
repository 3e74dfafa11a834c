package support

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cucumber/godog"
	"github.com/disintegration/imaging"

	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/imageproc"
	"github.com/MeKo-Tech/motorpass/internal/testutil"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// RegisterCaptureSteps registers the camera capture steps.
func (testCtx *TestContext) RegisterCaptureSteps(sc *godog.ScenarioContext) {
	sc.Step(`^capture scans every frame and needs (\d+) stable readings?$`, testCtx.captureScansEveryFrame)
	sc.Step(`^(\d+) camera frames showing the "([^"]*)" license$`, testCtx.cameraFramesShowing)
	sc.Step(`^the capture runs to completion$`, testCtx.theCaptureRunsToCompletion)
	sc.Step(`^the capture state is "([^"]*)"$`, testCtx.theCaptureStateIs)
	sc.Step(`^the capture passed through "([^"]*)" and "([^"]*)"$`, testCtx.theCapturePassedThrough)
	sc.Step(`^the cancel reason is "([^"]*)"$`, testCtx.theCancelReasonIs)
	sc.Step(`^the captured image is verified for "([^"]*)" with profile "([^"]*)"$`, testCtx.theCapturedImageIsVerified)
}

func (testCtx *TestContext) captureScansEveryFrame(stable int) error {
	testCtx.CaptureConfig.CheckInterval = 1
	testCtx.CaptureConfig.StabilityFrames = stable
	testCtx.CaptureConfig.CaptureDelay = 0
	testCtx.CaptureConfig.SessionTimeout = 10 * time.Second
	return nil
}

// cameraFramesShowing writes n identical frames of the card held in front of
// the camera.
func (testCtx *TestContext) cameraFramesShowing(n int, name string) error {
	f, err := fixture(name)
	if err != nil {
		return err
	}
	dir := filepath.Join(testCtx.TempDir, "frames")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create frame directory: %w", err)
	}
	frame := testutil.InFrame(testutil.LicenseCard(f.Lines...), testutil.FrameSize)
	for i := range n {
		path := filepath.Join(dir, fmt.Sprintf("%04d.png", i+1))
		if err := imaging.Save(frame, path); err != nil {
			return fmt.Errorf("failed to write frame: %w", err)
		}
	}
	testCtx.FramesDir = dir
	testCtx.Engine.SetText(f.Text())
	return nil
}

func (testCtx *TestContext) theCaptureRunsToCompletion() error {
	if testCtx.Verifier == nil {
		testCtx.buildPipeline()
	}
	src, err := capture.NewDirSource(testCtx.FramesDir)
	if err != nil {
		return err
	}
	scanner := capture.NewKeywordScanner(testCtx.Engine, time.Second)
	ctrl := capture.NewController(scanner, testCtx.CaptureConfig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sess, err := ctrl.Run(ctx, src)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	testCtx.Session = sess

	if sess.State == capture.StateCaptured {
		if sess.Captured == nil {
			return fmt.Errorf("captured session without a frame")
		}
		data, err := imageproc.EncodeJPEG(sess.Captured.Image, 92)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot: %w", err)
		}
		testCtx.CapturedImage = data
	}
	return nil
}

func (testCtx *TestContext) theCaptureStateIs(state string) error {
	if testCtx.Session == nil {
		return fmt.Errorf("no capture has run")
	}
	if got := string(testCtx.Session.State); got != state {
		return fmt.Errorf("expected capture state %s, got %s", state, got)
	}
	return nil
}

func (testCtx *TestContext) theCapturePassedThrough(first, second string) error {
	seen := make([]string, 0, len(testCtx.Session.Transitions))
	for _, tr := range testCtx.Session.Transitions {
		seen = append(seen, string(tr.To))
	}
	want := []string{first, second}
	i := 0
	for _, s := range seen {
		if i < len(want) && s == want[i] {
			i++
		}
	}
	if i != len(want) {
		return fmt.Errorf("expected transitions through %v, got %v", want, seen)
	}
	return nil
}

func (testCtx *TestContext) theCancelReasonIs(reason string) error {
	if testCtx.Session == nil {
		return fmt.Errorf("no capture has run")
	}
	if testCtx.Session.CancelReason != reason {
		return fmt.Errorf("expected cancel reason %q, got %q", reason, testCtx.Session.CancelReason)
	}
	return nil
}

func (testCtx *TestContext) theCapturedImageIsVerified(name, profile string) error {
	if len(testCtx.CapturedImage) == 0 {
		return fmt.Errorf("nothing was captured")
	}
	p, err := verify.ParseProfile(profile)
	if err != nil {
		return err
	}
	testCtx.LastOutcome = testCtx.Verifier.Verify(context.Background(), verify.Request{
		Image:                testCtx.CapturedImage,
		Identity:             verify.Identity{Name: name},
		Profile:              p,
		HelmetOK:             true,
		CredentialConfidence: 90,
	})
	return nil
}
