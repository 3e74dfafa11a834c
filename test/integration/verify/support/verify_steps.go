package support

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/cucumber/godog"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/testutil"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// RegisterVerifySteps registers the verification steps.
func (testCtx *TestContext) RegisterVerifySteps(sc *godog.ScenarioContext) {
	sc.Step(`^an empty result cache$`, testCtx.anEmptyResultCache)
	sc.Step(`^the "([^"]*)" license photo$`, testCtx.theLicensePhoto)
	sc.Step(`^the rider "([^"]*)" with profile "([^"]*)"$`, testCtx.theRiderWithProfile)
	sc.Step(`^the helmet check passed with credential confidence (\d+(?:\.\d+)?)$`, testCtx.theHelmetCheckPassed)
	sc.Step(`^the helmet check failed$`, testCtx.theHelmetCheckFailed)
	sc.Step(`^the license is verified$`, testCtx.theLicenseIsVerified)
	sc.Step(`^the license is verified again$`, testCtx.theLicenseIsVerifiedAgain)
	sc.Step(`^the rider is verified$`, testCtx.theRiderIsVerified)
	sc.Step(`^the rider is rejected with "([^"]*)"$`, testCtx.theRiderIsRejectedWith)
	sc.Step(`^the display name is "([^"]*)"$`, testCtx.theDisplayNameIs)
	sc.Step(`^the parsed expiration date is "([^"]*)"$`, testCtx.theParsedExpirationDateIs)
	sc.Step(`^the result came from the cache$`, testCtx.theResultCameFromTheCache)
	sc.Step(`^the OCR engine was not called again$`, testCtx.theOCREngineWasNotCalledAgain)
}

func (testCtx *TestContext) anEmptyResultCache() error {
	c, err := cache.New(testCtx.TempDir+"/cache", 100)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	testCtx.Cache = c
	testCtx.buildPipeline()
	return nil
}

func fixture(name string) (testutil.LicenseFixture, error) {
	f, ok := testutil.Fixtures()[name]
	if !ok {
		return testutil.LicenseFixture{}, fmt.Errorf("unknown license fixture %q", name)
	}
	return f, nil
}

func (testCtx *TestContext) theLicensePhoto(name string) error {
	f, err := fixture(name)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, testutil.LicenseCard(f.Lines...)); err != nil {
		return fmt.Errorf("failed to encode card: %w", err)
	}
	testCtx.Image = buf.Bytes()
	testCtx.Engine.SetText(f.Text())
	return nil
}

func (testCtx *TestContext) theRiderWithProfile(name, profile string) error {
	p, err := verify.ParseProfile(profile)
	if err != nil {
		return err
	}
	testCtx.Request.Identity = verify.Identity{Name: name}
	testCtx.Request.Profile = p
	return nil
}

func (testCtx *TestContext) theHelmetCheckPassed(confidence float64) error {
	testCtx.Request.HelmetOK = true
	testCtx.Request.CredentialConfidence = confidence
	return nil
}

func (testCtx *TestContext) theHelmetCheckFailed() error {
	testCtx.Request.HelmetOK = false
	testCtx.Request.CredentialConfidence = 90
	return nil
}

func (testCtx *TestContext) theLicenseIsVerified() error {
	if testCtx.Verifier == nil {
		testCtx.buildPipeline()
	}
	if len(testCtx.Image) == 0 {
		return fmt.Errorf("no license photo given")
	}
	req := testCtx.Request
	req.Image = testCtx.Image
	testCtx.LastOutcome = testCtx.Verifier.Verify(context.Background(), req)
	return nil
}

func (testCtx *TestContext) theLicenseIsVerifiedAgain() error {
	testCtx.CallsBeforeRun = testCtx.Engine.Calls()
	return testCtx.theLicenseIsVerified()
}

func (testCtx *TestContext) theRiderIsVerified() error {
	if !testCtx.LastOutcome.Verified {
		return fmt.Errorf("expected rider to be verified, got rejection %q", testCtx.LastOutcome.Reason)
	}
	return nil
}

func (testCtx *TestContext) theRiderIsRejectedWith(reason string) error {
	if testCtx.LastOutcome.Verified {
		return fmt.Errorf("expected rejection %q, rider was verified", reason)
	}
	if testCtx.LastOutcome.Reason != reason {
		return fmt.Errorf("expected rejection %q, got %q", reason, testCtx.LastOutcome.Reason)
	}
	return nil
}

func (testCtx *TestContext) theDisplayNameIs(name string) error {
	if testCtx.LastOutcome.DisplayName != name {
		return fmt.Errorf("expected display name %q, got %q", name, testCtx.LastOutcome.DisplayName)
	}
	return nil
}

func (testCtx *TestContext) theParsedExpirationDateIs(date string) error {
	exp := testCtx.LastOutcome.Fields.Expiration
	if exp == nil {
		return fmt.Errorf("expected expiration %s, none parsed", date)
	}
	if got := exp.String(); got != date {
		return fmt.Errorf("expected expiration %s, got %s", date, got)
	}
	return nil
}

func (testCtx *TestContext) theResultCameFromTheCache() error {
	if !testCtx.LastOutcome.Cached {
		return fmt.Errorf("expected a cached result")
	}
	return nil
}

func (testCtx *TestContext) theOCREngineWasNotCalledAgain() error {
	if calls := testCtx.Engine.Calls(); calls != testCtx.CallsBeforeRun {
		return fmt.Errorf("expected %d engine calls, got %d", testCtx.CallsBeforeRun, calls)
	}
	return nil
}
