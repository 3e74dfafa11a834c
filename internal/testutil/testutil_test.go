package testutil

import (
	"context"
	"errors"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/motorpass/internal/fields"
	"github.com/MeKo-Tech/motorpass/internal/imageproc"
	"github.com/MeKo-Tech/motorpass/internal/recognizer"
)

func darkPixels(img image.Image) int {
	n := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if color.GrayModel.Convert(img.At(x, y)).(color.Gray).Y < 100 {
				n++
			}
		}
	}
	return n
}

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
	assert.False(t, FileExists(root))
}

func TestLicenseCard(t *testing.T) {
	img := LicenseCard(ValidLicense.Lines...)
	assert.Equal(t, CardSize.Width, img.Bounds().Dx())
	assert.Equal(t, CardSize.Height, img.Bounds().Dy())
	assert.Positive(t, darkPixels(img))
	assert.Zero(t, darkPixels(LicenseCard()))
}

func TestRenderCard_Rotated(t *testing.T) {
	cfg := DefaultCardConfig("DRIVER'S LICENSE")
	cfg.Rotation = 10
	img := RenderCard(cfg)
	assert.Greater(t, img.Bounds().Dx(), CardSize.Width)
	assert.Positive(t, darkPixels(img))
}

func TestInFrame(t *testing.T) {
	frame := InFrame(Blank(100, 50, color.White), FrameSize)
	assert.Equal(t, FrameSize.Width, frame.Bounds().Dx())

	center := color.GrayModel.Convert(frame.At(320, 240)).(color.Gray)
	corner := color.GrayModel.Convert(frame.At(0, 0)).(color.Gray)
	assert.Equal(t, uint8(255), center.Y)
	assert.Equal(t, uint8(90), corner.Y)
}

func TestEncodersRoundTrip(t *testing.T) {
	img := LicenseCard("LICENSE")
	for name, data := range map[string][]byte{"png": EncodePNG(t, img), "jpeg": EncodeJPEG(t, img)} {
		src, err := imageproc.Decode(data)
		require.NoError(t, err, name)
		assert.Equal(t, name, src.Format)
		assert.Equal(t, img.Bounds().Size(), src.Image.Bounds().Size())
	}
}

func TestSaveImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards", "card.jpg")
	SaveImage(t, LicenseCard("LICENSE"), path)
	src, err := imageproc.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", src.Format)
}

func TestFakeEngine(t *testing.T) {
	e := NewFakeEngine("first")
	ctx := context.Background()

	text, err := e.Recognize(ctx, nil, recognizer.ModeFast.Config())
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	e.SetError(errors.New("engine down"))
	_, err = e.Recognize(ctx, nil, recognizer.ModeDetailed.Config())
	require.Error(t, err)

	e.SetText("second")
	text, err = e.Recognize(ctx, nil, recognizer.ModeStandard.Config())
	require.NoError(t, err)
	assert.Equal(t, "second", text)

	assert.Equal(t, 3, e.Calls())
	assert.Equal(t, []int{recognizer.PSMSingleBlock, recognizer.PSMSingleColumn, recognizer.PSMSparseText}, e.PageSegModes())

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Recognize(cancelled, nil, recognizer.ModeFast.Config())
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, e.Calls())
}

func TestFixturesParse(t *testing.T) {
	valid := fields.Parse(ValidLicense.Text())
	assert.Equal(t, "DELA CRUZ, JUAN", valid.NameCandidate)
	require.NotNil(t, valid.Expiration)
	assert.Equal(t, "2035-05-12", valid.Expiration.String())

	permit := fields.Parse(StudentPermit.Text())
	assert.True(t, permit.Restricted)

	assert.Zero(t, fields.Parse(UnrelatedCard.Text()).KeywordCount)
	assert.Len(t, Fixtures(), 4)
}
