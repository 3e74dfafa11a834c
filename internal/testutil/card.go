package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ImageSize represents common image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// CardSize is roughly the aspect of an ID-1 card.
	CardSize = ImageSize{428, 270}
	// FrameSize is a typical kiosk camera preview.
	FrameSize = ImageSize{640, 480}
)

// CardConfig describes a synthetic license card.
type CardConfig struct {
	Lines      []string
	Size       ImageSize
	Background color.Color
	Foreground color.Color
	FontFace   font.Face
	// Rotation tilts the card, in degrees counter-clockwise.
	Rotation float64
}

// DefaultCardConfig returns a white card with black 7x13 text.
func DefaultCardConfig(lines ...string) CardConfig {
	return CardConfig{
		Lines:      lines,
		Size:       CardSize,
		Background: color.White,
		Foreground: color.Black,
		FontFace:   basicfont.Face7x13,
	}
}

// RenderCard draws cfg.Lines left-aligned from the top of the card.
func RenderCard(cfg CardConfig) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  &image.Uniform{cfg.Foreground},
		Face: cfg.FontFace,
	}
	lineHeight := cfg.FontFace.Metrics().Height.Ceil() + 4
	for i, line := range cfg.Lines {
		drawer.Dot = fixed.P(12, 12+(i+1)*lineHeight)
		drawer.DrawString(line)
	}

	if cfg.Rotation != 0 {
		rotated := imaging.Rotate(img, cfg.Rotation, cfg.Background)
		rgba := image.NewRGBA(rotated.Bounds())
		draw.Draw(rgba, rgba.Bounds(), rotated, rotated.Bounds().Min, draw.Src)
		return rgba
	}
	return img
}

// LicenseCard renders lines on a default card.
func LicenseCard(lines ...string) *image.RGBA {
	return RenderCard(DefaultCardConfig(lines...))
}

// InFrame places card in the middle of a grey camera frame of the given size.
func InFrame(card image.Image, size ImageSize) *image.RGBA {
	frame := image.NewRGBA(image.Rect(0, 0, size.Width, size.Height))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{color.Gray{Y: 90}}, image.Point{}, draw.Src)
	b := card.Bounds()
	offset := image.Pt((size.Width-b.Dx())/2, (size.Height-b.Dy())/2)
	draw.Draw(frame, b.Sub(b.Min).Add(offset), card, b.Min, draw.Src)
	return frame
}

// Blank returns a uniformly coloured image.
func Blank(width, height int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{c}, image.Point{}, draw.Src)
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// EncodeJPEG encodes img as a quality 90 JPEG.
func EncodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

// SaveImage writes img to path, choosing the encoder by extension.
func SaveImage(t *testing.T, img image.Image, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var data []byte
	switch filepath.Ext(path) {
	case ".jpg", ".jpeg":
		data = EncodeJPEG(t, img)
	default:
		data = EncodePNG(t, img)
	}
	require.NoError(t, os.WriteFile(path, data, 0o600))
}
