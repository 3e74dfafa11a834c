package recognizer

import (
	"context"
	"errors"
	"image"

	"github.com/MeKo-Tech/motorpass/internal/imageproc"
)

// Recognition method names. They double as cache key suffixes, so changing
// one invalidates existing cache entries for it.
const (
	MethodRemote     = "online"
	MethodLocal      = "local"
	MethodGuestLocal = "guest_local"
)

// ErrNoEngine is returned when no local OCR engine is linked into the binary.
var ErrNoEngine = errors.New("recognizer: no local engine linked; build with -tags=tesseract")

// Mode selects a preprocessing pass and page segmentation strategy.
type Mode int

const (
	ModeFast Mode = iota
	ModeStandard
	ModeDetailed
)

func (m Mode) String() string {
	switch m {
	case ModeFast:
		return "fast"
	case ModeStandard:
		return "standard"
	case ModeDetailed:
		return "detailed"
	default:
		return "unknown"
	}
}

// Tesseract page segmentation modes used by the recognition modes.
const (
	PSMSingleColumn = 4
	PSMSingleBlock  = 6
	PSMSparseText   = 11
)

// FastWhitelist restricts the fast pass to the characters that appear on the
// card labels and number fields.
const FastWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789., "

// ModeConfig describes how an engine should treat an image for one mode.
type ModeConfig struct {
	PageSegMode int
	Whitelist   string
	Preprocess  func(image.Image) image.Image
}

// Config returns the preprocessing and engine settings for m.
func (m Mode) Config() ModeConfig {
	switch m {
	case ModeStandard:
		return ModeConfig{PageSegMode: PSMSparseText, Preprocess: imageproc.PreprocessStandard}
	case ModeDetailed:
		return ModeConfig{PageSegMode: PSMSingleColumn, Preprocess: imageproc.PreprocessDetailed}
	default:
		return ModeConfig{PageSegMode: PSMSingleBlock, Whitelist: FastWhitelist, Preprocess: imageproc.PreprocessFast}
	}
}

// Engine is a local OCR engine. img has already been preprocessed for mode.
type Engine interface {
	Name() string
	Recognize(ctx context.Context, img image.Image, cfg ModeConfig) (string, error)
}
