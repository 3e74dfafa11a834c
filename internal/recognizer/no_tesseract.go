//go:build !tesseract

package recognizer

import (
	"context"
	"image"
)

type noEngine struct{}

// NewDefaultEngine returns the engine linked into this build. Without the
// tesseract build tag it always fails with ErrNoEngine.
func NewDefaultEngine(_ string) (Engine, error) { return noEngine{}, nil }

func (noEngine) Name() string { return "none" }

func (noEngine) Recognize(_ context.Context, _ image.Image, _ ModeConfig) (string, error) {
	return "", ErrNoEngine
}
