//go:build tesseract

package recognizer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// tesseractEngine drives libtesseract through gosseract. A fresh client is
// used per call because gosseract clients are not safe for concurrent use.
type tesseractEngine struct {
	language      string
	clientFactory func() *gosseract.Client
}

// NewDefaultEngine returns the Tesseract-backed engine.
func NewDefaultEngine(language string) (Engine, error) {
	if language == "" {
		language = "eng"
	}
	return &tesseractEngine{language: language, clientFactory: gosseract.NewClient}, nil
}

func (e *tesseractEngine) Name() string { return "tesseract" }

type tessResult struct {
	text string
	err  error
}

// Recognize runs Tesseract on img. The cgo call cannot be interrupted, so on
// context expiry the result is abandoned and the client is closed once the
// call returns.
func (e *tesseractEngine) Recognize(ctx context.Context, img image.Image, cfg ModeConfig) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode image: %w", err)
	}

	done := make(chan tessResult, 1)
	go func() {
		c := e.clientFactory()
		defer func() { _ = c.Close() }()
		text, err := e.run(c, buf.Bytes(), cfg)
		done <- tessResult{text: text, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return r.text, r.err
	}
}

func (e *tesseractEngine) run(c *gosseract.Client, data []byte, cfg ModeConfig) (string, error) {
	if err := c.SetLanguage(e.language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(cfg.PageSegMode)); err != nil {
		return "", fmt.Errorf("set page segmentation mode: %w", err)
	}
	if cfg.Whitelist != "" {
		if err := c.SetWhitelist(cfg.Whitelist); err != nil {
			return "", fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}
