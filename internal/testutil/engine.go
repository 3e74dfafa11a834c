package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/motorpass/internal/recognizer"
)

// FakeEngine is a recognizer.Engine that returns a fixed text for every
// image. Tests swap the text between calls to script a session.
type FakeEngine struct {
	mu    sync.Mutex
	text  string
	err   error
	calls []recognizer.ModeConfig
}

// NewFakeEngine returns an engine that reads text off every image.
func NewFakeEngine(text string) *FakeEngine {
	return &FakeEngine{text: text}
}

func (e *FakeEngine) Name() string { return "fake" }

func (e *FakeEngine) Recognize(ctx context.Context, _ image.Image, cfg recognizer.ModeConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, cfg)
	return e.text, e.err
}

// SetText changes what subsequent calls return and clears any error.
func (e *FakeEngine) SetText(text string) {
	e.mu.Lock()
	e.text, e.err = text, nil
	e.mu.Unlock()
}

// SetError makes subsequent calls fail.
func (e *FakeEngine) SetError(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// Calls returns how many times Recognize ran.
func (e *FakeEngine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// PageSegModes lists the page segmentation mode of every call in order.
func (e *FakeEngine) PageSegModes() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.calls))
	for i, c := range e.calls {
		out[i] = c.PageSegMode
	}
	return out
}
