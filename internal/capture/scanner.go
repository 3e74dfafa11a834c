package capture

import (
	"context"
	"image"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/document"
	"github.com/MeKo-Tech/motorpass/internal/recognizer"
)

// DefaultScanTimeout bounds a single preview scan.
const DefaultScanTimeout = 800 * time.Millisecond

// ScanResult is the outcome of one preview scan.
type ScanResult struct {
	Keywords   int
	Restricted bool
	Err        error
}

// Scanner scores a preview region.
type Scanner interface {
	Scan(ctx context.Context, region image.Image) ScanResult
}

// KeywordScanner counts license vocabulary in a region using the fast local
// recognition mode.
type KeywordScanner struct {
	engine  recognizer.Engine
	timeout time.Duration
	logger  *slog.Logger
}

// NewKeywordScanner wraps engine. A non-positive timeout uses
// DefaultScanTimeout.
func NewKeywordScanner(engine recognizer.Engine, timeout time.Duration) *KeywordScanner {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	return &KeywordScanner{engine: engine, timeout: timeout, logger: slog.Default()}
}

// Score returns the keyword count for region, or 0 on any failure.
func (s *KeywordScanner) Score(ctx context.Context, region image.Image) int {
	return s.Scan(ctx, region).Keywords
}

// Scan binarizes region, runs a fast recognition pass and counts keywords.
func (s *KeywordScanner) Scan(ctx context.Context, region image.Image) ScanResult {
	if region == nil {
		return ScanResult{Err: ErrFrameUnavailable}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	cfg := recognizer.ModeFast.Config()
	text, err := s.engine.Recognize(ctx, cfg.Preprocess(region), cfg)
	scanDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Debug("preview scan failed", "engine", s.engine.Name(), "error", err)
		return ScanResult{Err: err}
	}
	return ScanResult{
		Keywords:   document.CountKeywords(text),
		Restricted: document.IsRestricted(text),
	}
}
