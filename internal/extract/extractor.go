// Package extract turns a captured document image into raw text, preferring
// the remote recognition service and falling back to local recognition.
// Results are cached by image content so a retried capture costs nothing.
package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/imageproc"
	"github.com/MeKo-Tech/motorpass/internal/recognizer"
)

// ErrRecognitionFailed is returned when no recognizer produced usable text.
// The accompanying Result still has an empty RawText so callers can proceed.
var ErrRecognitionFailed = errors.New("text recognition failed")

// Source identifies which recognizer produced the text.
type Source string

const (
	SourceRemote Source = "REMOTE"
	SourceLocal  Source = "LOCAL"
	SourceNone   Source = "NONE"
)

// Result is the outcome of one extraction.
type Result struct {
	RawText  string `json:"raw_text" yaml:"raw_text"`
	Source   Source `json:"source" yaml:"source"`
	Method   string `json:"method" yaml:"method"`
	CacheKey string `json:"cache_key,omitempty" yaml:"cache_key,omitempty"`
	Cached   bool   `json:"cached" yaml:"cached"`
	// Attempts counts local recognition attempts; zero for remote or cached results.
	Attempts int `json:"attempts,omitempty" yaml:"attempts,omitempty"`
}

// Hints steer local recognition.
type Hints struct {
	Guest         bool
	ReferenceName string
}

func (h Hints) localOptions() recognizer.LocalOptions {
	return recognizer.LocalOptions{Guest: h.Guest, HasReference: h.ReferenceName != ""}
}

// RemoteRecognizer recognizes a whole image through an external service.
type RemoteRecognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// LocalRecognizer recognizes an image on this machine.
type LocalRecognizer interface {
	Recognize(ctx context.Context, img image.Image, opts recognizer.LocalOptions) (recognizer.LocalResult, error)
}

// Prober reports whether the remote service is reachable.
type Prober interface {
	Check(ctx context.Context) error
}

// Extractor coordinates cache, connectivity probe and recognizers.
type Extractor struct {
	remote RemoteRecognizer
	local  LocalRecognizer
	probe  Prober
	cache  *cache.Cache
	logger *slog.Logger
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithCache enables result caching.
func WithCache(c *cache.Cache) Option { return func(e *Extractor) { e.cache = c } }

// WithProbe sets the connectivity probe. Without one the remote recognizer
// is always tried.
func WithProbe(p Prober) Option { return func(e *Extractor) { e.probe = p } }

// WithLogger overrides the logger.
func WithLogger(l *slog.Logger) Option { return func(e *Extractor) { e.logger = l } }

// New creates an extractor. Either recognizer may be nil.
func New(remote RemoteRecognizer, local LocalRecognizer, opts ...Option) *Extractor {
	e := &Extractor{remote: remote, local: local, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the raw text of the encoded image data.
func (e *Extractor) Extract(ctx context.Context, data []byte, hints Hints) (Result, error) {
	start := time.Now()
	localMethod := hints.localOptions().Method()

	if res, ok := e.lookup(data, recognizer.MethodRemote, SourceRemote); ok {
		e.observe(res, start)
		return res, nil
	}
	if res, ok := e.lookup(data, localMethod, SourceLocal); ok {
		e.observe(res, start)
		return res, nil
	}

	src, err := imageproc.Decode(data)
	if err != nil {
		res := Result{Source: SourceNone}
		e.observe(res, start)
		return res, fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}

	if text, ok := e.tryRemote(ctx, src.Image); ok {
		res := Result{RawText: text, Source: SourceRemote, Method: recognizer.MethodRemote}
		res.CacheKey = e.store(data, res.Method, text)
		e.observe(res, start)
		return res, nil
	}

	res, err := e.runLocal(ctx, src.Image, hints)
	if err != nil {
		res = Result{Source: SourceNone, Attempts: res.Attempts}
		e.observe(res, start)
		return res, fmt.Errorf("%w: %w", ErrRecognitionFailed, err)
	}
	res.CacheKey = e.store(data, res.Method, res.RawText)
	e.observe(res, start)
	return res, nil
}

func (e *Extractor) lookup(data []byte, method string, source Source) (Result, bool) {
	if e.cache == nil {
		return Result{}, false
	}
	key := cache.Key(data, method)
	text, ok := e.cache.Get(key)
	if !ok {
		return Result{}, false
	}
	e.logger.Debug("extraction cache hit", "key", key, "method", method)
	return Result{RawText: text, Source: source, Method: method, CacheKey: key, Cached: true}, true
}

func (e *Extractor) tryRemote(ctx context.Context, img image.Image) (string, bool) {
	if e.remote == nil {
		return "", false
	}
	if e.probe != nil {
		if err := e.probe.Check(ctx); err != nil {
			remoteFallbacksTotal.WithLabelValues("offline").Inc()
			e.logger.Info("remote recognizer skipped", "reason", err)
			return "", false
		}
	}

	text, err := e.remote.Recognize(ctx, img)
	if err != nil {
		remoteFallbacksTotal.WithLabelValues(fallbackReason(err)).Inc()
		e.logger.Warn("remote recognition failed, falling back to local", "error", err)
		return "", false
	}
	return text, true
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, recognizer.ErrRemoteUnconfigured):
		return "unconfigured"
	case errors.Is(err, recognizer.ErrRemoteRateLimited):
		return "rate_limited"
	case errors.Is(err, recognizer.ErrEmptyText):
		return "empty"
	default:
		return "error"
	}
}

func (e *Extractor) runLocal(ctx context.Context, img image.Image, hints Hints) (Result, error) {
	if e.local == nil {
		return Result{}, recognizer.ErrNoEngine
	}
	opts := hints.localOptions()
	lr, err := e.local.Recognize(ctx, img, opts)
	if err != nil {
		return Result{Attempts: len(lr.Attempts)}, err
	}
	e.logger.Info("local recognition finished",
		"mode", lr.Best.Mode.String(),
		"keywords", lr.Best.Keywords,
		"confidence", lr.Best.Confidence,
		"attempts", len(lr.Attempts))
	return Result{
		RawText:  lr.Best.Text,
		Source:   SourceLocal,
		Method:   opts.Method(),
		Attempts: len(lr.Attempts),
	}, nil
}

// store writes text to the cache and returns the key. Failures are logged
// and otherwise ignored.
func (e *Extractor) store(data []byte, method, text string) string {
	if e.cache == nil || text == "" {
		return ""
	}
	key := cache.Key(data, method)
	if err := e.cache.Put(key, text); err != nil {
		cacheWriteFailures.Inc()
		e.logger.Debug("cache write failed", "key", key, "error", err)
	}
	return key
}

func (e *Extractor) observe(res Result, start time.Time) {
	source := string(res.Source)
	extractionsTotal.WithLabelValues(source, strconv.FormatBool(res.Cached)).Inc()
	extractionDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
}
