package recognizer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/document"
	"github.com/MeKo-Tech/motorpass/internal/imageproc"
)

// ErrNoText is returned when every local attempt produced empty output.
var ErrNoText = errors.New("recognizer: no text recognized")

// LocalConfig bounds the local attempt loop.
type LocalConfig struct {
	AttemptTimeout time.Duration
	Budget         time.Duration
	GuestBudget    time.Duration
}

// DefaultLocalConfig returns the stock time limits.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		AttemptTimeout: 3 * time.Second,
		Budget:         5 * time.Second,
		GuestBudget:    4 * time.Second,
	}
}

// LocalOptions carries per-request hints.
type LocalOptions struct {
	// Guest selects the shorter attempt list and looser early-exit bar.
	Guest bool
	// HasReference enables an extra early exit once a couple of keywords are
	// visible, since the name matcher can take it from there.
	HasReference bool
}

// Method returns the cache method name for these options.
func (o LocalOptions) Method() string {
	if o.Guest {
		return MethodGuestLocal
	}
	return MethodLocal
}

// Attempt is the outcome of one mode.
type Attempt struct {
	Mode       Mode
	Text       string
	Keywords   int
	Confidence int
	Duration   time.Duration
	Err        error
}

// LocalResult is the best attempt plus everything that was tried.
type LocalResult struct {
	Best     Attempt
	Attempts []Attempt
}

// Local runs ordered recognition attempts on a local engine.
type Local struct {
	engine Engine
	cfg    LocalConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewLocal creates a local recognizer around engine.
func NewLocal(engine Engine, cfg LocalConfig) *Local {
	def := DefaultLocalConfig()
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.Budget <= 0 {
		cfg.Budget = def.Budget
	}
	if cfg.GuestBudget <= 0 {
		cfg.GuestBudget = def.GuestBudget
	}
	return &Local{engine: engine, cfg: cfg, now: time.Now, logger: slog.Default()}
}

// Engine returns the underlying engine.
func (l *Local) Engine() Engine { return l.engine }

type plan struct {
	modes         []Mode
	minKeywords   int
	minConfidence int
	budget        time.Duration
}

func (l *Local) planFor(opts LocalOptions) plan {
	if opts.Guest {
		return plan{
			modes:         []Mode{ModeFast, ModeStandard},
			minKeywords:   1,
			minConfidence: 40,
			budget:        l.cfg.GuestBudget,
		}
	}
	return plan{
		modes:         []Mode{ModeFast, ModeStandard, ModeDetailed},
		minKeywords:   3,
		minConfidence: 60,
		budget:        l.cfg.Budget,
	}
}

func (p plan) goodEnough(a Attempt, hasReference bool) bool {
	if a.Keywords >= p.minKeywords && a.Confidence >= p.minConfidence {
		return true
	}
	return hasReference && a.Keywords >= 2 && a.Confidence >= 60
}

// Recognize resizes img into the optimal bounds and runs the attempt list,
// stopping early once an attempt looks like the expected document or the
// overall budget is spent. The highest-confidence attempt wins.
func (l *Local) Recognize(ctx context.Context, img image.Image, opts LocalOptions) (LocalResult, error) {
	resized, err := imageproc.ResizeOptimal(img)
	if err != nil {
		return LocalResult{}, err
	}

	p := l.planFor(opts)
	start := l.now()
	var (
		res     LocalResult
		lastErr error
		found   bool
	)

	for _, mode := range p.modes {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		remaining := p.budget - l.now().Sub(start)
		if remaining <= 0 {
			l.logger.Debug("local recognition budget spent", "budget", p.budget, "attempts", len(res.Attempts))
			break
		}

		a := l.attempt(ctx, resized, mode, min(remaining, l.cfg.AttemptTimeout))
		res.Attempts = append(res.Attempts, a)
		if a.Err != nil {
			lastErr = a.Err
			l.logger.Debug("local attempt failed", "mode", mode.String(), "error", a.Err)
			if errors.Is(a.Err, ErrNoEngine) {
				break
			}
			continue
		}

		l.logger.Debug("local attempt",
			"mode", mode.String(),
			"keywords", a.Keywords,
			"confidence", a.Confidence,
			"chars", len(a.Text),
			"duration", a.Duration)

		if a.Text != "" && (!found || a.Confidence > res.Best.Confidence) {
			res.Best = a
			found = true
		}
		if p.goodEnough(a, opts.HasReference) {
			break
		}
	}

	if !found {
		if lastErr != nil {
			return res, fmt.Errorf("%w: %w", ErrNoText, lastErr)
		}
		return res, ErrNoText
	}
	return res, nil
}

func (l *Local) attempt(ctx context.Context, img image.Image, mode Mode, timeout time.Duration) Attempt {
	cfg := mode.Config()
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	began := l.now()
	text, err := l.engine.Recognize(attemptCtx, cfg.Preprocess(img), cfg)
	a := Attempt{Mode: mode, Duration: l.now().Sub(began), Err: err}
	if err != nil {
		return a
	}
	a.Text = strings.TrimSpace(text)
	a.Keywords = document.CountKeywords(a.Text)
	a.Confidence = document.ConfidenceScore(a.Text, a.Keywords)
	return a
}
