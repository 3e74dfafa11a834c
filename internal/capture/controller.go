// Package capture watches a camera preview and decides when a license is
// framed well enough to take the picture.
//
// A Controller scans a centered region of every few frames for license
// vocabulary, smooths the readings with an adaptive threshold and walks a
// small state machine:
//
//	SCANNING -> STABILIZING -> READY -> CAPTURED
//
// with CANCELLED reachable from any non-terminal state.
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/imageproc"
)

// Config tunes the capture loop.
type Config struct {
	// CheckInterval scans every Nth frame.
	CheckInterval int
	// StabilityFrames is the number of consecutive good readings needed to
	// go from STABILIZING to READY.
	StabilityFrames int
	HistorySize     int
	// ROIWidth and ROIHeight are fractions of the frame size.
	ROIWidth  float64
	ROIHeight float64
	// MinGreenTime keeps READY through weak readings for this long.
	MinGreenTime time.Duration
	// CaptureDelay is how long READY must hold before the snapshot.
	CaptureDelay   time.Duration
	SessionTimeout time.Duration
}

// DefaultConfig returns the kiosk defaults.
func DefaultConfig() Config {
	return Config{
		CheckInterval:   5,
		StabilityFrames: 2,
		HistorySize:     8,
		ROIWidth:        0.83,
		ROIHeight:       0.58,
		MinGreenTime:    2 * time.Second,
		CaptureDelay:    time.Second,
		SessionTimeout:  60 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.CheckInterval <= 0 {
		c.CheckInterval = def.CheckInterval
	}
	if c.StabilityFrames <= 0 {
		c.StabilityFrames = def.StabilityFrames
	}
	if c.HistorySize <= 0 {
		c.HistorySize = def.HistorySize
	}
	if c.ROIWidth <= 0 || c.ROIWidth > 1 {
		c.ROIWidth = def.ROIWidth
	}
	if c.ROIHeight <= 0 || c.ROIHeight > 1 {
		c.ROIHeight = def.ROIHeight
	}
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// OnTransition registers a callback fired after every state change. It runs
// on the observing goroutine, outside the controller lock.
func OnTransition(fn func(Transition)) Option {
	return func(c *Controller) { c.onTransition = fn }
}

// Controller drives one capture session.
type Controller struct {
	cfg          Config
	scanner      Scanner
	now          func() time.Time
	logger       *slog.Logger
	onTransition func(Transition)

	cancelled atomic.Bool

	// observeMu serializes Observe calls; mu guards session and is not held
	// across scans.
	observeMu sync.Mutex
	mu        sync.Mutex
	session   *Session
	stopRun   context.CancelFunc
}

// NewController starts a fresh session in SCANNING.
func NewController(scanner Scanner, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:     cfg.withDefaults(),
		scanner: scanner,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.session = newSession(c.now())
	c.logger.Debug("capture session started", "session", c.session.ID)
	return c
}

// Session returns a copy of the current session.
func (c *Controller) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// Cancel asks the session to stop. It takes effect at the next Observe or
// immediately when Run is blocked waiting for a frame.
func (c *Controller) Cancel() {
	c.cancelled.Store(true)
	c.mu.Lock()
	stop := c.stopRun
	c.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// IsReadyToCapture reports whether the session has been READY for at least
// the capture delay.
func (c *Controller) IsReadyToCapture() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readyToCapture(c.session, c.now())
}

func (c *Controller) readyToCapture(s *Session, now time.Time) bool {
	return s.State == StateReady && now.Sub(s.ReadyAt) >= c.cfg.CaptureDelay
}

// Observe feeds one frame to the session and returns the updated snapshot.
// It never fails: unreadable regions and scanner errors only clear
// readiness.
func (c *Controller) Observe(frame Frame) *Session {
	return c.observe(context.Background(), frame)
}

func (c *Controller) observe(ctx context.Context, frame Frame) *Session {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	if c.cancelled.Load() {
		return c.cancel(ReasonCancelled, frame.Index)
	}

	c.mu.Lock()
	s := c.session
	if s.State.Terminal() {
		snap := s.clone()
		c.mu.Unlock()
		return snap
	}
	s.Frames++
	scan := (s.Frames-1)%int64(c.cfg.CheckInterval) == 0
	prev := s.Keywords
	c.mu.Unlock()

	var fired []Transition
	if scan {
		fired = c.scan(ctx, frame, prev)
	}

	c.mu.Lock()
	if c.readyToCapture(s, c.now()) {
		fired = append(fired, c.capture(s, frame))
	}
	snap := s.clone()
	c.mu.Unlock()

	c.notify(fired)
	return snap
}

// scan runs one preview scan and applies the reading. It returns the
// transitions it caused.
func (c *Controller) scan(ctx context.Context, frame Frame, prev int) []Transition {
	roi := imageproc.CropCenter(frame.Image, c.cfg.ROIWidth, c.cfg.ROIHeight)
	var (
		res ScanResult
		enh imageproc.Enhancement
	)
	if roi == nil {
		res.Err = ErrFrameUnavailable
	} else {
		enh = imageproc.EnhancementFor(prev)
		res = c.scanner.Scan(ctx, enh.Apply(roi))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.session
	now := c.now()
	if s.State.Terminal() {
		return nil
	}

	if res.Err != nil {
		c.logger.Debug("preview scan unusable", "session", s.ID, "frame", frame.Index, "error", res.Err)
		return c.clearReadiness(s, now, frame.Index)
	}
	if res.Restricted {
		c.logger.Info("restricted document in preview", "session", s.ID, "frame", frame.Index)
		return []Transition{c.transition(s, StateCancelled, now, frame.Index, ReasonRestricted)}
	}

	k := res.Keywords
	// Threshold from the prior history; k joins it afterwards.
	t := keywordThreshold(s.History, k, s.State == StateReady)
	s.pushHistory(k, c.cfg.HistorySize)
	s.Keywords = k
	s.Threshold = t
	s.Level = enh.Gain
	scanKeywords.Observe(float64(k))

	var fired []Transition
	if k >= t {
		s.GoodReadings++
		if s.State == StateScanning {
			fired = append(fired, c.transition(s, StateStabilizing, now, frame.Index, ""))
		}
		if s.State == StateStabilizing && s.GoodReadings >= c.cfg.StabilityFrames {
			s.ReadyAt = now
			s.GoodReadings = 0
			fired = append(fired, c.transition(s, StateReady, now, frame.Index, ""))
		}
		return fired
	}

	s.GoodReadings = 0
	switch s.State {
	case StateStabilizing:
		fired = append(fired, c.transition(s, StateScanning, now, frame.Index, ""))
	case StateReady:
		if now.Sub(s.ReadyAt) >= c.cfg.MinGreenTime {
			s.ReadyAt = time.Time{}
			fired = append(fired, c.transition(s, StateScanning, now, frame.Index, ""))
		}
	}
	return fired
}

func (c *Controller) clearReadiness(s *Session, now time.Time, frame int64) []Transition {
	s.Keywords = 0
	s.GoodReadings = 0
	s.Level = 1.0
	s.ReadyAt = time.Time{}
	if s.State == StateStabilizing || s.State == StateReady {
		return []Transition{c.transition(s, StateScanning, now, frame, "")}
	}
	return nil
}

// ForceCapture snapshots frame right away, whatever the readings say.
func (c *Controller) ForceCapture(frame Frame) *Session {
	c.observeMu.Lock()
	defer c.observeMu.Unlock()

	c.mu.Lock()
	s := c.session
	if s.State.Terminal() || frame.Image == nil {
		snap := s.clone()
		c.mu.Unlock()
		return snap
	}
	t := c.capture(s, frame)
	snap := s.clone()
	c.mu.Unlock()

	c.notify([]Transition{t})
	return snap
}

func (c *Controller) capture(s *Session, frame Frame) Transition {
	now := c.now()
	img := imageproc.CaptureEnhancement(s.Level).Apply(frame.Image)
	s.Captured = &Frame{Image: img, Timestamp: now, Index: frame.Index}
	c.logger.Info("license captured", "session", s.ID, "frame", frame.Index, "level", s.Level)
	return c.transition(s, StateCaptured, now, frame.Index, "")
}

func (c *Controller) cancel(reason string, frame int64) *Session {
	c.mu.Lock()
	s := c.session
	var fired []Transition
	if !s.State.Terminal() {
		fired = append(fired, c.transition(s, StateCancelled, c.now(), frame, reason))
	}
	snap := s.clone()
	c.mu.Unlock()

	c.notify(fired)
	return snap
}

// transition must be called with mu held.
func (c *Controller) transition(s *Session, to State, at time.Time, frame int64, reason string) Transition {
	t := Transition{From: s.State, To: to, At: at, Frame: frame, Reason: reason}
	s.State = to
	if to == StateCancelled {
		s.CancelReason = reason
	}
	s.Transitions = append(s.Transitions, t)
	transitionsTotal.WithLabelValues(string(t.From), string(to)).Inc()
	c.logger.Debug("capture state changed",
		"session", s.ID, "from", string(t.From), "to", string(to), "frame", frame, "reason", reason)
	return t
}

func (c *Controller) notify(ts []Transition) {
	if c.onTransition == nil {
		return
	}
	for _, t := range ts {
		c.onTransition(t)
	}
}

// Run pulls frames from source until the session reaches a terminal state.
// Context cancellation and Cancel end the session as cancelled, the session
// timeout as timed out and an exhausted source as source_closed. Only source
// failures other than ErrFrameUnavailable are returned as errors.
func (c *Controller) Run(ctx context.Context, source FrameSource) (*Session, error) {
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	c.mu.Lock()
	c.stopRun = stop
	started := c.session.StartedAt
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.stopRun = nil
		c.mu.Unlock()
	}()

	unavailable := 0
	for {
		if c.cancelled.Load() || ctx.Err() != nil {
			return c.cancel(ReasonCancelled, -1), nil
		}
		if c.timedOut(started) {
			return c.cancel(ReasonTimeout, -1), nil
		}

		nextCtx, cancelNext := c.frameContext(runCtx, started)
		frame, err := source.Next(nextCtx)
		timedOut := nextCtx.Err() != nil && runCtx.Err() == nil
		cancelNext()

		switch {
		case err == nil:
			unavailable = 0
		case errors.Is(err, ErrFrameUnavailable):
			unavailable++
			waitUnavailable(runCtx, unavailable)
			continue
		case errors.Is(err, io.EOF):
			return c.cancel(ReasonSourceDone, -1), nil
		case timedOut:
			return c.cancel(ReasonTimeout, -1), nil
		case runCtx.Err() != nil:
			return c.cancel(ReasonCancelled, -1), nil
		default:
			c.cancel(ReasonSourceDone, -1)
			return c.Session(), fmt.Errorf("read frame: %w", err)
		}

		if s := c.observe(runCtx, frame); s.State.Terminal() {
			return s, nil
		}
	}
}

// Back-off after a run of unavailable frames, growing linearly up to the cap.
const (
	unavailableBackoff    = 5 * time.Millisecond
	maxUnavailableBackoff = 100 * time.Millisecond
)

// waitUnavailable pauses before asking a failing source again.
func waitUnavailable(ctx context.Context, failures int) {
	d := min(time.Duration(failures)*unavailableBackoff, maxUnavailableBackoff)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c *Controller) timedOut(started time.Time) bool {
	return c.cfg.SessionTimeout > 0 && c.now().Sub(started) >= c.cfg.SessionTimeout
}

// frameContext bounds a Next call by the remaining session time.
func (c *Controller) frameContext(ctx context.Context, started time.Time) (context.Context, context.CancelFunc) {
	if c.cfg.SessionTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	remaining := c.cfg.SessionTimeout - c.now().Sub(started)
	return context.WithTimeout(ctx, remaining)
}
