package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// scriptScanner replays results in order and repeats the last one.
type scriptScanner struct {
	mu      sync.Mutex
	results []ScanResult
	calls   int
}

func keywords(ks ...int) *scriptScanner {
	s := &scriptScanner{}
	for _, k := range ks {
		s.results = append(s.results, ScanResult{Keywords: k})
	}
	return s
}

func (s *scriptScanner) Scan(_ context.Context, _ image.Image) ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := min(s.calls, len(s.results)-1)
	s.calls++
	return s.results[i]
}

func (s *scriptScanner) set(results ...ScanResult) {
	s.mu.Lock()
	s.results = results
	s.calls = 0
	s.mu.Unlock()
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CheckInterval = 1
	return cfg
}

func frame(i int64) Frame {
	return Frame{Image: image.NewRGBA(image.Rect(0, 0, 320, 240)), Index: i}
}

func newTestController(sc Scanner, cfg Config, clock *fakeClock, opts ...Option) *Controller {
	return NewController(sc, cfg, append([]Option{WithClock(clock.Now)}, opts...)...)
}

// driveToReady feeds strong readings until the session is READY.
func driveToReady(t *testing.T, c *Controller, clock *fakeClock) {
	t.Helper()
	s := c.Observe(frame(1))
	require.Equal(t, StateStabilizing, s.State)
	clock.Advance(100 * time.Millisecond)
	s = c.Observe(frame(2))
	require.Equal(t, StateReady, s.State)
}

func states(s *Session) []State {
	out := make([]State, 0, len(s.Transitions))
	for _, t := range s.Transitions {
		out = append(out, t.To)
	}
	return out
}

func TestController_CapturesAfterDelay(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(keywords(3), testConfig(), clock)

	s := c.Session()
	assert.Equal(t, StateScanning, s.State)
	assert.NotEmpty(t, s.ID)

	driveToReady(t, c, clock)
	assert.False(t, c.IsReadyToCapture())

	clock.Advance(500 * time.Millisecond)
	s = c.Observe(frame(3))
	assert.Equal(t, StateReady, s.State)
	assert.Nil(t, s.Captured)

	clock.Advance(500 * time.Millisecond)
	assert.True(t, c.IsReadyToCapture())
	s = c.Observe(frame(4))
	assert.Equal(t, StateCaptured, s.State)
	require.NotNil(t, s.Captured)
	assert.Equal(t, int64(4), s.Captured.Index)
	assert.Equal(t, []State{StateStabilizing, StateReady, StateCaptured}, states(s))
}

func TestController_ThresholdDropsWhileReady(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.CaptureDelay = time.Minute
	sc := keywords(3)
	c := newTestController(sc, cfg, clock)
	driveToReady(t, c, clock)

	s := c.Observe(frame(3))
	assert.Equal(t, 1, s.Threshold)
	assert.Equal(t, []int{3, 3, 3}, s.History)
}

func TestController_HysteresisBeforeMinGreenTime(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.CaptureDelay = time.Minute
	sc := keywords(3)
	c := newTestController(sc, cfg, clock)
	driveToReady(t, c, clock)

	sc.set(ScanResult{Keywords: 0})
	clock.Advance(time.Second)
	s := c.Observe(frame(3))
	assert.Equal(t, StateReady, s.State, "weak reading inside the green window keeps READY")
	assert.Zero(t, s.GoodReadings)

	clock.Advance(1500 * time.Millisecond)
	s = c.Observe(frame(4))
	assert.Equal(t, StateScanning, s.State)
	assert.True(t, s.ReadyAt.IsZero())
}

func TestController_ThresholdIgnoresCurrentReading(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(keywords(1, 2), testConfig(), clock)

	c.Observe(frame(0))
	s := c.Observe(frame(1))
	assert.Equal(t, 3, s.Threshold)
	assert.Equal(t, StateScanning, s.State)
	assert.Equal(t, []int{1, 2}, s.History)
}

func TestController_StabilizingDropsOnWeakReading(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(keywords(3, 0), testConfig(), clock)

	assert.Equal(t, StateStabilizing, c.Observe(frame(1)).State)
	s := c.Observe(frame(2))
	assert.Equal(t, StateScanning, s.State)
	assert.Equal(t, 3, s.History[0])
}

func TestController_WeakStartNeedsThreeKeywords(t *testing.T) {
	clock := newFakeClock()
	c := newTestController(keywords(0, 2, 3), testConfig(), clock)

	s := c.Observe(frame(1))
	assert.Equal(t, StateScanning, s.State)
	assert.Equal(t, 3, s.Threshold)

	s = c.Observe(frame(2))
	assert.Equal(t, StateScanning, s.State, "average of one empty sample keeps the bar at three")

	s = c.Observe(frame(3))
	assert.Equal(t, StateStabilizing, s.State)
}

func TestController_EmptyCropClearsReadiness(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.CaptureDelay = time.Minute
	c := newTestController(keywords(3), cfg, clock)
	driveToReady(t, c, clock)

	tiny := Frame{Image: image.NewRGBA(image.Rect(0, 0, 1, 1)), Index: 3}
	s := c.Observe(tiny)
	assert.Equal(t, StateScanning, s.State)
	assert.Zero(t, s.Keywords)
	assert.Zero(t, s.GoodReadings)
	assert.InDelta(t, 1.0, s.Level, 1e-9)
	assert.False(t, c.IsReadyToCapture())
}

func TestController_ScannerFailureClearsReadiness(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.CaptureDelay = time.Minute
	sc := keywords(3)
	c := newTestController(sc, cfg, clock)
	driveToReady(t, c, clock)

	sc.set(ScanResult{Err: errors.New("engine crashed")})
	s := c.Observe(frame(3))
	assert.Equal(t, StateScanning, s.State)
	assert.InDelta(t, 1.0, s.Level, 1e-9)
}

func TestController_NilImageNeverPanics(t *testing.T) {
	c := newTestController(keywords(3), testConfig(), newFakeClock())
	assert.NotPanics(t, func() {
		s := c.Observe(Frame{})
		assert.Equal(t, StateScanning, s.State)
	})
}

func TestController_EnhancementLevelFollowsKeywords(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.CaptureDelay = time.Minute
	c := newTestController(keywords(3), cfg, clock)

	s := c.Observe(frame(1))
	assert.InDelta(t, 2.0, s.Level, 1e-9, "no previous keywords: strongest boost")
	s = c.Observe(frame(2))
	assert.InDelta(t, 1.1, s.Level, 1e-9)
}

func TestController_CheckInterval(t *testing.T) {
	clock := newFakeClock()
	cfg := DefaultConfig()
	sc := keywords(0)
	c := newTestController(sc, cfg, clock)

	for i := range int64(11) {
		c.Observe(frame(i))
	}
	assert.Equal(t, 3, sc.calls, "frames 1, 6 and 11 are scanned")
	assert.Equal(t, int64(11), c.Session().Frames)
}

func TestController_CancelFromAnyState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Controller, *fakeClock)
	}{
		{name: "scanning", setup: func(*Controller, *fakeClock) {}},
		{name: "stabilizing", setup: func(c *Controller, _ *fakeClock) { c.Observe(frame(1)) }},
		{name: "ready", setup: func(c *Controller, clock *fakeClock) {
			c.Observe(frame(1))
			clock.Advance(time.Millisecond)
			c.Observe(frame(2))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newFakeClock()
			cfg := testConfig()
			cfg.CaptureDelay = time.Minute
			c := newTestController(keywords(3), cfg, clock)
			tt.setup(c, clock)

			c.Cancel()
			s := c.Observe(frame(9))
			assert.Equal(t, StateCancelled, s.State)
			assert.Equal(t, ReasonCancelled, s.CancelReason)

			again := c.ForceCapture(frame(10))
			assert.Equal(t, StateCancelled, again.State)
			assert.Nil(t, again.Captured)
		})
	}
}

func TestController_RestrictedPreviewCancels(t *testing.T) {
	sc := &scriptScanner{results: []ScanResult{{Keywords: 2, Restricted: true}}}
	c := newTestController(sc, testConfig(), newFakeClock())

	s := c.Observe(frame(1))
	assert.Equal(t, StateCancelled, s.State)
	assert.Equal(t, ReasonRestricted, s.CancelReason)
}

func TestController_ForceCapture(t *testing.T) {
	c := newTestController(keywords(0), testConfig(), newFakeClock())
	s := c.ForceCapture(frame(7))
	assert.Equal(t, StateCaptured, s.State)
	require.NotNil(t, s.Captured)
	assert.Equal(t, image.Rect(0, 0, 320, 240), s.Captured.Image.Bounds())
}

func TestController_OnTransition(t *testing.T) {
	clock := newFakeClock()
	var got []Transition
	c := newTestController(keywords(3), testConfig(), clock, OnTransition(func(tr Transition) {
		got = append(got, tr)
	}))
	driveToReady(t, c, clock)

	require.Len(t, got, 2)
	assert.Equal(t, StateScanning, got[0].From)
	assert.Equal(t, StateStabilizing, got[0].To)
	assert.Equal(t, StateReady, got[1].To)
}

func TestController_SessionIsACopy(t *testing.T) {
	c := newTestController(keywords(3), testConfig(), newFakeClock())
	s := c.Observe(frame(1))
	s.History[0] = 99
	assert.Equal(t, 3, c.Session().History[0])
}

func TestRun_CapturesFromChannel(t *testing.T) {
	clock := newFakeClock()
	cfg := testConfig()
	cfg.CaptureDelay = 0
	c := newTestController(keywords(4), cfg, clock)

	ch := make(chan Frame, 4)
	for i := range int64(4) {
		ch <- frame(i)
	}
	close(ch)

	s, err := c.Run(context.Background(), NewChannelSource(ch))
	require.NoError(t, err)
	assert.Equal(t, StateCaptured, s.State)
}

func TestRun_SourceClosed(t *testing.T) {
	c := newTestController(keywords(0), testConfig(), newFakeClock())
	ch := make(chan Frame, 2)
	ch <- frame(0)
	ch <- Frame{}
	close(ch)

	s, err := c.Run(context.Background(), NewChannelSource(ch))
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, s.State)
	assert.Equal(t, ReasonSourceDone, s.CancelReason)
}

func TestRun_CancelWhileWaiting(t *testing.T) {
	c := NewController(keywords(0), testConfig())
	ch := make(chan Frame)

	done := make(chan *Session, 1)
	go func() {
		s, _ := c.Run(context.Background(), NewChannelSource(ch))
		done <- s
	}()

	time.Sleep(20 * time.Millisecond)
	c.Cancel()

	select {
	case s := <-done:
		assert.Equal(t, StateCancelled, s.State)
		assert.Equal(t, ReasonCancelled, s.CancelReason)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Cancel")
	}
}

func TestRun_SessionTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = 30 * time.Millisecond
	c := NewController(keywords(0), cfg)

	s, err := c.Run(context.Background(), NewChannelSource(make(chan Frame)))
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, s.State)
	assert.Equal(t, ReasonTimeout, s.CancelReason)
}

func TestRun_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewController(keywords(0), testConfig())

	s, err := c.Run(ctx, NewChannelSource(make(chan Frame)))
	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, s.CancelReason)
}

// unavailableSource never has a frame ready.
type unavailableSource struct{ calls atomic.Int32 }

func (s *unavailableSource) Next(context.Context) (Frame, error) {
	s.calls.Add(1)
	return Frame{}, ErrFrameUnavailable
}

func TestRun_UnavailableFramesBackOff(t *testing.T) {
	cfg := testConfig()
	cfg.SessionTimeout = 150 * time.Millisecond
	c := NewController(keywords(0), cfg)
	src := &unavailableSource{}

	s, err := c.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, ReasonTimeout, s.CancelReason)
	// 5+10+...+50 ms already covers the session; a busy loop would ask
	// thousands of times.
	assert.Less(t, src.calls.Load(), int32(20))
	assert.Positive(t, src.calls.Load())
}

type failingSource struct{}

func (failingSource) Next(context.Context) (Frame, error) {
	return Frame{}, errors.New("camera unplugged")
}

func TestRun_SourceError(t *testing.T) {
	c := NewController(keywords(0), testConfig())
	s, err := c.Run(context.Background(), failingSource{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camera unplugged")
	assert.Equal(t, StateCancelled, s.State)
}
