package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/imageproc"
)

// ErrFrameUnavailable is a transient read failure. The capture loop skips the
// frame and asks for the next one.
var ErrFrameUnavailable = errors.New("capture: frame unavailable")

// Frame is one camera image.
type Frame struct {
	Image     image.Image
	Timestamp time.Time
	Index     int64
}

// FrameSource yields frames until it returns io.EOF.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
}

// DirSource plays back the images of a directory in name order, one per
// Next call. It is the camera stand-in for the CLI and for tests.
type DirSource struct {
	paths    []string
	interval time.Duration
	loop     bool
	now      func() time.Time

	mu    sync.Mutex
	pos   int
	index int64
}

// DirOption configures a DirSource.
type DirOption func(*DirSource)

// WithLoop restarts playback from the first image instead of returning
// io.EOF.
func WithLoop() DirOption {
	return func(s *DirSource) { s.loop = true }
}

// WithInterval sleeps between frames to mimic a camera frame rate.
func WithInterval(d time.Duration) DirOption {
	return func(s *DirSource) { s.interval = d }
}

// NewDirSource lists the supported images under dir.
func NewDirSource(dir string, opts ...DirOption) (*DirSource, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read frame directory: %w", err)
	}
	s := &DirSource{now: time.Now}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") || !imageproc.IsSupported(e.Name()) {
			continue
		}
		s.paths = append(s.paths, filepath.Join(dir, e.Name()))
	}
	if len(s.paths) == 0 {
		return nil, fmt.Errorf("no supported images in %s", dir)
	}
	sort.Strings(s.paths)
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Len returns the number of images in the playback list.
func (s *DirSource) Len() int { return len(s.paths) }

// Next decodes the next image. Unreadable files surface as
// ErrFrameUnavailable so playback carries on past them.
func (s *DirSource) Next(ctx context.Context) (Frame, error) {
	if s.interval > 0 {
		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return Frame{}, ctx.Err()
		case <-t.C:
		}
	}

	s.mu.Lock()
	if s.pos >= len(s.paths) {
		if !s.loop {
			s.mu.Unlock()
			return Frame{}, io.EOF
		}
		s.pos = 0
	}
	path := s.paths[s.pos]
	s.pos++
	idx := s.index
	s.index++
	s.mu.Unlock()

	src, err := imageproc.Open(path)
	if err != nil {
		return Frame{}, fmt.Errorf("%w: %s: %w", ErrFrameUnavailable, filepath.Base(path), err)
	}
	return Frame{Image: src.Image, Timestamp: s.now(), Index: idx}, nil
}

// ChannelSource adapts a channel of frames, e.g. frames pushed over a
// WebSocket. Closing the channel ends the stream.
type ChannelSource struct {
	frames <-chan Frame
}

// NewChannelSource wraps ch.
func NewChannelSource(ch <-chan Frame) *ChannelSource {
	return &ChannelSource{frames: ch}
}

// Next blocks until a frame arrives, the channel closes or ctx ends.
func (s *ChannelSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case f, ok := <-s.frames:
		if !ok {
			return Frame{}, io.EOF
		}
		if f.Image == nil {
			return Frame{}, ErrFrameUnavailable
		}
		return f, nil
	}
}
