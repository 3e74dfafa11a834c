package recognizer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrNetworkUnavailable is returned when the connectivity probe fails.
var ErrNetworkUnavailable = errors.New("network unavailable")

// Probe defaults: a DNS port on a public resolver answers TCP quickly from
// anywhere with a route out.
const (
	DefaultProbeAddr    = "8.8.8.8:53"
	DefaultProbeTimeout = 2 * time.Second
	DefaultProbeTTL     = 10 * time.Second
)

// DialFunc opens a connection; it matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Probe answers "is the remote service worth trying" and remembers the
// answer for a short while so a burst of requests dials once.
type Probe struct {
	addr    string
	timeout time.Duration
	ttl     time.Duration
	dial    DialFunc
	now     func() time.Time

	mu      sync.Mutex
	checked time.Time
	lastErr error
	valid   bool
}

// NewProbe creates a probe. Zero values fall back to the defaults.
func NewProbe(addr string, timeout, ttl time.Duration) *Probe {
	if addr == "" {
		addr = DefaultProbeAddr
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	if ttl < 0 {
		ttl = 0
	}
	d := &net.Dialer{}
	return &Probe{addr: addr, timeout: timeout, ttl: ttl, dial: d.DialContext, now: time.Now}
}

// WithDialer replaces the dial function. Intended for tests.
func (p *Probe) WithDialer(dial DialFunc) *Probe {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dial = dial
	p.valid = false
	return p
}

// Check returns nil when the probe address accepted a connection, and an
// error wrapping ErrNetworkUnavailable otherwise.
func (p *Probe) Check(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.valid && p.now().Sub(p.checked) < p.ttl {
		return p.lastErr
	}

	// The answer is shared by every caller until it expires, so one caller
	// giving up must not decide it.
	dialCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	conn, err := p.dial(dialCtx, "tcp", p.addr)
	if err != nil {
		p.lastErr = fmt.Errorf("%w: %w", ErrNetworkUnavailable, err)
	} else {
		_ = conn.Close()
		p.lastErr = nil
	}
	p.checked = p.now()
	p.valid = true
	return p.lastErr
}

// Online reports whether Check succeeded.
func (p *Probe) Online(ctx context.Context) bool {
	return p.Check(ctx) == nil
}
