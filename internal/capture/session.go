package capture

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// State is the capture state machine position.
type State string

const (
	StateScanning    State = "SCANNING"
	StateStabilizing State = "STABILIZING"
	StateReady       State = "READY"
	StateCaptured    State = "CAPTURED"
	StateCancelled   State = "CANCELLED"
)

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateCaptured || s == StateCancelled
}

// Cancel reasons.
const (
	ReasonCancelled  = "cancelled"
	ReasonTimeout    = "timeout"
	ReasonRestricted = "restricted_document"
	ReasonSourceDone = "source_closed"
)

// Transition records one state change.
type Transition struct {
	From   State     `json:"from" yaml:"from"`
	To     State     `json:"to" yaml:"to"`
	At     time.Time `json:"at" yaml:"at"`
	Frame  int64     `json:"frame" yaml:"frame"`
	Reason string    `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Session is a snapshot of the capture state. Values returned by the
// controller are copies and safe to keep.
type Session struct {
	ID           string       `json:"id" yaml:"id"`
	State        State        `json:"state" yaml:"state"`
	StartedAt    time.Time    `json:"started_at" yaml:"started_at"`
	History      []int        `json:"history" yaml:"history"`
	GoodReadings int          `json:"good_readings" yaml:"good_readings"`
	ReadyAt      time.Time    `json:"ready_at,omitzero" yaml:"ready_at,omitempty"`
	Level        float64      `json:"level" yaml:"level"`
	Keywords     int          `json:"keywords" yaml:"keywords"`
	Threshold    int          `json:"threshold" yaml:"threshold"`
	Frames       int64        `json:"frames" yaml:"frames"`
	Transitions  []Transition `json:"transitions" yaml:"transitions"`
	CancelReason string       `json:"cancel_reason,omitempty" yaml:"cancel_reason,omitempty"`
	// Captured is the enhanced full frame, set only in StateCaptured.
	Captured *Frame `json:"-" yaml:"-"`
}

func newSession(now time.Time) *Session {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return &Session{
		ID:        ulid.MustNew(ulid.Timestamp(now), entropy).String(),
		State:     StateScanning,
		StartedAt: now,
		Level:     1.0,
	}
}

func (s *Session) clone() *Session {
	c := *s
	c.History = append([]int(nil), s.History...)
	c.Transitions = append([]Transition(nil), s.Transitions...)
	if s.Captured != nil {
		f := *s.Captured
		c.Captured = &f
	}
	return &c
}

// pushHistory appends k, keeping at most size samples.
func (s *Session) pushHistory(k, size int) {
	s.History = append(s.History, k)
	if over := len(s.History) - size; over > 0 {
		s.History = append(s.History[:0], s.History[over:]...)
	}
}
