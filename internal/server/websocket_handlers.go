package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/motorpass/internal/capture"
	"github.com/MeKo-Tech/motorpass/internal/imageproc"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	capturedJPEG   = 92
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Capture message types sent to the client.
const (
	MessageState    = "state"
	MessageCaptured = "captured"
	MessageResult   = "result"
	MessageEnded    = "ended"
	MessageError    = "error"
)

// CaptureMessage is every server-to-client message on /v1/capture.
type CaptureMessage struct {
	Type       string              `json:"type"`
	Transition *capture.Transition `json:"transition,omitempty"`
	Session    *capture.Session    `json:"session,omitempty"`
	// Image is the captured JPEG, base64 in JSON.
	Image   []byte          `json:"image,omitempty"`
	Outcome *verify.Outcome `json:"outcome,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// CaptureControl is a client-to-server text message.
type CaptureControl struct {
	Type string `json:"type" validate:"required,oneof=cancel capture"`
}

// wsWriter serializes writes; gorilla connections allow one concurrent writer.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(msg CaptureMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
	return nil
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
}

// captureHandler runs one live capture session. The client streams camera
// frames as binary messages (JPEG or PNG) and may send {"type":"cancel"} or
// {"type":"capture"} as text. When the query carries a rider name the
// captured image is verified before the connection closes.
func (s *Server) captureHandler(w http.ResponseWriter, r *http.Request) {
	if s.newCapture == nil {
		s.writeError(w, http.StatusServiceUnavailable, "capture_unavailable", "live capture is not enabled")
		return
	}

	form, err := parseVerifyForm(r)
	if err == nil && form.Name != "" {
		err = validateStruct(form)
	}
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	profile, err := verify.ParseProfile(form.Profile)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	if !s.captureMu.TryLock() {
		s.writeError(w, http.StatusConflict, "capture_busy", "another capture session is active")
		return
	}
	defer s.captureMu.Unlock()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	out := &wsWriter{conn: conn}
	ctrl := s.newCapture(capture.OnTransition(func(t capture.Transition) {
		_ = out.send(CaptureMessage{Type: MessageState, Transition: &t})
	}))
	s.logger.Info("capture session opened", "session", ctrl.Session().ID, "remote_addr", r.RemoteAddr)

	frames := make(chan capture.Frame, 1)
	go s.readCaptureStream(ctx, conn, out, ctrl, frames)
	go keepAlive(ctx, out)

	sess, err := ctrl.Run(ctx, capture.NewChannelSource(frames))
	if err != nil {
		_ = out.send(CaptureMessage{Type: MessageError, Error: err.Error(), Session: sess})
		return
	}

	if sess.State != capture.StateCaptured || sess.Captured == nil {
		_ = out.send(CaptureMessage{Type: MessageEnded, Session: sess})
		s.closeNormally(out)
		return
	}

	jpeg, err := imageproc.EncodeJPEG(sess.Captured.Image, capturedJPEG)
	if err != nil {
		_ = out.send(CaptureMessage{Type: MessageError, Error: err.Error(), Session: sess})
		return
	}
	_ = out.send(CaptureMessage{Type: MessageCaptured, Session: sess, Image: jpeg})

	if form.Name != "" {
		outcome := s.verifier.Verify(ctx, verify.Request{
			Image: jpeg,
			Identity: verify.Identity{
				Name:                 form.Name,
				ExpectedDocumentType: form.ExpectedDocumentType,
			},
			Profile:              profile,
			HelmetOK:             form.HelmetOK,
			CredentialConfidence: form.CredentialConfidence,
			ExpirationOK:         form.ExpirationOK,
		})
		_ = out.send(CaptureMessage{Type: MessageResult, Outcome: &outcome})
	}
	s.closeNormally(out)
}

// readCaptureStream feeds frames to the controller until the client goes
// away. Frames arriving while the previous one is still being scanned are
// dropped, like a camera preview would.
func (s *Server) readCaptureStream(
	ctx context.Context,
	conn *websocket.Conn,
	out *wsWriter,
	ctrl *capture.Controller,
	frames chan<- capture.Frame,
) {
	defer ctrl.Cancel()

	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	var (
		index int64
		last  capture.Frame
	)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("capture stream closed", "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()

		switch msgType {
		case websocket.BinaryMessage:
			src, err := imageproc.Decode(data)
			if err != nil {
				_ = out.send(CaptureMessage{Type: MessageError, Error: "undecodable frame"})
				continue
			}
			last = capture.Frame{Image: src.Image, Timestamp: time.Now(), Index: index}
			index++
			select {
			case frames <- last:
			case <-ctx.Done():
				return
			default:
			}
		case websocket.TextMessage:
			var ctl CaptureControl
			if err := json.Unmarshal(data, &ctl); err != nil || validateStruct(ctl) != nil {
				_ = out.send(CaptureMessage{Type: MessageError, Error: "unknown control message"})
				continue
			}
			switch ctl.Type {
			case "cancel":
				ctrl.Cancel()
			case "capture":
				if last.Image == nil {
					_ = out.send(CaptureMessage{Type: MessageError, Error: "no frame to capture yet"})
					continue
				}
				ctrl.ForceCapture(last)
				// Run may be waiting for a frame; wake it so it sees the
				// terminal state.
				ctrl.Cancel()
			}
		}
	}
}

func keepAlive(ctx context.Context, out *wsWriter) {
	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Server) closeNormally(out *wsWriter) {
	out.mu.Lock()
	defer out.mu.Unlock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished")
	_ = out.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
