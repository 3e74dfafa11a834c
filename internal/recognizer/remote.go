package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MeKo-Tech/motorpass/internal/imageproc"
)

// Remote recognizer errors.
var (
	ErrRemoteUnconfigured = errors.New("remote recognizer: no API key configured")
	ErrRemoteFailed       = errors.New("remote recognizer: request failed")
	ErrRemoteRateLimited  = errors.New("remote recognizer: request quota exhausted")
	ErrEmptyText          = errors.New("remote recognizer: service returned empty text")
)

// DefaultEndpoint is the OCR.space parse endpoint.
const DefaultEndpoint = "https://api.ocr.space/parse/image"

// RemoteConfig configures the OCR.space client.
type RemoteConfig struct {
	Endpoint string
	APIKey   string
	Language string
	// EngineVersion is the OCR.space engine number (1, 2 or 3).
	EngineVersion int
	Timeout       time.Duration
	// MaxSide bounds the uploaded thumbnail.
	MaxSide     int
	JPEGQuality int
	// RequestsPerMinute caps outgoing calls; zero disables the cap.
	RequestsPerMinute int
}

// DefaultRemoteConfig returns the stock OCR.space settings without an API key.
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		Endpoint:      DefaultEndpoint,
		Language:      "eng",
		EngineVersion: 2,
		Timeout:       10 * time.Second,
		MaxSide:       imageproc.ThumbnailMaxSide,
		JPEGQuality:   85,
	}
}

// Remote is a client for the OCR.space parse API.
type Remote struct {
	cfg     RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewRemote creates a remote recognizer. A nil client gets one with the
// configured timeout.
func NewRemote(cfg RemoteConfig, client *http.Client) *Remote {
	def := DefaultRemoteConfig()
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	if cfg.EngineVersion == 0 {
		cfg.EngineVersion = def.EngineVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxSide <= 0 {
		cfg.MaxSide = def.MaxSide
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = def.JPEGQuality
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	r := &Remote{cfg: cfg, client: client}
	if cfg.RequestsPerMinute > 0 {
		r.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), cfg.RequestsPerMinute)
	}
	return r
}

// Configured reports whether an API key is set.
func (r *Remote) Configured() bool { return r.cfg.APIKey != "" }

type parsedResult struct {
	ParsedText   string `json:"ParsedText"`
	ErrorMessage string `json:"ErrorMessage"`
}

type parseResponse struct {
	ParsedResults         []parsedResult  `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
	ErrorDetails          string          `json:"ErrorDetails"`
}

// errorText flattens ErrorMessage, which the service sends either as a string
// or as a list of strings.
func (p parseResponse) errorText() string {
	if len(p.ErrorMessage) == 0 {
		return p.ErrorDetails
	}
	var list []string
	if err := json.Unmarshal(p.ErrorMessage, &list); err == nil {
		return strings.Join(list, "; ")
	}
	var s string
	if err := json.Unmarshal(p.ErrorMessage, &s); err == nil {
		return s
	}
	return string(p.ErrorMessage)
}

// Recognize uploads a JPEG thumbnail of img and returns the parsed text.
// A 200 response flagged IsErroredOnProcessing is still a failure, and so is
// an empty result.
func (r *Remote) Recognize(ctx context.Context, img image.Image) (string, error) {
	if !r.Configured() {
		return "", ErrRemoteUnconfigured
	}
	if r.limiter != nil && !r.limiter.Allow() {
		return "", ErrRemoteRateLimited
	}

	jpegData, err := imageproc.EncodeJPEG(imageproc.Thumbnail(img, r.cfg.MaxSide), r.cfg.JPEGQuality)
	if err != nil {
		return "", err
	}

	body, contentType, err := r.multipartBody(jpegData)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteFailed, err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, r.cfg.Endpoint, body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteFailed, err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRemoteFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w: HTTP %d", ErrRemoteFailed, resp.StatusCode)
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrRemoteFailed, err)
	}
	if parsed.IsErroredOnProcessing {
		return "", fmt.Errorf("%w: %s", ErrRemoteFailed, parsed.errorText())
	}
	if len(parsed.ParsedResults) == 0 {
		return "", ErrEmptyText
	}
	text := parsed.ParsedResults[0].ParsedText
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

func (r *Remote) multipartBody(jpegData []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="license.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(jpegData); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"apikey", r.cfg.APIKey},
		{"language", r.cfg.Language},
		{"scale", "true"},
		{"OCREngine", strconv.Itoa(r.cfg.EngineVersion)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
