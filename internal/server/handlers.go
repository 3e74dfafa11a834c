package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/motorpass/internal/cache"
	"github.com/MeKo-Tech/motorpass/internal/fields"
	"github.com/MeKo-Tech/motorpass/internal/match"
	"github.com/MeKo-Tech/motorpass/internal/report"
	"github.com/MeKo-Tech/motorpass/internal/verify"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version,omitempty"`
	Time    string       `json:"time"`
	Cache   *cache.Stats `json:"cache,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// verifyForm mirrors the multipart fields of POST /v1/verify.
type verifyForm struct {
	Name                 string  `json:"name" validate:"required,max=200"`
	Profile              string  `json:"profile" validate:"omitempty,oneof=student staff vip guest"`
	ExpectedDocumentType string  `json:"expected_document_type" validate:"max=100"`
	HelmetOK             bool    `json:"helmet_ok"`
	CredentialConfidence float64 `json:"credential_confidence" validate:"gte=0,lte=100"`
	ExpirationOK         *bool   `json:"expiration_ok"`
}

// ParseRequest is the body of POST /v1/parse.
type ParseRequest struct {
	Text string `json:"text" validate:"required"`
}

// MatchRequest is the body of POST /v1/match. Lines is used when Candidate
// is empty.
type MatchRequest struct {
	Reference string   `json:"reference" validate:"required,max=200"`
	Candidate string   `json:"candidate" validate:"required_without=Lines"`
	Lines     []string `json:"lines" validate:"required_without=Candidate,max=200"`
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: s.cfg.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if s.cache != nil {
		if st, err := s.cache.Stats(); err == nil {
			resp.Cache = &st
		}
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// verifyHandler accepts a multipart upload: the license image in "image" plus
// the rider fields.
func (s *Server) verifyHandler(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.MaxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "file_too_large", "upload exceeds the size limit")
			return
		}
		s.writeError(w, http.StatusBadRequest, "invalid_form", "failed to parse form data")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing_image", "no image file provided")
		return
	}
	defer func() { _ = file.Close() }()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_image", "failed to read image data")
		return
	}
	uploadSizeBytes.Observe(float64(header.Size))

	form, err := parseVerifyForm(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := validateStruct(form); err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}
	profile, err := verify.ParseProfile(form.Profile)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	out := s.verifier.Verify(r.Context(), verify.Request{
		Image: buf.Bytes(),
		Identity: verify.Identity{
			Name:                 form.Name,
			ExpectedDocumentType: form.ExpectedDocumentType,
		},
		Profile:              profile,
		HelmetOK:             form.HelmetOK,
		CredentialConfidence: form.CredentialConfidence,
		ExpirationOK:         form.ExpirationOK,
	})
	s.writeResult(w, r, out)
}

func parseVerifyForm(r *http.Request) (verifyForm, error) {
	f := verifyForm{
		Name:                 strings.TrimSpace(r.FormValue("name")),
		Profile:              strings.ToLower(strings.TrimSpace(r.FormValue("profile"))),
		ExpectedDocumentType: strings.TrimSpace(r.FormValue("expected_document_type")),
	}
	var err error
	if v := r.FormValue("helmet_ok"); v != "" {
		if f.HelmetOK, err = strconv.ParseBool(v); err != nil {
			return f, errors.New("helmet_ok must be a boolean")
		}
	}
	if v := r.FormValue("credential_confidence"); v != "" {
		if f.CredentialConfidence, err = strconv.ParseFloat(v, 64); err != nil {
			return f, errors.New("credential_confidence must be a number")
		}
	}
	if v := r.FormValue("expiration_ok"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, errors.New("expiration_ok must be a boolean")
		}
		f.ExpirationOK = &b
	}
	return f, nil
}

func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[ParseRequest](r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	s.writeResult(w, r, fields.Parse(req.Text))
}

func (s *Server) matchHandler(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[MatchRequest](r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	var res match.Result
	if req.Candidate != "" {
		res = match.Match(req.Candidate, req.Reference)
	} else {
		res = match.MatchLines(req.Reference, req.Lines)
	}
	s.writeResult(w, r, res)
}

// writeResult renders v in the format asked for by ?format=, JSON by default.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, v any) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = report.FormatJSON
	}
	if !slices.Contains(report.Formats, format) {
		s.writeError(w, http.StatusBadRequest, "invalid_format", "format must be one of: "+strings.Join(report.Formats, ", "))
		return
	}
	w.Header().Set("Content-Type", report.ContentType(format))
	if err := report.Write(w, format, v); err != nil {
		s.logger.Error("failed to write response", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: code, Message: message})
}
