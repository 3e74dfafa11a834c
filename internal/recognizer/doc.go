// Package recognizer turns document images into raw text.
//
// Two recognizers live here: Remote, a client for the OCR.space HTTP API, and
// Local, which runs an ordered list of preprocessing/segmentation attempts
// through an Engine and keeps the most license-like output.
//
// The default build links no local engine, so it needs neither CGO nor
// libtesseract; Local then fails with ErrNoEngine and callers fall through
// to their own failure handling. Enable the gosseract-backed engine with the
// build tag `tesseract`.
//
// Example:
//
//	go build -tags=tesseract ./...
package recognizer
