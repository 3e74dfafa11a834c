package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gen2brain/heic"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Source is a decoded document image together with the bytes that identify
// it. Data is the original upload for JPEG and PNG and a JPEG re-encoding for
// everything else, so the same upload always yields the same bytes.
type Source struct {
	Data   []byte
	Image  image.Image
	Format string
}

// SupportedExtensions lists the file types Open accepts.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".webp", ".heic", ".heif", ".pdf"}

// IsSupported reports whether the path has a supported extension.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// Open reads and decodes a document image from disk.
func Open(path string) (*Source, error) {
	if path == "" {
		return nil, &ProcessingError{Operation: "load", Err: errors.New("empty path")}
	}
	if !IsSupported(path) {
		return nil, &ProcessingError{Operation: "load", Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user-provided document path is expected
	if err != nil {
		return nil, &ProcessingError{Operation: "load", Err: err}
	}
	return Decode(data)
}

// Decode sniffs data and decodes it as PDF, HEIC or any registered image
// format.
func Decode(data []byte) (*Source, error) {
	if len(data) == 0 {
		return nil, &ProcessingError{Operation: "decode", Err: errors.New("empty input")}
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		img, err := firstPDFImage(data)
		if err != nil {
			return nil, &ProcessingError{Operation: "decode", Err: err}
		}
		return reencoded(img, "pdf")
	case isHEIC(data):
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, &ProcessingError{Operation: "decode", Err: fmt.Errorf("decoding HEIC: %w", err)}
		}
		return reencoded(img, "heic")
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &ProcessingError{Operation: "decode", Err: err}
	}
	if format == "jpeg" || format == "png" {
		return &Source{Data: data, Image: img, Format: format}, nil
	}
	return reencoded(img, format)
}

func reencoded(img image.Image, format string) (*Source, error) {
	data, err := EncodeJPEG(img, 95)
	if err != nil {
		return nil, err
	}
	return &Source{Data: data, Image: img, Format: format}, nil
}

// isHEIC checks the ISO-BMFF ftyp box for a HEIC/HEIF brand.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

// firstPDFImage extracts the embedded images of the first page of a scanned
// PDF and returns the first one.
func firstPDFImage(data []byte) (image.Image, error) {
	tempDir, err := os.MkdirTemp("", "motorpass-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	inFile := filepath.Join(tempDir, "in.pdf")
	if err := os.WriteFile(inFile, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to stage PDF: %w", err)
	}
	outDir := filepath.Join(tempDir, "images")
	if err := os.Mkdir(outDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := api.ExtractImagesFile(inFile, outDir, []string{"1"}, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		f, err := os.Open(filepath.Join(outDir, name)) //nolint:gosec // G304: path inside our temp dir
		if err != nil {
			continue
		}
		img, _, decErr := image.Decode(f)
		_ = f.Close()
		if decErr == nil {
			return img, nil
		}
	}
	return nil, errors.New("no decodable image on first page")
}
