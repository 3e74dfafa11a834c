package imageproc

import (
	"bytes"
	"errors"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// Bounds for local recognition input. Images larger than the optimal box are
// scaled down to fit it; images smaller than the minimum are scaled up.
const (
	OptimalWidth  = 1280
	OptimalHeight = 960
	MinWidth      = 640
	MinHeight     = 480

	// ThumbnailMaxSide bounds the longer side of images sent to the remote service.
	ThumbnailMaxSide = 1500
)

// ResizeOptimal brings img inside the local recognition bounds while keeping
// its aspect ratio. Images already inside the bounds are returned unchanged.
func ResizeOptimal(img image.Image) (image.Image, error) {
	if img == nil {
		return nil, &ProcessingError{Operation: "resize", Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return nil, &ProcessingError{Operation: "resize", Err: errors.New("empty image")}
	}

	var scale float64
	switch {
	case w > OptimalWidth || h > OptimalHeight:
		scale = math.Min(float64(OptimalWidth)/float64(w), float64(OptimalHeight)/float64(h))
	case w < MinWidth || h < MinHeight:
		scale = math.Max(float64(MinWidth)/float64(w), float64(MinHeight)/float64(h))
	default:
		return img, nil
	}

	nw := max(1, int(math.Round(float64(w)*scale)))
	nh := max(1, int(math.Round(float64(h)*scale)))
	filter := imaging.Lanczos
	if scale > 1 {
		filter = imaging.CatmullRom
	}
	return imaging.Resize(img, nw, nh, filter), nil
}

// Thumbnail downsizes img so that neither side exceeds maxSide. Smaller images
// are not enlarged.
func Thumbnail(img image.Image, maxSide int) image.Image {
	if maxSide <= 0 {
		maxSide = ThumbnailMaxSide
	}
	return imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
}

// EncodeJPEG encodes img as JPEG at the given quality (1-100).
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if img == nil {
		return nil, &ProcessingError{Operation: "encode", Err: errors.New("input image is nil")}
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, &ProcessingError{Operation: "encode", Err: err}
	}
	return buf.Bytes(), nil
}
