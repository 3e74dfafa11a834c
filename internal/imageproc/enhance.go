package imageproc

import (
	"image"

	"github.com/disintegration/imaging"
)

// CropCenter cuts the centered region covering the given fractions of the
// frame width and height. It returns nil when the region would be empty.
func CropCenter(img image.Image, fracW, fracH float64) image.Image {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	w := int(float64(b.Dx()) * fracW)
	h := int(float64(b.Dy()) * fracH)
	if w <= 0 || h <= 0 {
		return nil
	}
	return imaging.CropCenter(img, w, h)
}

// Enhancement is a gain/offset pair applied to a region before scanning.
type Enhancement struct {
	Gain     float64
	Offset   float64
	Equalize bool
}

// EnhancementFor picks the preview enhancement for the previous keyword count.
// Fewer keywords means a harder push on brightness and contrast.
func EnhancementFor(prevKeywords int) Enhancement {
	switch {
	case prevKeywords <= 0:
		return Enhancement{Gain: 2.0, Offset: 50, Equalize: true}
	case prevKeywords == 1:
		return Enhancement{Gain: 1.6, Offset: 35, Equalize: true}
	case prevKeywords == 2:
		return Enhancement{Gain: 1.3, Offset: 25}
	default:
		return Enhancement{Gain: 1.1, Offset: 15}
	}
}

// Apply runs the enhancement on img.
func (e Enhancement) Apply(img image.Image) image.Image {
	out := image.Image(ApplyGain(img, e.Gain, e.Offset))
	if e.Equalize {
		out = Equalize(out)
	}
	return out
}

// CaptureEnhancement returns the enhancement used on the full captured frame
// given the gain the preview last settled on.
func CaptureEnhancement(level float64) Enhancement {
	if level > 1.2 {
		return Enhancement{Gain: level, Offset: 30}
	}
	return Enhancement{Gain: 1.2, Offset: 20}
}

// PreprocessFast is a plain Otsu binarization for quick passes.
func PreprocessFast(img image.Image) image.Image {
	return Otsu(img)
}

// PreprocessStandard equalizes, removes speckle noise and applies an adaptive
// threshold.
func PreprocessStandard(img image.Image) image.Image {
	return AdaptiveThreshold(Median3(Equalize(img)), 11, 2)
}

// PreprocessDetailed boosts local contrast and sharpens before an adaptive
// threshold. Slowest of the three; used when the others found too little.
func PreprocessDetailed(img image.Image) image.Image {
	g := imaging.AdjustContrast(ToGray(img), 40)
	g = imaging.Sharpen(g, 1.0)
	return AdaptiveThreshold(g, 11, 2)
}
