package imageproc

import (
	"image"
	"image/color"
	"image/draw"
	"slices"

	"github.com/disintegration/imaging"
)

// ToGray converts img to an 8-bit grayscale image anchored at the origin
// with tightly packed rows, so Pix can be indexed as y*width+x.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok && g.Rect.Min == (image.Point{}) && g.Stride == g.Rect.Dx() {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	return gray
}

// OtsuLevel returns the global threshold that maximizes between-class
// variance of the histogram of g.
func OtsuLevel(g *image.Gray) uint8 {
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}
	total := len(g.Pix)
	if total == 0 {
		return 127
	}

	sum := 0.0
	for i, n := range hist {
		sum += float64(i * n)
	}

	var (
		sumB, best float64
		wB         int
		level      int
	)
	for t := range 256 {
		wB += hist[t]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(t * hist[t])
		mB := sumB / float64(wB)
		mF := (sum - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			level = t
		}
	}
	return uint8(level)
}

// Otsu binarizes img with a global Otsu threshold.
func Otsu(img image.Image) *image.Gray {
	g := ToGray(img)
	level := OtsuLevel(g)
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		if v > level {
			out.Pix[i] = 255
		}
	}
	return out
}

// Equalize spreads the grayscale histogram of img across the full range.
func Equalize(img image.Image) *image.Gray {
	g := ToGray(img)
	var hist [256]int
	for _, v := range g.Pix {
		hist[v]++
	}

	var cdf [256]int
	run := 0
	for i, n := range hist {
		run += n
		cdf[i] = run
	}
	cdfMin := 0
	for _, c := range cdf {
		if c > 0 {
			cdfMin = c
			break
		}
	}

	out := image.NewGray(g.Rect)
	total := len(g.Pix)
	if total == cdfMin {
		copy(out.Pix, g.Pix)
		return out
	}
	var lut [256]uint8
	for i := range lut {
		lut[i] = uint8(float64(cdf[i]-cdfMin) / float64(total-cdfMin) * 255)
	}
	for i, v := range g.Pix {
		out.Pix[i] = lut[v]
	}
	return out
}

// Median3 applies a 3x3 median filter. Border pixels are copied unchanged.
func Median3(img image.Image) *image.Gray {
	g := ToGray(img)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	out := image.NewGray(g.Rect)
	copy(out.Pix, g.Pix)
	window := make([]uint8, 0, 9)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			window = window[:0]
			for dy := -1; dy <= 1; dy++ {
				row := (y + dy) * g.Stride
				window = append(window, g.Pix[row+x-1], g.Pix[row+x], g.Pix[row+x+1])
			}
			slices.Sort(window)
			out.Pix[y*out.Stride+x] = window[4]
		}
	}
	return out
}

// AdaptiveThreshold binarizes img against a Gaussian-weighted local mean over
// a block x block neighbourhood minus c. Pixels brighter than the local
// threshold become white.
func AdaptiveThreshold(img image.Image, block int, c float64) *image.Gray {
	g := ToGray(img)
	if block < 3 {
		block = 3
	}
	sigma := 0.3*(float64(block-1)*0.5-1) + 0.8
	mean := imaging.Blur(g, sigma)

	out := image.NewGray(g.Rect)
	w, h := g.Rect.Dx(), g.Rect.Dy()
	for y := range h {
		for x := range w {
			m := float64(mean.Pix[y*mean.Stride+x*4])
			if float64(g.Pix[y*g.Stride+x]) > m-c {
				out.Pix[y*out.Stride+x] = 255
			}
		}
	}
	return out
}

// ApplyGain maps every channel v to alpha*v + beta, clamped to [0,255].
func ApplyGain(img image.Image, alpha, beta float64) *image.NRGBA {
	scale := func(v uint8) uint8 {
		return uint8(min(255, max(0, alpha*float64(v)+beta)))
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: scale(c.R), G: scale(c.G), B: scale(c.B), A: c.A}
	})
}
