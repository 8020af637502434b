package imaging

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Fit scales src to fit inside a width×height screen and centers it on a
// black background.
//
// The aspect ratio is always preserved: the image is scaled (up or down) until
// it touches two opposite edges of the screen and the remaining area is
// padded. Nothing is cropped and nothing is stretched, so the result always has
// exactly the requested dimensions.
//
// Resampling uses the Lanczos filter. The output is deterministic for
// identical input.
func Fit(src image.Image, width, height int) *image.NRGBA {
	canvas := imaging.New(width, height, color.Black)

	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 || width <= 0 || height <= 0 {
		return canvas
	}

	nw, nh := FitSize(b.Dx(), b.Dy(), width, height)
	scaled := src
	if nw != b.Dx() || nh != b.Dy() {
		scaled = imaging.Resize(src, nw, nh, imaging.Lanczos)
	}

	return imaging.PasteCenter(canvas, scaled)
}

// FitSize returns the largest size with the aspect ratio of srcW×srcH that
// fits inside dstW×dstH. Neither returned dimension is ever below 1.
func FitSize(srcW, srcH, dstW, dstH int) (int, int) {
	// Compare srcW/srcH with dstW/dstH without floating point
	if srcW*dstH >= srcH*dstW {
		// Wider than the screen (or equal): fit to width
		h := (srcH*dstW + srcW/2) / srcW
		if h < 1 {
			h = 1
		}
		return dstW, h
	}

	// Taller than the screen: fit to height
	w := (srcW*dstH + srcH/2) / srcH
	if w < 1 {
		w = 1
	}
	return w, dstH
}
