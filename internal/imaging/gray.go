package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/anthonynsimon/bild/effect"
)

// MonoPalette is the two-level palette used for high-resolution monochrome.
// Index 0 is black and index 1 is white.
var MonoPalette = color.Palette{color.Gray{Y: 0x00}, color.Gray{Y: 0xff}}

// GrayPalette16 holds sixteen evenly spaced gray levels. Index i is the gray
// value i*17, so index 0 is black and index 15 is white.
var GrayPalette16 = grayPalette(16)

func grayPalette(levels int) color.Palette {
	p := make(color.Palette, levels)
	step := 0xff / (levels - 1)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i * step)}
	}
	return p
}

// BT.601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// Luminance converts src to 8-bit grayscale using BT.601 luma weights.
func Luminance(src image.Image) *image.Gray {
	rgba := effect.GrayscaleWithWeights(src, lumaR, lumaG, lumaB)
	g := image.NewGray(rgba.Bounds())
	draw.Draw(g, g.Bounds(), rgba, rgba.Bounds().Min, draw.Src)
	return g
}

// Dither reduces a grayscale image to the levels of palette with
// Floyd-Steinberg error diffusion. The result has the same bounds as src and
// is deterministic for identical input.
func Dither(src *image.Gray, palette color.Palette) *image.Paletted {
	dst := image.NewPaletted(src.Bounds(), palette)
	draw.FloydSteinberg.Draw(dst, dst.Bounds(), src, src.Bounds().Min)
	return dst
}
