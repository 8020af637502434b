package imaging

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/ericpauley/go-quantize/quantize"
	"github.com/lucasb-eyer/go-colorful"
)

// Quantize reduces src to an adaptive palette of at most maxColors entries
// and maps every pixel to its nearest palette entry.
//
// The palette is chosen with median-cut and then ordered from darkest to
// lightest by CIE L*, with ties broken on the RGB value, so identical input
// always produces identical indices. Pixels are mapped without dithering.
func Quantize(src image.Image, maxColors int) *image.Paletted {
	if maxColors < 1 {
		maxColors = 1
	}

	q := quantize.MedianCutQuantizer{}
	palette := q.Quantize(make(color.Palette, 0, maxColors), src)
	if len(palette) == 0 {
		palette = append(palette, color.RGBA{A: 0xff})
	}
	palette = SortByLightness(opaque(palette))

	dst := image.NewPaletted(src.Bounds(), palette)
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Src)
	return dst
}

// SortByLightness orders colors from darkest to lightest in CIE L*.
// The slice is sorted in place and returned.
func SortByLightness(p color.Palette) color.Palette {
	type entry struct {
		c color.RGBA
		l float64
	}
	entries := make([]entry, len(p))
	for i, c := range p {
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		cf, _ := colorful.MakeColor(rgba)
		l, _, _ := cf.Lab()
		entries[i] = entry{c: rgba, l: l}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.l != b.l {
			return a.l < b.l
		}
		if a.c.R != b.c.R {
			return a.c.R < b.c.R
		}
		if a.c.G != b.c.G {
			return a.c.G < b.c.G
		}
		return a.c.B < b.c.B
	})

	for i, e := range entries {
		p[i] = e.c
	}
	return p
}

// PaletteRGB flattens a palette into consecutive RGB triples.
func PaletteRGB(p color.Palette) []byte {
	out := make([]byte, 0, len(p)*3)
	for _, c := range p {
		r, g, b, _ := c.RGBA()
		out = append(out, uint8(r>>8), uint8(g>>8), uint8(b>>8))
	}
	return out
}

func opaque(p color.Palette) color.Palette {
	for i, c := range p {
		rgba := color.RGBAModel.Convert(c).(color.RGBA)
		rgba.A = 0xff
		p[i] = rgba
	}
	return p
}
