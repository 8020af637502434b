package imaging

import (
	"fmt"
	"image"
	"image/color"
)

// PixelBuffer is an immutable, row-major RGB raster.
//
// Pix holds Width*Height RGB triples, three bytes per pixel with no padding
// between rows. A PixelBuffer is never modified after construction, so it may
// be shared freely between goroutines.
//
// PixelBuffer implements image.Image, which lets the resize and quantization
// code consume it without a copy.
type PixelBuffer struct {
	Width  int
	Height int
	Pix    []byte
}

// NewPixelBuffer validates pix and returns a PixelBuffer holding a private
// copy of it.
//
// Zero-sized buffers are accepted here so callers can carry them to the
// encoder, which reports them as invalid dimensions.
func NewPixelBuffer(width, height int, pix []byte) (*PixelBuffer, error) {
	if width < 0 || height < 0 {
		return nil, fmt.Errorf("negative dimensions %dx%d", width, height)
	}
	if len(pix) != width*height*3 {
		return nil, fmt.Errorf("pixel data is %d bytes, want %d for %dx%d RGB", len(pix), width*height*3, width, height)
	}
	cp := make([]byte, len(pix))
	copy(cp, pix)
	return &PixelBuffer{Width: width, Height: height, Pix: cp}, nil
}

// Solid returns a width×height buffer filled with one color.
func Solid(width, height int, c color.RGBA) *PixelBuffer {
	pix := make([]byte, width*height*3)
	for i := 0; i < len(pix); i += 3 {
		pix[i], pix[i+1], pix[i+2] = c.R, c.G, c.B
	}
	return &PixelBuffer{Width: width, Height: height, Pix: pix}
}

// FromImage captures img as a PixelBuffer. Translucent pixels are composited
// over black, which matches the padding color used when fitting to a screen.
func FromImage(img image.Image) *PixelBuffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)

	if n, ok := img.(*image.NRGBA); ok {
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := n.Pix[n.PixOffset(b.Min.X, y):]
			for x := 0; x < w; x++ {
				r, g, bl, a := uint32(row[x*4]), uint32(row[x*4+1]), uint32(row[x*4+2]), uint32(row[x*4+3])
				if a != 0xff {
					r, g, bl = r*a/0xff, g*a/0xff, bl*a/0xff
				}
				pix[i], pix[i+1], pix[i+2] = uint8(r), uint8(g), uint8(bl)
				i += 3
			}
		}
		return &PixelBuffer{Width: w, Height: h, Pix: pix}
	}

	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			// RGBA() is alpha-premultiplied, i.e. already composited over black
			r, g, bl, _ := img.At(x, y).RGBA()
			pix[i], pix[i+1], pix[i+2] = uint8(r>>8), uint8(g>>8), uint8(bl>>8)
			i += 3
		}
	}
	return &PixelBuffer{Width: w, Height: h, Pix: pix}
}

// ColorModel implements image.Image.
func (p *PixelBuffer) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements image.Image. The origin is always (0, 0).
func (p *PixelBuffer) Bounds() image.Rectangle {
	return image.Rect(0, 0, p.Width, p.Height)
}

// At implements image.Image. Points outside the buffer are transparent black.
func (p *PixelBuffer) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return color.RGBA{}
	}
	i := (y*p.Width + x) * 3
	return color.RGBA{R: p.Pix[i], G: p.Pix[i+1], B: p.Pix[i+2], A: 0xff}
}

// Valid reports whether the buffer has positive dimensions and a pixel slice
// of the matching length.
func (p *PixelBuffer) Valid() bool {
	return p != nil && p.Width > 0 && p.Height > 0 && len(p.Pix) == p.Width*p.Height*3
}
