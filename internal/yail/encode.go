package yail

import (
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/yail-server/internal/imaging"
)

var (
	// ErrInvalidDimensions is returned for empty or inconsistent pixel buffers.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	// ErrUnsupportedMode is returned for a mode id outside 8, 9 and 16.
	ErrUnsupportedMode = errors.New("unsupported graphics mode")
)

const (
	// PaletteEntries is the number of slots in a stored VBXE palette.
	PaletteEntries = 256
	// PaletteSize is the byte length of a palette block.
	PaletteSize = PaletteEntries * 3
	// MaxSourceColors is the number of adaptive colors a VBXE image may use;
	// stored slot 0 is reserved for black.
	MaxSourceColors = PaletteEntries - 1
)

// Encode converts pix into the native display format of mode and frames it.
//
// The image is scaled to the mode's screen with its aspect ratio preserved
// and black padding. Mode8 and Mode9 are dithered from luminance; VBXE gets an
// adaptive palette block ahead of the image block. Encode has no side effects
// and never returns a partial packet.
func Encode(pix *imaging.PixelBuffer, mode Mode) (*Packet, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMode, uint8(mode))
	}
	if !pix.Valid() {
		if pix == nil {
			return nil, fmt.Errorf("%w: no pixels", ErrInvalidDimensions)
		}
		return nil, fmt.Errorf("%w: %dx%d with %d bytes", ErrInvalidDimensions, pix.Width, pix.Height, len(pix.Pix))
	}

	fitted := imaging.Fit(pix, mode.Width(), mode.Height())

	p := &Packet{Version: Version, Mode: mode}
	switch mode {
	case Mode8:
		dithered := imaging.Dither(imaging.Luminance(fitted), imaging.MonoPalette)
		p.Blocks = []Block{{Type: BlockImage, Data: packMono(dithered)}}
	case Mode9:
		dithered := imaging.Dither(imaging.Luminance(fitted), imaging.GrayPalette16)
		p.Blocks = []Block{{Type: BlockImage, Data: packNibbles(dithered)}}
	case ModeVBXE:
		quantized := imaging.Quantize(fitted, MaxSourceColors)
		p.Blocks = []Block{
			{Type: BlockPalette, Data: OffsetPalette(imaging.PaletteRGB(quantized.Palette))},
			{Type: BlockImage, Data: OffsetIndices(indices(quantized))},
		}
	}
	return p, nil
}

// packMono packs a two-level image eight pixels per byte, most significant
// bit first. A set bit is white.
func packMono(img *image.Paletted) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rowBytes := (w + 7) / 8
	out := make([]byte, rowBytes*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out[y*rowBytes:]
		for x, idx := range row {
			if idx != 0 {
				dst[x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return out
}

// packNibbles packs a sixteen-level image two pixels per byte. The even
// column goes in the high nibble.
func packNibbles(img *image.Paletted) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	rowBytes := (w + 1) / 2
	out := make([]byte, rowBytes*h)
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		dst := out[y*rowBytes:]
		for x, idx := range row {
			if x%2 == 0 {
				dst[x/2] |= (idx & 0x0f) << 4
			} else {
				dst[x/2] |= idx & 0x0f
			}
		}
	}
	return out
}

func indices(img *image.Paletted) []byte {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if img.Stride == w {
		return img.Pix[:w*h]
	}
	out := make([]byte, 0, w*h)
	for y := 0; y < h; y++ {
		out = append(out, img.Pix[y*img.Stride:y*img.Stride+w]...)
	}
	return out
}

// OffsetPalette builds a stored VBXE palette from up to MaxSourceColors RGB
// triples: slot 0 is black, slot i holds source color i-1 and unused slots
// are black. The result is always PaletteSize bytes.
func OffsetPalette(src []byte) []byte {
	out := make([]byte, PaletteSize)
	if limit := PaletteSize - 3; len(src) > limit {
		src = src[:limit]
	}
	copy(out[3:], src)
	return out
}

// OffsetIndices maps source palette indices to stored indices, (i+1) mod 256.
func OffsetIndices(src []byte) []byte {
	out := make([]byte, len(src))
	for i, v := range src {
		out[i] = v + 1
	}
	return out
}

// DecodeVBXE reverses the stored palette convention, returning the source
// palette (MaxSourceColors RGB triples) and source indices.
func DecodeVBXE(palette, img []byte) ([]byte, []byte, error) {
	if len(palette) != PaletteSize {
		return nil, nil, fmt.Errorf("%w: palette block is %d bytes, want %d", ErrMalformedPacket, len(palette), PaletteSize)
	}
	if palette[0] != 0 || palette[1] != 0 || palette[2] != 0 {
		return nil, nil, fmt.Errorf("%w: palette slot 0 is not black", ErrMalformedPacket)
	}

	src := make([]byte, len(img))
	for i, v := range img {
		if v == 0 {
			return nil, nil, fmt.Errorf("%w: pixel %d uses reserved palette slot 0", ErrMalformedPacket, i)
		}
		src[i] = v - 1
	}
	return append([]byte(nil), palette[3:]...), src, nil
}

// Render expands a packet back to RGB at the mode's resolution.
func Render(p *Packet) (*imaging.PixelBuffer, error) {
	if !p.Mode.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMode, uint8(p.Mode))
	}
	data, ok := p.Block(BlockImage)
	if !ok {
		return nil, fmt.Errorf("%w: no image block", ErrMalformedPacket)
	}
	if len(data) != p.Mode.ImageSize() {
		return nil, fmt.Errorf("%w: image block is %d bytes, want %d", ErrMalformedPacket, len(data), p.Mode.ImageSize())
	}

	w, h := p.Mode.Width(), p.Mode.Height()
	rgb := make([]byte, w*h*3)
	set := func(i int, r, g, b byte) {
		rgb[i*3], rgb[i*3+1], rgb[i*3+2] = r, g, b
	}

	switch p.Mode {
	case Mode8:
		for i := 0; i < w*h; i++ {
			if data[i/8]&(0x80>>(i%8)) != 0 {
				set(i, 0xff, 0xff, 0xff)
			}
		}
	case Mode9:
		for i := 0; i < w*h; i++ {
			v := data[i/2] >> 4
			if i%2 == 1 {
				v = data[i/2] & 0x0f
			}
			set(i, v*17, v*17, v*17)
		}
	case ModeVBXE:
		palette, ok := p.Block(BlockPalette)
		if !ok || len(palette) != PaletteSize {
			return nil, fmt.Errorf("%w: missing palette block", ErrMalformedPacket)
		}
		for i, idx := range data {
			o := int(idx) * 3
			set(i, palette[o], palette[o+1], palette[o+2])
		}
	}
	return imaging.NewPixelBuffer(w, h, rgb)
}
