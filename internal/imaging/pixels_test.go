package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestNewPixelBuffer(t *testing.T) {
	tests := []struct {
		name    string
		w, h    int
		pixLen  int
		wantErr bool
	}{
		{"valid", 4, 3, 36, false},
		{"zero size", 0, 0, 0, false},
		{"short data", 4, 3, 35, true},
		{"long data", 4, 3, 37, true},
		{"negative width", -1, 3, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPixelBuffer(tt.w, tt.h, make([]byte, tt.pixLen))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewPixelBuffer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewPixelBuffer_Copies(t *testing.T) {
	src := []byte{1, 2, 3}
	pix, err := NewPixelBuffer(1, 1, src)
	if err != nil {
		t.Fatalf("NewPixelBuffer failed: %v", err)
	}
	src[0] = 99
	if pix.Pix[0] != 1 {
		t.Error("PixelBuffer shares memory with caller slice")
	}
}

func TestPixelBuffer_Image(t *testing.T) {
	pix := Solid(3, 2, color.RGBA{10, 20, 30, 255})

	if got := pix.Bounds(); got != image.Rect(0, 0, 3, 2) {
		t.Errorf("Bounds() = %v", got)
	}
	if got := pix.At(2, 1); got != (color.RGBA{10, 20, 30, 255}) {
		t.Errorf("At(2,1) = %v", got)
	}
	if got := pix.At(3, 0); got != (color.RGBA{}) {
		t.Errorf("At outside bounds = %v, want zero", got)
	}
	if !pix.Valid() {
		t.Error("Valid() = false for solid buffer")
	}
	if (&PixelBuffer{}).Valid() {
		t.Error("Valid() = true for empty buffer")
	}
}

func TestFromImage_CompositesOverBlack(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{200, 100, 50, 255})
	img.SetNRGBA(1, 0, color.NRGBA{200, 100, 50, 0})

	pix := FromImage(img)
	want := []byte{200, 100, 50, 0, 0, 0}
	for i := range want {
		if pix.Pix[i] != want[i] {
			t.Fatalf("Pix = %v, want %v", pix.Pix, want)
		}
	}
}

func TestFromImage_OffsetBounds(t *testing.T) {
	img := createPatternImage(4, 4).SubImage(image.Rect(2, 2, 4, 4))

	pix := FromImage(img)
	if pix.Width != 2 || pix.Height != 2 {
		t.Fatalf("got %dx%d, want 2x2", pix.Width, pix.Height)
	}
	for i := 0; i < len(pix.Pix); i++ {
		if pix.Pix[i] != 255 {
			t.Fatalf("expected white sub-image, got %v", pix.Pix)
		}
	}
}
