package imaging

import (
	"image/color"
	"testing"
)

func TestQuantize_PatternImage(t *testing.T) {
	img := Quantize(createPatternImage(32, 32), 255)

	if len(img.Palette) == 0 || len(img.Palette) > 255 {
		t.Fatalf("palette size = %d", len(img.Palette))
	}
	if img.Bounds().Dx() != 32 || img.Bounds().Dy() != 32 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	for _, idx := range img.Pix {
		if int(idx) >= len(img.Palette) {
			t.Fatalf("index %d beyond palette of %d", idx, len(img.Palette))
		}
	}

	// Lightest entry comes last; the white quadrant maps to it
	white := img.ColorIndexAt(31, 31)
	if int(white) != len(img.Palette)-1 {
		t.Errorf("white pixel index = %d, want %d", white, len(img.Palette)-1)
	}
}

func TestQuantize_Deterministic(t *testing.T) {
	src := createPatternImage(40, 30)
	a := Quantize(src, 255)
	b := Quantize(src, 255)

	if string(PaletteRGB(a.Palette)) != string(PaletteRGB(b.Palette)) {
		t.Fatal("palettes differ between runs")
	}
	if string(a.Pix) != string(b.Pix) {
		t.Fatal("indices differ between runs")
	}
}

func TestSortByLightness(t *testing.T) {
	p := SortByLightness([]color.Color{
		color.RGBA{255, 255, 255, 255},
		color.RGBA{0, 0, 0, 255},
		color.RGBA{128, 128, 128, 255},
	})
	want := []byte{0, 0, 0, 128, 128, 128, 255, 255, 255}
	if got := PaletteRGB(p); string(got) != string(want) {
		t.Errorf("sorted = %v, want %v", got, want)
	}
}

func TestPaletteRGB(t *testing.T) {
	got := PaletteRGB([]color.Color{color.RGBA{1, 2, 3, 255}, color.Gray{Y: 9}})
	want := []byte{1, 2, 3, 9, 9, 9}
	if string(got) != string(want) {
		t.Errorf("PaletteRGB() = %v, want %v", got, want)
	}
}
