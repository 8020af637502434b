package imaging

import (
	"image"
	"image/color"
	"testing"
)

func TestGrayPalette16(t *testing.T) {
	if len(GrayPalette16) != 16 {
		t.Fatalf("len = %d, want 16", len(GrayPalette16))
	}
	for i, c := range GrayPalette16 {
		if g := c.(color.Gray).Y; int(g) != i*17 {
			t.Errorf("level %d = %d, want %d", i, g, i*17)
		}
	}
}

func TestLuminance(t *testing.T) {
	tests := []struct {
		name string
		c    color.Color
		min  uint8
		max  uint8
	}{
		{"black", color.Black, 0, 0},
		{"white", color.White, 254, 255},
		{"green brighter than blue", color.RGBA{0, 255, 0, 255}, 120, 200},
		{"blue dark", color.RGBA{0, 0, 255, 255}, 0, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Luminance(createInMemoryImage(2, 2, tt.c))
			y := g.GrayAt(1, 1).Y
			if y < tt.min || y > tt.max {
				t.Errorf("luminance = %d, want within [%d, %d]", y, tt.min, tt.max)
			}
		})
	}
}

func TestLuminance_Weights(t *testing.T) {
	tests := []struct {
		name string
		c    color.Color
		want uint8
	}{
		{"red", color.RGBA{255, 0, 0, 255}, 76},
		{"green", color.RGBA{0, 255, 0, 255}, 150},
		{"blue", color.RGBA{0, 0, 255, 255}, 29},
		{"mid gray", color.RGBA{128, 128, 128, 255}, 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := Luminance(createInMemoryImage(3, 2, tt.c))
			if g.Bounds().Dx() != 3 || g.Bounds().Dy() != 2 {
				t.Fatalf("bounds = %v, want 3x2", g.Bounds())
			}
			for i, y := range g.Pix {
				if y != tt.want {
					t.Fatalf("pixel %d = %d, want %d", i, y, tt.want)
				}
			}
		})
	}
}

func TestDither_Extremes(t *testing.T) {
	black := image.NewGray(image.Rect(0, 0, 8, 8))
	white := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range white.Pix {
		white.Pix[i] = 0xff
	}

	for _, idx := range Dither(black, MonoPalette).Pix {
		if idx != 0 {
			t.Fatal("black input produced a white pixel")
		}
	}
	for _, idx := range Dither(white, MonoPalette).Pix {
		if idx != 1 {
			t.Fatal("white input produced a black pixel")
		}
	}
}

func TestDither_MidGrayMixesLevels(t *testing.T) {
	g := image.NewGray(image.Rect(0, 0, 16, 16))
	for i := range g.Pix {
		g.Pix[i] = 128
	}

	out := Dither(g, MonoPalette)
	ones := 0
	for _, idx := range out.Pix {
		ones += int(idx)
	}
	// roughly half the pixels should be white
	if ones < 96 || ones > 160 {
		t.Errorf("white pixels = %d of 256, want about half", ones)
	}
}

func TestDither_GrayLevelsInRange(t *testing.T) {
	g := Luminance(createPatternImage(32, 32))
	out := Dither(g, GrayPalette16)
	for _, idx := range out.Pix {
		if idx > 15 {
			t.Fatalf("index %d outside 16-level palette", idx)
		}
	}
}
