package yail

import (
	"fmt"
	"strconv"
	"strings"
)

// Mode identifies a client display format. The numeric value is the id sent
// on the wire and typed by clients in the gfx command.
type Mode uint8

const (
	// Mode8 is 320x192 high-resolution monochrome, one bit per pixel.
	Mode8 Mode = 8
	// Mode9 is 320x192 with sixteen gray levels, four bits per pixel.
	Mode9 Mode = 9
	// ModeVBXE is 320x240 with an indexed 256-color palette, one byte per pixel.
	ModeVBXE Mode = 16
)

// DefaultMode is the mode a new connection starts in.
const DefaultMode = Mode8

// Valid reports whether m is one of the supported modes.
func (m Mode) Valid() bool {
	switch m {
	case Mode8, Mode9, ModeVBXE:
		return true
	}
	return false
}

// Width returns the screen width in pixels, or 0 for an invalid mode.
func (m Mode) Width() int {
	if !m.Valid() {
		return 0
	}
	return 320
}

// Height returns the screen height in pixels, or 0 for an invalid mode.
func (m Mode) Height() int {
	switch m {
	case Mode8, Mode9:
		return 192
	case ModeVBXE:
		return 240
	}
	return 0
}

// BitsPerPixel returns the packed pixel depth, or 0 for an invalid mode.
func (m Mode) BitsPerPixel() int {
	switch m {
	case Mode8:
		return 1
	case Mode9:
		return 4
	case ModeVBXE:
		return 8
	}
	return 0
}

// ImageSize returns the exact length of the image block payload.
func (m Mode) ImageSize() int {
	return m.Width() * m.Height() * m.BitsPerPixel() / 8
}

func (m Mode) String() string {
	switch m {
	case Mode8:
		return "mode8"
	case Mode9:
		return "mode9"
	case ModeVBXE:
		return "vbxe"
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseMode parses a decimal mode id such as "8", "9" or "16".
func ParseMode(s string) (Mode, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("graphics mode %q is not a number", s)
	}
	if n < 0 || n > 255 || !Mode(n).Valid() {
		return 0, fmt.Errorf("graphics mode %d: %w", n, ErrUnsupportedMode)
	}
	return Mode(n), nil
}
