// Package yail implements the image encoding engine and binary framing used
// to answer Atari 8-bit clients.
//
// Encode takes any PixelBuffer and produces a Packet in one of three display
// formats:
//
//	Mode     Id  Screen   Depth  Image block
//	Mode8     8  320x192  1 bpp   7680 bytes
//	Mode9     9  320x192  4 bpp  30720 bytes
//	ModeVBXE 16  320x240  8 bpp  76800 bytes (+768 byte palette block)
//
// VBXE palettes reserve stored slot 0 for black: source color i is stored in
// slot i+1 and every pixel index is shifted by one. DecodeVBXE undoes the
// shift.
package yail
