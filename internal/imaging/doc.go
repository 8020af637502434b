// Package imaging provides the raster operations behind the YAIL encoder.
//
// Source images from every collaborator (local files, downloaded URLs,
// generated images, camera frames) are normalized into a PixelBuffer: an
// immutable RGB raster with its origin at the top-left corner. The encoder
// then chains the operations in this package to reach a client's native
// display format:
//
//   - Fit scales an image into a fixed screen size, preserving its aspect
//     ratio and padding with black
//   - Luminance and Dither reduce it to a fixed set of gray levels
//   - Quantize reduces it to an adaptive color palette
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. PixelBuffers are never
// mutated after construction and all operations are stateless, so any number
// of encodes may run in parallel over the same buffer.
//
// # Supported Formats
//
// PNG, JPEG, GIF, BMP and WebP are decoded. JPEG EXIF orientation is applied
// during decode. Decoded images larger than MaxSourceWidth×MaxSourceHeight are
// shrunk on the way in.
//
// # Determinism
//
// Every operation produces identical output for identical input. Palette
// ordering, dithering and resampling carry no hidden state.
package imaging
