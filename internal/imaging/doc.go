// Package imaging holds the pixel-level helpers shared by the OCR stages.
//
// It covers decoding image files (PNG, JPEG, GIF, BMP, TIFF, WebP), crop and
// resize with github.com/disintegration/imaging, filters from
// github.com/anthonynsimon/bild, background polarity checks with
// github.com/lucasb-eyer/go-colorful, and drawing detected boxes back onto an
// image for inspection.
//
// # Coordinate System
//
// All pixel coordinates are 0-based with the origin at the top-left corner:
//   - X increases rightward, Y increases downward
//   - Rectangles are half-open: Min is inclusive, Max is exclusive
//
// Functions that return new images always return them with their origin at
// (0,0), whatever the origin of the input.
//
// # Thread Safety
//
// Every function is stateless and allocates its own output, so they can be
// called concurrently on the same input image as long as nobody mutates it.
package imaging
