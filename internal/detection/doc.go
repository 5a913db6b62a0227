// Package detection finds text regions in an image.
//
// A detection model turns the image into a per-pixel text probability map.
// This package prepares the model input and turns the map into boxes.
//
// # Algorithm Overview
//
//  1. Preprocess: fit the long side to the configured maximum, pad to a
//     multiple of 32, normalize with the model's mean and std
//  2. Inference: run the model (anything implementing Runner)
//  3. Components: threshold the map and flood-fill 8-connected regions
//  4. Filtering: drop regions whose mean probability or size is too low
//  5. Geometry: add a border, scale back to original pixels, suppress
//     overlapping boxes (NMS) and optionally merge boxes on one line
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Bounding boxes use inclusive top-left and exclusive bottom-right
//
// Boxes are returned in original image coordinates, ordered top to bottom
// and then left to right. The same image always produces the same boxes in
// the same order.
//
// # Scores
//
// Each box carries the mean probability over the pixels of the region it
// came from, so it is always in [0, 1].
package detection
