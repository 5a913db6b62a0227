// Package recognition turns one detected text box into a string.
//
// The native backend crops the box, normalizes it to the recognition
// model's input height, runs the model to get a per-step distribution over
// dictionary classes and decodes it greedily (CTC best path). On Linux with
// cgo a Tesseract backend can be selected instead.
//
// Recognizers are safe for concurrent use; the engine runs one call per box
// on the shared worker pool.
package recognition
