// Package refmodel generates the reference detection and recognition models
// and their dictionary.
//
// The reference models are small, deterministic stand-ins for trained
// networks. They read dark text rendered in the basicfont 7x13 face on a
// light background, at any integer scale, which is enough to exercise the
// whole pipeline end to end without shipping model weights.
package refmodel
