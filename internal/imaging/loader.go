package imaging

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"os"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/ocr-engine/internal/ocrerr"
)

// Load opens and decodes the image at path.
//
// Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP. The returned
// error wraps os errors for missing files and ocrerr.ErrImageDecode for
// files that are not a decodable image, so callers can tell the two apart.
func Load(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// LoadBytes decodes an image held in memory.
func LoadBytes(data []byte) (image.Image, string, error) {
	return Decode(bytes.NewReader(data))
}

// Decode reads one image from r and reports its format name.
//
// Images with an empty pixel area are rejected: nothing downstream can
// work with them and a zero-size image almost always means a truncated file.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ocrerr.ErrImageDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: empty %s image", ocrerr.ErrImageDecode, format)
	}
	return img, format, nil
}
