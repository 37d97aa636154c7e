// Package imaging normalizes uploaded images before they are forwarded to
// an inference engine.
package imaging

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxEdge is the longest edge, in pixels, that uploads are
	// downscaled to before inference. Vision encoders tile large inputs,
	// so anything bigger only adds transfer and preprocessing cost.
	DefaultMaxEdge = 1536

	// jpegQuality is used when a downscaled image is re-encoded.
	jpegQuality = 90
)

// DetectFormat returns the MIME type of the image data based on its magic
// bytes. Unrecognized or truncated data is reported as JPEG, which every
// supported engine treats as the default.
func DetectFormat(data []byte) string {
	if len(data) < 12 {
		return "image/jpeg"
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "image/jpeg"
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "image/png"
	case data[0] == 0x47 && data[1] == 0x49 && data[2] == 0x46:
		return "image/gif"
	case data[0] == 0x52 && data[1] == 0x49 && data[2] == 0x46 && data[3] == 0x46 &&
		data[8] == 0x57 && data[9] == 0x45 && data[10] == 0x42 && data[11] == 0x50:
		return "image/webp"
	case data[0] == 0x42 && data[1] == 0x4D:
		return "image/bmp"
	case (data[0] == 0x49 && data[1] == 0x49 && data[2] == 0x2A && data[3] == 0x00) ||
		(data[0] == 0x4D && data[1] == 0x4D && data[2] == 0x00 && data[3] == 0x2A):
		return "image/tiff"
	default:
		return "image/jpeg"
	}
}

// Normalize downscales data so that its longest edge does not exceed
// maxEdge, re-encoding as JPEG. Images already within bounds, and data that
// cannot be decoded at all, are returned unchanged so the engine sees
// exactly what the client sent.
func Normalize(data []byte, maxEdge int) []byte {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data
	}

	bounds := img.Bounds()
	if bounds.Dx() <= maxEdge && bounds.Dy() <= maxEdge {
		return data
	}

	resized := imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return data
	}
	return buf.Bytes()
}

// Decode validates that data holds a decodable image and returns its
// dimensions.
func Decode(data []byte) (width, height int, err error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode image: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}
