package chunker

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
)

// colorRGBA is a plain RGBA color used while reconstructing raw
// (non-JPEG) PDF image samples pixel by pixel.
type colorRGBA struct {
	R, G, B, A uint8
}

func (c colorRGBA) RGBA() (r, g, b, a uint32) {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

func decodeJPEGBytes(data []byte) (image.Image, string, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode jpeg xobject: %w", err)
	}
	return img, "jpeg", nil
}

// writeText writes a partition's text content to path.
func writeText(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write text %s: %w", path, err)
	}
	return nil
}
