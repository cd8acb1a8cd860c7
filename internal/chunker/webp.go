package chunker

import (
	"fmt"
	"image"
	"os"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
)

// resizeLongestSide resizes img so its longest side is at most maxSide,
// using a triangular (bilinear) filter, matching the chunker's resize
// contract. Images already within bounds are returned unscaled.
func resizeLongestSide(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}

	var newW, newH int
	if w >= h {
		newW = maxSide
		newH = h * maxSide / w
	} else {
		newH = maxSide
		newW = w * maxSide / h
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// writeWebP encodes img as WebP and writes it to path. It does not resize;
// callers pass an already-resized image.
func writeWebP(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := nativewebp.Encode(f, img, nil); err != nil {
		return fmt.Errorf("encode webp %s: %w", path, err)
	}
	return nil
}
