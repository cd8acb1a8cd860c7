package embedsession

import (
	"image"

	"golang.org/x/image/draw"
)

// imageSize is the fixed square input resolution of the SigLIP-class model.
const imageSize = 512

// PreprocessImage resizes img to 512x512 with a triangular (bilinear)
// filter, normalizes channels to [0,1], and lays the result out as a
// flattened [1,3,512,512] CHW tensor, per the image embedding contract.
func PreprocessImage(img image.Image) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, imageSize, imageSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)

	chw := make([]float32, 3*imageSize*imageSize)
	plane := imageSize * imageSize
	for y := 0; y < imageSize; y++ {
		for x := 0; x < imageSize; x++ {
			r, g, b, _ := dst.At(x, y).RGBA()
			idx := y*imageSize + x
			chw[0*plane+idx] = float32(r) / 65535.0
			chw[1*plane+idx] = float32(g) / 65535.0
			chw[2*plane+idx] = float32(b) / 65535.0
		}
	}
	return chw
}
