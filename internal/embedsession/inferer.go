package embedsession

import "context"

// ImageInferer runs a single forward pass of an image embedding model over
// a [1,3,512,512] CHW tensor already normalized to [0,1], returning a
// length-768 vector. Concrete implementations (onnxImageInferer) are the
// only place the ONNX runtime is touched — every other part of this
// package treats inference as a black box, per the embedding contract.
type ImageInferer interface {
	Run(ctx context.Context, chw []float32) ([]float32, error)
	Close() error
}

// TextInferer runs a single forward pass of a text embedding model over
// tokenized input ids (and an attention mask, where the model uses one),
// returning a length-768 vector.
type TextInferer interface {
	Tokenize(text string) (ids []int64, mask []int64, err error)
	Run(ctx context.Context, ids []int64, mask []int64) ([]float32, error)
	Close() error
}
