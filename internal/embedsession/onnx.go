package embedsession

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/daulet/tokenizers"
	ort "github.com/yalue/onnxruntime_go"
)

// EmbeddingDim is the fixed output length shared by both the SigLIP-class
// image/query model and the Gemma-class text model.
const EmbeddingDim = 768

// gemmaMaxSeqLen is the text model's maximum padded sequence length.
const gemmaMaxSeqLen = 2048

func newSessionOptions() (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("session options: %w", err)
	}
	threads := runtime.NumCPU()
	if threads > 4 {
		threads = 4
	}
	if err := opts.SetIntraOpNumThreads(threads); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set intra threads: %w", err)
	}
	if err := opts.SetInterOpNumThreads(1); err != nil {
		opts.Destroy()
		return nil, fmt.Errorf("set inter threads: %w", err)
	}
	return opts, nil
}

// onnxImageInferer runs the SigLIP-class image model.
type onnxImageInferer struct {
	session *ort.DynamicAdvancedSession
}

func newONNXImageInferer(modelDir string) (*onnxImageInferer, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init ort: %w", err)
	}
	opts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelDir, "model.onnx"),
		[]string{"pixel_values"},
		[]string{"image_embeds"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create image session: %w", err)
	}
	return &onnxImageInferer{session: session}, nil
}

func (e *onnxImageInferer) Run(ctx context.Context, chw []float32) ([]float32, error) {
	shape := ort.NewShape(1, 3, 512, 512)
	input, err := ort.NewTensor(shape, chw)
	if err != nil {
		return nil, fmt.Errorf("pixel_values tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("run image model: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected image model output type")
	}
	data := out.GetData()
	vec := make([]float32, EmbeddingDim)
	copy(vec, data[:min(len(data), EmbeddingDim)])
	return vec, nil
}

func (e *onnxImageInferer) Close() error {
	if e.session != nil {
		e.session.Destroy()
	}
	return nil
}

// onnxTextInferer runs the Gemma-class text model.
type onnxTextInferer struct {
	session   *ort.DynamicAdvancedSession
	tokenizer *tokenizers.Tokenizer
	maxSeqLen int
}

func newONNXTextInferer(modelDir string, maxSeqLen int) (*onnxTextInferer, error) {
	return newONNXTextInfererFiles(modelDir, "model.onnx", "tokenizer.json", maxSeqLen)
}

// newONNXSiglipTextInferer loads the SigLIP-class model's text tower: the
// same joint embedding space as its image tower, used only to embed query
// text against the siglip2_chunkfile table. Unlike the Gemma-class model,
// it is never padded to a fixed length.
func newONNXSiglipTextInferer(modelDir string) (*onnxTextInferer, error) {
	return newONNXTextInfererFiles(filepath.Join(modelDir, "text"), "model.onnx", "tokenizer.json", 0)
}

func newONNXTextInfererFiles(modelDir, modelFile, tokenizerFile string, maxSeqLen int) (*onnxTextInferer, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("init ort: %w", err)
	}
	opts, err := newSessionOptions()
	if err != nil {
		return nil, err
	}
	defer opts.Destroy()

	session, err := ort.NewDynamicAdvancedSession(
		filepath.Join(modelDir, modelFile),
		[]string{"input_ids", "attention_mask"},
		[]string{"sentence_embedding"},
		opts,
	)
	if err != nil {
		return nil, fmt.Errorf("create text session: %w", err)
	}

	tk, err := tokenizers.FromFile(filepath.Join(modelDir, tokenizerFile))
	if err != nil {
		session.Destroy()
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	return &onnxTextInferer{session: session, tokenizer: tk, maxSeqLen: maxSeqLen}, nil
}

func (e *onnxTextInferer) Tokenize(text string) ([]int64, []int64, error) {
	enc := e.tokenizer.EncodeWithOptions(text, true, tokenizers.WithReturnAttentionMask())
	ids := enc.IDs
	if e.maxSeqLen > 0 && len(ids) > e.maxSeqLen {
		ids = ids[:e.maxSeqLen]
	}

	ids64 := make([]int64, len(ids))
	mask64 := make([]int64, len(ids))
	for i, v := range ids {
		ids64[i] = int64(v)
		mask64[i] = 1
	}
	if len(enc.AttentionMask) >= len(ids) {
		for i := range mask64 {
			mask64[i] = int64(enc.AttentionMask[i])
		}
	}

	if e.maxSeqLen > 0 {
		for len(ids64) < e.maxSeqLen {
			ids64 = append(ids64, 0)
			mask64 = append(mask64, 0)
		}
	}
	return ids64, mask64, nil
}

func (e *onnxTextInferer) Run(ctx context.Context, ids []int64, mask []int64) ([]float32, error) {
	shape := ort.NewShape(1, int64(len(ids)))
	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsT.Destroy()

	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()

	outputs := []ort.Value{nil}
	if err := e.session.Run([]ort.Value{idsT, maskT}, outputs); err != nil {
		return nil, fmt.Errorf("run text model: %w", err)
	}
	defer func() {
		if outputs[0] != nil {
			outputs[0].Destroy()
		}
	}()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected text model output type")
	}
	data := out.GetData()
	vec := make([]float32, EmbeddingDim)
	copy(vec, data[:min(len(data), EmbeddingDim)])
	return vec, nil
}

func (e *onnxTextInferer) Close() error {
	if e.session != nil {
		e.session.Destroy()
	}
	if e.tokenizer != nil {
		e.tokenizer.Close()
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
