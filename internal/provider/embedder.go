package provider

import (
	"context"

	"github.com/Aman-CERP/fetchgo/internal/embedsession"
)

// Embedder is the narrow embedding surface a provider needs, letting
// providers be tested against a deterministic fake instead of a real
// *embedsession.Resources and model files.
type Embedder interface {
	EmbedImageFile(ctx context.Context, path string) ([]float32, error)
	EmbedText(ctx context.Context, text string, isQuery bool) ([]float32, error)
	EmbedSiglipText(ctx context.Context, text string) ([]float32, error)
}

var _ Embedder = (*embedsession.Resources)(nil)
