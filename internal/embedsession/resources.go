package embedsession

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	lru "github.com/hashicorp/golang-lru/v2"
	_ "golang.org/x/image/webp" // WebP decode support for chunk artifacts

	"github.com/Aman-CERP/fetchgo/internal/errs"
)

// Model identities, matching the two chunk tables' embedding sources.
const (
	ModelSigLIP2 = "siglip2"
	ModelGemma   = "gemma"
)

const (
	// QueryTemplate wraps a search query before embedding with the Gemma
	// text model.
	QueryTemplate = "task: search result | query: %s"
	// DocTemplate wraps a document chunk before embedding with the Gemma
	// text model.
	DocTemplate = "title: none | text: %s"
)

// session is one exclusive inference handle in a model's pool.
type session struct {
	mu    sync.Mutex
	image ImageInferer
	text  TextInferer
}

// pool is the fixed-size session set for one model identity.
type pool struct {
	sessions []*session
}

// Resources is the process-wide embedding resource handle: one pool per
// model identity, a one-shot model base directory, and a bounded cache of
// recent query embeddings. Created once at startup and passed by
// reference, per the process-wide singleton pattern.
type Resources struct {
	mu        sync.Mutex
	modelDirs map[string]string
	pools     map[string]*pool
	cache     *lru.Cache[string, []float32]
	dirLocks  map[string]*flock.Flock
}

// New creates a Resources handle with no sessions initialized yet; call
// Init per model before the first GetSession.
func New(queryCacheSize int) (*Resources, error) {
	if queryCacheSize <= 0 {
		queryCacheSize = 256
	}
	cache, err := lru.New[string, []float32](queryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}
	return &Resources{
		modelDirs: make(map[string]string),
		pools:     make(map[string]*pool),
		cache:     cache,
		dirLocks:  make(map[string]*flock.Flock),
	}, nil
}

// Init initializes poolSize sessions for model, loading the model/tokenizer
// from modelDir. Re-initialization for an already-initialized model is a
// no-op, matching the one-shot-guard init-order constraint. A file lock on
// modelDir guards against a second process reinitializing (and rewriting
// tokenizer caches for) the same model directory concurrently; failure to
// acquire it is logged and otherwise ignored, since it is an optimization
// rather than a correctness requirement for read-only model files.
func (r *Resources) Init(model, modelDir string, poolSize int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.pools[model]; ok {
		return nil
	}
	if poolSize <= 0 {
		poolSize = 1
	}

	lockPath := filepath.Join(modelDir, ".fetch-init.lock")
	lock := flock.New(lockPath)
	if locked, err := lock.TryLock(); err != nil || !locked {
		slog.Warn("model directory init lock unavailable, proceeding without it", "model", model, "model_dir", modelDir, "error", err)
	} else {
		r.dirLocks[model] = lock
	}

	p := &pool{sessions: make([]*session, poolSize)}
	for i := 0; i < poolSize; i++ {
		s := &session{}
		switch model {
		case ModelSigLIP2:
			inf, err := newONNXImageInferer(modelDir)
			if err != nil {
				return fmt.Errorf("init %s session %d: %w", model, i, err)
			}
			s.image = inf
			textInf, err := newONNXSiglipTextInferer(modelDir)
			if err != nil {
				return fmt.Errorf("init %s text tower session %d: %w", model, i, err)
			}
			s.text = textInf
		case ModelGemma:
			inf, err := newONNXTextInferer(modelDir, gemmaMaxSeqLen)
			if err != nil {
				return fmt.Errorf("init %s session %d: %w", model, i, err)
			}
			s.text = inf
		default:
			return fmt.Errorf("unknown model identity %q", model)
		}
		p.sessions[i] = s
	}

	r.modelDirs[model] = modelDir
	r.pools[model] = p
	return nil
}

// getSession scans the pool for a free slot (non-blocking TryLock); if
// none is free it blocks on slot 0. This is the try-parallel,
// fall-back-serialize policy for CPU-bound inference.
func (r *Resources) getSession(model string) (*session, func(), error) {
	r.mu.Lock()
	p, ok := r.pools[model]
	r.mu.Unlock()
	if !ok {
		return nil, nil, errs.New(errs.KindEmbedding, "model not initialized").WithDetail("variant", "Initialization").WithDetail("model", model)
	}

	for _, s := range p.sessions {
		if s.mu.TryLock() {
			return s, s.mu.Unlock, nil
		}
	}
	p.sessions[0].mu.Lock()
	return p.sessions[0], p.sessions[0].mu.Unlock, nil
}

// EmbedImageCHW embeds a preprocessed [1,3,512,512] normalized tensor with
// the SigLIP-class model.
func (r *Resources) EmbedImageCHW(ctx context.Context, chw []float32) ([]float32, error) {
	s, release, err := r.getSession(ModelSigLIP2)
	if err != nil {
		return nil, err
	}
	defer release()

	vec, err := s.image.Run(ctx, chw)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "image inference failed", err).WithDetail("variant", "Calculation")
	}
	return vec, nil
}

// EmbedText embeds text with the Gemma-class model, applying the
// query/document task template and the query-embedding cache.
func (r *Resources) EmbedText(ctx context.Context, text string, isQuery bool) ([]float32, error) {
	template := DocTemplate
	if isQuery {
		template = QueryTemplate
	}
	prefixed := fmt.Sprintf(template, strings.ToLower(text))
	return r.embedWithModel(ctx, ModelGemma, prefixed, isQuery)
}

// EmbedSiglipText embeds query text with the SigLIP-class model's text
// tower, the joint embedding space shared with its image tower. This is
// the only text path used against the siglip2_chunkfile table, since a
// Gemma-class embedding is not comparable to SigLIP image vectors.
func (r *Resources) EmbedSiglipText(ctx context.Context, text string) ([]float32, error) {
	return r.embedWithModel(ctx, ModelSigLIP2, strings.ToLower(text), true)
}

func (r *Resources) embedWithModel(ctx context.Context, model, text string, cacheable bool) ([]float32, error) {
	cacheKey := model + "\x00" + text
	if cacheable {
		if cached, ok := r.cache.Get(cacheKey); ok {
			return cached, nil
		}
	}

	s, release, err := r.getSession(model)
	if err != nil {
		return nil, err
	}
	defer release()

	ids, mask, err := s.text.Tokenize(text)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "tokenization failed", err).WithDetail("variant", "Preprocessing")
	}
	vec, err := s.text.Run(ctx, ids, mask)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "text inference failed", err).WithDetail("variant", "Calculation")
	}

	if cacheable {
		r.cache.Add(cacheKey, vec)
	}
	return vec, nil
}

// EmbedImageFile decodes, preprocesses, and embeds the image file at path
// with the SigLIP-class model. This is the "embed_image(path) -> Vec<f32>"
// concrete function named in the process-wide embedding contract.
func (r *Resources) EmbedImageFile(ctx context.Context, path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "open image "+path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errs.Wrap(errs.KindEmbedding, "decode image "+path, err).WithDetail("variant", "Preprocessing")
	}
	chw := PreprocessImage(img)
	return r.EmbedImageCHW(ctx, chw)
}

// Close releases every session's underlying inference resources.
func (r *Resources) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, p := range r.pools {
		for _, s := range p.sessions {
			if s.image != nil {
				if err := s.image.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			if s.text != nil {
				if err := s.text.Close(); err != nil && firstErr == nil {
					firstErr = err
				}
			}
		}
	}
	for _, lock := range r.dirLocks {
		_ = lock.Unlock()
	}
	return firstErr
}
