package provider

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fetchgo/internal/chunker"
	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// defaultPDFMinScore is the PDF provider's MIN_SCORE cutoff.
const defaultPDFMinScore = 0.1

// PDFProvider chunks a PDF into text partitions and embedded images,
// writing the former to a Gemma-embedded text table and the latter to a
// SigLIP-embedded image table. The dual-store write joins both stores'
// results and collects every failure rather than stopping at the first.
type PDFProvider struct {
	Chunker    chunker.Chunker
	Embedder   Embedder
	TextStore  ChunkTable
	ImageStore ChunkTable
	ChunkDir   string

	// MinScore overrides defaultPDFMinScore when non-zero.
	MinScore float64
}

func (p *PDFProvider) minScore() float64 {
	if p.MinScore != 0 {
		return p.MinScore
	}
	return defaultPDFMinScore
}

func (p *PDFProvider) Name() string { return "pdf" }

func (p *PDFProvider) ProvidesIndexingForExtension(ext string) bool {
	for _, e := range p.Chunker.SupportedExtensions() {
		if e == ext {
			return true
		}
	}
	return false
}

func (p *PDFProvider) Index(ctx context.Context, path string, modified *time.Time) error {
	lastModified, err := resolveModified(path, modified)
	if err != nil {
		return err
	}

	// A file is "already indexed" for this provider if either store has
	// it; sequencing is checked against whichever is present.
	if err := p.checkSequencingBothStores(ctx, path, lastModified); err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return errs.Wrap(errs.KindIO, "stat "+path, err)
	}
	meta := chunker.FileMeta{
		CreationDate: lastModified,
		ModifiedDate: lastModified,
		Size:         uint64(info.Size()),
	}

	chunks, err := p.Chunker.Chunk(ctx, path, meta, p.ChunkDir)
	if err != nil {
		return err
	}

	var textChunks, imageChunks []schema.Chunk
	for _, ck := range chunks {
		switch ck.ChunkType {
		case schema.ChunkTypeText:
			textChunks = append(textChunks, ck)
		case schema.ChunkTypeImage:
			imageChunks = append(imageChunks, ck)
		}
	}

	if err := p.embedAll(ctx, textChunks, imageChunks); err != nil {
		return err
	}

	var textErr, imageErr error
	var g errgroup.Group
	g.Go(func() error {
		if len(textChunks) > 0 {
			textErr = p.TextStore.Put(ctx, textChunks)
		}
		return nil
	})
	g.Go(func() error {
		if len(imageChunks) > 0 {
			imageErr = p.ImageStore.Put(ctx, imageChunks)
		}
		return nil
	})
	_ = g.Wait()
	if err := errors.Join(textErr, imageErr); err != nil {
		return errs.StoreOp("put", err)
	}
	return nil
}

func (p *PDFProvider) embedAll(ctx context.Context, textChunks, imageChunks []schema.Chunk) error {
	for i, ck := range textChunks {
		vec, err := p.Embedder.EmbedText(ctx, ck.FullText(), false)
		if err != nil {
			return err
		}
		textChunks[i].Embedding = vec
	}
	for i, ck := range imageChunks {
		vec, err := p.Embedder.EmbedImageFile(ctx, ck.Chunkfile)
		if err != nil {
			return err
		}
		imageChunks[i].Embedding = vec
	}
	return nil
}

// checkSequencingBothStores runs the sequencing check against both of the
// provider's stores. A real (non-sequencing) error from either store wins
// immediately. If both report Sequencing, the file is genuinely stale and
// that error is surfaced; if only one does (e.g. a prior partial write),
// the newer write proceeds and the stale store's prior rows are cleared.
func (p *PDFProvider) checkSequencingBothStores(ctx context.Context, path string, lastModified time.Time) error {
	textErr := checkSequencing(ctx, p.TextStore, path, lastModified)
	if textErr != nil && !errs.IsKind(textErr, errs.KindSequencing) {
		return textErr
	}
	imgErr := checkSequencing(ctx, p.ImageStore, path, lastModified)
	if imgErr != nil && !errs.IsKind(imgErr, errs.KindSequencing) {
		return imgErr
	}
	if textErr != nil && imgErr != nil {
		return textErr
	}
	return nil
}

func (p *PDFProvider) Clear(ctx context.Context, path string, modified *time.Time) error {
	if err := chunker.RemoveSubdir(p.ChunkDir, path); err != nil {
		return err
	}

	g := errgroup.Group{}
	g.Go(func() error { return clearTable(ctx, p.TextStore, path, modified) })
	g.Go(func() error { return clearTable(ctx, p.ImageStore, path, modified) })
	return g.Wait()
}

func (p *PDFProvider) QueryN(ctx context.Context, text string, limit, offset int) ([]ChunkQueryResult, error) {
	gemmaVec, err := p.Embedder.EmbedText(ctx, text, true)
	if err != nil {
		return nil, err
	}
	siglipVec, err := p.Embedder.EmbedSiglipText(ctx, text)
	if err != nil {
		return nil, err
	}

	var textHits, imageHits []ChunkQueryResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := p.TextStore.QueryFullN(gctx, text, gemmaVec, nil, limit, offset)
		if err != nil {
			return errs.StoreOp("query", err)
		}
		textHits = normalizeHits(hits, p.minScore())
		return nil
	})
	g.Go(func() error {
		hits, err := p.ImageStore.QueryFullN(gctx, text, siglipVec, nil, limit, offset)
		if err != nil {
			return errs.StoreOp("query", err)
		}
		imageHits = normalizeHits(hits, p.minScore())
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return append(textHits, imageHits...), nil
}
