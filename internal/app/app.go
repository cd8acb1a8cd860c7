// Package app wires the chunk store tables, embedding resources,
// chunkers, and providers into the FileIndexer/FileQueryer pair the CLI
// drives, matching the external interface's on-disk table layout
// (siglip2_chunkfile, gemma_chunkfile, cursor).
package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/Aman-CERP/fetchgo/internal/chunker"
	"github.com/Aman-CERP/fetchgo/internal/chunkstore"
	"github.com/Aman-CERP/fetchgo/internal/config"
	"github.com/Aman-CERP/fetchgo/internal/cursor"
	"github.com/Aman-CERP/fetchgo/internal/embedsession"
	"github.com/Aman-CERP/fetchgo/internal/fileindex"
	"github.com/Aman-CERP/fetchgo/internal/filequery"
	"github.com/Aman-CERP/fetchgo/internal/provider"
	"github.com/Aman-CERP/fetchgo/internal/schema"
	"github.com/Aman-CERP/fetchgo/internal/workpool"
)

const (
	siglip2Table = "siglip2_chunkfile"
	gemmaTable   = "gemma_chunkfile"
)

// App holds every long-lived handle the CLI commands operate against.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Resources *embedsession.Resources

	SiglipStore *chunkstore.Store[schema.Chunk]
	GemmaStore  *chunkstore.Store[schema.Chunk]
	Cursors     *cursor.Store

	Providers []provider.Provider

	Indexer *fileindex.FileIndexer
	Queryer *filequery.FileQueryer
}

// Open opens every table and initializes every session pool cfg names,
// wiring the image and PDF providers over them.
func Open(cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	storePath := filepath.Join(cfg.Paths.IndexDir, "store.db")
	siglipStore, err := chunkstore.Open(storePath, siglip2Table, chunkstore.ChunkCodec{VectorLength: embedsession.EmbeddingDim}, cfg.Store.CompactionPeriod, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", siglip2Table, err)
	}
	gemmaStore, err := chunkstore.Open(storePath, gemmaTable, chunkstore.ChunkCodec{VectorLength: embedsession.EmbeddingDim}, cfg.Store.CompactionPeriod, logger)
	if err != nil {
		siglipStore.Close()
		return nil, fmt.Errorf("open %s: %w", gemmaTable, err)
	}

	cursorPath := filepath.Join(cfg.Paths.IndexDir, "cursor.db")
	cursors, err := cursor.Open(cursorPath, cfg.Store.CompactionPeriod)
	if err != nil {
		siglipStore.Close()
		gemmaStore.Close()
		return nil, fmt.Errorf("open cursor store: %w", err)
	}

	resources, err := embedsession.New(256)
	if err != nil {
		return nil, fmt.Errorf("create embedding resources: %w", err)
	}
	if err := resources.Init(embedsession.ModelSigLIP2, filepath.Join(cfg.Sessions.ModelDir, "siglip2"), cfg.Sessions.PoolSize); err != nil {
		return nil, fmt.Errorf("init siglip2 sessions: %w", err)
	}
	if err := resources.Init(embedsession.ModelGemma, filepath.Join(cfg.Sessions.ModelDir, "gemma"), cfg.Sessions.PoolSize); err != nil {
		return nil, fmt.Errorf("init gemma sessions: %w", err)
	}

	pool := workpool.New(0)
	imageChunker := &chunker.ImageChunker{Pool: pool}
	pdfChunker := &chunker.PDFChunker{Pool: pool}

	imageProvider := &provider.ImageProvider{
		Chunker:  imageChunker,
		Embedder: resources,
		Store:    siglipStore,
		ChunkDir: cfg.Paths.ChunkDir,
		MinScore: cfg.Store.ImageMinScore,
	}
	pdfProvider := &provider.PDFProvider{
		Chunker:    pdfChunker,
		Embedder:   resources,
		TextStore:  gemmaStore,
		ImageStore: siglipStore,
		ChunkDir:   cfg.Paths.ChunkDir,
		MinScore:   cfg.Store.PDFMinScore,
	}

	providers := []provider.Provider{imageProvider, pdfProvider}

	return &App{
		Config:      cfg,
		Logger:      logger,
		Resources:   resources,
		SiglipStore: siglipStore,
		GemmaStore:  gemmaStore,
		Cursors:     cursors,
		Providers:   providers,
		Indexer:     fileindex.New(providers, logger),
		Queryer:     filequery.New(providers, cursors, cfg.Cursor.TTL, logger),
	}, nil
}

// Close releases every handle opened by Open.
func (a *App) Close() error {
	var firstErr error
	note := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	note(a.Resources.Close())
	note(a.SiglipStore.Close())
	note(a.GemmaStore.Close())
	note(a.Cursors.Close())
	return firstErr
}
