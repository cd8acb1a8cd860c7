// Package fileindex implements the FileIndexer: it fans a single
// (path, modified) event across every registered provider concurrently,
// folding their outcomes and errors into a provider-keyed aggregation.
package fileindex

import (
	"context"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/provider"
)

// Outcome classifies the result of a FileIndexer operation.
type Outcome string

const (
	// OutcomeIndexed means at least one provider opted in and none of
	// the opted-in providers returned a non-sequencing error.
	OutcomeIndexed Outcome = "indexed"
	// OutcomeSkipped means no provider is registered for the file's
	// extension.
	OutcomeSkipped Outcome = "skipped"
)

// Result is the FileIndexer's outcome for one Index/Clear call.
type Result struct {
	Outcome Outcome
	Reason  string // populated when Outcome == OutcomeSkipped
}

// FileIndexer holds an ordered list of providers and dispatches each
// (path, modified) event across every provider opted into the file's
// extension.
type FileIndexer struct {
	Providers []provider.Provider
	Logger    *slog.Logger
}

// New creates a FileIndexer over providers, in the given order.
func New(providers []provider.Provider, logger *slog.Logger) *FileIndexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileIndexer{Providers: providers, Logger: logger}
}

func (f *FileIndexer) extension(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func (f *FileIndexer) opted(path string) []provider.Provider {
	ext := f.extension(path)
	var opted []provider.Provider
	for _, p := range f.Providers {
		if p.ProvidesIndexingForExtension(ext) {
			opted = append(opted, p)
		}
	}
	return opted
}

// Index dispatches path's indexing across every opted-in provider
// concurrently. Per-provider Sequencing errors are logged at info and
// dropped; any other per-provider error is collected into a provider-keyed
// map. If the map is non-empty, Index returns one store-kind error that
// wraps the error of the alphabetically first failing provider and lists
// every failing provider's name in its "providers" detail; the other
// providers' errors are not carried in it.
func (f *FileIndexer) Index(ctx context.Context, path string, modified *time.Time) (Result, error) {
	opted := f.opted(path)
	if len(opted) == 0 {
		return Result{Outcome: OutcomeSkipped, Reason: "Extension not registered in any provider"}, nil
	}

	providerErrors := f.fanOut(ctx, opted, func(ctx context.Context, p provider.Provider) error {
		return p.Index(ctx, path, modified)
	})
	if len(providerErrors) > 0 {
		return Result{}, errs.Wrap(errs.KindStore, "one or more providers failed to index", joinedErr(providerErrors)).
			WithDetail("providers", strings.Join(keysOf(providerErrors), ","))
	}
	return Result{Outcome: OutcomeIndexed}, nil
}

// Clear dispatches path's clear across every opted-in provider
// concurrently, with the same Sequencing-downgrade and error-folding
// shape as Index. An unrecognized extension is a logged no-op rather than
// an error.
func (f *FileIndexer) Clear(ctx context.Context, path string, modified *time.Time) (Result, error) {
	opted := f.opted(path)
	if len(opted) == 0 {
		f.Logger.Info("clear: no provider registered for extension", "path", path)
		return Result{Outcome: OutcomeSkipped, Reason: "Extension not registered in any provider"}, nil
	}

	providerErrors := f.fanOut(ctx, opted, func(ctx context.Context, p provider.Provider) error {
		return p.Clear(ctx, path, modified)
	})
	if len(providerErrors) > 0 {
		return Result{}, errs.Wrap(errs.KindStore, "one or more providers failed to clear", joinedErr(providerErrors)).
			WithDetail("providers", strings.Join(keysOf(providerErrors), ","))
	}
	return Result{Outcome: OutcomeIndexed}, nil
}

// fanOut runs fn over every opted-in provider concurrently, downgrading
// Sequencing errors to an info log line and collecting every other error
// in a provider-name-keyed map.
func (f *FileIndexer) fanOut(ctx context.Context, opted []provider.Provider, fn func(context.Context, provider.Provider) error) map[string]error {
	type outcome struct {
		name string
		err  error
	}
	results := make([]outcome, len(opted))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range opted {
		i, p := i, p
		g.Go(func() error {
			results[i] = outcome{name: p.Name(), err: fn(gctx, p)}
			return nil // never abort siblings; every provider gets to run
		})
	}
	_ = g.Wait()

	providerErrors := make(map[string]error)
	for _, r := range results {
		if r.err == nil {
			continue
		}
		if errs.IsKind(r.err, errs.KindSequencing) {
			f.Logger.Info("sequencing no-op", "provider", r.name, "error", r.err)
			continue
		}
		providerErrors[r.name] = r.err
	}
	return providerErrors
}

// keysOf returns m's keys sorted so error reporting is deterministic
// within a single invocation, independent of map iteration order.
func keysOf(m map[string]error) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// joinedErr returns the error belonging to the alphabetically first
// failing provider, so repeated invocations over the same failure set
// report the same "first" error.
func joinedErr(m map[string]error) error {
	keys := keysOf(m)
	if len(keys) == 0 {
		return nil
	}
	return m[keys[0]]
}
