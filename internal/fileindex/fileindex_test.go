package fileindex

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/provider"
)

type fakeProvider struct {
	name    string
	exts    map[string]bool
	indexFn func(ctx context.Context, path string, modified *time.Time) error
	clearFn func(ctx context.Context, path string, modified *time.Time) error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) ProvidesIndexingForExtension(ext string) bool { return f.exts[ext] }

func (f *fakeProvider) Index(ctx context.Context, path string, modified *time.Time) error {
	if f.indexFn == nil {
		return nil
	}
	return f.indexFn(ctx, path, modified)
}

func (f *fakeProvider) Clear(ctx context.Context, path string, modified *time.Time) error {
	if f.clearFn == nil {
		return nil
	}
	return f.clearFn(ctx, path, modified)
}

func (f *fakeProvider) QueryN(ctx context.Context, text string, limit, offset int) ([]provider.ChunkQueryResult, error) {
	return nil, nil
}

func newFake(name string, exts ...string) *fakeProvider {
	set := make(map[string]bool, len(exts))
	for _, e := range exts {
		set[e] = true
	}
	return &fakeProvider{name: name, exts: set}
}

func TestIndexSkipsWhenNoProviderOpted(t *testing.T) {
	fi := New([]provider.Provider{newFake("image", ".webp")}, slog.Default())
	res, err := fi.Index(context.Background(), "/a/b.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
	assert.NotEmpty(t, res.Reason)
}

func TestIndexSucceedsWhenAllProvidersSucceed(t *testing.T) {
	a := newFake("a", ".png")
	b := newFake("b", ".png")
	fi := New([]provider.Provider{a, b}, slog.Default())
	res, err := fi.Index(context.Background(), "/a/b.png", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, res.Outcome)
}

func TestIndexDowngradesSequencingErrorsToNoOp(t *testing.T) {
	a := newFake("a", ".png")
	a.indexFn = func(ctx context.Context, path string, modified *time.Time) error {
		return errs.New(errs.KindSequencing, "stale write")
	}
	fi := New([]provider.Provider{a}, slog.Default())
	res, err := fi.Index(context.Background(), "/a/b.png", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIndexed, res.Outcome)
}

func TestIndexCollectsNonSequencingErrorsFromAllProviders(t *testing.T) {
	a := newFake("a", ".png")
	a.indexFn = func(ctx context.Context, path string, modified *time.Time) error {
		return errors.New("a failed")
	}
	b := newFake("b", ".png")
	b.indexFn = func(ctx context.Context, path string, modified *time.Time) error {
		return errors.New("b failed")
	}
	fi := New([]provider.Provider{a, b}, slog.Default())
	_, err := fi.Index(context.Background(), "/a/b.png", nil)
	require.Error(t, err)
	// Both providers ran: neither was cancelled by the other's failure.
	assert.Contains(t, err.Error(), "one or more providers failed to index")
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "a,b", e.Details["providers"])
}

func TestJoinedErrIsDeterministicAcrossMapOrder(t *testing.T) {
	errA := errors.New("a failed")
	errZ := errors.New("z failed")
	m := map[string]error{"z-provider": errZ, "a-provider": errA}

	for i := 0; i < 20; i++ {
		got := joinedErr(m)
		assert.Same(t, errA, got, "joinedErr must always pick the alphabetically first provider")
	}
}

func TestKeysOfSorted(t *testing.T) {
	m := map[string]error{"zeta": errors.New("x"), "alpha": errors.New("y"), "mid": errors.New("z")}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, keysOf(m))
}

func TestKeysOfEmpty(t *testing.T) {
	assert.Nil(t, joinedErr(map[string]error{}))
	assert.Empty(t, keysOf(map[string]error{}))
}

func TestClearSkipsUnregisteredExtension(t *testing.T) {
	fi := New([]provider.Provider{newFake("image", ".webp")}, slog.Default())
	res, err := fi.Clear(context.Background(), "/a/b.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}
