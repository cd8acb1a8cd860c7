package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyDeterministic(t *testing.T) {
	k1, err := Key("/a/b.png", "image", 0)
	require.NoError(t, err)
	k2, err := Key("/a/b.png", "image", 0)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	k3, err := Key("/a/b.png", "text", 0)
	require.NoError(t, err)
	assert.NotEqual(t, k1, k3)
}

func TestChunkKeyMatchesFreeFunction(t *testing.T) {
	c := &Chunk{OriginalFile: "/a/b.pdf", ChunkChannel: "text", ChunkSequenceID: 2}
	want, err := Key("/a/b.pdf", "text", 2)
	require.NoError(t, err)
	got, err := c.Key()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSequenceNumberMonotonicWithModifiedDate(t *testing.T) {
	earlier := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Hour)
	assert.Less(t, SequenceNumber(earlier), SequenceNumber(later))
}

func TestSequenceNumberClampsNegative(t *testing.T) {
	before1970 := time.Date(1960, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, uint64(0), SequenceNumber(before1970))
}

func TestChunkSequenceNumberDerivesFromModifiedDate(t *testing.T) {
	mod := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Chunk{OriginalFileModifiedDate: mod}
	assert.Equal(t, SequenceNumber(mod), c.SequenceNumber())
}

func TestFullTextReadsTag(t *testing.T) {
	c := &Chunk{OriginalFileTags: map[string]any{"full_text": "hello world"}}
	assert.Equal(t, "hello world", c.FullText())

	empty := &Chunk{}
	assert.Equal(t, "", empty.FullText())

	wrongType := &Chunk{OriginalFileTags: map[string]any{"full_text": 5}}
	assert.Equal(t, "", wrongType.FullText())
}

func TestFilterableAndFTSAttributeSets(t *testing.T) {
	for _, attr := range []string{"original_file", "original_file_creation_date", "original_file_modified_date", "original_file_size"} {
		assert.True(t, FilterableAttributes[attr], attr)
	}
	assert.False(t, FilterableAttributes["embedding"])

	for _, attr := range []string{"original_file", "original_file_tags"} {
		assert.True(t, FTSAttributes[attr], attr)
	}
}
