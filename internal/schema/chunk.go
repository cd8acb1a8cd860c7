// Package schema defines the chunk row shape, its composite key encoding,
// and the filter AST shared by every chunk store table.
package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChunkType drives embedder selection for a chunk.
type ChunkType string

const (
	ChunkTypeText  ChunkType = "text"
	ChunkTypeImage ChunkType = "image"
	ChunkTypeVideo ChunkType = "video"
	ChunkTypeAudio ChunkType = "audio"
)

// Chunk is the primary chunk record, mirroring the columnar row schema
// shared by every chunk table (siglip2_chunkfile, gemma_chunkfile).
type Chunk struct {
	OriginalFile    string
	ChunkChannel    string
	ChunkSequenceID float32

	Chunkfile string
	ChunkType ChunkType
	// ChunkLength is the fraction in (0,1] of the source file this chunk
	// represents.
	ChunkLength float32

	OriginalFileCreationDate time.Time
	OriginalFileModifiedDate time.Time
	OriginalFileSize         uint64
	OriginalFileTags         map[string]any

	Embedding []float32
}

// Key returns the JSON-array-encoded composite key
// (original_file, chunk_channel, chunk_sequence_id).
func Key(originalFile, chunkChannel string, chunkSequenceID float32) (string, error) {
	b, err := json.Marshal([]any{originalFile, chunkChannel, chunkSequenceID})
	if err != nil {
		return "", fmt.Errorf("encode key: %w", err)
	}
	return string(b), nil
}

// Key returns this chunk's composite key.
func (c *Chunk) Key() (string, error) {
	return Key(c.OriginalFile, c.ChunkChannel, c.ChunkSequenceID)
}

// SequenceNumber returns the chunk's sequence number: the source file's
// last-modified time in milliseconds, cast unsigned.
func (c *Chunk) SequenceNumber() uint64 {
	return SequenceNumber(c.OriginalFileModifiedDate)
}

// SequenceNumber converts a modified-date into the sequence number used to
// gate overwrites.
func SequenceNumber(modified time.Time) uint64 {
	ms := modified.UnixMilli()
	if ms < 0 {
		return 0
	}
	return uint64(ms)
}

// FullText returns the "full_text" tag, if present, used by FTS indexing.
func (c *Chunk) FullText() string {
	if c.OriginalFileTags == nil {
		return ""
	}
	v, ok := c.OriginalFileTags["full_text"]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Relation is a filter comparison operator.
type Relation string

const (
	RelationLess    Relation = "<"
	RelationEqual   Relation = "="
	RelationGreater Relation = ">"
)

// Filter is one ANDed condition in a filter query:
// (attribute, relation, value).
type Filter struct {
	Attribute string
	Relation  Relation
	Value     any // string, int64, float64, or time.Time
}

// Filterable and FTS column sets shared by every chunk table, per the
// external interface contract.
var (
	FilterableAttributes = map[string]bool{
		"original_file":                true,
		"original_file_creation_date":  true,
		"original_file_modified_date":  true,
		"original_file_size":           true,
	}
	FTSAttributes = map[string]bool{
		"original_file":      true,
		"original_file_tags": true,
	}
)
