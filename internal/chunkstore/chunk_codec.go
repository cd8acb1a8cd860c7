package chunkstore

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Aman-CERP/fetchgo/internal/schema"
)

// ChunkCodec adapts schema.Chunk to the generic Store, one instance per
// embedding table (siglip2_chunkfile dimension 768, gemma_chunkfile
// dimension 768) since the two share row schema except for the vector
// column's source model.
type ChunkCodec struct {
	VectorLength int
}

var _ Codec[schema.Chunk] = ChunkCodec{}

func (ChunkCodec) Columns() []Column {
	return []Column{
		{Name: "original_file", Type: ColumnText},
		{Name: "chunk_channel", Type: ColumnText},
		{Name: "chunk_sequence_id", Type: ColumnReal},
		{Name: "chunkfile", Type: ColumnText},
		{Name: "chunk_type", Type: ColumnText},
		{Name: "chunk_length", Type: ColumnReal},
		{Name: "original_file_creation_date", Type: ColumnInteger},
		{Name: "original_file_modified_date", Type: ColumnInteger},
		{Name: "original_file_size", Type: ColumnInteger},
		{Name: "original_file_tags", Type: ColumnText},
		{Name: "embedding", Type: ColumnBlob},
	}
}

func (ChunkCodec) FilterableAttributes() map[string]bool {
	out := make(map[string]bool, len(schema.FilterableAttributes))
	for k, v := range schema.FilterableAttributes {
		out[k] = v
	}
	return out
}

func (ChunkCodec) FTSAttributes() map[string]bool {
	out := make(map[string]bool, len(schema.FTSAttributes))
	for k, v := range schema.FTSAttributes {
		out[k] = v
	}
	return out
}

func (c ChunkCodec) Dimension() int { return c.VectorLength }

func (ChunkCodec) KeyOf(row schema.Chunk) (string, error) { return row.Key() }

func (ChunkCodec) SequenceNumberOf(row schema.Chunk) uint64 { return row.SequenceNumber() }

func (ChunkCodec) VectorOf(row schema.Chunk) []float32 { return row.Embedding }

func (ChunkCodec) FTSContentOf(row schema.Chunk) string {
	return row.OriginalFile + " " + row.FullText()
}

func (c ChunkCodec) ValuesOf(row schema.Chunk) (map[string]any, error) {
	tags, err := json.Marshal(row.OriginalFileTags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	var embedBuf bytes.Buffer
	if len(row.Embedding) > 0 {
		if err := gob.NewEncoder(&embedBuf).Encode(row.Embedding); err != nil {
			return nil, fmt.Errorf("encode embedding: %w", err)
		}
	}
	return map[string]any{
		"original_file":                row.OriginalFile,
		"chunk_channel":                row.ChunkChannel,
		"chunk_sequence_id":            row.ChunkSequenceID,
		"chunkfile":                    row.Chunkfile,
		"chunk_type":                   string(row.ChunkType),
		"chunk_length":                 row.ChunkLength,
		"original_file_creation_date":  row.OriginalFileCreationDate.UnixMilli(),
		"original_file_modified_date":  row.OriginalFileModifiedDate.UnixMilli(),
		"original_file_size":           int64(row.OriginalFileSize),
		"original_file_tags":           string(tags),
		"embedding":                    embedBuf.Bytes(),
	}, nil
}

func (c ChunkCodec) FromRow(key string, seq uint64, values map[string]any) (schema.Chunk, error) {
	_ = seq // recoverable from original_file_modified_date

	chunk := schema.Chunk{}
	chunk.OriginalFile, _ = asString(values["original_file"])
	chunk.ChunkChannel, _ = asString(values["chunk_channel"])
	chunk.ChunkSequenceID = float32(asFloat(values["chunk_sequence_id"]))
	chunk.Chunkfile, _ = asString(values["chunkfile"])
	ct, _ := asString(values["chunk_type"])
	chunk.ChunkType = schema.ChunkType(ct)
	chunk.ChunkLength = float32(asFloat(values["chunk_length"]))
	chunk.OriginalFileCreationDate = time.UnixMilli(asInt(values["original_file_creation_date"])).UTC()
	chunk.OriginalFileModifiedDate = time.UnixMilli(asInt(values["original_file_modified_date"])).UTC()
	chunk.OriginalFileSize = uint64(asInt(values["original_file_size"]))

	if tagsStr, ok := asString(values["original_file_tags"]); ok && tagsStr != "" {
		var tags map[string]any
		if err := json.Unmarshal([]byte(tagsStr), &tags); err != nil {
			return chunk, fmt.Errorf("unmarshal tags: %w", err)
		}
		chunk.OriginalFileTags = tags
	}

	if blob, ok := values["embedding"].([]byte); ok && len(blob) > 0 {
		var vec []float32
		if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&vec); err != nil {
			return chunk, fmt.Errorf("decode embedding: %w", err)
		}
		chunk.Embedding = vec
	}

	return chunk, nil
}

func asString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []byte:
		return string(t), true
	case nil:
		return "", false
	default:
		return fmt.Sprintf("%v", t), true
	}
}

func asFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int64:
		return float64(t)
	case []byte:
		var f float64
		fmt.Sscanf(string(t), "%g", &f)
		return f
	default:
		return 0
	}
}

func asInt(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	case []byte:
		var i int64
		fmt.Sscanf(string(t), "%d", &i)
		return i
	default:
		return 0
	}
}
