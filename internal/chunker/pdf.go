package chunker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/Aman-CERP/fetchgo/internal/errs"
	"github.com/Aman-CERP/fetchgo/internal/schema"
	"github.com/Aman-CERP/fetchgo/internal/workpool"
)

// wordsPerPartition is the token budget used to compute a page's partition
// divisor: divisor = floor(tokens/1000) + 1.
const wordsPerPartition = 1000

// PDFChunker extracts per-page text (partitioned when a page exceeds the
// token budget) and every embedded image object, in document order.
type PDFChunker struct {
	Pool *workpool.Pool
}

func (c *PDFChunker) SupportedExtensions() []string { return []string{".pdf"} }

func (c *PDFChunker) Chunk(ctx context.Context, path string, meta FileMeta, chunkDir string) ([]schema.Chunk, error) {
	subdir, err := EnsureSubdir(chunkDir, path)
	if err != nil {
		return nil, errs.Wrap(errs.KindIO, "create chunk subdir", err)
	}

	var chunks []schema.Chunk
	err = c.Pool.Run(ctx, func(ctx context.Context) error {
		f, r, err := pdf.Open(path)
		if err != nil {
			return fmt.Errorf("open pdf: %w", err)
		}
		defer f.Close()

		numPages := r.NumPage()
		for pageIndex := 1; pageIndex <= numPages; pageIndex++ {
			page := r.Page(pageIndex)
			if page.V.IsNull() {
				continue
			}
			pageNum := float32(pageIndex - 1)

			textChunks, err := chunkPageText(page, pageNum, path, meta, subdir)
			if err != nil {
				return fmt.Errorf("page %d text: %w", pageIndex, err)
			}
			chunks = append(chunks, textChunks...)

			imageChunks, err := chunkPageImages(page, pageNum, path, meta, subdir)
			if err != nil {
				return fmt.Errorf("page %d images: %w", pageIndex, err)
			}
			chunks = append(chunks, imageChunks...)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindChunking, fmt.Sprintf("parse %s", path), err)
	}

	return chunks, nil
}

// chunkPageText splits one page's text into `divisor` contiguous
// whitespace-token partitions, per the PDF chunker's partitioning formula.
func chunkPageText(page pdf.Page, pageNum float32, path string, meta FileMeta, subdir string) ([]schema.Chunk, error) {
	text, err := page.GetPlainText(nil)
	if err != nil {
		return nil, nil // a page with no extractable text contributes no text chunks
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	tokens := strings.Fields(text)
	divisor := len(tokens)/wordsPerPartition + 1
	tokenTarget := int(math.Ceil(float64(len(tokens)) / float64(divisor)))
	if tokenTarget < 1 {
		tokenTarget = 1
	}

	chunks := make([]schema.Chunk, 0, divisor)
	for i := 0; i < divisor; i++ {
		start := i * tokenTarget
		if start >= len(tokens) {
			break
		}
		end := start + tokenTarget
		if end > len(tokens) {
			end = len(tokens)
		}
		partition := strings.Join(tokens[start:end], " ")

		seq := pageNum + float32(i)/float32(divisor)
		outPath := filepath.Join(subdir, fmt.Sprintf("text-%s.txt", formatSeq(seq)))
		if err := writeText(outPath, partition); err != nil {
			return nil, err
		}

		chunks = append(chunks, schema.Chunk{
			OriginalFile:             path,
			ChunkChannel:             "text",
			ChunkSequenceID:          seq,
			Chunkfile:                outPath,
			ChunkType:                schema.ChunkTypeText,
			ChunkLength:              1.0 / float32(divisor),
			OriginalFileCreationDate: meta.CreationDate,
			OriginalFileModifiedDate: meta.ModifiedDate,
			OriginalFileSize:         meta.Size,
			OriginalFileTags:         map[string]any{"full_text": partition},
		})
	}
	return chunks, nil
}

// chunkPageImages extracts every embedded image XObject from a page's
// resource dictionary, in document order.
func chunkPageImages(page pdf.Page, pageNum float32, path string, meta FileMeta, subdir string) ([]schema.Chunk, error) {
	names := pageImageNames(page)
	k := len(names)
	if k == 0 {
		return nil, nil
	}

	chunks := make([]schema.Chunk, 0, k)
	for j, name := range names {
		img, err := decodeXObjectImage(page, name)
		if err != nil || img == nil {
			// a single malformed image object does not fail the whole page
			continue
		}
		resized := resizeLongestSide(img, maxImageSide)

		seq := pageNum + float32(j)/float32(k)
		outPath := filepath.Join(subdir, fmt.Sprintf("image-%s.webp", formatSeq(seq)))
		if err := writeWebP(resized, outPath); err != nil {
			return nil, err
		}

		chunks = append(chunks, schema.Chunk{
			OriginalFile:             path,
			ChunkChannel:             "image",
			ChunkSequenceID:          seq,
			Chunkfile:                outPath,
			ChunkType:                schema.ChunkTypeImage,
			ChunkLength:              1.0 / float32(k),
			OriginalFileCreationDate: meta.CreationDate,
			OriginalFileModifiedDate: meta.ModifiedDate,
			OriginalFileSize:         meta.Size,
		})
	}
	return chunks, nil
}

// pageImageNames returns the XObject resource names of a page's image
// objects, in resource-dictionary order.
func pageImageNames(page pdf.Page) []string {
	resources := page.V.Key("Resources")
	if resources.IsNull() {
		return nil
	}
	xobjects := resources.Key("XObject")
	if xobjects.IsNull() {
		return nil
	}

	var names []string
	for _, key := range xobjects.Keys() {
		obj := xobjects.Key(key)
		if obj.Key("Subtype").Name() == "Image" {
			names = append(names, key)
		}
	}
	return names
}

// decodeXObjectImage decodes one image XObject. JPEG-filtered
// (DCTDecode) streams decode directly; other color spaces are
// reconstructed from raw decoded samples.
func decodeXObjectImage(page pdf.Page, name string) (image.Image, error) {
	obj := page.V.Key("Resources").Key("XObject").Key(name)
	width := int(obj.Key("Width").Int64())
	height := int(obj.Key("Height").Int64())
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image dimensions")
	}

	reader := obj.Reader()
	if reader == nil {
		return nil, fmt.Errorf("no stream reader for %s", name)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("read image stream: %w", err)
	}

	if filterIsJPEG(obj) {
		img, _, err := decodeJPEGBytes(buf.Bytes())
		return img, err
	}

	return reconstructRawImage(buf.Bytes(), width, height, colorComponents(obj))
}

func filterIsJPEG(obj pdf.Value) bool {
	filter := obj.Key("Filter")
	if filter.Kind() == pdf.Name && filter.Name() == "DCTDecode" {
		return true
	}
	if filter.Kind() == pdf.Array {
		for i := 0; i < filter.Len(); i++ {
			if filter.Index(i).Name() == "DCTDecode" {
				return true
			}
		}
	}
	return false
}

func colorComponents(obj pdf.Value) int {
	switch obj.Key("ColorSpace").Name() {
	case "DeviceGray":
		return 1
	case "DeviceCMYK":
		return 4
	default:
		return 3 // DeviceRGB and unrecognized spaces default to RGB
	}
}

func reconstructRawImage(raw []byte, width, height, components int) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	stride := width * components
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			offset := y*stride + x*components
			if offset+components > len(raw) {
				continue
			}
			var r, g, b byte
			switch components {
			case 1:
				r, g, b = raw[offset], raw[offset], raw[offset]
			case 4:
				c, m, ye, kk := raw[offset], raw[offset+1], raw[offset+2], raw[offset+3]
				r = 255 - min8(255, c+kk)
				g = 255 - min8(255, m+kk)
				b = 255 - min8(255, ye+kk)
			default:
				r, g, b = raw[offset], raw[offset+1], raw[offset+2]
			}
			img.Set(x, y, colorRGBA{r, g, b, 255})
		}
	}
	return img, nil
}

func min8(a, b byte) byte {
	if int(a)+int(b) > 255 {
		return 255
	}
	return a + b
}

// formatSeq renders a chunk_sequence_id for filenames, trimming trailing
// zeros so integer page indices stay short (e.g. "2" not "2.000000").
func formatSeq(seq float32) string {
	return strconv.FormatFloat(float64(seq), 'f', -1, 32)
}
