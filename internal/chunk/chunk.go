// Package chunk splits text into bounded, overlapping segments for embedding
// and retrieval.
//
// The splitter works on paragraph boundaries first, so a chunk usually holds
// whole paragraphs. Adjacent chunks share a trailing overlap of the previous
// chunk to avoid losing context at the boundary. Paragraphs larger than the
// chunk size are split again on sentence boundaries, without overlap.
package chunk

import (
	"maps"
	"strings"
	"unicode/utf8"
)

// Defaults used when a Splitter field is zero.
const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

// Chunk is one bounded text segment with its source metadata.
type Chunk struct {
	Content  string
	Metadata map[string]string
}

// Splitter segments text into chunks of at most Size characters with Overlap
// characters of lexical overlap between neighbours.
type Splitter struct {
	Size    int
	Overlap int
}

// NewSplitter creates a Splitter. Non-positive size or negative overlap fall
// back to the defaults.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Splitter{Size: size, Overlap: overlap}
}

// Split segments text into chunks. Whitespace-only input yields no chunks.
// Each chunk receives its own copy of metadata, so later mutation by the
// caller cannot affect chunks already produced.
func (s *Splitter) Split(text string, metadata map[string]string) []Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var chunks []Chunk
	var current string

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if len(current)+len(paragraph) > s.Size {
			if strings.TrimSpace(current) != "" {
				chunks = append(chunks, s.newChunk(current, metadata))
			}

			if len(paragraph) > s.Size {
				chunks = append(chunks, s.splitSentences(paragraph, metadata)...)
				current = ""
			} else if overlap := s.tail(current); overlap != "" {
				current = overlap + "\n\n" + paragraph
			} else {
				current = paragraph
			}
			continue
		}

		if current != "" {
			current += "\n\n" + paragraph
		} else {
			current = paragraph
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, s.newChunk(current, metadata))
	}
	return chunks
}

// splitSentences handles a paragraph that alone exceeds the chunk size by
// accumulating sentences, without overlap. A single sentence longer than the
// chunk size is emitted as-is.
func (s *Splitter) splitSentences(text string, metadata map[string]string) []Chunk {
	sentences := strings.Split(strings.ReplaceAll(text, ". ", ".\n"), "\n")

	var chunks []Chunk
	var current string

	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if len(current)+len(sentence) > s.Size {
			if strings.TrimSpace(current) != "" {
				chunks = append(chunks, s.newChunk(current, metadata))
			}
			current = sentence
			continue
		}

		if current != "" {
			current += " " + sentence
		} else {
			current = sentence
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, s.newChunk(current, metadata))
	}
	return chunks
}

// tail returns the trailing Overlap bytes of text, advanced to a rune
// boundary. Text no longer than the overlap produces no tail: overlap only
// makes sense when the flushed chunk had content beyond it.
func (s *Splitter) tail(text string) string {
	if len(text) <= s.Overlap {
		return ""
	}
	t := text[len(text)-s.Overlap:]
	for len(t) > 0 && !utf8.RuneStart(t[0]) {
		t = t[1:]
	}
	return t
}

func (s *Splitter) newChunk(content string, metadata map[string]string) Chunk {
	return Chunk{
		Content:  strings.TrimSpace(content),
		Metadata: maps.Clone(metadata),
	}
}
