package vector

import "sort"

// ChunkSpec is one character-window slice of a document's text, not yet
// embedded or persisted.
type ChunkSpec struct {
	ChunkIndex int
	Text       string
	Section    string
}

// Chunker splits a document's detected sections into fixed-size,
// overlapping character windows, generalized from the teacher pack's
// word-windowed Chunker to the character-based, section-aware scheme
// spec.md §4.4 specifies.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap, in
// characters (defaults to the spec's 500/50 when non-positive or when
// overlap is not smaller than size).
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 500
	}
	if overlap < 0 || overlap >= size {
		overlap = 50
	}
	return &Chunker{size: size, overlap: overlap}
}

// Chunk splits sections into contiguous, section-respecting chunks. Section
// order is stabilized alphabetically by name so repeated calls against the
// same sections map produce identical chunk indices, matching the
// idempotent-reprocess invariant.
func (c *Chunker) Chunk(sections map[string]string) []ChunkSpec {
	names := make([]string, 0, len(sections))
	for name := range sections {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []ChunkSpec
	index := 0
	step := c.size - c.overlap
	if step <= 0 {
		step = 1
	}

	for _, name := range names {
		text := sections[name]
		if text == "" {
			continue
		}
		for i := 0; i < len(text); i += step {
			end := i + c.size
			if end > len(text) {
				end = len(text)
			}
			out = append(out, ChunkSpec{
				ChunkIndex: index,
				Text:       text[i:end],
				Section:    name,
			})
			index++
			if end >= len(text) {
				break
			}
		}
	}
	return out
}
