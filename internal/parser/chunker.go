package parser

import (
	"iter"
	"strings"
)

// ChunkConfig defines chunking parameters.
type ChunkConfig struct {
	// Size: maximum chunk length in characters
	Size int
	// Overlap: character overlap between adjacent chunks
	Overlap int
}

// DefaultChunkConfig returns sensible defaults.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		Size:    800,
		Overlap: 100,
	}
}

// boundaryWindow is how far back from the hard size limit the splitter
// looks for a sentence or word boundary before cutting mid-word.
const boundaryWindow = 100

// Split lazily yields the chunks of text under the given config.
//
// Every chunk is at most cfg.Size characters, except that the final chunk
// absorbs whatever remains. Adjacent chunks share up to cfg.Overlap trailing
// and leading characters, and cut points prefer sentence ends, then
// whitespace, inside the look-back window. Chunks are raw slices of the
// input, so the sequence is deterministic and the de-overlapped
// concatenation reproduces the original text. Empty or whitespace-only
// input yields nothing. The sequence can be ranged over more than once.
func Split(text string, cfg ChunkConfig) iter.Seq[string] {
	size := cfg.Size
	if size <= 0 {
		size = DefaultChunkConfig().Size
	}
	overlap := cfg.Overlap
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	return func(yield func(string) bool) {
		if strings.TrimSpace(text) == "" {
			return
		}

		pos := 0
		for pos < len(text) {
			if len(text)-pos <= size {
				yield(text[pos:])
				return
			}

			cut := findCut(text, pos, pos+size)
			if !yield(text[pos:cut]) {
				return
			}

			next := overlapStart(text, cut, overlap)
			if next <= pos {
				// Guarantee forward progress when the overlap would
				// swallow the whole previous chunk.
				next = cut
			}
			pos = next
		}
	}
}

// SplitAll collects Split into a slice.
func SplitAll(text string, cfg ChunkConfig) []string {
	var chunks []string
	for chunk := range Split(text, cfg) {
		chunks = append(chunks, chunk)
	}
	return chunks
}

// findCut picks the end of the chunk that starts at start, given the hard
// limit. Sentence endings win over plain whitespace; a mid-word hard cut is
// the last resort when the look-back window holds no boundary at all.
func findCut(text string, start, limit int) int {
	window := limit - boundaryWindow
	if window <= start {
		// Never produce an empty chunk
		window = start + 1
	}
	region := text[window:limit]

	best := -1
	for _, sep := range []string{". ", "! ", "? ", "\n"} {
		if idx := strings.LastIndex(region, sep); idx >= 0 && idx+len(sep) > best {
			best = idx + len(sep)
		}
	}
	if best > 0 {
		return window + best
	}

	if idx := strings.LastIndexByte(region, ' '); idx >= 0 {
		return window + idx + 1
	}
	return limit
}

// overlapStart returns where the next chunk begins: overlap characters
// before the cut, advanced to the next word boundary so no chunk starts
// mid-word. Returns cut (no overlap) when the region is a single unbroken
// word.
func overlapStart(text string, cut, overlap int) int {
	if overlap <= 0 {
		return cut
	}
	next := cut - overlap
	if next < 0 {
		next = 0
	}
	if next > 0 && !isSpace(text[next-1]) {
		if idx := strings.IndexAny(text[next:cut], " \t\n"); idx >= 0 {
			next += idx + 1
		} else {
			next = cut
		}
	}
	return next
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n'
}
