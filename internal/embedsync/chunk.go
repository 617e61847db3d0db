package embedsync

import "strings"

// Chunking defaults.
const (
	DefaultMaxChars = 2000
	DefaultOverlap  = 200
	DefaultMinChunk = 100
)

// Chunk is one piece of split entity content.
type Chunk struct {
	Index    int
	Content  string
	WasSplit bool
}

// ChunkOptions controls how oversized content is split.
type ChunkOptions struct {
	MaxChars int // character ceiling per chunk
	Overlap  int // characters shared between consecutive chunks
	MinChunk int // a trailing chunk smaller than this merges into the previous one
}

// withDefaults fills zero fields and clamps the overlap below MaxChars
// so splitting always makes progress.
func (o ChunkOptions) withDefaults() ChunkOptions {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap == 0 {
		o.Overlap = DefaultOverlap
	}
	if o.Overlap >= o.MaxChars {
		o.Overlap = o.MaxChars / 4
	}
	if o.MinChunk <= 0 {
		o.MinChunk = DefaultMinChunk
	}
	return o
}

// SplitContent splits content into overlapping chunks of at most
// MaxChars characters. Content at or below the ceiling yields exactly
// one chunk marked not split. Cut points prefer, in order: a paragraph
// break, a line break, a sentence end, a word boundary, then a hard cut.
func SplitContent(content string, opts ChunkOptions) []Chunk {
	opts = opts.withDefaults()

	if len(content) <= opts.MaxChars {
		return []Chunk{{Index: 0, Content: content, WasSplit: false}}
	}

	var chunks []Chunk
	start := 0
	for start < len(content) {
		end := start + opts.MaxChars
		if end >= len(content) {
			end = len(content)
		} else {
			end = cutPoint(content, start, end, opts)
		}

		piece := content[start:end]

		if end >= len(content) && len(chunks) > 0 && len(piece) < opts.MinChunk {
			// Tiny tail: merge into the previous chunk instead of
			// embedding it alone.
			prev := &chunks[len(chunks)-1]
			prevStart := start + opts.Overlap - len(prev.Content)
			if prevStart < 0 {
				prevStart = 0
			}
			prev.Content = content[prevStart:]
			break
		}

		chunks = append(chunks, Chunk{Index: len(chunks), Content: piece, WasSplit: true})
		if end >= len(content) {
			break
		}
		start = end - opts.Overlap
	}
	return chunks
}

// cutPoint finds the best split position in (floor, limit]. The floor
// keeps every cut strictly past the overlap so the next chunk advances.
func cutPoint(content string, start, limit int, opts ChunkOptions) int {
	floor := start + opts.Overlap + 1
	if min := start + opts.MinChunk; min > floor {
		floor = min
	}
	if floor >= limit {
		return limit
	}

	window := content[floor:limit]

	// Paragraph break
	if i := strings.LastIndex(window, "\n\n"); i >= 0 {
		return floor + i + 2
	}
	// Line break
	if i := strings.LastIndex(window, "\n"); i >= 0 {
		return floor + i + 1
	}
	// Sentence end
	for _, marker := range []string{". ", "! ", "? "} {
		if i := strings.LastIndex(window, marker); i >= 0 {
			return floor + i + len(marker)
		}
	}
	// Word boundary
	if i := strings.LastIndex(window, " "); i >= 0 {
		return floor + i + 1
	}
	// Hard cut
	return limit
}
