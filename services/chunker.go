package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"rag-knowledge-platform/models"
	"rag-knowledge-platform/utils"
)

// Chunker splits extracted document text into overlapping fragments bounded
// by a target size. Boundaries prefer paragraph breaks, then sentence ends,
// then word breaks, then a raw character cut. Chunk text is always an exact
// substring of the input, so stripping the overlap regions and concatenating
// reconstructs the input.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker validates the chunking configuration. Overlap must be strictly
// less than the chunk size.
func NewChunker(chunkSize, chunkOverlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, utils.E(utils.KindConfig, "chunk size must be positive", nil)
	}
	if chunkOverlap < 0 {
		return nil, utils.E(utils.KindConfig, "chunk overlap cannot be negative", nil)
	}
	if chunkOverlap >= chunkSize {
		return nil, utils.E(utils.KindConfig, "chunk overlap must be strictly less than chunk size", nil)
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
}

// Chunk splits text into ordered chunks. Empty or whitespace-only input
// yields zero chunks and no error. Output is deterministic for identical
// input and configuration.
func (c *Chunker) Chunk(text string) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []models.Chunk
	start := 0

	for start < len(text) {
		end := c.cutPoint(text, start)

		fragment := text[start:end]
		chunks = append(chunks, models.Chunk{
			Index:     len(chunks),
			Text:      fragment,
			StartChar: start,
			EndChar:   end,
			CharCount: len(fragment),
			WordCount: len(strings.Fields(fragment)),
		})

		if end >= len(text) {
			break
		}

		next := runeFloor(text, end-c.chunkOverlap)
		if next <= start {
			// boundary produced a fragment shorter than the overlap;
			// continue without overlap rather than stall
			next = end
		}
		start = next
	}

	return chunks
}

// cutPoint returns the end offset for the chunk starting at start.
func (c *Chunker) cutPoint(text string, start int) int {
	limit := start + c.chunkSize
	if limit >= len(text) {
		return len(text)
	}

	window := text[start:limit]
	// A cut in the first half of the window would produce degenerate
	// fragments, so boundaries are only honored past the midpoint.
	minCut := c.chunkSize / 2

	if idx := strings.LastIndex(window, "\n\n"); idx > minCut {
		return start + idx + 2
	}

	for i := len(window) - 2; i > minCut; i-- {
		ch := window[i]
		if (ch == '.' || ch == '!' || ch == '?' || ch == '\n') && isSpace(window[i+1]) {
			return start + i + 1
		}
	}

	if idx := strings.LastIndexByte(window, ' '); idx > minCut {
		return start + idx + 1
	}

	// A raw cut at the size limit may land inside a multibyte rune; back
	// it off so chunk text stays valid UTF-8.
	if cut := runeFloor(text, limit); cut > start {
		return cut
	}
	_, n := utf8.DecodeRuneInString(text[start:])
	return start + n
}

// runeFloor backs i off to the nearest rune start at or before it.
func runeFloor(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}

var (
	horizontalWS = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n{3,}`)
	spacedLines  = regexp.MustCompile(`[ \t]*\n[ \t]*`)
)

// CleanText normalizes extracted text before chunking: horizontal
// whitespace runs collapse to single spaces, blank-line runs collapse to
// one paragraph break, and the result is trimmed. Idempotent.
func CleanText(text string) string {
	text = spacedLines.ReplaceAllString(text, "\n")
	text = horizontalWS.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
