package chunker

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dshills/semindex/pkg/types"
)

const (
	// DefaultMaxChars is the target character budget per chunk
	DefaultMaxChars = 1200

	// DefaultOverlapChars is the character budget carried over between chunks
	DefaultOverlapChars = 120
)

// Segment is a line-bounded slice of a text
type Segment struct {
	Text      string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
}

// Chunker splits file contents into overlapping, line-addressed segments
type Chunker struct {
	maxChars     int
	overlapChars int
}

// New creates a Chunker with the default budgets
func New() *Chunker {
	return NewWithBudget(DefaultMaxChars, DefaultOverlapChars)
}

// NewWithBudget creates a Chunker with explicit budgets.
// Invalid values fall back to the defaults; overlap is kept below the chunk budget.
func NewWithBudget(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 10
	}
	return &Chunker{maxChars: maxChars, overlapChars: overlapChars}
}

// Split divides text into segments of roughly maxChars characters.
// Every line appears in at least one segment and boundaries never split a line.
func (c *Chunker) Split(text string) []Segment {
	lines := SplitLines(text)
	segments := make([]Segment, 0)

	var buffer []string
	charCount := 0
	startLine := 1

	for i, line := range lines {
		lineNo := i + 1
		lineLen := utf8.RuneCountInString(line)

		if charCount+lineLen > c.maxChars && len(buffer) > 0 {
			segments = append(segments, Segment{
				Text:      strings.Join(buffer, "\n"),
				StartLine: startLine,
				EndLine:   lineNo - 1,
			})

			keep := c.overlapLines(buffer)
			buffer = append([]string(nil), buffer[len(buffer)-keep:]...)
			charCount = countChars(buffer)
			startLine = lineNo - keep
		}

		buffer = append(buffer, line)
		charCount += lineLen
	}

	if len(buffer) > 0 {
		segments = append(segments, Segment{
			Text:      strings.Join(buffer, "\n"),
			StartLine: startLine,
			EndLine:   len(lines),
		})
	}

	return segments
}

// overlapLines returns how many trailing lines of buffer fit in the overlap budget.
// At least one line is always dropped so consecutive segments advance.
func (c *Chunker) overlapLines(buffer []string) int {
	keep := 0
	total := 0
	for i := len(buffer) - 1; i > 0; i-- {
		n := utf8.RuneCountInString(buffer[i])
		if total+n > c.overlapChars {
			break
		}
		total += n
		keep++
	}
	return keep
}

// ChunkFile splits a file's text into chunks addressed by relPath.
// Whitespace-only segments carry nothing to embed and are dropped; chunk
// indexes stay dense over the remaining segments.
func (c *Chunker) ChunkFile(relPath, text string, modTime time.Time) []types.Chunk {
	segments := c.Split(text)
	chunks := make([]types.Chunk, 0, len(segments))
	for _, seg := range segments {
		if strings.TrimSpace(seg.Text) == "" {
			continue
		}
		chunks = append(chunks, types.Chunk{
			ID:         types.ChunkID(relPath, len(chunks)),
			Text:       seg.Text,
			StartLine:  seg.StartLine,
			EndLine:    seg.EndLine,
			SourceFile: relPath,
			ModifiedAt: modTime,
		})
	}
	return chunks
}

// SplitLines splits text on \n, \r\n and \r. A trailing line break does not
// produce an extra empty line and empty input yields no lines.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSuffix(text, "\n")
	return strings.Split(text, "\n")
}

func countChars(lines []string) int {
	n := 0
	for _, l := range lines {
		n += utf8.RuneCountInString(l)
	}
	return n
}
