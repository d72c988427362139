// Package chunker divides source files into overlapping, line-addressed
// segments sized for embedding.
//
// # Basic Usage
//
//	c := chunker.New()
//	for _, seg := range c.Split(text) {
//	    fmt.Printf("lines %d-%d: %d chars\n", seg.StartLine, seg.EndLine, len(seg.Text))
//	}
//
// ChunkFile does the same and assigns the deterministic chunk IDs used as
// vector store keys:
//
//	chunks := c.ChunkFile("src/main.py", text, info.ModTime())
//	// chunks[0].ID == "src/main.py:0"
//
// # Chunking Strategy
//
// Lines are accumulated until the next line would push the buffer past the
// character budget (1200 by default). The buffer is then emitted and the next
// chunk is seeded with the most recent lines that fit in the overlap budget
// (120 characters by default), so neighbouring chunks share a short region.
//
// Properties:
//   - boundaries always fall between lines
//   - every input line is part of at least one segment
//   - a single line longer than the budget becomes its own segment
//   - output is deterministic for a given input and budget
package chunker
