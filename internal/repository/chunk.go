package repository

import "strings"

const (
	// chunkMaxLines caps a chunk by line count.
	chunkMaxLines = 100
	// chunkMaxBytes caps a chunk by size; a single oversized line still
	// becomes its own chunk rather than being dropped.
	chunkMaxBytes = 4096
)

// chunkLines splits file content into line-aligned chunks. Blank-only
// chunks are skipped; line endings are preserved so offsets stay honest.
func chunkLines(content string) []string {
	lines := strings.SplitAfter(content, "\n")

	var (
		chunks  []string
		current strings.Builder
		count   int
	)
	flush := func() {
		if strings.TrimSpace(current.String()) != "" {
			chunks = append(chunks, current.String())
		}
		current.Reset()
		count = 0
	}

	for _, line := range lines {
		if count > 0 && (count >= chunkMaxLines || current.Len()+len(line) > chunkMaxBytes) {
			flush()
		}
		current.WriteString(line)
		count++
	}
	flush()

	return chunks
}
