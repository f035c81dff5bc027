// Package docs splits uploaded document text into overlapping chunks sized
// for embedding.
package docs

import "strings"

const (
	DefaultChunkSize    = 1000 // characters per chunk
	DefaultChunkOverlap = 200  // characters carried into the next chunk
)

// Split breaks text into chunks of roughly chunkSize characters on word
// boundaries, carrying roughly overlap characters of trailing words into
// the next chunk.
func Split(text string, chunkSize, overlap int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var chunks []string
	var current []string
	currentSize := 0
	pending := false // true when current holds words not yet emitted

	flush := func() {
		chunks = append(chunks, strings.Join(current, " "))
		pending = false

		// Walk back from the end until roughly `overlap` characters of
		// words are kept for the next chunk.
		kept := 0
		i := len(current)
		for i > 0 && kept+len(current[i-1])+1 <= overlap {
			kept += len(current[i-1]) + 1
			i--
		}
		current = append([]string(nil), current[i:]...)
		currentSize = kept
	}

	for _, word := range words {
		wordSize := len(word) + 1 // +1 for the joining space
		if currentSize+wordSize > chunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, word)
		currentSize += wordSize
		pending = true
	}
	if pending {
		chunks = append(chunks, strings.Join(current, " "))
	}
	return chunks
}
