// Package chunker splits raw note text into overlapping, sentence-respecting
// segments sized for embedding.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultMaxChars is the character budget per chunk.
	DefaultMaxChars = 500
	// DefaultOverlapChars is how many trailing characters of a closed chunk
	// seed the next one.
	DefaultOverlapChars = 50
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// Chunk splits text into chunks of at most maxChars characters, breaking on
// sentence boundaries and carrying overlapChars of trailing context between
// consecutive chunks. It is a pure function: the same input always yields the
// same chunks.
//
// A single sentence longer than maxChars is emitted as its own oversized
// chunk rather than truncated. Text shorter than maxChars is returned as a
// single chunk unchanged.
func Chunk(text string, maxChars, overlapChars int) []string {
	if len(text) < maxChars {
		return []string{text}
	}

	var chunks []string
	var current string

	for _, sentence := range sentenceEnd.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}

		if len(current)+len(sentence) > maxChars && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			if overlapChars > 0 && len(current) > overlapChars {
				current = current[len(current)-overlapChars:] + " " + sentence
			} else {
				current = sentence
			}
			continue
		}

		if current == "" {
			current = sentence
		} else {
			current += " " + sentence
		}
	}

	if strings.TrimSpace(current) != "" {
		chunks = append(chunks, strings.TrimSpace(current))
	}

	return chunks
}
