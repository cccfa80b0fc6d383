// Package translate implements the three-stage translation pipeline:
// an initial translation, an expert critique, and a revised translation
// incorporating the critique, applied chunk by chunk.
package translate

import "strings"

// SplitText splits text into chunks of at most maxChunkSize runes, packing
// whole paragraphs greedily with no overlap. A paragraph longer than the
// limit is hard-split on rune boundaries.
func SplitText(text string, maxChunkSize int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if maxChunkSize <= 0 || len([]rune(text)) <= maxChunkSize {
		return []string{text}
	}

	var chunks []string
	var current []string
	currentLen := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			currentLen = 0
		}
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)
		if len(runes) > maxChunkSize {
			flush()
			for len(runes) > maxChunkSize {
				chunks = append(chunks, string(runes[:maxChunkSize]))
				runes = runes[maxChunkSize:]
			}
			if len(runes) > 0 {
				current = append(current, string(runes))
				currentLen = len(runes)
			}
			continue
		}

		// Separator counts toward the limit when appending to a chunk.
		add := len(runes)
		if currentLen > 0 {
			add += 2
		}
		if currentLen+add > maxChunkSize {
			flush()
			add = len(runes)
		}
		current = append(current, para)
		currentLen += add
	}
	flush()
	return chunks
}
