package translate

import (
	"strings"
	"testing"
)

func TestSplitText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxSize  int
		expected []string
	}{
		{
			name:     "empty",
			text:     "   \n\n  ",
			maxSize:  10,
			expected: nil,
		},
		{
			name:     "fits in one chunk",
			text:     "short text",
			maxSize:  100,
			expected: []string{"short text"},
		},
		{
			name:     "paragraphs packed greedily",
			text:     "aaaa\n\nbbbb\n\ncccc",
			maxSize:  10,
			expected: []string{"aaaa\n\nbbbb", "cccc"},
		},
		{
			name:     "paragraph split preserved when packing",
			text:     "one\n\ntwo\n\nthree",
			maxSize:  8,
			expected: []string{"one\n\ntwo", "three"},
		},
		{
			name:     "oversized paragraph hard split",
			text:     "abcdefghij",
			maxSize:  4,
			expected: []string{"abcd", "efgh", "ij"},
		},
		{
			name:     "zero max size returns whole text",
			text:     "anything at all",
			maxSize:  0,
			expected: []string{"anything at all"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitText(tt.text, tt.maxSize)
			if len(got) != len(tt.expected) {
				t.Fatalf("expected %d chunks, got %d: %q", len(tt.expected), len(got), got)
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("chunk %d: expected %q, got %q", i, tt.expected[i], got[i])
				}
			}
		})
	}
}

func TestSplitTextRuneBoundaries(t *testing.T) {
	// Multi-byte runes must not be cut mid-sequence.
	text := strings.Repeat("翻訳", 6)
	chunks := SplitText(text, 5)
	var rebuilt strings.Builder
	for _, chunk := range chunks {
		if n := len([]rune(chunk)); n > 5 {
			t.Errorf("chunk exceeds limit: %d runes", n)
		}
		rebuilt.WriteString(chunk)
	}
	if rebuilt.String() != text {
		t.Errorf("chunks do not reassemble the input: %q", rebuilt.String())
	}
}

func TestSplitTextNoOverlap(t *testing.T) {
	text := "para one is here\n\npara two is here\n\npara three is here"
	chunks := SplitText(text, 20)
	joined := strings.Join(chunks, "\n\n")
	if joined != text {
		t.Errorf("expected lossless zero-overlap split, got %q", joined)
	}
}
