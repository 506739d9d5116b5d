package service

import (
	"strings"
	"testing"
)

func TestChunkTextShortTextSingleChunk(t *testing.T) {
	testCases := []struct {
		name string
		text string
	}{
		{name: "empty text", text: ""},
		{name: "shorter than window", text: "hello"},
		{name: "exactly window size", text: strings.Repeat("a", 10)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := ChunkText(tc.text, 10, 2)
			if len(chunks) != 1 {
				t.Fatalf("Expected 1 chunk, got %d", len(chunks))
			}
			if chunks[0] != tc.text {
				t.Errorf("Chunk should be the full text: got %q, want %q", chunks[0], tc.text)
			}
		})
	}
}

func TestChunkTextWindowMath(t *testing.T) {
	// 12 runes, window 5, overlap 2 → starts at 0, 3, 6, 9
	text := "abcdefghijkl"
	chunks := ChunkText(text, 5, 2)

	want := []string{"abcde", "defgh", "ghijk", "jkl"}
	if len(chunks) != len(want) {
		t.Fatalf("Expected %d chunks, got %d: %v", len(want), len(chunks), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("Chunk %d: got %q, want %q", i, chunks[i], want[i])
		}
	}
}

func TestChunkTextCoversAllText(t *testing.T) {
	text := strings.Repeat("0123456789", 37)
	chunkSize, overlap := 64, 16
	chunks := ChunkText(text, chunkSize, overlap)

	// Every chunk except the last must be full-size, and consecutive chunks
	// must share exactly the overlap.
	step := chunkSize - overlap
	runes := []rune(text)
	pos := 0
	for i, chunk := range chunks {
		if i < len(chunks)-1 && len([]rune(chunk)) != chunkSize {
			t.Errorf("Chunk %d should be %d runes, got %d", i, chunkSize, len([]rune(chunk)))
		}
		end := pos + len([]rune(chunk))
		if string(runes[pos:end]) != chunk {
			t.Errorf("Chunk %d does not match source text at offset %d", i, pos)
		}
		pos += step
	}

	// Reconstructing from chunk starts must reproduce the text.
	var rebuilt strings.Builder
	for i, chunk := range chunks {
		cr := []rune(chunk)
		if i == 0 {
			rebuilt.WriteString(chunk)
			continue
		}
		if len(cr) > overlap {
			rebuilt.WriteString(string(cr[overlap:]))
		}
	}
	if rebuilt.String() != text {
		t.Errorf("Chunks do not cover the source text without gaps")
	}
}

func TestChunkTextMultiByteRunes(t *testing.T) {
	text := strings.Repeat("日本語テキスト", 10) // 60 runes
	chunks := ChunkText(text, 25, 5)

	for i, chunk := range chunks {
		if !strings.HasPrefix(text, chunk) && !strings.Contains(text, chunk) {
			t.Errorf("Chunk %d is not a substring of the source: %q", i, chunk)
		}
		for _, r := range chunk {
			if r == '�' {
				t.Fatalf("Chunk %d contains a replacement rune, multi-byte character was split", i)
			}
		}
	}
}
