package googletts

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitChunks_ShortInputSinglePiece(t *testing.T) {
	t.Parallel()

	got := splitChunks("Hello there.", 4500)
	if len(got) != 1 || got[0] != "Hello there." {
		t.Errorf("splitChunks = %q", got)
	}
}

func TestSplitChunks_CutsAtSentenceBoundary(t *testing.T) {
	t.Parallel()

	text := "First sentence goes here. Second sentence follows after."
	got := splitChunks(text, 30)
	if len(got) != 2 {
		t.Fatalf("got %d chunks: %q", len(got), got)
	}
	if got[0] != "First sentence goes here." {
		t.Errorf("first chunk = %q", got[0])
	}
	if strings.Join(got, "") != text {
		t.Errorf("chunks do not reassemble the input")
	}
}

func TestSplitChunks_NoPunctuationRespectsUTF8(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("ありがとう", 10) // 15 bytes per repetition, no punctuation
	got := splitChunks(text, 16)
	if strings.Join(got, "") != text {
		t.Fatalf("chunks do not reassemble the input")
	}
	for i, chunk := range got {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d splits a UTF-8 sequence: %q", i, chunk)
		}
	}
}
