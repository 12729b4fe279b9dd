package flow

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkedShortMessage(t *testing.T) {
	replies := chunked("короткое сообщение", 4096)
	if len(replies) != 1 {
		t.Fatalf("replies = %d, want 1", len(replies))
	}
	if replies[0].Text != "короткое сообщение" {
		t.Fatalf("text = %q", replies[0].Text)
	}
}

func TestChunkedSplitsAtRuneLimit(t *testing.T) {
	// Multibyte input: the split must count runes, not bytes.
	long := strings.Repeat("ф", 10)
	replies := chunked(long, 4)

	if len(replies) != 3 {
		t.Fatalf("replies = %d, want 3", len(replies))
	}
	var rebuilt strings.Builder
	for i, r := range replies {
		n := utf8.RuneCountInString(r.Text)
		if n > 4 {
			t.Fatalf("chunk %d holds %d runes", i, n)
		}
		rebuilt.WriteString(r.Text)
	}
	if rebuilt.String() != long {
		t.Fatal("chunks do not reassemble the original text")
	}
}
