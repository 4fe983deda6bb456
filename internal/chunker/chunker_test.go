package chunker

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// sentenceText builds text from fixed-width sentences so cut points are
// predictable in tests.
func sentenceText(n int) string {
	// Each sentence is exactly 100 characters including the trailing ". ".
	sentence := strings.Repeat("a", 98) + ". "
	return strings.Repeat(sentence, n)
}

func checkInvariants(t *testing.T, text string, chunks []Chunk, overlap int) {
	t.Helper()
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}
	if chunks[0].CharStart != 0 {
		t.Errorf("first chunk starts at %d, want 0", chunks[0].CharStart)
	}
	if last := chunks[len(chunks)-1]; last.CharEnd != len(text) {
		t.Errorf("last chunk ends at %d, want %d", last.CharEnd, len(text))
	}
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
		if text[c.CharStart:c.CharEnd] != c.Text {
			t.Errorf("chunk %d text does not match its span", i)
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1]
		got := prev.CharEnd - c.CharStart
		want := overlap
		if prev.CharEnd == len(text) && got < overlap {
			// Final pair: the last chunk may be shorter than the overlap.
			continue
		}
		if got != want {
			t.Errorf("chunks %d/%d overlap by %d chars, want %d", i-1, i, got, want)
		}
	}
}

func TestSplitReconstructsText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{"sentences", sentenceText(45), 1000, 200},
		{"no separators", strings.Repeat("x", 3333), 500, 100},
		{"zero overlap", sentenceText(10), 300, 0},
		{"tiny chunks", "one two three four five six seven eight nine ten", 10, 3},
		{"single chunk", "short text", 1000, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks, err := Split(tt.text, nil, tt.size, tt.overlap)
			if err != nil {
				t.Fatalf("Split() error: %v", err)
			}
			checkInvariants(t, tt.text, chunks, tt.overlap)
		})
	}
}

func TestSplitScenarioFourThousandFiveHundred(t *testing.T) {
	// 45 fixed-width sentences = 4,500 characters; bodies cut exactly at
	// sentence ends every 1,000 characters.
	text := sentenceText(45)
	if len(text) != 4500 {
		t.Fatalf("fixture length = %d, want 4500", len(text))
	}

	chunks, err := Split(text, []int{0, 1500, 3000}, 1000, 200)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(chunks) != 5 {
		t.Fatalf("expected 5 chunks, got %d", len(chunks))
	}
	checkInvariants(t, text, chunks, 200)

	wantStarts := []int{0, 1000, 2000, 3000, 4000}
	for i, c := range chunks {
		if c.CharStart != wantStarts[i] {
			t.Errorf("chunk %d starts at %d, want %d", i, c.CharStart, wantStarts[i])
		}
	}
	wantPages := []int{0, 0, 1, 2, 2}
	for i, c := range chunks {
		if c.Page != wantPages[i] {
			t.Errorf("chunk %d on page %d, want %d", i, c.Page, wantPages[i])
		}
	}
}

func TestSplitPrefersParagraphBreaks(t *testing.T) {
	// A paragraph break inside the search window must win over the later
	// word boundaries.
	text := strings.Repeat("b", 70) + "\n\n" + strings.Repeat("c c ", 100)
	chunks, err := Split(text, nil, 100, 10)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if got := chunks[1].CharStart; got != 72 {
		t.Errorf("second chunk starts at %d, want 72 (after paragraph break)", got)
	}
}

func TestSplitHardCutWithoutSeparators(t *testing.T) {
	text := strings.Repeat("z", 250)
	chunks, err := Split(text, nil, 100, 20)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	// Bodies cut at exactly 100 chars, spans extended by the overlap.
	if chunks[0].CharEnd != 120 {
		t.Errorf("first span ends at %d, want 120", chunks[0].CharEnd)
	}
	if chunks[1].CharStart != 100 {
		t.Errorf("second chunk starts at %d, want 100", chunks[1].CharStart)
	}
	checkInvariants(t, text, chunks, 20)
}

func TestSplitMultiByteRunesStayIntact(t *testing.T) {
	// CJK prose without ASCII separators forces hard cuts; every boundary
	// must still land between runes.
	text := strings.Repeat("文", 400)
	chunks, err := Split(text, nil, 100, 10)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	for i, c := range chunks {
		if !utf8.ValidString(c.Text) {
			t.Errorf("chunk %d is not valid UTF-8 (bytes %d-%d)", i, c.CharStart, c.CharEnd)
		}
		if text[c.CharStart:c.CharEnd] != c.Text {
			t.Errorf("chunk %d text does not match its span", i)
		}
	}
	if last := chunks[len(chunks)-1]; last.CharEnd != len(text) {
		t.Errorf("last chunk ends at %d, want %d", last.CharEnd, len(text))
	}
	for i := 1; i < len(chunks); i++ {
		if chunks[i].CharStart <= chunks[i-1].CharStart {
			t.Fatalf("chunk %d does not advance past chunk %d", i, i-1)
		}
		if chunks[i].CharStart > chunks[i-1].CharEnd {
			t.Fatalf("gap between chunks %d and %d", i-1, i)
		}
	}
}

func TestSplitChunkSmallerThanRune(t *testing.T) {
	// A chunk size below the rune width still advances one whole rune at a
	// time instead of splitting it.
	chunks, err := Split("文文文", nil, 2, 0)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Text != "文" {
			t.Errorf("chunk %d = %q, want one rune", i, c.Text)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := sentenceText(20)
	a, err := Split(text, []int{0, 900}, 400, 80)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	b, err := Split(text, []int{0, 900}, 400, 80)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("identical input produced different chunk sequences")
	}
}

func TestSplitParameterValidation(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		size    int
		overlap int
	}{
		{"overlap equals size", "some text", 100, 100},
		{"overlap exceeds size", "some text", 100, 150},
		{"negative overlap", "some text", 100, -1},
		{"zero size", "some text", 0, 0},
		{"empty text", "", 100, 10},
		{"blank text", "   \n\t ", 100, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split(tt.text, nil, tt.size, tt.overlap)
			var chunkErr *Error
			if !errors.As(err, &chunkErr) {
				t.Errorf("expected *chunker.Error, got %v", err)
			}
		})
	}
}

func TestPageAttribution(t *testing.T) {
	text := strings.Repeat("p", 300)
	chunks, err := Split(text, []int{0, 100, 200}, 100, 0)
	if err != nil {
		t.Fatalf("Split() error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if c.Page != i {
			t.Errorf("chunk %d attributed to page %d, want %d", i, c.Page, i)
		}
	}
}
