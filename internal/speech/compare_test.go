package speech_test

import (
	"testing"

	"github.com/nvail/echodrill/internal/speech"
)

func TestCompare_ExactMatch(t *testing.T) {
	t.Parallel()

	res := speech.Compare("I go to school", "I go to school")
	if res.MatchCount != 4 || res.TotalWords != 4 {
		t.Fatalf("got %d/%d, want 4/4", res.MatchCount, res.TotalWords)
	}
	if res.Score() != 100 {
		t.Errorf("Score() = %v, want 100", res.Score())
	}
	if !res.Passed() {
		t.Error("perfect match should pass")
	}
}

func TestCompare_EmptySpoken(t *testing.T) {
	t.Parallel()

	res := speech.Compare("I go to school", "")
	if res.MatchCount != 0 || res.TotalWords != 4 {
		t.Fatalf("got %d/%d, want 0/4", res.MatchCount, res.TotalWords)
	}
	if res.Score() != 0 {
		t.Errorf("Score() = %v, want 0", res.Score())
	}
}

// An empty expected line must not divide by zero; it scores 100.
func TestCompare_EmptyExpected(t *testing.T) {
	t.Parallel()

	res := speech.Compare("", "")
	if res.TotalWords != 0 {
		t.Fatalf("TotalWords = %d, want 0", res.TotalWords)
	}
	if res.Score() != 100 {
		t.Errorf("Score() = %v, want 100", res.Score())
	}
}

func TestCompare_PunctuationAndCase(t *testing.T) {
	t.Parallel()

	res := speech.Compare("Don't worry, be happy!", "don't worry be happy")
	if res.MatchCount != 4 || res.TotalWords != 4 {
		t.Fatalf("got %d/%d, want 4/4", res.MatchCount, res.TotalWords)
	}
	// Display tokens keep their punctuation for rendering.
	if res.Words[1].Display != "worry," {
		t.Errorf("Display = %q, want %q", res.Words[1].Display, "worry,")
	}
}

// A single inserted spoken word shifts positions; the ±2 window absorbs it.
func TestCompare_WindowAbsorbsInsertion(t *testing.T) {
	t.Parallel()

	res := speech.Compare("I go to school", "I usually go to school")
	if res.MatchCount != 4 {
		t.Fatalf("MatchCount = %d, want 4 (window should absorb the insertion)", res.MatchCount)
	}
}

// A word more than two positions away is out of the window and not matched.
func TestCompare_WindowBound(t *testing.T) {
	t.Parallel()

	res := speech.Compare("school is fun", "one two three four five school")
	if res.Words[0].Matched {
		t.Error("\"school\" at spoken position 5 is outside the ±2 window of expected position 0")
	}
}

func TestCompare_PerWordResults(t *testing.T) {
	t.Parallel()

	res := speech.Compare("I like apples", "I like oranges")
	want := []bool{true, true, false}
	for i, w := range res.Words {
		if w.Matched != want[i] {
			t.Errorf("word %q matched = %v, want %v", w.Expected, w.Matched, want[i])
		}
	}
	if res.MatchCount != 2 {
		t.Errorf("MatchCount = %d, want 2", res.MatchCount)
	}
}

func TestWordsSimilar(t *testing.T) {
	t.Parallel()

	tests := []struct {
		a, b string
		want bool
	}{
		{"school", "school", true},   // exact
		{"school", "schol", true},    // distance 1, long-word threshold 2
		{"school", "skool", true},    // distance 2, within threshold
		{"school", "shul", false},    // distance 3
		{"a", "z", true},             // distance 1 at length 1, threshold 1
		{"cat", "dog", false},        // distance 3 at length 3
		{"go", "gone", false},        // length diff 2, distance 2 > threshold 1
		{"hi", "higher", false},      // length diff > 2 rejected outright
		{"there", "their", true},     // distance 2 at length 5
		{"", "", true},
	}

	for _, tt := range tests {
		if got := speech.WordsSimilar(tt.a, tt.b); got != tt.want {
			t.Errorf("WordsSimilar(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"don't stop", []string{"don't", "stop"}},
		{"  spaced   out  ", []string{"spaced", "out"}},
		{"", nil},
		{"...", nil},
	}

	for _, tt := range tests {
		got := speech.Normalize(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("Normalize(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("Normalize(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
			}
		}
	}
}
