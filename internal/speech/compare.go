// Package speech implements word-level comparison between an expected
// dialogue line and a recognised transcript, producing per-word match
// results and an aggregate pronunciation score.
//
// The algorithm proceeds in two stages:
//
//  1. Normalisation: both texts are lowercased, stripped of punctuation
//     except apostrophes, and split on whitespace.
//
//  2. Local alignment: each expected word is first checked against the
//     spoken word at the same position; failing that, a window of spoken
//     positions [i-2, i+2] is searched for any similar word. The first
//     match wins. This windowed search is a deliberate simplification: it
//     tolerates minor insertions and deletions without paying for a full
//     sequence alignment, at the cost of occasionally double-counting a
//     spoken word or missing a match under heavy repetition.
//
// Word similarity is Levenshtein-based with a length-scaled threshold:
// distance 1 for words of up to four characters, distance 2 for longer
// words. Words whose lengths differ by more than two are never similar.
package speech

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"
)

// PassScore is the aggregate score at or above which a spoken attempt counts
// as good feedback.
const PassScore = 80.0

// searchWindow is how far (in word positions) to look either side of the
// expected position for a matching spoken word.
const searchWindow = 2

// WordResult is the match outcome for one expected word.
type WordResult struct {
	// Expected is the normalised expected word.
	Expected string `json:"expected"`

	// Display is the original token with its punctuation, for rendering.
	Display string `json:"display"`

	// Matched reports whether a similar spoken word was found at the same
	// position or within the search window.
	Matched bool `json:"matched"`
}

// Result is the outcome of comparing a transcript against an expected line.
type Result struct {
	Words      []WordResult `json:"words"`
	MatchCount int          `json:"matchCount"`
	TotalWords int          `json:"totalWords"`
}

// Score returns the match percentage in [0, 100]. An empty expected line
// scores 100: there was nothing to get wrong.
func (r Result) Score() float64 {
	if r.TotalWords == 0 {
		return 100
	}
	return float64(r.MatchCount) / float64(r.TotalWords) * 100
}

// Passed reports whether the score meets the good-feedback threshold.
func (r Result) Passed() bool {
	return r.Score() >= PassScore
}

// Compare scores the spoken transcript against the expected line text.
func Compare(expected, spoken string) Result {
	expectedWords := Normalize(expected)
	spokenWords := Normalize(spoken)
	displayWords := strings.Fields(expected)

	res := Result{
		Words:      make([]WordResult, 0, len(expectedWords)),
		TotalWords: len(expectedWords),
	}

	for i, word := range expectedWords {
		matched := i < len(spokenWords) && WordsSimilar(word, spokenWords[i])
		if !matched {
			lo := max(0, i-searchWindow)
			hi := min(len(spokenWords), i+searchWindow+1)
			for j := lo; j < hi; j++ {
				if WordsSimilar(word, spokenWords[j]) {
					matched = true
					break
				}
			}
		}
		if matched {
			res.MatchCount++
		}

		display := word
		if i < len(displayWords) {
			display = displayWords[i]
		}
		res.Words = append(res.Words, WordResult{
			Expected: word,
			Display:  display,
			Matched:  matched,
		})
	}

	return res
}

// Normalize lowercases text, strips punctuation except apostrophes, and
// splits it into words. The result is empty for blank input.
func Normalize(text string) []string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_', r == '\'':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// WordsSimilar reports whether two normalised words are close enough to
// count as the same spoken word. Exact matches are always similar; otherwise
// the words must be within two characters in length and within a
// Levenshtein distance of 1 (length up to four) or 2 (longer words).
func WordsSimilar(a, b string) bool {
	if a == b {
		return true
	}

	la, lb := len([]rune(a)), len([]rune(b))
	if la-lb > 2 || lb-la > 2 {
		return false
	}

	maxLen := max(la, lb)
	if maxLen == 0 {
		return true
	}

	threshold := 2
	if maxLen <= 4 {
		threshold = 1
	}
	return matchr.Levenshtein(a, b) <= threshold
}
