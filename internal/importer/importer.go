// Package importer turns pasted tabular text into typed item batches. The
// input format is sniffed from the header row, so learners can paste exports
// from a spreadsheet or a chat assistant without picking a format by hand.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Format identifies a recognised input layout.
type Format string

const (
	// FormatCorrection is original/polished/reason sentence corrections.
	FormatCorrection Format = "correction"
	// FormatDialogue is speaker/content/translation dialogue scripts.
	FormatDialogue Format = "dialogue"
	// FormatVocabulary is phrase/pronunciation/meaning/usage entries.
	FormatVocabulary Format = "vocabulary"
	// FormatNatural is a bare single-column list of sentences, no header.
	FormatNatural Format = "natural"
)

var (
	// ErrEmptyInput is returned for blank or whitespace-only input.
	ErrEmptyInput = errors.New("importer: empty input")
	// ErrUnknownFormat is returned when the header row matches no known
	// layout and the input is not a single-column sentence list.
	ErrUnknownFormat = errors.New("importer: unrecognised header row")
	// ErrNoRows is returned when the input has a header but no data rows.
	ErrNoRows = errors.New("importer: no data rows after header")
)

// CorrectionRow is one parsed sentence-correction entry.
type CorrectionRow struct {
	Original string
	Polished string
	Reason   string
}

// DialogueRow is one parsed dialogue line.
type DialogueRow struct {
	Speaker     string
	Content     string
	Translation string
}

// VocabularyRow is one parsed vocabulary entry.
type VocabularyRow struct {
	Phrase        string
	Pronunciation string
	Meaning       string
	Usage         string
}

// Batch is the typed result of parsing one paste. Exactly one of the row
// slices is populated, selected by Format. Natural sentences land in
// Corrections with only Polished set.
type Batch struct {
	Format      Format
	Corrections []CorrectionRow
	Dialogue    []DialogueRow
	Vocabulary  []VocabularyRow
}

// Rows returns the number of data rows in the batch.
func (b Batch) Rows() int {
	switch b.Format {
	case FormatDialogue:
		return len(b.Dialogue)
	case FormatVocabulary:
		return len(b.Vocabulary)
	default:
		return len(b.Corrections)
	}
}

// Detect sniffs the format from the first non-empty line. It returns
// ErrUnknownFormat for multi-column input with an unfamiliar header; a
// single-column header-less list is reported as FormatNatural.
func Detect(text string) (Format, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", ErrEmptyInput
	}
	first := strings.ToLower(strings.SplitN(trimmed, "\n", 2)[0])

	switch {
	case strings.Contains(first, "original sentence") || strings.Contains(first, "polished version"):
		return FormatCorrection, nil
	case strings.Contains(first, "speaker") && strings.Contains(first, "content"):
		return FormatDialogue, nil
	case strings.Contains(first, "english phrase") || strings.Contains(first, "pronunciation"):
		return FormatVocabulary, nil
	case !strings.Contains(first, ","), looksLikeSentence(first):
		return FormatNatural, nil
	default:
		return "", ErrUnknownFormat
	}
}

// Parse detects the format of text and parses it into a typed batch.
func Parse(text string) (Batch, error) {
	format, err := Detect(text)
	if err != nil {
		return Batch{}, err
	}

	if format == FormatNatural {
		return parseNatural(text)
	}

	rows, err := readRows(text)
	if err != nil {
		return Batch{}, err
	}
	if len(rows) < 2 {
		return Batch{}, ErrNoRows
	}
	header := rows[0]
	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if len(row) < len(header) || !anyFilled(row) {
			continue
		}
		data = append(data, row)
	}
	if len(data) == 0 {
		return Batch{}, ErrNoRows
	}

	batch := Batch{Format: format}
	switch format {
	case FormatCorrection:
		for _, r := range data {
			batch.Corrections = append(batch.Corrections, CorrectionRow{
				Original: cell(r, 0),
				Polished: cell(r, 1),
				Reason:   cell(r, 2),
			})
		}
	case FormatDialogue:
		for _, r := range data {
			batch.Dialogue = append(batch.Dialogue, DialogueRow{
				Speaker:     cell(r, 0),
				Content:     cell(r, 1),
				Translation: cell(r, 2),
			})
		}
	case FormatVocabulary:
		for _, r := range data {
			batch.Vocabulary = append(batch.Vocabulary, VocabularyRow{
				Phrase:        cell(r, 0),
				Pronunciation: cell(r, 1),
				Meaning:       cell(r, 2),
				Usage:         cell(r, 3),
			})
		}
	}
	return batch, nil
}

func parseNatural(text string) (Batch, error) {
	batch := Batch{Format: FormatNatural}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		batch.Corrections = append(batch.Corrections, CorrectionRow{Polished: line})
	}
	if len(batch.Corrections) == 0 {
		return Batch{}, ErrEmptyInput
	}
	return batch, nil
}

func readRows(text string) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSpace(text)))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.LazyQuotes = true

	var rows [][]string
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("importer: parse csv: %w", err)
		}
		for i := range record {
			record[i] = strings.TrimSpace(record[i])
		}
		rows = append(rows, record)
	}
	return rows, nil
}

// looksLikeSentence distinguishes prose containing commas from a CSV
// header: headers never end in sentence punctuation.
func looksLikeSentence(line string) bool {
	return strings.HasSuffix(line, ".") || strings.HasSuffix(line, "!") || strings.HasSuffix(line, "?")
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func anyFilled(row []string) bool {
	for _, c := range row {
		if c != "" {
			return true
		}
	}
	return false
}

// DialogueTitle derives a session title from the first spoken line.
func DialogueTitle(firstContent string) string {
	const maxTitle = 50
	runes := []rune(firstContent)
	if len(runes) > maxTitle {
		return string(runes[:maxTitle]) + "..."
	}
	return firstContent
}
