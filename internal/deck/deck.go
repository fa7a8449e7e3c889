// Package deck parses CSV vocabulary decks.
//
// A deck row is term, translation, and optionally an example sentence and
// its translation, matching the columns of the app's Anki-derived decks.
// Lines starting with '#' (Anki export metadata) are skipped, and a leading
// header row is detected and dropped.
package deck

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Entry is one parsed deck row, content only; scheduling state is assigned
// when the entry is inserted into the store.
type Entry struct {
	Term               string
	Translation        string
	Example            string
	ExampleTranslation string
}

var htmlTag = regexp.MustCompile(`<[^>]*>`)

// words that identify a header row rather than vocabulary
var headerWords = map[string]bool{
	"term": true, "translation": true, "example": true,
	"front": true, "back": true,
	"german": true, "english": true, "examplede": true, "exampleen": true,
}

// ParseFile reads a deck from the given path. Files ending in .tsv are read
// as tab-separated, everything else as comma-separated.
func ParseFile(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	comma := ','
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		comma = '\t'
	}
	return Parse(file, comma)
}

// Parse reads deck entries from r using the given field separator.
// Rows with fewer than two columns are skipped.
func Parse(r io.Reader, comma rune) ([]Entry, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading deck: %w", err)
	}

	var entries []Entry
	for i, record := range records {
		if len(record) < 2 {
			continue
		}
		if i == 0 && isHeader(record) {
			continue
		}

		entry := Entry{
			Term:        clean(record[0]),
			Translation: clean(record[1]),
		}
		if len(record) > 2 {
			entry.Example = clean(record[2])
		}
		if len(record) > 3 {
			entry.ExampleTranslation = clean(record[3])
		}
		if entry.Term == "" || entry.Translation == "" {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Language derives the deck's language code from its file name: the part
// before the first underscore or extension, lowercased. "de_4000.csv" → "de".
func Language(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.Index(base, "_"); i >= 0 {
		base = base[:i]
	}
	return strings.ToLower(base)
}

// clean strips HTML tags left over from Anki exports and trims whitespace.
func clean(s string) string {
	s = htmlTag.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func isHeader(record []string) bool {
	for _, cell := range record {
		if headerWords[strings.ToLower(strings.TrimSpace(cell))] {
			return true
		}
	}
	return false
}
