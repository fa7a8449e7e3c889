package deck

import (
	"strings"
	"testing"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		wantEntries int
		wantFirst   Entry
	}{
		{
			name:        "two columns",
			input:       "der Hund,the dog",
			wantEntries: 1,
			wantFirst:   Entry{Term: "der Hund", Translation: "the dog"},
		},
		{
			name:        "four columns",
			input:       "die Katze,the cat,Die Katze schläft.,The cat is sleeping.",
			wantEntries: 1,
			wantFirst: Entry{
				Term:               "die Katze",
				Translation:        "the cat",
				Example:            "Die Katze schläft.",
				ExampleTranslation: "The cat is sleeping.",
			},
		},
		{
			name:        "header row skipped",
			input:       "German,English,ExampleDE,ExampleEN\nder Hund,the dog",
			wantEntries: 1,
			wantFirst:   Entry{Term: "der Hund", Translation: "the dog"},
		},
		{
			name:        "generic header skipped",
			input:       "term,translation\nder Hund,the dog",
			wantEntries: 1,
			wantFirst:   Entry{Term: "der Hund", Translation: "the dog"},
		},
		{
			name:        "anki metadata comments skipped",
			input:       "#separator:Comma\n#html:true\nder Hund,the dog",
			wantEntries: 1,
			wantFirst:   Entry{Term: "der Hund", Translation: "the dog"},
		},
		{
			name:        "html stripped",
			input:       "<b>der Hund</b>,the <i>dog</i>",
			wantEntries: 1,
			wantFirst:   Entry{Term: "der Hund", Translation: "the dog"},
		},
		{
			name:        "short rows skipped",
			input:       "justoneword\nder Hund,the dog",
			wantEntries: 1,
			wantFirst:   Entry{Term: "der Hund", Translation: "the dog"},
		},
		{
			name:        "blank cells skipped",
			input:       ",the dog\nder Hund,",
			wantEntries: 0,
		},
		{
			name:        "crlf line endings",
			input:       "der Hund,the dog\r\ndie Katze,the cat\r\n",
			wantEntries: 2,
			wantFirst:   Entry{Term: "der Hund", Translation: "the dog"},
		},
		{
			name:        "quoted field with comma",
			input:       "\"der Hund, klein\",the small dog",
			wantEntries: 1,
			wantFirst:   Entry{Term: "der Hund, klein", Translation: "the small dog"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, err := Parse(strings.NewReader(tc.input), ',')
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if len(entries) != tc.wantEntries {
				t.Fatalf("got %d entries, want %d", len(entries), tc.wantEntries)
			}
			if tc.wantEntries > 0 && entries[0] != tc.wantFirst {
				t.Errorf("first entry = %+v, want %+v", entries[0], tc.wantFirst)
			}
		})
	}
}

func TestParseTabSeparated(t *testing.T) {
	input := "der Hund\tthe dog\tEin Hund bellt.\tA dog barks."
	entries, err := Parse(strings.NewReader(input), '\t')
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Example != "Ein Hund bellt." {
		t.Errorf("Example = %q", entries[0].Example)
	}
}

func TestLanguage(t *testing.T) {
	testCases := []struct {
		path string
		want string
	}{
		{"decks/de.csv", "de"},
		{"decks/de_4000.csv", "de"},
		{"/abs/path/FR_basics.tsv", "fr"},
		{"es.csv", "es"},
	}
	for _, tc := range testCases {
		if got := Language(tc.path); got != tc.want {
			t.Errorf("Language(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
