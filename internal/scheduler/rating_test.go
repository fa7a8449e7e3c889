package scheduler

import (
	"errors"
	"testing"
)

func TestParseRating(t *testing.T) {
	testCases := []struct {
		input string
		want  Rating
	}{
		{"Again", Again},
		{"Hard", Hard},
		{"Good", Good},
		{"Easy", Easy},
		{"good", Good},
		{"EASY", Easy},
	}
	for _, tc := range testCases {
		got, err := ParseRating(tc.input)
		if err != nil {
			t.Errorf("ParseRating(%q) returned error: %v", tc.input, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseRating(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestParseRatingUnknown(t *testing.T) {
	for _, input := range []string{"", "Perfect", "3", "againn"} {
		if _, err := ParseRating(input); !errors.Is(err, ErrInvalidRating) {
			t.Errorf("ParseRating(%q) err = %v, want ErrInvalidRating", input, err)
		}
	}
}

func TestRatingString(t *testing.T) {
	if got := Good.String(); got != "Good" {
		t.Errorf("Good.String() = %q", got)
	}
	if got := Rating(9).String(); got != "Rating(9)" {
		t.Errorf("Rating(9).String() = %q", got)
	}
}

func TestRatingIsValid(t *testing.T) {
	for r := Again; r <= Easy; r++ {
		if !r.IsValid() {
			t.Errorf("%v should be valid", r)
		}
	}
	for _, r := range []Rating{0, 5, -2} {
		if r.IsValid() {
			t.Errorf("Rating(%d) should be invalid", int(r))
		}
	}
}
