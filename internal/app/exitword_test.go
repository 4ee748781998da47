package app

import "testing"

func TestContainsExitWord(t *testing.T) {
	t.Parallel()
	words := []string{"goodbye", "arrivederci"}
	tests := []struct {
		name       string
		text       string
		similarity float64
		want       bool
	}{
		{"substring", "Okay, goodbye!", 0, true},
		{"case insensitive", "ARRIVEDERCI", 0, true},
		{"split word without similarity", "say good bye", 0, false},
		{"split word", "say good bye", 0.85, true},
		{"misspelling", "goodby then", 0.85, true},
		{"different sound", "good night", 0.85, false},
		{"unrelated", "hello there", 0.85, false},
		{"empty text", "", 0.85, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := containsExitWord(tt.text, words, tt.similarity); got != tt.want {
				t.Errorf("containsExitWord(%q, %v) = %v, want %v", tt.text, tt.similarity, got, tt.want)
			}
		})
	}
}

func TestContainsExitWord_BlankWordsIgnored(t *testing.T) {
	t.Parallel()
	if containsExitWord("anything", []string{"", "  "}, 0.9) {
		t.Error("blank exit word matched")
	}
}
