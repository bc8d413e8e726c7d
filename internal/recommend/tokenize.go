package recommend

import (
	"strings"
	"unicode"
)

// Tokenize splits text into lowercase terms. A term is a maximal run of
// letters, digits or underscores at least two runes long. Stop words are
// dropped.
func Tokenize(text string) []string {
	text = strings.ToLower(text)
	var terms []string
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		tok := text[start:end]
		start = -1
		if len([]rune(tok)) < 2 {
			return
		}
		if _, stop := stopWords[tok]; stop {
			return
		}
		terms = append(terms, tok)
	}
	for i, r := range text {
		if isWordRune(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		flush(i)
	}
	flush(len(text))
	return terms
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}
