// Package textnorm turns raw customer text into the folded form the classifiers match on.
package textnorm

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lower-cases s, strips diacritics ("menú" -> "menu", "ñ" -> "n") and collapses
// runs of whitespace into one space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		folded = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(folded), " ")
}

// numberWords maps spelled-out quantities to their value. Every gendered form of "one" is 1.
var numberWords = map[string]int{
	"un": 1, "uno": 1, "una": 1,
	"dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
	"seis": 6, "siete": 7, "ocho": 8, "nueve": 9, "diez": 10,
	"docena": 12, "una docena": 12, "media docena": 6,
}

// NumberWordPattern is an alternation of all number words, longest first so that
// "media docena" wins over "docena" and "una docena" over "una".
var NumberWordPattern = buildNumberWordPattern()

func buildNumberWordPattern() string {
	words := make([]string, 0, len(numberWords))
	for w := range numberWords {
		words = append(words, w)
	}
	sort.Slice(words, func(i, j int) bool {
		if len(words[i]) != len(words[j]) {
			return len(words[i]) > len(words[j])
		}
		return words[i] < words[j]
	})
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(words, "|")
}

// NumberWord returns the quantity a spelled-out number stands for.
func NumberWord(word string) (int, bool) {
	n, ok := numberWords[strings.TrimSpace(word)]
	return n, ok
}

var clauseSeparator = regexp.MustCompile(`\s*(?:[,;+]|\by\b|\be\b|\band\b|\bmas\b)\s*`)

// SplitClauses breaks a folded message into the item clauses a customer lists,
// e.g. "2 empanadas y una pizza" -> ["2 empanadas", "una pizza"].
func SplitClauses(folded string) []string {
	parts := clauseSeparator.Split(folded, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, " .!?¿¡")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var questionLead = regexp.MustCompile(`^(?:que|cual|cuales|como|cuanto|cuanta|cuantos|cuantas|donde|cuando|por que|porque)\b`)

// IsQuestion reports whether the folded message is phrased as a question.
func IsQuestion(folded string) bool {
	if strings.ContainsAny(folded, "?¿") {
		return true
	}
	return questionLead.MatchString(strings.TrimLeft(folded, " ¡"))
}

// Tokens splits a phrase into words.
func Tokens(phrase string) []string {
	return strings.Fields(phrase)
}
