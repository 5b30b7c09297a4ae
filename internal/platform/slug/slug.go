package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

// Make lowercases input, folds accents ("één" -> "een") and joins the
// remaining alphanumeric runs with dashes.
func Make(input string) string {
	s := strings.ToLower(strings.TrimSpace(fold(input)))
	s = nonAlphaNum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}

// Filename returns "<slug><suffix>", e.g. Filename("De Kat", "_export.json").
func Filename(name, suffix string) string {
	return Make(name) + suffix
}

func fold(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}
