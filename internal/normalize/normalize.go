// Package normalize canonicalizes language tags and folds free text for matching.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// languageNames maps English and native language names that show up in
// catalog metadata to ISO 639-1 codes. Codes themselves go through x/text.
//
//nolint:gochecknoglobals // Static lookup table
var languageNames = map[string]string{
	"english": "en", "ukrainian": "uk", "українська": "uk", "russian": "ru",
	"german": "de", "french": "fr", "spanish": "es", "italian": "it",
	"polish": "pl", "portuguese": "pt", "dutch": "nl", "japanese": "ja",
	"chinese": "zh", "mandarin": "zh", "korean": "ko", "czech": "cs",
}

// LanguageCode converts a language representation to an ISO 639-1 code.
// It accepts 2- and 3-letter codes ("uk", "ukr"), locales ("en-US", "en_GB")
// and common names ("Ukrainian"). Unrecognized input yields "".
func LanguageCode(raw string) string {
	s := strings.ToLower(strings.TrimSpace(CleanText(raw)))
	if s == "" {
		return ""
	}
	if code, ok := languageNames[s]; ok {
		return code
	}

	tag, err := language.Parse(strings.ReplaceAll(s, "_", "-"))
	if err != nil {
		return ""
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return ""
	}
	return base.String()
}

// LanguageName returns the English display name for a language, or "".
func LanguageName(raw string) string {
	code := LanguageCode(raw)
	if code == "" {
		return ""
	}
	return display.English.Languages().Name(language.Make(code))
}

// CleanText drops NUL and other control characters and collapses runs of
// whitespace. Catalog payloads occasionally carry both.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(cleaned), " ")
}

// Fold lowercases s and strips combining marks so "Émile" and "emile" compare
// equal. Base letters of every script survive, Cyrillic included; only marks
// are removed (й folds to и, ї to і).
func Fold(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC, cases.Fold())
	folded, _, err := transform.String(t, CleanText(s))
	if err != nil {
		return strings.ToLower(CleanText(s))
	}
	return folded
}

// Tokens splits folded text into letter/digit runs.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Phrase returns the folded tokens of s joined by single spaces, so that
// punctuation differences ("Dune:" vs "Dune") do not defeat substring checks.
func Phrase(s string) string {
	return strings.Join(Tokens(s), " ")
}
