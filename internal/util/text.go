package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var reNumericOnly = regexp.MustCompile(`^[\d.,]+$`)

const (
	maxCodePrefixLen = 12
	trailingDebris   = " .-,"
)

// NormalizeText uppercases, strips diacritics and trims. It never fails: text
// that cannot be transformed is only uppercased and trimmed.
func NormalizeText(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, input)
	if err != nil {
		s = input
	}
	return strings.TrimSpace(strings.ToUpper(s))
}

// CleanProductName strips code prefixes and punctuation debris so the same
// product matches across months. The cleanup steps run until the name stops
// changing, which keeps the function idempotent for names like "12-34-ABC".
func CleanProductName(name string) string {
	for {
		next := cleanProductNameOnce(name)
		if next == name {
			return next
		}
		name = next
	}
}

func cleanProductNameOnce(name string) string {
	if prefix, rest, ok := strings.Cut(name, "-"); ok {
		if utf8.RuneCountInString(prefix) < maxCodePrefixLen && strings.IndexFunc(prefix, unicode.IsDigit) >= 0 {
			name = rest
		}
	}

	name = strings.TrimRight(name, trailingDebris)
	name = strings.ReplaceAll(name, "-.", "")
	name = strings.TrimSpace(name)

	for strings.HasPrefix(name, "0") {
		r, size := utf8.DecodeRuneInString(name[1:])
		if size == 0 || unicode.IsDigit(r) {
			break
		}
		name = name[1:]
	}

	return CollapseSpaces(name)
}

func CollapseSpaces(input string) string {
	return strings.Join(strings.Fields(input), " ")
}

// LooksNumeric reports whether the text is only digits, dots and commas.
func LooksNumeric(input string) bool {
	return reNumericOnly.MatchString(input)
}

func RuneLen(input string) int {
	return utf8.RuneCountInString(input)
}

func HasDigit(input string) bool {
	return strings.IndexFunc(input, unicode.IsDigit) >= 0
}

// Tokenize splits normalized text into words of at least two runes.
func Tokenize(input string) []string {
	parts := strings.Fields(NormalizeText(input))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if RuneLen(p) >= 2 {
			out = append(out, p)
		}
	}
	return out
}

// DiceCoefficient scores two strings by shared rune bigrams, from 0 to 1.
func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}
	return 2 * float64(inter) / float64(len(aPairs)+len(bPairs))
}
