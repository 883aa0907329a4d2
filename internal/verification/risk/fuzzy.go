package risk

import (
	"strings"
	"unicode"
)

// legalSuffixes canonicalises company name abbreviations
var legalSuffixes = map[string]string{
	"ltd":    "limited",
	"pvt":    "private",
	"co":     "company",
	"corp":   "corporation",
	"inc":    "incorporated",
	"labs":   "laboratories",
	"lab":    "laboratories",
	"pharma": "pharmaceuticals",
}

// words lowercases s, drops punctuation and expands legal abbreviations
func words(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '&'
	})
	for i, f := range fields {
		if full, ok := legalSuffixes[f]; ok {
			fields[i] = full
		}
	}
	return fields
}

// FuzzyMatch reports whether a and b name the same thing: equal or one
// containing the other once normalised, or sharing at least threshold of
// their combined words.
func FuzzyMatch(a, b string, threshold float64) bool {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return false
	}

	na, nb := strings.Join(wa, " "), strings.Join(wb, " ")
	if na == nb || strings.Contains(na, nb) || strings.Contains(nb, na) {
		return true
	}

	set := make(map[string]bool, len(wa))
	for _, w := range wa {
		set[w] = true
	}
	union := len(set)
	common := 0
	seen := make(map[string]bool, len(wb))
	for _, w := range wb {
		if seen[w] {
			continue
		}
		seen[w] = true
		if set[w] {
			common++
		} else {
			union++
		}
	}
	return float64(common)/float64(union) >= threshold
}
