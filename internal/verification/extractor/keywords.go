package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

var (
	expiryKeyword = regexp.MustCompile(`(?i)\b(EXPIRY\s*DATE|EXP\.?\s*DATE|EXPIRY|EXPIRES|EXPIRE|EXPDT|EXP|USE\s+BY|BEST\s+BEFORE|VALID\s+UNTIL|VALID\s+TILL)(?:\b|\.)`)
	mfgKeyword    = regexp.MustCompile(`(?i)\b(MFG\.?\s*DATE|MFD\.?\s*DATE|MANUFACTURED|MANUFACTURING|MANUF|MFG|MFD|PRODUCTION)`)
	batchKeyword  = regexp.MustCompile(`(?i)\b(?:BATCH\s*NO|LOT\s*NO|BATCH|LOT|B\.?\s?NO|L\.?\s?NO)\.?[\s:#.\-]*([A-Z0-9]+)`)
	priceKeyword  = regexp.MustCompile(`(?i)\b(?:MRP|PRICE|RS|INR)\b|₹`)
	dosageForm    = regexp.MustCompile(`(?i)\b(TABLET|TAB|CAPSULE|CAP|SYRUP|SYR|INJECTION|INJ)\b`)
	spaces        = regexp.MustCompile(`\s+`)
)

// block is the pooled text of one image split into trimmed, non-empty lines
type block struct {
	imageIndex int
	quality    float64
	text       string
	lines      []string
}

func newBlock(imageIndex int, quality float64, text string) block {
	b := block{imageIndex: imageIndex, quality: quality, text: text}
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			b.lines = append(b.lines, ln)
		}
	}
	return b
}

func isMfgOnly(line string) bool {
	return mfgKeyword.MatchString(line) && !expiryKeyword.MatchString(line)
}

// notADate reports lines whose digits belong to a batch number or a price
func notADate(line string) bool {
	return batchKeyword.MatchString(line) || priceKeyword.MatchString(line)
}

// expiry runs the anchored, proximity and unanchored passes in order and
// returns the first candidate found.
func (e *Extractor) expiry(b block, asOf domain.Date) *domain.DateCandidate {
	candidate := func(d domain.Date, c domain.Confidence, line string) *domain.DateCandidate {
		return &domain.DateCandidate{Date: d, Confidence: c, Snippet: line, ImageIndex: b.imageIndex}
	}

	for _, line := range b.lines {
		loc := expiryKeyword.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if d, ok := firstDate(line[loc[1]:]); ok {
			return candidate(d, domain.ConfidenceHigh, line)
		}
	}

	for i, line := range b.lines {
		if !expiryKeyword.MatchString(line) {
			continue
		}
		for j := i; j < len(b.lines) && j <= i+e.cfg.ProximityLines; j++ {
			next := b.lines[j]
			if j > i && isMfgOnly(next) {
				continue
			}
			if d, ok := firstDate(next); ok {
				return candidate(d, domain.ConfidenceMedium, next)
			}
		}
	}

	type dated struct {
		date domain.Date
		line string
	}
	var found []dated
	for _, line := range b.lines {
		if isMfgOnly(line) || notADate(line) {
			continue
		}
		for _, d := range allDates(line) {
			if d.Year() >= e.cfg.MinPlausibleYear {
				found = append(found, dated{d, line})
			}
		}
		if len(found) == 0 {
			if d, ok := fuzzyDate(line); ok && d.Year() >= e.cfg.MinPlausibleYear {
				found = append(found, dated{d, line})
			}
		}
	}
	if len(found) == 0 {
		return nil
	}
	for _, f := range found {
		if f.date.After(asOf.Time) {
			return candidate(f.date, domain.ConfidenceMedium, f.line)
		}
	}
	latest := found[0]
	for _, f := range found[1:] {
		if f.date.After(latest.date.Time) {
			latest = f
		}
	}
	return candidate(latest.date, domain.ConfidenceLow, latest.line)
}

// manufacturing returns the first keyword-anchored date that is not after asOf
func (e *Extractor) manufacturing(b block, asOf domain.Date) *domain.DateCandidate {
	for _, line := range b.lines {
		loc := mfgKeyword.FindStringIndex(line)
		if loc == nil {
			continue
		}
		d, ok := firstDate(line[loc[1]:])
		if !ok {
			d, ok = firstDate(line)
		}
		if !ok || d.After(asOf.Time) {
			continue
		}
		return &domain.DateCandidate{
			Date:       d,
			Confidence: domain.ConfidenceHigh,
			Snippet:    line,
			ImageIndex: b.imageIndex,
		}
	}
	return nil
}

// batch returns the first batch or lot number in the block. Tokens without
// a digit are words that merely start with a keyword, like LOTION.
func batch(b block) string {
	for _, line := range b.lines {
		for _, m := range batchKeyword.FindAllStringSubmatch(line, -1) {
			token := strings.ToUpper(m[1])
			if strings.ContainsAny(token, "0123456789") {
				return token
			}
		}
	}
	return ""
}

// productName reads the first all-uppercase line near the top of the block
func (e *Extractor) productName(b block) string {
	limit := e.cfg.ProductNameLines
	if limit > len(b.lines) {
		limit = len(b.lines)
	}
	for _, line := range b.lines[:limit] {
		if len(line) <= 3 || !isUpper(line) {
			continue
		}
		if expiryKeyword.MatchString(line) || mfgKeyword.MatchString(line) || batchKeyword.MatchString(line) {
			continue
		}
		name := strings.TrimSpace(spaces.ReplaceAllString(dosageForm.ReplaceAllString(line, ""), " "))
		if name != "" {
			return name
		}
	}
	return ""
}

// isUpper reports whether s has at least one cased letter and no lowercase ones
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			cased = true
		}
	}
	return cased
}
