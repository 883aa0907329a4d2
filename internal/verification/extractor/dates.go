package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// monthLexicon maps printed month tokens, including common OCR misreads,
// to month numbers. Order matters for the fuzzy fallback.
var monthLexicon = []struct {
	token string
	month time.Month
}{
	{"JAN", time.January}, {"FEB", time.February}, {"MAR", time.March},
	{"APR", time.April}, {"MAY", time.May}, {"JUN", time.June},
	{"JUL", time.July}, {"AUG", time.August}, {"SEP", time.September},
	{"SEPT", time.September}, {"OCT", time.October}, {"NOV", time.November},
	{"DEC", time.December},
	{"JANUARY", time.January}, {"FEBRUARY", time.February}, {"MARCH", time.March},
	{"APRIL", time.April}, {"JUNE", time.June}, {"JULY", time.July},
	{"AUGUST", time.August}, {"SEPTEMBER", time.September}, {"OCTOBER", time.October},
	{"NOVEMBER", time.November}, {"DECEMBER", time.December},
	{"JUH", time.June}, {"JUME", time.June}, {"JUT", time.July}, {"JUI", time.July},
	{"JAH", time.January}, {"FE8", time.February}, {"FE3", time.February},
}

var monthByToken = func() map[string]time.Month {
	m := make(map[string]time.Month, len(monthLexicon))
	for _, e := range monthLexicon {
		m[e.token] = e.month
	}
	return m
}()

const (
	// sep matches a date field separator and the characters OCR confuses it with
	sep = `\s?[/\-.|Il:,]\s?`
	// monthRE lists longer spellings first so alternation prefers them
	monthRE = `(?i:(JANUARY|FEBRUARY|MARCH|APRIL|JUNE|JULY|AUGUST|SEPTEMBER|OCTOBER|NOVEMBER|DECEMBER|` +
		`SEPT|JUME|JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC|JUH|JUT|JUI|JAH|FE8|FE3))\.?`
	yearRE = `(\d{4}|\d{2})`
)

// dateShape converts the submatches of one token shape into a date
type dateShape struct {
	name    string
	re      *regexp.Regexp
	convert func(groups []string) (domain.Date, bool)
}

// dateShapes are ordered most specific first; ties on position go to the
// earlier shape.
var dateShapes = []dateShape{
	{
		name: "yyyy-mm-dd",
		re:   regexp.MustCompile(`(\d{4})` + sep + `(\d{1,2})` + sep + `(\d{1,2})`),
		convert: func(g []string) (domain.Date, bool) {
			return fullDate(g[3], g[2], g[1])
		},
	},
	{
		name: "dd/mm/yy",
		re:   regexp.MustCompile(`(\d{1,2})` + sep + `(\d{1,2})` + sep + yearRE),
		convert: func(g []string) (domain.Date, bool) {
			return fullDate(g[1], g[2], g[3])
		},
	},
	{
		name: "dd month yy",
		re:   regexp.MustCompile(`(\d{1,2})[\s\-./]{0,2}` + monthRE + `[\s\-./,']{0,2}` + yearRE),
		convert: func(g []string) (domain.Date, bool) {
			month, ok := monthByToken[strings.ToUpper(g[2])]
			if !ok {
				return domain.Date{}, false
			}
			return fullDate(g[1], strconv.Itoa(int(month)), g[3])
		},
	},
	{
		name: "mm/yyyy",
		re:   regexp.MustCompile(`(\d{1,2})` + sep + `(\d{4})`),
		convert: func(g []string) (domain.Date, bool) {
			return monthEnd(g[1], g[2])
		},
	},
	{
		name: "mm/yy",
		re:   regexp.MustCompile(`(\d{1,2})` + sep + `(\d{2})`),
		convert: func(g []string) (domain.Date, bool) {
			return monthEnd(g[1], g[2])
		},
	},
	{
		name: "month yy",
		re:   regexp.MustCompile(monthRE + `[\s\-./,']{0,3}` + yearRE),
		convert: func(g []string) (domain.Date, bool) {
			return namedMonthEnd(g[1], g[2])
		},
	},
	{
		name: "yy month",
		re:   regexp.MustCompile(yearRE + `[\s\-./]{0,2}` + monthRE),
		convert: func(g []string) (domain.Date, bool) {
			return namedMonthEnd(g[2], g[1])
		},
	},
	{
		name: "loose pair",
		re:   regexp.MustCompile(`(\d{1,2})\s+` + yearRE),
		convert: func(g []string) (domain.Date, bool) {
			return monthEnd(g[1], g[2])
		},
	},
}

// fuzzyMonthYear catches heavily garbled month tokens such as "JU 25".
var fuzzyMonthYear = regexp.MustCompile(`(?:^|[^A-Za-z])([A-Za-z]{2,4})[^\d]{0,3}(\d{2})(?:\D|$)`)

// dateToken is a recognised date and where it sits in the line
type dateToken struct {
	date  domain.Date
	start int
	end   int
}

// expandYear turns a two or four digit year into a full year
func expandYear(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	switch len(s) {
	case 2:
		if y < 50 {
			return 2000 + y, true
		}
		return 1900 + y, true
	case 4:
		if y < minYear || y > maxYear {
			return 0, false
		}
		return y, true
	}
	return 0, false
}

const (
	minYear = 1950
	maxYear = 2099
)

func parseMonth(s string) (time.Month, bool) {
	m, err := strconv.Atoi(s)
	if err != nil || m < 1 || m > 12 {
		return 0, false
	}
	return time.Month(m), true
}

func fullDate(day, month, year string) (domain.Date, bool) {
	d, err := strconv.Atoi(day)
	if err != nil || d < 1 || d > 31 {
		return domain.Date{}, false
	}
	m, ok := parseMonth(month)
	if !ok {
		return domain.Date{}, false
	}
	y, ok := expandYear(year)
	if !ok {
		return domain.Date{}, false
	}
	date := domain.NewDate(y, m, d)
	if date.Day() != d {
		return domain.Date{}, false
	}
	return date, true
}

func monthEnd(month, year string) (domain.Date, bool) {
	m, ok := parseMonth(month)
	if !ok {
		return domain.Date{}, false
	}
	y, ok := expandYear(year)
	if !ok {
		return domain.Date{}, false
	}
	return domain.EndOfMonth(y, m), true
}

func namedMonthEnd(name, year string) (domain.Date, bool) {
	m, ok := monthByToken[strings.ToUpper(name)]
	if !ok {
		return domain.Date{}, false
	}
	y, ok := expandYear(year)
	if !ok {
		return domain.Date{}, false
	}
	return domain.EndOfMonth(y, m), true
}

// bounded rejects matches that cut through a longer number or word
func bounded(s string, start, end int) bool {
	if start > 0 {
		prev, first := s[start-1], s[start]
		if isDigit(first) && isDigit(prev) {
			return false
		}
		if isLetter(first) && isLetter(prev) {
			return false
		}
	}
	if end < len(s) {
		last, next := s[end-1], s[end]
		if isDigit(last) && isDigit(next) {
			return false
		}
		if isLetter(last) && isLetter(next) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isLetter(c byte) bool { return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') }

// firstMatch finds the earliest bounded, convertible match of one shape at
// or after from.
func (ds dateShape) firstMatch(s string, from int) (dateToken, bool) {
	for from < len(s) {
		loc := ds.re.FindStringSubmatchIndex(s[from:])
		if loc == nil {
			return dateToken{}, false
		}
		start, end := from+loc[0], from+loc[1]
		if bounded(s, start, end) {
			groups := make([]string, len(loc)/2)
			for i := range groups {
				if loc[2*i] >= 0 {
					groups[i] = s[from+loc[2*i] : from+loc[2*i+1]]
				}
			}
			if d, ok := ds.convert(groups); ok {
				return dateToken{date: d, start: start, end: end}, true
			}
		}
		from = start + 1
	}
	return dateToken{}, false
}

// nextDate returns the leftmost date token at or after from. Tokens that
// start at the same position resolve to the more specific shape.
func nextDate(s string, from int) (dateToken, bool) {
	var (
		best  dateToken
		found bool
	)
	for _, ds := range dateShapes {
		tok, ok := ds.firstMatch(s, from)
		if !ok {
			continue
		}
		if !found || tok.start < best.start {
			best, found = tok, true
		}
	}
	return best, found
}

// firstDate returns the leftmost date token in s
func firstDate(s string) (domain.Date, bool) {
	tok, ok := nextDate(s, 0)
	return tok.date, ok
}

// allDates returns every non-overlapping date token in s, left to right
func allDates(s string) []domain.Date {
	var out []domain.Date
	for from := 0; from < len(s); {
		tok, ok := nextDate(s, from)
		if !ok {
			break
		}
		out = append(out, tok.date)
		from = tok.end
	}
	return out
}

// fuzzyDate reads a garbled month abbreviation followed by a two digit
// year, resolving to the end of that month.
func fuzzyDate(s string) (domain.Date, bool) {
	for _, m := range fuzzyMonthYear.FindAllStringSubmatch(s, -1) {
		word := strings.ToUpper(m[1])
		if len(word) > 3 {
			word = word[:3]
		}
		for _, e := range monthLexicon {
			key := e.token
			if len(key) > 3 {
				key = key[:3]
			}
			if strings.Contains(word, key) || strings.Contains(key, word) {
				if d, ok := namedMonthEnd(e.token, m[2]); ok {
					return d, true
				}
				break
			}
		}
	}
	return domain.Date{}, false
}
