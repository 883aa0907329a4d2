// Package gs1 decodes GS1 element strings, Digital Link URIs and linear
// product barcodes into typed fields.
package gs1

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mediscan/mediscan-backend/internal/verification/domain"
)

// GroupSeparator (ASCII 29) ends a variable-length element in raw form.
const GroupSeparator = '\x1d'

// Application identifiers the parser extracts.
const (
	AIGTIN           = "01"
	AIBatch          = "10"
	AIProductionDate = "11"
	AIBestBefore     = "15"
	AIExpiry         = "17"
	AISerial         = "21"
)

// maxVariableLength bounds AI 10 and AI 21 values.
const maxVariableLength = 20

// fixedLength is the data length of predefined fixed-length AIs.
var fixedLength = map[string]int{
	"00": 18,
	"01": 14,
	"02": 14,
	"11": 6,
	"12": 6,
	"13": 6,
	"15": 6,
	"16": 6,
	"17": 6,
	"20": 2,
}

// variableAIs are two digit AIs whose data runs to a separator.
var variableAIs = map[string]bool{
	"10": true, "21": true, "22": true, "30": true, "37": true,
	"90": true, "91": true, "92": true, "93": true, "94": true,
	"95": true, "96": true, "97": true, "98": true, "99": true,
}

// symbologyIDs are AIM identifiers some scanners prepend to the data.
var symbologyIDs = []string{"]C1", "]d2", "]Q3", "]e0", "]J1"}

var parenElement = regexp.MustCompile(`\((\d{2,4})\)([^(\x1d\r\n]*)`)

// Parse extracts GS1 fields from a decoded payload. Parsing is
// best effort: anything that cannot be read is left unset.
func Parse(raw string, symbology domain.Symbology) domain.ParsedGS1Fields {
	payload := strings.TrimSpace(raw)
	if payload == "" {
		return domain.ParsedGS1Fields{}
	}

	switch symbology {
	case domain.SymbologyEAN13, domain.SymbologyEAN8, domain.SymbologyUPCA, domain.SymbologyUPCE:
		if !isDigits(payload) {
			return domain.ParsedGS1Fields{}
		}
		return domain.ParsedGS1Fields{GTIN: payload, IsGS1: true}
	case domain.SymbologyQR:
		if idx := strings.Index(strings.ToLower(payload), "http"); idx >= 0 {
			return parseDigitalLink(payload[idx:])
		}
		return parseElementString(payload)
	case domain.SymbologyCode128, domain.SymbologyPDF417, domain.SymbologyDataMatrix:
		return parseElementString(payload)
	}
	return domain.ParsedGS1Fields{}
}

// parseElementString reads an AI element string, parenthesised form first.
func parseElementString(s string) domain.ParsedGS1Fields {
	s = stripSymbologyID(s)

	var f domain.ParsedGS1Fields
	if strings.Contains(s, "(") {
		for _, m := range parenElement.FindAllStringSubmatch(s, -1) {
			apply(&f, m[1], strings.TrimSpace(m[2]))
		}
	}
	if !f.IsGS1 {
		scanRaw(&f, s)
	}
	return f
}

func stripSymbologyID(s string) string {
	for _, id := range symbologyIDs {
		if strings.HasPrefix(s, id) {
			return s[len(id):]
		}
	}
	return s
}

// scanRaw walks a concatenated element string from the start. It stops at
// the first AI whose length it does not know.
func scanRaw(f *domain.ParsedGS1Fields, s string) {
	i := 0
	for i < len(s) {
		for i < len(s) && s[i] == GroupSeparator {
			i++
		}
		if i+2 > len(s) {
			return
		}
		ai := s[i : i+2]
		if !isDigits(ai) {
			return
		}
		i += 2

		if n, ok := fixedLength[ai]; ok {
			if i+n > len(s) {
				apply(f, ai, s[i:])
				return
			}
			apply(f, ai, s[i:i+n])
			i += n
			continue
		}

		// 31nn to 36nn carry four digit AIs with six digits of data
		if ai[0] == '3' && ai[1] >= '1' && ai[1] <= '6' {
			if i+8 > len(s) {
				return
			}
			i += 8
			continue
		}

		if !variableAIs[ai] {
			return
		}
		end := i
		for end < len(s) && s[end] != GroupSeparator && s[end] != '\n' && s[end] != '\r' {
			end++
		}
		value := s[i:end]
		if (ai == AIBatch || ai == AISerial) && len(value) > maxVariableLength {
			value = value[:maxVariableLength]
			end = i + maxVariableLength
		}
		apply(f, ai, value)
		i = end
	}
}

// apply stores one element value, ignoring values of the wrong shape.
func apply(f *domain.ParsedGS1Fields, ai, value string) {
	switch ai {
	case AIGTIN:
		if len(value) >= 14 && isDigits(value[:14]) {
			f.GTIN = value[:14]
			f.IsGS1 = true
		}
	case AIExpiry, AIProductionDate, AIBestBefore:
		if len(value) < 6 {
			return
		}
		d, ok := ParseDate(value[:6])
		if !ok {
			return
		}
		f.IsGS1 = true
		switch ai {
		case AIExpiry:
			f.ExpiryDate = d.Ptr()
		case AIProductionDate:
			f.ProductionDate = d.Ptr()
		case AIBestBefore:
			f.BestBeforeDate = d.Ptr()
		}
	case AIBatch:
		if value != "" {
			f.Batch = value
			f.IsGS1 = true
		}
	case AISerial:
		if value != "" {
			f.Serial = value
			f.IsGS1 = true
		}
	}
}

// ParseDate reads a GS1 YYMMDD date. Day 00 stands for the last day of
// the month. Two digit years below 50 are 20YY, the rest 19YY.
func ParseDate(yymmdd string) (domain.Date, bool) {
	if len(yymmdd) != 6 || !isDigits(yymmdd) {
		return domain.Date{}, false
	}
	yy := int(yymmdd[0]-'0')*10 + int(yymmdd[1]-'0')
	mm := int(yymmdd[2]-'0')*10 + int(yymmdd[3]-'0')
	dd := int(yymmdd[4]-'0')*10 + int(yymmdd[5]-'0')

	year := 1900 + yy
	if yy < 50 {
		year = 2000 + yy
	}
	if mm < 1 || mm > 12 {
		return domain.Date{}, false
	}
	if dd == 0 {
		return domain.EndOfMonth(year, time.Month(mm)), true
	}
	d := domain.NewDate(year, time.Month(mm), dd)
	if d.Day() != dd {
		return domain.Date{}, false
	}
	return d, true
}

// parseDigitalLink reads the AI path segments and query attributes of a
// GS1 Digital Link URI. A URL without any readable AI is not GS1 data.
func parseDigitalLink(link string) domain.ParsedGS1Fields {
	f := domain.ParsedGS1Fields{DigitalLink: link}

	u, err := url.Parse(link)
	if err != nil {
		return f
	}

	segments := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	for i := 0; i+1 < len(segments); i++ {
		key := segments[i]
		value, err := url.PathUnescape(segments[i+1])
		if err != nil {
			continue
		}
		switch key {
		case AIGTIN:
			if isDigits(value) && (len(value) == 8 || len(value) == 12 || len(value) == 13 || len(value) == 14) {
				f.GTIN = PadGTIN14(value)
				f.IsGS1 = true
				i++
			}
		case AIExpiry, AIProductionDate, AIBestBefore, AIBatch, AISerial:
			apply(&f, key, value)
			i++
		}
	}

	q := u.Query()
	for _, ai := range []string{AIExpiry, AIProductionDate, AIBestBefore, AIBatch, AISerial} {
		v := q.Get(ai)
		if v == "" {
			continue
		}
		switch ai {
		case AIExpiry:
			if f.ExpiryDate != nil {
				continue
			}
		case AIProductionDate:
			if f.ProductionDate != nil {
				continue
			}
		case AIBestBefore:
			if f.BestBeforeDate != nil {
				continue
			}
		case AIBatch:
			if f.Batch != "" {
				continue
			}
		case AISerial:
			if f.Serial != "" {
				continue
			}
		}
		apply(&f, ai, v)
	}

	return f
}
