package gs1

// CheckDigit computes the GS1 mod-10 check digit for body, the GTIN
// without its last digit. Weights alternate 3,1 starting from the right.
func CheckDigit(body string) (int, bool) {
	if body == "" {
		return 0, false
	}
	sum := 0
	weight := 3
	for i := len(body) - 1; i >= 0; i-- {
		c := body[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		sum += int(c-'0') * weight
		weight = 4 - weight
	}
	return (10 - sum%10) % 10, true
}

// ValidateChecksum reports whether gtin is an 8, 12, 13 or 14 digit
// number with a correct check digit. Anything else is simply invalid.
func ValidateChecksum(gtin string) bool {
	switch len(gtin) {
	case 8, 12, 13, 14:
	default:
		return false
	}
	want, ok := CheckDigit(gtin[:len(gtin)-1])
	if !ok {
		return false
	}
	last := gtin[len(gtin)-1]
	if last < '0' || last > '9' {
		return false
	}
	return int(last-'0') == want
}

// NormalizeGTIN reports a GTIN-14 with indicator digit 0 in its GTIN-13
// form. Zero padding does not change the check digit.
func NormalizeGTIN(gtin string) string {
	if len(gtin) == 14 && gtin[0] == '0' {
		return gtin[1:]
	}
	return gtin
}

// PadGTIN14 left-pads a shorter GTIN with zeros to the 14 digit form
// used in element strings and Digital Link URIs.
func PadGTIN14(gtin string) string {
	for len(gtin) < 14 {
		gtin = "0" + gtin
	}
	return gtin
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
