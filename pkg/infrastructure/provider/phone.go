package provider

import (
	"strings"
	"unicode"
)

// NormalizePhone converts a local or international number to E.164. Numbers written with a
// leading 0 are treated as national numbers of countryCode; a 00 prefix is an international
// call prefix.
func NormalizePhone(phone, countryCode string) string {
	trimmed := strings.TrimSpace(phone)
	international := strings.HasPrefix(trimmed, "+")

	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, trimmed)
	countryCode = strings.TrimPrefix(countryCode, "+")

	switch {
	case digits == "":
		return ""
	case international:
		return "+" + digits
	case strings.HasPrefix(digits, "00"):
		return "+" + digits[2:]
	case strings.HasPrefix(digits, "0"):
		return "+" + countryCode + digits[1:]
	case countryCode != "" && strings.HasPrefix(digits, countryCode):
		return "+" + digits
	}
	return "+" + countryCode + digits
}
