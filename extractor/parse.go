package extractor

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	digitsRegex = regexp.MustCompile(`\d+`)

	// Plain digits with an optional fraction. Rejects NaN, Inf and exponents.
	decimalRegex = regexp.MustCompile(`^\d+(\.\d+)?$`)

	// Thousands separators seen in rouble prices: plain, no-break and thin spaces.
	separatorReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "\u2009", "")
)

// ParsePrice strips the currency symbol and thousands separators and parses
// the remainder, e.g. "12 345 ₽" -> 12345. A comma is taken as the decimal
// separator. Returns nil when the text is not a number.
func ParsePrice(text, currencySymbol string) *float64 {
	if currencySymbol != "" {
		text = strings.ReplaceAll(text, currencySymbol, "")
	}
	text = separatorReplacer.Replace(strings.TrimSpace(text))
	return ParseDecimal(text)
}

// ParseDecimal parses a decimal such as "4.8" or "4,8". Returns nil when the
// text is empty or not a number.
func ParseDecimal(text string) *float64 {
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if !decimalRegex.MatchString(text) {
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseCount returns the first run of digits in text, or 0 when there is none.
func ParseCount(text string) int {
	n, err := strconv.Atoi(digitsRegex.FindString(text))
	if err != nil {
		return 0
	}
	return n
}

// SplitSpec splits "RAM: 8GB" into ("RAM", "8GB"). Text without a colon or
// with more than one colon is rejected.
func SplitSpec(text string) (name, value string, ok bool) {
	parts := strings.Split(text, ":")
	if len(parts) != 2 {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
}
