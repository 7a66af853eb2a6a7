package utils

import (
	"fmt"
	"math"
	"strings"
)

// FormatAmount formats a number with thousands separators and two decimals,
// prefixed by the currency code when one is given (e.g. "EUR 1,234,567.89").
func FormatAmount(amount float64, currency string) string {
	negative := amount < 0
	amount = math.Abs(amount)

	s := fmt.Sprintf("%.2f", amount)
	intPart, decPart := s[:len(s)-3], s[len(s)-2:]

	formatted := groupThousands(intPart) + "." + decPart
	if negative {
		formatted = "-" + formatted
	}
	if currency != "" {
		return currency + " " + formatted
	}
	return formatted
}

// FormatAmountCompact formats large amounts with K/M/B suffixes.
// e.g., 1927345 → "1.93M", 2500000000 → "2.50B"
func FormatAmountCompact(amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = math.Abs(amount)
	}

	switch {
	case amount >= 1e9:
		return fmt.Sprintf("%s%.2fB", sign, amount/1e9)
	case amount >= 1e6:
		return fmt.Sprintf("%s%.2fM", sign, amount/1e6)
	case amount >= 1e3:
		return fmt.Sprintf("%s%.2fK", sign, amount/1e3)
	default:
		return fmt.Sprintf("%s%.2f", sign, amount)
	}
}

// FormatPercent renders a fraction as a percentage with two decimals.
func FormatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
