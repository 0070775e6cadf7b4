// Package core provides money parsing and handling utilities.
//
// This file contains functions for parsing amounts from sheet cells and form
// input, and for formatting hundredths back into yen strings.
package core

import (
	"strconv"
	"strings"
	"unicode"
)

// ParseDecimalToCents converts a decimal string to hundredths with proper rounding.
//
// It accepts an optional currency mark (¥, ￥ or a trailing 円), comma thousands
// separators and a dot decimal separator, and performs half-up rounding on the
// third decimal place. Negative values are rejected; zero is allowed.
//
// Examples:
//
//	ParseDecimalToCents("1500")    -> 150000, nil
//	ParseDecimalToCents("1,500円") -> 150000, nil
//	ParseDecimalToCents("12.345")  -> 1235, nil (rounds up)
//	ParseDecimalToCents("abc")     -> 0, ErrInvalidAmount
func ParseDecimalToCents(s string) (int64, error) {
	s = normalizeAmount(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return 0, ErrInvalidAmount
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return 0, ErrInvalidAmount
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" && fracPart == "" {
		return 0, ErrInvalidAmount
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if r > unicode.MaxASCII || !unicode.IsDigit(r) {
			return 0, ErrInvalidAmount
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv >= maxSafeInt64 {
		return 0, ErrInvalidAmount
	}
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return iv*100 + fracCents, nil
}

// ParseAmount is the lenient form used by aggregation: anything that does not
// parse counts as zero and ok is false.
func ParseAmount(s string) (Money, bool) {
	cents, err := ParseDecimalToCents(s)
	if err != nil {
		return Money{}, false
	}
	return Money{Cents: cents}, true
}

// normalizeAmount strips whitespace, currency marks and thousands separators.
func normalizeAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "¥")
	s = strings.TrimPrefix(s, "￥")
	s = strings.TrimSuffix(s, "円")
	s = strings.TrimSpace(s)
	if strings.Contains(s, ",") {
		if !validThousands(strings.SplitN(s, ".", 2)[0]) {
			return ""
		}
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

// validThousands checks "1,234,567" style grouping.
func validThousands(s string) bool {
	groups := strings.Split(s, ",")
	if len(groups[0]) == 0 || len(groups[0]) > 3 {
		return false
	}
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return true
}

// Add returns m+o.
func (m Money) Add(o Money) Money {
	return Money{Cents: m.Cents + o.Cents}
}

// Yen returns the amount as a float64 for display and spreadsheet output.
// Use Cents for arithmetic.
func (m Money) Yen() float64 {
	return float64(m.Cents) / 100.0
}

// String formats the amount with thousands separators, e.g. "1,500" or
// "1,500.50". Whole yen amounts carry no decimals.
func (m Money) String() string {
	cents := m.Cents
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String()
	if rem := cents % 100; rem != 0 {
		out += "." + strconv.FormatInt(rem/10, 10) + strconv.FormatInt(rem%10, 10)
	}
	if neg {
		return "-" + out
	}
	return out
}
